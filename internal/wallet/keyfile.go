package wallet

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/gagliardetto/solana-go"
)

// ApprovalRequest describes what the wallet owner is asked to allow.
type ApprovalRequest struct {
	Origin    string
	PublicKey string
}

// Approver asks the wallet owner to approve a connection.
type Approver func(ctx context.Context, req ApprovalRequest) (bool, error)

// AutoApprove approves every request. Development only.
func AutoApprove() Approver {
	return func(context.Context, ApprovalRequest) (bool, error) { return true, nil }
}

// TerminalApprover prompts on out and reads a y/n answer from in.
func TerminalApprover(in io.Reader, out io.Writer) Approver {
	reader := bufio.NewReader(in)
	var mu sync.Mutex
	return func(ctx context.Context, req ApprovalRequest) (bool, error) {
		mu.Lock()
		defer mu.Unlock()

		fmt.Fprintf(out, "Allow %s to connect to wallet %s? [y/N] ", req.Origin, req.PublicKey)
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return false, err
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true, nil
		}
		return false, nil
	}
}

// KeyfileProvider is a Provider backed by a local solana-keygen wallet file.
// Origins approved through the Approver are remembered in a TrustStore, so
// later silent connects succeed without a prompt.
type KeyfileProvider struct {
	key      solana.PrivateKey
	origin   string
	trust    *TrustStore
	approver Approver

	mu           sync.Mutex
	onDisconnect []func()
}

// OpenKeyfileProvider loads the wallet key at keyPath. A missing file is
// reported as ErrWalletUnavailable.
func OpenKeyfileProvider(keyPath, origin string, trust *TrustStore, approver Approver) (*KeyfileProvider, error) {
	if _, err := os.Stat(keyPath); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWalletUnavailable, err)
	}
	key, err := solana.PrivateKeyFromSolanaKeygenFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("load wallet key: %w", err)
	}
	return NewKeyfileProvider(key, origin, trust, approver), nil
}

// NewKeyfileProvider creates a provider for key.
func NewKeyfileProvider(key solana.PrivateKey, origin string, trust *TrustStore, approver Approver) *KeyfileProvider {
	if approver == nil {
		approver = func(context.Context, ApprovalRequest) (bool, error) { return false, nil }
	}
	return &KeyfileProvider{
		key:      key,
		origin:   origin,
		trust:    trust,
		approver: approver,
	}
}

// Connect implements Provider.
func (p *KeyfileProvider) Connect(ctx context.Context, opts ConnectOptions) (solana.PublicKey, error) {
	pub := p.key.PublicKey()

	trusted, err := p.trust.IsTrusted(ctx, p.origin, pub.String())
	if err != nil {
		return solana.PublicKey{}, err
	}
	if trusted {
		return pub, nil
	}
	if opts.OnlyIfTrusted {
		return solana.PublicKey{}, ErrUserRejected
	}

	ok, err := p.approver(ctx, ApprovalRequest{Origin: p.origin, PublicKey: pub.String()})
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("approval prompt: %w", err)
	}
	if !ok {
		return solana.PublicKey{}, ErrUserRejected
	}
	if err := p.trust.Trust(ctx, p.origin, pub.String()); err != nil {
		return solana.PublicKey{}, err
	}
	return pub, nil
}

// SignMessage implements Provider. Only trusted origins may request
// signatures.
func (p *KeyfileProvider) SignMessage(ctx context.Context, message []byte) (solana.Signature, error) {
	trusted, err := p.trust.IsTrusted(ctx, p.origin, p.key.PublicKey().String())
	if err != nil {
		return solana.Signature{}, err
	}
	if !trusted {
		return solana.Signature{}, ErrUserRejected
	}
	return p.key.Sign(message)
}

// OnDisconnect implements DisconnectNotifier.
func (p *KeyfileProvider) OnDisconnect(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onDisconnect = append(p.onDisconnect, fn)
}

// Revoke withdraws trust from the origin and ends any session using it.
func (p *KeyfileProvider) Revoke(ctx context.Context) error {
	if err := p.trust.Revoke(ctx, p.origin); err != nil {
		return err
	}

	p.mu.Lock()
	fns := make([]func(), len(p.onDisconnect))
	copy(fns, p.onDisconnect)
	p.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
	return nil
}
