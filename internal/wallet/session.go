package wallet

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/gagliardetto/solana-go"

	"github.com/gotuzzoj23/SolanaDApp/internal/logger"
	"github.com/gotuzzoj23/SolanaDApp/internal/types"
)

// StatusHandler is called after every identity transition.
type StatusHandler func(ctx context.Context, id types.WalletIdentity)

type subscription struct {
	id      int
	handler StatusHandler
}

// Session tracks the handshake with a Provider.
//
// State machine: Disconnected -> Connecting -> {Connected | Disconnected}.
// There is no automatic retry. A disconnect reported by the provider
// invalidates the identity immediately.
type Session struct {
	provider Provider
	notices  *logger.Logger

	mu       sync.Mutex
	identity types.WalletIdentity
	key      solana.PublicKey
	subs     []subscription
	nextSub  int
}

// NewSession creates a session for provider. A nil provider means no wallet
// is installed. notices may be nil.
func NewSession(provider Provider, notices *logger.Logger) *Session {
	s := &Session{
		provider: provider,
		notices:  notices,
		identity: types.WalletIdentity{Status: types.StatusDisconnected},
	}
	if available(provider) {
		if n, ok := provider.(DisconnectNotifier); ok {
			n.OnDisconnect(func() {
				s.Disconnect(context.Background())
			})
		}
	}
	return s
}

// Identity returns the current wallet identity
func (s *Session) Identity() types.WalletIdentity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// OnStatusChange registers handler for identity transitions. The returned
// function removes the registration; it is safe to call more than once.
func (s *Session) OnStatusChange(handler StatusHandler) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSub++
	id := s.nextSub
	s.subs = append(s.subs, subscription{id: id, handler: handler})

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, sub := range s.subs {
				if sub.id == id {
					s.subs = append(s.subs[:i], s.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// AttemptSilentConnect connects only if the wallet already trusts this
// origin. It never prompts and never returns an error: a missing wallet
// raises an "install wallet" notice, anything else is logged and leaves the
// session disconnected.
func (s *Session) AttemptSilentConnect(ctx context.Context) {
	if !available(s.provider) {
		log.Printf("Wallet: no wallet provider found")
		s.prompt()
		return
	}
	if s.Identity().Connected() {
		return
	}

	if err := s.connect(ctx, ConnectOptions{OnlyIfTrusted: true}); err != nil {
		log.Printf("Wallet: silent connect failed: %v", err)
		return
	}
	log.Printf("Wallet: connected with public key %s", s.Identity().PublicKey)
}

// ConnectExplicit prompts the wallet for a connection. It returns
// ErrWalletUnavailable without a wallet and ErrUserRejected when the user
// declines. Connecting an already connected session is a no-op.
func (s *Session) ConnectExplicit(ctx context.Context) error {
	if !available(s.provider) {
		s.prompt()
		return ErrWalletUnavailable
	}

	if s.Identity().Connected() {
		return nil
	}

	if err := s.connect(ctx, ConnectOptions{}); err != nil {
		log.Printf("Wallet: connect failed: %v", err)
		if s.notices != nil {
			kind := types.FailureUnknown
			if errors.Is(err, ErrUserRejected) {
				kind = types.FailureUserRejected
			}
			s.notices.Notice("warning", kind, "", fmt.Sprintf("Wallet connection failed: %v", err))
		}
		return err
	}
	log.Printf("Wallet: connected with public key %s", s.Identity().PublicKey)
	return nil
}

// Disconnect resets the identity to Disconnected.
func (s *Session) Disconnect(ctx context.Context) {
	s.mu.Lock()
	if s.identity.Status == types.StatusDisconnected {
		s.mu.Unlock()
		return
	}
	s.identity = types.WalletIdentity{Status: types.StatusDisconnected}
	s.key = solana.PublicKey{}
	s.mu.Unlock()

	log.Printf("Wallet: disconnected")
	if s.notices != nil {
		s.notices.Info("Wallet disconnected")
	}
	s.publish(ctx)
}

// Signer returns a signer bound to the connected wallet key.
func (s *Session) Signer() (*Signer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.identity.Connected() {
		return nil, ErrNotConnected
	}
	return &Signer{provider: s.provider, key: s.key}, nil
}

func (s *Session) connect(ctx context.Context, opts ConnectOptions) error {
	s.mu.Lock()
	switch s.identity.Status {
	case types.StatusConnecting:
		s.mu.Unlock()
		return ErrConnecting
	case types.StatusConnected:
		s.mu.Unlock()
		return nil
	}
	s.identity = types.WalletIdentity{Status: types.StatusConnecting}
	s.mu.Unlock()
	s.publish(ctx)

	key, err := s.provider.Connect(ctx, opts)
	if err == nil && key.IsZero() {
		err = fmt.Errorf("wallet returned an empty public key")
	}

	s.mu.Lock()
	if s.identity.Status != types.StatusConnecting {
		// Disconnected while the wallet was answering
		s.mu.Unlock()
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: disconnected while connecting", ErrNotConnected)
	}
	if err != nil {
		s.identity = types.WalletIdentity{Status: types.StatusDisconnected}
		s.key = solana.PublicKey{}
	} else {
		s.identity = types.WalletIdentity{Status: types.StatusConnected, PublicKey: key.String()}
		s.key = key
	}
	s.mu.Unlock()
	s.publish(ctx)

	return err
}

func (s *Session) prompt() {
	if s.notices != nil {
		s.notices.Prompt(types.FailureWalletUnavailable, "Wallet not found! Install a wallet to continue.")
	}
}

// publish runs the handlers outside the lock, in registration order.
func (s *Session) publish(ctx context.Context) {
	s.mu.Lock()
	id := s.identity
	subs := make([]subscription, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.handler(ctx, id)
	}
}
