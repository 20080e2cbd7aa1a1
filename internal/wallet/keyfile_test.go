package wallet

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"

	"github.com/gotuzzoj23/SolanaDApp/internal/types"
)

func setupKeyfile(t *testing.T, approver Approver) (*KeyfileProvider, *TrustStore) {
	t.Helper()

	trust, err := OpenTrustStore(filepath.Join(t.TempDir(), "trust.db"))
	if err != nil {
		t.Fatalf("OpenTrustStore: %v", err)
	}
	t.Cleanup(func() { trust.Close() })

	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		t.Fatalf("NewRandomPrivateKey: %v", err)
	}
	return NewKeyfileProvider(key, "http://localhost:3000", trust, approver), trust
}

func TestKeyfileSilentConnectNeedsTrust(t *testing.T) {
	p, _ := setupKeyfile(t, AutoApprove())

	if _, err := p.Connect(context.Background(), ConnectOptions{OnlyIfTrusted: true}); !errors.Is(err, ErrUserRejected) {
		t.Fatalf("Expected ErrUserRejected before approval, got %v", err)
	}

	key, err := p.Connect(context.Background(), ConnectOptions{})
	if err != nil {
		t.Fatalf("explicit connect: %v", err)
	}

	silent, err := p.Connect(context.Background(), ConnectOptions{OnlyIfTrusted: true})
	if err != nil {
		t.Fatalf("silent connect after approval: %v", err)
	}
	if !silent.Equals(key) {
		t.Errorf("Got %s, want %s", silent, key)
	}
}

func TestKeyfileApprovalDeclined(t *testing.T) {
	decline := func(context.Context, ApprovalRequest) (bool, error) { return false, nil }
	p, trust := setupKeyfile(t, decline)

	if _, err := p.Connect(context.Background(), ConnectOptions{}); !errors.Is(err, ErrUserRejected) {
		t.Fatalf("Expected ErrUserRejected, got %v", err)
	}
	ok, err := trust.IsTrusted(context.Background(), p.origin, p.key.PublicKey().String())
	if err != nil {
		t.Fatalf("IsTrusted: %v", err)
	}
	if ok {
		t.Error("Declined origin must not be trusted")
	}
	if _, err := p.SignMessage(context.Background(), []byte("tx")); !errors.Is(err, ErrUserRejected) {
		t.Errorf("Expected untrusted signing to be rejected, got %v", err)
	}
}

func TestKeyfileRevokeDisconnectsSession(t *testing.T) {
	p, _ := setupKeyfile(t, AutoApprove())
	s := NewSession(p, nil)

	if err := s.ConnectExplicit(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := p.Revoke(context.Background()); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	if got := s.Identity().Status; got != types.StatusDisconnected {
		t.Errorf("Expected disconnected after revoke, got %s", got)
	}
	if _, err := p.SignMessage(context.Background(), []byte("tx")); !errors.Is(err, ErrUserRejected) {
		t.Errorf("Expected signing to be rejected after revoke, got %v", err)
	}
}

func TestTrustPersistsAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "trust.db")
	trust, err := OpenTrustStore(dbPath)
	if err != nil {
		t.Fatalf("OpenTrustStore: %v", err)
	}
	if err := trust.Trust(context.Background(), "origin", "key"); err != nil {
		t.Fatalf("Trust: %v", err)
	}
	trust.Close()

	reopened, err := OpenTrustStore(dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	ok, err := reopened.IsTrusted(context.Background(), "origin", "key")
	if err != nil {
		t.Fatalf("IsTrusted: %v", err)
	}
	if !ok {
		t.Error("Expected trust to survive reopen")
	}
}

func TestOpenKeyfileProviderMissingFile(t *testing.T) {
	_, err := OpenKeyfileProvider(filepath.Join(t.TempDir(), "missing.json"), "origin", nil, nil)
	if !errors.Is(err, ErrWalletUnavailable) {
		t.Errorf("Expected ErrWalletUnavailable, got %v", err)
	}
}

func TestOpenKeyfileProviderLoadsKeygenFile(t *testing.T) {
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		t.Fatalf("NewRandomPrivateKey: %v", err)
	}
	var b strings.Builder
	b.WriteString("[")
	for i, v := range key {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(strconv.Itoa(int(v)))
	}
	b.WriteString("]")

	keyPath := filepath.Join(t.TempDir(), "id.json")
	if err := os.WriteFile(keyPath, []byte(b.String()), 0600); err != nil {
		t.Fatalf("write key: %v", err)
	}

	p, err := OpenKeyfileProvider(keyPath, "origin", nil, nil)
	if err != nil {
		t.Fatalf("OpenKeyfileProvider: %v", err)
	}
	if !p.key.PublicKey().Equals(key.PublicKey()) {
		t.Errorf("Got %s, want %s", p.key.PublicKey(), key.PublicKey())
	}
}

func TestTerminalApprover(t *testing.T) {
	var out bytes.Buffer
	approve := TerminalApprover(strings.NewReader("y\nno\n"), &out)
	req := ApprovalRequest{Origin: "origin", PublicKey: "key"}

	ok, err := approve(context.Background(), req)
	if err != nil || !ok {
		t.Errorf("Expected approval, got %v %v", ok, err)
	}
	ok, err = approve(context.Background(), req)
	if err != nil || ok {
		t.Errorf("Expected decline, got %v %v", ok, err)
	}
	if !strings.Contains(out.String(), "Allow origin to connect") {
		t.Errorf("Unexpected prompt %q", out.String())
	}
}
