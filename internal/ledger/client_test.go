package ledger_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/gotuzzoj23/SolanaDApp/internal/identity"
	"github.com/gotuzzoj23/SolanaDApp/internal/ledger"
	"github.com/gotuzzoj23/SolanaDApp/internal/ledger/ledgertest"
	"github.com/gotuzzoj23/SolanaDApp/internal/types"
)

// keySigner signs with a local key in place of a wallet
type keySigner struct {
	key solana.PrivateKey
}

func (s keySigner) PublicKey() solana.PublicKey { return s.key.PublicKey() }

func (s keySigner) SignMessage(_ context.Context, message []byte) (solana.Signature, error) {
	return s.key.Sign(message)
}

func newSigner(t *testing.T) keySigner {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		t.Fatalf("NewRandomPrivateKey: %v", err)
	}
	return keySigner{key: key}
}

func connected(s keySigner) types.WalletIdentity {
	return types.WalletIdentity{PublicKey: s.PublicKey().String(), Status: types.StatusConnected}
}

func setupClient(t *testing.T) (*ledger.Client, *ledgertest.Node, *identity.AccountHandle, keySigner) {
	t.Helper()

	schema := ledger.DefaultSchema(solana.NewWallet().PublicKey())
	node := ledgertest.New(t, schema)
	signer := newSigner(t)

	client, err := ledger.Build(connected(signer), ledger.NetworkConfig{
		Endpoint:     node.URL(),
		PollInterval: 5 * time.Millisecond,
	}, schema, signer)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	handle, err := identity.NewRandomAccountHandle()
	if err != nil {
		t.Fatalf("NewRandomAccountHandle: %v", err)
	}
	return client, node, handle, signer
}

func TestBuildValidation(t *testing.T) {
	schema := ledger.DefaultSchema(solana.NewWallet().PublicKey())
	signer := newSigner(t)
	other := newSigner(t)
	good := ledger.NetworkConfig{Endpoint: "devnet"}

	tests := []struct {
		name    string
		id      types.WalletIdentity
		network ledger.NetworkConfig
		schema  ledger.Schema
		signer  ledger.Signer
		wantErr error
	}{
		{"bad endpoint", connected(signer), ledger.NetworkConfig{Endpoint: "nowhere"}, schema, signer, ledger.ErrInvalidEndpoint},
		{"bad commitment", connected(signer), ledger.NetworkConfig{Endpoint: "devnet", Commitment: "max"}, schema, signer, ledger.ErrInvalidCommitment},
		{"no program", connected(signer), good, ledger.DefaultSchema(solana.PublicKey{}), signer, ledger.ErrNoProgram},
		{"disconnected", types.WalletIdentity{Status: types.StatusDisconnected}, good, schema, signer, ledger.ErrIdentityNotConnected},
		{"connecting", types.WalletIdentity{PublicKey: signer.PublicKey().String(), Status: types.StatusConnecting}, good, schema, signer, ledger.ErrIdentityNotConnected},
		{"nil signer", connected(signer), good, schema, nil, ledger.ErrIdentityNotConnected},
		{"mismatch", connected(signer), good, schema, other, ledger.ErrSignerMismatch},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ledger.Build(tc.id, tc.network, tc.schema, tc.signer); !errors.Is(err, tc.wantErr) {
				t.Errorf("Expected %v, got %v", tc.wantErr, err)
			}
		})
	}

	if _, err := ledger.Build(connected(signer), good, schema, signer); err != nil {
		t.Errorf("Build with valid input: %v", err)
	}
}

func TestFetchMissingAccount(t *testing.T) {
	client, node, handle, _ := setupClient(t)

	_, err := client.FetchAccount(context.Background(), handle.PublicKey())
	if !errors.Is(err, ledger.ErrAccountNotFound) {
		t.Fatalf("Expected ErrAccountNotFound, got %v", err)
	}
	if node.Calls("getAccountInfo") != 1 {
		t.Errorf("Expected one getAccountInfo call, got %d", node.Calls("getAccountInfo"))
	}
}

func TestFetchFailureIsNotNotFound(t *testing.T) {
	client, node, handle, _ := setupClient(t)
	node.Fail("getAccountInfo", "node is behind")

	_, err := client.FetchAccount(context.Background(), handle.PublicKey())
	if err == nil || errors.Is(err, ledger.ErrAccountNotFound) {
		t.Fatalf("Expected a fetch error distinct from not found, got %v", err)
	}
}

func TestCreateThenAppend(t *testing.T) {
	client, node, handle, signer := setupClient(t)
	ctx := context.Background()

	if _, err := client.CreateAccount(ctx, handle); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	acct, err := client.FetchAccount(ctx, handle.PublicKey())
	if err != nil {
		t.Fatalf("FetchAccount: %v", err)
	}
	if len(acct.Entries) != 0 {
		t.Errorf("Expected empty list, got %d entries", len(acct.Entries))
	}
	if !acct.OwnerAuthority.Equals(signer.PublicKey()) {
		t.Errorf("Got owner %s, want %s", acct.OwnerAuthority, signer.PublicKey())
	}

	for _, uri := range []string{"https://example.com/a.gif", "https://example.com/b.gif"} {
		if _, err := client.AppendEntry(ctx, handle.PublicKey(), uri); err != nil {
			t.Fatalf("AppendEntry(%s): %v", uri, err)
		}
	}

	acct, err = client.FetchAccount(ctx, handle.PublicKey())
	if err != nil {
		t.Fatalf("FetchAccount: %v", err)
	}
	if len(acct.Entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(acct.Entries))
	}
	if acct.Entries[0].Content != "https://example.com/a.gif" || acct.Entries[1].Content != "https://example.com/b.gif" {
		t.Errorf("Entries out of order: %+v", acct.Entries)
	}
	if !acct.Entries[1].Submitter.Equals(signer.PublicKey()) {
		t.Errorf("Got submitter %s, want %s", acct.Entries[1].Submitter, signer.PublicKey())
	}
	if node.Calls("getSignatureStatuses") < 3 {
		t.Errorf("Expected each send to be confirmed, got %d status polls", node.Calls("getSignatureStatuses"))
	}
}

func TestCreateTwiceIsAlreadyInitialized(t *testing.T) {
	client, _, handle, _ := setupClient(t)
	ctx := context.Background()

	if _, err := client.CreateAccount(ctx, handle); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	_, err := client.CreateAccount(ctx, handle)
	if !errors.Is(err, ledger.ErrAlreadyInitialized) {
		t.Errorf("Expected ErrAlreadyInitialized, got %v", err)
	}
}

func TestAppendToMissingAccountFails(t *testing.T) {
	client, _, handle, _ := setupClient(t)

	_, err := client.AppendEntry(context.Background(), handle.PublicKey(), "https://example.com/a.gif")
	if !errors.Is(err, ledger.ErrTransactionFailed) {
		t.Errorf("Expected ErrTransactionFailed, got %v", err)
	}
	if errors.Is(err, ledger.ErrAlreadyInitialized) {
		t.Error("append failure must not be reported as already initialized")
	}
}

func TestSendRejectedByNode(t *testing.T) {
	client, node, handle, _ := setupClient(t)
	node.Fail("sendTransaction", "blockhash not found")

	_, err := client.CreateAccount(context.Background(), handle)
	if !errors.Is(err, ledger.ErrTransactionFailed) {
		t.Errorf("Expected ErrTransactionFailed, got %v", err)
	}
	if _, ok := node.Account(handle.PublicKey()); ok {
		t.Error("Rejected transaction must not create the account")
	}
}

func TestConfirmTimeout(t *testing.T) {
	schema := ledger.DefaultSchema(solana.NewWallet().PublicKey())
	node := ledgertest.New(t, schema)
	node.SetStatus("")
	signer := newSigner(t)

	client, err := ledger.Build(connected(signer), ledger.NetworkConfig{
		Endpoint:       node.URL(),
		ConfirmTimeout: 50 * time.Millisecond,
		PollInterval:   5 * time.Millisecond,
	}, schema, signer)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	handle, err := identity.NewRandomAccountHandle()
	if err != nil {
		t.Fatalf("NewRandomAccountHandle: %v", err)
	}

	_, err = client.CreateAccount(context.Background(), handle)
	if !errors.Is(err, ledger.ErrTransactionFailed) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected a confirmation timeout, got %v", err)
	}
}

func TestCommitmentLevelGatesConfirmation(t *testing.T) {
	schema := ledger.DefaultSchema(solana.NewWallet().PublicKey())
	node := ledgertest.New(t, schema)
	node.SetStatus("processed")
	signer := newSigner(t)

	client, err := ledger.Build(connected(signer), ledger.NetworkConfig{
		Endpoint:       node.URL(),
		Commitment:     "finalized",
		ConfirmTimeout: 50 * time.Millisecond,
		PollInterval:   5 * time.Millisecond,
	}, schema, signer)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	handle, err := identity.NewRandomAccountHandle()
	if err != nil {
		t.Fatalf("NewRandomAccountHandle: %v", err)
	}

	if _, err := client.CreateAccount(context.Background(), handle); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected processed status to fall short of finalized, got %v", err)
	}
}
