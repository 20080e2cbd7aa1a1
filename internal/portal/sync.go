package portal

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/gotuzzoj23/SolanaDApp/internal/identity"
	"github.com/gotuzzoj23/SolanaDApp/internal/ledger"
	"github.com/gotuzzoj23/SolanaDApp/internal/types"
)

// Ledger is the subset of the ledger client the workflows need.
type Ledger interface {
	FetchAccount(ctx context.Context, account solana.PublicKey) (*ledger.Account, error)
	CreateAccount(ctx context.Context, handle ledger.Keypair) (solana.Signature, error)
	AppendEntry(ctx context.Context, account solana.PublicKey, content string) (solana.Signature, error)
}

// Refresh fetches the account behind handle. A missing account is a normal
// result ({Exists: false}); any other failure wraps ErrFetchFailure.
func Refresh(ctx context.Context, client Ledger, handle *identity.AccountHandle) (types.AccountState, error) {
	acct, err := client.FetchAccount(ctx, handle.PublicKey())
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return types.AccountState{Exists: false, Entries: []types.ListEntry{}}, nil
	}
	if err != nil {
		return types.AccountState{}, fmt.Errorf("%w: %w", ErrFetchFailure, err)
	}

	entries := make([]types.ListEntry, 0, len(acct.Entries))
	for _, e := range acct.Entries {
		entries = append(entries, types.ListEntry{
			Content:   e.Content,
			Submitter: e.Submitter.String(),
		})
	}
	return types.AccountState{Exists: true, Entries: entries}, nil
}
