package portal

import (
	"context"
	"errors"
	"fmt"

	"github.com/gotuzzoj23/SolanaDApp/internal/identity"
	"github.com/gotuzzoj23/SolanaDApp/internal/types"
)

// Initialize sends the one-time creation transaction for handle, co-signed
// by the handle key and the wallet. It is not idempotent: an existing
// account yields ErrAlreadyInitialized.
func Initialize(ctx context.Context, client Ledger, handle *identity.AccountHandle, id types.WalletIdentity) error {
	if !id.Connected() {
		return ErrNotConnected
	}

	if _, err := client.CreateAccount(ctx, handle); err != nil {
		if errors.Is(err, ErrAlreadyInitialized) {
			return err
		}
		return fmt.Errorf("%w: create account: %w", ErrTransactionFailure, err)
	}
	return nil
}
