package portal

import (
	"errors"
	"fmt"

	"github.com/gotuzzoj23/SolanaDApp/internal/ledger"
	"github.com/gotuzzoj23/SolanaDApp/internal/types"
	"github.com/gotuzzoj23/SolanaDApp/internal/wallet"
)

// Portal errors
var (
	ErrAccountUninitialized = errors.New("account not initialized")
	ErrFetchFailure         = errors.New("account fetch failed")
	ErrAlreadyInitialized   = ledger.ErrAlreadyInitialized
	ErrTransactionFailure   = errors.New("transaction failed")
	ErrNotConnected         = errors.New("wallet not connected")
	ErrOperationInProgress  = errors.New("operation already in progress")
	ErrInvalidContent       = errors.New("content must be an absolute URI")
)

// InProgressError is returned when a mutation is rejected because another
// one is pending for the same account.
type InProgressError struct {
	OpID string // pending operation
}

func (e *InProgressError) Error() string {
	return fmt.Sprintf("%s: %s", ErrOperationInProgress, e.OpID)
}

// Is matches ErrOperationInProgress.
func (e *InProgressError) Is(target error) bool {
	return target == ErrOperationInProgress
}

// Classify maps an error to the failure kind shown to the user.
func Classify(err error) types.FailureKind {
	switch {
	case err == nil:
		return types.FailureNone
	case errors.Is(err, ErrOperationInProgress):
		return types.FailureInProgress
	case errors.Is(err, ErrNotConnected), errors.Is(err, wallet.ErrNotConnected), errors.Is(err, ledger.ErrIdentityNotConnected):
		return types.FailureNotConnected
	case errors.Is(err, wallet.ErrWalletUnavailable):
		return types.FailureWalletUnavailable
	case errors.Is(err, wallet.ErrUserRejected):
		return types.FailureUserRejected
	case errors.Is(err, ErrAlreadyInitialized):
		return types.FailureAlreadyInitialized
	case errors.Is(err, ErrInvalidContent):
		return types.FailureInvalidContent
	case errors.Is(err, ErrTransactionFailure), errors.Is(err, ledger.ErrTransactionFailed):
		return types.FailureTransaction
	case errors.Is(err, ErrFetchFailure):
		return types.FailureFetch
	case errors.Is(err, ErrAccountUninitialized):
		return types.FailureAccountUninitialized
	}
	return types.FailureUnknown
}
