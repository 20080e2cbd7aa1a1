package ledger

import "errors"

// Ledger client errors
var (
	ErrInvalidEndpoint      = errors.New("invalid network endpoint")
	ErrInvalidCommitment    = errors.New("invalid commitment level")
	ErrIdentityNotConnected = errors.New("wallet identity not connected")
	ErrSignerMismatch       = errors.New("signer does not match wallet identity")
	ErrNoProgram            = errors.New("program id not configured")
	ErrInvalidSchema        = errors.New("invalid program schema")
	ErrAccountNotFound      = errors.New("account does not exist")
	ErrDecode               = errors.New("account decode failed")
	ErrAlreadyInitialized   = errors.New("account already initialized")
	ErrTransactionFailed    = errors.New("transaction failed")
)
