// Package types defines the core domain models for the gif portal client.
// It contains the wallet identity, the mirrored ledger account state and
// the failure kinds used across the application. The ledger is the source
// of truth; everything here is a local view of it.
package types

import "time"

// Version is the current version of the portal client
const Version = "0.1.0"

// BuildTime is set at build time via -ldflags
var BuildTime = "dev"

// WalletStatus represents where the wallet session is in its handshake
type WalletStatus string

const (
	StatusDisconnected WalletStatus = "disconnected"
	StatusConnecting   WalletStatus = "connecting"
	StatusConnected    WalletStatus = "connected"
)

// WalletIdentity is the authenticated wallet identity of the current session.
// PublicKey is empty unless Status is StatusConnected.
type WalletIdentity struct {
	PublicKey string       `json:"public_key,omitempty"` // base58 wallet public key
	Status    WalletStatus `json:"status"`
}

// Connected reports whether the identity completed a wallet handshake.
func (w WalletIdentity) Connected() bool {
	return w.Status == StatusConnected && w.PublicKey != ""
}

// ListEntry is one immutable item appended to the ledger account.
type ListEntry struct {
	Content   string `json:"content"`   // submitted URI
	Submitter string `json:"submitter"` // base58 public key of the submitter
}

// AccountState mirrors the remote ledger account. It is always replaced
// wholesale from a fresh fetch and never patched locally.
type AccountState struct {
	Exists  bool        `json:"exists"`
	Entries []ListEntry `json:"entries"`
}

// FailureKind classifies a non-fatal failure surfaced to the user
type FailureKind string

const (
	FailureNone                 FailureKind = ""
	FailureWalletUnavailable    FailureKind = "wallet_unavailable"
	FailureUserRejected         FailureKind = "user_rejected"
	FailureNotConnected         FailureKind = "not_connected"
	FailureAccountUninitialized FailureKind = "account_uninitialized"
	FailureFetch                FailureKind = "fetch_failure"
	FailureAlreadyInitialized   FailureKind = "already_initialized"
	FailureTransaction          FailureKind = "transaction_failure"
	FailureInProgress           FailureKind = "operation_in_progress"
	FailureInvalidContent       FailureKind = "invalid_content"
	FailureUnknown              FailureKind = "unknown"
)

// Failure records the most recent failure of an operation. It never
// replaces the last known account state.
type Failure struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
	OpID    string      `json:"op_id,omitempty"`
	At      time.Time   `json:"at"`
}

// Snapshot is the full view handed to the renderer.
type Snapshot struct {
	Identity WalletIdentity `json:"identity"`
	Account  string         `json:"account"`             // base58 address of the shared account
	State    *AccountState  `json:"state"`               // nil until the first successful fetch
	Failure  *Failure       `json:"failure,omitempty"`   // last failure, cleared by the next success
	InFlight string         `json:"in_flight,omitempty"` // operation ID of the pending mutation
	Input    string         `json:"input"`               // pending input buffer
}

// NeedsSetup reports whether the renderer should offer the one-time
// account initialization.
func (s Snapshot) NeedsSetup() bool {
	return s.Identity.Connected() && s.State != nil && !s.State.Exists
}
