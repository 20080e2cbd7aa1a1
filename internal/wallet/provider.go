// Package wallet manages the connection to the user's wallet. A Provider is
// the wallet agent holding the user's private key (the analogue of a browser
// wallet extension); a Session tracks the handshake with it and publishes
// identity changes to subscribers.
package wallet

import (
	"context"
	"errors"
	"reflect"

	"github.com/gagliardetto/solana-go"
)

// Wallet errors
var (
	ErrWalletUnavailable = errors.New("wallet unavailable")
	ErrUserRejected      = errors.New("user rejected the request")
	ErrNotConnected      = errors.New("wallet not connected")
	ErrConnecting        = errors.New("wallet connection already in progress")
)

// ConnectOptions mirrors the options accepted by wallet extensions.
type ConnectOptions struct {
	// OnlyIfTrusted connects without prompting, and fails unless the wallet
	// already trusts this origin.
	OnlyIfTrusted bool
}

// Provider is the wallet agent. Implementations must return
// ErrUserRejected when the user declines or when OnlyIfTrusted is set and
// the origin is not trusted.
type Provider interface {
	Connect(ctx context.Context, opts ConnectOptions) (solana.PublicKey, error)
	SignMessage(ctx context.Context, message []byte) (solana.Signature, error)
}

// DisconnectNotifier is implemented by providers that can end a session on
// their own, for example when the wallet is locked or switches accounts.
type DisconnectNotifier interface {
	OnDisconnect(func())
}

// available reports whether p is a usable provider. A typed nil stored in
// the interface counts as absent.
func available(p Provider) bool {
	if p == nil {
		return false
	}
	v := reflect.ValueOf(p)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return !v.IsNil()
	}
	return true
}

// Signer signs ledger transactions with a connected wallet key.
type Signer struct {
	provider Provider
	key      solana.PublicKey
}

// PublicKey returns the wallet key the signer is bound to
func (s *Signer) PublicKey() solana.PublicKey {
	return s.key
}

// SignMessage asks the wallet to sign a serialized transaction message.
func (s *Signer) SignMessage(ctx context.Context, message []byte) (solana.Signature, error) {
	return s.provider.SignMessage(ctx, message)
}
