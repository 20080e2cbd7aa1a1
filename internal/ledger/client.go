// Package ledger talks to the Solana program that stores the shared list.
// A Client is bound to one connected wallet identity and is rebuilt whenever
// that identity changes.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"

	"github.com/gotuzzoj23/SolanaDApp/internal/types"
)

// Signer is the connected wallet. It signs serialized transaction messages.
type Signer interface {
	PublicKey() solana.PublicKey
	SignMessage(ctx context.Context, message []byte) (solana.Signature, error)
}

// Keypair is a locally held key, used for the account handle when it
// co-signs the creation transaction.
type Keypair interface {
	PublicKey() solana.PublicKey
	Sign(message []byte) (solana.Signature, error)
}

// Client is a ledger client bound to one wallet identity.
type Client struct {
	rpc        *rpc.Client
	network    NetworkConfig
	commitment rpc.CommitmentType
	schema     Schema
	signer     Signer
	wallet     solana.PublicKey
}

// Build constructs a client for id. It performs no network I/O.
func Build(id types.WalletIdentity, network NetworkConfig, schema Schema, signer Signer) (*Client, error) {
	endpoint, err := network.EndpointURL()
	if err != nil {
		return nil, err
	}
	commitment, err := network.CommitmentLevel()
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	if !id.Connected() || signer == nil {
		return nil, ErrIdentityNotConnected
	}

	wallet, err := solana.PublicKeyFromBase58(id.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIdentityNotConnected, err)
	}
	if !signer.PublicKey().Equals(wallet) {
		return nil, fmt.Errorf("%w: identity %s, signer %s", ErrSignerMismatch, wallet, signer.PublicKey())
	}

	return &Client{
		rpc:        rpc.New(endpoint),
		network:    network,
		commitment: commitment,
		schema:     schema,
		signer:     signer,
		wallet:     wallet,
	}, nil
}

// Wallet returns the wallet key the client is bound to
func (c *Client) Wallet() solana.PublicKey {
	return c.wallet
}

// Schema returns the program schema
func (c *Client) Schema() Schema {
	return c.schema
}

// FetchAccount reads and decodes the program account. It returns
// ErrAccountNotFound when the account has not been created.
func (c *Client) FetchAccount(ctx context.Context, account solana.PublicKey) (*Account, error) {
	out, err := c.rpc.GetAccountInfoWithOpts(ctx, account, &rpc.GetAccountInfoOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: c.commitment,
	})
	if errors.Is(err, rpc.ErrNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", account, err)
	}
	if out == nil || out.Value == nil {
		return nil, ErrAccountNotFound
	}
	if !out.Value.Owner.Equals(c.schema.ProgramID) {
		return nil, fmt.Errorf("%w: account %s is owned by %s", ErrDecode, account, out.Value.Owner)
	}
	if out.Value.Data == nil {
		return nil, fmt.Errorf("%w: account %s has no data", ErrDecode, account)
	}
	return c.schema.DecodeAccount(out.Value.Data.GetBinary())
}

// CreateAccount sends the one-time creation transaction. The wallet pays;
// handle and wallet both sign.
func (c *Client) CreateAccount(ctx context.Context, handle Keypair) (solana.Signature, error) {
	ix := c.schema.CreateAccountInstruction(handle.PublicKey(), c.wallet)
	sig, err := c.send(ctx, ix, handle)
	if err != nil && alreadyInUse(err) {
		return sig, fmt.Errorf("%w: %s", ErrAlreadyInitialized, handle.PublicKey())
	}
	return sig, err
}

// AppendEntry sends a transaction appending content to account.
func (c *Client) AppendEntry(ctx context.Context, account solana.PublicKey, content string) (solana.Signature, error) {
	ix, err := c.schema.AppendEntryInstruction(account, c.wallet, content)
	if err != nil {
		return solana.Signature{}, err
	}
	return c.send(ctx, ix)
}

func (c *Client) send(ctx context.Context, ix solana.Instruction, extra ...Keypair) (solana.Signature, error) {
	latest, err := c.rpc.GetLatestBlockhash(ctx, c.commitment)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("%w: latest blockhash: %w", ErrTransactionFailed, err)
	}

	tx, err := solana.NewTransaction(
		[]solana.Instruction{ix},
		latest.Value.Blockhash,
		solana.TransactionPayer(c.wallet),
	)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("%w: build: %w", ErrTransactionFailed, err)
	}
	if err := c.sign(ctx, tx, extra); err != nil {
		return solana.Signature{}, err
	}

	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: c.commitment,
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("%w: %w", ErrTransactionFailed, err)
	}

	if err := c.confirm(ctx, sig); err != nil {
		return sig, err
	}
	return sig, nil
}

// sign fills the signature slots in account key order. The wallet signs
// through the provider, local keypairs sign directly.
func (c *Client) sign(ctx context.Context, tx *solana.Transaction, extra []Keypair) error {
	message, err := tx.Message.MarshalBinary()
	if err != nil {
		return fmt.Errorf("%w: encode message: %w", ErrTransactionFailed, err)
	}

	required := int(tx.Message.Header.NumRequiredSignatures)
	if required > len(tx.Message.AccountKeys) {
		return fmt.Errorf("%w: %d signatures required, %d account keys", ErrTransactionFailed, required, len(tx.Message.AccountKeys))
	}

	tx.Signatures = make([]solana.Signature, 0, required)
	for _, key := range tx.Message.AccountKeys[:required] {
		var sig solana.Signature
		switch {
		case key.Equals(c.wallet):
			sig, err = c.signer.SignMessage(ctx, message)
		default:
			kp := findKeypair(extra, key)
			if kp == nil {
				return fmt.Errorf("%w: no signer for %s", ErrTransactionFailed, key)
			}
			sig, err = kp.Sign(message)
		}
		if err != nil {
			return fmt.Errorf("sign as %s: %w", key, err)
		}
		tx.Signatures = append(tx.Signatures, sig)
	}
	return nil
}

func findKeypair(keys []Keypair, pk solana.PublicKey) Keypair {
	for _, k := range keys {
		if k.PublicKey().Equals(pk) {
			return k
		}
	}
	return nil
}

// confirm polls the signature status until the configured commitment is
// reached, the transaction fails, or the confirm timeout elapses.
func (c *Client) confirm(ctx context.Context, sig solana.Signature) error {
	ctx, cancel := context.WithTimeout(ctx, c.network.confirmTimeout())
	defer cancel()

	ticker := time.NewTicker(c.network.pollInterval())
	defer ticker.Stop()

	for {
		out, err := c.rpc.GetSignatureStatuses(ctx, false, sig)
		if err == nil && out != nil && len(out.Value) > 0 && out.Value[0] != nil {
			status := out.Value[0]
			if status.Err != nil {
				return fmt.Errorf("%w: %s: %v", ErrTransactionFailed, sig, status.Err)
			}
			if reached(status.ConfirmationStatus, c.commitment) {
				return nil
			}
		} else if err != nil && ctx.Err() == nil {
			log.Printf("ledger: signature status %s: %v", sig, err)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s not confirmed: %w", ErrTransactionFailed, sig, ctx.Err())
		case <-ticker.C:
		}
	}
}

// alreadyInUse reports whether a send failure means the account exists.
// The system program reports this as custom error 0x0 with an
// "already in use" log line.
func alreadyInUse(err error) bool {
	var rpcErr *jsonrpc.RPCError
	if !errors.As(err, &rpcErr) {
		return false
	}
	text := rpcErr.Message
	if rpcErr.Data != nil {
		text += " " + fmt.Sprint(rpcErr.Data)
	}
	return strings.Contains(text, "already in use")
}
