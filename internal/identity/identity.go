// Package identity handles loading and generating the fixed key pair that
// identifies the shared ledger account. One pre-provisioned key pair is
// shared by every client; it is loaded once at process start and is never
// regenerated by the running client. Its private key is only used to
// co-sign the one-time account creation transaction.
//
// Three on-disk formats are accepted:
//   - solana-keygen JSON: an array of 64 byte values
//   - web3 keypair export: {"_keypair": {"secretKey": {"0": n, ...}}}
//   - PEM with PKCS8 encoding of an ed25519 private key
package identity

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/gagliardetto/solana-go"
)

var (
	// ErrKeyExists is returned when generating over an existing key file.
	ErrKeyExists = errors.New("account key file already exists")
	// ErrInvalidKey is returned when a key file cannot be decoded.
	ErrInvalidKey = errors.New("invalid account key file")
)

// AccountHandle is the fixed key pair identifying the remote account slot.
type AccountHandle struct {
	privateKey solana.PrivateKey
	publicKey  solana.PublicKey
}

// NewAccountHandle creates an AccountHandle from a private key
func NewAccountHandle(priv solana.PrivateKey) (*AccountHandle, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: want %d byte private key, got %d", ErrInvalidKey, ed25519.PrivateKeySize, len(priv))
	}
	return &AccountHandle{
		privateKey: priv,
		publicKey:  priv.PublicKey(),
	}, nil
}

// NewRandomAccountHandle creates a throwaway handle, used by tests and by
// the keygen command.
func NewRandomAccountHandle() (*AccountHandle, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return NewAccountHandle(solana.PrivateKey(priv))
}

// PublicKey returns the account address
func (h *AccountHandle) PublicKey() solana.PublicKey {
	return h.publicKey
}

// PrivateKey returns the raw private key
func (h *AccountHandle) PrivateKey() solana.PrivateKey {
	return h.privateKey
}

// Sign signs message with the account key.
func (h *AccountHandle) Sign(message []byte) (solana.Signature, error) {
	return h.privateKey.Sign(message)
}

// String returns the base58 account address
func (h *AccountHandle) String() string {
	return h.publicKey.String()
}

// LoadAccountHandle loads the account key pair from keyPath.
func LoadAccountHandle(keyPath string) (*AccountHandle, error) {
	data, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, err
	}
	priv, err := decodeKey(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", keyPath, err)
	}
	return NewAccountHandle(priv)
}

// GenerateAccountHandle creates a new key pair and saves it to keyPath in
// solana-keygen JSON format with 0600 permissions. It refuses to replace a
// non-empty file so a provisioned account is never regenerated by accident.
func GenerateAccountHandle(keyPath string) (*AccountHandle, error) {
	if info, err := os.Stat(keyPath); err == nil && info.Size() > 0 {
		return nil, fmt.Errorf("%w: %s", ErrKeyExists, keyPath)
	}

	h, err := NewRandomAccountHandle()
	if err != nil {
		return nil, err
	}

	out, err := EncodeKeygenJSON(h.privateKey)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(keyPath, out, 0600); err != nil {
		return nil, err
	}
	return h, nil
}

// EncodeKeygenJSON renders priv the way solana-keygen writes key files.
func EncodeKeygenJSON(priv solana.PrivateKey) ([]byte, error) {
	ints := make([]int, len(priv))
	for i, b := range priv {
		ints[i] = int(b)
	}
	return json.Marshal(ints)
}

func decodeKey(data []byte) (solana.PrivateKey, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrInvalidKey)
	}

	switch trimmed[0] {
	case '[':
		var ints []int
		if err := json.Unmarshal(trimmed, &ints); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		return bytesFromInts(ints)
	case '{':
		return decodeWeb3Export(trimmed)
	}

	pemBlock, _ := pem.Decode(trimmed)
	if pemBlock == nil {
		return nil, fmt.Errorf("%w: unrecognised format", ErrInvalidKey)
	}

	genericKey, err := x509.ParsePKCS8PrivateKey(pemBlock.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	privKey, ok := genericKey.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: key is not an ed25519 private key", ErrInvalidKey)
	}
	return solana.PrivateKey(privKey), nil
}

// decodeWeb3Export reads the object form produced by serialising a web3
// Keypair, whose secret key is an object keyed by byte index.
func decodeWeb3Export(data []byte) (solana.PrivateKey, error) {
	var export struct {
		Keypair struct {
			SecretKey map[string]int `json:"secretKey"`
		} `json:"_keypair"`
	}
	if err := json.Unmarshal(data, &export); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	secret := export.Keypair.SecretKey
	indexes := make([]int, 0, len(secret))
	for k := range secret {
		i, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("%w: secret key index %q", ErrInvalidKey, k)
		}
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	ints := make([]int, 0, len(indexes))
	for n, i := range indexes {
		if n != i {
			return nil, fmt.Errorf("%w: secret key index %d missing", ErrInvalidKey, n)
		}
		ints = append(ints, secret[strconv.Itoa(i)])
	}
	return bytesFromInts(ints)
}

func bytesFromInts(ints []int) (solana.PrivateKey, error) {
	if len(ints) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidKey, ed25519.PrivateKeySize, len(ints))
	}
	out := make([]byte, len(ints))
	for i, v := range ints {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("%w: byte %d out of range", ErrInvalidKey, i)
		}
		out[i] = byte(v)
	}
	return solana.PrivateKey(out), nil
}
