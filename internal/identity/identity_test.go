// Package identity tests validate loading and generating the shared account
// key pair in each supported file format, and that provisioned key files are
// never overwritten.
package identity

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func TestGenerateAndLoad(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "account.json")

	h1, err := GenerateAccountHandle(keyPath)
	if err != nil {
		t.Fatalf("Failed to generate handle: %v", err)
	}

	h2, err := LoadAccountHandle(keyPath)
	if err != nil {
		t.Fatalf("Failed to load handle: %v", err)
	}

	if !h1.PublicKey().Equals(h2.PublicKey()) {
		t.Errorf("Loaded handle differs from original. Got %s, want %s", h2, h1)
	}

	info, err := os.Stat(keyPath)
	if err != nil {
		t.Fatalf("Failed to stat key file: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Key file has wrong permissions. Got %v, want %v", info.Mode().Perm(), 0600)
	}
}

func TestGenerateRefusesOverwrite(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "account.json")
	if _, err := GenerateAccountHandle(keyPath); err != nil {
		t.Fatalf("Failed to generate handle: %v", err)
	}

	_, err := GenerateAccountHandle(keyPath)
	if !errors.Is(err, ErrKeyExists) {
		t.Fatalf("Expected ErrKeyExists, got %v", err)
	}
}

func TestLoadWeb3Export(t *testing.T) {
	h, err := NewRandomAccountHandle()
	if err != nil {
		t.Fatalf("Failed to create handle: %v", err)
	}

	secret := make(map[string]int)
	for i, b := range h.PrivateKey() {
		secret[strconv.Itoa(i)] = int(b)
	}
	data, err := json.Marshal(map[string]any{
		"_keypair": map[string]any{"secretKey": secret},
	})
	if err != nil {
		t.Fatalf("marshal export: %v", err)
	}

	keyPath := filepath.Join(t.TempDir(), ".keypair.json")
	if err := os.WriteFile(keyPath, data, 0600); err != nil {
		t.Fatalf("write export: %v", err)
	}

	loaded, err := LoadAccountHandle(keyPath)
	if err != nil {
		t.Fatalf("Failed to load export: %v", err)
	}
	if !loaded.PublicKey().Equals(h.PublicKey()) {
		t.Errorf("Got %s, want %s", loaded, h)
	}
}

func TestLoadPEM(t *testing.T) {
	h, err := NewRandomAccountHandle()
	if err != nil {
		t.Fatalf("Failed to create handle: %v", err)
	}

	der, err := x509.MarshalPKCS8PrivateKey(ed25519.PrivateKey(h.PrivateKey()))
	if err != nil {
		t.Fatalf("marshal pkcs8: %v", err)
	}
	keyPath := filepath.Join(t.TempDir(), "account.pem")
	if err := os.WriteFile(keyPath, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), 0600); err != nil {
		t.Fatalf("write pem: %v", err)
	}

	loaded, err := LoadAccountHandle(keyPath)
	if err != nil {
		t.Fatalf("Failed to load pem: %v", err)
	}
	if !loaded.PublicKey().Equals(h.PublicKey()) {
		t.Errorf("Got %s, want %s", loaded, h)
	}
}

func TestLoadInvalid(t *testing.T) {
	cases := map[string]string{
		"empty":      "",
		"short":      "[1,2,3]",
		"range":      "[" + strings.Repeat("300,", 63) + "300]",
		"garbage":    "not a key",
		"sparse map": `{"_keypair":{"secretKey":{"0":1,"2":3}}}`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			keyPath := filepath.Join(t.TempDir(), "bad.json")
			if err := os.WriteFile(keyPath, []byte(body), 0600); err != nil {
				t.Fatalf("write: %v", err)
			}
			if _, err := LoadAccountHandle(keyPath); !errors.Is(err, ErrInvalidKey) {
				t.Errorf("Expected ErrInvalidKey, got %v", err)
			}
		})
	}
}

func TestSignVerifies(t *testing.T) {
	h, err := NewRandomAccountHandle()
	if err != nil {
		t.Fatalf("Failed to create handle: %v", err)
	}
	msg := []byte("create the portal account")
	sig, err := h.Sign(msg)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if !sig.Verify(h.PublicKey(), msg) {
		t.Error("Failed to verify signature with own public key")
	}
}
