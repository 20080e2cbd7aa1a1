package wallet

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const (
	defaultTrustDBFile = "wallet_trust.db"
	maxBusyTimeoutMs   = 5000
)

// TrustStore remembers which origins the wallet owner approved, backed by a
// SQLite database file. It is the wallet's state, not the client's.
type TrustStore struct {
	mu   sync.Mutex
	db   *sql.DB
	file string
}

// OpenTrustStore opens or creates the trust database at filePath.
func OpenTrustStore(filePath string) (*TrustStore, error) {
	if filePath == "" {
		filePath = defaultTrustDBFile
	}

	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return nil, fmt.Errorf("resolve trust db path: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return nil, fmt.Errorf("create trust db directory: %w", err)
	}

	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s", filepath.Clean(absPath)))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d", maxBusyTimeoutMs)); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	s := &TrustStore{db: db, file: absPath}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *TrustStore) ensureSchema() error {
	const schema = `
CREATE TABLE IF NOT EXISTS trusted_origins (
	origin      TEXT NOT NULL,
	public_key  TEXT NOT NULL,
	approved_at INTEGER NOT NULL,
	PRIMARY KEY (origin, public_key)
);`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create trust schema: %w", err)
	}
	return nil
}

// IsTrusted reports whether origin was approved for publicKey.
func (s *TrustStore) IsTrusted(ctx context.Context, origin, publicKey string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM trusted_origins WHERE origin = ? AND public_key = ?`,
		origin, publicKey,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query trust: %w", err)
	}
	return n > 0, nil
}

// Trust records an approval of origin for publicKey.
func (s *TrustStore) Trust(ctx context.Context, origin, publicKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO trusted_origins (origin, public_key, approved_at) VALUES (?, ?, ?)
		 ON CONFLICT(origin, public_key) DO UPDATE SET approved_at = excluded.approved_at`,
		origin, publicKey, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("record trust: %w", err)
	}
	return nil
}

// Revoke removes every approval of origin.
func (s *TrustStore) Revoke(ctx context.Context, origin string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM trusted_origins WHERE origin = ?`, origin); err != nil {
		return fmt.Errorf("revoke trust: %w", err)
	}
	return nil
}

// Close releases the underlying database connection.
func (s *TrustStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
