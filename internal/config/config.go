// Package config centralizes runtime configuration for the portal client.
// It loads a JSON configuration file, applies GP_-prefixed environment
// overrides and exposes a process-wide configuration with sensible
// defaults. Development runs use defaults when the file is not present.
package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/gotuzzoj23/SolanaDApp/internal/ledger"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "GP_"

// Config holds configurable options for the portal client.
type Config struct {
	Endpoint              string   `json:"endpoint" env:"ENDPOINT"`
	Commitment            string   `json:"commitment" env:"COMMITMENT"`
	ConfirmTimeoutSeconds int      `json:"confirm_timeout_seconds" env:"CONFIRM_TIMEOUT_SECONDS"`
	IDLFile               string   `json:"idl_file" env:"IDL_FILE"`
	ProgramID             string   `json:"program_id" env:"PROGRAM_ID"` // overrides the IDL address
	AccountKeyFile        string   `json:"account_key_file" env:"ACCOUNT_KEY_FILE"`
	WalletKeyFile         string   `json:"wallet_key_file" env:"WALLET_KEY_FILE"`
	TrustDBFile           string   `json:"trust_db_file" env:"TRUST_DB_FILE"`
	Origin                string   `json:"origin" env:"ORIGIN"`
	AutoApprove           bool     `json:"auto_approve" env:"AUTO_APPROVE"`
	Port                  int      `json:"port" env:"PORT"`
	AllowedOrigins        []string `json:"allowed_origins" env:"ALLOWED_ORIGINS" envSeparator:","`
	NoticeBuffer          int      `json:"notice_buffer" env:"NOTICE_BUFFER"`
	DocsDir               string   `json:"docs_dir" env:"DOCS_DIR"`
	OTelEndpoint          string   `json:"otel_endpoint" env:"OTEL_ENDPOINT"`
	OTelServiceName       string   `json:"otel_service_name" env:"OTEL_SERVICE_NAME"`
}

var cfg *Config

// Defaults returns the built-in configuration.
func Defaults() *Config {
	walletKey := "id.json"
	if home, err := os.UserHomeDir(); err == nil {
		walletKey = filepath.Join(home, ".config", "solana", "id.json")
	}

	return &Config{
		Endpoint:              "devnet",
		Commitment:            string(rpc.CommitmentProcessed),
		ConfirmTimeoutSeconds: 60,
		AccountKeyFile:        "account_key.json",
		WalletKeyFile:         walletKey,
		TrustDBFile:           "wallet_trust.db",
		Origin:                "http://localhost:8080",
		Port:                  8080,
		NoticeBuffer:          200,
		DocsDir:               "docs",
		OTelServiceName:       "gif-portal",
	}
}

// LoadConfig reads a JSON file at path and applies environment overrides.
// A missing or unparsable file falls back to defaults so that the client
// can run in development with minimal friction. Malformed environment
// overrides are an error.
func LoadConfig(path string) (*Config, error) {
	def := Defaults()
	c := *def

	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// file missing -> use defaults
		case err != nil:
			log.Printf("Config: cannot read %s, using defaults: %v", path, err)
		default:
			var fromFile Config
			if err := json.Unmarshal(b, &fromFile); err != nil {
				log.Printf("Config: cannot parse %s, using defaults: %v", path, err)
			} else {
				c = fromFile
			}
		}
	}

	if err := env.ParseWithOptions(&c, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	mergeDefaults(&c, def)

	cfg = &c
	return cfg, nil
}

// mergeDefaults fills zero-value fields from def
func mergeDefaults(c, def *Config) {
	if c.Endpoint == "" {
		c.Endpoint = def.Endpoint
	}
	if c.Commitment == "" {
		c.Commitment = def.Commitment
	}
	if c.ConfirmTimeoutSeconds == 0 {
		c.ConfirmTimeoutSeconds = def.ConfirmTimeoutSeconds
	}
	if c.AccountKeyFile == "" {
		c.AccountKeyFile = def.AccountKeyFile
	}
	if c.WalletKeyFile == "" {
		c.WalletKeyFile = def.WalletKeyFile
	}
	if c.TrustDBFile == "" {
		c.TrustDBFile = def.TrustDBFile
	}
	if c.Origin == "" {
		c.Origin = def.Origin
	}
	if c.Port == 0 {
		c.Port = def.Port
	}
	if c.NoticeBuffer == 0 {
		c.NoticeBuffer = def.NoticeBuffer
	}
	if c.DocsDir == "" {
		c.DocsDir = def.DocsDir
	}
	if c.OTelServiceName == "" {
		c.OTelServiceName = def.OTelServiceName
	}
}

// Network returns the ledger network configuration.
func (c *Config) Network() ledger.NetworkConfig {
	return ledger.NetworkConfig{
		Endpoint:       c.Endpoint,
		Commitment:     rpc.CommitmentType(c.Commitment),
		ConfirmTimeout: time.Duration(c.ConfirmTimeoutSeconds) * time.Second,
	}
}

// Get returns the loaded configuration. If LoadConfig hasn't been called
// yet, it returns defaults.
func Get() *Config {
	if cfg == nil {
		cfg = Defaults()
	}
	return cfg
}
