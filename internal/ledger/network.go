package ledger

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
)

const (
	defaultConfirmTimeout = 60 * time.Second
	defaultPollInterval   = 500 * time.Millisecond
)

// clusters maps the cluster monikers accepted in configuration to RPC URLs.
var clusters = map[string]string{
	"devnet":       rpc.DevNet_RPC,
	"testnet":      rpc.TestNet_RPC,
	"mainnet-beta": rpc.MainNetBeta_RPC,
	"localnet":     rpc.LocalNet_RPC,
}

// commitmentRank orders commitment levels from least to most final.
var commitmentRank = map[rpc.CommitmentType]int{
	rpc.CommitmentProcessed: 1,
	rpc.CommitmentConfirmed: 2,
	rpc.CommitmentFinalized: 3,
}

// NetworkConfig is the process-wide ledger network configuration.
type NetworkConfig struct {
	// Endpoint is an http(s) RPC URL or a cluster moniker such as "devnet".
	Endpoint string
	// Commitment controls how final reads and writes must be. Defaults to
	// processed.
	Commitment rpc.CommitmentType
	// ConfirmTimeout bounds how long a sent transaction may take to reach
	// Commitment.
	ConfirmTimeout time.Duration
	// PollInterval is the delay between signature status polls.
	PollInterval time.Duration
}

// EndpointURL resolves monikers and validates the endpoint.
func (n NetworkConfig) EndpointURL() (string, error) {
	endpoint := strings.TrimSpace(n.Endpoint)
	if resolved, ok := clusters[endpoint]; ok {
		return resolved, nil
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: %q needs an http or https scheme", ErrInvalidEndpoint, n.Endpoint)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: %q has no host", ErrInvalidEndpoint, n.Endpoint)
	}
	return u.String(), nil
}

// CommitmentLevel returns the configured commitment, defaulting to processed.
func (n NetworkConfig) CommitmentLevel() (rpc.CommitmentType, error) {
	if n.Commitment == "" {
		return rpc.CommitmentProcessed, nil
	}
	if _, ok := commitmentRank[n.Commitment]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidCommitment, n.Commitment)
	}
	return n.Commitment, nil
}

// Validate checks both the endpoint and the commitment.
func (n NetworkConfig) Validate() error {
	if _, err := n.EndpointURL(); err != nil {
		return err
	}
	_, err := n.CommitmentLevel()
	return err
}

func (n NetworkConfig) confirmTimeout() time.Duration {
	if n.ConfirmTimeout <= 0 {
		return defaultConfirmTimeout
	}
	return n.ConfirmTimeout
}

func (n NetworkConfig) pollInterval() time.Duration {
	if n.PollInterval <= 0 {
		return defaultPollInterval
	}
	return n.PollInterval
}

// reached reports whether status satisfies the commitment level.
func reached(status rpc.ConfirmationStatusType, want rpc.CommitmentType) bool {
	got, ok := commitmentRank[rpc.CommitmentType(status)]
	if !ok {
		return false
	}
	return got >= commitmentRank[want]
}
