package portal

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/gotuzzoj23/SolanaDApp/internal/identity"
	"github.com/gotuzzoj23/SolanaDApp/internal/types"
)

// ValidateContent trims content and checks that it is an absolute URI of
// any scheme (https, ipfs, ar, data...). Empty content is returned as ""
// without error.
func ValidateContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", nil
	}

	u, err := url.Parse(content)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidContent, err)
	}
	if u.Scheme == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidContent, content)
	}
	return content, nil
}

// Submit appends content to the account behind handle with one transaction
// signed by the wallet. Blank content is a silent no-op. There is no retry.
func Submit(ctx context.Context, client Ledger, handle *identity.AccountHandle, id types.WalletIdentity, content string) error {
	content, err := ValidateContent(content)
	if err != nil {
		return err
	}
	if content == "" {
		return nil
	}
	if !id.Connected() {
		return ErrNotConnected
	}

	if _, err := client.AppendEntry(ctx, handle.PublicKey(), content); err != nil {
		return fmt.Errorf("%w: append entry: %w", ErrTransactionFailure, err)
	}
	return nil
}
