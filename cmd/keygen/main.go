// Command keygen creates the key pair for the shared list account.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/gotuzzoj23/SolanaDApp/internal/identity"
)

func main() {
	out := flag.String("out", "account_key.json", "where to write the account key")
	flag.Parse()

	h, err := identity.GenerateAccountHandle(*out)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to generate key: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✓ Key generated: %s\n", *out)
	fmt.Printf("  Account: %s\n", h.PublicKey())
}
