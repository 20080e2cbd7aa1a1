// Package main is the entry point for the GIF portal client.
// It loads the account handle and wallet, builds the portal controller and
// serves the renderer API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/gotuzzoj23/SolanaDApp/internal/config"
	"github.com/gotuzzoj23/SolanaDApp/internal/docs"
	"github.com/gotuzzoj23/SolanaDApp/internal/identity"
	"github.com/gotuzzoj23/SolanaDApp/internal/ledger"
	"github.com/gotuzzoj23/SolanaDApp/internal/logger"
	"github.com/gotuzzoj23/SolanaDApp/internal/portal"
	"github.com/gotuzzoj23/SolanaDApp/internal/telemetry"
	"github.com/gotuzzoj23/SolanaDApp/internal/wallet"
	"github.com/gotuzzoj23/SolanaDApp/internal/web"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "path to the JSON config file")
	flag.Parse()

	log.Println("GIF portal starting...")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTelServiceName, cfg.OTelEndpoint)
	if err != nil {
		log.Printf("Warning: tracing disabled: %v", err)
		shutdownTracing = func(context.Context) error { return nil }
	}

	schema, err := loadSchema(cfg)
	if err != nil {
		log.Fatalf("Failed to load program schema: %v", err)
	}
	log.Printf("Program %s on %s", schema.ProgramID, cfg.Endpoint)

	handle, err := identity.LoadAccountHandle(cfg.AccountKeyFile)
	if err != nil {
		log.Fatalf("Failed to load account key %s: %v (create one with cmd/keygen)", cfg.AccountKeyFile, err)
	}
	log.Printf("Shared account %s", handle)

	trust, err := wallet.OpenTrustStore(cfg.TrustDBFile)
	if err != nil {
		log.Fatalf("Failed to open wallet trust store: %v", err)
	}
	defer trust.Close()

	notices := logger.New(cfg.NoticeBuffer)
	session := wallet.NewSession(openProvider(cfg, trust), notices)

	ctrl, err := portal.New(portal.Options{
		Session: session,
		Handle:  handle,
		Build:   portal.LedgerBuilder(cfg.Network(), schema),
		Notices: notices,
	})
	if err != nil {
		log.Fatalf("Failed to initialize portal: %v", err)
	}
	defer ctrl.Close()

	if err := ensurePortAvailable(cfg.Port); err != nil {
		log.Fatalf("Port %d unavailable: %v", cfg.Port, err)
	}

	server := web.NewServer(ctrl, notices, cfg.Port, cfg.AllowedOrigins...)
	server.ServeDocs(docs.NewService(cfg.DocsDir))
	serverErrors := server.Start()

	// Reconnect silently if the wallet already trusts this origin
	go session.AttemptSilentConnect(ctx)

	select {
	case <-ctx.Done():
	case err := <-serverErrors:
		if err != nil {
			log.Printf("Web server exited: %v", err)
		}
	}

	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Warning: web shutdown: %v", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Printf("Warning: tracing shutdown: %v", err)
	}
}

// loadSchema reads the program IDL when configured, then applies the
// program id override
func loadSchema(cfg *config.Config) (ledger.Schema, error) {
	var schema ledger.Schema
	if cfg.IDLFile != "" {
		s, err := ledger.LoadIDL(cfg.IDLFile)
		if err != nil {
			return schema, err
		}
		schema = s
	}

	if cfg.ProgramID != "" {
		id, err := solana.PublicKeyFromBase58(cfg.ProgramID)
		if err != nil {
			return schema, fmt.Errorf("program id: %w", err)
		}
		if cfg.IDLFile == "" {
			schema = ledger.DefaultSchema(id)
		} else {
			schema.ProgramID = id
		}
	}

	return schema, schema.Validate()
}

// openProvider loads the local wallet. A missing wallet file leaves the
// session without a provider so the renderer can prompt for one.
func openProvider(cfg *config.Config, trust *wallet.TrustStore) wallet.Provider {
	approver := wallet.TerminalApprover(os.Stdin, os.Stdout)
	if cfg.AutoApprove {
		log.Println("Warning: auto-approving wallet connections")
		approver = wallet.AutoApprove()
	}

	provider, err := wallet.OpenKeyfileProvider(cfg.WalletKeyFile, cfg.Origin, trust, approver)
	if errors.Is(err, wallet.ErrWalletUnavailable) {
		log.Printf("Warning: no wallet at %s", cfg.WalletKeyFile)
		return nil
	}
	if err != nil {
		log.Fatalf("Failed to load wallet: %v", err)
	}
	return provider
}

func ensurePortAvailable(port int) error {
	addr := fmt.Sprintf(":%d", port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return listener.Close()
}
