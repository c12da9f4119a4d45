package common

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"custody-ledger-go/internal/approval"
	"custody-ledger-go/internal/database"
	"custody-ledger-go/internal/formance"
	"custody-ledger-go/internal/models"
	"custody-ledger-go/internal/payout"
	"custody-ledger-go/internal/store"

	"github.com/coinbase-samples/prime-sdk-go/credentials"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// Try to load .env file - if it doesn't exist, that's okay
	// Environment variables can be set via other means (shell export, docker, etc.)
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
		log.Println("Make sure to set environment variables via export or other means")
	} else {
		log.Println("✓ Loaded environment variables from .env file")
	}
}

type Services struct {
	DbService *database.Service
	Mirror    store.LedgerMirror
	Initiator payout.Initiator
	Gateway   *approval.Gateway
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	dbService, err := database.NewService(ctx, cfg.Database, cfg.Settlement)
	if err != nil {
		return nil, err
	}

	var mirror store.LedgerMirror
	if cfg.Formance.Enabled {
		zap.L().Info("Initializing Formance audit mirror")
		formanceService, err := formance.NewService(ctx, cfg.Formance, cfg.Settlement)
		if err != nil {
			dbService.Close()
			return nil, err
		}
		mirror = formanceService
	}

	var initiator payout.Initiator = payout.NoopInitiator{}
	if cfg.Payout.Enabled {
		zap.L().Info("Loading Prime API credentials")
		creds, err := loadPrimeCredentials()
		if err != nil {
			dbService.Close()
			return nil, err
		}

		payoutService, err := payout.NewService(creds)
		if err != nil {
			dbService.Close()
			return nil, err
		}
		if err := payoutService.UseDefaultPortfolio(ctx); err != nil {
			dbService.Close()
			return nil, err
		}
		initiator = payoutService
	}

	gateway := approval.NewGateway(dbService, approval.NewRoleAuthorizer(dbService), initiator, mirror)

	return &Services{
		DbService: dbService,
		Mirror:    mirror,
		Initiator: initiator,
		Gateway:   gateway,
	}, nil
}

// InitializeDatabaseOnly initializes just the database service.
// Useful for read-only operations like querying balances.
func InitializeDatabaseOnly(ctx context.Context, cfg *models.Config) (*database.Service, error) {
	dbService, err := database.NewService(ctx, cfg.Database, cfg.Settlement)
	if err != nil {
		return nil, err
	}
	return dbService, nil
}

func (cs *Services) Close() {
	if cs.DbService != nil {
		cs.DbService.Close()
	}
}

func loadPrimeCredentials() (*credentials.Credentials, error) {
	accessKey := os.Getenv("PRIME_ACCESS_KEY")
	passphrase := os.Getenv("PRIME_PASSPHRASE")
	signingKey := os.Getenv("PRIME_SIGNING_KEY")

	if accessKey == "" || passphrase == "" || signingKey == "" {
		return nil, fmt.Errorf("missing required Prime API credentials: PRIME_ACCESS_KEY, PRIME_PASSPHRASE, PRIME_SIGNING_KEY")
	}

	return &credentials.Credentials{
		AccessKey:  accessKey,
		Passphrase: passphrase,
		SigningKey: signingKey,
	}, nil
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
