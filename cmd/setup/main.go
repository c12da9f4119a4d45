package main

import (
	"context"
	"flag"
	"fmt"

	"custody-ledger-go/internal/common"
	"custody-ledger-go/internal/config"
	"custody-ledger-go/internal/pricer"

	"go.uber.org/zap"
)

// Initializes the database schema, verifies the asset and instrument
// catalogs, and optionally creates a user.
func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	nameFlag := flag.String("name", "", "Name for a new user (optional)")
	emailFlag := flag.String("email", "", "Email for a new user (optional)")
	roleFlag := flag.String("role", "user", "Role for a new user: user or admin")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	logger.Info("Connecting to database", zap.String("path", cfg.Database.Path))
	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	assets, err := common.LoadAssetConfig(cfg.Catalog.AssetsFile)
	if err != nil {
		logger.Fatal("Failed to load asset catalog", zap.Error(err))
	}
	logger.Info("Asset catalog loaded", zap.Int("assets", len(assets)))

	instruments, err := pricer.LoadInstrumentConfig(cfg.Catalog.InstrumentsFile)
	if err != nil {
		logger.Fatal("Failed to load instrument catalog", zap.Error(err))
	}
	logger.Info("Instrument catalog loaded", zap.Int("instruments", len(instruments)))

	common.PrintHeader("CUSTODY LEDGER SETUP", common.DefaultWidth)
	fmt.Printf("Database: %s\n", cfg.Database.Path)
	fmt.Printf("Settlement: %s on %s\n", cfg.Settlement.Coin, cfg.Settlement.Network)
	fmt.Printf("Supported assets: %d\n", len(assets))
	for _, a := range assets {
		fmt.Printf("  %s on %s\n", a.Symbol, a.Network)
	}
	fmt.Printf("Tradable instruments: %d\n", len(instruments))
	for _, i := range instruments {
		fmt.Printf("  %s (%s) @ %s\n", i.Symbol, i.Name, i.Price)
	}

	if *nameFlag != "" && *emailFlag != "" {
		user, err := dbService.CreateUser(ctx, *nameFlag, *emailFlag, *roleFlag)
		if err != nil {
			logger.Fatal("Failed to create user", zap.Error(err))
		}
		fmt.Printf("\nCreated user %s (%s) with role %s, id %s\n", user.Name, user.Email, user.Role, user.Id)
	}

	common.PrintFooter("Setup complete", common.DefaultWidth)
}
