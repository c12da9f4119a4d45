package main

import (
	"context"
	"flag"
	"fmt"

	"custody-ledger-go/internal/api"
	"custody-ledger-go/internal/common"
	"custody-ledger-go/internal/config"
	"custody-ledger-go/internal/pricer"

	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	emailFlag := flag.String("email", "", "Limit the report to one user (optional)")
	markReadFlag := flag.Bool("mark-read", false, "Mark displayed ledger entries as read")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	assets, err := common.LoadAssetConfig(cfg.Catalog.AssetsFile)
	if err != nil {
		logger.Fatal("Failed to load asset catalog", zap.Error(err))
	}

	p, err := pricer.NewStaticPricerFromFile(cfg.Catalog.InstrumentsFile)
	if err != nil {
		logger.Fatal("Failed to load instrument catalog", zap.Error(err))
	}

	ledgerService := api.NewLedgerService(dbService, nil, p, common.NewAssetCatalog(assets))

	users, err := common.InitializeUsers(ctx, dbService, *emailFlag, logger)
	if err != nil {
		logger.Fatal("Failed to load users", zap.Error(err))
	}

	common.PrintHeader("ACCOUNT REPORT", common.WideWidth)

	for _, user := range users {
		fmt.Printf("\n%s (%s)\n", user.Name, user.Email)

		balances, err := ledgerService.GetAllBalances(ctx, user.Id)
		if err != nil {
			logger.Error("Failed to read balances", zap.String("user_id", user.Id), zap.Error(err))
			continue
		}
		if len(balances) == 0 {
			fmt.Printf("%sno balances\n", common.BoxPrefix(false))
		}
		for _, balance := range balances {
			fmt.Printf("%s%s on %s: %s\n",
				common.BoxPrefix(false), balance.Coin, balance.Network, balance.Quantity.String())
		}

		valuation, err := ledgerService.PortfolioValue(ctx, user.Id)
		if err != nil {
			logger.Error("Failed to value portfolio", zap.String("user_id", user.Id), zap.Error(err))
			continue
		}
		for _, holding := range valuation.Holdings {
			fmt.Printf("%s%s: %s shares at %s = %s\n",
				common.BoxPrefix(false), holding.Symbol,
				holding.Shares.String(), holding.Price.String(), holding.Value.String())
		}
		fmt.Printf("%sPortfolio value: %s\n", common.BoxPrefix(false), valuation.Total.String())

		unread, err := ledgerService.UnreadCount(ctx, user.Id)
		if err != nil {
			logger.Error("Failed to count unread entries", zap.String("user_id", user.Id), zap.Error(err))
			continue
		}
		fmt.Printf("%sUnread ledger entries: %d\n", common.BoxPrefix(true), unread)

		if *markReadFlag && unread > 0 {
			if err := ledgerService.MarkLedgerRead(ctx, user.Id); err != nil {
				logger.Error("Failed to mark ledger read", zap.String("user_id", user.Id), zap.Error(err))
			}
		}
	}

	common.PrintFooter("Done", common.WideWidth)
}
