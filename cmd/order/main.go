package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"

	"custody-ledger-go/internal/api"
	"custody-ledger-go/internal/common"
	"custody-ledger-go/internal/config"
	"custody-ledger-go/internal/models"
	"custody-ledger-go/internal/pricer"
	"custody-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type orderRequest struct {
	email  string
	symbol string
	shares decimal.Decimal
	side   models.OrderSide
}

func parseAndValidateFlags() (*orderRequest, error) {
	emailFlag := flag.String("email", "", "User email (required)")
	symbolFlag := flag.String("symbol", "", "Instrument symbol, e.g. AAPL (required)")
	sharesFlag := flag.String("shares", "", "Number of shares (required)")
	sideFlag := flag.String("side", "buy", "Order side: buy or sell")
	flag.Parse()

	if *emailFlag == "" || *symbolFlag == "" || *sharesFlag == "" {
		return nil, fmt.Errorf("required flags: --email, --symbol, --shares")
	}

	shares, err := decimal.NewFromString(*sharesFlag)
	if err != nil {
		return nil, fmt.Errorf("invalid shares format: %w", err)
	}
	if shares.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("shares must be greater than zero")
	}

	var side models.OrderSide
	switch *sideFlag {
	case "buy":
		side = models.OrderSideBuy
	case "sell":
		side = models.OrderSideSell
	default:
		return nil, fmt.Errorf("invalid side %q: must be buy or sell", *sideFlag)
	}

	return &orderRequest{
		email:  *emailFlag,
		symbol: *symbolFlag,
		shares: shares,
		side:   side,
	}, nil
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	request, err := parseAndValidateFlags()
	if err != nil {
		logger.Fatal("Invalid arguments", zap.Error(err))
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	assets, err := common.LoadAssetConfig(cfg.Catalog.AssetsFile)
	if err != nil {
		logger.Fatal("Failed to load asset catalog", zap.Error(err))
	}

	p, err := pricer.NewStaticPricerFromFile(cfg.Catalog.InstrumentsFile)
	if err != nil {
		logger.Fatal("Failed to load instrument catalog", zap.Error(err))
	}

	ledgerService := api.NewLedgerService(services.DbService, services.Mirror, p, common.NewAssetCatalog(assets))

	users, err := common.InitializeUsers(ctx, services.DbService, request.email, logger)
	if err != nil {
		logger.Fatal("Failed to find user", zap.Error(err))
	}
	user := users[0]

	var order *models.OrderRecord
	if request.side == models.OrderSideBuy {
		order, err = ledgerService.SubmitBuyOrder(ctx, user.Id, request.symbol, request.shares)
	} else {
		order, err = ledgerService.SubmitSellOrder(ctx, user.Id, request.symbol, request.shares)
	}
	if err != nil {
		if errors.Is(err, store.ErrOverSell) {
			available, availErr := ledgerService.AvailableToSell(ctx, user.Id, request.symbol)
			if availErr == nil {
				logger.Fatal("Not enough shares available to sell",
					zap.String("symbol", request.symbol),
					zap.String("requested", request.shares.String()),
					zap.String("available", available.String()))
			}
		}
		logger.Fatal("Order submission failed", zap.Error(err))
	}

	common.PrintHeader(fmt.Sprintf("%s ORDER SUBMITTED", strings.ToUpper(string(order.Side))), common.DefaultWidth)
	fmt.Printf("Order id:   %s\n", order.Id)
	fmt.Printf("User:       %s (%s)\n", user.Name, user.Email)
	fmt.Printf("Instrument: %s\n", order.Symbol)
	fmt.Printf("Shares:     %s at %s each\n", order.RequestedShares.String(), order.UnitPrice.String())
	fmt.Printf("Value:      %s\n", order.RequestedShares.Mul(order.UnitPrice).String())
	fmt.Printf("Status:     %s (awaiting admin decision)\n", order.Status)
	common.PrintFooter("Done", common.DefaultWidth)
}
