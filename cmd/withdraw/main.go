/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"custody-ledger-go/internal/api"
	"custody-ledger-go/internal/common"
	"custody-ledger-go/internal/config"
	"custody-ledger-go/internal/pricer"
	"custody-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type withdrawalRequest struct {
	email       string
	coin        string
	network     string
	amount      decimal.Decimal
	destination string
}

func parseAndValidateFlags() (*withdrawalRequest, error) {
	emailFlag := flag.String("email", "", "User email (required)")
	coinFlag := flag.String("coin", "", "Coin symbol, e.g. BTC (required)")
	networkFlag := flag.String("network", "", "Network, e.g. bitcoin (required)")
	amountFlag := flag.String("amount", "", "Amount to withdraw (required)")
	destinationFlag := flag.String("destination", "", "Destination address (required)")
	flag.Parse()

	if *emailFlag == "" || *coinFlag == "" || *networkFlag == "" || *amountFlag == "" || *destinationFlag == "" {
		return nil, fmt.Errorf("required flags: --email, --coin, --network, --amount, --destination")
	}

	amount, err := decimal.NewFromString(*amountFlag)
	if err != nil {
		return nil, fmt.Errorf("invalid amount format: %w", err)
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("amount must be greater than zero")
	}

	return &withdrawalRequest{
		email:       *emailFlag,
		coin:        *coinFlag,
		network:     *networkFlag,
		amount:      amount,
		destination: *destinationFlag,
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

	withdrawal, err := ledgerService.RequestWithdrawal(ctx, user.Id, request.coin, request.network, request.amount, request.destination)
	if err != nil {
		if errors.Is(err, store.ErrInsufficientFunds) {
			logger.Fatal("Insufficient balance for withdrawal",
				zap.String("user", user.Email),
				zap.String("coin", request.coin),
				zap.String("amount", request.amount.String()))
		}
		logger.Fatal("Withdrawal request failed", zap.Error(err))
	}

	remaining, err := ledgerService.GetBalance(ctx, user.Id, request.coin, request.network)
	if err != nil {
		logger.Warn("Failed to read remaining balance", zap.Error(err))
		remaining = decimal.Zero
	}

	common.PrintHeader("WITHDRAWAL REQUESTED", common.DefaultWidth)
	fmt.Printf("Withdrawal id: %s\n", withdrawal.Id)
	fmt.Printf("User:          %s (%s)\n", user.Name, user.Email)
	fmt.Printf("Reserved:      %s %s on %s\n", withdrawal.Amount.String(), withdrawal.Coin, withdrawal.Network)
	fmt.Printf("Destination:   %s\n", withdrawal.DestinationAddress)
	fmt.Printf("Remaining:     %s %s\n", remaining.String(), withdrawal.Coin)
	fmt.Printf("Status:        %s (awaiting admin decision)\n", withdrawal.Status)
	common.PrintFooter("Done", common.DefaultWidth)
}
