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
	"flag"
	"fmt"

	"custody-ledger-go/internal/api"
	"custody-ledger-go/internal/common"
	"custody-ledger-go/internal/config"
	"custody-ledger-go/internal/pricer"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type depositRequest struct {
	email     string
	coin      string
	network   string
	amount    decimal.Decimal
	reference string
}

func parseAndValidateFlags() (*depositRequest, error) {
	emailFlag := flag.String("email", "", "User email (required)")
	coinFlag := flag.String("coin", "", "Coin symbol, e.g. BTC (required)")
	networkFlag := flag.String("network", "", "Network, e.g. bitcoin (required)")
	amountFlag := flag.String("amount", "", "Amount to credit (required)")
	referenceFlag := flag.String("reference", "", "External transaction id for idempotency (optional)")
	flag.Parse()

	if *emailFlag == "" || *coinFlag == "" || *networkFlag == "" || *amountFlag == "" {
		return nil, fmt.Errorf("required flags: --email, --coin, --network, --amount")
	}

	amount, err := decimal.NewFromString(*amountFlag)
	if err != nil {
		return nil, fmt.Errorf("invalid amount format: %w", err)
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("amount must be greater than zero")
	}

	return &depositRequest{
		email:     *emailFlag,
		coin:      *coinFlag,
		network:   *networkFlag,
		amount:    amount,
		reference: *referenceFlag,
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

	result, err := ledgerService.Deposit(ctx, user.Id, request.coin, request.network, request.amount, request.reference)
	if err != nil {
		logger.Fatal("Deposit failed", zap.Error(err))
	}
	if !result.Success {
		logger.Fatal("Deposit rejected", zap.String("reason", result.Error))
	}

	common.PrintHeader("DEPOSIT PROCESSED", common.DefaultWidth)
	fmt.Printf("User:        %s (%s)\n", user.Name, user.Email)
	fmt.Printf("Credited:    %s %s on %s\n", result.Amount.String(), result.Coin, result.Network)
	fmt.Printf("New balance: %s %s\n", result.NewBalance.String(), result.Coin)
	common.PrintFooter("Done", common.DefaultWidth)
}
