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

	"custody-ledger-go/internal/approval"
	"custody-ledger-go/internal/common"
	"custody-ledger-go/internal/config"
	"custody-ledger-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type approveRequest struct {
	adminEmail   string
	list         string
	orderId      string
	withdrawalId string
	action       approval.Action
	shares       decimal.Decimal
}

func parseAndValidateFlags() (*approveRequest, error) {
	adminEmailFlag := flag.String("admin-email", "", "Admin email (required)")
	listFlag := flag.String("list", "", "List pending work: orders, withdrawals or ledger")
	orderFlag := flag.String("order", "", "Order id to decide")
	withdrawalFlag := flag.String("withdrawal", "", "Withdrawal id to decide")
	actionFlag := flag.String("action", "", "Decision: approve or reject")
	sharesFlag := flag.String("shares", "", "Shares to fill on a sell approval (optional, default all remaining)")
	flag.Parse()

	if *adminEmailFlag == "" {
		return nil, fmt.Errorf("required flag: --admin-email")
	}

	request := &approveRequest{
		adminEmail:   *adminEmailFlag,
		list:         *listFlag,
		orderId:      *orderFlag,
		withdrawalId: *withdrawalFlag,
	}

	if request.list != "" {
		switch request.list {
		case "orders", "withdrawals", "ledger":
			return request, nil
		default:
			return nil, fmt.Errorf("invalid list target %q: must be orders, withdrawals or ledger", request.list)
		}
	}

	if request.orderId == "" && request.withdrawalId == "" {
		return nil, fmt.Errorf("nothing to do: pass --list, --order or --withdrawal")
	}
	if request.orderId != "" && request.withdrawalId != "" {
		return nil, fmt.Errorf("pass either --order or --withdrawal, not both")
	}

	switch *actionFlag {
	case "approve":
		request.action = approval.ActionApprove
	case "reject":
		request.action = approval.ActionReject
	default:
		return nil, fmt.Errorf("invalid action %q: must be approve or reject", *actionFlag)
	}

	if *sharesFlag != "" {
		shares, err := decimal.NewFromString(*sharesFlag)
		if err != nil {
			return nil, fmt.Errorf("invalid shares format: %w", err)
		}
		if shares.IsNegative() {
			return nil, fmt.Errorf("shares must not be negative")
		}
		request.shares = shares
	}

	return request, nil
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

	admins, err := common.InitializeUsers(ctx, services.DbService, request.adminEmail, logger)
	if err != nil {
		logger.Fatal("Failed to find admin user", zap.Error(err))
	}
	admin := admins[0]

	gateway := services.Gateway

	if request.list != "" {
		runList(ctx, gateway, admin.Id, request.list, logger)
		return
	}

	if request.orderId != "" {
		order, err := gateway.DecideOrder(ctx, admin.Id, request.orderId, request.action, request.shares)
		if err != nil {
			logger.Fatal("Order decision failed", zap.Error(err))
		}
		common.PrintHeader("ORDER DECISION APPLIED", common.DefaultWidth)
		fmt.Printf("Order id:   %s\n", order.Id)
		fmt.Printf("Instrument: %s\n", order.Symbol)
		fmt.Printf("Side:       %s\n", order.Side)
		fmt.Printf("Processed:  %s of %s shares\n", order.ProcessedShares.String(), order.RequestedShares.String())
		fmt.Printf("Status:     %s\n", order.Status)
		common.PrintFooter("Done", common.DefaultWidth)
		return
	}

	withdrawal, err := gateway.DecideWithdrawal(ctx, admin.Id, request.withdrawalId, request.action)
	if err != nil {
		logger.Fatal("Withdrawal decision failed", zap.Error(err))
	}
	common.PrintHeader("WITHDRAWAL DECISION APPLIED", common.DefaultWidth)
	fmt.Printf("Withdrawal id: %s\n", withdrawal.Id)
	fmt.Printf("Amount:        %s %s on %s\n", withdrawal.Amount.String(), withdrawal.Coin, withdrawal.Network)
	fmt.Printf("Destination:   %s\n", withdrawal.DestinationAddress)
	fmt.Printf("Status:        %s\n", withdrawal.Status)
	common.PrintFooter("Done", common.DefaultWidth)
}

func runList(ctx context.Context, gateway *approval.Gateway, adminId, target string, logger *zap.Logger) {
	switch target {
	case "orders":
		buys, err := gateway.ListOpenOrders(ctx, adminId, models.OrderSideBuy)
		if err != nil {
			logger.Fatal("Failed to list open buy orders", zap.Error(err))
		}
		sells, err := gateway.ListOpenOrders(ctx, adminId, models.OrderSideSell)
		if err != nil {
			logger.Fatal("Failed to list open sell orders", zap.Error(err))
		}
		orders := append(buys, sells...)

		common.PrintHeader(fmt.Sprintf("OPEN ORDERS (%d)", len(orders)), common.DefaultWidth)
		for i, order := range orders {
			isLast := i == len(orders)-1
			fmt.Printf("%s%s %s\n", common.BoxPrefix(isLast), order.Side, order.Id)
			fmt.Printf("%s   %s: %s of %s shares open at %s, status %s\n",
				common.BoxDetailPrefix(isLast), order.Symbol,
				order.RemainingShares().String(), order.RequestedShares.String(),
				order.UnitPrice.String(), order.Status)
		}
		common.PrintFooter("Done", common.DefaultWidth)

	case "withdrawals":
		withdrawals, err := gateway.ListOpenWithdrawals(ctx, adminId)
		if err != nil {
			logger.Fatal("Failed to list open withdrawals", zap.Error(err))
		}

		common.PrintHeader(fmt.Sprintf("OPEN WITHDRAWALS (%d)", len(withdrawals)), common.DefaultWidth)
		for i, w := range withdrawals {
			isLast := i == len(withdrawals)-1
			fmt.Printf("%s%s\n", common.BoxPrefix(isLast), w.Id)
			fmt.Printf("%s   %s %s on %s to %s\n",
				common.BoxDetailPrefix(isLast), w.Amount.String(), w.Coin, w.Network, w.DestinationAddress)
		}
		common.PrintFooter("Done", common.DefaultWidth)

	case "ledger":
		entries, err := gateway.GetLedgerAll(ctx, adminId, 50, 0)
		if err != nil {
			logger.Fatal("Failed to read ledger", zap.Error(err))
		}

		common.PrintHeader(fmt.Sprintf("LEDGER (latest %d entries)", len(entries)), common.DefaultWidth)
		for i, entry := range entries {
			isLast := i == len(entries)-1
			fmt.Printf("%s%s %s\n", common.BoxPrefix(isLast), entry.Kind, entry.Id)
			fmt.Printf("%s   user %s: %s %s (%s), balance %s -> %s\n",
				common.BoxDetailPrefix(isLast), entry.UserId,
				entry.Quantity.String(), entry.SymbolOrCoin, entry.Status,
				entry.BalanceBefore.String(), entry.BalanceAfter.String())
		}
		common.PrintFooter("Done", common.DefaultWidth)
	}
}
