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

package api

import (
	"context"
	"errors"

	"custody-ledger-go/internal/models"
	"custody-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Deposit credits a user's custodial balance. Used for admin top-ups and
// confirmed on-chain arrivals; the optional reference deduplicates replays.
func (s *LedgerService) Deposit(ctx context.Context, userId, coin, network string, amount decimal.Decimal, reference string) (*models.DepositResult, error) {
	zap.L().Info("Processing deposit",
		zap.String("user_id", userId),
		zap.String("coin", coin),
		zap.String("network", network),
		zap.String("amount", amount.String()),
		zap.String("reference", reference))

	if userId == "" || coin == "" || network == "" || amount.LessThanOrEqual(decimal.Zero) {
		zap.L().Error("Invalid deposit parameters",
			zap.String("user_id", userId),
			zap.String("coin", coin),
			zap.String("network", network),
			zap.String("amount", amount.String()))
		return &models.DepositResult{
			Success: false,
			Error:   "invalid deposit parameters",
		}, nil
	}

	if s.catalog != nil && !s.catalog.Supported(coin, network) {
		zap.L().Warn("Deposit for unsupported asset",
			zap.String("coin", coin),
			zap.String("network", network))
		return &models.DepositResult{
			Success: false,
			Error:   "unsupported coin/network",
		}, nil
	}

	entry, err := s.db.Credit(ctx, store.CreditParams{
		UserId:    userId,
		Coin:      coin,
		Network:   network,
		Quantity:  amount,
		Reference: reference,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateTransaction) {
			zap.L().Info("Duplicate deposit reference detected",
				zap.String("user_id", userId),
				zap.String("reference", reference))
		} else {
			zap.L().Error("Deposit processing failed",
				zap.String("user_id", userId),
				zap.String("coin", coin),
				zap.String("amount", amount.String()),
				zap.Error(err))
		}
		return &models.DepositResult{
			Success: false,
			Error:   err.Error(),
		}, nil
	}

	s.mirrorEntry(ctx, entry)

	zap.L().Info("Deposit processed successfully",
		zap.String("user_id", userId),
		zap.String("coin", coin),
		zap.String("network", network),
		zap.String("amount", amount.String()),
		zap.String("new_balance", entry.BalanceAfter.String()))

	return &models.DepositResult{
		Success:    true,
		UserId:     userId,
		Coin:       coin,
		Network:    network,
		Amount:     amount,
		NewBalance: entry.BalanceAfter,
	}, nil
}
