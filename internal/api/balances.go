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
	"fmt"

	"custody-ledger-go/internal/models"

	"github.com/shopspring/decimal"
)

// GetBalance returns a user's balance for one (coin, network) pair.
func (s *LedgerService) GetBalance(ctx context.Context, userId, coin, network string) (decimal.Decimal, error) {
	return s.db.GetBalance(ctx, userId, coin, network)
}

// GetAllBalances returns every balance record the user holds.
func (s *LedgerService) GetAllBalances(ctx context.Context, userId string) ([]models.BalanceRecord, error) {
	return s.db.GetAllBalances(ctx, userId)
}

// GetAllPositions returns every instrument position the user holds.
func (s *LedgerService) GetAllPositions(ctx context.Context, userId string) ([]models.PositionRecord, error) {
	return s.db.GetAllPositions(ctx, userId)
}

// PortfolioValue prices the user's positions with the current catalog and
// returns per-holding and total values.
func (s *LedgerService) PortfolioValue(ctx context.Context, userId string) (*models.PortfolioValuation, error) {
	positions, err := s.db.GetAllPositions(ctx, userId)
	if err != nil {
		return nil, err
	}

	valuation := &models.PortfolioValuation{
		UserId: userId,
		Total:  decimal.Zero,
	}
	for _, pos := range positions {
		if pos.Shares.IsZero() {
			continue
		}
		price, err := s.pricer.Price(pos.Symbol)
		if err != nil {
			return nil, fmt.Errorf("failed to price %s: %w", pos.Symbol, err)
		}
		value := pos.Shares.Mul(price)
		valuation.Holdings = append(valuation.Holdings, models.HoldingValue{
			Symbol: pos.Symbol,
			Shares: pos.Shares,
			Price:  price,
			Value:  value,
		})
		valuation.Total = valuation.Total.Add(value)
	}

	return valuation, nil
}
