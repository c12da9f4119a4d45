package api

import (
	"context"
	"fmt"

	"custody-ledger-go/internal/models"
	"custody-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SubmitBuyOrder queues a buy request at the instrument's current price.
// Nothing settles until an administrator approves it.
func (s *LedgerService) SubmitBuyOrder(ctx context.Context, userId, symbol string, shares decimal.Decimal) (*models.OrderRecord, error) {
	price, err := s.pricer.Price(symbol)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrInvalidInput, err)
	}

	order, err := s.db.CreateBuyOrder(ctx, store.OrderParams{
		UserId:    userId,
		Symbol:    symbol,
		Shares:    shares,
		UnitPrice: price,
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Buy order queued for approval",
		zap.String("order_id", order.Id),
		zap.String("user_id", userId),
		zap.String("symbol", symbol),
		zap.String("shares", shares.String()),
		zap.String("locked_price", price.String()))

	return order, nil
}

// SubmitSellOrder queues a sell request. The unit price locks in at
// submission; later fills settle at this price even if the catalog moves.
func (s *LedgerService) SubmitSellOrder(ctx context.Context, userId, symbol string, shares decimal.Decimal) (*models.OrderRecord, error) {
	price, err := s.pricer.Price(symbol)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrInvalidInput, err)
	}

	order, err := s.db.CreateSellOrder(ctx, store.OrderParams{
		UserId:    userId,
		Symbol:    symbol,
		Shares:    shares,
		UnitPrice: price,
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Sell order queued for approval",
		zap.String("order_id", order.Id),
		zap.String("user_id", userId),
		zap.String("symbol", symbol),
		zap.String("shares", shares.String()),
		zap.String("locked_price", price.String()))

	return order, nil
}

// GetOrder returns one order by id.
func (s *LedgerService) GetOrder(ctx context.Context, id string) (*models.OrderRecord, error) {
	return s.db.GetOrder(ctx, id)
}

// AvailableToSell returns how many shares the user can still list for sale:
// held shares minus the unprocessed remainder of open sell orders.
func (s *LedgerService) AvailableToSell(ctx context.Context, userId, symbol string) (decimal.Decimal, error) {
	return s.db.AvailableToSell(ctx, userId, symbol)
}
