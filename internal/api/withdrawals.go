package api

import (
	"context"
	"fmt"

	"custody-ledger-go/internal/models"
	"custody-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RequestWithdrawal reserves the amount and queues the withdrawal for admin
// decision. The caller's balance drops immediately; an eventual rejection
// refunds it.
func (s *LedgerService) RequestWithdrawal(ctx context.Context, userId, coin, network string, amount decimal.Decimal, destinationAddress string) (*models.WithdrawalRecord, error) {
	if s.catalog != nil && !s.catalog.Supported(coin, network) {
		return nil, fmt.Errorf("%w: unsupported coin/network %s/%s", store.ErrInvalidInput, coin, network)
	}

	withdrawal, entry, err := s.db.CreateWithdrawal(ctx, store.WithdrawalParams{
		UserId:             userId,
		Coin:               coin,
		Network:            network,
		Amount:             amount,
		DestinationAddress: destinationAddress,
	})
	if err != nil {
		return nil, err
	}

	s.mirrorEntry(ctx, entry)

	zap.L().Info("Withdrawal request queued for approval",
		zap.String("withdrawal_id", withdrawal.Id),
		zap.String("user_id", userId),
		zap.String("coin", coin),
		zap.String("amount", amount.String()))

	return withdrawal, nil
}

// GetWithdrawal returns one withdrawal by id.
func (s *LedgerService) GetWithdrawal(ctx context.Context, id string) (*models.WithdrawalRecord, error) {
	return s.db.GetWithdrawal(ctx, id)
}
