package payout

import (
	"context"

	"custody-ledger-go/internal/models"
)

// Initiator moves an approved withdrawal on-chain. The engine has already
// debited the balance; initiation failures are reported to the operator but
// never undo the approval.
type Initiator interface {
	InitiatePayout(ctx context.Context, withdrawal *models.WithdrawalRecord) (*models.PayoutReceipt, error)
}

// NoopInitiator is used when on-chain execution is disabled; approvals then
// only settle the internal ledger.
type NoopInitiator struct{}

func (NoopInitiator) InitiatePayout(_ context.Context, w *models.WithdrawalRecord) (*models.PayoutReceipt, error) {
	return &models.PayoutReceipt{
		Coin:        w.Coin,
		Network:     w.Network,
		Amount:      w.Amount.String(),
		Destination: w.DestinationAddress,
	}, nil
}
