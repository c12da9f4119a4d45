package approval

import (
	"context"
	"fmt"

	"custody-ledger-go/internal/models"
	"custody-ledger-go/internal/payout"
	"custody-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Action is an approval decision.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// Gateway is the admin surface: it lists pending work and applies decisions.
// Every decision authorizes the caller before touching any record.
type Gateway struct {
	db        store.EngineStore
	authz     Authorizer
	initiator payout.Initiator
	mirror    store.LedgerMirror
}

func NewGateway(db store.EngineStore, authz Authorizer, initiator payout.Initiator, mirror store.LedgerMirror) *Gateway {
	if initiator == nil {
		initiator = payout.NoopInitiator{}
	}
	return &Gateway{
		db:        db,
		authz:     authz,
		initiator: initiator,
		mirror:    mirror,
	}
}

// ListOpenOrders returns undecided orders of one side for review.
func (g *Gateway) ListOpenOrders(ctx context.Context, callerId string, side models.OrderSide) ([]models.OrderRecord, error) {
	if err := g.authz.Authorize(ctx, callerId); err != nil {
		return nil, err
	}
	return g.db.ListOpenOrders(ctx, side)
}

// ListOpenWithdrawals returns pending withdrawal requests for review.
func (g *Gateway) ListOpenWithdrawals(ctx context.Context, callerId string) ([]models.WithdrawalRecord, error) {
	if err := g.authz.Authorize(ctx, callerId); err != nil {
		return nil, err
	}
	return g.db.ListOpenWithdrawals(ctx)
}

// GetLedgerAll returns the cross-user audit view of the ledger.
func (g *Gateway) GetLedgerAll(ctx context.Context, callerId string, limit, offset int) ([]models.LedgerEntry, error) {
	if err := g.authz.Authorize(ctx, callerId); err != nil {
		return nil, err
	}
	return g.db.GetLedgerAll(ctx, limit, offset)
}

// DecideOrder applies an admin decision to an order. For sell approvals,
// approvedShares limits the fill; zero means fill everything remaining.
func (g *Gateway) DecideOrder(ctx context.Context, callerId, orderId string, action Action, approvedShares decimal.Decimal) (*models.OrderRecord, error) {
	if err := g.authz.Authorize(ctx, callerId); err != nil {
		return nil, err
	}

	order, err := g.db.GetOrder(ctx, orderId)
	if err != nil {
		return nil, err
	}

	zap.L().Info("Applying order decision",
		zap.String("caller_id", callerId),
		zap.String("order_id", orderId),
		zap.String("side", string(order.Side)),
		zap.String("action", string(action)))

	switch {
	case order.Side == models.OrderSideBuy && action == ActionApprove:
		settled, entry, err := g.db.ApproveBuyOrder(ctx, orderId)
		if err != nil {
			return nil, err
		}
		g.mirrorEntry(ctx, entry)
		return settled, nil

	case order.Side == models.OrderSideBuy && action == ActionReject:
		return g.db.RejectBuyOrder(ctx, orderId)

	case order.Side == models.OrderSideSell && action == ActionApprove:
		settlement, err := g.db.ApproveSellOrder(ctx, orderId, approvedShares)
		if err != nil {
			return nil, err
		}
		g.mirrorEntry(ctx, settlement.Entry)
		return settlement.Order, nil

	case order.Side == models.OrderSideSell && action == ActionReject:
		return g.db.RejectSellOrder(ctx, orderId)

	default:
		return nil, fmt.Errorf("%w: unknown action %q", store.ErrInvalidInput, action)
	}
}

// DecideWithdrawal applies an admin decision to a withdrawal. Approval also
// initiates the on-chain payout; an initiation failure is reported to the
// operator but never reverses the ledger decision. The withdrawal id is the
// payout idempotency key, so initiation can be retried safely.
func (g *Gateway) DecideWithdrawal(ctx context.Context, callerId, withdrawalId string, action Action) (*models.WithdrawalRecord, error) {
	if err := g.authz.Authorize(ctx, callerId); err != nil {
		return nil, err
	}

	zap.L().Info("Applying withdrawal decision",
		zap.String("caller_id", callerId),
		zap.String("withdrawal_id", withdrawalId),
		zap.String("action", string(action)))

	switch action {
	case ActionApprove:
		withdrawal, err := g.db.ApproveWithdrawal(ctx, withdrawalId)
		if err != nil {
			return nil, err
		}
		if _, err := g.initiator.InitiatePayout(ctx, withdrawal); err != nil {
			zap.L().Error("Payout initiation failed, retry required",
				zap.String("withdrawal_id", withdrawalId),
				zap.Error(err))
		}
		return withdrawal, nil

	case ActionReject:
		return g.db.RejectWithdrawal(ctx, withdrawalId)

	default:
		return nil, fmt.Errorf("%w: unknown action %q", store.ErrInvalidInput, action)
	}
}

func (g *Gateway) mirrorEntry(ctx context.Context, entry *models.LedgerEntry) {
	if g.mirror == nil || entry == nil {
		return
	}
	if err := g.mirror.MirrorEntry(ctx, entry); err != nil {
		zap.L().Warn("Failed to mirror ledger entry",
			zap.String("entry_id", entry.Id),
			zap.String("kind", string(entry.Kind)),
			zap.Error(err))
	}
}
