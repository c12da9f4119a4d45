package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"custody-ledger-go/internal/models"
	"custody-ledger-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (*models.OrderRecord, error) {
	var o models.OrderRecord
	var side, status, requestedStr, priceStr, processedStr string
	err := row.Scan(&o.Id, &o.UserId, &o.Symbol, &side, &requestedStr, &priceStr, &processedStr,
		&status, &o.Version, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if o.RequestedShares, err = decimal.NewFromString(requestedStr); err != nil {
		return nil, fmt.Errorf("failed to parse requested shares '%s': %w", requestedStr, err)
	}
	if o.UnitPrice, err = decimal.NewFromString(priceStr); err != nil {
		return nil, fmt.Errorf("failed to parse unit price '%s': %w", priceStr, err)
	}
	if o.ProcessedShares, err = decimal.NewFromString(processedStr); err != nil {
		return nil, fmt.Errorf("failed to parse processed shares '%s': %w", processedStr, err)
	}
	o.Side = models.OrderSide(side)
	o.Status = models.OrderStatus(status)
	return &o, nil
}

func validateOrderParams(params store.OrderParams) error {
	if params.UserId == "" || params.Symbol == "" {
		return fmt.Errorf("%w: user and symbol are required", store.ErrInvalidInput)
	}
	if !params.Shares.IsPositive() {
		return fmt.Errorf("%w: share quantity must be positive, got %s", store.ErrInvalidInput, params.Shares.String())
	}
	if !params.UnitPrice.IsPositive() {
		return fmt.Errorf("%w: unit price must be positive, got %s", store.ErrInvalidInput, params.UnitPrice.String())
	}
	return nil
}

// CreateBuyOrder records a pending buy request. Nothing is debited and no
// position changes until an administrator approves it.
func (s *Service) CreateBuyOrder(ctx context.Context, params store.OrderParams) (*models.OrderRecord, error) {
	if err := validateOrderParams(params); err != nil {
		return nil, err
	}

	orderId := uuid.New().String()
	_, err := s.db.ExecContext(ctx, queryInsertOrder,
		orderId, params.UserId, params.Symbol, string(models.OrderSideBuy),
		params.Shares.String(), params.UnitPrice.String(), decimal.Zero.String(),
		string(models.OrderStatusPending), 1)
	if err != nil {
		return nil, fmt.Errorf("failed to insert buy order: %w", err)
	}

	zap.L().Info("Buy order created",
		zap.String("order_id", orderId),
		zap.String("user_id", params.UserId),
		zap.String("symbol", params.Symbol),
		zap.String("shares", params.Shares.String()),
		zap.String("unit_price", params.UnitPrice.String()))

	return s.GetOrder(ctx, orderId)
}

// CreateSellOrder records a pending sell request after checking, inside the
// same transaction, that the requested shares do not exceed what is held
// minus what earlier open sell orders have already spoken for.
func (s *Service) CreateSellOrder(ctx context.Context, params store.OrderParams) (*models.OrderRecord, error) {
	if err := validateOrderParams(params); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	available, err := availableToSell(ctx, tx, params.UserId, params.Symbol)
	if err != nil {
		return nil, err
	}
	if params.Shares.GreaterThan(available) {
		return nil, fmt.Errorf("%w: requested %s shares of %s, %s available",
			store.ErrOverSell, params.Shares.String(), params.Symbol, available.String())
	}

	orderId := uuid.New().String()
	_, err = tx.ExecContext(ctx, queryInsertOrder,
		orderId, params.UserId, params.Symbol, string(models.OrderSideSell),
		params.Shares.String(), params.UnitPrice.String(), decimal.Zero.String(),
		string(models.OrderStatusPendingSell), 1)
	if err != nil {
		return nil, fmt.Errorf("failed to insert sell order: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	zap.L().Info("Sell order created",
		zap.String("order_id", orderId),
		zap.String("user_id", params.UserId),
		zap.String("symbol", params.Symbol),
		zap.String("shares", params.Shares.String()),
		zap.String("available_before", available.String()))

	return s.GetOrder(ctx, orderId)
}

// ApproveBuyOrder settles a pending buy: the position gains the full requested
// share count, the settlement is written to the ledger, and the order row is
// removed. Approval is all-or-nothing; there are no partial buy fills.
func (s *Service) ApproveBuyOrder(ctx context.Context, id string) (*models.OrderRecord, *models.LedgerEntry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	order, err := loadOrderForDecision(ctx, tx, id, models.OrderSideBuy, models.OrderStatusApproved)
	if err != nil {
		return nil, nil, err
	}

	before, after, err := applyPositionDelta(ctx, tx, order.UserId, order.Symbol, order.RequestedShares)
	if err != nil {
		return nil, nil, err
	}

	entry := &models.LedgerEntry{
		UserId:        order.UserId,
		Kind:          models.LedgerKindBuySettlement,
		SymbolOrCoin:  order.Symbol,
		Quantity:      order.RequestedShares,
		MonetaryValue: order.RequestedShares.Mul(order.UnitPrice),
		BalanceBefore: before,
		BalanceAfter:  after,
		Status:        models.LedgerStatusConfirmed,
		Reference:     order.Id,
	}
	if err := insertLedgerEntry(ctx, tx, entry); err != nil {
		return nil, nil, err
	}

	if _, err := tx.ExecContext(ctx, queryDeleteOrder, id); err != nil {
		return nil, nil, fmt.Errorf("failed to delete settled order: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	zap.L().Info("Buy order approved and settled",
		zap.String("order_id", id),
		zap.String("user_id", order.UserId),
		zap.String("symbol", order.Symbol),
		zap.String("shares", order.RequestedShares.String()),
		zap.String("old_position", before.String()),
		zap.String("new_position", after.String()))

	order.Status = models.OrderStatusApproved
	order.ProcessedShares = order.RequestedShares
	return order, entry, nil
}

// RejectBuyOrder discards a pending buy. No balance or position was touched
// at submission, so rejection only removes the order row.
func (s *Service) RejectBuyOrder(ctx context.Context, id string) (*models.OrderRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	order, err := loadOrderForDecision(ctx, tx, id, models.OrderSideBuy, models.OrderStatusRejected)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, queryDeleteOrder, id); err != nil {
		return nil, fmt.Errorf("failed to delete rejected order: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	zap.L().Info("Buy order rejected",
		zap.String("order_id", id),
		zap.String("user_id", order.UserId),
		zap.String("symbol", order.Symbol))

	order.Status = models.OrderStatusRejected
	return order, nil
}

// ApproveSellOrder processes a fill against an open sell order. A zero or
// negative approvedShares means "fill everything remaining". The fill debits
// the position, credits the settlement coin balance with shares times the
// order's locked unit price, and writes one sell ledger entry, all atomically.
// A fully processed order is removed; a partial fill leaves the order open
// with its processed count advanced.
func (s *Service) ApproveSellOrder(ctx context.Context, id string, approvedShares decimal.Decimal) (*store.SellSettlement, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	order, err := scanOrder(tx.QueryRowContext(ctx, queryGetOrder, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: order %s", store.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if order.Side != models.OrderSideSell {
		return nil, fmt.Errorf("%w: order %s is not a sell order", store.ErrInvalidInput, id)
	}
	if !order.Status.CanTransition(models.OrderStatusSold) {
		return nil, fmt.Errorf("%w: order %s is %s", store.ErrInvalidTransition, id, order.Status)
	}

	remaining := order.RemainingShares()
	if !remaining.IsPositive() {
		return nil, fmt.Errorf("%w: order %s has no remaining shares", store.ErrNothingToProcess, id)
	}

	toProcess := remaining
	if approvedShares.IsPositive() && approvedShares.LessThan(remaining) {
		toProcess = approvedShares
	}

	posBefore, posAfter, err := applyPositionDelta(ctx, tx, order.UserId, order.Symbol, toProcess.Neg())
	if err != nil {
		return nil, err
	}

	proceeds := toProcess.Mul(order.UnitPrice)
	entry := &models.LedgerEntry{
		Id:            uuid.New().String(),
		UserId:        order.UserId,
		Kind:          models.LedgerKindSell,
		SymbolOrCoin:  order.Symbol,
		Quantity:      toProcess,
		MonetaryValue: proceeds,
		BalanceBefore: posBefore,
		BalanceAfter:  posAfter,
		Status:        models.LedgerStatusConfirmed,
		Reference:     fmt.Sprintf("%s-fill-%d", order.Id, order.Version),
	}

	_, _, err = applyBalanceDelta(ctx, tx, order.UserId, s.settlement.Coin, s.settlement.Network, proceeds, entry.Id)
	if err != nil {
		return nil, fmt.Errorf("failed to credit sale proceeds: %w", err)
	}

	if err := insertLedgerEntry(ctx, tx, entry); err != nil {
		return nil, err
	}

	processed := order.ProcessedShares.Add(toProcess)
	newStatus := models.OrderStatusPartialSold
	if processed.Equal(order.RequestedShares) {
		newStatus = models.OrderStatusSold
	}

	if newStatus == models.OrderStatusSold {
		if _, err := tx.ExecContext(ctx, queryDeleteOrder, id); err != nil {
			return nil, fmt.Errorf("failed to delete settled order: %w", err)
		}
	} else {
		result, err := tx.ExecContext(ctx, queryUpdateOrder,
			processed.String(), string(newStatus), id, order.Version)
		if err != nil {
			return nil, fmt.Errorf("failed to update order: %w", err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("failed to check rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return nil, fmt.Errorf("order update failed - %w", store.ErrConcurrentModification)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	zap.L().Info("Sell order fill processed",
		zap.String("order_id", id),
		zap.String("user_id", order.UserId),
		zap.String("symbol", order.Symbol),
		zap.String("processed_now", toProcess.String()),
		zap.String("proceeds", proceeds.String()),
		zap.String("settlement_coin", s.settlement.Coin),
		zap.String("status", string(newStatus)))

	order.ProcessedShares = processed
	order.Status = newStatus
	order.Version++
	return &store.SellSettlement{
		Order:     order,
		Processed: toProcess,
		Credited:  proceeds,
		Entry:     entry,
	}, nil
}

// RejectSellOrder closes an open sell order without touching the position.
// Shares already processed by earlier fills stay sold; the unprocessed
// remainder simply stops being reserved and can be re-listed.
func (s *Service) RejectSellOrder(ctx context.Context, id string) (*models.OrderRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	order, err := loadOrderForDecision(ctx, tx, id, models.OrderSideSell, models.OrderStatusSellRejected)
	if err != nil {
		return nil, err
	}

	result, err := tx.ExecContext(ctx, queryUpdateOrder,
		order.ProcessedShares.String(), string(models.OrderStatusSellRejected), id, order.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to update order: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, fmt.Errorf("order update failed - %w", store.ErrConcurrentModification)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	zap.L().Info("Sell order rejected",
		zap.String("order_id", id),
		zap.String("user_id", order.UserId),
		zap.String("symbol", order.Symbol),
		zap.String("processed_shares", order.ProcessedShares.String()),
		zap.String("released_shares", order.RemainingShares().String()))

	return s.GetOrder(ctx, id)
}

// loadOrderForDecision fetches an order inside a transaction and verifies it
// is on the expected side and may still transition to the target status.
func loadOrderForDecision(ctx context.Context, q querier, id string, side models.OrderSide, to models.OrderStatus) (*models.OrderRecord, error) {
	order, err := scanOrder(q.QueryRowContext(ctx, queryGetOrder, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: order %s", store.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if order.Side != side {
		return nil, fmt.Errorf("%w: order %s is a %s order", store.ErrInvalidInput, id, order.Side)
	}
	if !order.Status.CanTransition(to) {
		return nil, fmt.Errorf("%w: order %s is %s", store.ErrInvalidTransition, id, order.Status)
	}
	return order, nil
}

func (s *Service) GetOrder(ctx context.Context, id string) (*models.OrderRecord, error) {
	order, err := scanOrder(s.db.QueryRowContext(ctx, queryGetOrder, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: order %s", store.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return order, nil
}

// ListOpenOrders returns the orders of one side still awaiting a decision,
// oldest first.
func (s *Service) ListOpenOrders(ctx context.Context, side models.OrderSide) ([]models.OrderRecord, error) {
	openStatuses := [2]models.OrderStatus{models.OrderStatusPending, models.OrderStatusPending}
	if side == models.OrderSideSell {
		openStatuses = [2]models.OrderStatus{models.OrderStatusPendingSell, models.OrderStatusPartialSold}
	}

	rows, err := s.db.QueryContext(ctx, queryListOpenOrders, string(side), string(openStatuses[0]), string(openStatuses[1]))
	if err != nil {
		return nil, fmt.Errorf("failed to list open orders: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var orders []models.OrderRecord
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order rows: %w", err)
	}

	return orders, nil
}

// DeleteClosedOrders removes rejected sell orders last touched before the
// cutoff. Settled orders are already gone; this is periodic cleanup only.
func (s *Service) DeleteClosedOrders(ctx context.Context, before time.Time) (int64, error) {
	// updated_at is written by SQLite in UTC; compare in UTC.
	result, err := s.db.ExecContext(ctx, queryDeleteClosedOrders, before.UTC().Format("2006-01-02 15:04:05"))
	if err != nil {
		return 0, fmt.Errorf("failed to delete closed orders: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if deleted > 0 {
		zap.L().Info("Closed orders pruned",
			zap.Int64("deleted", deleted),
			zap.Time("cutoff", before))
	}
	return deleted, nil
}
