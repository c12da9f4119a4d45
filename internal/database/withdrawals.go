package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"custody-ledger-go/internal/models"
	"custody-ledger-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func scanWithdrawal(row *sql.Row) (*models.WithdrawalRecord, error) {
	var w models.WithdrawalRecord
	var amountStr, status string
	err := row.Scan(&w.Id, &w.UserId, &w.Coin, &w.Network, &amountStr, &w.DestinationAddress,
		&status, &w.Version, &w.CreatedAt, &w.DecidedAt)
	if err != nil {
		return nil, err
	}
	w.Amount, err = decimal.NewFromString(amountStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse withdrawal amount '%s': %w", amountStr, err)
	}
	w.Status = models.WithdrawalStatus(status)
	return &w, nil
}

// CreateWithdrawal reserves the funds and creates the pending withdrawal and
// its linked ledger entry as one atomic unit. A failed debit fails the whole
// creation with nothing committed.
func (s *Service) CreateWithdrawal(ctx context.Context, params store.WithdrawalParams) (*models.WithdrawalRecord, *models.LedgerEntry, error) {
	if params.UserId == "" || params.Coin == "" || params.Network == "" || params.DestinationAddress == "" {
		return nil, nil, fmt.Errorf("%w: user, coin, network and destination address are required", store.ErrInvalidInput)
	}
	if !params.Amount.IsPositive() {
		return nil, nil, fmt.Errorf("%w: withdrawal amount must be positive, got %s", store.ErrInvalidInput, params.Amount.String())
	}

	zap.L().Info("Processing withdrawal request",
		zap.String("user_id", params.UserId),
		zap.String("coin", params.Coin),
		zap.String("network", params.Network),
		zap.String("amount", params.Amount.String()),
		zap.String("destination", params.DestinationAddress))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	withdrawalId := uuid.New().String()
	entry := &models.LedgerEntry{
		Id:            uuid.New().String(),
		UserId:        params.UserId,
		Kind:          models.LedgerKindWithdrawal,
		SymbolOrCoin:  params.Coin,
		Network:       params.Network,
		Quantity:      params.Amount.Neg(),
		MonetaryValue: decimal.Zero,
		Status:        models.LedgerStatusPending,
		Reference:     withdrawalId,
	}

	// Reservation: the debit happens now, not at approval time.
	before, after, err := applyBalanceDelta(ctx, tx, params.UserId, params.Coin, params.Network, params.Amount.Neg(), entry.Id)
	if err != nil {
		return nil, nil, err
	}
	entry.BalanceBefore = before
	entry.BalanceAfter = after

	_, err = tx.ExecContext(ctx, queryInsertWithdrawal,
		withdrawalId, params.UserId, params.Coin, params.Network,
		params.Amount.String(), params.DestinationAddress, string(models.WithdrawalStatusPending), 1)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to insert withdrawal: %w", err)
	}

	if err := insertLedgerEntry(ctx, tx, entry); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	zap.L().Info("Withdrawal created, funds reserved",
		zap.String("withdrawal_id", withdrawalId),
		zap.String("user_id", params.UserId),
		zap.String("old_balance", before.String()),
		zap.String("new_balance", after.String()))

	withdrawal, err := s.GetWithdrawal(ctx, withdrawalId)
	if err != nil {
		return nil, nil, err
	}
	return withdrawal, entry, nil
}

// ApproveWithdrawal marks the withdrawal approved and confirms the linked
// ledger entry. The funds were already reserved at creation and do not move.
func (s *Service) ApproveWithdrawal(ctx context.Context, id string) (*models.WithdrawalRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	w, err := scanWithdrawal(tx.QueryRowContext(ctx, queryGetWithdrawal, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: withdrawal %s", store.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load withdrawal: %w", err)
	}
	if w.Status.Terminal() {
		return nil, fmt.Errorf("%w: withdrawal %s is already %s", store.ErrInvalidTransition, id, w.Status)
	}

	if err := updateWithdrawalStatus(ctx, tx, w, models.WithdrawalStatusApproved); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, queryUpdateLedgerStatusByReference, string(models.LedgerStatusConfirmed), id); err != nil {
		return nil, fmt.Errorf("failed to confirm ledger entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	zap.L().Info("Withdrawal approved",
		zap.String("withdrawal_id", id),
		zap.String("user_id", w.UserId),
		zap.String("amount", w.Amount.String()))

	return s.GetWithdrawal(ctx, id)
}

// RejectWithdrawal marks the withdrawal rejected, refunds the reserved amount
// and fails the linked ledger entry, all in one transaction. The withdrawal id
// is the idempotency key: a second rejection cannot pass the status check, so
// a double refund is impossible.
func (s *Service) RejectWithdrawal(ctx context.Context, id string) (*models.WithdrawalRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	w, err := scanWithdrawal(tx.QueryRowContext(ctx, queryGetWithdrawal, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: withdrawal %s", store.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load withdrawal: %w", err)
	}
	if w.Status.Terminal() {
		return nil, fmt.Errorf("%w: withdrawal %s is already %s", store.ErrInvalidTransition, id, w.Status)
	}

	if err := updateWithdrawalStatus(ctx, tx, w, models.WithdrawalStatusRejected); err != nil {
		return nil, err
	}

	// Resolve the linked entry so the refunded balance points back at it.
	var linkedEntryId string
	if err := tx.QueryRowContext(ctx, queryCheckDuplicateReference, id).Scan(&linkedEntryId); err != nil {
		return nil, fmt.Errorf("failed to resolve linked ledger entry: %w", err)
	}

	before, after, err := applyBalanceDelta(ctx, tx, w.UserId, w.Coin, w.Network, w.Amount, linkedEntryId)
	if err != nil {
		return nil, fmt.Errorf("failed to refund withdrawal: %w", err)
	}

	if _, err := tx.ExecContext(ctx, queryUpdateLedgerStatusByReference, string(models.LedgerStatusFailed), id); err != nil {
		return nil, fmt.Errorf("failed to fail ledger entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	zap.L().Info("Withdrawal rejected, funds refunded",
		zap.String("withdrawal_id", id),
		zap.String("user_id", w.UserId),
		zap.String("amount", w.Amount.String()),
		zap.String("old_balance", before.String()),
		zap.String("new_balance", after.String()))

	return s.GetWithdrawal(ctx, id)
}

func updateWithdrawalStatus(ctx context.Context, q querier, w *models.WithdrawalRecord, to models.WithdrawalStatus) error {
	result, err := q.ExecContext(ctx, queryUpdateWithdrawalStatus, string(to), w.Id, w.Version)
	if err != nil {
		return fmt.Errorf("failed to update withdrawal status: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("withdrawal update failed - %w", store.ErrConcurrentModification)
	}
	return nil
}

func (s *Service) GetWithdrawal(ctx context.Context, id string) (*models.WithdrawalRecord, error) {
	w, err := scanWithdrawal(s.db.QueryRowContext(ctx, queryGetWithdrawal, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: withdrawal %s", store.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get withdrawal: %w", err)
	}
	return w, nil
}

// ListOpenWithdrawals returns all pending withdrawal requests, oldest first.
func (s *Service) ListOpenWithdrawals(ctx context.Context) ([]models.WithdrawalRecord, error) {
	rows, err := s.db.QueryContext(ctx, queryListOpenWithdrawals)
	if err != nil {
		return nil, fmt.Errorf("failed to list open withdrawals: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var withdrawals []models.WithdrawalRecord
	for rows.Next() {
		var w models.WithdrawalRecord
		var amountStr, status string
		err := rows.Scan(&w.Id, &w.UserId, &w.Coin, &w.Network, &amountStr, &w.DestinationAddress,
			&status, &w.Version, &w.CreatedAt, &w.DecidedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan withdrawal: %w", err)
		}
		w.Amount, err = decimal.NewFromString(amountStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse withdrawal amount '%s': %w", amountStr, err)
		}
		w.Status = models.WithdrawalStatus(status)
		withdrawals = append(withdrawals, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating withdrawal rows: %w", err)
	}

	return withdrawals, nil
}
