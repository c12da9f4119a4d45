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

// querier is satisfied by both *sql.DB and *sql.Tx so the record helpers can
// run inside or outside a transaction.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// applyBalanceDelta mutates one balance record inside the caller's transaction.
// Creates the record on first touch, rejects any delta that would take the
// quantity negative, and enforces the optimistic version check.
func applyBalanceDelta(ctx context.Context, q querier, userId, coin, network string, delta decimal.Decimal, entryId string) (before, after decimal.Decimal, err error) {
	var balanceId, quantityStr string
	var version int64

	err = q.QueryRowContext(ctx, queryGetBalanceForUpdate, userId, coin, network).Scan(&balanceId, &quantityStr, &version)
	if errors.Is(err, sql.ErrNoRows) {
		balanceId = uuid.New().String()
		before = decimal.Zero
		version = 1
		if _, err = q.ExecContext(ctx, queryInsertBalance, balanceId, userId, coin, network, "0", 1); err != nil {
			return decimal.Zero, decimal.Zero, fmt.Errorf("failed to create balance record: %w", err)
		}
	} else if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("failed to get current balance: %w", err)
	} else {
		before, err = decimal.NewFromString(quantityStr)
		if err != nil {
			return decimal.Zero, decimal.Zero, fmt.Errorf("failed to parse current balance '%s': %w", quantityStr, err)
		}
	}

	after = before.Add(delta)
	if after.IsNegative() {
		return before, before, fmt.Errorf("%w: balance %s, requested %s %s on %s",
			store.ErrInsufficientFunds, before.String(), delta.Neg().String(), coin, network)
	}

	result, err := q.ExecContext(ctx, queryUpdateBalance, after.String(), entryId, balanceId, version)
	if err != nil {
		return before, before, fmt.Errorf("failed to update balance: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return before, before, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return before, before, fmt.Errorf("balance update failed - %w", store.ErrConcurrentModification)
	}

	return before, after, nil
}

// insertLedgerEntry appends one entry inside the caller's transaction,
// assigning id and timestamp if unset. A non-empty reference acts as an
// idempotency key: a second insert with the same reference is rejected.
func insertLedgerEntry(ctx context.Context, q querier, entry *models.LedgerEntry) error {
	if entry.Reference != "" {
		var existingId string
		err := q.QueryRowContext(ctx, queryCheckDuplicateReference, entry.Reference).Scan(&existingId)
		if err == nil {
			zap.L().Warn("Duplicate ledger reference detected, skipping",
				zap.String("reference", entry.Reference),
				zap.String("existing_entry_id", existingId))
			return fmt.Errorf("%w: reference %s already exists", store.ErrDuplicateTransaction, entry.Reference)
		} else if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to check for duplicate reference: %w", err)
		}
	}

	if entry.Id == "" {
		entry.Id = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	_, err := q.ExecContext(ctx, queryInsertLedgerEntry,
		entry.Id, entry.UserId, string(entry.Kind), entry.SymbolOrCoin, entry.Network,
		entry.Quantity.String(), entry.MonetaryValue.String(),
		entry.BalanceBefore.String(), entry.BalanceAfter.String(),
		string(entry.Status), entry.Reference, entry.Read, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert ledger entry: %w", err)
	}
	return nil
}

// Credit increases a user's balance (deposit / admin top-up) and writes the
// deposit ledger entry in the same transaction.
func (s *Service) Credit(ctx context.Context, params store.CreditParams) (*models.LedgerEntry, error) {
	if params.UserId == "" || params.Coin == "" || params.Network == "" {
		return nil, fmt.Errorf("%w: user, coin and network are required", store.ErrInvalidInput)
	}
	if !params.Quantity.IsPositive() {
		return nil, fmt.Errorf("%w: credit quantity must be positive, got %s", store.ErrInvalidInput, params.Quantity.String())
	}

	zap.L().Info("Processing credit",
		zap.String("user_id", params.UserId),
		zap.String("coin", params.Coin),
		zap.String("network", params.Network),
		zap.String("quantity", params.Quantity.String()))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	entry := &models.LedgerEntry{
		Id:            uuid.New().String(),
		UserId:        params.UserId,
		Kind:          models.LedgerKindDeposit,
		SymbolOrCoin:  params.Coin,
		Network:       params.Network,
		Quantity:      params.Quantity,
		MonetaryValue: decimal.Zero,
		Status:        models.LedgerStatusConfirmed,
		Reference:     params.Reference,
	}

	before, after, err := applyBalanceDelta(ctx, tx, params.UserId, params.Coin, params.Network, params.Quantity, entry.Id)
	if err != nil {
		return nil, err
	}
	entry.BalanceBefore = before
	entry.BalanceAfter = after

	if err := insertLedgerEntry(ctx, tx, entry); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	zap.L().Info("Credit processed successfully",
		zap.String("entry_id", entry.Id),
		zap.String("user_id", params.UserId),
		zap.String("coin", params.Coin),
		zap.String("old_balance", before.String()),
		zap.String("new_balance", after.String()))

	return entry, nil
}

// GetBalance returns current balance for user/coin/network (O(1) lookup)
func (s *Service) GetBalance(ctx context.Context, userId, coin, network string) (decimal.Decimal, error) {
	zap.L().Debug("Getting balance", zap.String("user_id", userId), zap.String("coin", coin), zap.String("network", network))

	var quantityStr string
	err := s.db.QueryRowContext(ctx, queryGetBalance, userId, coin, network).Scan(&quantityStr)
	if errors.Is(err, sql.ErrNoRows) {
		// No balance record means zero balance
		return decimal.Zero, nil
	}
	if err != nil {
		zap.L().Error("Failed to get balance", zap.String("user_id", userId), zap.String("coin", coin), zap.Error(err))
		return decimal.Zero, fmt.Errorf("failed to get balance: %w", err)
	}

	quantity, err := decimal.NewFromString(quantityStr)
	if err != nil {
		zap.L().Error("Failed to parse balance", zap.String("quantity_str", quantityStr), zap.Error(err))
		return decimal.Zero, fmt.Errorf("failed to parse balance: %w", err)
	}

	return quantity, nil
}

// GetAllBalances returns all balance records for a user
func (s *Service) GetAllBalances(ctx context.Context, userId string) ([]models.BalanceRecord, error) {
	rows, err := s.db.QueryContext(ctx, queryGetAllUserBalances, userId)
	if err != nil {
		zap.L().Error("Failed to get all balances", zap.String("user_id", userId), zap.Error(err))
		return nil, fmt.Errorf("failed to get all balances: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var balances []models.BalanceRecord
	for rows.Next() {
		var balance models.BalanceRecord
		var quantityStr string
		var lastEntryId sql.NullString
		err := rows.Scan(&balance.Id, &balance.UserId, &balance.Coin, &balance.Network, &quantityStr,
			&lastEntryId, &balance.Version, &balance.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan balance: %w", err)
		}

		balance.Quantity, err = decimal.NewFromString(quantityStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse balance '%s': %w", quantityStr, err)
		}
		balance.LastEntryId = lastEntryId.String

		balances = append(balances, balance)
	}

	if err := rows.Err(); err != nil {
		zap.L().Error("Error during balance row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating balance rows: %w", err)
	}

	zap.L().Debug("Retrieved all balances", zap.String("user_id", userId), zap.Int("count", len(balances)))
	return balances, nil
}

// ReconcileBalance verifies that the hot balance matches the sum implied by
// the ledger: coin entries (confirmed, plus withdrawals still pending) and,
// for the settlement coin, credited sell proceeds.
func (s *Service) ReconcileBalance(ctx context.Context, userId, coin, network string) error {
	zap.L().Info("Reconciling balance", zap.String("user_id", userId), zap.String("coin", coin), zap.String("network", network))

	currentBalance, err := s.GetBalance(ctx, userId, coin, network)
	if err != nil {
		return fmt.Errorf("failed to get current balance: %w", err)
	}

	var coinSumStr string
	err = s.db.QueryRowContext(ctx, queryReconcileCoinEntries, userId, coin, network).Scan(&coinSumStr)
	if err != nil {
		return fmt.Errorf("failed to calculate balance from ledger: %w", err)
	}
	calculated, err := decimal.NewFromString(coinSumStr)
	if err != nil {
		return fmt.Errorf("failed to parse calculated balance '%s': %w", coinSumStr, err)
	}

	if coin == s.settlement.Coin && network == s.settlement.Network {
		var sellSumStr string
		err = s.db.QueryRowContext(ctx, queryReconcileSellCredits, userId).Scan(&sellSumStr)
		if err != nil {
			return fmt.Errorf("failed to calculate sell credits from ledger: %w", err)
		}
		sellCredits, err := decimal.NewFromString(sellSumStr)
		if err != nil {
			return fmt.Errorf("failed to parse sell credits '%s': %w", sellSumStr, err)
		}
		calculated = calculated.Add(sellCredits)
	}

	if !currentBalance.Equal(calculated) {
		zap.L().Error("Balance reconciliation failed",
			zap.String("user_id", userId),
			zap.String("coin", coin),
			zap.String("network", network),
			zap.String("current_balance", currentBalance.String()),
			zap.String("calculated_balance", calculated.String()),
			zap.String("difference", currentBalance.Sub(calculated).String()))
		return fmt.Errorf("balance mismatch: current=%s, calculated=%s", currentBalance.String(), calculated.String())
	}

	zap.L().Info("Balance reconciliation successful",
		zap.String("user_id", userId),
		zap.String("coin", coin),
		zap.String("balance", currentBalance.String()))
	return nil
}
