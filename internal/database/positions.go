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

// applyPositionDelta mutates one position record inside the caller's
// transaction. Creates the record on first buy settlement, rejects any delta
// that would take held shares negative, and enforces the version check.
func applyPositionDelta(ctx context.Context, q querier, userId, symbol string, delta decimal.Decimal) (before, after decimal.Decimal, err error) {
	var positionId, sharesStr string
	var version int64

	err = q.QueryRowContext(ctx, queryGetPositionForUpdate, userId, symbol).Scan(&positionId, &sharesStr, &version)
	if errors.Is(err, sql.ErrNoRows) {
		positionId = uuid.New().String()
		before = decimal.Zero
		version = 1
		if _, err = q.ExecContext(ctx, queryInsertPosition, positionId, userId, symbol, "0", 1); err != nil {
			return decimal.Zero, decimal.Zero, fmt.Errorf("failed to create position record: %w", err)
		}
	} else if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("failed to get current position: %w", err)
	} else {
		before, err = decimal.NewFromString(sharesStr)
		if err != nil {
			return decimal.Zero, decimal.Zero, fmt.Errorf("failed to parse current position '%s': %w", sharesStr, err)
		}
	}

	after = before.Add(delta)
	if after.IsNegative() {
		return before, before, fmt.Errorf("%w: held %s shares of %s, requested %s",
			store.ErrOverSell, before.String(), symbol, delta.Neg().String())
	}

	result, err := q.ExecContext(ctx, queryUpdatePosition, after.String(), positionId, version)
	if err != nil {
		return before, before, fmt.Errorf("failed to update position: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return before, before, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return before, before, fmt.Errorf("position update failed - %w", store.ErrConcurrentModification)
	}

	return before, after, nil
}

// availableToSell computes held shares minus the remainder reserved by other
// open sell orders, from a single consistent read inside q.
func availableToSell(ctx context.Context, q querier, userId, symbol string) (decimal.Decimal, error) {
	var sharesStr string
	held := decimal.Zero
	err := q.QueryRowContext(ctx, queryGetPosition, userId, symbol).Scan(&sharesStr)
	if err == nil {
		held, err = decimal.NewFromString(sharesStr)
		if err != nil {
			return decimal.Zero, fmt.Errorf("failed to parse position '%s': %w", sharesStr, err)
		}
	} else if !errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("failed to get position: %w", err)
	}

	rows, err := q.QueryContext(ctx, queryOpenSellOrders, userId, symbol)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to query open sell orders: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	reserved := decimal.Zero
	for rows.Next() {
		var requestedStr, processedStr string
		if err := rows.Scan(&requestedStr, &processedStr); err != nil {
			return decimal.Zero, fmt.Errorf("failed to scan open sell order: %w", err)
		}
		requested, err := decimal.NewFromString(requestedStr)
		if err != nil {
			return decimal.Zero, fmt.Errorf("failed to parse requested shares '%s': %w", requestedStr, err)
		}
		processed, err := decimal.NewFromString(processedStr)
		if err != nil {
			return decimal.Zero, fmt.Errorf("failed to parse processed shares '%s': %w", processedStr, err)
		}
		reserved = reserved.Add(requested.Sub(processed))
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, fmt.Errorf("error iterating open sell orders: %w", err)
	}

	return held.Sub(reserved), nil
}

// GetPosition returns held shares for user/symbol (zero if no record).
func (s *Service) GetPosition(ctx context.Context, userId, symbol string) (decimal.Decimal, error) {
	var sharesStr string
	err := s.db.QueryRowContext(ctx, queryGetPosition, userId, symbol).Scan(&sharesStr)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		zap.L().Error("Failed to get position", zap.String("user_id", userId), zap.String("symbol", symbol), zap.Error(err))
		return decimal.Zero, fmt.Errorf("failed to get position: %w", err)
	}

	shares, err := decimal.NewFromString(sharesStr)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse position '%s': %w", sharesStr, err)
	}
	return shares, nil
}

// GetAllPositions returns all position records for a user
func (s *Service) GetAllPositions(ctx context.Context, userId string) ([]models.PositionRecord, error) {
	rows, err := s.db.QueryContext(ctx, queryGetAllUserPositions, userId)
	if err != nil {
		zap.L().Error("Failed to get all positions", zap.String("user_id", userId), zap.Error(err))
		return nil, fmt.Errorf("failed to get all positions: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var positions []models.PositionRecord
	for rows.Next() {
		var position models.PositionRecord
		var sharesStr string
		err := rows.Scan(&position.Id, &position.UserId, &position.Symbol, &sharesStr, &position.Version, &position.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}

		position.Shares, err = decimal.NewFromString(sharesStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse position '%s': %w", sharesStr, err)
		}

		positions = append(positions, position)
	}

	if err := rows.Err(); err != nil {
		zap.L().Error("Error during position row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating position rows: %w", err)
	}

	return positions, nil
}

// AvailableToSell returns shares not already reserved by open sell orders.
func (s *Service) AvailableToSell(ctx context.Context, userId, symbol string) (decimal.Decimal, error) {
	return availableToSell(ctx, s.db, userId, symbol)
}
