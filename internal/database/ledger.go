package database

import (
	"context"
	"database/sql"
	"fmt"

	"custody-ledger-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func scanLedgerRows(rows *sql.Rows) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	for rows.Next() {
		var e models.LedgerEntry
		var kind, status string
		var quantityStr, monetaryStr, beforeStr, afterStr string
		err := rows.Scan(&e.Id, &e.UserId, &kind, &e.SymbolOrCoin, &e.Network,
			&quantityStr, &monetaryStr, &beforeStr, &afterStr,
			&status, &e.Reference, &e.Read, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		if e.Quantity, err = decimal.NewFromString(quantityStr); err != nil {
			return nil, fmt.Errorf("failed to parse quantity '%s': %w", quantityStr, err)
		}
		if e.MonetaryValue, err = decimal.NewFromString(monetaryStr); err != nil {
			return nil, fmt.Errorf("failed to parse monetary value '%s': %w", monetaryStr, err)
		}
		if e.BalanceBefore, err = decimal.NewFromString(beforeStr); err != nil {
			return nil, fmt.Errorf("failed to parse balance before '%s': %w", beforeStr, err)
		}
		if e.BalanceAfter, err = decimal.NewFromString(afterStr); err != nil {
			return nil, fmt.Errorf("failed to parse balance after '%s': %w", afterStr, err)
		}
		e.Kind = models.LedgerKind(kind)
		e.Status = models.LedgerStatus(status)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger rows: %w", err)
	}
	return entries, nil
}

// GetLedger returns one user's ledger entries, newest first.
func (s *Service) GetLedger(ctx context.Context, userId string, limit, offset int) ([]models.LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.QueryContext(ctx, queryGetLedgerByUser, userId, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	return scanLedgerRows(rows)
}

// GetLedgerAll returns ledger entries across all users, newest first. Used by
// the approval gateway's audit view.
func (s *Service) GetLedgerAll(ctx context.Context, limit, offset int) ([]models.LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.QueryContext(ctx, queryGetLedgerAll, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	return scanLedgerRows(rows)
}

// MarkLedgerRead flags all of a user's unread entries as read.
func (s *Service) MarkLedgerRead(ctx context.Context, userId string) error {
	result, err := s.db.ExecContext(ctx, queryMarkLedgerRead, userId)
	if err != nil {
		return fmt.Errorf("failed to mark ledger read: %w", err)
	}
	marked, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if marked > 0 {
		zap.L().Debug("Ledger entries marked read",
			zap.String("user_id", userId),
			zap.Int64("marked", marked))
	}
	return nil
}

// UnreadCount returns how many ledger entries the user has not seen yet.
func (s *Service) UnreadCount(ctx context.Context, userId string) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, queryUnreadCount, userId).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count unread entries: %w", err)
	}
	return count, nil
}
