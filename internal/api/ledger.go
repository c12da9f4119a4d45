package api

import (
	"context"

	"custody-ledger-go/internal/models"
)

// GetLedger returns a page of the user's ledger, newest first.
func (s *LedgerService) GetLedger(ctx context.Context, userId string, limit, offset int) ([]models.LedgerEntry, error) {
	return s.db.GetLedger(ctx, userId, limit, offset)
}

// MarkLedgerRead clears the user's unread flags.
func (s *LedgerService) MarkLedgerRead(ctx context.Context, userId string) error {
	return s.db.MarkLedgerRead(ctx, userId)
}

// UnreadCount returns the number of ledger entries the user has not seen.
func (s *LedgerService) UnreadCount(ctx context.Context, userId string) (int64, error) {
	return s.db.UnreadCount(ctx, userId)
}
