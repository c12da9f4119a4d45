package database

import (
	"context"
	"errors"
	"testing"

	"custody-ledger-go/internal/models"
	"custody-ledger-go/internal/store"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

func depositForTest(t *testing.T, service *Service, userId, coin, network string, amount float64) {
	t.Helper()
	_, err := service.Credit(context.Background(), store.CreditParams{
		UserId: userId, Coin: coin, Network: network, Quantity: decimal.NewFromFloat(amount),
	})
	if err != nil {
		t.Fatalf("Failed to fund test account: %v", err)
	}
}

func TestCreateWithdrawal_ReservesFunds(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	ctx := context.Background()
	depositForTest(t, service, "user1", "BTC", "bitcoin", 5)

	withdrawal, entry, err := service.CreateWithdrawal(ctx, store.WithdrawalParams{
		UserId: "user1", Coin: "BTC", Network: "bitcoin",
		Amount: decimal.NewFromFloat(2), DestinationAddress: "bc1qtest",
	})
	if err != nil {
		t.Fatalf("CreateWithdrawal failed: %v", err)
	}

	if withdrawal.Status != models.WithdrawalStatusPending {
		t.Errorf("Expected pending withdrawal, got %s", withdrawal.Status)
	}
	if entry.Kind != models.LedgerKindWithdrawal {
		t.Errorf("Expected withdrawal entry, got %s", entry.Kind)
	}
	if entry.Status != models.LedgerStatusPending {
		t.Errorf("Expected pending entry, got %s", entry.Status)
	}
	if !entry.Quantity.Equal(decimal.NewFromFloat(-2)) {
		t.Errorf("Expected entry quantity -2, got %s", entry.Quantity.String())
	}
	if entry.Reference != withdrawal.Id {
		t.Errorf("Expected entry reference %s, got %s", withdrawal.Id, entry.Reference)
	}

	// Funds leave the balance at request time, not at approval.
	balance, err := service.GetBalance(ctx, "user1", "BTC", "bitcoin")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if !balance.Equal(decimal.NewFromFloat(3)) {
		t.Errorf("Expected balance 3 after reservation, got %s", balance.String())
	}
}

func TestCreateWithdrawal_InsufficientFunds(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	ctx := context.Background()
	depositForTest(t, service, "user1", "BTC", "bitcoin", 1)

	_, _, err := service.CreateWithdrawal(ctx, store.WithdrawalParams{
		UserId: "user1", Coin: "BTC", Network: "bitcoin",
		Amount: decimal.NewFromFloat(2), DestinationAddress: "bc1qtest",
	})
	if !errors.Is(err, store.ErrInsufficientFunds) {
		t.Fatalf("Expected insufficient funds error, got: %v", err)
	}

	// The failed request must leave no withdrawal and no ledger entry behind.
	balance, err := service.GetBalance(ctx, "user1", "BTC", "bitcoin")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if !balance.Equal(decimal.NewFromFloat(1)) {
		t.Errorf("Expected balance 1, got %s", balance.String())
	}
	open, err := service.ListOpenWithdrawals(ctx)
	if err != nil {
		t.Fatalf("ListOpenWithdrawals failed: %v", err)
	}
	if len(open) != 0 {
		t.Errorf("Expected no open withdrawals, got %d", len(open))
	}
	entries, err := service.GetLedger(ctx, "user1", 10, 0)
	if err != nil {
		t.Fatalf("GetLedger failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected only the deposit entry, got %d entries", len(entries))
	}
}

func TestApproveWithdrawal_ConfirmsEntry(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	ctx := context.Background()
	depositForTest(t, service, "user1", "BTC", "bitcoin", 5)

	withdrawal, _, err := service.CreateWithdrawal(ctx, store.WithdrawalParams{
		UserId: "user1", Coin: "BTC", Network: "bitcoin",
		Amount: decimal.NewFromFloat(2), DestinationAddress: "bc1qtest",
	})
	if err != nil {
		t.Fatalf("CreateWithdrawal failed: %v", err)
	}

	approved, err := service.ApproveWithdrawal(ctx, withdrawal.Id)
	if err != nil {
		t.Fatalf("ApproveWithdrawal failed: %v", err)
	}
	if approved.Status != models.WithdrawalStatusApproved {
		t.Errorf("Expected approved status, got %s", approved.Status)
	}

	// Approval does not move funds again.
	balance, err := service.GetBalance(ctx, "user1", "BTC", "bitcoin")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if !balance.Equal(decimal.NewFromFloat(3)) {
		t.Errorf("Expected balance 3, got %s", balance.String())
	}

	entries, err := service.GetLedger(ctx, "user1", 10, 0)
	if err != nil {
		t.Fatalf("GetLedger failed: %v", err)
	}
	var linked *models.LedgerEntry
	for i := range entries {
		if entries[i].Reference == withdrawal.Id {
			linked = &entries[i]
		}
	}
	if linked == nil {
		t.Fatalf("Linked ledger entry not found")
	}
	if linked.Status != models.LedgerStatusConfirmed {
		t.Errorf("Expected confirmed linked entry, got %s", linked.Status)
	}
}

func TestRejectWithdrawal_RefundsExactlyOnce(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	ctx := context.Background()
	depositForTest(t, service, "user1", "BTC", "bitcoin", 5)

	withdrawal, _, err := service.CreateWithdrawal(ctx, store.WithdrawalParams{
		UserId: "user1", Coin: "BTC", Network: "bitcoin",
		Amount: decimal.NewFromFloat(2), DestinationAddress: "bc1qtest",
	})
	if err != nil {
		t.Fatalf("CreateWithdrawal failed: %v", err)
	}

	rejected, err := service.RejectWithdrawal(ctx, withdrawal.Id)
	if err != nil {
		t.Fatalf("RejectWithdrawal failed: %v", err)
	}
	if rejected.Status != models.WithdrawalStatusRejected {
		t.Errorf("Expected rejected status, got %s", rejected.Status)
	}

	balance, err := service.GetBalance(ctx, "user1", "BTC", "bitcoin")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if !balance.Equal(decimal.NewFromFloat(5)) {
		t.Errorf("Expected balance restored to 5, got %s", balance.String())
	}

	entries, err := service.GetLedger(ctx, "user1", 10, 0)
	if err != nil {
		t.Fatalf("GetLedger failed: %v", err)
	}
	for _, e := range entries {
		if e.Reference == withdrawal.Id && e.Status != models.LedgerStatusFailed {
			t.Errorf("Expected failed linked entry, got %s", e.Status)
		}
	}

	// A second rejection must not refund again.
	_, err = service.RejectWithdrawal(ctx, withdrawal.Id)
	if !errors.Is(err, store.ErrInvalidTransition) {
		t.Fatalf("Expected invalid transition error, got: %v", err)
	}
	balance, err = service.GetBalance(ctx, "user1", "BTC", "bitcoin")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if !balance.Equal(decimal.NewFromFloat(5)) {
		t.Errorf("Expected balance still 5 after replayed rejection, got %s", balance.String())
	}
}

func TestDecideWithdrawal_AlreadyDecided(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	ctx := context.Background()
	depositForTest(t, service, "user1", "BTC", "bitcoin", 5)

	withdrawal, _, err := service.CreateWithdrawal(ctx, store.WithdrawalParams{
		UserId: "user1", Coin: "BTC", Network: "bitcoin",
		Amount: decimal.NewFromFloat(1), DestinationAddress: "bc1qtest",
	})
	if err != nil {
		t.Fatalf("CreateWithdrawal failed: %v", err)
	}

	if _, err := service.ApproveWithdrawal(ctx, withdrawal.Id); err != nil {
		t.Fatalf("ApproveWithdrawal failed: %v", err)
	}

	if _, err := service.ApproveWithdrawal(ctx, withdrawal.Id); !errors.Is(err, store.ErrInvalidTransition) {
		t.Errorf("Expected invalid transition on re-approval, got: %v", err)
	}
	if _, err := service.RejectWithdrawal(ctx, withdrawal.Id); !errors.Is(err, store.ErrInvalidTransition) {
		t.Errorf("Expected invalid transition on rejection after approval, got: %v", err)
	}
}

func TestListOpenWithdrawals_OnlyPending(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	ctx := context.Background()
	depositForTest(t, service, "user1", "BTC", "bitcoin", 10)

	first, _, err := service.CreateWithdrawal(ctx, store.WithdrawalParams{
		UserId: "user1", Coin: "BTC", Network: "bitcoin",
		Amount: decimal.NewFromFloat(1), DestinationAddress: "bc1qa",
	})
	if err != nil {
		t.Fatalf("CreateWithdrawal failed: %v", err)
	}
	second, _, err := service.CreateWithdrawal(ctx, store.WithdrawalParams{
		UserId: "user1", Coin: "BTC", Network: "bitcoin",
		Amount: decimal.NewFromFloat(2), DestinationAddress: "bc1qb",
	})
	if err != nil {
		t.Fatalf("CreateWithdrawal failed: %v", err)
	}

	if _, err := service.ApproveWithdrawal(ctx, first.Id); err != nil {
		t.Fatalf("ApproveWithdrawal failed: %v", err)
	}

	open, err := service.ListOpenWithdrawals(ctx)
	if err != nil {
		t.Fatalf("ListOpenWithdrawals failed: %v", err)
	}
	if len(open) != 1 {
		t.Fatalf("Expected 1 open withdrawal, got %d", len(open))
	}
	if open[0].Id != second.Id {
		t.Errorf("Expected withdrawal %s, got %s", second.Id, open[0].Id)
	}
}
