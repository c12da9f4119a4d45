package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"custody-ledger-go/internal/models"
	"custody-ledger-go/internal/store"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

func setupTestService(t *testing.T) (*Service, func()) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	service := &Service{
		db:         db,
		settlement: models.SettlementConfig{Coin: "USDT", Network: "ethereum"},
	}

	// Use the actual schema initialization
	if err := service.initSchema(false); err != nil {
		t.Fatalf("Failed to create test schema: %v", err)
	}

	_, err = db.Exec(queryInsertUser, "user1", "Test User", "test@example.com", "user")
	if err != nil {
		t.Fatalf("Failed to insert test user: %v", err)
	}
	_, err = db.Exec(queryInsertUser, "admin1", "Test Admin", "admin@example.com", "admin")
	if err != nil {
		t.Fatalf("Failed to insert test admin: %v", err)
	}

	cleanup := func() {
		db.Close()
	}

	return service, cleanup
}

func TestGetBalance_NoBalance(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	ctx := context.Background()

	balance, err := service.GetBalance(ctx, "user1", "BTC", "bitcoin")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if !balance.Equal(decimal.Zero) {
		t.Errorf("Expected balance 0, got %s", balance.String())
	}
}

func TestCredit_CreatesBalanceAndLedgerEntry(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	ctx := context.Background()
	amount := decimal.NewFromFloat(1.5)

	entry, err := service.Credit(ctx, store.CreditParams{
		UserId: "user1", Coin: "BTC", Network: "bitcoin", Quantity: amount,
	})
	if err != nil {
		t.Fatalf("Credit failed: %v", err)
	}

	if entry.Kind != models.LedgerKindDeposit {
		t.Errorf("Expected deposit entry, got %s", entry.Kind)
	}
	if entry.Status != models.LedgerStatusConfirmed {
		t.Errorf("Expected confirmed entry, got %s", entry.Status)
	}
	if !entry.BalanceBefore.Equal(decimal.Zero) {
		t.Errorf("Expected balance before 0, got %s", entry.BalanceBefore.String())
	}
	if !entry.BalanceAfter.Equal(amount) {
		t.Errorf("Expected balance after %s, got %s", amount.String(), entry.BalanceAfter.String())
	}

	balance, err := service.GetBalance(ctx, "user1", "BTC", "bitcoin")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if !balance.Equal(amount) {
		t.Errorf("Expected balance %s, got %s", amount.String(), balance.String())
	}
}

func TestCredit_RejectsNonPositiveQuantity(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	ctx := context.Background()

	_, err := service.Credit(ctx, store.CreditParams{
		UserId: "user1", Coin: "BTC", Network: "bitcoin", Quantity: decimal.NewFromFloat(-1),
	})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Errorf("Expected invalid input error, got: %v", err)
	}

	_, err = service.Credit(ctx, store.CreditParams{
		UserId: "user1", Coin: "BTC", Network: "bitcoin", Quantity: decimal.Zero,
	})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Errorf("Expected invalid input error, got: %v", err)
	}
}

func TestCredit_DuplicateReference(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	ctx := context.Background()
	amount := decimal.NewFromFloat(1.0)

	_, err := service.Credit(ctx, store.CreditParams{
		UserId: "user1", Coin: "BTC", Network: "bitcoin", Quantity: amount, Reference: "ext-tx-1",
	})
	if err != nil {
		t.Fatalf("First credit failed: %v", err)
	}

	_, err = service.Credit(ctx, store.CreditParams{
		UserId: "user1", Coin: "BTC", Network: "bitcoin", Quantity: amount, Reference: "ext-tx-1",
	})
	if !errors.Is(err, store.ErrDuplicateTransaction) {
		t.Errorf("Expected duplicate transaction error, got: %v", err)
	}

	// The failed replay must not have changed the balance.
	balance, err := service.GetBalance(ctx, "user1", "BTC", "bitcoin")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if !balance.Equal(amount) {
		t.Errorf("Expected balance %s, got %s", amount.String(), balance.String())
	}
}

func TestCredit_SameCoinDifferentNetworks(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	ctx := context.Background()

	_, err := service.Credit(ctx, store.CreditParams{
		UserId: "user1", Coin: "USDT", Network: "ethereum", Quantity: decimal.NewFromFloat(100),
	})
	if err != nil {
		t.Fatalf("Credit on ethereum failed: %v", err)
	}
	_, err = service.Credit(ctx, store.CreditParams{
		UserId: "user1", Coin: "USDT", Network: "tron", Quantity: decimal.NewFromFloat(25),
	})
	if err != nil {
		t.Fatalf("Credit on tron failed: %v", err)
	}

	balances, err := service.GetAllBalances(ctx, "user1")
	if err != nil {
		t.Fatalf("GetAllBalances failed: %v", err)
	}
	if len(balances) != 2 {
		t.Fatalf("Expected 2 balance records, got %d", len(balances))
	}

	found := make(map[string]decimal.Decimal)
	for _, b := range balances {
		found[b.Network] = b.Quantity
	}
	if !found["ethereum"].Equal(decimal.NewFromFloat(100)) {
		t.Errorf("Expected 100 on ethereum, got %s", found["ethereum"].String())
	}
	if !found["tron"].Equal(decimal.NewFromFloat(25)) {
		t.Errorf("Expected 25 on tron, got %s", found["tron"].String())
	}
}

func TestReconcileBalance_MatchesLedger(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	ctx := context.Background()

	_, err := service.Credit(ctx, store.CreditParams{
		UserId: "user1", Coin: "BTC", Network: "bitcoin", Quantity: decimal.NewFromFloat(5),
	})
	if err != nil {
		t.Fatalf("Credit failed: %v", err)
	}

	_, _, err = service.CreateWithdrawal(ctx, store.WithdrawalParams{
		UserId: "user1", Coin: "BTC", Network: "bitcoin",
		Amount: decimal.NewFromFloat(2), DestinationAddress: "bc1qtest",
	})
	if err != nil {
		t.Fatalf("CreateWithdrawal failed: %v", err)
	}

	if err := service.ReconcileBalance(ctx, "user1", "BTC", "bitcoin"); err != nil {
		t.Errorf("ReconcileBalance failed: %v", err)
	}
}
