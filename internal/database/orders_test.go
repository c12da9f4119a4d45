package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"custody-ledger-go/internal/models"
	"custody-ledger-go/internal/store"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

func buyAndApprove(t *testing.T, service *Service, userId, symbol string, shares, price float64) {
	t.Helper()
	ctx := context.Background()
	order, err := service.CreateBuyOrder(ctx, store.OrderParams{
		UserId: userId, Symbol: symbol,
		Shares: decimal.NewFromFloat(shares), UnitPrice: decimal.NewFromFloat(price),
	})
	if err != nil {
		t.Fatalf("CreateBuyOrder failed: %v", err)
	}
	if _, _, err := service.ApproveBuyOrder(ctx, order.Id); err != nil {
		t.Fatalf("ApproveBuyOrder failed: %v", err)
	}
}

func TestCreateBuyOrder_PendingOnly(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	ctx := context.Background()

	order, err := service.CreateBuyOrder(ctx, store.OrderParams{
		UserId: "user1", Symbol: "AAPL",
		Shares: decimal.NewFromFloat(10), UnitPrice: decimal.NewFromFloat(150),
	})
	if err != nil {
		t.Fatalf("CreateBuyOrder failed: %v", err)
	}
	if order.Status != models.OrderStatusPending {
		t.Errorf("Expected pending order, got %s", order.Status)
	}

	// Submission alone changes nothing: no position, no ledger entry.
	position, err := service.GetPosition(ctx, "user1", "AAPL")
	if err != nil {
		t.Fatalf("GetPosition failed: %v", err)
	}
	if !position.Equal(decimal.Zero) {
		t.Errorf("Expected position 0 before approval, got %s", position.String())
	}
	entries, err := service.GetLedger(ctx, "user1", 10, 0)
	if err != nil {
		t.Fatalf("GetLedger failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected empty ledger before approval, got %d entries", len(entries))
	}
}

func TestApproveBuyOrder_SettlesPosition(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	ctx := context.Background()

	order, err := service.CreateBuyOrder(ctx, store.OrderParams{
		UserId: "user1", Symbol: "AAPL",
		Shares: decimal.NewFromFloat(10), UnitPrice: decimal.NewFromFloat(150),
	})
	if err != nil {
		t.Fatalf("CreateBuyOrder failed: %v", err)
	}

	settled, entry, err := service.ApproveBuyOrder(ctx, order.Id)
	if err != nil {
		t.Fatalf("ApproveBuyOrder failed: %v", err)
	}
	if settled.Status != models.OrderStatusApproved {
		t.Errorf("Expected approved order, got %s", settled.Status)
	}
	if entry.Kind != models.LedgerKindBuySettlement {
		t.Errorf("Expected buy settlement entry, got %s", entry.Kind)
	}
	if !entry.MonetaryValue.Equal(decimal.NewFromFloat(1500)) {
		t.Errorf("Expected monetary value 1500, got %s", entry.MonetaryValue.String())
	}

	position, err := service.GetPosition(ctx, "user1", "AAPL")
	if err != nil {
		t.Fatalf("GetPosition failed: %v", err)
	}
	if !position.Equal(decimal.NewFromFloat(10)) {
		t.Errorf("Expected position 10, got %s", position.String())
	}

	// The settled order row is gone; a replayed decision cannot find it.
	if _, _, err := service.ApproveBuyOrder(ctx, order.Id); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected not found on replayed approval, got: %v", err)
	}
}

func TestRejectBuyOrder_NoMutation(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	ctx := context.Background()

	order, err := service.CreateBuyOrder(ctx, store.OrderParams{
		UserId: "user1", Symbol: "AAPL",
		Shares: decimal.NewFromFloat(10), UnitPrice: decimal.NewFromFloat(150),
	})
	if err != nil {
		t.Fatalf("CreateBuyOrder failed: %v", err)
	}

	rejected, err := service.RejectBuyOrder(ctx, order.Id)
	if err != nil {
		t.Fatalf("RejectBuyOrder failed: %v", err)
	}
	if rejected.Status != models.OrderStatusRejected {
		t.Errorf("Expected rejected order, got %s", rejected.Status)
	}

	position, err := service.GetPosition(ctx, "user1", "AAPL")
	if err != nil {
		t.Fatalf("GetPosition failed: %v", err)
	}
	if !position.Equal(decimal.Zero) {
		t.Errorf("Expected position 0, got %s", position.String())
	}
	if _, err := service.GetOrder(ctx, order.Id); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected order row removed, got: %v", err)
	}
}

func TestCreateSellOrder_OverSellRejected(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	ctx := context.Background()
	buyAndApprove(t, service, "user1", "AAPL", 10, 150)

	_, err := service.CreateSellOrder(ctx, store.OrderParams{
		UserId: "user1", Symbol: "AAPL",
		Shares: decimal.NewFromFloat(11), UnitPrice: decimal.NewFromFloat(160),
	})
	if !errors.Is(err, store.ErrOverSell) {
		t.Fatalf("Expected over-sell error, got: %v", err)
	}
}

func TestCreateSellOrder_OpenOrdersReserveShares(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	ctx := context.Background()
	buyAndApprove(t, service, "user1", "AAPL", 10, 150)

	_, err := service.CreateSellOrder(ctx, store.OrderParams{
		UserId: "user1", Symbol: "AAPL",
		Shares: decimal.NewFromFloat(8), UnitPrice: decimal.NewFromFloat(160),
	})
	if err != nil {
		t.Fatalf("CreateSellOrder failed: %v", err)
	}

	// 10 held, 8 reserved by the open order: only 2 remain sellable.
	available, err := service.AvailableToSell(ctx, "user1", "AAPL")
	if err != nil {
		t.Fatalf("AvailableToSell failed: %v", err)
	}
	if !available.Equal(decimal.NewFromFloat(2)) {
		t.Errorf("Expected 2 available, got %s", available.String())
	}

	_, err = service.CreateSellOrder(ctx, store.OrderParams{
		UserId: "user1", Symbol: "AAPL",
		Shares: decimal.NewFromFloat(3), UnitPrice: decimal.NewFromFloat(160),
	})
	if !errors.Is(err, store.ErrOverSell) {
		t.Errorf("Expected over-sell error for reserved shares, got: %v", err)
	}

	_, err = service.CreateSellOrder(ctx, store.OrderParams{
		UserId: "user1", Symbol: "AAPL",
		Shares: decimal.NewFromFloat(2), UnitPrice: decimal.NewFromFloat(160),
	})
	if err != nil {
		t.Errorf("Expected sell within available shares to succeed, got: %v", err)
	}
}

func TestApproveSellOrder_PartialFill(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	ctx := context.Background()
	buyAndApprove(t, service, "user1", "AAPL", 100, 10)

	order, err := service.CreateSellOrder(ctx, store.OrderParams{
		UserId: "user1", Symbol: "AAPL",
		Shares: decimal.NewFromFloat(100), UnitPrice: decimal.NewFromFloat(12),
	})
	if err != nil {
		t.Fatalf("CreateSellOrder failed: %v", err)
	}

	settlement, err := service.ApproveSellOrder(ctx, order.Id, decimal.NewFromFloat(40))
	if err != nil {
		t.Fatalf("ApproveSellOrder failed: %v", err)
	}
	if !settlement.Processed.Equal(decimal.NewFromFloat(40)) {
		t.Errorf("Expected 40 processed, got %s", settlement.Processed.String())
	}
	if !settlement.Credited.Equal(decimal.NewFromFloat(480)) {
		t.Errorf("Expected 480 credited, got %s", settlement.Credited.String())
	}
	if settlement.Order.Status != models.OrderStatusPartialSold {
		t.Errorf("Expected partial-sold, got %s", settlement.Order.Status)
	}

	position, err := service.GetPosition(ctx, "user1", "AAPL")
	if err != nil {
		t.Fatalf("GetPosition failed: %v", err)
	}
	if !position.Equal(decimal.NewFromFloat(60)) {
		t.Errorf("Expected position 60, got %s", position.String())
	}

	// Proceeds land on the settlement coin at the locked order price.
	usdt, err := service.GetBalance(ctx, "user1", "USDT", "ethereum")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if !usdt.Equal(decimal.NewFromFloat(480)) {
		t.Errorf("Expected 480 USDT, got %s", usdt.String())
	}

	// Filling the remainder closes and removes the order.
	settlement, err = service.ApproveSellOrder(ctx, order.Id, decimal.Zero)
	if err != nil {
		t.Fatalf("Second ApproveSellOrder failed: %v", err)
	}
	if !settlement.Processed.Equal(decimal.NewFromFloat(60)) {
		t.Errorf("Expected 60 processed, got %s", settlement.Processed.String())
	}
	if settlement.Order.Status != models.OrderStatusSold {
		t.Errorf("Expected sold, got %s", settlement.Order.Status)
	}
	if _, err := service.GetOrder(ctx, order.Id); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected settled order removed, got: %v", err)
	}

	usdt, err = service.GetBalance(ctx, "user1", "USDT", "ethereum")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if !usdt.Equal(decimal.NewFromFloat(1200)) {
		t.Errorf("Expected 1200 USDT total, got %s", usdt.String())
	}
	position, err = service.GetPosition(ctx, "user1", "AAPL")
	if err != nil {
		t.Fatalf("GetPosition failed: %v", err)
	}
	if !position.Equal(decimal.Zero) {
		t.Errorf("Expected position 0, got %s", position.String())
	}
}

func TestApproveSellOrder_ApprovedSharesAboveRemaining(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	ctx := context.Background()
	buyAndApprove(t, service, "user1", "AAPL", 10, 10)

	order, err := service.CreateSellOrder(ctx, store.OrderParams{
		UserId: "user1", Symbol: "AAPL",
		Shares: decimal.NewFromFloat(10), UnitPrice: decimal.NewFromFloat(12),
	})
	if err != nil {
		t.Fatalf("CreateSellOrder failed: %v", err)
	}

	// Approving more than remains clamps to the remainder.
	settlement, err := service.ApproveSellOrder(ctx, order.Id, decimal.NewFromFloat(50))
	if err != nil {
		t.Fatalf("ApproveSellOrder failed: %v", err)
	}
	if !settlement.Processed.Equal(decimal.NewFromFloat(10)) {
		t.Errorf("Expected 10 processed, got %s", settlement.Processed.String())
	}
	if settlement.Order.Status != models.OrderStatusSold {
		t.Errorf("Expected sold, got %s", settlement.Order.Status)
	}
}

func TestRejectSellOrder_ReleasesRemainder(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	ctx := context.Background()
	buyAndApprove(t, service, "user1", "AAPL", 100, 10)

	order, err := service.CreateSellOrder(ctx, store.OrderParams{
		UserId: "user1", Symbol: "AAPL",
		Shares: decimal.NewFromFloat(100), UnitPrice: decimal.NewFromFloat(12),
	})
	if err != nil {
		t.Fatalf("CreateSellOrder failed: %v", err)
	}
	if _, err := service.ApproveSellOrder(ctx, order.Id, decimal.NewFromFloat(40)); err != nil {
		t.Fatalf("ApproveSellOrder failed: %v", err)
	}

	rejected, err := service.RejectSellOrder(ctx, order.Id)
	if err != nil {
		t.Fatalf("RejectSellOrder failed: %v", err)
	}
	if rejected.Status != models.OrderStatusSellRejected {
		t.Errorf("Expected sell-rejected, got %s", rejected.Status)
	}
	// Processed shares stay sold and the position is untouched by rejection.
	if !rejected.ProcessedShares.Equal(decimal.NewFromFloat(40)) {
		t.Errorf("Expected processed shares frozen at 40, got %s", rejected.ProcessedShares.String())
	}
	position, err := service.GetPosition(ctx, "user1", "AAPL")
	if err != nil {
		t.Fatalf("GetPosition failed: %v", err)
	}
	if !position.Equal(decimal.NewFromFloat(60)) {
		t.Errorf("Expected position 60, got %s", position.String())
	}

	// The closed order no longer reserves anything: all 60 remaining shares
	// can be listed again.
	available, err := service.AvailableToSell(ctx, "user1", "AAPL")
	if err != nil {
		t.Fatalf("AvailableToSell failed: %v", err)
	}
	if !available.Equal(decimal.NewFromFloat(60)) {
		t.Errorf("Expected 60 available after rejection, got %s", available.String())
	}

	// The closed order accepts no further decisions.
	if _, err := service.ApproveSellOrder(ctx, order.Id, decimal.Zero); !errors.Is(err, store.ErrInvalidTransition) {
		t.Errorf("Expected invalid transition on approval after rejection, got: %v", err)
	}
	if _, err := service.RejectSellOrder(ctx, order.Id); !errors.Is(err, store.ErrInvalidTransition) {
		t.Errorf("Expected invalid transition on replayed rejection, got: %v", err)
	}
}

func TestListOpenOrders_BySide(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	ctx := context.Background()
	buyAndApprove(t, service, "user1", "AAPL", 10, 10)

	if _, err := service.CreateBuyOrder(ctx, store.OrderParams{
		UserId: "user1", Symbol: "MSFT",
		Shares: decimal.NewFromFloat(5), UnitPrice: decimal.NewFromFloat(300),
	}); err != nil {
		t.Fatalf("CreateBuyOrder failed: %v", err)
	}
	sell, err := service.CreateSellOrder(ctx, store.OrderParams{
		UserId: "user1", Symbol: "AAPL",
		Shares: decimal.NewFromFloat(4), UnitPrice: decimal.NewFromFloat(12),
	})
	if err != nil {
		t.Fatalf("CreateSellOrder failed: %v", err)
	}

	buys, err := service.ListOpenOrders(ctx, models.OrderSideBuy)
	if err != nil {
		t.Fatalf("ListOpenOrders failed: %v", err)
	}
	if len(buys) != 1 || buys[0].Symbol != "MSFT" {
		t.Errorf("Expected 1 open MSFT buy, got %+v", buys)
	}

	// A partially filled sell is still open.
	if _, err := service.ApproveSellOrder(ctx, sell.Id, decimal.NewFromFloat(1)); err != nil {
		t.Fatalf("ApproveSellOrder failed: %v", err)
	}
	sells, err := service.ListOpenOrders(ctx, models.OrderSideSell)
	if err != nil {
		t.Fatalf("ListOpenOrders failed: %v", err)
	}
	if len(sells) != 1 || sells[0].Status != models.OrderStatusPartialSold {
		t.Errorf("Expected 1 open partial-sold sell, got %+v", sells)
	}
}

func TestDeleteClosedOrders(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	ctx := context.Background()
	buyAndApprove(t, service, "user1", "AAPL", 10, 10)

	order, err := service.CreateSellOrder(ctx, store.OrderParams{
		UserId: "user1", Symbol: "AAPL",
		Shares: decimal.NewFromFloat(4), UnitPrice: decimal.NewFromFloat(12),
	})
	if err != nil {
		t.Fatalf("CreateSellOrder failed: %v", err)
	}
	if _, err := service.RejectSellOrder(ctx, order.Id); err != nil {
		t.Fatalf("RejectSellOrder failed: %v", err)
	}

	// Cutoff before the order's update leaves it in place.
	deleted, err := service.DeleteClosedOrders(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("DeleteClosedOrders failed: %v", err)
	}
	if deleted != 0 {
		t.Errorf("Expected 0 deleted, got %d", deleted)
	}

	deleted, err = service.DeleteClosedOrders(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("DeleteClosedOrders failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("Expected 1 deleted, got %d", deleted)
	}
	if _, err := service.GetOrder(ctx, order.Id); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected pruned order gone, got: %v", err)
	}
}
