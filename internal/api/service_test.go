package api

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"custody-ledger-go/internal/common"
	"custody-ledger-go/internal/database"
	"custody-ledger-go/internal/models"
	"custody-ledger-go/internal/pricer"
	"custody-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingMirror struct {
	entries []models.LedgerEntry
}

func (m *recordingMirror) MirrorEntry(_ context.Context, entry *models.LedgerEntry) error {
	m.entries = append(m.entries, *entry)
	return nil
}

func setupLedgerService(t *testing.T) (*LedgerService, *recordingMirror, string) {
	ctx := context.Background()

	db, err := database.NewService(ctx, models.DatabaseConfig{
		Path:            filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Minute,
		ConnMaxIdleTime: time.Minute,
		PingTimeout:     5 * time.Second,
	}, models.SettlementConfig{Coin: "USDT", Network: "ethereum"})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	user, err := db.CreateUser(ctx, "Customer", "customer@example.com", "user")
	require.NoError(t, err)

	p, err := pricer.NewStaticPricer([]pricer.InstrumentConfig{
		{Symbol: "AAPL", Name: "Apple Inc.", Price: "150"},
		{Symbol: "MSFT", Name: "Microsoft Corp.", Price: "400"},
	})
	require.NoError(t, err)

	catalog := common.NewAssetCatalog([]common.AssetConfig{
		{Symbol: "BTC", Network: "bitcoin"},
		{Symbol: "USDT", Network: "ethereum"},
	})

	mirror := &recordingMirror{}
	return NewLedgerService(db, mirror, p, catalog), mirror, user.Id
}

func TestDeposit_Success(t *testing.T) {
	svc, mirror, userId := setupLedgerService(t)
	ctx := context.Background()

	result, err := svc.Deposit(ctx, userId, "BTC", "bitcoin", decimal.NewFromFloat(1.5), "ext-1")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, result.NewBalance.Equal(decimal.NewFromFloat(1.5)))
	require.Len(t, mirror.entries, 1)
	assert.Equal(t, models.LedgerKindDeposit, mirror.entries[0].Kind)
}

func TestDeposit_UnsupportedAsset(t *testing.T) {
	svc, mirror, userId := setupLedgerService(t)
	ctx := context.Background()

	result, err := svc.Deposit(ctx, userId, "DOGE", "dogecoin", decimal.NewFromFloat(100), "")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "unsupported")
	assert.Empty(t, mirror.entries)
}

func TestDeposit_DuplicateReference(t *testing.T) {
	svc, _, userId := setupLedgerService(t)
	ctx := context.Background()

	first, err := svc.Deposit(ctx, userId, "BTC", "bitcoin", decimal.NewFromFloat(1), "ext-dup")
	require.NoError(t, err)
	assert.True(t, first.Success)

	replay, err := svc.Deposit(ctx, userId, "BTC", "bitcoin", decimal.NewFromFloat(1), "ext-dup")
	require.NoError(t, err)
	assert.False(t, replay.Success)

	balance, err := svc.GetBalance(ctx, userId, "BTC", "bitcoin")
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromFloat(1)))
}

func TestRequestWithdrawal_MirrorsPendingEntry(t *testing.T) {
	svc, mirror, userId := setupLedgerService(t)
	ctx := context.Background()

	_, err := svc.Deposit(ctx, userId, "BTC", "bitcoin", decimal.NewFromFloat(5), "")
	require.NoError(t, err)

	withdrawal, err := svc.RequestWithdrawal(ctx, userId, "BTC", "bitcoin", decimal.NewFromFloat(2), "bc1qtest")
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalStatusPending, withdrawal.Status)

	require.Len(t, mirror.entries, 2)
	assert.Equal(t, models.LedgerKindWithdrawal, mirror.entries[1].Kind)
	assert.Equal(t, withdrawal.Id, mirror.entries[1].Reference)
}

func TestRequestWithdrawal_UnsupportedAsset(t *testing.T) {
	svc, _, userId := setupLedgerService(t)
	ctx := context.Background()

	_, err := svc.RequestWithdrawal(ctx, userId, "DOGE", "dogecoin", decimal.NewFromFloat(1), "addr")
	assert.ErrorIs(t, err, store.ErrInvalidInput)
}

func TestSubmitOrders_LockCatalogPrice(t *testing.T) {
	svc, _, userId := setupLedgerService(t)
	ctx := context.Background()

	buy, err := svc.SubmitBuyOrder(ctx, userId, "AAPL", decimal.NewFromFloat(10))
	require.NoError(t, err)
	assert.True(t, buy.UnitPrice.Equal(decimal.NewFromFloat(150)))
	assert.Equal(t, models.OrderStatusPending, buy.Status)

	_, err = svc.SubmitBuyOrder(ctx, userId, "TSLA", decimal.NewFromFloat(1))
	assert.ErrorIs(t, err, store.ErrInvalidInput)
}

func TestSubmitSellOrder_RequiresShares(t *testing.T) {
	svc, _, userId := setupLedgerService(t)
	ctx := context.Background()

	_, err := svc.SubmitSellOrder(ctx, userId, "AAPL", decimal.NewFromFloat(1))
	assert.ErrorIs(t, err, store.ErrOverSell)
}

func TestPortfolioValue(t *testing.T) {
	svc, _, userId := setupLedgerService(t)
	ctx := context.Background()

	buy, err := svc.SubmitBuyOrder(ctx, userId, "AAPL", decimal.NewFromFloat(10))
	require.NoError(t, err)
	_, _, err = svc.db.ApproveBuyOrder(ctx, buy.Id)
	require.NoError(t, err)

	buy, err = svc.SubmitBuyOrder(ctx, userId, "MSFT", decimal.NewFromFloat(2))
	require.NoError(t, err)
	_, _, err = svc.db.ApproveBuyOrder(ctx, buy.Id)
	require.NoError(t, err)

	valuation, err := svc.PortfolioValue(ctx, userId)
	require.NoError(t, err)
	assert.Len(t, valuation.Holdings, 2)
	// 10*150 + 2*400 = 2300
	assert.True(t, valuation.Total.Equal(decimal.NewFromFloat(2300)), "got %s", valuation.Total.String())
}

func TestLedgerReadFlags(t *testing.T) {
	svc, _, userId := setupLedgerService(t)
	ctx := context.Background()

	_, err := svc.Deposit(ctx, userId, "BTC", "bitcoin", decimal.NewFromFloat(1), "")
	require.NoError(t, err)
	_, err = svc.Deposit(ctx, userId, "BTC", "bitcoin", decimal.NewFromFloat(2), "")
	require.NoError(t, err)

	unread, err := svc.UnreadCount(ctx, userId)
	require.NoError(t, err)
	assert.EqualValues(t, 2, unread)

	require.NoError(t, svc.MarkLedgerRead(ctx, userId))

	unread, err = svc.UnreadCount(ctx, userId)
	require.NoError(t, err)
	assert.EqualValues(t, 0, unread)

	entries, err := svc.GetLedger(ctx, userId, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.True(t, e.Read)
	}
}
