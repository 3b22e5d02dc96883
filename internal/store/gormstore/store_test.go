package gormstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"easymarket/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedBotAndAccount(t *testing.T, s *Store) (types.Bot, types.Account) {
	t.Helper()
	ctx := context.Background()
	acc := types.Account{ID: 1, Name: "main", Exchange: "binance", APIKey: "k", APISecret: "s"}
	bot := types.Bot{
		ID: 7, Name: "btc-trend", Symbol: "BTC/USDT", AccountID: 1,
		OrderKind: types.OrderKindLimit, OrderSizePct: 10,
		MakerFee: 0.001, TakerFee: 0.002, Enabled: true,
	}
	require.NoError(t, s.UpsertAccounts(ctx, []types.Account{acc}))
	require.NoError(t, s.UpsertBots(ctx, []types.Bot{bot}))
	return bot, acc
}

func TestUpsertAndLoadBot(t *testing.T) {
	s := newTestStore(t)
	bot, _ := seedBotAndAccount(t, s)
	ctx := context.Background()

	got, err := s.LoadBot(ctx, bot.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, bot.Symbol, got.Symbol)
	assert.Equal(t, types.OrderKindLimit, got.OrderKind)
	assert.True(t, got.Enabled)

	// Second upsert with changed fields updates in place.
	bot.OrderSizePct = 25
	bot.Enabled = false
	require.NoError(t, s.UpsertBots(ctx, []types.Bot{bot}))
	got, err = s.LoadBot(ctx, bot.ID)
	require.NoError(t, err)
	assert.Equal(t, 25.0, got.OrderSizePct)
	assert.False(t, got.Enabled)
}

func TestLoadBotMissingReturnsNil(t *testing.T) {
	s := newTestStore(t)
	got, err := s.LoadBot(context.Background(), 999)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUpsertAccountPreservesBalance(t *testing.T) {
	s := newTestStore(t)
	_, acc := seedBotAndAccount(t, s)
	ctx := context.Background()

	require.NoError(t, s.UpdateAccountBalance(ctx, acc.ID, 1234.5))

	// Re-syncing profiles must not clobber the cached balance.
	require.NoError(t, s.UpsertAccounts(ctx, []types.Account{acc}))
	got, err := s.LoadAccount(ctx, acc.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 1234.5, got.BalanceUSDT)
}

func TestPositionRoundTrip(t *testing.T) {
	s := newTestStore(t)
	bot, _ := seedBotAndAccount(t, s)
	ctx := context.Background()

	pos := &types.Position{
		BotID: bot.ID, Symbol: bot.Symbol, Side: types.SideLong,
		Status: types.StatusOpen, OrderKind: types.OrderKindLimit,
		Quantity: 0.002, EntryPrice: 50000, EntryTime: time.Now(),
		OrderID: "o-1", Fees: 0.1,
	}
	require.NoError(t, s.SavePosition(ctx, pos))
	require.NotZero(t, pos.ID)

	open, err := s.LoadOpenPosition(ctx, bot.ID, bot.Symbol)
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, pos.ID, open.ID)
	assert.Equal(t, "o-1", open.OrderID)

	open.Status = types.StatusClosed
	open.ExitPrice = 51000
	open.ExitTime = time.Now()
	open.ExitOrderID = "o-2"
	require.NoError(t, s.SavePosition(ctx, open))

	gone, err := s.LoadOpenPosition(ctx, bot.ID, bot.Symbol)
	require.NoError(t, err)
	assert.Nil(t, gone)

	all, err := s.ListPositions(ctx, bot.ID, 10)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, types.StatusClosed, all[0].Status)
	assert.Equal(t, 51000.0, all[0].ExitPrice)
}

func TestRecordSignalAssignsID(t *testing.T) {
	s := newTestStore(t)
	sig := &types.Signal{
		Kind: types.SignalEnterLong, BotID: 7, Symbol: "BTC/USDT",
		ReceivedAt: time.Now(),
	}
	require.NoError(t, s.RecordSignal(context.Background(), sig))
	assert.NotZero(t, sig.ID)
}
