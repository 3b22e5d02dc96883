package position

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"easymarket/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu        sync.Mutex
	positions []*types.Position
	saveErr   error
	nextID    int64
}

func (s *memStore) LoadOpenPosition(ctx context.Context, botID int64, symbol string) (*types.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.positions {
		if p.BotID == botID && p.Symbol == symbol && p.Status == types.StatusOpen {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memStore) SavePosition(ctx context.Context, p *types.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	if p.ID == 0 {
		s.nextID++
		p.ID = s.nextID
		cp := *p
		s.positions = append(s.positions, &cp)
		return nil
	}
	for i, existing := range s.positions {
		if existing.ID == p.ID {
			cp := *p
			s.positions[i] = &cp
			return nil
		}
	}
	return errors.New("position not found")
}

func (s *memStore) openCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.positions {
		if p.Status == types.StatusOpen {
			n++
		}
	}
	return n
}

func limitBot() *types.Bot {
	return &types.Bot{
		ID:        7,
		Symbol:    "BTC/USDT",
		OrderKind: types.OrderKindLimit,
		MakerFee:  0.001,
		TakerFee:  0.002,
	}
}

func TestOpenCloseRoundTrip(t *testing.T) {
	store := &memStore{}
	m := NewManager(store)
	bot := limitBot()
	bot.TakeProfitPct = 2
	bot.StopLossPct = 1

	entryTime := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	pos, err := m.Open(context.Background(), OpenRequest{
		Bot:      bot,
		Side:     types.SideLong,
		Quantity: 0.002,
		Price:    50000,
		OrderID:  "entry-1",
		FilledAt: entryTime,
	})
	require.NoError(t, err)
	assert.Equal(t, types.StatusOpen, pos.Status)
	assert.Equal(t, entryTime, pos.EntryTime)
	// limit + long pays maker: 0.001 * 0.002 * 50000
	assert.InDelta(t, 0.1, pos.Fees, 1e-12)
	assert.InDelta(t, 51000, pos.TakeProfit, 1e-9)
	assert.InDelta(t, 49500, pos.StopLoss, 1e-9)

	exitTime := entryTime.Add(time.Hour)
	closed, err := m.Close(context.Background(), CloseRequest{
		Bot:          bot,
		EntryOrderID: "entry-1",
		ExitOrderID:  "exit-1",
		Quantity:     0.002,
		Price:        52000,
		FilledAt:     exitTime,
	})
	require.NoError(t, err)
	assert.Equal(t, types.StatusClosed, closed.Status)
	assert.Equal(t, 52000.0, closed.ExitPrice)
	assert.Equal(t, exitTime, closed.ExitTime)
	assert.Equal(t, "exit-1", closed.ExitOrderID)
	// Entry fields untouched.
	assert.Equal(t, 50000.0, closed.EntryPrice)
	assert.Equal(t, entryTime, closed.EntryTime)
	assert.GreaterOrEqual(t, closed.Fees, 0.0)
	// Entry maker fee + exit maker fee (limit-long).
	assert.InDelta(t, 0.1+0.001*0.002*52000, closed.Fees, 1e-12)
	assert.Equal(t, 0, store.openCount())
}

func TestOpenRejectsDuplicate(t *testing.T) {
	store := &memStore{}
	m := NewManager(store)
	bot := limitBot()

	_, err := m.Open(context.Background(), OpenRequest{
		Bot: bot, Side: types.SideLong, Quantity: 1, Price: 100, OrderID: "a", FilledAt: time.Now(),
	})
	require.NoError(t, err)

	_, err = m.Open(context.Background(), OpenRequest{
		Bot: bot, Side: types.SideLong, Quantity: 1, Price: 100, OrderID: "b", FilledAt: time.Now(),
	})
	assert.ErrorIs(t, err, ErrDuplicateOpenPosition)
	assert.Equal(t, 1, store.openCount())
}

func TestCloseWithoutOpenPosition(t *testing.T) {
	m := NewManager(&memStore{})
	_, err := m.Close(context.Background(), CloseRequest{
		Bot: limitBot(), EntryOrderID: "nope", ExitOrderID: "x", Quantity: 1, Price: 100, FilledAt: time.Now(),
	})
	assert.ErrorIs(t, err, ErrPositionNotOpen)
}

func TestCloseUnknownOrderID(t *testing.T) {
	store := &memStore{}
	m := NewManager(store)
	bot := limitBot()

	_, err := m.Open(context.Background(), OpenRequest{
		Bot: bot, Side: types.SideShort, Quantity: 1, Price: 100, OrderID: "entry-1", FilledAt: time.Now(),
	})
	require.NoError(t, err)

	_, err = m.Close(context.Background(), CloseRequest{
		Bot: bot, EntryOrderID: "stale-entry", ExitOrderID: "x", Quantity: 1, Price: 100, FilledAt: time.Now(),
	})
	assert.ErrorIs(t, err, ErrUnknownOrderID)
	assert.Equal(t, 1, store.openCount())
}

func TestFeeTable(t *testing.T) {
	tests := []struct {
		kind types.OrderKind
		side types.PositionSide
		want float64 // rate, with maker=0.001 taker=0.002
	}{
		{types.OrderKindLimit, types.SideLong, 0.001},
		{types.OrderKindLimit, types.SideShort, 0.002},
		{types.OrderKindMarket, types.SideLong, 0.002},
		{types.OrderKindMarket, types.SideShort, 0.001},
	}
	for _, tt := range tests {
		bot := limitBot()
		bot.OrderKind = tt.kind
		got := fee(bot, tt.side, 2, 1000)
		assert.InDelta(t, tt.want*2*1000, got, 1e-12, "%s %s", tt.kind, tt.side)
	}
}

func TestFeeNeverNegative(t *testing.T) {
	bot := limitBot()
	bot.MakerFee = -0.001
	assert.Equal(t, 0.0, fee(bot, types.SideLong, 1, 100))
}

func TestConcurrentEntriesCreateExactlyOnePosition(t *testing.T) {
	store := &memStore{}
	m := NewManager(store)
	bot := limitBot()

	const n = 25
	var wg sync.WaitGroup
	var mu sync.Mutex
	created, rejected := 0, 0

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			unlock := m.Lock(bot.ID, bot.Symbol)
			defer unlock()
			_, err := m.Open(context.Background(), OpenRequest{
				Bot: bot, Side: types.SideLong, Quantity: 1, Price: 100,
				OrderID: "entry", FilledAt: time.Now(),
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, ErrDuplicateOpenPosition):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, n-1, rejected)
	assert.Equal(t, 1, store.openCount())
}
