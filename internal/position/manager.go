// Package position owns the open/closed lifecycle of Position records. All
// transitions for one (bot, symbol) pair are serialized through a keyed lock
// so concurrent signals can never double-open or double-close.
package position

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"easymarket/internal/logger"
	"easymarket/internal/types"
)

var (
	// ErrDuplicateOpenPosition: an entry arrived while a position is already
	// open for the (bot, symbol). Entries are never merged.
	ErrDuplicateOpenPosition = errors.New("position already open")

	// ErrPositionNotOpen: an exit arrived with no open position to close.
	ErrPositionNotOpen = errors.New("no open position")

	// ErrUnknownOrderID: the exit referenced an entry order id that does not
	// match the tracked open position.
	ErrUnknownOrderID = errors.New("order id does not match open position")
)

// Store is the persistence capability the manager consumes. LoadOpenPosition
// returns (nil, nil) when no open position exists.
type Store interface {
	LoadOpenPosition(ctx context.Context, botID int64, symbol string) (*types.Position, error)
	SavePosition(ctx context.Context, p *types.Position) error
}

type Manager struct {
	store Store

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewManager(store Store) *Manager {
	return &Manager{store: store, locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the (bot, symbol) mutex and returns its release func. Callers
// must hold it across observe-then-transition sequences; Open and Close do
// not lock on their own.
func (m *Manager) Lock(botID int64, symbol string) func() {
	key := fmt.Sprintf("%d|%s", botID, symbol)
	m.mu.Lock()
	lock, ok := m.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[key] = lock
	}
	m.mu.Unlock()
	lock.Lock()
	return lock.Unlock
}

// OpenRequest describes a confirmed entry fill.
type OpenRequest struct {
	Bot      *types.Bot
	Side     types.PositionSide
	Quantity float64
	Price    float64
	OrderID  string
	FilledAt time.Time
}

// Open transitions none -> open. The fee is fixed now from the fill price and
// quantity and never recomputed.
func (m *Manager) Open(ctx context.Context, req OpenRequest) (*types.Position, error) {
	bot := req.Bot
	existing, err := m.store.LoadOpenPosition(ctx, bot.ID, bot.Symbol)
	if err != nil {
		return nil, fmt.Errorf("loading open position: %w", err)
	}
	if existing.IsOpen() {
		return nil, fmt.Errorf("%w: bot=%d symbol=%s order=%s",
			ErrDuplicateOpenPosition, bot.ID, bot.Symbol, existing.OrderID)
	}

	pos := &types.Position{
		BotID:      bot.ID,
		Symbol:     bot.Symbol,
		Side:       req.Side,
		Status:     types.StatusOpen,
		OrderKind:  bot.OrderKind,
		Quantity:   req.Quantity,
		EntryPrice: req.Price,
		EntryTime:  req.FilledAt,
		OrderID:    req.OrderID,
		StopLoss:   types.StopLossPrice(req.Side, req.Price, bot.StopLossPct),
		TakeProfit: types.TakeProfitPrice(req.Side, req.Price, bot.TakeProfitPct),
		Fees:       fee(bot, req.Side, req.Quantity, req.Price),
	}
	if err := m.store.SavePosition(ctx, pos); err != nil {
		return nil, fmt.Errorf("saving opened position: %w", err)
	}
	logger.Infof("position: opened %s %s bot=%d qty=%.8f price=%.8f order=%s",
		pos.Side, pos.Symbol, pos.BotID, pos.Quantity, pos.EntryPrice, pos.OrderID)
	return pos, nil
}

// CloseRequest describes a confirmed exit fill for the position opened by
// EntryOrderID.
type CloseRequest struct {
	Bot          *types.Bot
	EntryOrderID string
	ExitOrderID  string
	Quantity     float64
	Price        float64
	FilledAt     time.Time
}

// Close transitions open -> closed. Entry fields are left untouched; the exit
// fee is added on top of the entry fee fixed at open time.
func (m *Manager) Close(ctx context.Context, req CloseRequest) (*types.Position, error) {
	bot := req.Bot
	pos, err := m.store.LoadOpenPosition(ctx, bot.ID, bot.Symbol)
	if err != nil {
		return nil, fmt.Errorf("loading open position: %w", err)
	}
	if !pos.IsOpen() {
		return nil, fmt.Errorf("%w: bot=%d symbol=%s", ErrPositionNotOpen, bot.ID, bot.Symbol)
	}
	if pos.OrderID != req.EntryOrderID {
		return nil, fmt.Errorf("%w: got %s, open position was entered by %s",
			ErrUnknownOrderID, req.EntryOrderID, pos.OrderID)
	}

	pos.Status = types.StatusClosed
	pos.ExitPrice = req.Price
	pos.ExitTime = req.FilledAt
	pos.ExitOrderID = req.ExitOrderID
	pos.Fees += fee(bot, pos.Side, req.Quantity, req.Price)
	if err := m.store.SavePosition(ctx, pos); err != nil {
		return nil, fmt.Errorf("saving closed position: %w", err)
	}
	logger.Infof("position: closed %s %s bot=%d exit=%.8f fees=%.8f order=%s",
		pos.Side, pos.Symbol, pos.BotID, pos.ExitPrice, pos.Fees, pos.ExitOrderID)
	return pos, nil
}

// fee applies the maker/taker table: limit-long and market-short earn the
// maker rate, limit-short and market-long pay taker.
func fee(bot *types.Bot, side types.PositionSide, quantity, price float64) float64 {
	rate := bot.FeeRate(bot.OrderKind, side)
	if rate < 0 {
		logger.Warnf("position: negative fee rate %.8f for bot=%d, clamping to 0", rate, bot.ID)
		return 0
	}
	return rate * quantity * price
}
