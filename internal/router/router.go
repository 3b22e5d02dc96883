// Package router turns parsed signals into venue orders and position
// transitions. It is the only writer of position state; all work for one
// (bot, symbol) pair runs under the position manager's keyed lock.
package router

import (
	"context"
	"errors"
	"fmt"
	"time"

	"easymarket/internal/fills"
	"easymarket/internal/gateway/exchange"
	"easymarket/internal/logger"
	"easymarket/internal/market"
	"easymarket/internal/pkg/symbol"
	"easymarket/internal/position"
	"easymarket/internal/sizing"
	"easymarket/internal/types"
)

// ErrBotNotFound: the signal references a bot id that is not registered.
var ErrBotNotFound = errors.New("bot not found")

// Store is the persistence surface the router consumes. Load methods return
// (nil, nil) when the row does not exist.
type Store interface {
	LoadBot(ctx context.Context, botID int64) (*types.Bot, error)
	LoadAccount(ctx context.Context, accountID int64) (*types.Account, error)
	LoadOpenPosition(ctx context.Context, botID int64, symbol string) (*types.Position, error)
	RecordSignal(ctx context.Context, sig *types.Signal) error
	UpdateAccountBalance(ctx context.Context, accountID int64, balanceUSDT float64) error
}

// ClientFactory resolves the venue client for an account.
type ClientFactory interface {
	ClientFor(account *types.Account) (exchange.Client, error)
}

type Router struct {
	store     Store
	positions *position.Manager
	clients   ClientFactory
	metadata  *market.MetadataCache
	awaiter   *fills.Awaiter

	retryAttempts int
	retryBackoff  time.Duration
}

type Options struct {
	RetryAttempts int
	RetryBackoff  time.Duration
}

func New(store Store, positions *position.Manager, clients ClientFactory, metadata *market.MetadataCache, awaiter *fills.Awaiter, opts Options) *Router {
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = 3
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 500 * time.Millisecond
	}
	return &Router{
		store:         store,
		positions:     positions,
		clients:       clients,
		metadata:      metadata,
		awaiter:       awaiter,
		retryAttempts: opts.RetryAttempts,
		retryBackoff:  opts.RetryBackoff,
	}
}

// Handle processes one signal to a terminal Result. An error is returned only
// for infrastructure failures (unknown bot, storage down); venue rejections
// and sizing refusals come back as StatusRejected.
func (r *Router) Handle(ctx context.Context, sig types.Signal) (Result, error) {
	bot, err := r.store.LoadBot(ctx, sig.BotID)
	if err != nil {
		return Result{}, fmt.Errorf("loading bot %d: %w", sig.BotID, err)
	}
	if bot == nil {
		return Result{}, fmt.Errorf("%w: id %d", ErrBotNotFound, sig.BotID)
	}
	sig.Symbol = bot.Symbol

	// The audit row is written before any processing so rejected and failed
	// signals are still visible afterwards.
	if err := r.store.RecordSignal(ctx, &sig); err != nil {
		logger.Warnf("router: recording signal for bot %d failed: %v", sig.BotID, err)
	}

	if !bot.Enabled {
		return rejected(sig, fmt.Sprintf("bot %d is disabled", bot.ID)), nil
	}

	account, err := r.store.LoadAccount(ctx, bot.AccountID)
	if err != nil {
		return Result{}, fmt.Errorf("loading account %d: %w", bot.AccountID, err)
	}
	if account == nil {
		return Result{}, fmt.Errorf("bot %d references missing account %d", bot.ID, bot.AccountID)
	}

	client, err := r.clients.ClientFor(account)
	if err != nil {
		return Result{}, fmt.Errorf("building client for account %d: %w", account.ID, err)
	}

	var meta exchange.Market
	if err := r.retry(ctx, "load metadata", func() error {
		var mErr error
		meta, mErr = r.metadata.Get(ctx, account.Exchange, client, bot.Symbol)
		return mErr
	}); err != nil {
		return Result{}, fmt.Errorf("metadata for %s: %w", bot.Symbol, err)
	}
	tradeSymbol := symbol.Normalize(bot.Symbol, meta.Inverted)

	unlock := r.positions.Lock(bot.ID, bot.Symbol)
	defer unlock()

	if sig.Kind.IsEntry() {
		return r.handleEntry(ctx, sig, bot, account, client, meta, tradeSymbol)
	}
	return r.handleExit(ctx, sig, bot, client, meta, tradeSymbol)
}

func (r *Router) handleEntry(ctx context.Context, sig types.Signal, bot *types.Bot, account *types.Account, client exchange.Client, meta exchange.Market, tradeSymbol string) (Result, error) {
	existing, err := r.store.LoadOpenPosition(ctx, bot.ID, bot.Symbol)
	if err != nil {
		return Result{}, fmt.Errorf("loading open position: %w", err)
	}
	if existing.IsOpen() {
		return rejected(sig, fmt.Sprintf("position already open for bot %d %s (entry order %s)",
			bot.ID, bot.Symbol, existing.OrderID)), nil
	}

	side := sig.Kind.Side()
	price, err := r.entryPrice(ctx, bot, client, tradeSymbol, side)
	if err != nil {
		return Result{}, err
	}

	var balance exchange.Balance
	if err := r.retry(ctx, "fetch balance", func() error {
		var bErr error
		balance, bErr = client.FetchBalance(ctx)
		return bErr
	}); err != nil {
		return Result{}, fmt.Errorf("fetching balance: %w", err)
	}

	quantity, err := sizing.Calculate(sizing.Input{
		Balance:    balance,
		Metadata:   meta,
		Percentage: bot.OrderSizePct,
		Side:       side,
		Kind:       bot.OrderKind,
		Price:      price,
		LookupBalance: func(currency string) (float64, bool) {
			free, lErr := client.FetchCurrencyBalance(ctx, currency)
			if lErr != nil {
				logger.Warnf("router: secondary balance lookup for %s failed: %v", currency, lErr)
				return 0, false
			}
			return free, true
		},
	})
	if err != nil {
		if errors.Is(err, sizing.ErrQuantityBelowMinimum) || errors.Is(err, sizing.ErrInsufficientBalanceData) {
			return rejected(sig, err.Error()), nil
		}
		return Result{}, fmt.Errorf("sizing order: %w", err)
	}

	orderSide := exchange.SideBuy
	if side == types.SideShort {
		orderSide = exchange.SideSell
	}
	order, result, err := r.placeOrder(ctx, sig, bot, client, tradeSymbol, orderSide, quantity, price)
	if order == nil {
		return result, err
	}

	outcome, final, awaitErr := r.awaitFill(ctx, client, tradeSymbol, order)
	switch outcome {
	case fills.OutcomeFilled:
	case fills.OutcomeCanceled:
		return rejected(sig, fmt.Sprintf("entry order %s canceled on the venue", order.ID)), nil
	default:
		if awaitErr != nil && exchange.IsRejected(awaitErr) {
			return r.reconcile(sig, order.ID, fmt.Sprintf("entry order %s status unknown: %v", order.ID, awaitErr)), nil
		}
		// A market order is final the moment the venue accepts it; if its
		// fill cannot be confirmed the trade may already exist, so this is
		// never a benign Pending.
		if bot.OrderKind == types.OrderKindMarket {
			return r.reconcile(sig, order.ID, fmt.Sprintf("market entry order %s placed but fill unconfirmed", order.ID)), nil
		}
		logger.Infof("router: entry order %s for bot %d still pending", order.ID, bot.ID)
		return Result{Status: StatusPending, Signal: sig, OrderID: order.ID}, nil
	}

	fillPrice := final.Price
	if fillPrice <= 0 {
		fillPrice = price
	}
	fillQty := final.Filled
	if fillQty <= 0 {
		fillQty = quantity
	}
	pos, err := r.positions.Open(ctx, position.OpenRequest{
		Bot:      bot,
		Side:     side,
		Quantity: fillQty,
		Price:    fillPrice,
		OrderID:  order.ID,
		FilledAt: orderTime(final),
	})
	if err != nil {
		return r.reconcile(sig, order.ID, fmt.Sprintf("entry order %s filled but position not recorded: %v", order.ID, err)), nil
	}

	r.refreshBalance(ctx, account, client, meta.Quote)
	return Result{Status: StatusCreated, Signal: sig, Position: pos, OrderID: order.ID}, nil
}

func (r *Router) handleExit(ctx context.Context, sig types.Signal, bot *types.Bot, client exchange.Client, meta exchange.Market, tradeSymbol string) (Result, error) {
	pos, err := r.store.LoadOpenPosition(ctx, bot.ID, bot.Symbol)
	if err != nil {
		return Result{}, fmt.Errorf("loading open position: %w", err)
	}
	if !pos.IsOpen() {
		return rejected(sig, fmt.Sprintf("no open position for bot %d %s", bot.ID, bot.Symbol)), nil
	}
	if pos.Side != sig.Kind.Side() {
		return rejected(sig, fmt.Sprintf("open position is %s, signal exits %s", pos.Side, sig.Kind.Side())), nil
	}

	// The tracked position only ever records confirmed fills, so a not-filled
	// entry order here means venue and store have diverged.
	var entry *exchange.Order
	if err := r.retry(ctx, "verify entry order", func() error {
		var fErr error
		entry, fErr = client.FetchOrderStatus(ctx, tradeSymbol, pos.OrderID)
		return fErr
	}); err != nil {
		return r.reconcile(sig, pos.OrderID, fmt.Sprintf("entry order %s unverifiable: %v", pos.OrderID, err)), nil
	}
	if entry.Status != exchange.OrderStatusFilled {
		return r.reconcile(sig, pos.OrderID, fmt.Sprintf("entry order %s is %s on the venue but tracked as filled",
			pos.OrderID, entry.Status)), nil
	}

	// Exits sell what the position recorded, never a resized amount.
	quantity := pos.Quantity
	orderSide := exchange.SideSell
	if pos.Side == types.SideShort {
		orderSide = exchange.SideBuy
	}

	price := 0.0
	if bot.OrderKind == types.OrderKindLimit {
		price, err = r.restingPrice(ctx, client, tradeSymbol, orderSide)
		if err != nil {
			return Result{}, err
		}
	}

	order, result, err := r.placeOrder(ctx, sig, bot, client, tradeSymbol, orderSide, quantity, price)
	if order == nil {
		return result, err
	}

	outcome, final, awaitErr := r.awaitFill(ctx, client, tradeSymbol, order)
	switch outcome {
	case fills.OutcomeFilled:
	case fills.OutcomeCanceled:
		return rejected(sig, fmt.Sprintf("exit order %s canceled on the venue", order.ID)), nil
	default:
		if awaitErr != nil && exchange.IsRejected(awaitErr) {
			return r.reconcile(sig, order.ID, fmt.Sprintf("exit order %s status unknown: %v", order.ID, awaitErr)), nil
		}
		if bot.OrderKind == types.OrderKindMarket {
			return r.reconcile(sig, order.ID, fmt.Sprintf("market exit order %s placed but fill unconfirmed", order.ID)), nil
		}
		logger.Infof("router: exit order %s for bot %d still pending", order.ID, bot.ID)
		return Result{Status: StatusPending, Signal: sig, OrderID: order.ID}, nil
	}

	fillPrice := final.Price
	if fillPrice <= 0 {
		fillPrice = price
	}
	closed, err := r.positions.Close(ctx, position.CloseRequest{
		Bot:          bot,
		EntryOrderID: pos.OrderID,
		ExitOrderID:  order.ID,
		Quantity:     quantity,
		Price:        fillPrice,
		FilledAt:     orderTime(final),
	})
	if err != nil {
		return r.reconcile(sig, order.ID, fmt.Sprintf("exit order %s filled but position not closed: %v", order.ID, err)), nil
	}
	return Result{Status: StatusClosed, Signal: sig, Position: closed, OrderID: order.ID}, nil
}

// placeOrder submits the order with retry on transient errors. A nil order in
// the return means the caller should hand back the Result/error pair as-is.
func (r *Router) placeOrder(ctx context.Context, sig types.Signal, bot *types.Bot, client exchange.Client, tradeSymbol, orderSide string, quantity, price float64) (*exchange.Order, Result, error) {
	var order *exchange.Order
	err := r.retry(ctx, "place order", func() error {
		var pErr error
		if bot.OrderKind == types.OrderKindLimit {
			order, pErr = client.CreateLimitOrder(ctx, tradeSymbol, orderSide, quantity, price)
		} else {
			order, pErr = client.CreateMarketOrder(ctx, tradeSymbol, orderSide, quantity)
		}
		return pErr
	})
	if err != nil {
		if exchange.IsRejected(err) {
			return nil, rejected(sig, fmt.Sprintf("venue rejected order: %v", err)), nil
		}
		return nil, Result{}, fmt.Errorf("placing %s %s order for bot %d: %w", bot.OrderKind, orderSide, bot.ID, err)
	}
	logger.Infof("router: placed %s %s %s qty=%.8f price=%.8f order=%s bot=%d",
		bot.OrderKind, orderSide, tradeSymbol, quantity, price, order.ID, bot.ID)
	return order, Result{}, nil
}

func (r *Router) awaitFill(ctx context.Context, client exchange.Client, tradeSymbol string, order *exchange.Order) (fills.Outcome, *exchange.Order, error) {
	// The create response is authoritative when it already carries a final
	// status (market orders typically do); no status poll is needed then.
	if order.Status.Final() {
		if order.Status == exchange.OrderStatusFilled {
			return fills.OutcomeFilled, order, nil
		}
		return fills.OutcomeCanceled, order, nil
	}
	final, outcome, err := r.awaiter.Await(ctx, client, tradeSymbol, order.ID)
	if final == nil {
		final = order
	}
	return outcome, final, err
}

// entryPrice resolves the price used for sizing and, for limit orders, the
// resting price. A configured bot limit price wins; otherwise the book is
// consulted.
func (r *Router) entryPrice(ctx context.Context, bot *types.Bot, client exchange.Client, tradeSymbol string, side types.PositionSide) (float64, error) {
	if bot.OrderKind == types.OrderKindLimit && bot.LimitPrice > 0 {
		return bot.LimitPrice, nil
	}
	orderSide := exchange.SideBuy
	if side == types.SideShort {
		orderSide = exchange.SideSell
	}
	return r.restingPrice(ctx, client, tradeSymbol, orderSide)
}

// restingPrice returns the book side a limit order of the given side joins:
// bid for buys, ask for sells, falling back to the last trade. Joining rather
// than crossing keeps limit orders on the maker side the fee table assumes.
func (r *Router) restingPrice(ctx context.Context, client exchange.Client, tradeSymbol, orderSide string) (float64, error) {
	var ticker exchange.Ticker
	if err := r.retry(ctx, "fetch ticker", func() error {
		var tErr error
		ticker, tErr = client.FetchTicker(ctx, tradeSymbol)
		return tErr
	}); err != nil {
		return 0, fmt.Errorf("fetching ticker for %s: %w", tradeSymbol, err)
	}
	price := ticker.Bid
	if orderSide == exchange.SideSell {
		price = ticker.Ask
	}
	if price <= 0 {
		price = ticker.Last
	}
	if price <= 0 {
		return 0, fmt.Errorf("no usable price for %s", tradeSymbol)
	}
	return price, nil
}

// refreshBalance updates the cached quote balance after a fill. Best effort.
func (r *Router) refreshBalance(ctx context.Context, account *types.Account, client exchange.Client, quote string) {
	free, err := client.FetchCurrencyBalance(ctx, quote)
	if err != nil {
		logger.Warnf("router: balance refresh for account %d failed: %v", account.ID, err)
		return
	}
	if err := r.store.UpdateAccountBalance(ctx, account.ID, free); err != nil {
		logger.Warnf("router: storing balance for account %d failed: %v", account.ID, err)
	}
}

func (r *Router) reconcile(sig types.Signal, orderID, reason string) Result {
	logger.Errorf("router: reconciliation required for bot %d %s: %s", sig.BotID, sig.Symbol, reason)
	return Result{Status: StatusReconciliationRequired, Signal: sig, OrderID: orderID, Reason: reason}
}

// retry runs fn up to the configured attempt count, backing off exponentially
// between transient failures. Permanent errors abort immediately.
func (r *Router) retry(ctx context.Context, op string, fn func() error) error {
	backoff := r.retryBackoff
	var err error
	for attempt := 1; attempt <= r.retryAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if !retryable(err) || attempt == r.retryAttempts {
			return err
		}
		logger.Warnf("router: %s attempt %d/%d failed, retrying in %s: %v",
			op, attempt, r.retryAttempts, backoff, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return err
}

func retryable(err error) bool {
	return exchange.IsTransient(err) || errors.Is(err, market.ErrMetadataUnavailable)
}

func orderTime(order *exchange.Order) time.Time {
	if order != nil && !order.Timestamp.IsZero() {
		return order.Timestamp
	}
	return time.Now()
}
