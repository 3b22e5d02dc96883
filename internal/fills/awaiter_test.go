package fills

import (
	"context"
	"errors"
	"testing"
	"time"

	"easymarket/internal/gateway/exchange"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedClient struct {
	statuses []exchange.OrderStatus
	errs     []error
	calls    int
}

func (c *scriptedClient) Name() string { return "scripted" }
func (c *scriptedClient) CreateLimitOrder(context.Context, string, string, float64, float64) (*exchange.Order, error) {
	return nil, errors.New("unused")
}
func (c *scriptedClient) CreateMarketOrder(context.Context, string, string, float64) (*exchange.Order, error) {
	return nil, errors.New("unused")
}
func (c *scriptedClient) CancelOrder(context.Context, string, string) error {
	return errors.New("unused")
}
func (c *scriptedClient) FetchBalance(context.Context) (exchange.Balance, error) {
	return nil, errors.New("unused")
}
func (c *scriptedClient) FetchCurrencyBalance(context.Context, string) (float64, error) {
	return 0, errors.New("unused")
}
func (c *scriptedClient) FetchTicker(context.Context, string) (exchange.Ticker, error) {
	return exchange.Ticker{}, errors.New("unused")
}
func (c *scriptedClient) LoadMarkets(context.Context) (map[string]exchange.Market, error) {
	return nil, errors.New("unused")
}

func (c *scriptedClient) FetchOrderStatus(ctx context.Context, symbol, orderID string) (*exchange.Order, error) {
	idx := c.calls
	c.calls++
	if idx < len(c.errs) && c.errs[idx] != nil {
		return nil, c.errs[idx]
	}
	status := c.statuses[len(c.statuses)-1]
	if idx < len(c.statuses) {
		status = c.statuses[idx]
	}
	return &exchange.Order{ID: orderID, Symbol: symbol, Status: status, Filled: 1}, nil
}

func TestAwaitFillsAfterPolls(t *testing.T) {
	client := &scriptedClient{statuses: []exchange.OrderStatus{
		exchange.OrderStatusNew,
		exchange.OrderStatusPartiallyFilled,
		exchange.OrderStatusFilled,
	}}
	a := NewAwaiter(time.Millisecond, time.Second)

	order, outcome, err := a.Await(context.Background(), client, "BTC/USDT", "42")
	require.NoError(t, err)
	assert.Equal(t, OutcomeFilled, outcome)
	require.NotNil(t, order)
	assert.Equal(t, exchange.OrderStatusFilled, order.Status)
	assert.Equal(t, 3, client.calls)
}

func TestAwaitCanceledOnVenue(t *testing.T) {
	client := &scriptedClient{statuses: []exchange.OrderStatus{
		exchange.OrderStatusNew,
		exchange.OrderStatusCanceled,
	}}
	a := NewAwaiter(time.Millisecond, time.Second)

	_, outcome, err := a.Await(context.Background(), client, "BTC/USDT", "42")
	require.NoError(t, err)
	assert.Equal(t, OutcomeCanceled, outcome)
}

func TestAwaitTimeoutLeavesOrderResting(t *testing.T) {
	client := &scriptedClient{statuses: []exchange.OrderStatus{exchange.OrderStatusNew}}
	a := NewAwaiter(time.Millisecond, 10*time.Millisecond)

	order, outcome, err := a.Await(context.Background(), client, "BTC/USDT", "42")
	require.NoError(t, err)
	assert.Equal(t, OutcomePending, outcome)
	require.NotNil(t, order)
	assert.Equal(t, exchange.OrderStatusNew, order.Status)
}

func TestAwaitCancellation(t *testing.T) {
	client := &scriptedClient{statuses: []exchange.OrderStatus{exchange.OrderStatusNew}}
	a := NewAwaiter(5*time.Millisecond, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(2 * time.Millisecond)
		cancel()
	}()

	_, outcome, err := a.Await(ctx, client, "BTC/USDT", "42")
	assert.Equal(t, OutcomePending, outcome)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAwaitTransientErrorsKeepPolling(t *testing.T) {
	client := &scriptedClient{
		errs:     []error{exchange.Transient(errors.New("rate limit")), nil},
		statuses: []exchange.OrderStatus{exchange.OrderStatusFilled, exchange.OrderStatusFilled},
	}
	a := NewAwaiter(time.Millisecond, time.Second)

	_, outcome, err := a.Await(context.Background(), client, "BTC/USDT", "42")
	require.NoError(t, err)
	assert.Equal(t, OutcomeFilled, outcome)
	assert.Equal(t, 2, client.calls)
}
