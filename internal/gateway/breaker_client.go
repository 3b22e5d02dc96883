package gateway

import (
	"context"
	"fmt"

	"easymarket/internal/gateway/exchange"
	"easymarket/internal/pkg/circuit"
)

// breakerClient decorates an exchange client with a circuit breaker. Only
// transient failures count against the breaker; venue rejections are the
// caller's problem, not the venue being down.
type breakerClient struct {
	inner   exchange.Client
	breaker *circuit.Breaker
}

func withBreaker(inner exchange.Client, breaker *circuit.Breaker) exchange.Client {
	return &breakerClient{inner: inner, breaker: breaker}
}

func (c *breakerClient) Name() string { return c.inner.Name() }

func (c *breakerClient) guard(op string) error {
	if !c.breaker.Allow() {
		return exchange.Transient(fmt.Errorf("circuit open, %s suppressed", op))
	}
	return nil
}

func (c *breakerClient) record(err error) {
	if err == nil || exchange.IsRejected(err) {
		c.breaker.RecordSuccess()
		return
	}
	c.breaker.RecordFailure()
}

func (c *breakerClient) CreateLimitOrder(ctx context.Context, symbol, side string, quantity, price float64) (*exchange.Order, error) {
	if err := c.guard("create limit order"); err != nil {
		return nil, err
	}
	order, err := c.inner.CreateLimitOrder(ctx, symbol, side, quantity, price)
	c.record(err)
	return order, err
}

func (c *breakerClient) CreateMarketOrder(ctx context.Context, symbol, side string, quantity float64) (*exchange.Order, error) {
	if err := c.guard("create market order"); err != nil {
		return nil, err
	}
	order, err := c.inner.CreateMarketOrder(ctx, symbol, side, quantity)
	c.record(err)
	return order, err
}

func (c *breakerClient) CancelOrder(ctx context.Context, symbol, orderID string) error {
	if err := c.guard("cancel order"); err != nil {
		return err
	}
	err := c.inner.CancelOrder(ctx, symbol, orderID)
	c.record(err)
	return err
}

func (c *breakerClient) FetchOrderStatus(ctx context.Context, symbol, orderID string) (*exchange.Order, error) {
	if err := c.guard("fetch order status"); err != nil {
		return nil, err
	}
	order, err := c.inner.FetchOrderStatus(ctx, symbol, orderID)
	c.record(err)
	return order, err
}

func (c *breakerClient) FetchBalance(ctx context.Context) (exchange.Balance, error) {
	if err := c.guard("fetch balance"); err != nil {
		return nil, err
	}
	balance, err := c.inner.FetchBalance(ctx)
	c.record(err)
	return balance, err
}

func (c *breakerClient) FetchCurrencyBalance(ctx context.Context, currency string) (float64, error) {
	if err := c.guard("fetch currency balance"); err != nil {
		return 0, err
	}
	free, err := c.inner.FetchCurrencyBalance(ctx, currency)
	c.record(err)
	return free, err
}

func (c *breakerClient) FetchTicker(ctx context.Context, symbol string) (exchange.Ticker, error) {
	if err := c.guard("fetch ticker"); err != nil {
		return exchange.Ticker{}, err
	}
	ticker, err := c.inner.FetchTicker(ctx, symbol)
	c.record(err)
	return ticker, err
}

func (c *breakerClient) LoadMarkets(ctx context.Context) (map[string]exchange.Market, error) {
	if err := c.guard("load markets"); err != nil {
		return nil, err
	}
	markets, err := c.inner.LoadMarkets(ctx)
	c.record(err)
	return markets, err
}
