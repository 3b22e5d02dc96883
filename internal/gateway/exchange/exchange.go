// Package exchange defines the order execution capability the core consumes.
// Concrete venues live under internal/gateway; the core only sees this
// interface.
package exchange

import "context"

type Client interface {
	Name() string

	CreateLimitOrder(ctx context.Context, symbol, side string, quantity, price float64) (*Order, error)

	CreateMarketOrder(ctx context.Context, symbol, side string, quantity float64) (*Order, error)

	CancelOrder(ctx context.Context, symbol, orderID string) error

	FetchOrderStatus(ctx context.Context, symbol, orderID string) (*Order, error)

	FetchBalance(ctx context.Context) (Balance, error)

	// FetchCurrencyBalance is the secondary lookup for currencies that do not
	// appear in the full balance snapshot (sub-wallets on some venues).
	FetchCurrencyBalance(ctx context.Context, currency string) (float64, error)

	FetchTicker(ctx context.Context, symbol string) (Ticker, error)

	LoadMarkets(ctx context.Context) (map[string]Market, error)
}
