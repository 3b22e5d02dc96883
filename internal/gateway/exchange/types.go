package exchange

import "time"

const (
	SideBuy  = "buy"
	SideSell = "sell"
)

type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "new"
	OrderStatusPartiallyFilled OrderStatus = "partially_filled"
	OrderStatusFilled          OrderStatus = "filled"
	OrderStatusCanceled        OrderStatus = "canceled"
	OrderStatusRejected        OrderStatus = "rejected"
	OrderStatusExpired         OrderStatus = "expired"
)

// Final reports whether the order can no longer change on the venue.
func (s OrderStatus) Final() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCanceled, OrderStatusRejected, OrderStatusExpired:
		return true
	}
	return false
}

// Order is the transient view of a venue order. It is never persisted as-is;
// the position manager copies what it needs.
type Order struct {
	ID        string
	Symbol    string
	Side      string
	Kind      string
	Quantity  float64
	Price     float64
	Filled    float64
	Remaining float64
	Status    OrderStatus
	Timestamp time.Time
}

type Ticker struct {
	Symbol string
	Last   float64
	Bid    float64
	Ask    float64
}

// Market is the per-symbol metadata needed for sizing and normalization.
type Market struct {
	Symbol          string
	Base            string
	Quote           string
	AmountPrecision int32
	PricePrecision  int32
	MinAmount       float64
	MaxAmount       float64
	MinNotional     float64
	Inverted        bool
	MaxLeverage     float64
}

// Asset is one currency entry of a balance snapshot.
type Asset struct {
	Free   float64
	Locked float64
}

func (a Asset) Total() float64 { return a.Free + a.Locked }

// Balance is a point-in-time snapshot of all account currencies.
type Balance map[string]Asset

// Free returns the available amount for a currency and whether the currency
// is present in the snapshot at all.
func (b Balance) Free(currency string) (float64, bool) {
	a, ok := b[currency]
	if !ok {
		return 0, false
	}
	return a.Free, true
}
