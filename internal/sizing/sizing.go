// Package sizing turns a percentage-of-balance instruction into a venue-legal
// order quantity. Calculate is a pure function of its input; fees are not
// haircut here, they are accounted at fill time by the position manager.
package sizing

import (
	"errors"
	"fmt"

	"easymarket/internal/gateway/exchange"
	"easymarket/internal/types"

	"github.com/shopspring/decimal"
)

var (
	// ErrInsufficientBalanceData means the sizing currency is absent from the
	// balance snapshot and no secondary lookup could supply it.
	ErrInsufficientBalanceData = errors.New("sizing: balance data unavailable")

	// ErrQuantityBelowMinimum means the venue minimums cannot be satisfied
	// within the configured risk size. The signal is rejected rather than
	// silently sized up.
	ErrQuantityBelowMinimum = errors.New("sizing: quantity below venue minimum")
)

// Input carries everything Calculate needs. LookupBalance is the optional
// secondary balance source for currencies missing from the snapshot.
type Input struct {
	Balance       exchange.Balance
	Metadata      exchange.Market
	Percentage    float64
	Side          types.PositionSide
	Kind          types.OrderKind
	Price         float64
	LookupBalance func(currency string) (float64, bool)
}

// Calculate derives the order quantity in base units.
//
// Longs spend the quote currency, shorts cover a base holding, so the
// available balance is resolved per side. The raw percentage slice is floored
// up to the venue's minimum notional when the balance can cover it, capped by
// the venue maximum and by what the balance affords, and rounded half-up at
// the amount precision. A result that still violates the venue minimums is an
// error, never a silent round-up past the intended risk.
func Calculate(in Input) (float64, error) {
	meta := in.Metadata
	if meta.Base == "" || meta.Quote == "" {
		return 0, fmt.Errorf("sizing: incomplete metadata for %s", meta.Symbol)
	}
	if in.Percentage <= 0 || in.Percentage > 100 {
		return 0, fmt.Errorf("sizing: order size percentage %.4f out of (0,100]", in.Percentage)
	}
	if !in.Kind.Valid() {
		return 0, fmt.Errorf("sizing: invalid order kind %q", in.Kind)
	}
	if in.Price <= 0 {
		return 0, fmt.Errorf("sizing: price required for %s %s", in.Kind, meta.Symbol)
	}

	currency := meta.Quote
	if in.Side == types.SideShort {
		currency = meta.Base
	}
	available, err := resolveBalance(in, currency)
	if err != nil {
		return 0, err
	}

	price := decimal.NewFromFloat(in.Price)
	raw := decimal.NewFromFloat(available).
		Mul(decimal.NewFromFloat(in.Percentage)).
		Div(decimal.NewFromInt(100))

	// Longs size in quote and convert at price; shorts size the base holding
	// directly.
	var qty decimal.Decimal
	if in.Side == types.SideShort {
		qty = raw
	} else {
		qty = raw.Div(price)
	}

	// Limit orders round-trip through quote terms at price precision before
	// the notional floor is applied, matching how the venue evaluates the
	// resting order's cost.
	if in.Kind == types.OrderKindLimit {
		notional := qty.Mul(price).Round(meta.PricePrecision)
		qty = notional.Div(price)
	}

	if meta.MinNotional > 0 {
		floor := decimal.NewFromFloat(meta.MinNotional).Div(price)
		if qty.LessThan(floor) {
			qty = floor
		}
	}

	// Ceilings: venue maximum, then what the balance actually affords.
	if meta.MaxAmount > 0 {
		if max := decimal.NewFromFloat(meta.MaxAmount); qty.GreaterThan(max) {
			qty = max
		}
	}
	affordable := decimal.NewFromFloat(available)
	if in.Side != types.SideShort {
		affordable = affordable.Div(price)
	}
	if qty.GreaterThan(affordable) {
		qty = affordable
	}

	final := roundToPrecision(qty, price, affordable, meta)

	minAmount := decimal.NewFromFloat(meta.MinAmount)
	if meta.MinAmount > 0 && final.LessThan(minAmount) {
		return 0, fmt.Errorf("%w: %s < min amount %s for %s",
			ErrQuantityBelowMinimum, final, minAmount, meta.Symbol)
	}
	if meta.MinNotional > 0 {
		if final.Mul(price).LessThan(decimal.NewFromFloat(meta.MinNotional)) {
			return 0, fmt.Errorf("%w: notional %s below %.8f for %s",
				ErrQuantityBelowMinimum, final.Mul(price), meta.MinNotional, meta.Symbol)
		}
	}
	if final.LessThanOrEqual(decimal.Zero) {
		return 0, fmt.Errorf("%w: computed quantity is zero for %s", ErrQuantityBelowMinimum, meta.Symbol)
	}

	out, _ := final.Float64()
	return out, nil
}

// roundToPrecision rounds half-up (ties away from zero) at the amount
// precision, then repairs the two failure modes rounding can introduce:
// dipping below the venue minimum, or exceeding what the balance affords.
func roundToPrecision(qty, price, affordable decimal.Decimal, meta exchange.Market) decimal.Decimal {
	rounded := qty.Round(meta.AmountPrecision)

	if meta.MinAmount > 0 {
		minAmount := decimal.NewFromFloat(meta.MinAmount)
		if rounded.LessThan(minAmount) && qty.GreaterThan(decimal.Zero) {
			bumped := minAmount.RoundCeil(meta.AmountPrecision)
			if !bumped.GreaterThan(affordable) {
				rounded = bumped
			}
		}
	}
	if meta.MinNotional > 0 && price.GreaterThan(decimal.Zero) {
		floor := decimal.NewFromFloat(meta.MinNotional).Div(price)
		if rounded.LessThan(floor) {
			bumped := floor.RoundCeil(meta.AmountPrecision)
			if !bumped.GreaterThan(affordable) {
				rounded = bumped
			}
		}
	}
	if rounded.GreaterThan(affordable) {
		rounded = qty.RoundFloor(meta.AmountPrecision)
	}
	return rounded
}

func resolveBalance(in Input, currency string) (float64, error) {
	if free, ok := in.Balance.Free(currency); ok {
		return free, nil
	}
	if in.LookupBalance != nil {
		if free, ok := in.LookupBalance(currency); ok {
			return free, nil
		}
	}
	return 0, fmt.Errorf("%w: %s missing from snapshot", ErrInsufficientBalanceData, currency)
}
