package types

import "time"

type PositionSide string

const (
	SideLong  PositionSide = "long"
	SideShort PositionSide = "short"
)

type PositionStatus string

const (
	StatusOpen   PositionStatus = "open"
	StatusClosed PositionStatus = "closed"
)

// Position records one open-or-closed exposure of a bot. Entry fields are
// written once at open; close only ever fills in the exit fields and flips
// the status.
type Position struct {
	ID          int64
	BotID       int64
	Symbol      string
	Side        PositionSide
	Status      PositionStatus
	OrderKind   OrderKind
	Quantity    float64
	EntryPrice  float64
	EntryTime   time.Time
	ExitPrice   float64
	ExitTime    time.Time
	OrderID     string
	ExitOrderID string
	StopLoss    float64
	TakeProfit  float64
	Fees        float64
}

func (p *Position) IsOpen() bool {
	return p != nil && p.Status == StatusOpen
}

// TakeProfitPrice derives the absolute take-profit level from a percentage
// relative to the entry price.
func TakeProfitPrice(side PositionSide, entryPrice, pct float64) float64 {
	if entryPrice <= 0 || pct <= 0 {
		return 0
	}
	if side == SideShort {
		return entryPrice * (1 - pct/100)
	}
	return entryPrice * (1 + pct/100)
}

// StopLossPrice derives the absolute stop-loss level from a percentage
// relative to the entry price.
func StopLossPrice(side PositionSide, entryPrice, pct float64) float64 {
	if entryPrice <= 0 || pct <= 0 {
		return 0
	}
	if side == SideShort {
		return entryPrice * (1 + pct/100)
	}
	return entryPrice * (1 - pct/100)
}
