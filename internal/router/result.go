package router

import "easymarket/internal/types"

// Status is the terminal classification of one processed signal.
type Status string

const (
	// StatusCreated: an entry signal resulted in a filled order and a new open
	// position.
	StatusCreated Status = "created"
	// StatusClosed: an exit signal resulted in a filled order and the tracked
	// position is now closed.
	StatusClosed Status = "closed"
	// StatusRejected: the signal was refused without any lasting venue effect.
	StatusRejected Status = "rejected"
	// StatusPending: an order was placed and is still resting on the venue.
	// The position state was not advanced.
	StatusPending Status = "pending"
	// StatusReconciliationRequired: an order may exist on the venue but the
	// tracked state could not be advanced to match. Manual review is needed
	// before this (bot, symbol) trades again.
	StatusReconciliationRequired Status = "reconciliation_required"
)

// Result is what one signal produced.
type Result struct {
	Status   Status
	Signal   types.Signal
	Position *types.Position
	OrderID  string
	Reason   string
}

func rejected(sig types.Signal, reason string) Result {
	return Result{Status: StatusRejected, Signal: sig, Reason: reason}
}
