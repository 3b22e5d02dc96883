// Package fills waits for limit orders to fill without blocking the rest of
// the service. Each pending order gets its own poll loop; cancellation and
// timeout both leave the order resting on the venue untouched.
package fills

import (
	"context"
	"fmt"
	"time"

	"easymarket/internal/gateway/exchange"
	"easymarket/internal/logger"
)

type Outcome int

const (
	OutcomeFilled Outcome = iota
	OutcomeCanceled
	// OutcomePending means the order is still resting after the timeout or a
	// cancellation. The caller decides whether to cancel it on the venue.
	OutcomePending
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFilled:
		return "filled"
	case OutcomeCanceled:
		return "canceled"
	case OutcomePending:
		return "pending"
	default:
		return "unknown"
	}
}

const (
	DefaultPollInterval = 5 * time.Second
	DefaultTimeout      = 2 * time.Minute
)

type Awaiter struct {
	interval time.Duration
	timeout  time.Duration
}

func NewAwaiter(interval, timeout time.Duration) *Awaiter {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Awaiter{interval: interval, timeout: timeout}
}

// Await polls the order until it reaches a final status or the timeout
// elapses. The returned order is the last snapshot fetched; it may be nil
// when the first status fetch already fails. Status fetch errors are retried
// at the poll interval since they are transient by nature here.
func (a *Awaiter) Await(ctx context.Context, client exchange.Client, symbol, orderID string) (*exchange.Order, Outcome, error) {
	deadline := time.NewTimer(a.timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	var last *exchange.Order
	for {
		order, err := client.FetchOrderStatus(ctx, symbol, orderID)
		if err != nil {
			if exchange.IsRejected(err) {
				return last, OutcomePending, fmt.Errorf("fetching order %s status: %w", orderID, err)
			}
			logger.Warnf("fills: status poll for %s failed: %v", orderID, err)
		} else {
			last = order
			switch order.Status {
			case exchange.OrderStatusFilled:
				return order, OutcomeFilled, nil
			case exchange.OrderStatusCanceled, exchange.OrderStatusRejected, exchange.OrderStatusExpired:
				return order, OutcomeCanceled, nil
			}
		}

		select {
		case <-ctx.Done():
			// Shutdown path: never cancel the order implicitly, just report
			// that it is still pending.
			return last, OutcomePending, ctx.Err()
		case <-deadline.C:
			logger.Infof("fills: order %s still open after %s, leaving it resting", orderID, a.timeout)
			return last, OutcomePending, nil
		case <-ticker.C:
		}
	}
}
