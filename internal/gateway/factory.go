// Package gateway builds and caches exchange clients per account. The
// original design re-created a venue client on every call; here one client is
// constructed per account and held for the account's lifetime, wrapped in a
// circuit breaker.
package gateway

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"easymarket/internal/gateway/binance"
	"easymarket/internal/gateway/exchange"
	"easymarket/internal/pkg/circuit"
	"easymarket/internal/types"
)

type Factory struct {
	mu      sync.Mutex
	clients map[int64]exchange.Client

	breakerThreshold int
	breakerCooldown  time.Duration
}

func NewFactory(breakerThreshold int, breakerCooldown time.Duration) *Factory {
	return &Factory{
		clients:          make(map[int64]exchange.Client),
		breakerThreshold: breakerThreshold,
		breakerCooldown:  breakerCooldown,
	}
}

// ClientFor returns the cached client for the account, constructing it on
// first use.
func (f *Factory) ClientFor(account *types.Account) (exchange.Client, error) {
	if account == nil {
		return nil, fmt.Errorf("gateway: nil account")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if client, ok := f.clients[account.ID]; ok {
		return client, nil
	}
	client, err := f.build(account)
	if err != nil {
		return nil, err
	}
	breaker := circuit.NewBreaker(
		fmt.Sprintf("%s/%s", client.Name(), account.Name),
		f.breakerThreshold, f.breakerCooldown,
	)
	wrapped := withBreaker(client, breaker)
	f.clients[account.ID] = wrapped
	return wrapped, nil
}

// Evict drops a cached client, e.g. after credentials change.
func (f *Factory) Evict(accountID int64) {
	f.mu.Lock()
	delete(f.clients, accountID)
	f.mu.Unlock()
}

func (f *Factory) build(account *types.Account) (exchange.Client, error) {
	switch strings.ToLower(strings.TrimSpace(account.Exchange)) {
	case "binance":
		return binance.New(binance.Config{
			APIKey:    account.APIKey,
			APISecret: account.APISecret,
			Testnet:   account.Sandbox,
		}), nil
	default:
		return nil, fmt.Errorf("gateway: unsupported exchange %q", account.Exchange)
	}
}
