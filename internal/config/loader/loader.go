// Package loader reads the bots/accounts profile file and watches it for
// changes, pushing read-only snapshots to subscribers.
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"easymarket/internal/logger"
	"easymarket/internal/types"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// AccountProfile is one account entry in the profiles file.
type AccountProfile struct {
	ID         int64          `yaml:"id"`
	Name       string         `yaml:"name"`
	Exchange   string         `yaml:"exchange"`
	APIKey     string         `yaml:"api_key"`
	APISecret  string         `yaml:"api_secret"`
	Passphrase string         `yaml:"passphrase"`
	Sandbox    bool           `yaml:"sandbox"`
	Options    map[string]any `yaml:"options"`
}

// BotProfile is one bot entry in the profiles file.
type BotProfile struct {
	ID            int64   `yaml:"id"`
	Name          string  `yaml:"name"`
	Symbol        string  `yaml:"symbol"`
	AccountID     int64   `yaml:"account_id"`
	OrderKind     string  `yaml:"order_kind"`
	OrderSizePct  float64 `yaml:"order_size_pct"`
	Leverage      float64 `yaml:"leverage"`
	LimitPrice    float64 `yaml:"limit_price"`
	StopLossPct   float64 `yaml:"stop_loss_pct"`
	TakeProfitPct float64 `yaml:"take_profit_pct"`
	MakerFee      float64 `yaml:"maker_fee"`
	TakerFee      float64 `yaml:"taker_fee"`
	Enabled       *bool   `yaml:"enabled"`
}

type fileConfig struct {
	Accounts []AccountProfile `yaml:"accounts"`
	Bots     []BotProfile     `yaml:"bots"`
}

// Snapshot is a read-only view of the parsed profiles file.
type Snapshot struct {
	Version  int64
	LoadedAt time.Time
	Accounts []types.Account
	Bots     []types.Bot
}

// ChangeListener is invoked with a fresh snapshot after every reload.
type ChangeListener func(Snapshot)

// ProfileLoader parses the profiles file and optionally watches it.
type ProfileLoader struct {
	path    string
	watcher *fsnotify.Watcher

	mu        sync.RWMutex
	snapshot  Snapshot
	listeners []ChangeListener
	done      chan struct{}
}

// NewProfileLoader reads the file at path. When watch is true it also starts
// an fsnotify watcher on the containing directory so editor rename-and-write
// saves are picked up.
func NewProfileLoader(path string, watch bool) (*ProfileLoader, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("profile loader requires path")
	}
	l := &ProfileLoader{path: path, done: make(chan struct{})}
	if err := l.reload(); err != nil {
		return nil, err
	}
	if watch {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, fmt.Errorf("profile watcher failed: %w", err)
		}
		if err := watcher.Add(filepath.Dir(path)); err != nil {
			watcher.Close()
			return nil, fmt.Errorf("profile watcher failed (%s): %w", path, err)
		}
		l.watcher = watcher
		go l.watch()
	}
	return l, nil
}

// Close stops the file watcher if one is running.
func (l *ProfileLoader) Close() error {
	if l.watcher == nil {
		return nil
	}
	close(l.done)
	return l.watcher.Close()
}

// Snapshot returns the current snapshot.
func (l *ProfileLoader) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return cloneSnapshot(l.snapshot)
}

// Subscribe registers a listener and immediately delivers the current
// snapshot to it.
func (l *ProfileLoader) Subscribe(fn ChangeListener) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.listeners = append(l.listeners, fn)
	snap := cloneSnapshot(l.snapshot)
	l.mu.Unlock()
	go deliver(fn, snap)
}

func (l *ProfileLoader) watch() {
	// Editors often emit a burst of events per save; coalesce them.
	var pending <-chan time.Time
	for {
		select {
		case <-l.done:
			return
		case evt, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(evt.Name) != filepath.Clean(l.path) {
				continue
			}
			if evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			pending = time.After(200 * time.Millisecond)
		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			logger.Warnf("Profile watcher error: %v", err)
		case <-pending:
			pending = nil
			if err := l.reload(); err != nil {
				logger.Errorf("Profile reload failed (%s): %v", l.path, err)
				continue
			}
			l.notify()
		}
	}
}

func (l *ProfileLoader) notify() {
	l.mu.RLock()
	snap := cloneSnapshot(l.snapshot)
	listeners := append([]ChangeListener(nil), l.listeners...)
	l.mu.RUnlock()
	for _, fn := range listeners {
		go deliver(fn, snap)
	}
}

func deliver(fn ChangeListener, snap Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("Profile listener panic: %v", r)
		}
	}()
	fn(snap)
}

func (l *ProfileLoader) reload() error {
	raw, err := os.ReadFile(l.path)
	if err != nil {
		return fmt.Errorf("read profiles failed (%s): %w", l.path, err)
	}
	var fileCfg fileConfig
	if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
		return fmt.Errorf("parse profiles failed (%s): %w", l.path, err)
	}
	accounts, bots, err := normalize(fileCfg)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.snapshot = Snapshot{
		Version:  l.snapshot.Version + 1,
		LoadedAt: time.Now(),
		Accounts: accounts,
		Bots:     bots,
	}
	l.mu.Unlock()
	logger.Infof("Profile loader read %d accounts, %d bots from %s",
		len(accounts), len(bots), filepath.Base(l.path))
	return nil
}

func normalize(fileCfg fileConfig) ([]types.Account, []types.Bot, error) {
	accountIDs := make(map[int64]bool, len(fileCfg.Accounts))
	accounts := make([]types.Account, 0, len(fileCfg.Accounts))
	for _, p := range fileCfg.Accounts {
		if p.ID <= 0 {
			return nil, nil, fmt.Errorf("account %q needs a positive id", p.Name)
		}
		if accountIDs[p.ID] {
			return nil, nil, fmt.Errorf("duplicate account id %d", p.ID)
		}
		exchange := strings.ToLower(strings.TrimSpace(p.Exchange))
		if exchange == "" {
			return nil, nil, fmt.Errorf("account %d needs an exchange", p.ID)
		}
		accountIDs[p.ID] = true
		accounts = append(accounts, types.Account{
			ID:         p.ID,
			Name:       strings.TrimSpace(p.Name),
			Exchange:   exchange,
			APIKey:     p.APIKey,
			APISecret:  p.APISecret,
			Passphrase: p.Passphrase,
			Sandbox:    p.Sandbox,
			Options:    p.Options,
		})
	}

	botIDs := make(map[int64]bool, len(fileCfg.Bots))
	bots := make([]types.Bot, 0, len(fileCfg.Bots))
	for _, p := range fileCfg.Bots {
		if p.ID <= 0 {
			return nil, nil, fmt.Errorf("bot %q needs a positive id", p.Name)
		}
		if botIDs[p.ID] {
			return nil, nil, fmt.Errorf("duplicate bot id %d", p.ID)
		}
		if !accountIDs[p.AccountID] {
			return nil, nil, fmt.Errorf("bot %d references unknown account %d", p.ID, p.AccountID)
		}
		kind := types.OrderKind(strings.ToLower(strings.TrimSpace(p.OrderKind)))
		if kind == "" {
			kind = types.OrderKindLimit
		}
		if !kind.Valid() {
			return nil, nil, fmt.Errorf("bot %d has invalid order_kind %q", p.ID, p.OrderKind)
		}
		if p.OrderSizePct <= 0 || p.OrderSizePct > 100 {
			return nil, nil, fmt.Errorf("bot %d order_size_pct must be in (0, 100]", p.ID)
		}
		symbol := strings.ToUpper(strings.TrimSpace(p.Symbol))
		if symbol == "" {
			return nil, nil, fmt.Errorf("bot %d needs a symbol", p.ID)
		}
		enabled := true
		if p.Enabled != nil {
			enabled = *p.Enabled
		}
		botIDs[p.ID] = true
		bots = append(bots, types.Bot{
			ID:            p.ID,
			Name:          strings.TrimSpace(p.Name),
			Symbol:        symbol,
			OrderKind:     kind,
			OrderSizePct:  p.OrderSizePct,
			Leverage:      p.Leverage,
			LimitPrice:    p.LimitPrice,
			StopLossPct:   p.StopLossPct,
			TakeProfitPct: p.TakeProfitPct,
			MakerFee:      p.MakerFee,
			TakerFee:      p.TakerFee,
			AccountID:     p.AccountID,
			Enabled:       enabled,
		})
	}
	return accounts, bots, nil
}

func cloneSnapshot(src Snapshot) Snapshot {
	dst := Snapshot{
		Version:  src.Version,
		LoadedAt: src.LoadedAt,
		Accounts: append([]types.Account(nil), src.Accounts...),
		Bots:     append([]types.Bot(nil), src.Bots...),
	}
	return dst
}
