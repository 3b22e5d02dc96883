// Package app wires configuration, storage, the venue gateway and the HTTP
// surface into one runnable service.
package app

import (
	"context"
	"fmt"
	"time"

	"easymarket/internal/config"
	"easymarket/internal/config/loader"
	"easymarket/internal/fills"
	"easymarket/internal/gateway"
	"easymarket/internal/logger"
	"easymarket/internal/market"
	"easymarket/internal/position"
	"easymarket/internal/router"
	"easymarket/internal/store/gormstore"
	webhook "easymarket/internal/transport/http/webhook"

	"golang.org/x/sync/errgroup"
)

type App struct {
	cfg      *config.Config
	store    *gormstore.Store
	profiles *loader.ProfileLoader
	server   *webhook.Server
}

// NewApp builds the full dependency graph without starting anything.
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)

	store, err := gormstore.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	profiles, err := loader.NewProfileLoader(cfg.Profiles.Path, cfg.Profiles.Watch)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("loading profiles: %w", err)
	}

	factory := gateway.NewFactory(
		cfg.Trading.BreakerThreshold,
		time.Duration(cfg.Trading.BreakerCooldownSeconds)*time.Second,
	)

	// Seed the store synchronously so the first webhook can resolve its bot,
	// then follow file changes for the rest of the process lifetime.
	if err := syncProfiles(context.Background(), store, factory, profiles.Snapshot()); err != nil {
		profiles.Close()
		store.Close()
		return nil, fmt.Errorf("seeding profiles: %w", err)
	}
	profiles.Subscribe(func(snap loader.Snapshot) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := syncProfiles(ctx, store, factory, snap); err != nil {
			logger.Errorf("app: profile sync (version %d) failed: %v", snap.Version, err)
		}
	})

	rtr := router.New(
		store,
		position.NewManager(store),
		factory,
		market.NewMetadataCache(),
		fills.NewAwaiter(
			time.Duration(cfg.Trading.FillPollIntervalSeconds)*time.Second,
			time.Duration(cfg.Trading.FillTimeoutSeconds)*time.Second,
		),
		router.Options{
			RetryAttempts: cfg.Trading.RetryAttempts,
			RetryBackoff:  time.Duration(cfg.Trading.RetryBackoffMillis) * time.Millisecond,
		},
	)

	server, err := webhook.NewServer(webhook.ServerConfig{
		Addr:      cfg.App.HTTPAddr,
		Handler:   rtr,
		Positions: store,
	})
	if err != nil {
		profiles.Close()
		store.Close()
		return nil, fmt.Errorf("building http server: %w", err)
	}

	return &App{cfg: cfg, store: store, profiles: profiles, server: server}, nil
}

// Run serves until ctx is canceled.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.Close()

	logger.Infof("easymarket listening on %s (env=%s)", a.cfg.App.HTTPAddr, a.cfg.App.Env)
	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := a.server.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})
	return group.Wait()
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.profiles != nil {
		_ = a.profiles.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
}

// syncProfiles pushes a profiles snapshot into the store and drops cached
// clients whose credentials may have changed.
func syncProfiles(ctx context.Context, store *gormstore.Store, factory *gateway.Factory, snap loader.Snapshot) error {
	if err := store.UpsertAccounts(ctx, snap.Accounts); err != nil {
		return err
	}
	if err := store.UpsertBots(ctx, snap.Bots); err != nil {
		return err
	}
	if snap.Version > 1 {
		for _, acc := range snap.Accounts {
			factory.Evict(acc.ID)
		}
	}
	return nil
}
