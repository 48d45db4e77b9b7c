package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/jonathan/autoapply/internal/browser"
	"github.com/jonathan/autoapply/internal/config"
	"github.com/jonathan/autoapply/internal/locator"
	"github.com/jonathan/autoapply/internal/portal"
	"github.com/jonathan/autoapply/internal/session"
	"github.com/jonathan/autoapply/internal/store"
	"github.com/jonathan/autoapply/internal/wizard"
)

// LockFile is created in the data directory for the duration of a run.
const LockFile = "autoapply.lock"

// loadConfig reads --config, or returns validated defaults when it is unset.
func loadConfig() (*config.Config, error) {
	if configPath == "" {
		cfg := config.Default()
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return &cfg, nil
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// acquireLock takes the exclusive run lock in dataDir without waiting.
func acquireLock(dataDir string) (*flock.Flock, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	path := filepath.Join(dataDir, LockFile)
	lock := flock.New(path)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("another autoapply run holds %s", path)
	}
	return lock, nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	st, err := store.Open(ctx, store.Config{
		Driver:      cfg.Store.Driver,
		Dir:         cfg.DataDir,
		DatabaseURL: cfg.Store.DatabaseURL,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return st, nil
}

// engine is everything a run or paginate command drives.
type engine struct {
	lock    *flock.Flock
	store   store.Store
	browser *browser.Browser
	orch    *session.Orchestrator
	log     *slog.Logger
}

// startEngine takes the lock, opens the store, launches Chrome and wires the
// orchestrator. The caller must Close the engine.
func startEngine(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*engine, error) {
	e := &engine{log: logger}

	lock, err := acquireLock(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	e.lock = lock

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		e.Close()
		return nil, err
	}
	e.store = st

	applied, err := store.LoadAppliedSet(ctx, st)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("failed to load applied listings: %w", err)
	}
	logger.Info("loaded applied listings", "count", applied.Len())

	creds, err := config.LoadCredentials(ctx, nil)
	if err != nil {
		e.Close()
		return nil, err
	}

	policy, err := wizard.ParsePolicy(cfg.SuccessPolicy)
	if err != nil {
		e.Close()
		return nil, err
	}

	opts := browser.DefaultOptions()
	opts.Headless = cfg.Headless
	opts.PageLoadTimeout = cfg.Timeouts.PageLoad.Std()
	opts.ElementTimeout = cfg.Timeouts.Element.Std()
	opts.Logger = logger
	b, err := browser.Launch(ctx, opts)
	if err != nil {
		e.Close()
		return nil, err
	}
	e.browser = b

	loc := locator.New(locator.Options{Threshold: cfg.SimilarityThreshold})
	orch, err := session.New(session.Options{
		Page: b.Page(),
		Adapters: portal.All(portal.Options{
			Locator:        loc,
			SettleTimeout:  cfg.Timeouts.Settle.Std(),
			ElementTimeout: cfg.Timeouts.Element.Std(),
			Logger:         logger,
		}),
		Credentials: creds,
		Applied:     applied,
		Log:         st,
		Driver: wizard.New(wizard.Options{
			Locator:       loc,
			MaxYears:      cfg.MaxExperienceYears,
			Policy:        policy,
			SettleTimeout: cfg.Timeouts.Settle.Std(),
			PopupTimeout:  cfg.Timeouts.Popup.Std(),
			Logger:        logger,
		}),
		ApplyLimit:        cfg.ApplyLimit,
		ListingsPerMinute: cfg.ListingsPerMinute,
		SettleTimeout:     cfg.Timeouts.Settle.Std(),
		ElementTimeout:    cfg.Timeouts.Element.Std(),
		Logger:            logger,
	})
	if err != nil {
		e.Close()
		return nil, err
	}
	e.orch = orch
	return e, nil
}

// Close shuts down the browser, the store and the lock, in that order.
func (e *engine) Close() {
	if e.browser != nil {
		e.browser.Close()
	}
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			e.log.Warn("failed to close store", "error", err)
		}
	}
	if e.lock != nil {
		if err := e.lock.Unlock(); err != nil {
			e.log.Warn("failed to release lock", "error", err)
		}
	}
}
