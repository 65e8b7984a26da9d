// Package app wires configuration, stores, the backtest service, and the
// HTTP API into one runnable unit.
package app

import (
	"context"
	"fmt"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"simex/internal/backtest"
	"simex/internal/config"
	"simex/internal/httpapi"
	"simex/internal/logger"
	"simex/internal/model"
	"simex/internal/store/bars"
	"simex/internal/store/runstore"
)

type App struct {
	cfg         *config.Config
	instruments []model.Instrument
	barStore    *bars.Store
	results     *runstore.Store
	svc         *backtest.Service
	http        *httpapi.Server
}

// NewApp builds the full dependency graph without starting anything.
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)

	instruments, err := config.LoadInstruments(cfg.Backtest.InstrumentsPath)
	if err != nil {
		return nil, fmt.Errorf("loading instruments failed: %w", err)
	}

	barStore, err := bars.NewStore(filepath.Join(cfg.App.DataRoot, "bars"))
	if err != nil {
		return nil, fmt.Errorf("opening bar store failed: %w", err)
	}
	results, err := runstore.NewStore(filepath.Join(cfg.App.DataRoot, "runs.db"))
	if err != nil {
		barStore.Close()
		return nil, fmt.Errorf("opening run store failed: %w", err)
	}

	svc, err := backtest.NewService(*cfg, instruments, barStore, results)
	if err != nil {
		barStore.Close()
		results.Close()
		return nil, err
	}
	reporter, err := backtest.NewReporter(results, cfg.App.DataRoot)
	if err != nil {
		barStore.Close()
		results.Close()
		return nil, err
	}
	server, err := httpapi.NewServer(httpapi.Config{
		Addr:        cfg.App.HTTPAddr,
		Service:     svc,
		Results:     results,
		BarStore:    barStore,
		Reporter:    reporter,
		Instruments: instruments,
	})
	if err != nil {
		barStore.Close()
		results.Close()
		return nil, err
	}

	return &App{
		cfg:         cfg,
		instruments: instruments,
		barStore:    barStore,
		results:     results,
		svc:         svc,
		http:        server,
	}, nil
}

// Run serves the API until ctx is cancelled, then waits for in-flight
// runs and closes the stores.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	logger.Infof("[app] listening on %s, data root %s, %d instruments",
		a.cfg.App.HTTPAddr, a.cfg.App.DataRoot, len(a.instruments))

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := a.http.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})
	err := group.Wait()

	a.svc.Wait()
	if cerr := a.barStore.Close(); cerr != nil {
		logger.Warnf("[app] closing bar store: %v", cerr)
	}
	if cerr := a.results.Close(); cerr != nil {
		logger.Warnf("[app] closing run store: %v", cerr)
	}
	return err
}

// Service exposes the backtest service for test harnesses.
func (a *App) Service() *backtest.Service {
	if a == nil {
		return nil
	}
	return a.svc
}
