// Package backtest replays stored bid/ask bars through the matching
// simulator and records each run's event stream, equity curve, and
// summary statistics.
package backtest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"simex/internal/clock"
	"simex/internal/commission"
	"simex/internal/config"
	"simex/internal/exec"
	"simex/internal/ident"
	"simex/internal/logger"
	"simex/internal/model"
	"simex/internal/sim"
	"simex/internal/store/bars"
	"simex/internal/store/runstore"
	"simex/internal/strategy"
)

const defaultStrategy = "sma_cross"

// Service owns run orchestration. Each run gets its own simulator, engine,
// clock, and id sequence, so concurrent runs never share mutable state and
// a fixed seed replays identically.
type Service struct {
	cfg         config.Config
	instruments map[string]model.Instrument
	barStore    *bars.Store
	results     *runstore.Store
	strategies  map[string]strategy.Factory

	sem chan struct{}
	wg  sync.WaitGroup
}

func NewService(cfg config.Config, instruments []model.Instrument, barStore *bars.Store, results *runstore.Store) (*Service, error) {
	if barStore == nil || results == nil {
		return nil, fmt.Errorf("backtest service requires bar and result stores")
	}
	bySymbol := make(map[string]model.Instrument, len(instruments))
	for _, inst := range instruments {
		bySymbol[inst.Symbol] = inst
	}
	maxConcurrent := cfg.Backtest.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Service{
		cfg:         cfg,
		instruments: bySymbol,
		barStore:    barStore,
		results:     results,
		strategies: map[string]strategy.Factory{
			defaultStrategy: strategy.NewSMACrossFactory(),
		},
		sem: make(chan struct{}, maxConcurrent),
	}, nil
}

// RegisterStrategy adds a named strategy factory. Later registrations
// under the same name replace earlier ones.
func (s *Service) RegisterStrategy(name string, factory strategy.Factory) {
	s.strategies[name] = factory
}

// StrategyNames lists registered strategies in stable order.
func (s *Service) StrategyNames() []string {
	names := make([]string, 0, len(s.strategies))
	for name := range s.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StartRun validates the request, records a pending run, and executes it
// in the background. The returned id is immediately queryable.
func (s *Service) StartRun(ctx context.Context, req RunRequest) (string, error) {
	inst, ok := s.instruments[req.Symbol]
	if !ok {
		return "", fmt.Errorf("unknown symbol %q", req.Symbol)
	}
	tfKey := req.Timeframe
	if tfKey == "" {
		tfKey = s.cfg.Backtest.Timeframe
	}
	tf, err := ParseTimeframe(tfKey)
	if err != nil {
		return "", err
	}
	stratName := req.Strategy
	if stratName == "" {
		stratName = defaultStrategy
	}
	factory, ok := s.strategies[stratName]
	if !ok {
		return "", fmt.Errorf("unknown strategy %q", stratName)
	}
	start, end := tf.AlignRange(req.StartTS, req.EndTS)
	if start == end {
		return "", fmt.Errorf("range %d..%d covers no %s bars", req.StartTS, req.EndTS, tf.Key)
	}

	runID := uuid.NewString()
	now := time.Now().UnixMilli()
	run := runstore.RunModel{
		ID:             runID,
		Symbol:         req.Symbol,
		Timeframe:      tf.Key,
		Strategy:       stratName,
		Status:         string(runstore.StatusPending),
		StartTS:        start,
		EndTS:          end,
		InitialBalance: s.cfg.Account.StartingCapital,
		CreatedAtUnix:  now,
		UpdatedAtUnix:  now,
	}
	if err := s.results.InsertRun(ctx, run); err != nil {
		return "", err
	}

	seed := s.cfg.FillModel.RandomSeed
	if req.Seed != nil {
		seed = *req.Seed
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.sem <- struct{}{}
		defer func() { <-s.sem }()
		s.execute(inst, tf, factory, run, seed)
	}()
	logger.Infof("[backtest] run %s queued: %s %s %d..%d strategy=%s", runID, req.Symbol, tf.Key, start, end, stratName)
	return runID, nil
}

// Wait blocks until all in-flight runs finish. Used on shutdown.
func (s *Service) Wait() { s.wg.Wait() }

func (s *Service) execute(inst model.Instrument, tf Timeframe, factory strategy.Factory, run runstore.RunModel, seed int64) {
	ctx := context.Background()
	if err := s.results.UpdateStatus(ctx, run.ID, runstore.StatusRunning, ""); err != nil {
		logger.Errorf("[backtest] run %s status update failed: %v", run.ID, err)
	}

	stats, err := s.runOnce(ctx, inst, tf, factory, run, seed)
	if err != nil {
		logger.Errorf("[backtest] run %s failed: %v", run.ID, err)
		if uerr := s.results.UpdateStatus(ctx, run.ID, runstore.StatusFailed, err.Error()); uerr != nil {
			logger.Errorf("[backtest] run %s failure status update failed: %v", run.ID, uerr)
		}
		return
	}

	summary := run
	summary.Status = string(runstore.StatusDone)
	summary.FinalBalance = stats.FinalBalance
	summary.Profit = stats.Profit
	summary.ReturnPct = stats.ReturnPct
	summary.WinRate = stats.WinRate
	summary.MaxDrawdownPct = stats.MaxDrawdownPct
	summary.Orders = stats.Orders
	summary.Fills = stats.Fills
	summary.UpdatedAtUnix = time.Now().UnixMilli()
	if err := s.results.UpdateSummary(ctx, run.ID, runstore.StatusDone, summary, ""); err != nil {
		logger.Errorf("[backtest] run %s summary update failed: %v", run.ID, err)
		return
	}
	logger.Infof("[backtest] run %s done: profit=%.2f return=%.4f winRate=%.4f fills=%d",
		run.ID, stats.Profit, stats.ReturnPct, stats.WinRate, stats.Fills)
}

func (s *Service) runOnce(ctx context.Context, inst model.Instrument, tf Timeframe, factory strategy.Factory, run runstore.RunModel, seed int64) (RunStats, error) {
	fillModel, err := sim.NewFillModel(
		s.cfg.FillModel.ProbFillAtLimit,
		s.cfg.FillModel.ProbFillAtStop,
		s.cfg.FillModel.ProbSlippage,
		seed,
	)
	if err != nil {
		return RunStats{}, err
	}
	calculator, err := commission.NewCalculator(commissionSchedule(s.cfg.Commission))
	if err != nil {
		return RunStats{}, err
	}
	testClock := clock.NewTestClock()
	ids := ident.NewSequence(run.ID[:8])
	simulator, err := sim.NewSimulator(sim.Config{
		Instruments:     []model.Instrument{inst},
		StartingCapital: decimal.NewFromFloat(s.cfg.Account.StartingCapital),
		AccountCurrency: s.cfg.Account.Currency,
		FrozenAccount:   s.cfg.Account.Frozen,
		FillModel:       fillModel,
		Commission:      calculator,
		Clock:           testClock,
		IDs:             ids,
	})
	if err != nil {
		return RunStats{}, err
	}
	engine, err := exec.NewEngine(simulator, 0)
	if err != nil {
		return RunStats{}, err
	}
	strat, err := factory(inst.Symbol)
	if err != nil {
		return RunStats{}, err
	}

	r := &runner{
		runID:     run.ID,
		symbol:    inst.Symbol,
		timeframe: tf,
		startTS:   run.StartTS,
		endTS:     run.EndTS,
		inst:      inst,
		engine:    engine,
		simulator: simulator,
		barStore:  s.barStore,
		results:   s.results,
		strat:     strat,
		clock:     testClock,
		ids:       ids,
	}
	engine.Subscribe(r.HandleEvent)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		if err := engine.Run(gctx); err != nil && gctx.Err() == nil {
			return err
		}
		return nil
	})
	var stats RunStats
	g.Go(func() error {
		defer cancel()
		var rerr error
		stats, rerr = r.Run(gctx, run.InitialBalance)
		return rerr
	})
	if err := g.Wait(); err != nil {
		return RunStats{}, err
	}
	return stats, nil
}

func commissionSchedule(cfg config.CommissionConfig) commission.Schedule {
	schedule := commission.Schedule{
		Default: commissionRate(cfg.Default),
		Classes: make(map[string]commission.Rate, len(cfg.Classes)),
	}
	for class, rate := range cfg.Classes {
		schedule.Classes[class] = commissionRate(rate)
	}
	return schedule
}

func commissionRate(r config.CommissionRate) commission.Rate {
	return commission.Rate{
		BasisPoints: decimal.NewFromFloat(r.Bps),
		Minimum:     decimal.NewFromFloat(r.Minimum),
	}
}
