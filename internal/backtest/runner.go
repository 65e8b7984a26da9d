package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"simex/internal/clock"
	"simex/internal/exec"
	"simex/internal/ident"
	"simex/internal/logger"
	"simex/internal/model"
	"simex/internal/sim"
	"simex/internal/store/bars"
	"simex/internal/store/runstore"
	"simex/internal/strategy"
)

// runner replays one symbol's stored bars through a fresh simulator and
// engine, drives the strategy, and persists the resulting event stream
// plus equity snapshots.
type runner struct {
	runID     string
	symbol    string
	timeframe Timeframe
	startTS   int64
	endTS     int64

	inst      model.Instrument
	engine    *exec.Engine
	simulator *sim.Simulator
	barStore  *bars.Store
	results   *runstore.Store
	strat     strategy.Strategy
	clock     *clock.TestClock
	ids       ident.Factory

	seq      int64
	pending  []runstore.EventModel
	book     portfolioState
	position positionState
}

// positionState is the net position implied by observed fills.
type positionState struct {
	qty      decimal.Decimal // signed, buys positive
	avgEntry decimal.Decimal
}

// portfolioState aggregates run statistics from fill events.
type portfolioState struct {
	initialBalance float64
	balance        float64
	peakEquity     float64
	maxDrawdown    float64
	orders         int
	fills          int
	wins           int
	losses         int
}

func (r *runner) Run(ctx context.Context, initialBalance float64) (RunStats, error) {
	r.book = portfolioState{
		initialBalance: initialBalance,
		balance:        initialBalance,
		peakEquity:     initialBalance,
	}
	r.position = positionState{qty: decimal.Zero, avgEntry: decimal.Zero}

	bidCandles, err := r.barStore.RangeCandles(ctx, r.symbol, r.timeframe.Key, bars.SideBid, r.startTS, r.endTS)
	if err != nil {
		return RunStats{}, err
	}
	askCandles, err := r.barStore.RangeCandles(ctx, r.symbol, r.timeframe.Key, bars.SideAsk, r.startTS, r.endTS)
	if err != nil {
		return RunStats{}, err
	}
	if len(bidCandles) == 0 || len(askCandles) == 0 {
		return RunStats{}, fmt.Errorf("no stored bars for %s %s in range", r.symbol, r.timeframe.Key)
	}

	// Bid and ask series must line up bar for bar; unmatched open times
	// indicate a broken dataset.
	ai := 0
	processed := 0
	for _, bc := range bidCandles {
		select {
		case <-ctx.Done():
			return RunStats{}, ctx.Err()
		default:
		}
		for ai < len(askCandles) && askCandles[ai].OpenTime < bc.OpenTime {
			ai++
		}
		if ai >= len(askCandles) {
			break
		}
		ac := askCandles[ai]
		if ac.OpenTime != bc.OpenTime {
			logger.Warnf("[backtest] run %s: no ask bar at %d, skipping", r.runID, bc.OpenTime)
			continue
		}
		ai++

		r.clock.SetTime(time.UnixMilli(bc.CloseTime).UTC())
		bidBar := toModelBar(bc, r.inst)
		askBar := toModelBar(ac, r.inst)

		if _, err := r.engine.OnBars(ctx, r.symbol, bidBar, askBar); err != nil {
			return RunStats{}, err
		}
		update := strategy.BarUpdate{Symbol: r.symbol, Bid: bidBar, Ask: askBar}
		if err := r.strat.OnBar(ctx, update, r); err != nil {
			logger.Warnf("[backtest] run %s strategy error: %v", r.runID, err)
		}
		r.recordSnapshot(ctx, bc.CloseTime, bc.Close)
		processed++
	}
	if processed == 0 {
		return RunStats{}, fmt.Errorf("bid/ask series for %s %s never aligned", r.symbol, r.timeframe.Key)
	}

	if err := r.flushEvents(ctx); err != nil {
		return RunStats{}, err
	}
	// End of test: drop remaining working state without emitting further
	// events, so teardown never fabricates cancels or fills.
	r.simulator.Reset()
	return r.stats(), nil
}

// HandleEvent is the engine subscriber: it buffers every event for
// persistence in emission order and folds fills into the statistics.
func (r *runner) HandleEvent(ev model.Event) {
	r.seq++
	r.pending = append(r.pending, toEventModel(r.runID, r.seq, ev))
	switch e := ev.(type) {
	case model.OrderFilled:
		r.onFill(e.Side, e.FillPrice, e.FilledQuantity, e.Commission)
	case model.OrderPartiallyFilled:
		r.onFill(e.Side, e.FillPrice, e.FilledQuantity, e.Commission)
	}
}

func (r *runner) onFill(side model.Side, price, qty decimal.Decimal, fee model.Money) {
	r.book.fills++
	feeF, _ := fee.Amount.Float64()
	r.book.balance -= feeF

	signed := qty
	if side == model.SideSell {
		signed = qty.Neg()
	}
	pos := &r.position
	switch {
	case pos.qty.IsZero() || pos.qty.Sign() == signed.Sign():
		total := pos.qty.Add(signed)
		notional := pos.avgEntry.Mul(pos.qty.Abs()).Add(price.Mul(qty))
		pos.avgEntry = notional.Div(total.Abs())
		pos.qty = total
	default:
		closeQty := decimal.Min(qty, pos.qty.Abs())
		pnl := price.Sub(pos.avgEntry).Mul(closeQty)
		if pos.qty.IsNegative() {
			pnl = pnl.Neg()
		}
		pnlF, _ := pnl.Float64()
		r.book.balance += pnlF
		if pnlF >= 0 {
			r.book.wins++
		} else {
			r.book.losses++
		}
		pos.qty = pos.qty.Add(signed)
		if pos.qty.IsZero() {
			pos.avgEntry = decimal.Zero
		} else if pos.qty.Sign() == signed.Sign() {
			// Position flipped through zero.
			pos.avgEntry = price
		}
	}
}

func (r *runner) unrealized(closePrice float64) float64 {
	if r.position.qty.IsZero() {
		return 0
	}
	pnl := decimal.NewFromFloat(closePrice).Sub(r.position.avgEntry).Mul(r.position.qty)
	f, _ := pnl.Float64()
	return f
}

func (r *runner) recordSnapshot(ctx context.Context, ts int64, closePrice float64) {
	equity := r.book.balance + r.unrealized(closePrice)
	if equity > r.book.peakEquity {
		r.book.peakEquity = equity
	}
	if r.book.peakEquity > 0 {
		drawdown := (r.book.peakEquity - equity) / r.book.peakEquity
		if drawdown > r.book.maxDrawdown {
			r.book.maxDrawdown = drawdown
		}
	}
	snap := runstore.SnapshotModel{
		RunID:    r.runID,
		TS:       ts,
		Equity:   equity,
		Balance:  r.book.balance,
		Drawdown: r.book.maxDrawdown,
	}
	if err := r.results.InsertSnapshot(ctx, snap); err != nil {
		logger.Warnf("[backtest] run %s snapshot insert failed: %v", r.runID, err)
	}
}

func (r *runner) flushEvents(ctx context.Context) error {
	if len(r.pending) == 0 {
		return nil
	}
	if err := r.results.AppendEvents(ctx, r.pending); err != nil {
		return fmt.Errorf("persisting run events failed: %w", err)
	}
	r.pending = nil
	return nil
}

func (r *runner) stats() RunStats {
	total := r.book.wins + r.book.losses
	winRate := 0.0
	if total > 0 {
		winRate = float64(r.book.wins) / float64(total)
	}
	profit := r.book.balance - r.book.initialBalance
	returnPct := 0.0
	if r.book.initialBalance > 0 {
		returnPct = profit / r.book.initialBalance
	}
	return RunStats{
		FinalBalance:   r.book.balance,
		Profit:         profit,
		ReturnPct:      returnPct,
		WinRate:        winRate,
		MaxDrawdownPct: r.book.maxDrawdown,
		Orders:         r.book.orders,
		Fills:          r.book.fills,
		Wins:           r.book.wins,
		Losses:         r.book.losses,
		EquityPeak:     r.book.peakEquity,
	}
}

// --- strategy.Trader ---

func (r *runner) SubmitMarket(ctx context.Context, side model.Side, qty decimal.Decimal) error {
	o, err := model.NewOrder(r.ids.New(), r.symbol, side, model.TypeMarket, qty, decimal.Zero, r.clock.Now())
	if err != nil {
		return err
	}
	r.book.orders++
	_, err = r.engine.Submit(ctx, o)
	return err
}

func (r *runner) SubmitAtomicMarket(ctx context.Context, side model.Side, qty, stopLoss, takeProfit decimal.Decimal) error {
	now := r.clock.Now()
	entry, err := model.NewOrder(r.ids.New(), r.symbol, side, model.TypeMarket, qty, decimal.Zero, now)
	if err != nil {
		return err
	}
	sl, err := model.NewOrder(r.ids.New(), r.symbol, side.Opposite(), model.TypeStopMarket, qty, r.inst.RoundPrice(stopLoss), now)
	if err != nil {
		return err
	}
	tp, err := model.NewOrder(r.ids.New(), r.symbol, side.Opposite(), model.TypeLimit, qty, r.inst.RoundPrice(takeProfit), now)
	if err != nil {
		return err
	}
	atomic, err := model.NewAtomicOrder(entry, sl, tp)
	if err != nil {
		return err
	}
	r.book.orders += 3
	_, err = r.engine.SubmitAtomic(ctx, atomic)
	return err
}

func (r *runner) CancelWorking(ctx context.Context) error {
	for _, id := range r.simulator.WorkingOrders(r.symbol) {
		if _, err := r.engine.Cancel(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (r *runner) Position() decimal.Decimal { return r.position.qty }

func toModelBar(c bars.Candle, inst model.Instrument) model.Bar {
	return model.Bar{
		Open:      inst.RoundPrice(decimal.NewFromFloat(c.Open)),
		High:      inst.RoundPrice(decimal.NewFromFloat(c.High)),
		Low:       inst.RoundPrice(decimal.NewFromFloat(c.Low)),
		Close:     inst.RoundPrice(decimal.NewFromFloat(c.Close)),
		Volume:    decimal.NewFromFloat(c.Volume),
		Timestamp: time.UnixMilli(c.CloseTime).UTC(),
	}
}

func toEventModel(runID string, seq int64, ev model.Event) runstore.EventModel {
	m := runstore.EventModel{
		RunID:     runID,
		Seq:       seq,
		EventID:   ev.ID(),
		OrderID:   ev.OrderID(),
		EventType: ev.Type(),
		TS:        ev.Timestamp().UnixMilli(),
	}
	switch e := ev.(type) {
	case model.OrderRejected:
		m.Reason = e.Reason
	case model.OrderCancelReject:
		m.Reason = e.Response + ": " + e.Reason
	case model.OrderWorking:
		m.Price = e.Price.String()
	case model.OrderModified:
		m.Price = e.Price.String()
		m.Quantity = e.Quantity.String()
	case model.OrderPartiallyFilled:
		m.Price = e.FillPrice.String()
		m.Quantity = e.FilledQuantity.String()
		m.Commission = e.Commission.String()
	case model.OrderFilled:
		m.Price = e.FillPrice.String()
		m.Quantity = e.FilledQuantity.String()
		m.Commission = e.Commission.String()
	}
	return m
}
