package strategy

import (
	"context"
	"fmt"

	talib "github.com/markcheno/go-talib"
	"github.com/shopspring/decimal"

	"simex/internal/model"
)

// SMACross is a simple moving-average crossover strategy. A golden cross
// opens a long via an atomic bracket (entry + stop-loss + take-profit); a
// dead cross flattens any long and cancels the surviving contingents.
type SMACross struct {
	symbol      string
	fastPeriod  int
	slowPeriod  int
	quantity    decimal.Decimal
	stopLossPct decimal.Decimal
	takePct     decimal.Decimal

	closes []float64
}

func NewSMACross(symbol string, fastPeriod, slowPeriod int, quantity decimal.Decimal) (*SMACross, error) {
	if fastPeriod <= 0 || slowPeriod <= 0 || fastPeriod >= slowPeriod {
		return nil, fmt.Errorf("sma cross: fast period must be positive and below slow period")
	}
	if !quantity.IsPositive() {
		return nil, fmt.Errorf("sma cross: quantity must be positive")
	}
	return &SMACross{
		symbol:      symbol,
		fastPeriod:  fastPeriod,
		slowPeriod:  slowPeriod,
		quantity:    quantity,
		stopLossPct: decimal.NewFromFloat(0.99),
		takePct:     decimal.NewFromFloat(1.02),
	}, nil
}

// NewSMACrossFactory returns a Factory with the stock 12/26 periods and a
// one-unit order size.
func NewSMACrossFactory() Factory {
	return func(symbol string) (Strategy, error) {
		return NewSMACross(symbol, 12, 26, decimal.NewFromInt(1))
	}
}

func (s *SMACross) Name() string { return "sma_cross" }

func (s *SMACross) OnBar(ctx context.Context, update BarUpdate, trader Trader) error {
	if update.Symbol != s.symbol {
		return nil
	}
	lastClose, _ := update.Bid.Close.Float64()
	s.closes = append(s.closes, lastClose)
	if len(s.closes) <= s.slowPeriod {
		return nil
	}

	fast := talib.Sma(s.closes, s.fastPeriod)
	slow := talib.Sma(s.closes, s.slowPeriod)
	last := len(s.closes) - 1

	goldenCross := fast[last-1] <= slow[last-1] && fast[last] > slow[last]
	deadCross := fast[last-1] >= slow[last-1] && fast[last] < slow[last]

	switch {
	case goldenCross && !trader.Position().IsPositive():
		stopLoss := update.Bid.Close.Mul(s.stopLossPct)
		takeProfit := update.Bid.Close.Mul(s.takePct)
		return trader.SubmitAtomicMarket(ctx, model.SideBuy, s.quantity, stopLoss, takeProfit)
	case deadCross && trader.Position().IsPositive():
		if err := trader.CancelWorking(ctx); err != nil {
			return err
		}
		return trader.SubmitMarket(ctx, model.SideSell, trader.Position())
	}
	return nil
}
