// Package strategy defines the callback surface backtested strategies
// implement and the order-entry facade they trade through.
package strategy

import (
	"context"

	"github.com/shopspring/decimal"

	"simex/internal/model"
)

// Trader is the order-entry facade handed to a strategy. Implementations
// route through the execution engine; the strategy never touches the
// simulator directly.
type Trader interface {
	// SubmitMarket sends a market order for qty units.
	SubmitMarket(ctx context.Context, side model.Side, qty decimal.Decimal) error
	// SubmitAtomicMarket sends a bracket: market entry plus stop-loss and
	// take-profit contingents at the given prices.
	SubmitAtomicMarket(ctx context.Context, side model.Side, qty, stopLoss, takeProfit decimal.Decimal) error
	// CancelWorking cancels every order still resting for the symbol.
	CancelWorking(ctx context.Context) error
	// Position is the signed net quantity (buys positive).
	Position() decimal.Decimal
}

// BarUpdate carries one completed bid/ask bar pair.
type BarUpdate struct {
	Symbol string
	Bid    model.Bar
	Ask    model.Bar
}

type Strategy interface {
	Name() string
	OnBar(ctx context.Context, update BarUpdate, trader Trader) error
}

// Factory builds a fresh strategy instance per backtest run.
type Factory func(symbol string) (Strategy, error)
