package sim

import (
	"fmt"
	"math/rand"

	"github.com/shopspring/decimal"

	"simex/internal/model"
)

// FillModel decides whether resting orders fill when their price is
// touched and whether a fill slips. All draws come from one seeded source,
// so a fixed seed reproduces the exact draw sequence across runs.
type FillModel struct {
	probFillAtLimit float64
	probFillAtStop  float64
	probSlippage    float64
	rng             *rand.Rand
}

// NewFillModel validates the probabilities and seeds the random source.
func NewFillModel(probFillAtLimit, probFillAtStop, probSlippage float64, seed int64) (*FillModel, error) {
	for name, p := range map[string]float64{
		"prob_fill_at_limit": probFillAtLimit,
		"prob_fill_at_stop":  probFillAtStop,
		"prob_slippage":      probSlippage,
	} {
		if p < 0 || p > 1 {
			return nil, fmt.Errorf("fill model: %s must be in [0, 1], got %v", name, p)
		}
	}
	return &FillModel{
		probFillAtLimit: probFillAtLimit,
		probFillAtStop:  probFillAtStop,
		probSlippage:    probSlippage,
		rng:             rand.New(rand.NewSource(seed)),
	}, nil
}

// NewDefaultFillModel always fills and never slips.
func NewDefaultFillModel() *FillModel {
	m, _ := NewFillModel(1.0, 1.0, 0.0, 0)
	return m
}

// draw is a Bernoulli trial. The degenerate probabilities short-circuit
// without consuming randomness, keeping seeded sequences stable when a
// parameter is pinned to 0 or 1 for a test.
func (m *FillModel) draw(p float64) bool {
	if p >= 1.0 {
		return true
	}
	if p <= 0.0 {
		return false
	}
	return m.rng.Float64() < p
}

// IsLimitFilled decides whether a limit order fills when price trades
// through its level.
func (m *FillModel) IsLimitFilled() bool { return m.draw(m.probFillAtLimit) }

// IsStopFilled decides whether a triggered stop order fills.
func (m *FillModel) IsStopFilled() bool { return m.draw(m.probFillAtStop) }

// IsSlipped decides whether a fill experiences slippage, independently of
// the fill draws.
func (m *FillModel) IsSlipped() bool { return m.draw(m.probSlippage) }

// SlippageFor returns one minimum price increment for the instrument; the
// caller applies it in the adverse direction.
func (m *FillModel) SlippageFor(inst model.Instrument) decimal.Decimal {
	return inst.TickSize
}
