// Package commission computes the fee attached to each fill event.
package commission

import (
	"fmt"

	"github.com/shopspring/decimal"

	"simex/internal/model"
)

// Rate is one entry of the schedule: basis points of notional with a
// per-trade minimum. A flat schedule is expressed as minimum-only.
type Rate struct {
	BasisPoints decimal.Decimal
	Minimum     decimal.Decimal
}

// Schedule maps commission classes (from instrument metadata) to rates.
// Instruments without a class entry use Default.
type Schedule struct {
	Default Rate
	Classes map[string]Rate
}

// Calculator is a pure fee function over a validated schedule.
type Calculator struct {
	schedule Schedule
}

// NewCalculator rejects negative rates up front; a broken schedule is a
// setup error, not a runtime trading condition.
func NewCalculator(schedule Schedule) (*Calculator, error) {
	if err := validateRate("default", schedule.Default); err != nil {
		return nil, err
	}
	for class, rate := range schedule.Classes {
		if err := validateRate(class, rate); err != nil {
			return nil, err
		}
	}
	return &Calculator{schedule: schedule}, nil
}

func validateRate(name string, r Rate) error {
	if r.BasisPoints.IsNegative() {
		return fmt.Errorf("commission schedule %q: basis points cannot be negative", name)
	}
	if r.Minimum.IsNegative() {
		return fmt.Errorf("commission schedule %q: minimum cannot be negative", name)
	}
	return nil
}

var bpsDivisor = decimal.NewFromInt(10000)

// Commission returns the fee for a fill of filledQty at fillPrice, in the
// account currency. It is invoked once per fill, after slippage is final,
// and never charges on the order's original requested quantity.
func (c *Calculator) Commission(inst model.Instrument, filledQty, fillPrice decimal.Decimal, currency string) model.Money {
	if filledQty.IsNegative() || fillPrice.IsNegative() {
		return model.NewMoney(decimal.Zero, currency)
	}
	rate := c.schedule.Default
	if r, ok := c.schedule.Classes[inst.CommissionClass]; ok {
		rate = r
	}
	notional := filledQty.Mul(fillPrice)
	fee := notional.Mul(rate.BasisPoints).Div(bpsDivisor)
	if fee.LessThan(rate.Minimum) {
		fee = rate.Minimum
	}
	return model.NewMoney(fee, currency)
}
