package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Instrument describes a tradable symbol and its pricing rules.
type Instrument struct {
	Symbol          string
	BaseCurrency    string
	QuoteCurrency   string
	TickSize        decimal.Decimal // minimum price increment
	PricePrecision  int32
	MinQuantity     decimal.Decimal
	CommissionClass string // key into the commission schedule, e.g. "fx", "crypto"
}

// RoundPrice snaps a price to the instrument's precision.
func (i Instrument) RoundPrice(p decimal.Decimal) decimal.Decimal {
	return p.Round(i.PricePrecision)
}

// Bar is an aggregated OHLC summary for one interval on one side of the
// book (the simulator always receives a bid bar and an ask bar together).
type Bar struct {
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
	Timestamp time.Time
}

// Money is an amount denominated in a single currency.
type Money struct {
	Amount   decimal.Decimal
	Currency string
}

// NewMoney rounds the amount to cents.
func NewMoney(amount decimal.Decimal, currency string) Money {
	return Money{Amount: amount.Round(2), Currency: currency}
}

func (m Money) String() string {
	return m.Amount.StringFixed(2) + " " + m.Currency
}
