package backtest

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"simex/internal/model"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newStatsRunner(initial float64) *runner {
	return &runner{
		runID: "run-1",
		book: portfolioState{
			initialBalance: initial,
			balance:        initial,
			peakEquity:     initial,
		},
		position: positionState{qty: decimal.Zero, avgEntry: decimal.Zero},
	}
}

func TestOnFillOpensAndClosesLong(t *testing.T) {
	r := newStatsRunner(1000)

	r.onFill(model.SideBuy, d("90.000"), d("2"), model.Money{Amount: decimal.Zero, Currency: "USD"})
	assert.True(t, r.Position().Equal(d("2")))
	assert.True(t, r.position.avgEntry.Equal(d("90.000")))

	r.onFill(model.SideSell, d("91.000"), d("2"), model.Money{Amount: decimal.Zero, Currency: "USD"})
	assert.True(t, r.Position().IsZero())
	assert.Equal(t, 1000.0+2.0, r.book.balance)
	assert.Equal(t, 1, r.book.wins)
	assert.Equal(t, 0, r.book.losses)
	assert.Equal(t, 2, r.book.fills)
}

func TestOnFillAveragesScaledEntries(t *testing.T) {
	r := newStatsRunner(1000)

	r.onFill(model.SideBuy, d("90.000"), d("1"), model.Money{Amount: decimal.Zero})
	r.onFill(model.SideBuy, d("92.000"), d("1"), model.Money{Amount: decimal.Zero})
	assert.True(t, r.Position().Equal(d("2")))
	assert.True(t, r.position.avgEntry.Equal(d("91.000")), "got %s", r.position.avgEntry)
}

func TestOnFillShortPositionProfit(t *testing.T) {
	r := newStatsRunner(1000)

	r.onFill(model.SideSell, d("90.000"), d("1"), model.Money{Amount: decimal.Zero})
	assert.True(t, r.Position().Equal(d("-1")))

	// Buying back lower is a win for a short.
	r.onFill(model.SideBuy, d("89.000"), d("1"), model.Money{Amount: decimal.Zero})
	assert.Equal(t, 1001.0, r.book.balance)
	assert.Equal(t, 1, r.book.wins)
}

func TestOnFillLosingTradeAndCommission(t *testing.T) {
	r := newStatsRunner(1000)

	r.onFill(model.SideBuy, d("90.000"), d("1"), model.Money{Amount: d("2.00"), Currency: "USD"})
	r.onFill(model.SideSell, d("89.500"), d("1"), model.Money{Amount: d("2.00"), Currency: "USD"})
	assert.Equal(t, 1000.0-0.5-4.0, r.book.balance)
	assert.Equal(t, 1, r.book.losses)
}

func TestOnFillFlipThroughZero(t *testing.T) {
	r := newStatsRunner(1000)

	r.onFill(model.SideBuy, d("90.000"), d("1"), model.Money{Amount: decimal.Zero})
	r.onFill(model.SideSell, d("91.000"), d("3"), model.Money{Amount: decimal.Zero})
	assert.True(t, r.Position().Equal(d("-2")))
	assert.True(t, r.position.avgEntry.Equal(d("91.000")), "flip re-bases the entry at the fill price")
	assert.Equal(t, 1001.0, r.book.balance, "only the closed unit realizes pnl")
	assert.Equal(t, 1, r.book.wins)
}

func TestUnrealizedPnL(t *testing.T) {
	r := newStatsRunner(1000)
	assert.Zero(t, r.unrealized(95))

	r.onFill(model.SideBuy, d("90.000"), d("2"), model.Money{Amount: decimal.Zero})
	assert.InDelta(t, 4.0, r.unrealized(92), 1e-9)
	assert.InDelta(t, -4.0, r.unrealized(88), 1e-9)
}

func TestStatsSummary(t *testing.T) {
	r := newStatsRunner(1000)
	r.book.balance = 1100
	r.book.peakEquity = 1150
	r.book.maxDrawdown = 0.04
	r.book.orders = 10
	r.book.fills = 8
	r.book.wins = 3
	r.book.losses = 1

	stats := r.stats()
	assert.Equal(t, 1100.0, stats.FinalBalance)
	assert.Equal(t, 100.0, stats.Profit)
	assert.InDelta(t, 0.1, stats.ReturnPct, 1e-9)
	assert.InDelta(t, 0.75, stats.WinRate, 1e-9)
	assert.Equal(t, 0.04, stats.MaxDrawdownPct)
	assert.Equal(t, 1150.0, stats.EquityPeak)
}

func TestStatsWithNoClosedTrades(t *testing.T) {
	r := newStatsRunner(1000)
	stats := r.stats()
	assert.Zero(t, stats.WinRate)
	assert.Zero(t, stats.Profit)
}

func TestToEventModelCarriesFillFields(t *testing.T) {
	fill := model.OrderFilled{
		EventBase:      model.EventBase{EventID: "EV-9", Order: "O-3"},
		Side:           model.SideBuy,
		FillPrice:      d("90.005"),
		FilledQuantity: d("100000"),
		Commission:     model.Money{Amount: d("2.00"), Currency: "USD"},
	}
	m := toEventModel("run-1", 7, fill)
	assert.Equal(t, "run-1", m.RunID)
	assert.Equal(t, int64(7), m.Seq)
	assert.Equal(t, "OrderFilled", m.EventType)
	assert.Equal(t, "90.005", m.Price)
	assert.Equal(t, "100000", m.Quantity)
	assert.Equal(t, "2.00 USD", m.Commission)

	reject := model.OrderCancelReject{
		EventBase: model.EventBase{EventID: "EV-10", Order: "O-4"},
		Response:  "cancel",
		Reason:    "order not found",
	}
	m = toEventModel("run-1", 8, reject)
	assert.Equal(t, "cancel: order not found", m.Reason)
	assert.Empty(t, m.Price)
}
