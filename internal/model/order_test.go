package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

func newTestOrder(t *testing.T, side Side, typ OrderType, qty, price string) *Order {
	t.Helper()
	o, err := NewOrder("O-1", "AUD/USD", side, typ, dec(qty), dec(price), testTime)
	require.NoError(t, err)
	return o
}

func dec(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	return decimal.RequireFromString(s)
}

func ev(orderID string) EventBase {
	return EventBase{EventID: "E-1", Order: orderID, TS: testTime}
}

func TestNewOrderValidation(t *testing.T) {
	_, err := NewOrder("O-1", "AUD/USD", SideBuy, TypeMarket, dec("0"), decimal.Zero, testTime)
	assert.ErrorIs(t, err, ErrQuantityNotPositive)

	_, err = NewOrder("O-1", "AUD/USD", SideBuy, TypeMarket, dec("-5"), decimal.Zero, testTime)
	assert.ErrorIs(t, err, ErrQuantityNotPositive)

	_, err = NewOrder("O-1", "AUD/USD", SideBuy, TypeLimit, dec("100"), decimal.Zero, testTime)
	assert.ErrorIs(t, err, ErrPriceRequired)

	_, err = NewOrder("O-1", "AUD/USD", SideSell, TypeStopMarket, dec("100"), decimal.Zero, testTime)
	assert.ErrorIs(t, err, ErrPriceRequired)

	_, err = NewOrder("O-1", "AUD/USD", SideBuy, TypeMarket, dec("100"), dec("1.5"), testTime)
	assert.ErrorIs(t, err, ErrPriceForbidden)

	o, err := NewOrder("O-1", "AUD/USD", SideBuy, TypeLimit, dec("100"), dec("0.65"), testTime)
	require.NoError(t, err)
	assert.Equal(t, StateInitialized, o.State())
	assert.False(t, o.IsCompleted())
	assert.False(t, o.IsWorking())
}

func TestOrderLifecycleToFilled(t *testing.T) {
	o := newTestOrder(t, SideBuy, TypeLimit, "100", "0.65000")

	require.NoError(t, o.Apply(OrderSubmitted{EventBase: ev(o.ID())}))
	assert.Equal(t, StateSubmitted, o.State())

	require.NoError(t, o.Apply(OrderAccepted{EventBase: ev(o.ID())}))
	assert.Equal(t, StateAccepted, o.State())

	require.NoError(t, o.Apply(OrderWorking{EventBase: ev(o.ID()), Price: o.Price}))
	assert.Equal(t, StateWorking, o.State())
	assert.True(t, o.IsWorking())

	require.NoError(t, o.Apply(OrderFilled{
		EventBase:      ev(o.ID()),
		Side:           SideBuy,
		FillPrice:      dec("0.65000"),
		FilledQuantity: dec("100"),
	}))
	assert.Equal(t, StateFilled, o.State())
	assert.True(t, o.IsCompleted())
	assert.True(t, o.FilledQty().Equal(dec("100")))
	assert.True(t, o.LeavesQty().IsZero())
	assert.True(t, o.AvgPrice().Equal(dec("0.65000")))
}

func TestOrderPartialFillAveragePrice(t *testing.T) {
	o := newTestOrder(t, SideBuy, TypeLimit, "100", "0.65000")
	require.NoError(t, o.Apply(OrderSubmitted{EventBase: ev(o.ID())}))
	require.NoError(t, o.Apply(OrderAccepted{EventBase: ev(o.ID())}))
	require.NoError(t, o.Apply(OrderWorking{EventBase: ev(o.ID()), Price: o.Price}))

	require.NoError(t, o.Apply(OrderPartiallyFilled{
		EventBase:      ev(o.ID()),
		Side:           SideBuy,
		FillPrice:      dec("0.65000"),
		FilledQuantity: dec("40"),
	}))
	assert.Equal(t, StatePartiallyFilled, o.State())
	assert.True(t, o.IsWorking())
	assert.True(t, o.LeavesQty().Equal(dec("60")))

	require.NoError(t, o.Apply(OrderFilled{
		EventBase:      ev(o.ID()),
		Side:           SideBuy,
		FillPrice:      dec("0.64900"),
		FilledQuantity: dec("60"),
	}))
	assert.True(t, o.FilledQty().Equal(dec("100")))
	// (40*0.65 + 60*0.649) / 100
	assert.True(t, o.AvgPrice().Equal(dec("0.64940")), "got %s", o.AvgPrice())
}

func TestOrderIllegalTransitions(t *testing.T) {
	o := newTestOrder(t, SideBuy, TypeLimit, "100", "0.65000")

	// INITIALIZED cannot jump straight to FILLED.
	err := o.Apply(OrderFilled{EventBase: ev(o.ID()), Side: SideBuy, FillPrice: dec("0.65"), FilledQuantity: dec("100")})
	assert.ErrorIs(t, err, ErrIllegalTransition)

	require.NoError(t, o.Apply(OrderSubmitted{EventBase: ev(o.ID())}))
	require.NoError(t, o.Apply(OrderRejected{EventBase: ev(o.ID()), Reason: "no market"}))
	assert.Equal(t, StateRejected, o.State())

	// Terminal states accept nothing further.
	err = o.Apply(OrderAccepted{EventBase: ev(o.ID())})
	assert.ErrorIs(t, err, ErrIllegalTransition)
	err = o.Apply(OrderCancelled{EventBase: ev(o.ID())})
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

func TestOrderModifyOnlyWhileWorking(t *testing.T) {
	o := newTestOrder(t, SideSell, TypeLimit, "100", "0.66000")

	err := o.Apply(OrderModified{EventBase: ev(o.ID()), Price: dec("0.67000"), Quantity: o.Quantity})
	assert.ErrorIs(t, err, ErrIllegalTransition)

	require.NoError(t, o.Apply(OrderSubmitted{EventBase: ev(o.ID())}))
	require.NoError(t, o.Apply(OrderAccepted{EventBase: ev(o.ID())}))
	require.NoError(t, o.Apply(OrderWorking{EventBase: ev(o.ID()), Price: o.Price}))

	require.NoError(t, o.Apply(OrderModified{EventBase: ev(o.ID()), Price: dec("0.67000"), Quantity: o.Quantity}))
	assert.True(t, o.Price.Equal(dec("0.67000")))
	assert.Equal(t, StateWorking, o.State(), "modify must not change state")
}

func TestOrderCancelledFromInitialized(t *testing.T) {
	// A bracket child that never activates goes straight from INITIALIZED
	// to CANCELLED.
	o := newTestOrder(t, SideSell, TypeStopMarket, "100", "0.64000")
	require.NoError(t, o.Apply(OrderCancelled{EventBase: ev(o.ID())}))
	assert.Equal(t, StateCancelled, o.State())
}

func TestOrderApplyRejectsForeignEvent(t *testing.T) {
	o := newTestOrder(t, SideBuy, TypeMarket, "100", "")
	err := o.Apply(OrderSubmitted{EventBase: EventBase{EventID: "E-1", Order: "OTHER", TS: testTime}})
	assert.Error(t, err)
}
