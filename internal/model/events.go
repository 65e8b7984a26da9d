package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event is one order lifecycle event emitted by the execution layer.
// Events for a single processing step are ordered and delivery preserves
// that order; downstream consumers index into the sequence positionally.
type Event interface {
	ID() string
	OrderID() string
	Timestamp() time.Time
	Type() string
}

// EventBase carries the fields shared by every lifecycle event.
type EventBase struct {
	EventID string
	Order   string
	TS      time.Time
}

func (e EventBase) ID() string           { return e.EventID }
func (e EventBase) OrderID() string      { return e.Order }
func (e EventBase) Timestamp() time.Time { return e.TS }

// OrderSubmitted acknowledges that a submit command reached the venue.
type OrderSubmitted struct {
	EventBase
}

func (OrderSubmitted) Type() string { return "OrderSubmitted" }

// OrderRejected terminates an order that failed validation.
type OrderRejected struct {
	EventBase
	Reason string
}

func (OrderRejected) Type() string { return "OrderRejected" }

// OrderAccepted confirms the venue took responsibility for the order.
type OrderAccepted struct {
	EventBase
}

func (OrderAccepted) Type() string { return "OrderAccepted" }

// OrderWorking signals the order is resting in the book at Price.
type OrderWorking struct {
	EventBase
	Price decimal.Decimal
}

func (OrderWorking) Type() string { return "OrderWorking" }

// OrderModified reports the new price/quantity of a working order.
type OrderModified struct {
	EventBase
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

func (OrderModified) Type() string { return "OrderModified" }

// OrderCancelReject is the answer to a cancel or modify command that could
// not be applied. Response names the command it replies to, so callers are
// never left waiting on a silently dropped command.
type OrderCancelReject struct {
	EventBase
	Response string // "cancel" or "modify"
	Reason   string
}

func (OrderCancelReject) Type() string { return "OrderCancelReject" }

// OrderCancelled terminates a working order on request or via OCO linkage.
type OrderCancelled struct {
	EventBase
}

func (OrderCancelled) Type() string { return "OrderCancelled" }

// OrderExpired terminates a working GTD order whose expiry has passed.
type OrderExpired struct {
	EventBase
}

func (OrderExpired) Type() string { return "OrderExpired" }

// OrderPartiallyFilled reports a partial execution; LeavesQuantity remains
// working.
type OrderPartiallyFilled struct {
	EventBase
	Side           Side
	FillPrice      decimal.Decimal
	FilledQuantity decimal.Decimal
	LeavesQuantity decimal.Decimal
	Commission     Money
}

func (OrderPartiallyFilled) Type() string { return "OrderPartiallyFilled" }

// OrderFilled reports a complete execution at FillPrice. Commission is
// computed from the filled quantity after slippage is applied.
type OrderFilled struct {
	EventBase
	Side           Side
	FillPrice      decimal.Decimal
	FilledQuantity decimal.Decimal
	Commission     Money
}

func (OrderFilled) Type() string { return "OrderFilled" }
