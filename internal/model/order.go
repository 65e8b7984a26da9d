package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrQuantityNotPositive = errors.New("order quantity must be positive")
	ErrPriceRequired       = errors.New("order type requires a price")
	ErrPriceForbidden      = errors.New("market orders carry no price")
	ErrIllegalTransition   = errors.New("illegal order state transition")
)

// Order is one tradable instruction and its lifecycle state. Quantity is
// immutable after creation; Price may change only while the order is in a
// cancelable, pre-fill state.
type Order struct {
	id         string
	Symbol     string
	Side       Side
	Type       OrderType
	Quantity   decimal.Decimal
	Price      decimal.Decimal // zero for market orders
	PositionID string
	EntryID    string // parent entry order id, set on bracket contingents
	ExpireAt   *time.Time

	state      OrderState
	filledQty  decimal.Decimal
	avgPrice   decimal.Decimal
	CreatedAt  time.Time
	lastEvent  time.Time
	eventCount int
}

// NewOrder validates the price/type invariant and returns an INITIALIZED
// order. Price must be the zero decimal for market orders.
func NewOrder(id, symbol string, side Side, typ OrderType, qty, price decimal.Decimal, created time.Time) (*Order, error) {
	if id == "" {
		return nil, errors.New("order id cannot be empty")
	}
	if symbol == "" {
		return nil, errors.New("order symbol cannot be empty")
	}
	if !qty.IsPositive() {
		return nil, ErrQuantityNotPositive
	}
	if typ.RequiresPrice() && !price.IsPositive() {
		return nil, ErrPriceRequired
	}
	if typ == TypeMarket && !price.IsZero() {
		return nil, ErrPriceForbidden
	}
	return &Order{
		id:        id,
		Symbol:    symbol,
		Side:      side,
		Type:      typ,
		Quantity:  qty,
		Price:     price,
		state:     StateInitialized,
		CreatedAt: created,
		lastEvent: created,
	}, nil
}

func (o *Order) ID() string                 { return o.id }
func (o *Order) State() OrderState          { return o.state }
func (o *Order) FilledQty() decimal.Decimal { return o.filledQty }
func (o *Order) AvgPrice() decimal.Decimal  { return o.avgPrice }
func (o *Order) LeavesQty() decimal.Decimal { return o.Quantity.Sub(o.filledQty) }
func (o *Order) LastEventAt() time.Time     { return o.lastEvent }
func (o *Order) EventCount() int            { return o.eventCount }

// IsCompleted reports whether the order reached a terminal state.
func (o *Order) IsCompleted() bool { return o.state.IsTerminal() }

// IsWorking reports whether the order rests in the book.
func (o *Order) IsWorking() bool {
	return o.state == StateWorking || o.state == StatePartiallyFilled
}

func (o *Order) transition(to OrderState, ts time.Time) error {
	if !CanTransition(o.state, to) {
		return fmt.Errorf("%w: %s -> %s (order %s)", ErrIllegalTransition, o.state, to, o.id)
	}
	o.state = to
	o.lastEvent = ts
	o.eventCount++
	return nil
}

// Apply advances the state machine with the given lifecycle event. The
// event must reference this order.
func (o *Order) Apply(ev Event) error {
	if ev.OrderID() != o.id {
		return fmt.Errorf("event order id %s does not match order %s", ev.OrderID(), o.id)
	}
	switch e := ev.(type) {
	case OrderSubmitted:
		return o.transition(StateSubmitted, e.TS)
	case OrderRejected:
		return o.transition(StateRejected, e.TS)
	case OrderAccepted:
		return o.transition(StateAccepted, e.TS)
	case OrderWorking:
		return o.transition(StateWorking, e.TS)
	case OrderModified:
		if !o.IsWorking() {
			return fmt.Errorf("%w: modify in state %s (order %s)", ErrIllegalTransition, o.state, o.id)
		}
		o.Price = e.Price
		o.lastEvent = e.TS
		o.eventCount++
		return nil
	case OrderCancelled:
		return o.transition(StateCancelled, e.TS)
	case OrderExpired:
		return o.transition(StateExpired, e.TS)
	case OrderPartiallyFilled:
		if err := o.transition(StatePartiallyFilled, e.TS); err != nil {
			return err
		}
		o.applyFill(e.FillPrice, e.FilledQuantity)
		return nil
	case OrderFilled:
		if err := o.transition(StateFilled, e.TS); err != nil {
			return err
		}
		o.applyFill(e.FillPrice, e.FilledQuantity)
		return nil
	case OrderCancelReject:
		// Command-level rejection, not a state change.
		return nil
	default:
		return fmt.Errorf("unhandled event type %s for order %s", ev.Type(), o.id)
	}
}

// applyFill maintains the volume-weighted average fill price.
func (o *Order) applyFill(price, qty decimal.Decimal) {
	total := o.filledQty.Add(qty)
	if total.IsZero() {
		return
	}
	notional := o.avgPrice.Mul(o.filledQty).Add(price.Mul(qty))
	o.avgPrice = notional.Div(total)
	o.filledQty = total
}
