package model

import "fmt"

// Side is the direction of an order.
type Side int

const (
	SideBuy Side = iota + 1
	SideSell
)

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "BUY"
	case SideSell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// ParseSide maps the wire/config representation to a Side.
func ParseSide(raw string) (Side, error) {
	switch raw {
	case "BUY", "buy":
		return SideBuy, nil
	case "SELL", "sell":
		return SideSell, nil
	default:
		return 0, fmt.Errorf("unknown order side: %q", raw)
	}
}

// Opposite returns the other side of the book.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderType enumerates the order types the simulator can match.
type OrderType int

const (
	TypeMarket OrderType = iota + 1
	TypeLimit
	TypeStopMarket
)

func (t OrderType) String() string {
	switch t {
	case TypeMarket:
		return "MARKET"
	case TypeLimit:
		return "LIMIT"
	case TypeStopMarket:
		return "STOP_MARKET"
	default:
		return "UNKNOWN"
	}
}

// RequiresPrice reports whether the order type carries a trigger/limit price.
func (t OrderType) RequiresPrice() bool {
	return t == TypeLimit || t == TypeStopMarket
}

// OrderState is the lifecycle state of an order.
type OrderState int

const (
	StateInitialized OrderState = iota + 1
	StateSubmitted
	StateRejected
	StateAccepted
	StateWorking
	StatePartiallyFilled
	StateFilled
	StateCancelled
	StateExpired
)

func (s OrderState) String() string {
	switch s {
	case StateInitialized:
		return "INITIALIZED"
	case StateSubmitted:
		return "SUBMITTED"
	case StateRejected:
		return "REJECTED"
	case StateAccepted:
		return "ACCEPTED"
	case StateWorking:
		return "WORKING"
	case StatePartiallyFilled:
		return "PARTIALLY_FILLED"
	case StateFilled:
		return "FILLED"
	case StateCancelled:
		return "CANCELLED"
	case StateExpired:
		return "EXPIRED"
	default:
		return "UNKNOWN"
	}
}

// IsTerminal reports whether no further transitions are possible.
func (s OrderState) IsTerminal() bool {
	switch s {
	case StateRejected, StateFilled, StateCancelled, StateExpired:
		return true
	default:
		return false
	}
}

// transitions is the validated order state machine. Market orders reach
// FILLED straight from ACCEPTED since they never rest in the book.
// INITIALIZED -> CANCELLED covers bracket contingents whose entry never
// filled: they are cancelled without ever being submitted.
var transitions = map[OrderState][]OrderState{
	StateInitialized:     {StateSubmitted, StateCancelled},
	StateSubmitted:       {StateRejected, StateAccepted},
	StateAccepted:        {StateWorking, StateFilled, StatePartiallyFilled, StateCancelled},
	StateWorking:         {StateCancelled, StateExpired, StatePartiallyFilled, StateFilled},
	StatePartiallyFilled: {StateWorking, StatePartiallyFilled, StateFilled, StateCancelled, StateExpired},
}

// CanTransition reports whether from -> to is a legal lifecycle move.
func CanTransition(from, to OrderState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
