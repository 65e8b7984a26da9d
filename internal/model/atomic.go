package model

import "errors"

// AtomicOrder is a bracket: an entry order plus the two contingent orders
// that protect the resulting position. The contingents are mutually
// exclusive (one-cancels-other) and stay inactive until the entry fills.
type AtomicOrder struct {
	Entry      *Order
	StopLoss   *Order
	TakeProfit *Order
}

// NewAtomicOrder validates the composite. The contingents must be priced,
// belong to the entry's symbol, and face the opposite side of the entry.
func NewAtomicOrder(entry, stopLoss, takeProfit *Order) (*AtomicOrder, error) {
	if entry == nil || stopLoss == nil || takeProfit == nil {
		return nil, errors.New("atomic order requires entry, stop-loss and take-profit")
	}
	for _, child := range []*Order{stopLoss, takeProfit} {
		if child.Symbol != entry.Symbol {
			return nil, errors.New("atomic order children must share the entry symbol")
		}
		if child.Side != entry.Side.Opposite() {
			return nil, errors.New("atomic order children must oppose the entry side")
		}
		if !child.Price.IsPositive() {
			return nil, errors.New("atomic order children must carry a price")
		}
		if !child.Quantity.Equal(entry.Quantity) {
			return nil, errors.New("atomic order children must match the entry quantity")
		}
		child.EntryID = entry.ID()
	}
	if stopLoss.Type != TypeStopMarket {
		return nil, errors.New("stop-loss must be a stop-market order")
	}
	return &AtomicOrder{Entry: entry, StopLoss: stopLoss, TakeProfit: takeProfit}, nil
}

// Orders returns the component orders in entry, stop-loss, take-profit order.
func (a *AtomicOrder) Orders() []*Order {
	return []*Order{a.Entry, a.StopLoss, a.TakeProfit}
}
