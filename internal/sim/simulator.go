// Package sim is the matching simulator: given historical bid/ask bars and
// a stream of order commands it decides whether, when, and at what price
// each order fills, and emits lifecycle events in a deterministic order.
package sim

import (
	"fmt"

	"github.com/shopspring/decimal"

	"simex/internal/clock"
	"simex/internal/commission"
	"simex/internal/ident"
	"simex/internal/logger"
	"simex/internal/model"
)

type Config struct {
	Instruments     []model.Instrument
	StartingCapital decimal.Decimal
	AccountCurrency string
	FrozenAccount   bool
	FillModel       *FillModel
	Commission      *commission.Calculator
	Clock           clock.Clock
	IDs             ident.Factory
}

// childLink holds the pending contingents of a bracket entry until the
// entry reaches a terminal state.
type childLink struct {
	stopLoss   *model.Order
	takeProfit *model.Order
}

// Simulator owns the per-symbol working sets and the most recent bid/ask
// bar, and produces ordered lifecycle events for every command and bar.
// It is logically single-threaded: the execution engine serializes calls.
type Simulator struct {
	instruments map[string]model.Instrument
	bidBars     map[string]model.Bar
	askBars     map[string]model.Bar

	orders    map[string]*model.Order
	working   map[string][]string // symbol -> order ids in submission order
	children  map[string]childLink
	oco       map[string]string // contingent id -> sibling id
	triggered map[string]struct{}

	fill    *FillModel
	comm    *commission.Calculator
	account *Account
	clock   clock.Clock
	ids     ident.Factory
}

// NewSimulator validates the configuration; a broken setup fails here, not
// mid-backtest.
func NewSimulator(cfg Config) (*Simulator, error) {
	if len(cfg.Instruments) == 0 {
		return nil, fmt.Errorf("simulator requires at least one instrument")
	}
	if cfg.FillModel == nil {
		return nil, fmt.Errorf("simulator requires a fill model")
	}
	if cfg.Commission == nil {
		return nil, fmt.Errorf("simulator requires a commission calculator")
	}
	if cfg.AccountCurrency == "" {
		return nil, fmt.Errorf("simulator requires an account currency")
	}
	if cfg.StartingCapital.IsNegative() {
		return nil, fmt.Errorf("starting capital cannot be negative")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.WallClock{}
	}
	if cfg.IDs == nil {
		cfg.IDs = ident.UUIDFactory{}
	}
	instruments := make(map[string]model.Instrument, len(cfg.Instruments))
	for _, inst := range cfg.Instruments {
		if inst.Symbol == "" || !inst.TickSize.IsPositive() {
			return nil, fmt.Errorf("instrument %q: symbol and positive tick size required", inst.Symbol)
		}
		instruments[inst.Symbol] = inst
	}
	return &Simulator{
		instruments: instruments,
		bidBars:     make(map[string]model.Bar),
		askBars:     make(map[string]model.Bar),
		orders:      make(map[string]*model.Order),
		working:     make(map[string][]string),
		children:    make(map[string]childLink),
		oco:         make(map[string]string),
		triggered:   make(map[string]struct{}),
		fill:        cfg.FillModel,
		comm:        cfg.Commission,
		account:     NewAccount(cfg.StartingCapital, cfg.AccountCurrency, cfg.FrozenAccount),
		clock:       cfg.Clock,
		ids:         cfg.IDs,
	}, nil
}

func (s *Simulator) Account() *Account { return s.account }

// Order returns a known order by id.
func (s *Simulator) Order(id string) (*model.Order, bool) {
	o, ok := s.orders[id]
	return o, ok
}

// WorkingOrders returns the ids resting in the book for a symbol, in
// submission order.
func (s *Simulator) WorkingOrders(symbol string) []string {
	return append([]string(nil), s.working[symbol]...)
}

// ChildOrders reports the contingents still pending activation for a
// bracket entry.
func (s *Simulator) ChildOrders(entryID string) ([]*model.Order, bool) {
	link, ok := s.children[entryID]
	if !ok {
		return nil, false
	}
	return []*model.Order{link.stopLoss, link.takeProfit}, true
}

func (s *Simulator) base(orderID string) model.EventBase {
	return model.EventBase{EventID: s.ids.New(), Order: orderID, TS: s.clock.Now()}
}

// SubmitOrder runs submit validation and either rejects the order or
// accepts it: market orders fill in the same step at the current bar's
// open, resting orders go to WORKING.
func (s *Simulator) SubmitOrder(o *model.Order) []model.Event {
	events := make([]model.Event, 0, 3)

	submitted := model.OrderSubmitted{EventBase: s.base(o.ID())}
	s.apply(o, submitted)
	events = append(events, submitted)

	if reason := s.validateSubmit(o); reason != "" {
		rejected := model.OrderRejected{EventBase: s.base(o.ID()), Reason: reason}
		s.apply(o, rejected)
		events = append(events, rejected)
		events = s.cancelPendingChildren(o.ID(), events)
		return events
	}

	s.orders[o.ID()] = o
	accepted := model.OrderAccepted{EventBase: s.base(o.ID())}
	s.apply(o, accepted)
	events = append(events, accepted)

	if o.Type == model.TypeMarket {
		price := s.marketFillPrice(o)
		return s.fillOrder(o, price, events)
	}

	working := model.OrderWorking{EventBase: s.base(o.ID()), Price: o.Price}
	s.apply(o, working)
	events = append(events, working)
	s.working[o.Symbol] = append(s.working[o.Symbol], o.ID())
	return events
}

// SubmitAtomicOrder registers the entry's contingents before submitting
// the entry, so a same-step entry fill activates them immediately.
func (s *Simulator) SubmitAtomicOrder(a *model.AtomicOrder) []model.Event {
	s.children[a.Entry.ID()] = childLink{stopLoss: a.StopLoss, takeProfit: a.TakeProfit}
	s.orders[a.StopLoss.ID()] = a.StopLoss
	s.orders[a.TakeProfit.ID()] = a.TakeProfit
	return s.SubmitOrder(a.Entry)
}

// ModifyOrder changes the price of a working order. Quantity is immutable;
// the emitted event restates it so consumers see the full resting state.
func (s *Simulator) ModifyOrder(orderID string, newPrice decimal.Decimal) []model.Event {
	o, ok := s.orders[orderID]
	if !ok {
		return []model.Event{model.OrderCancelReject{
			EventBase: s.base(orderID),
			Response:  "modify",
			Reason:    "order not found",
		}}
	}
	if !o.IsWorking() {
		return []model.Event{model.OrderCancelReject{
			EventBase: s.base(orderID),
			Response:  "modify",
			Reason:    fmt.Sprintf("order is %s, not working", o.State()),
		}}
	}
	if !newPrice.IsPositive() {
		return []model.Event{model.OrderCancelReject{
			EventBase: s.base(orderID),
			Response:  "modify",
			Reason:    "modified price must be positive",
		}}
	}
	if reason := s.validateRestingPrice(o, newPrice); reason != "" {
		return []model.Event{model.OrderCancelReject{
			EventBase: s.base(orderID),
			Response:  "modify",
			Reason:    reason,
		}}
	}
	modified := model.OrderModified{EventBase: s.base(orderID), Price: newPrice, Quantity: o.Quantity}
	s.apply(o, modified)
	return []model.Event{modified}
}

// CancelOrder cancels a working order. Cancelling either contingent of a
// bracket cancels its sibling in the same step; cancelling an entry whose
// contingents are still pending cancels them too.
func (s *Simulator) CancelOrder(orderID string) []model.Event {
	o, ok := s.orders[orderID]
	if !ok {
		return []model.Event{model.OrderCancelReject{
			EventBase: s.base(orderID),
			Response:  "cancel",
			Reason:    "order not found",
		}}
	}
	if !o.IsWorking() {
		return []model.Event{model.OrderCancelReject{
			EventBase: s.base(orderID),
			Response:  "cancel",
			Reason:    fmt.Sprintf("order is %s, not working", o.State()),
		}}
	}
	events := s.cancelWorking(o, nil)
	if sibID, ok := s.oco[orderID]; ok {
		s.unlinkOCO(orderID)
		if sib, ok := s.orders[sibID]; ok && sib.IsWorking() {
			events = s.cancelWorking(sib, events)
		}
	}
	events = s.cancelPendingChildren(orderID, events)
	return events
}

// ProcessBars applies the next bid/ask bar pair for a symbol. Expiry is
// checked first, then trigger/fill conditions for pre-existing working
// orders in submission order. A contingent fill cancels its sibling
// immediately, before later working orders are evaluated, so a bar wide
// enough to touch both contingent levels still fills exactly one of them.
// Bars must arrive strictly in time order.
func (s *Simulator) ProcessBars(symbol string, bid, ask model.Bar) []model.Event {
	if _, ok := s.instruments[symbol]; !ok {
		logger.Warnf("[sim] bar for unknown instrument %s dropped", symbol)
		return nil
	}
	s.bidBars[symbol] = bid
	s.askBars[symbol] = ask

	var events []model.Event

	// Children activated by an entry fill within this bar must not be
	// evaluated against the same bar, so iterate over a snapshot.
	for _, id := range s.WorkingOrders(symbol) {
		o, ok := s.orders[id]
		if !ok || !o.IsWorking() {
			continue
		}
		if o.ExpireAt != nil && !bid.Timestamp.Before(*o.ExpireAt) {
			expired := model.OrderExpired{EventBase: s.base(id)}
			s.apply(o, expired)
			events = append(events, expired)
			s.removeWorking(o)
			events = s.cancelPendingChildren(id, events)
			continue
		}
		switch o.Type {
		case model.TypeLimit:
			if !s.limitTouched(o, bid, ask) || !s.fill.IsLimitFilled() {
				continue
			}
			// Limit orders never slip against the trader: fill at the
			// limit price.
			events = s.fillOrder(o, o.Price, events)
			events = s.cancelSibling(o, events)
		case model.TypeStopMarket:
			if _, hit := s.triggered[id]; !hit {
				if !s.stopTriggered(o, bid, ask) {
					continue
				}
				// A triggered stop stays triggered across bars.
				s.triggered[id] = struct{}{}
			}
			if !s.fill.IsStopFilled() {
				continue
			}
			price := o.Price
			if s.fill.IsSlipped() {
				price = s.adverse(o, price)
			}
			delete(s.triggered, id)
			events = s.fillOrder(o, price, events)
			events = s.cancelSibling(o, events)
		}
	}
	return events
}

// cancelSibling applies the one-cancels-other link after a contingent
// fill: the surviving sibling is cancelled in the same step, ahead of any
// further working-order evaluation.
func (s *Simulator) cancelSibling(o *model.Order, events []model.Event) []model.Event {
	sibID := s.siblingOf(o)
	if sibID == "" {
		return events
	}
	if sib, ok := s.orders[sibID]; ok && sib.IsWorking() {
		events = s.cancelWorking(sib, events)
	}
	return events
}

// Reset flushes all working state at the end of a run without emitting
// further events, so teardown never races a cancel against a fill.
func (s *Simulator) Reset() {
	s.bidBars = make(map[string]model.Bar)
	s.askBars = make(map[string]model.Bar)
	s.orders = make(map[string]*model.Order)
	s.working = make(map[string][]string)
	s.children = make(map[string]childLink)
	s.oco = make(map[string]string)
	s.triggered = make(map[string]struct{})
}

// apply advances an order's state machine; a failure here is a simulator
// bug, not a trading condition, so it is logged loudly.
func (s *Simulator) apply(o *model.Order, ev model.Event) {
	if err := o.Apply(ev); err != nil {
		logger.Errorf("[sim] %v", err)
	}
}

func (s *Simulator) validateSubmit(o *model.Order) string {
	if _, dup := s.orders[o.ID()]; dup {
		return fmt.Sprintf("duplicate order id %s", o.ID())
	}
	if _, ok := s.instruments[o.Symbol]; !ok {
		return fmt.Sprintf("instrument %s not found", o.Symbol)
	}
	if o.Type.RequiresPrice() && !o.Price.IsPositive() {
		return fmt.Sprintf("%s order requires a price", o.Type)
	}
	if _, ok := s.askBars[o.Symbol]; !ok {
		return fmt.Sprintf("no market for %s", o.Symbol)
	}
	if o.Type.RequiresPrice() {
		return s.validateRestingPrice(o, o.Price)
	}
	return ""
}

// validateRestingPrice rejects resting prices on the marketable side of
// the book; the simulator has no immediate-execution path for them.
func (s *Simulator) validateRestingPrice(o *model.Order, price decimal.Decimal) string {
	ask := s.askBars[o.Symbol].Close
	bid := s.bidBars[o.Symbol].Close
	switch o.Type {
	case model.TypeLimit:
		if o.Side == model.SideBuy && price.GreaterThanOrEqual(ask) {
			return fmt.Sprintf("BUY LIMIT price %s must be below the ask %s", price, ask)
		}
		if o.Side == model.SideSell && price.LessThanOrEqual(bid) {
			return fmt.Sprintf("SELL LIMIT price %s must be above the bid %s", price, bid)
		}
	case model.TypeStopMarket:
		if o.Side == model.SideBuy && price.LessThanOrEqual(ask) {
			return fmt.Sprintf("BUY STOP price %s must be above the ask %s", price, ask)
		}
		if o.Side == model.SideSell && price.GreaterThanOrEqual(bid) {
			return fmt.Sprintf("SELL STOP price %s must be below the bid %s", price, bid)
		}
	}
	return ""
}

// marketFillPrice is the current bar's open on the side the order crosses,
// plus one adverse tick when the fill model draws slippage.
func (s *Simulator) marketFillPrice(o *model.Order) decimal.Decimal {
	var price decimal.Decimal
	if o.Side == model.SideBuy {
		price = s.askBars[o.Symbol].Open
	} else {
		price = s.bidBars[o.Symbol].Open
	}
	if s.fill.IsSlipped() {
		price = s.adverse(o, price)
	}
	return price
}

// adverse moves a price one tick against the trader.
func (s *Simulator) adverse(o *model.Order, price decimal.Decimal) decimal.Decimal {
	tick := s.fill.SlippageFor(s.instruments[o.Symbol])
	if o.Side == model.SideBuy {
		return price.Add(tick)
	}
	return price.Sub(tick)
}

func (s *Simulator) limitTouched(o *model.Order, bid, ask model.Bar) bool {
	if o.Side == model.SideBuy {
		return ask.Low.LessThanOrEqual(o.Price)
	}
	return bid.High.GreaterThanOrEqual(o.Price)
}

func (s *Simulator) stopTriggered(o *model.Order, bid, ask model.Bar) bool {
	if o.Side == model.SideBuy {
		return ask.High.GreaterThanOrEqual(o.Price)
	}
	return bid.Low.LessThanOrEqual(o.Price)
}

// fillOrder finalizes a fill at price: commission from the filled
// quantity, account debit, removal from the working set, and activation of
// any bracket contingents pending on this order.
func (s *Simulator) fillOrder(o *model.Order, price decimal.Decimal, events []model.Event) []model.Event {
	inst := s.instruments[o.Symbol]
	price = inst.RoundPrice(price)
	qty := o.LeavesQty()
	fee := s.comm.Commission(inst, qty, price, s.account.Currency())

	filled := model.OrderFilled{
		EventBase:      s.base(o.ID()),
		Side:           o.Side,
		FillPrice:      price,
		FilledQuantity: qty,
		Commission:     fee,
	}
	s.apply(o, filled)
	events = append(events, filled)
	s.account.Debit(fee)
	s.removeWorking(o)

	if link, ok := s.children[o.ID()]; ok {
		delete(s.children, o.ID())
		events = s.activateChild(link.stopLoss, events)
		events = s.activateChild(link.takeProfit, events)
		s.oco[link.stopLoss.ID()] = link.takeProfit.ID()
		s.oco[link.takeProfit.ID()] = link.stopLoss.ID()
	}
	return events
}

// activateChild walks a pending contingent through submitted/accepted/
// working and inserts it into the working set for subsequent bars.
func (s *Simulator) activateChild(o *model.Order, events []model.Event) []model.Event {
	submitted := model.OrderSubmitted{EventBase: s.base(o.ID())}
	s.apply(o, submitted)
	accepted := model.OrderAccepted{EventBase: s.base(o.ID())}
	s.apply(o, accepted)
	working := model.OrderWorking{EventBase: s.base(o.ID()), Price: o.Price}
	s.apply(o, working)
	events = append(events, submitted, accepted, working)
	s.working[o.Symbol] = append(s.working[o.Symbol], o.ID())
	return events
}

// cancelPendingChildren cancels contingents that never became working,
// after their entry was rejected, cancelled, or expired.
func (s *Simulator) cancelPendingChildren(entryID string, events []model.Event) []model.Event {
	link, ok := s.children[entryID]
	if !ok {
		return events
	}
	delete(s.children, entryID)
	for _, child := range []*model.Order{link.stopLoss, link.takeProfit} {
		cancelled := model.OrderCancelled{EventBase: s.base(child.ID())}
		s.apply(child, cancelled)
		events = append(events, cancelled)
	}
	return events
}

func (s *Simulator) cancelWorking(o *model.Order, events []model.Event) []model.Event {
	cancelled := model.OrderCancelled{EventBase: s.base(o.ID())}
	s.apply(o, cancelled)
	events = append(events, cancelled)
	s.removeWorking(o)
	return events
}

func (s *Simulator) siblingOf(o *model.Order) string {
	sib, ok := s.oco[o.ID()]
	if !ok {
		return ""
	}
	s.unlinkOCO(o.ID())
	return sib
}

func (s *Simulator) unlinkOCO(id string) {
	if sib, ok := s.oco[id]; ok {
		delete(s.oco, id)
		delete(s.oco, sib)
	}
}

func (s *Simulator) removeWorking(o *model.Order) {
	ids := s.working[o.Symbol]
	for i, id := range ids {
		if id == o.ID() {
			s.working[o.Symbol] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	delete(s.triggered, o.ID())
}
