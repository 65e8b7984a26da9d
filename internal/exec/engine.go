// Package exec routes order commands from strategies to an execution
// client and fans the resulting lifecycle events back out to subscribers.
package exec

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"simex/internal/logger"
	"simex/internal/model"
)

// Client is an execution venue: the matching simulator in backtests, a
// live adapter in production. Every command returns the ordered events it
// produced.
type Client interface {
	SubmitOrder(o *model.Order) []model.Event
	SubmitAtomicOrder(a *model.AtomicOrder) []model.Event
	ModifyOrder(orderID string, newPrice decimal.Decimal) []model.Event
	CancelOrder(orderID string) []model.Event
	ProcessBars(symbol string, bid, ask model.Bar) []model.Event
}

// Subscriber receives every event, in emission order.
type Subscriber func(model.Event)

var ErrEngineStopped = errors.New("execution engine stopped")

type request struct {
	run   func() []model.Event
	reply chan []model.Event
}

// Engine serializes commands and bars from concurrent producers onto one
// logical queue, so the client's single-threaded transition rules hold in
// both live and backtest modes.
type Engine struct {
	client      Client
	subscribers []Subscriber
	inbox       chan request
	done        chan struct{}
}

func NewEngine(client Client, inboxSize int) (*Engine, error) {
	if client == nil {
		return nil, errors.New("execution engine requires a client")
	}
	if inboxSize <= 0 {
		inboxSize = 256
	}
	return &Engine{
		client: client,
		inbox:  make(chan request, inboxSize),
		done:   make(chan struct{}),
	}, nil
}

// Subscribe appends a subscriber. Delivery order across subscribers is the
// registration order; must be called before Run.
func (e *Engine) Subscribe(sub Subscriber) {
	if sub != nil {
		e.subscribers = append(e.subscribers, sub)
	}
}

// Run processes the queue until ctx is cancelled. Pending requests are
// answered with empty event slices on shutdown so no caller blocks.
func (e *Engine) Run(ctx context.Context) error {
	defer close(e.done)
	for {
		select {
		case <-ctx.Done():
			e.drain()
			return ctx.Err()
		case req := <-e.inbox:
			events := req.run()
			for _, ev := range events {
				e.publish(ev)
			}
			req.reply <- events
		}
	}
}

func (e *Engine) drain() {
	for {
		select {
		case req := <-e.inbox:
			req.reply <- nil
		default:
			return
		}
	}
}

func (e *Engine) publish(ev model.Event) {
	for _, sub := range e.subscribers {
		sub(ev)
	}
	logger.Debugf("[exec] %s order=%s", ev.Type(), ev.OrderID())
}

func (e *Engine) do(ctx context.Context, run func() []model.Event) ([]model.Event, error) {
	req := request{run: run, reply: make(chan []model.Event, 1)}
	select {
	case e.inbox <- req:
	case <-e.done:
		return nil, ErrEngineStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case events := <-req.reply:
		return events, nil
	case <-e.done:
		// The request may have raced the enqueue with shutdown and won
		// buffer space after the loop exited; it will never be served.
		select {
		case events := <-req.reply:
			return events, nil
		default:
			return nil, ErrEngineStopped
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (e *Engine) Submit(ctx context.Context, o *model.Order) ([]model.Event, error) {
	return e.do(ctx, func() []model.Event { return e.client.SubmitOrder(o) })
}

func (e *Engine) SubmitAtomic(ctx context.Context, a *model.AtomicOrder) ([]model.Event, error) {
	return e.do(ctx, func() []model.Event { return e.client.SubmitAtomicOrder(a) })
}

func (e *Engine) Modify(ctx context.Context, orderID string, newPrice decimal.Decimal) ([]model.Event, error) {
	return e.do(ctx, func() []model.Event { return e.client.ModifyOrder(orderID, newPrice) })
}

func (e *Engine) Cancel(ctx context.Context, orderID string) ([]model.Event, error) {
	return e.do(ctx, func() []model.Event { return e.client.CancelOrder(orderID) })
}

func (e *Engine) OnBars(ctx context.Context, symbol string, bid, ask model.Bar) ([]model.Event, error) {
	return e.do(ctx, func() []model.Event { return e.client.ProcessBars(symbol, bid, ask) })
}
