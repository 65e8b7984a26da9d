package exec

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"simex/internal/model"
)

// scriptedClient answers every command with a canned event stream and
// records the order in which commands arrived.
type scriptedClient struct {
	mu    sync.Mutex
	calls []string
}

func (c *scriptedClient) record(name string, events ...model.Event) []model.Event {
	c.mu.Lock()
	c.calls = append(c.calls, name)
	c.mu.Unlock()
	return events
}

func (c *scriptedClient) callLog() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

func mkEvent(id, orderID string) model.Event {
	return model.OrderSubmitted{EventBase: model.EventBase{EventID: id, Order: orderID, TS: time.Unix(0, 0)}}
}

func (c *scriptedClient) SubmitOrder(o *model.Order) []model.Event {
	return c.record("submit", mkEvent("E-1", o.ID()))
}

func (c *scriptedClient) SubmitAtomicOrder(a *model.AtomicOrder) []model.Event {
	return c.record("submit_atomic", mkEvent("E-1", a.Entry.ID()))
}

func (c *scriptedClient) ModifyOrder(orderID string, newPrice decimal.Decimal) []model.Event {
	return c.record("modify", mkEvent("E-2", orderID))
}

func (c *scriptedClient) CancelOrder(orderID string) []model.Event {
	return c.record("cancel", mkEvent("E-3", orderID))
}

func (c *scriptedClient) ProcessBars(symbol string, bid, ask model.Bar) []model.Event {
	return c.record("bars", mkEvent("E-4", "O-BAR-"+symbol))
}

func startEngine(t *testing.T, client Client) (*Engine, context.CancelFunc, chan error) {
	t.Helper()
	e, err := NewEngine(client, 0)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()
	return e, cancel, done
}

func TestEngineRequiresClient(t *testing.T) {
	_, err := NewEngine(nil, 0)
	assert.Error(t, err)
}

func TestEngineForwardsCommandsAndReturnsEvents(t *testing.T) {
	client := &scriptedClient{}
	e, cancel, done := startEngine(t, client)
	defer func() { cancel(); <-done }()

	o, err := model.NewOrder("O-1", "USD/JPY", model.SideBuy, model.TypeMarket,
		decimal.NewFromInt(1), decimal.Zero, time.Unix(0, 0))
	require.NoError(t, err)

	events, err := e.Submit(context.Background(), o)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "O-1", events[0].OrderID())

	_, err = e.Modify(context.Background(), "O-1", decimal.NewFromInt(90))
	require.NoError(t, err)
	_, err = e.Cancel(context.Background(), "O-1")
	require.NoError(t, err)
	_, err = e.OnBars(context.Background(), "USD/JPY", model.Bar{}, model.Bar{})
	require.NoError(t, err)

	assert.Equal(t, []string{"submit", "modify", "cancel", "bars"}, client.callLog())
}

func TestEnginePublishesToSubscribersInOrder(t *testing.T) {
	client := &scriptedClient{}
	e, err := NewEngine(client, 0)
	require.NoError(t, err)

	var mu sync.Mutex
	var seen []string
	e.Subscribe(func(ev model.Event) {
		mu.Lock()
		seen = append(seen, "a:"+ev.OrderID())
		mu.Unlock()
	})
	e.Subscribe(func(ev model.Event) {
		mu.Lock()
		seen = append(seen, "b:"+ev.OrderID())
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	o, err := model.NewOrder("O-1", "USD/JPY", model.SideBuy, model.TypeMarket,
		decimal.NewFromInt(1), decimal.Zero, time.Unix(0, 0))
	require.NoError(t, err)
	_, err = e.Submit(context.Background(), o)
	require.NoError(t, err)

	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a:O-1", "b:O-1"}, seen)
}

func TestEngineSerializesConcurrentCommands(t *testing.T) {
	client := &scriptedClient{}
	e, cancel, done := startEngine(t, client)
	defer func() { cancel(); <-done }()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Cancel(context.Background(), "O-1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Len(t, client.callLog(), 20)
}

func TestEngineStoppedReturnsError(t *testing.T) {
	client := &scriptedClient{}
	e, cancel, done := startEngine(t, client)
	cancel()
	<-done

	// After the loop exits the inbox still has buffer space, so the
	// enqueue can win the race with the closed done channel; either way
	// the caller must get the stopped error, not block on a reply that
	// will never come.
	for i := 0; i < 32; i++ {
		_, err := e.Cancel(context.Background(), "O-1")
		assert.ErrorIs(t, err, ErrEngineStopped)
	}
	assert.Empty(t, client.callLog())
}

func TestEngineHonoursCallerContext(t *testing.T) {
	client := &scriptedClient{}
	e, err := NewEngine(client, 0)
	require.NoError(t, err)
	// Engine not running: a caller with a cancelled context must not block.
	// The inbox has capacity, so enqueue succeeds and the reply wait is what
	// must give up.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Cancel(ctx, "O-1")
	assert.ErrorIs(t, err, context.Canceled)
}
