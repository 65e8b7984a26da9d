package runstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRunLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	run := RunModel{
		ID:             "run-1",
		Symbol:         "USD/JPY",
		Timeframe:      "1m",
		Strategy:       "sma_cross",
		Status:         string(StatusPending),
		StartTS:        60_000,
		EndTS:          600_000,
		InitialBalance: 1_000_000,
	}
	require.NoError(t, store.InsertRun(ctx, run))

	require.NoError(t, store.UpdateStatus(ctx, "run-1", StatusRunning, ""))
	got, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, string(StatusRunning), got.Status)

	summary := run
	summary.FinalBalance = 1_000_500
	summary.Profit = 500
	summary.ReturnPct = 0.0005
	summary.WinRate = 0.6
	summary.Orders = 12
	summary.Fills = 9
	require.NoError(t, store.UpdateSummary(ctx, "run-1", StatusDone, summary, ""))

	got, err = store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, string(StatusDone), got.Status)
	assert.Equal(t, 1_000_500.0, got.FinalBalance)
	assert.Equal(t, 500.0, got.Profit)
	assert.Equal(t, 9, got.Fills)
}

func TestGetRunNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetRun(context.Background(), "missing")
	assert.Error(t, err)
}

func TestListRunsNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertRun(ctx, RunModel{ID: "run-1", Symbol: "USD/JPY"}))
	require.NoError(t, store.InsertRun(ctx, RunModel{ID: "run-2", Symbol: "AUD/USD"}))

	runs, err := store.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	runs, err = store.ListRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestEventsKeepSequenceOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	events := []EventModel{
		{RunID: "run-1", Seq: 1, EventID: "EV-1", OrderID: "O-1", EventType: "OrderSubmitted", TS: 60_000},
		{RunID: "run-1", Seq: 2, EventID: "EV-2", OrderID: "O-1", EventType: "OrderAccepted", TS: 60_000},
		{RunID: "run-1", Seq: 3, EventID: "EV-3", OrderID: "O-1", EventType: "OrderFilled", Price: "90.005", Quantity: "100000", Commission: "2.00 USD", TS: 60_000},
		{RunID: "run-2", Seq: 1, EventID: "EV-4", OrderID: "O-9", EventType: "OrderSubmitted", TS: 60_000},
	}
	require.NoError(t, store.AppendEvents(ctx, events))

	got, err := store.ListEvents(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"EV-1", "EV-2", "EV-3"}, []string{got[0].EventID, got[1].EventID, got[2].EventID})
	assert.Equal(t, "90.005", got[2].Price)

	assert.NoError(t, store.AppendEvents(ctx, nil))
}

func TestSnapshotsOrderedByTime(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertSnapshot(ctx, SnapshotModel{RunID: "run-1", TS: 120_000, Equity: 1_000_100, Balance: 1_000_000}))
	require.NoError(t, store.InsertSnapshot(ctx, SnapshotModel{RunID: "run-1", TS: 60_000, Equity: 1_000_000, Balance: 1_000_000}))

	snaps, err := store.ListSnapshots(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, int64(60_000), snaps[0].TS)
	assert.Equal(t, int64(120_000), snaps[1].TS)
}
