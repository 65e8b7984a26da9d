package runstore

// RunStatus tracks a backtest run through its life.
type RunStatus string

const (
	StatusPending RunStatus = "pending"
	StatusRunning RunStatus = "running"
	StatusDone    RunStatus = "done"
	StatusFailed  RunStatus = "failed"
)

type RunModel struct {
	ID             string  `gorm:"column:id;primaryKey" json:"id"`
	Symbol         string  `gorm:"column:symbol" json:"symbol"`
	Timeframe      string  `gorm:"column:timeframe" json:"timeframe"`
	Strategy       string  `gorm:"column:strategy" json:"strategy"`
	Status         string  `gorm:"column:status" json:"status"`
	Message        string  `gorm:"column:message" json:"message"`
	StartTS        int64   `gorm:"column:start_ts" json:"start_ts"`
	EndTS          int64   `gorm:"column:end_ts" json:"end_ts"`
	InitialBalance float64 `gorm:"column:initial_balance" json:"initial_balance"`
	FinalBalance   float64 `gorm:"column:final_balance" json:"final_balance"`
	Profit         float64 `gorm:"column:profit" json:"profit"`
	ReturnPct      float64 `gorm:"column:return_pct" json:"return_pct"`
	WinRate        float64 `gorm:"column:win_rate" json:"win_rate"`
	MaxDrawdownPct float64 `gorm:"column:max_drawdown_pct" json:"max_drawdown_pct"`
	Orders         int     `gorm:"column:orders" json:"orders"`
	Fills          int     `gorm:"column:fills" json:"fills"`
	CreatedAtUnix  int64   `gorm:"column:created_at" json:"created_at"`
	UpdatedAtUnix  int64   `gorm:"column:updated_at" json:"updated_at"`
}

func (RunModel) TableName() string { return "backtest_runs" }

// EventModel is one persisted lifecycle event. Seq is the position within
// the run's event sequence; the order is load-bearing for consumers.
type EventModel struct {
	ID         int64  `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	RunID      string `gorm:"column:run_id;index:idx_event_run_seq,priority:1" json:"run_id"`
	Seq        int64  `gorm:"column:seq;index:idx_event_run_seq,priority:2" json:"seq"`
	EventID    string `gorm:"column:event_id" json:"event_id"`
	OrderID    string `gorm:"column:order_id;index" json:"order_id"`
	EventType  string `gorm:"column:event_type" json:"event_type"`
	Reason     string `gorm:"column:reason" json:"reason,omitempty"`
	Price      string `gorm:"column:price" json:"price,omitempty"`
	Quantity   string `gorm:"column:quantity" json:"quantity,omitempty"`
	Commission string `gorm:"column:commission" json:"commission,omitempty"`
	TS         int64  `gorm:"column:ts" json:"ts"`
}

func (EventModel) TableName() string { return "backtest_events" }

// SnapshotModel is one equity-curve point.
type SnapshotModel struct {
	ID       int64   `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	RunID    string  `gorm:"column:run_id;index" json:"run_id"`
	TS       int64   `gorm:"column:ts" json:"ts"`
	Equity   float64 `gorm:"column:equity" json:"equity"`
	Balance  float64 `gorm:"column:balance" json:"balance"`
	Drawdown float64 `gorm:"column:drawdown" json:"drawdown"`
}

func (SnapshotModel) TableName() string { return "backtest_snapshots" }
