package backtest

// RunRequest is the HTTP submission shape for a new backtest run.
type RunRequest struct {
	Symbol    string `json:"symbol" binding:"required"`
	Timeframe string `json:"timeframe"`
	Strategy  string `json:"strategy"`
	StartTS   int64  `json:"start_ts" binding:"required"`
	EndTS     int64  `json:"end_ts" binding:"required"`
	// Seed overrides the configured fill-model seed, so a run can be
	// replayed bit for bit from its stored parameters.
	Seed *int64 `json:"seed"`
}

// RunStats summarizes one finished run.
type RunStats struct {
	FinalBalance   float64 `json:"final_balance"`
	Profit         float64 `json:"profit"`
	ReturnPct      float64 `json:"return_pct"`
	WinRate        float64 `json:"win_rate"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
	Orders         int     `json:"orders"`
	Fills          int     `json:"fills"`
	Wins           int     `json:"wins"`
	Losses         int     `json:"losses"`
	EquityPeak     float64 `json:"equity_peak"`
}
