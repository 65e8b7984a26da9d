package config

// Config is the top-level simex configuration.
type Config struct {
	App        AppConfig        `toml:"app"`
	Account    AccountConfig    `toml:"account"`
	FillModel  FillModelConfig  `toml:"fill_model"`
	Commission CommissionConfig `toml:"commission"`
	Backtest   BacktestConfig   `toml:"backtest"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
	DataRoot string `toml:"data_root"`
}

// AccountConfig seeds the simulated account. Frozen disables balance
// mutation for isolated matching tests.
type AccountConfig struct {
	StartingCapital float64 `toml:"starting_capital"`
	Currency        string  `toml:"currency"`
	Frozen          bool    `toml:"frozen"`
}

// FillModelConfig holds the probabilistic matching parameters. A fixed
// random seed makes backtests reproducible; runs with the same seed and
// input produce identical event sequences.
type FillModelConfig struct {
	ProbFillAtLimit float64 `toml:"prob_fill_at_limit"`
	ProbFillAtStop  float64 `toml:"prob_fill_at_stop"`
	ProbSlippage    float64 `toml:"prob_slippage"`
	RandomSeed      int64   `toml:"random_seed"`
}

// CommissionRate is basis points of notional with a per-trade minimum.
type CommissionRate struct {
	Bps     float64 `toml:"bps"`
	Minimum float64 `toml:"minimum"`
}

type CommissionConfig struct {
	Default CommissionRate            `toml:"default"`
	Classes map[string]CommissionRate `toml:"classes"`
}

type BacktestConfig struct {
	MaxConcurrent   int    `toml:"max_concurrent"`
	Timeframe       string `toml:"timeframe"`
	InstrumentsPath string `toml:"instruments_path"`
}
