package config

const (
	defaultAppEnv              = "dev"
	defaultAppLogLevel         = "info"
	defaultAppHTTPAddr         = ":9972"
	defaultAppDataRoot         = "data"
	defaultAccountCapital      = 1000000
	defaultAccountCurrency     = "USD"
	defaultProbFillAtLimit     = 1.0
	defaultProbFillAtStop      = 1.0
	defaultCommissionBps       = 0.2
	defaultCommissionMin       = 2.0
	defaultBacktestConcurrency = 1
	defaultBacktestTimeframe   = "1m"
	defaultInstrumentsPath     = "configs/instruments.yaml"
)

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = defaultAppEnv
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = defaultAppLogLevel
	}
	if c.App.HTTPAddr == "" {
		c.App.HTTPAddr = defaultAppHTTPAddr
	}
	if c.App.DataRoot == "" {
		c.App.DataRoot = defaultAppDataRoot
	}
	if c.Account.StartingCapital == 0 {
		c.Account.StartingCapital = defaultAccountCapital
	}
	if c.Account.Currency == "" {
		c.Account.Currency = defaultAccountCurrency
	}
	if c.FillModel.ProbFillAtLimit == 0 {
		c.FillModel.ProbFillAtLimit = defaultProbFillAtLimit
	}
	if c.FillModel.ProbFillAtStop == 0 {
		c.FillModel.ProbFillAtStop = defaultProbFillAtStop
	}
	if c.Commission.Default.Bps == 0 && c.Commission.Default.Minimum == 0 {
		c.Commission.Default = CommissionRate{Bps: defaultCommissionBps, Minimum: defaultCommissionMin}
	}
	if c.Backtest.MaxConcurrent <= 0 {
		c.Backtest.MaxConcurrent = defaultBacktestConcurrency
	}
	if c.Backtest.Timeframe == "" {
		c.Backtest.Timeframe = defaultBacktestTimeframe
	}
	if c.Backtest.InstrumentsPath == "" {
		c.Backtest.InstrumentsPath = defaultInstrumentsPath
	}
}
