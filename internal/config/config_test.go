package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeFile(t, "config.yaml", `
app:
  env: test
  log_level: debug
  http_addr: ":8080"
  data_root: /tmp/simex-test
account:
  starting_capital: 500000
  currency: EUR
  frozen: true
fill_model:
  prob_fill_at_limit: 0.8
  prob_fill_at_stop: 0.9
  prob_slippage: 0.1
  random_seed: 7
commission:
  default:
    bps: 0.5
    minimum: 1.5
  classes:
    futures:
      bps: 0
      minimum: 2
backtest:
  max_concurrent: 4
  timeframe: 5m
  instruments_path: /tmp/instruments.yaml
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.App.Env)
	assert.Equal(t, ":8080", cfg.App.HTTPAddr)
	assert.Equal(t, 500000.0, cfg.Account.StartingCapital)
	assert.Equal(t, "EUR", cfg.Account.Currency)
	assert.True(t, cfg.Account.Frozen)
	assert.Equal(t, 0.8, cfg.FillModel.ProbFillAtLimit)
	assert.Equal(t, int64(7), cfg.FillModel.RandomSeed)
	assert.Equal(t, 0.5, cfg.Commission.Default.Bps)
	assert.Equal(t, 2.0, cfg.Commission.Classes["futures"].Minimum)
	assert.Equal(t, 4, cfg.Backtest.MaxConcurrent)
	assert.Equal(t, "5m", cfg.Backtest.Timeframe)
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeFile(t, "config.yaml", `
app:
  env: dev
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9972", cfg.App.HTTPAddr)
	assert.Equal(t, "data", cfg.App.DataRoot)
	assert.Equal(t, 1000000.0, cfg.Account.StartingCapital)
	assert.Equal(t, "USD", cfg.Account.Currency)
	assert.Equal(t, 1.0, cfg.FillModel.ProbFillAtLimit)
	assert.Equal(t, 1.0, cfg.FillModel.ProbFillAtStop)
	assert.Equal(t, 0.0, cfg.FillModel.ProbSlippage)
	assert.Equal(t, 0.2, cfg.Commission.Default.Bps)
	assert.Equal(t, 1, cfg.Backtest.MaxConcurrent)
	assert.Equal(t, "1m", cfg.Backtest.Timeframe)
	assert.Equal(t, "configs/instruments.yaml", cfg.Backtest.InstrumentsPath)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"probability out of range": `
fill_model:
  prob_fill_at_limit: 1.5
`,
		"negative capital": `
account:
  starting_capital: -1
  currency: USD
`,
		"negative commission": `
commission:
  default:
    bps: -0.1
`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeFile(t, "config.yaml", body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
	_, err = Load("")
	assert.Error(t, err)
}

func TestLoadInstruments(t *testing.T) {
	path := writeFile(t, "instruments.yaml", `
instruments:
  - symbol: AUD/USD
    base: AUD
    quote: USD
    tick_size: "0.00001"
    price_precision: 5
    min_quantity: "1000"
    commission_class: fx
  - symbol: ES
    base: ES
    quote: USD
    tick_size: "0.25"
    price_precision: 2
    commission_class: futures
`)
	instruments, err := LoadInstruments(path)
	require.NoError(t, err)
	require.Len(t, instruments, 2)

	aud := instruments[0]
	assert.Equal(t, "AUD/USD", aud.Symbol)
	assert.Equal(t, "AUD", aud.BaseCurrency)
	assert.Equal(t, int32(5), aud.PricePrecision)
	assert.Equal(t, "0.00001", aud.TickSize.String())
	assert.Equal(t, "1000", aud.MinQuantity.String())
	assert.Equal(t, "fx", aud.CommissionClass)

	es := instruments[1]
	assert.Equal(t, "1", es.MinQuantity.String(), "min quantity defaults to 1")
}

func TestLoadInstrumentsRejectsBadEntries(t *testing.T) {
	cases := map[string]string{
		"empty catalog": `instruments: []`,
		"missing symbol": `
instruments:
  - tick_size: "0.01"
`,
		"bad tick size": `
instruments:
  - symbol: X
    tick_size: "0"
`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadInstruments(writeFile(t, "instruments.yaml", body))
			assert.Error(t, err)
		})
	}
}
