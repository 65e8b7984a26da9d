package config

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"simex/internal/model"
)

// instrumentEntry is the YAML shape of one catalog row. Tick size is a
// string so the decimal survives parsing exactly.
type instrumentEntry struct {
	Symbol          string `yaml:"symbol"`
	Base            string `yaml:"base"`
	Quote           string `yaml:"quote"`
	TickSize        string `yaml:"tick_size"`
	PricePrecision  int32  `yaml:"price_precision"`
	MinQuantity     string `yaml:"min_quantity"`
	CommissionClass string `yaml:"commission_class"`
}

type instrumentCatalog struct {
	Instruments []instrumentEntry `yaml:"instruments"`
}

// LoadInstruments reads the instrument catalog used to initialize the
// simulator.
func LoadInstruments(path string) ([]model.Instrument, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading instruments file failed (%s): %w", path, err)
	}
	var catalog instrumentCatalog
	if err := yaml.Unmarshal(raw, &catalog); err != nil {
		return nil, fmt.Errorf("parsing instruments file failed: %w", err)
	}
	if len(catalog.Instruments) == 0 {
		return nil, fmt.Errorf("instruments file %s defines no instruments", path)
	}
	out := make([]model.Instrument, 0, len(catalog.Instruments))
	for _, entry := range catalog.Instruments {
		if entry.Symbol == "" {
			return nil, fmt.Errorf("instrument entry missing symbol")
		}
		tick, err := decimal.NewFromString(entry.TickSize)
		if err != nil || !tick.IsPositive() {
			return nil, fmt.Errorf("instrument %s: invalid tick_size %q", entry.Symbol, entry.TickSize)
		}
		minQty := decimal.NewFromInt(1)
		if entry.MinQuantity != "" {
			minQty, err = decimal.NewFromString(entry.MinQuantity)
			if err != nil || !minQty.IsPositive() {
				return nil, fmt.Errorf("instrument %s: invalid min_quantity %q", entry.Symbol, entry.MinQuantity)
			}
		}
		out = append(out, model.Instrument{
			Symbol:          entry.Symbol,
			BaseCurrency:    entry.Base,
			QuoteCurrency:   entry.Quote,
			TickSize:        tick,
			PricePrecision:  entry.PricePrecision,
			MinQuantity:     minQty,
			CommissionClass: entry.CommissionClass,
		})
	}
	return out, nil
}
