package config

import "fmt"

func validate(c *Config) error {
	if err := c.Account.validate(); err != nil {
		return err
	}
	if err := c.FillModel.validate(); err != nil {
		return err
	}
	if err := c.Commission.validate(); err != nil {
		return err
	}
	return nil
}

func (a *AccountConfig) validate() error {
	if a.StartingCapital < 0 {
		return fmt.Errorf("account.starting_capital cannot be negative")
	}
	if a.Currency == "" {
		return fmt.Errorf("account.currency cannot be empty")
	}
	return nil
}

func (f *FillModelConfig) validate() error {
	for name, p := range map[string]float64{
		"fill_model.prob_fill_at_limit": f.ProbFillAtLimit,
		"fill_model.prob_fill_at_stop":  f.ProbFillAtStop,
		"fill_model.prob_slippage":      f.ProbSlippage,
	} {
		if p < 0 || p > 1 {
			return fmt.Errorf("%s must be in [0, 1]", name)
		}
	}
	return nil
}

func (c *CommissionConfig) validate() error {
	if c.Default.Bps < 0 || c.Default.Minimum < 0 {
		return fmt.Errorf("commission.default cannot be negative")
	}
	for class, rate := range c.Classes {
		if rate.Bps < 0 || rate.Minimum < 0 {
			return fmt.Errorf("commission.classes.%s cannot be negative", class)
		}
	}
	return nil
}
