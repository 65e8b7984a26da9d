package sim

import (
	"sync"

	"github.com/shopspring/decimal"

	"simex/internal/model"
)

// Account tracks simulated capital. A frozen account ignores balance
// mutation, which isolates matching behaviour in tests.
type Account struct {
	currency string
	frozen   bool

	mu      sync.Mutex
	balance decimal.Decimal
}

func NewAccount(startingCapital decimal.Decimal, currency string, frozen bool) *Account {
	return &Account{currency: currency, frozen: frozen, balance: startingCapital}
}

func (a *Account) Currency() string { return a.currency }

func (a *Account) Balance() decimal.Decimal {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.balance
}

// Debit subtracts a commission charge from the balance.
func (a *Account) Debit(m model.Money) {
	if a.frozen {
		return
	}
	a.mu.Lock()
	a.balance = a.balance.Sub(m.Amount)
	a.mu.Unlock()
}
