// Package ident provides swappable identifier generation so production and
// test code share one code path. Backtests use the deterministic sequence
// generator; live wiring uses UUIDs.
package ident

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// Factory produces unique identifiers.
type Factory interface {
	New() string
}

// UUIDFactory issues random UUIDv4 identifiers.
type UUIDFactory struct{}

func (UUIDFactory) New() string { return uuid.NewString() }

// Sequence issues monotonically increasing identifiers with a fixed prefix.
// Two sequences with the same prefix produce identical streams, which is
// what makes backtest event sequences reproducible.
type Sequence struct {
	prefix string
	n      atomic.Uint64
}

func NewSequence(prefix string) *Sequence {
	return &Sequence{prefix: prefix}
}

func (s *Sequence) New() string {
	return fmt.Sprintf("%s-%d", s.prefix, s.n.Add(1))
}
