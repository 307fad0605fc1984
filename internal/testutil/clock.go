// Package testutil holds deterministic stand-ins for the wall clock and run
// naming, so stored runs and golden traces are reproducible.
package testutil

import (
	"time"

	"github.com/benbjohnson/clock"
)

// Epoch is the instant every frozen clock starts at.
var Epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// FrozenClock returns a mock clock set to Epoch. It only moves when the
// test calls Add or Set, so a run measured with it takes zero time.
//
// Thread-safety: clock.Mock is safe for concurrent use.
func FrozenClock() *clock.Mock {
	c := clock.NewMock()
	c.Set(Epoch)
	return c
}
