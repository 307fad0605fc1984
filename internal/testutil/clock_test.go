package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFrozenClock_StartsAtEpoch(t *testing.T) {
	c := FrozenClock()
	assert.Equal(t, Epoch, c.Now().UTC())
}

func TestFrozenClock_DoesNotAdvance(t *testing.T) {
	c := FrozenClock()
	start := c.Now()
	assert.Equal(t, time.Duration(0), c.Since(start))

	c.Add(3 * time.Millisecond)
	assert.Equal(t, 3*time.Millisecond, c.Since(start))
}

func TestFrozenClock_Independent(t *testing.T) {
	a, b := FrozenClock(), FrozenClock()
	a.Add(time.Hour)
	assert.Equal(t, Epoch, b.Now().UTC())
}
