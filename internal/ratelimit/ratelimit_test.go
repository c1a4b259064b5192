package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAllowWithinLimit(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	l := New(3, time.Minute).WithClock(func() time.Time { return now })

	for i := 0; i < 3; i++ {
		ok, _ := l.Allow("1.2.3.4:signin")
		assert.True(t, ok, "request %d", i)
	}

	ok, retry := l.Allow("1.2.3.4:signin")
	assert.False(t, ok)
	assert.InDelta(t, float64(20*time.Second), float64(retry), float64(time.Millisecond))

	ok, _ = l.Allow("5.6.7.8:signin")
	assert.True(t, ok, "keys are independent")
}

func TestAllowRefills(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	l := New(2, time.Minute).WithClock(func() time.Time { return now })

	l.Allow("k")
	l.Allow("k")
	ok, _ := l.Allow("k")
	assert.False(t, ok)

	now = now.Add(31 * time.Second)
	ok, _ = l.Allow("k")
	assert.True(t, ok)
	ok, _ = l.Allow("k")
	assert.False(t, ok)
}

func TestSweep(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	l := New(5, time.Minute).WithClock(func() time.Time { return now })

	l.Allow("old")
	now = now.Add(10 * time.Minute)
	l.Allow("fresh")

	assert.Equal(t, 1, l.Sweep(5*time.Minute))
	assert.Equal(t, 1, l.Len())
}
