package retry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDelayStaysInsideJitterBounds(t *testing.T) {
	p := NewPolicy(time.Second, 30*time.Second, 5)

	tests := []struct {
		name    string
		attempt int
		min     time.Duration
		max     time.Duration
	}{
		{name: "first attempt", attempt: 0, min: 500 * time.Millisecond, max: 1500 * time.Millisecond},
		{name: "second attempt", attempt: 1, min: time.Second, max: 3 * time.Second},
		{name: "fourth attempt", attempt: 3, min: 4 * time.Second, max: 12 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 100; i++ {
				d := p.Delay(tt.attempt)
				assert.GreaterOrEqual(t, d, tt.min)
				assert.Less(t, d, tt.max)
			}
		})
	}
}

func TestDelayCapsAtMax(t *testing.T) {
	p := NewPolicy(time.Second, 30*time.Second, 10)

	// 2^10 seconds is far beyond the cap; jitter applies to the cap instead.
	for i := 0; i < 100; i++ {
		d := p.Delay(10)
		assert.GreaterOrEqual(t, d, 15*time.Second)
		assert.Less(t, d, 45*time.Second)
	}
}

func TestExhausted(t *testing.T) {
	p := NewPolicy(time.Second, 30*time.Second, 5)

	assert.False(t, p.Exhausted(0))
	assert.False(t, p.Exhausted(4))
	assert.True(t, p.Exhausted(5))
	assert.True(t, p.Exhausted(6))
}
