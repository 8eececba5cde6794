// Package retry computes delays for requeuing transiently failed jobs.
package retry

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// Policy describes the exponential backoff applied between attempts.
type Policy struct {
	Base        time.Duration
	Max         time.Duration
	MaxAttempts int

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewPolicy constructs a backoff policy with its own jitter source.
func NewPolicy(base, max time.Duration, maxAttempts int) *Policy {
	return &Policy{
		Base:        base,
		Max:         max,
		MaxAttempts: maxAttempts,
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Delay returns min(Max, Base*2^attempt) scaled by a random factor in
// [0.5, 1.5). The jitter keeps concurrent workers from retrying in lockstep.
func (p *Policy) Delay(attempt int) time.Duration {
	if p.Base <= 0 {
		return 0
	}
	if attempt < 0 {
		attempt = 0
	}

	raw := time.Duration(float64(p.Base) * math.Pow(2, float64(attempt)))
	if raw <= 0 || (p.Max > 0 && raw > p.Max) {
		raw = p.Max
	}

	return time.Duration(float64(raw) * p.jitterFactor())
}

// Exhausted reports whether attempt has consumed the retry budget.
func (p *Policy) Exhausted(attempt int) bool {
	return attempt >= p.MaxAttempts
}

func (p *Policy) jitterFactor() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return 0.5 + p.rnd.Float64()
}
