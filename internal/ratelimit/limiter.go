// Package ratelimit enforces per-channel send quotas with token buckets.
//
// A Registry holds one bucket per rate-limit key plus an optional global
// bucket shared by every key. All bucket arithmetic happens under a single
// mutex so the per-key and global checks are one atomic unit. Buckets are
// created lazily and never persisted: a restart resets every bucket to full,
// which is documented cold-start behavior.
package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const pollInterval = 50 * time.Millisecond

// Config holds the registry's bucket parameters.
type Config struct {
	// Capacity and RefillRate apply to each per-key bucket.
	Capacity   float64
	RefillRate float64 // tokens per second
	// GlobalCapacity/GlobalRefillRate enable the composed global bucket when
	// GlobalCapacity > 0.
	GlobalCapacity   float64
	GlobalRefillRate float64
}

type bucket struct {
	capacity   float64
	refillRate float64
	tokens     float64
	lastRefill time.Time
}

// refill recomputes the token count lazily from elapsed time. Caller holds
// the registry lock.
func (b *bucket) refill(now time.Time) {
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens += elapsed * b.refillRate
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.lastRefill = now
}

// Registry maps rate-limit keys to token buckets. Construct one at worker
// start and pass it by handle; no process-wide singleton.
type Registry struct {
	mu      sync.Mutex
	cfg     Config
	buckets map[string]*bucket
	global  *bucket
	logger  *slog.Logger
	now     func() time.Time
}

// NewRegistry creates an empty registry. Buckets appear on first use.
func NewRegistry(cfg Config, logger *slog.Logger) *Registry {
	r := &Registry{
		cfg:     cfg,
		buckets: make(map[string]*bucket),
		logger:  logger,
		now:     time.Now,
	}
	if cfg.GlobalCapacity > 0 {
		r.global = &bucket{
			capacity:   cfg.GlobalCapacity,
			refillRate: cfg.GlobalRefillRate,
			tokens:     cfg.GlobalCapacity,
			lastRefill: r.now(),
		}
	}
	return r
}

// SetNow overrides the clock. Tests only.
func (r *Registry) SetNow(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

func (r *Registry) bucketFor(key string, now time.Time) *bucket {
	b, ok := r.buckets[key]
	if !ok {
		b = &bucket{
			capacity:   r.cfg.Capacity,
			refillRate: r.cfg.RefillRate,
			tokens:     r.cfg.Capacity,
			lastRefill: now,
		}
		r.buckets[key] = b
	}
	return b
}

// Acquire atomically deducts cost from the key's bucket and, when configured,
// the global bucket. It returns false with no mutation if either bucket lacks
// tokens: a global deduction is refunded when the per-key check fails, so the
// two checks behave as one unit.
func (r *Registry) Acquire(key string, cost float64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()

	if r.global != nil {
		r.global.refill(now)
		if r.global.tokens < cost {
			r.denied(key, "global")
			return false
		}
		r.global.tokens -= cost
	}

	b := r.bucketFor(key, now)
	b.refill(now)
	if b.tokens < cost {
		if r.global != nil {
			r.global.tokens += cost
		}
		r.denied(key, "per-key")
		return false
	}
	b.tokens -= cost

	return true
}

// WaitForToken blocks until Acquire succeeds, polling at sub-second
// intervals, or until timeout elapses or ctx is done. Denial is the only
// signal; it never returns an error.
func (r *Registry) WaitForToken(ctx context.Context, key string, cost float64, timeout time.Duration) bool {
	if r.Acquire(key, cost) {
		return true
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return false
		case <-ticker.C:
			if r.Acquire(key, cost) {
				return true
			}
		}
	}
}

// Tokens reports the current token count for key after a lazy refill.
func (r *Registry) Tokens(key string) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	b := r.bucketFor(key, r.now())
	b.refill(r.now())
	return b.tokens
}

func (r *Registry) denied(key, which string) {
	if r.logger == nil {
		return
	}
	r.logger.Debug("Rate limit denied",
		slog.String("key", key),
		slog.String("limiting_bucket", which),
	)
}
