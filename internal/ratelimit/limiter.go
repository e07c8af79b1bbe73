// Package ratelimit meters MCP tool calls.
//
// Simulation tools draw from one shared work budget measured in attempted
// site updates (points x L*L x sweeps), so a single 64-point sweep on a
// large lattice costs as much as thousands of small point queries. Store
// tools draw one token per call from their own request buckets.
package ratelimit

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// Bucket is a token bucket holding up to capacity tokens and refilling at
// rate tokens per second. It starts full and is safe for concurrent use.
type Bucket struct {
	mu       sync.Mutex
	capacity float64
	rate     float64
	tokens   float64
	last     time.Time
	now      func() time.Time
}

// NewBucket returns a full bucket.
func NewBucket(rate, capacity float64) *Bucket {
	return newBucket(rate, capacity, time.Now)
}

func newBucket(rate, capacity float64, now func() time.Time) *Bucket {
	return &Bucket{
		capacity: capacity,
		rate:     rate,
		tokens:   capacity,
		last:     now(),
		now:      now,
	}
}

// Take withdraws cost tokens. When the bucket is short it withdraws nothing
// and reports how long until cost tokens will be available. A cost above
// capacity is charged as a full bucket, so oversized requests wait for an
// idle budget instead of being refused forever.
func (b *Bucket) Take(cost float64) (bool, time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if dt := now.Sub(b.last).Seconds(); dt > 0 {
		b.tokens = math.Min(b.capacity, b.tokens+b.rate*dt)
		b.last = now
	}

	cost = math.Min(math.Max(cost, 0), b.capacity)
	if b.tokens >= cost {
		b.tokens -= cost
		return true, 0
	}
	if b.rate <= 0 {
		return false, -1
	}
	wait := time.Duration((cost - b.tokens) / b.rate * float64(time.Second))
	return false, wait
}

// Available returns the current token count after refill.
func (b *Bucket) Available() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if dt := b.now().Sub(b.last).Seconds(); dt > 0 {
		return math.Min(b.capacity, b.tokens+b.rate*dt)
	}
	return b.tokens
}

// SweepCost is the work of a request in attempted site updates.
func SweepCost(points, size, sweeps int) float64 {
	return float64(points) * float64(size) * float64(size) * float64(sweeps)
}

// Default budgets. A 64-point sweep of a 64x64 lattice at the default 3000
// sweeps per point is ~7.9e8 updates and fits in one full work bucket; the
// bucket refills in about 40 s.
const (
	DefaultWorkCapacity = 1e9
	DefaultWorkRate     = 2.5e7
)

// LimitError reports a rejected tool call.
type LimitError struct {
	Tool       string
	RetryAfter time.Duration // negative when the budget never refills
}

func (e *LimitError) Error() string {
	if e.RetryAfter < 0 {
		return fmt.Sprintf("rate limit exceeded for %s", e.Tool)
	}
	return fmt.Sprintf("rate limit exceeded for %s, retry in %s", e.Tool, e.RetryAfter.Round(time.Second))
}

// Limits holds the work budget shared by the simulation tools and the
// per-tool request buckets of the store tools.
type Limits struct {
	Work     *Bucket
	Requests map[string]*Bucket
}

// NewLimits returns the default budgets for the orderlattice MCP tools.
func NewLimits() *Limits {
	return &Limits{
		Work: NewBucket(DefaultWorkRate, DefaultWorkCapacity),
		Requests: map[string]*Bucket{
			"orderlattice_runs":    NewBucket(1, 10),
			"orderlattice_results": NewBucket(1, 10),
			"orderlattice_delete":  NewBucket(10.0/60.0, 2),
		},
	}
}

// ChargeWork takes cost site updates from the work budget on behalf of tool.
func (l *Limits) ChargeWork(tool string, cost float64) error {
	if l == nil || l.Work == nil {
		return nil
	}
	if ok, wait := l.Work.Take(cost); !ok {
		return &LimitError{Tool: tool, RetryAfter: wait}
	}
	return nil
}

// ChargeRequest takes one token from tool's request bucket. Tools without a
// bucket are not limited.
func (l *Limits) ChargeRequest(tool string) error {
	if l == nil {
		return nil
	}
	b, ok := l.Requests[tool]
	if !ok {
		return nil
	}
	if ok, wait := b.Take(1); !ok {
		return &LimitError{Tool: tool, RetryAfter: wait}
	}
	return nil
}
