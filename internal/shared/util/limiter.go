package util

import (
	"time"

	"golang.org/x/time/rate"
)

// Limiter is a token bucket used to gate outbound enrichment calls.
// Callers that exceed the budget are denied, never queued: a skipped
// enrichment degrades the report, it must not stall the analysis.
type Limiter struct {
	inner *rate.Limiter
}

// NewLimiter returns a bucket refilling at r tokens per second with
// burst capacity b.
func NewLimiter(r float64, b int) *Limiter {
	return &Limiter{inner: rate.NewLimiter(rate.Limit(r), b)}
}

// Allow reports whether n tokens are available now, consuming them if so.
func (l *Limiter) Allow(n int) bool {
	return l.inner.AllowN(time.Now(), n)
}
