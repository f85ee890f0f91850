package ttl

import (
	"time"

	"github.com/nightlab/exchange/internal/clock"
)

// DefaultRequisitesTTL is how long issued requisites stay valid.
const DefaultRequisitesTTL = 20 * time.Minute

// Policy computes and checks requisite deadlines.
type Policy struct {
	clock clock.Clock
	ttl   time.Duration
}

// NewPolicy builds a policy. A non-positive ttl falls back to DefaultRequisitesTTL.
func NewPolicy(c clock.Clock, ttl time.Duration) Policy {
	if c == nil {
		c = clock.System{}
	}
	if ttl <= 0 {
		ttl = DefaultRequisitesTTL
	}
	return Policy{clock: c, ttl: ttl}
}

// Now returns the current time from the injected clock.
func (p Policy) Now() time.Time {
	return p.clock.Now()
}

// TTL returns the configured requisites lifetime.
func (p Policy) TTL() time.Duration {
	return p.ttl
}

// Deadline returns now + ttl.
func (p Policy) Deadline(now time.Time, ttl time.Duration) time.Time {
	return now.Add(ttl)
}

// NextDeadline returns the deadline for requisites issued at now.
func (p Policy) NextDeadline(now time.Time) time.Time {
	return p.Deadline(now, p.ttl)
}

// IsExpired reports whether now is past expiresAt. A nil deadline never expires.
func (p Policy) IsExpired(expiresAt *time.Time, now time.Time) bool {
	if expiresAt == nil {
		return false
	}
	return now.After(*expiresAt)
}
