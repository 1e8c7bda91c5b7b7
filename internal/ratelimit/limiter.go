// Package ratelimit provides per-client admission control at the pipeline
// entry point.
//
// State is process-local and in-memory, so limits apply per API instance,
// not globally across horizontally scaled intake. Intake is a low-volume
// control-plane path; the approximation is acceptable and documented.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter is a dual sliding-window rate limiter: a client is rejected when
// it has reached the per-minute or the per-hour ceiling within the trailing
// window. Entries older than an hour are pruned lazily on each check.
type Limiter struct {
	mu        sync.Mutex
	perMinute int
	perHour   int
	windows   map[string][]time.Time
	now       func() time.Time
}

// New creates a Limiter with the given per-minute and per-hour ceilings.
func New(perMinute, perHour int) *Limiter {
	return &Limiter{
		perMinute: perMinute,
		perHour:   perHour,
		windows:   make(map[string][]time.Time),
		now:       time.Now,
	}
}

// Allow reports whether clientID may submit now, recording the request
// timestamp when admitted.
func (l *Limiter) Allow(clientID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	hourAgo := now.Add(-time.Hour)
	minuteAgo := now.Add(-time.Minute)

	kept := l.windows[clientID][:0]
	recent := 0
	for _, ts := range l.windows[clientID] {
		if ts.After(hourAgo) {
			kept = append(kept, ts)
			if ts.After(minuteAgo) {
				recent++
			}
		}
	}
	l.windows[clientID] = kept

	if len(kept) >= l.perHour || recent >= l.perMinute {
		return false
	}

	l.windows[clientID] = append(kept, now)
	return true
}
