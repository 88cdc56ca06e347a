// Package ratelimit gates feedback submission with a per-principal sliding
// window: at most MaxRequests requests in any span of Window, counted against
// a moving "now" rather than calendar buckets.
package ratelimit

import (
	"sync"
	"time"
)

// Fixed policy constants, exposed for inspection and tests. They are not
// runtime-configurable.
const (
	Window        = 60 * time.Second
	MaxRequests   = 5
	SweepInterval = 5 * time.Minute
)

type Limiter struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	now     func() time.Time

	sweepMu       sync.Mutex
	sweepStop     chan struct{}
	sweepInterval time.Duration
}

func NewLimiter() *Limiter {
	return &Limiter{
		windows:       make(map[string][]time.Time),
		now:           time.Now,
		sweepInterval: SweepInterval,
	}
}

// Allow prunes the principal's expired timestamps and reports whether another
// request still fits in the window. It does not record anything: callers that
// proceed with the admitted action must call Record afterwards. Two racing
// requests from one principal can both see true; that margin is accepted
// (best-effort throttling, not a hard quota).
func (l *Limiter) Allow(userID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	kept := l.pruneLocked(userID)
	return len(kept) < MaxRequests
}

// Record registers one request at the current time and makes sure the
// periodic sweeper is running.
func (l *Limiter) Record(userID string) {
	l.mu.Lock()
	kept := l.pruneLocked(userID)
	l.windows[userID] = append(kept, l.now())
	l.mu.Unlock()

	l.StartSweeper()
}

// Count returns the number of non-expired timestamps for a principal.
func (l *Limiter) Count(userID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pruneLocked(userID))
}

// ClearAll wipes every tracked principal.
func (l *Limiter) ClearAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.windows = make(map[string][]time.Time)
}

// pruneLocked drops timestamps that fell out of the window, persists the
// survivors, and removes the entry entirely once it is empty.
func (l *Limiter) pruneLocked(userID string) []time.Time {
	stamps := l.windows[userID]
	if len(stamps) == 0 {
		return nil
	}
	cutoff := l.now().Add(-Window)
	kept := stamps[:0]
	for _, ts := range stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) == 0 {
		delete(l.windows, userID)
		return nil
	}
	l.windows[userID] = kept
	return kept
}

// StartSweeper launches the recurring cleanup sweep. Calling it while the
// sweeper is already running has no effect.
func (l *Limiter) StartSweeper() {
	l.sweepMu.Lock()
	defer l.sweepMu.Unlock()
	if l.sweepStop != nil {
		return
	}
	stop := make(chan struct{})
	l.sweepStop = stop

	go func() {
		ticker := time.NewTicker(l.sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				l.sweep()
			}
		}
	}()
}

// StopSweeper cancels the recurring sweep; safe to call when never started.
func (l *Limiter) StopSweeper() {
	l.sweepMu.Lock()
	defer l.sweepMu.Unlock()
	if l.sweepStop == nil {
		return
	}
	close(l.sweepStop)
	l.sweepStop = nil
}

func (l *Limiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for userID := range l.windows {
		l.pruneLocked(userID)
	}
}

// tracked reports how many principals currently hold state, for tests.
func (l *Limiter) tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}
