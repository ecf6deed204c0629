// Package governor bounds each user's request rate over a rolling time window.
package governor

import (
	"sync"
	"time"
)

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Governor tracks timestamps of granted requests per user and admits new
// requests against a quota over a sliding window. The full timestamp list is
// retained so the retry-after figure is exact, not approximated.
type Governor struct {
	quota  int
	window time.Duration

	mu    sync.RWMutex
	users map[string]*userWindow
}

type userWindow struct {
	mu     sync.Mutex
	grants []time.Time
}

func New(quota int, window time.Duration) *Governor {
	return &Governor{
		quota:  quota,
		window: window,
		users:  make(map[string]*userWindow),
	}
}

func (g *Governor) user(id string) *userWindow {
	g.mu.RLock()
	w, ok := g.users[id]
	g.mu.RUnlock()
	if ok {
		return w
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if w, ok := g.users[id]; ok {
		return w
	}
	w = &userWindow{}
	g.users[id] = w
	return w
}

// Admit checks whether a request at time now may proceed for the given user.
// Admission and the grant append happen under the user's lock, so two
// concurrent requests cannot both observe a free slot.
func (g *Governor) Admit(userID string, now time.Time) Decision {
	w := g.user(userID)
	w.mu.Lock()
	defer w.mu.Unlock()

	w.purge(now, g.window)

	if len(w.grants) >= g.quota {
		d := Decision{Allowed: false}
		if len(w.grants) > 0 {
			d.RetryAfter = w.grants[0].Add(g.window).Sub(now)
		}
		return d
	}

	w.grants = append(w.grants, now)
	return Decision{
		Allowed:   true,
		Remaining: g.quota - len(w.grants),
	}
}

// Usage reports how many grants the user holds within the window and how long
// until the oldest one ages out. resetIn is zero when no grants are held.
func (g *Governor) Usage(userID string, now time.Time) (used int, resetIn time.Duration) {
	w := g.user(userID)
	w.mu.Lock()
	defer w.mu.Unlock()

	w.purge(now, g.window)
	if len(w.grants) == 0 {
		return 0, 0
	}
	return len(w.grants), w.grants[0].Add(g.window).Sub(now)
}

// Quota returns the configured per-window quota.
func (g *Governor) Quota() int {
	return g.quota
}

// Reset clears the user's grant list unconditionally and reports whether
// anything was removed.
func (g *Governor) Reset(userID string) bool {
	w := g.user(userID)
	w.mu.Lock()
	defer w.mu.Unlock()

	removed := len(w.grants) > 0
	w.grants = nil
	return removed
}

// purge drops grants older than now minus the window. Grants are appended in
// order, so the slice stays sorted and a prefix cut suffices.
func (w *userWindow) purge(now time.Time, window time.Duration) {
	cutoff := now.Add(-window)
	i := 0
	for i < len(w.grants) && !w.grants[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.grants = append(w.grants[:0], w.grants[i:]...)
	}
}
