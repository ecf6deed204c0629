// Package audit records who asked what, in a fixed-capacity ring.
package audit

import (
	"sync"
	"time"
)

const (
	// DefaultCapacity bounds the ring; the oldest entry is overwritten once full.
	DefaultCapacity = 200
	maxPromptLen    = 120
)

// Entry is one recorded prompt.
type Entry struct {
	At     time.Time
	User   string
	Prompt string
}

// Log is a bounded ring buffer of prompt records. Eviction happens on write,
// so memory is constant over the process lifetime.
type Log struct {
	mu      sync.Mutex
	entries []Entry
	next    int
	full    bool
}

func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{entries: make([]Entry, capacity)}
}

// Record appends an entry, truncating long prompts for display.
func (l *Log) Record(at time.Time, user, prompt string) {
	runes := []rune(prompt)
	if len(runes) > maxPromptLen {
		prompt = string(runes[:maxPromptLen]) + "…"
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[l.next] = Entry{At: at, User: user, Prompt: prompt}
	l.next++
	if l.next == len(l.entries) {
		l.next = 0
		l.full = true
	}
}

// Recent returns up to n entries, oldest first.
func (l *Log) Recent(n int) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	var ordered []Entry
	if l.full {
		ordered = append(ordered, l.entries[l.next:]...)
		ordered = append(ordered, l.entries[:l.next]...)
	} else {
		ordered = append(ordered, l.entries[:l.next]...)
	}

	if n > 0 && len(ordered) > n {
		ordered = ordered[len(ordered)-n:]
	}
	return ordered
}
