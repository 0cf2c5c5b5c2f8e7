package signer

import (
	"sync"
	"time"
)

const (
	DefaultBudget = 60
	DefaultWindow = 15 * time.Minute
)

// Window is a fixed request budget that resets once its duration has elapsed.
// Callers check CanSend and skip the cycle when it is false rather than wait.
type Window struct {
	mu       sync.Mutex
	limit    int
	duration time.Duration
	clock    func() time.Time

	start time.Time
	count int
}

func NewWindow(limit int, duration time.Duration, clock func() time.Time) *Window {
	if limit <= 0 {
		limit = DefaultBudget
	}
	if duration <= 0 {
		duration = DefaultWindow
	}
	if clock == nil {
		clock = time.Now
	}
	return &Window{
		limit:    limit,
		duration: duration,
		clock:    clock,
		start:    clock(),
	}
}

func (w *Window) CanSend() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rollover()
	return w.count < w.limit
}

func (w *Window) RecordSend() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rollover()
	w.count++
}

// Remaining is the number of sends left in the current window.
func (w *Window) Remaining() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rollover()
	if w.count >= w.limit {
		return 0
	}
	return w.limit - w.count
}

// ResetsAt is when the current window ends.
func (w *Window) ResetsAt() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rollover()
	return w.start.Add(w.duration)
}

// caller holds mu
func (w *Window) rollover() {
	now := w.clock()
	if now.Sub(w.start) >= w.duration {
		w.start = now
		w.count = 0
	}
}
