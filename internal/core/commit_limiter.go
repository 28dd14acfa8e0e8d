package core

// commit_limiter.go caps how many sessions may commit at once.
//
// Each commit holds a slot for its whole run. When every slot is taken a new
// commit waits up to maxWait and then fails with ErrTooManyCommits. Shutdown
// uses WaitForDrain so in-flight chunks are not cut off mid-transaction.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTooManyCommits is returned when no commit slot frees up in time.
var ErrTooManyCommits = errors.New("too many concurrent commits, please try again later")

const (
	DefaultMaxConcurrentCommits = 4
	DefaultCommitWaitTime       = 30 * time.Second
)

// CommitLimiter is a counting semaphore over commit runs.
type CommitLimiter struct {
	slots   chan struct{}
	maxWait time.Duration

	mu     sync.RWMutex
	active int
}

// NewCommitLimiter allows at most maxConcurrent simultaneous commits.
func NewCommitLimiter(maxConcurrent int, maxWait time.Duration) *CommitLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentCommits
	}
	if maxWait <= 0 {
		maxWait = DefaultCommitWaitTime
	}
	return &CommitLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire takes a slot, waiting at most maxWait. Callers must Release.
func (l *CommitLimiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		l.inc(1)
		return nil
	case <-timer.C:
		return ErrTooManyCommits
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryAcquire takes a slot without waiting.
func (l *CommitLimiter) TryAcquire() bool {
	select {
	case l.slots <- struct{}{}:
		l.inc(1)
		return true
	default:
		return false
	}
}

// Release returns a slot taken by Acquire or TryAcquire.
func (l *CommitLimiter) Release() {
	l.inc(-1)
	<-l.slots
}

func (l *CommitLimiter) inc(d int) {
	l.mu.Lock()
	l.active += d
	l.mu.Unlock()
}

// ActiveCount returns the number of running commits.
func (l *CommitLimiter) ActiveCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// Available returns the number of free slots.
func (l *CommitLimiter) Available() int {
	return cap(l.slots) - len(l.slots)
}

// WaitForDrain blocks until no commit is running or ctx ends.
func (l *CommitLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if l.ActiveCount() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// CommitLimiterStatus is a point-in-time view of the limiter.
type CommitLimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"maxConcurrent"`
}

func (l *CommitLimiter) Status() CommitLimiterStatus {
	return CommitLimiterStatus{
		Active:        l.ActiveCount(),
		Available:     l.Available(),
		MaxConcurrent: cap(l.slots),
	}
}
