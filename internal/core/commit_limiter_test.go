package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestCommitLimiter_AcquireRelease(t *testing.T) {
	limiter := NewCommitLimiter(2, time.Second)
	ctx := context.Background()

	if got := limiter.Available(); got != 2 {
		t.Fatalf("initial Available = %d, want 2", got)
	}

	for i := 0; i < 2; i++ {
		if err := limiter.Acquire(ctx); err != nil {
			t.Fatalf("Acquire %d: %v", i, err)
		}
	}
	if got := limiter.ActiveCount(); got != 2 {
		t.Errorf("ActiveCount = %d, want 2", got)
	}
	if got := limiter.Available(); got != 0 {
		t.Errorf("Available = %d, want 0", got)
	}

	limiter.Release()
	limiter.Release()

	if got := limiter.ActiveCount(); got != 0 {
		t.Errorf("ActiveCount after release = %d, want 0", got)
	}
}

func TestCommitLimiter_TimesOutWhenFull(t *testing.T) {
	limiter := NewCommitLimiter(1, 50*time.Millisecond)
	ctx := context.Background()

	if err := limiter.Acquire(ctx); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer limiter.Release()

	start := time.Now()
	err := limiter.Acquire(ctx)
	if !errors.Is(err, ErrTooManyCommits) {
		t.Fatalf("err = %v, want ErrTooManyCommits", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("returned after %v, expected to wait for the slot", elapsed)
	}
}

func TestCommitLimiter_ContextCancelled(t *testing.T) {
	limiter := NewCommitLimiter(1, time.Minute)
	if !limiter.TryAcquire() {
		t.Fatal("TryAcquire on empty limiter failed")
	}
	defer limiter.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := limiter.Acquire(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestCommitLimiter_TryAcquire(t *testing.T) {
	limiter := NewCommitLimiter(1, time.Second)
	if !limiter.TryAcquire() {
		t.Fatal("first TryAcquire failed")
	}
	if limiter.TryAcquire() {
		t.Fatal("second TryAcquire succeeded on a full limiter")
	}
	limiter.Release()
	if !limiter.TryAcquire() {
		t.Fatal("TryAcquire after Release failed")
	}
	limiter.Release()
}

func TestCommitLimiter_Defaults(t *testing.T) {
	limiter := NewCommitLimiter(0, 0)
	st := limiter.Status()
	if st.MaxConcurrent != DefaultMaxConcurrentCommits {
		t.Errorf("MaxConcurrent = %d, want %d", st.MaxConcurrent, DefaultMaxConcurrentCommits)
	}
	if limiter.maxWait != DefaultCommitWaitTime {
		t.Errorf("maxWait = %v, want %v", limiter.maxWait, DefaultCommitWaitTime)
	}
}

func TestCommitLimiter_Concurrent(t *testing.T) {
	const max = 3
	limiter := NewCommitLimiter(max, time.Second)

	var (
		mu      sync.Mutex
		running int
		peak    int
		wg      sync.WaitGroup
	)
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := limiter.Acquire(context.Background()); err != nil {
				t.Errorf("Acquire: %v", err)
				return
			}
			mu.Lock()
			running++
			if running > peak {
				peak = running
			}
			mu.Unlock()

			time.Sleep(5 * time.Millisecond)

			mu.Lock()
			running--
			mu.Unlock()
			limiter.Release()
		}()
	}
	wg.Wait()

	if peak > max {
		t.Errorf("peak concurrency = %d, want <= %d", peak, max)
	}
}

func TestCommitLimiter_WaitForDrain(t *testing.T) {
	limiter := NewCommitLimiter(1, time.Second)
	if err := limiter.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		limiter.Release()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := limiter.WaitForDrain(ctx); err != nil {
		t.Errorf("WaitForDrain: %v", err)
	}

	// Already drained returns immediately.
	if err := limiter.WaitForDrain(context.Background()); err != nil {
		t.Errorf("WaitForDrain on idle limiter: %v", err)
	}
}
