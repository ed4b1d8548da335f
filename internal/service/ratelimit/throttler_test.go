package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeClock struct {
	t     time.Time
	slept []time.Duration
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.slept = append(c.slept, d)
	c.t = c.t.Add(d)
	return nil
}

func newFake(cfg Config) (*Throttler, *fakeClock) {
	c := &fakeClock{t: time.Date(2024, 10, 16, 0, 0, 0, 0, time.UTC)}
	return NewThrottler(cfg, WithClock(c.now, c.sleep)), c
}

func TestThrottlerMinInterval(t *testing.T) {
	th, c := newFake(Config{Enabled: true, MinInterval: 120 * time.Millisecond})
	start := c.t
	for i := 0; i < 3; i++ {
		if err := th.Acquire(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if got := c.t.Sub(start); got != 240*time.Millisecond {
		t.Fatalf("elapsed = %v, want 240ms", got)
	}
}

func TestThrottlerPerSecondWindow(t *testing.T) {
	th, c := newFake(Config{Enabled: true, MaxPerSecond: 2})
	start := c.t
	for i := 0; i < 3; i++ {
		if err := th.Acquire(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if got := c.t.Sub(start); got != time.Second {
		t.Fatalf("third call at %v, want 1s", got)
	}
}

func TestThrottlerPerMinuteWindow(t *testing.T) {
	th, c := newFake(Config{Enabled: true, MaxPerSecond: 10, MaxPerMinute: 3})
	start := c.t
	for i := 0; i < 4; i++ {
		if err := th.Acquire(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if got := c.t.Sub(start); got != time.Minute {
		t.Fatalf("fourth call at %v, want 1m", got)
	}
}

func TestThrottlerCombinedDefaults(t *testing.T) {
	th, c := newFake(DefaultConfig())
	start := c.t
	for i := 0; i < 9; i++ {
		if err := th.Acquire(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	// 8 calls spaced 120ms fill the first second (last at 840ms); the 9th
	// needs both 960ms spacing and the first stamp to leave the 1s window.
	if got := c.t.Sub(start); got != time.Second {
		t.Fatalf("ninth call at %v, want 1s", got)
	}
}

func TestThrottlerDisabledNeverWaits(t *testing.T) {
	th, c := newFake(Config{Enabled: false, MaxPerSecond: 1, MinInterval: time.Hour})
	for i := 0; i < 5; i++ {
		if err := th.Acquire(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if len(c.slept) != 0 {
		t.Fatalf("disabled throttler slept %v", c.slept)
	}
}

func TestThrottlerInterruptedWait(t *testing.T) {
	th, _ := newFake(Config{Enabled: true, MaxPerMinute: 1})
	if err := th.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := th.Acquire(ctx)
	if !errors.Is(err, ErrInterrupted) || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected interrupted error, got %v", err)
	}
}

func TestThrottlerRealSleepHonoursDeadline(t *testing.T) {
	th := NewThrottler(Config{Enabled: true, MaxPerMinute: 1})
	if err := th.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	err := th.Acquire(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatalf("acquire did not return promptly")
	}
}

func TestThrottlerReportsWait(t *testing.T) {
	var waits []time.Duration
	c := &fakeClock{t: time.Date(2024, 10, 16, 0, 0, 0, 0, time.UTC)}
	th := NewThrottler(Config{Enabled: true, MinInterval: 100 * time.Millisecond},
		WithClock(c.now, c.sleep),
		WithWaitObserver(func(d time.Duration) { waits = append(waits, d) }))
	_ = th.Acquire(context.Background())
	_ = th.Acquire(context.Background())
	if len(waits) != 2 || waits[0] != 0 || waits[1] != 100*time.Millisecond {
		t.Fatalf("unexpected waits %v", waits)
	}
}

func TestKeyedLimiter(t *testing.T) {
	l := New(0.001, 2)
	if !l.Allow("a") || !l.Allow("a") {
		t.Fatalf("burst should allow two calls")
	}
	if l.Allow("a") {
		t.Fatalf("third call should be limited")
	}
	if !l.Allow("b") {
		t.Fatalf("keys must not share buckets")
	}
	if l.Len() != 2 {
		t.Fatalf("expected two buckets, got %d", l.Len())
	}
}
