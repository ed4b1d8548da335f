package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrInterrupted is returned when a caller is cancelled while waiting for a slot.
var ErrInterrupted = errors.New("throttle wait interrupted")

// Config bounds outbound calls to a rate limited upstream.
type Config struct {
	Enabled      bool
	MinInterval  time.Duration
	MaxPerSecond int
	MaxPerMinute int
}

// DefaultConfig matches the public exchange quota with some headroom.
func DefaultConfig() Config {
	return Config{Enabled: true, MinInterval: 120 * time.Millisecond, MaxPerSecond: 8, MaxPerMinute: 240}
}

type ThrottlerOption func(*Throttler)

// WithClock replaces the time source and the sleeper. sleep must return ctx.Err() when ctx ends.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) ThrottlerOption {
	return func(t *Throttler) {
		if now != nil {
			t.now = now
		}
		if sleep != nil {
			t.sleep = sleep
		}
	}
}

// WithWaitObserver is called with the total time every successful Acquire waited.
func WithWaitObserver(fn func(time.Duration)) ThrottlerOption {
	return func(t *Throttler) { t.observe = fn }
}

// Throttler spaces calls by a minimum interval and caps them per rolling second
// and rolling minute. One caller waits at a time; the rest queue on sem.
type Throttler struct {
	cfg     Config
	sem     chan struct{}
	last    time.Time
	second  []time.Time
	minute  []time.Time
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
	observe func(time.Duration)
}

func NewThrottler(cfg Config, opts ...ThrottlerOption) *Throttler {
	t := &Throttler{
		cfg:   cfg,
		sem:   make(chan struct{}, 1),
		now:   time.Now,
		sleep: sleepCtx,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Acquire blocks until a call is allowed and records it. Cancellation while
// waiting returns an error wrapping ErrInterrupted and the context error.
func (t *Throttler) Acquire(ctx context.Context) error {
	if !t.cfg.Enabled {
		return nil
	}
	select {
	case t.sem <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrInterrupted, ctx.Err())
	}
	defer func() { <-t.sem }()

	var waited time.Duration
	for {
		now := t.now()
		wait := t.waitFor(now)
		if wait <= 0 {
			t.record(now)
			if t.observe != nil {
				t.observe(waited)
			}
			return nil
		}
		if err := t.sleep(ctx, wait); err != nil {
			return fmt.Errorf("%w: %w", ErrInterrupted, err)
		}
		waited += wait
	}
}

func (t *Throttler) waitFor(now time.Time) time.Duration {
	t.second = trim(t.second, now, time.Second)
	t.minute = trim(t.minute, now, time.Minute)

	var wait time.Duration
	if t.cfg.MinInterval > 0 && !t.last.IsZero() {
		wait = max(wait, t.last.Add(t.cfg.MinInterval).Sub(now))
	}
	if t.cfg.MaxPerSecond > 0 && len(t.second) >= t.cfg.MaxPerSecond {
		wait = max(wait, t.second[0].Add(time.Second).Sub(now))
	}
	if t.cfg.MaxPerMinute > 0 && len(t.minute) >= t.cfg.MaxPerMinute {
		wait = max(wait, t.minute[0].Add(time.Minute).Sub(now))
	}
	return wait
}

func (t *Throttler) record(now time.Time) {
	t.last = now
	t.second = append(t.second, now)
	t.minute = append(t.minute, now)
}

// trim drops timestamps that fell out of the window, oldest first.
func trim(q []time.Time, now time.Time, window time.Duration) []time.Time {
	i := 0
	for i < len(q) && now.Sub(q[i]) >= window {
		i++
	}
	if i == 0 {
		return q
	}
	return append(q[:0], q[i:]...)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
