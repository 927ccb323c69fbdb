package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestRun_ImmediateAndPeriodic(t *testing.T) {
	// WHAT: The scheduler runs once at start, then on every tick.
	// WHY: A restart must not wait a full interval before checking gazettes.
	var calls atomic.Int32
	s := New(func(ctx context.Context) error {
		calls.Add(1)
		return nil
	}, Config{Interval: 20 * time.Millisecond}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 110*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	if n := calls.Load(); n < 3 {
		t.Errorf("calls = %d, want at least 3", n)
	}
}

func TestRun_SkipInitial(t *testing.T) {
	// WHAT: SkipInitial defers the first run to the first tick.
	// WHY: Operators may trigger the first run by hand.
	var calls atomic.Int32
	s := New(func(ctx context.Context) error {
		calls.Add(1)
		return nil
	}, Config{Interval: time.Hour, SkipInitial: true}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	if n := calls.Load(); n != 0 {
		t.Errorf("calls = %d, want 0", n)
	}
}

func TestRun_ErrorsDoNotStopLoop(t *testing.T) {
	// WHAT: A failing run is logged and the loop continues.
	// WHY: One bad invocation must not disable monitoring.
	var calls atomic.Int32
	s := New(func(ctx context.Context) error {
		calls.Add(1)
		return errors.New("boom")
	}, Config{Interval: 10 * time.Millisecond}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	if n := calls.Load(); n < 2 {
		t.Errorf("calls = %d, want at least 2", n)
	}
}

func TestDefaults(t *testing.T) {
	// WHAT: Zero interval defaults to six hours.
	// WHY: Gazettes publish at most a few times a day.
	if got := New(func(context.Context) error { return nil }, Config{}, nil).Interval(); got != 6*time.Hour {
		t.Errorf("interval = %v", got)
	}
}
