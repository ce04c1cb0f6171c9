package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type fakeCounter struct {
	count  int
	err    error
	calls  atomic.Int32
	cutoff atomic.Value
}

func (f *fakeCounter) CountStale(ctx context.Context, cutoff time.Time) (int, error) {
	f.calls.Add(1)
	f.cutoff.Store(cutoff)
	if f.err != nil {
		return 0, f.err
	}
	return f.count, nil
}

func TestStaleMonitorChecksImmediatelyAndStops(t *testing.T) {
	counter := &fakeCounter{count: 3}
	m := NewStaleMonitor(counter, nil, time.Hour, 24*time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Start(ctx)
		close(done)
	}()

	// The first check runs before the first tick.
	deadline := time.After(time.Second)
	for counter.calls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("no check ran")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}

	cutoff := counter.cutoff.Load().(time.Time)
	want := time.Now().Add(-24 * time.Hour)
	if cutoff.Before(want.Add(-time.Minute)) || cutoff.After(want.Add(time.Minute)) {
		t.Errorf("cutoff = %v, want about %v", cutoff, want)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop on cancel")
	}
}

func TestStaleMonitorSurvivesCounterErrors(t *testing.T) {
	counter := &fakeCounter{err: errors.New("db down")}
	m := NewStaleMonitor(counter, nil, 10*time.Millisecond, time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	m.Start(ctx)

	if counter.calls.Load() < 2 {
		t.Fatalf("expected repeated checks despite errors, got %d", counter.calls.Load())
	}
}
