package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestIntervalSchedulerRunsImmediatelyAndStops(t *testing.T) {
	t.Parallel()

	s := NewIntervalScheduler(time.Second)
	ran := make(chan time.Time, 4)
	var calls atomic.Int32

	if err := s.Start(context.Background(), func(at time.Time) {
		calls.Add(1)
		ran <- at
	}); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	// A second Start must not launch another loop.
	if err := s.Start(context.Background(), func(time.Time) { calls.Add(100) }); err != nil {
		t.Fatalf("second Start returned error: %v", err)
	}

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatalf("job did not run on start")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop returned error: %v", err)
	}
	after := calls.Load()
	if after >= 100 {
		t.Fatalf("second Start launched a job loop")
	}

	time.Sleep(1200 * time.Millisecond)
	if calls.Load() != after {
		t.Fatalf("job ran after Stop")
	}
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("second Stop returned error: %v", err)
	}
}

func TestIntervalSchedulerHonoursContext(t *testing.T) {
	t.Parallel()

	s := NewIntervalScheduler(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{}, 1)
	if err := s.Start(ctx, func(time.Time) { started <- struct{}{} }); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	<-started
	cancel()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	if err := s.Stop(stopCtx); err != nil {
		t.Fatalf("Stop after cancellation returned error: %v", err)
	}
}

func TestNilJobIsIgnored(t *testing.T) {
	t.Parallel()

	s := NewIntervalScheduler(0)
	if err := s.Start(context.Background(), nil); err != nil {
		t.Fatalf("Start(nil) returned error: %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop returned error: %v", err)
	}
}
