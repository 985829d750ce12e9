package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestIntervalSchedulerRunsImmediatelyAndRepeats(t *testing.T) {
	t.Parallel()

	var runs int32
	fired := make(chan struct{}, 16)
	s := NewIntervalScheduler(10 * time.Millisecond)
	err := s.Start(context.Background(), func(time.Time) {
		atomic.AddInt32(&runs, 1)
		fired <- struct{}{}
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	for i := 0; i < 3; i++ {
		select {
		case <-fired:
		case <-time.After(2 * time.Second):
			t.Fatalf("job did not fire %d times", i+1)
		}
	}

	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	after := atomic.LoadInt32(&runs)
	time.Sleep(30 * time.Millisecond)
	if atomic.LoadInt32(&runs) != after {
		t.Fatalf("job ran after stop")
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}

func TestIntervalSchedulerStopWaitsForJob(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool

	s := NewIntervalScheduler(time.Hour)
	_ = s.Start(context.Background(), func(time.Time) {
		close(started)
		<-release
		finished.Store(true)
	})
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := s.Stop(ctx); err == nil {
		t.Fatalf("stop must report the deadline while the job is running")
	}

	close(release)
	s2 := NewIntervalScheduler(time.Hour)
	if err := s2.Stop(context.Background()); err != nil {
		t.Fatalf("stop before start: %v", err)
	}
	deadline := time.After(2 * time.Second)
	for !finished.Load() {
		select {
		case <-deadline:
			t.Fatalf("job never finished")
		case <-time.After(time.Millisecond):
		}
	}
}

func TestIntervalSchedulerContextCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	s := NewIntervalScheduler(10 * time.Millisecond)
	ran := make(chan struct{}, 1024)
	if err := s.Start(ctx, func(time.Time) { ran <- struct{}{} }); err != nil {
		t.Fatalf("start: %v", err)
	}
	<-ran
	cancel()

	time.Sleep(50 * time.Millisecond)
	for len(ran) > 0 {
		<-ran
	}
	select {
	case <-ran:
		t.Fatalf("job ran after the context was cancelled")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestIntervalSchedulerRejectsBadInterval(t *testing.T) {
	t.Parallel()

	if err := NewIntervalScheduler(0).Start(context.Background(), func(time.Time) {}); err == nil {
		t.Fatalf("expected error for zero interval")
	}
}
