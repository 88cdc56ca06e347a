package background

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestGoRunsJobWithoutBlockingCaller(t *testing.T) {
	s := NewScheduler()
	release := make(chan struct{})
	var ran atomic.Bool

	start := time.Now()
	s.Go("slow", func(ctx context.Context) error {
		<-release
		ran.Store(true)
		return nil
	})
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("Go() blocked for %v", elapsed)
	}
	if ran.Load() {
		t.Fatalf("job finished before it was released: dispatch was not async")
	}

	close(release)
	s.Wait()
	if !ran.Load() {
		t.Fatalf("job never ran")
	}
}

func TestJobErrorDoesNotReachCaller(t *testing.T) {
	s := NewScheduler()
	var gotName string
	var gotErr error
	done := make(chan struct{})
	s.SetDoneHook(func(name string, err error) {
		gotName = name
		gotErr = err
		close(done)
	})

	s.Go("failing", func(ctx context.Context) error {
		return errors.New("summary model unavailable")
	})

	<-done
	if gotName != "failing" || gotErr == nil {
		t.Fatalf("done hook = (%q, %v), want (failing, error)", gotName, gotErr)
	}
}

func TestJobPanicIsContained(t *testing.T) {
	s := NewScheduler()
	done := make(chan error, 1)
	s.SetDoneHook(func(_ string, err error) {
		done <- err
	})

	s.Go("panicky", func(ctx context.Context) error {
		panic("boom")
	})

	err := <-done
	if err == nil {
		t.Fatalf("panic was not converted to an error at the job boundary")
	}
	s.Wait()
}
