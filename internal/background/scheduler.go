// Package background runs fire-and-forget work. A scheduled job's outcome is
// logged and dropped; it is never observable by the code that triggered it.
package background

import (
	"context"
	"fmt"
	"log"
	"sync"
)

type Scheduler struct {
	wg     sync.WaitGroup
	mu     sync.Mutex
	onDone func(name string, err error)
}

func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// SetDoneHook installs a callback invoked after every job finishes, with a
// nil error on success. Used for metrics; never for control flow.
func (s *Scheduler) SetDoneHook(hook func(name string, err error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDone = hook
}

// Go schedules fn on its own goroutine and returns immediately. Errors and
// panics stop at the job boundary.
func (s *Scheduler) Go(name string, fn func(context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := s.run(name, fn)
		if err != nil {
			log.Printf("background job %q failed: %v", name, err)
		}
		s.mu.Lock()
		hook := s.onDone
		s.mu.Unlock()
		if hook != nil {
			hook(name, err)
		}
	}()
}

func (s *Scheduler) run(name string, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in job %q: %v", name, r)
		}
	}()
	return fn(context.Background())
}

// Wait blocks until every job scheduled so far has finished. Shutdown and
// test aid; regular callers never join their jobs.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
