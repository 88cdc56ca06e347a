package taskruntime

import (
	"context"
	"errors"
	"time"

	"github.com/P-Jhao/agentForage-backend-sub001/internal/cancel"
	"github.com/P-Jhao/agentForage-backend-sub001/internal/execution"
	"github.com/P-Jhao/agentForage-backend-sub001/internal/observability"
	"github.com/P-Jhao/agentForage-backend-sub001/internal/tasks"
)

const defaultTaskTimeout = 20 * time.Minute

// Service is the orchestration layer: it owns the run lifecycle of a task,
// transitions its status (which streams to the owner's tabs), and observes
// cancellation at its own checkpoints, separately from the invocation loop
// below it, which polls the same token per streamed chunk.
type Service struct {
	taskTimeout time.Duration
	manager     *tasks.Manager
	runner      *execution.Runner
	cancels     *cancel.Registry
	metrics     *observability.Metrics
}

func New(manager *tasks.Manager, runner *execution.Runner, cancels *cancel.Registry, metrics *observability.Metrics, taskTimeout time.Duration) *Service {
	if taskTimeout <= 0 {
		taskTimeout = defaultTaskTimeout
	}
	return &Service{
		taskTimeout: taskTimeout,
		manager:     manager,
		runner:      runner,
		cancels:     cancels,
		metrics:     metrics,
	}
}

// CreateTask registers the task and kicks off its run. The HTTP response does
// not wait for execution.
func (s *Service) CreateTask(req tasks.CreateRequest) (tasks.Task, error) {
	task, err := s.manager.Create(req)
	if err != nil {
		return tasks.Task{}, err
	}
	s.observe("created")
	s.startTask(task.ID)
	return task, nil
}

// CancelTask broadcasts the cancellation signal and returns immediately; it
// never waits for a consumer to observe it. A pending task with no live run
// is finalized on the spot.
func (s *Service) CancelTask(taskID string) error {
	task, err := s.manager.Get(taskID)
	if err != nil {
		return err
	}
	if task.Terminal() {
		return nil
	}
	if !s.cancels.Abort(taskID) {
		// No live token means nothing is executing; finalize directly.
		if _, err := s.manager.SetStatus(taskID, tasks.StatusCancelled, "", "cancelled before start"); err != nil {
			return err
		}
	}
	s.observe("cancel_requested")
	return nil
}

// RenameTask updates the title and streams it to the owner's open tabs.
func (s *Service) RenameTask(taskID, title string) (tasks.Task, error) {
	return s.manager.SetTitle(taskID, title)
}

func (s *Service) GetTask(taskID string) (tasks.Task, error) {
	return s.manager.Get(taskID)
}

func (s *Service) ListTasks(userID string, limit int) []tasks.Task {
	return s.manager.ListByUser(userID, limit)
}

func (s *Service) startTask(taskID string) {
	task, err := s.manager.Get(taskID)
	if err != nil {
		return
	}

	// The token exists for the whole run; both this loop and the invocation
	// loop poll it, and it is cleaned up exactly once at the terminal state.
	s.cancels.Register(task.ID)

	if _, err := s.manager.SetStatus(task.ID, tasks.StatusRunning, "", ""); err != nil {
		s.cancels.Cleanup(task.ID)
		return
	}
	s.observe("started")

	go s.run(task)
}

func (s *Service) run(task tasks.Task) {
	defer s.cancels.Cleanup(task.ID)

	ctx, cancelRun := context.WithTimeout(context.Background(), s.taskTimeout)
	defer cancelRun()

	// Orchestration checkpoint before handing off to the invocation loop.
	if s.cancels.IsAborted(task.ID) {
		s.finish(task.ID, tasks.StatusCancelled, "", "cancelled")
		return
	}

	if s.runner == nil {
		s.finish(task.ID, tasks.StatusFailed, "", "task runner is not configured")
		return
	}

	output, runErr := s.runner.RunTask(ctx, task, nil)

	// Checkpoint after the run: an abort that raced the final chunk still
	// wins over a completed result.
	switch {
	case errors.Is(runErr, execution.ErrAborted) || s.cancels.IsAborted(task.ID):
		s.finish(task.ID, tasks.StatusCancelled, "", "cancelled")
	case errors.Is(runErr, context.DeadlineExceeded):
		s.finish(task.ID, tasks.StatusFailed, "", "task timed out")
	case runErr != nil:
		s.finish(task.ID, tasks.StatusFailed, "", runErr.Error())
	default:
		s.finish(task.ID, tasks.StatusCompleted, output, "")
	}
}

func (s *Service) finish(taskID string, status tasks.Status, result, errMsg string) {
	if _, err := s.manager.SetStatus(taskID, status, result, errMsg); err != nil {
		return
	}
	s.observe(string(status))
}

func (s *Service) observe(event string) {
	if s.metrics != nil {
		s.metrics.ObserveTaskEvent(event)
	}
}
