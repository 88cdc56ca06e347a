package execution

import (
	"context"
	"errors"
	"strings"

	"github.com/P-Jhao/agentForage-backend-sub001/internal/cancel"
	"github.com/P-Jhao/agentForage-backend-sub001/internal/tasks"
)

// ErrAborted reports that the run stopped because the task's cancellation
// token flipped mid-stream.
var ErrAborted = errors.New("task aborted")

// StreamClient is the model-invocation surface. The actual LLM client lives
// outside this repository; tests script it.
type StreamClient interface {
	StreamCompletion(ctx context.Context, prompt string, onDelta func(string) error) (string, error)
}

// Runner drives one model invocation for a task. It holds its own read view
// of the cancellation token and polls it before accepting each streamed
// chunk, independently of whatever the orchestration layer above does.
type Runner struct {
	client  StreamClient
	cancels *cancel.Registry
}

func NewRunner(client StreamClient, cancels *cancel.Registry) *Runner {
	return &Runner{client: client, cancels: cancels}
}

func (r *Runner) RunTask(ctx context.Context, task tasks.Task, onDelta func(string) error) (string, error) {
	tok := r.cancels.Register(task.ID)
	if tok.Aborted() {
		return "", ErrAborted
	}

	var out strings.Builder
	res, err := r.client.StreamCompletion(ctx, task.Prompt, func(delta string) error {
		if tok.Aborted() {
			return ErrAborted
		}
		d := strings.TrimSpace(delta)
		if d == "" {
			return nil
		}
		if out.Len() > 0 {
			out.WriteString("\n")
		}
		out.WriteString(d)
		if onDelta != nil {
			return onDelta(d)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if tok.Aborted() {
		return "", ErrAborted
	}

	final := strings.TrimSpace(out.String())
	if final == "" {
		final = strings.TrimSpace(res)
	}
	return final, nil
}
