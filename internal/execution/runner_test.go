package execution

import (
	"context"
	"errors"
	"testing"

	"github.com/P-Jhao/agentForage-backend-sub001/internal/cancel"
	"github.com/P-Jhao/agentForage-backend-sub001/internal/tasks"
)

// scriptedClient emits fixed chunks, honoring callback errors the way a real
// streaming client does.
type scriptedClient struct {
	chunks   []string
	onChunk  func(i int)
	fallback string
}

func (c *scriptedClient) StreamCompletion(_ context.Context, _ string, onDelta func(string) error) (string, error) {
	for i, chunk := range c.chunks {
		if c.onChunk != nil {
			c.onChunk(i)
		}
		if err := onDelta(chunk); err != nil {
			return "", err
		}
	}
	return c.fallback, nil
}

func TestRunTaskAccumulatesStream(t *testing.T) {
	reg := cancel.NewRegistry()
	r := NewRunner(&scriptedClient{chunks: []string{"hello", "  ", "world"}}, reg)

	out, err := r.RunTask(context.Background(), tasks.Task{ID: "t1", Prompt: "greet"}, nil)
	if err != nil {
		t.Fatalf("RunTask() error = %v", err)
	}
	if out != "hello\nworld" {
		t.Fatalf("output = %q", out)
	}
}

func TestRunTaskFallsBackToFinalText(t *testing.T) {
	reg := cancel.NewRegistry()
	r := NewRunner(&scriptedClient{fallback: "final answer"}, reg)

	out, err := r.RunTask(context.Background(), tasks.Task{ID: "t1", Prompt: "p"}, nil)
	if err != nil {
		t.Fatalf("RunTask() error = %v", err)
	}
	if out != "final answer" {
		t.Fatalf("output = %q", out)
	}
}

func TestRunTaskObservesAbortMidStream(t *testing.T) {
	reg := cancel.NewRegistry()
	client := &scriptedClient{chunks: []string{"a", "b", "c", "d"}}
	var delivered int
	client.onChunk = func(i int) {
		if i == 2 {
			reg.Abort("t1")
		}
	}
	r := NewRunner(client, reg)

	_, err := r.RunTask(context.Background(), tasks.Task{ID: "t1", Prompt: "p"}, func(string) error {
		delivered++
		return nil
	})
	if !errors.Is(err, ErrAborted) {
		t.Fatalf("RunTask() error = %v, want ErrAborted", err)
	}
	if delivered != 2 {
		t.Fatalf("chunks delivered after abort: got %d, want 2", delivered)
	}
}

func TestRunTaskAbortedBeforeStart(t *testing.T) {
	reg := cancel.NewRegistry()
	reg.Register("t1")
	reg.Abort("t1")
	r := NewRunner(&scriptedClient{chunks: []string{"never"}}, reg)

	_, err := r.RunTask(context.Background(), tasks.Task{ID: "t1", Prompt: "p"}, nil)
	if !errors.Is(err, ErrAborted) {
		t.Fatalf("RunTask() error = %v, want ErrAborted", err)
	}
}
