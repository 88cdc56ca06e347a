package agents

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/P-Jhao/agentForage-backend-sub001/internal/background"
)

// gateStore blocks UpdateSummary until released, to prove the trigger call
// does not wait for the job.
type gateStore struct {
	*MemoryStore
	release chan struct{}
	fail    bool
}

func (s *gateStore) UpdateSummary(ctx context.Context, agentID, summary string) error {
	<-s.release
	if s.fail {
		return errors.New("summary write failed")
	}
	return s.MemoryStore.UpdateSummary(ctx, agentID, summary)
}

func TestCreateAgentSchedulesSummary(t *testing.T) {
	store := &gateStore{MemoryStore: NewMemoryStore(), release: make(chan struct{})}
	sched := background.NewScheduler()
	svc := NewService(store, sched)

	start := time.Now()
	agent, err := svc.CreateAgent(context.Background(), "u1", "Researcher", []ToolDescriptor{
		{Name: "web_search"}, {Name: "calculator"},
	})
	if err != nil {
		t.Fatalf("CreateAgent() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("CreateAgent blocked on summary job for %v", elapsed)
	}

	// Summary not there yet: the job is parked behind the gate.
	got, _ := store.GetAgent(context.Background(), agent.ID)
	if got.Summary != "" {
		t.Fatalf("summary appeared before the job ran: %q", got.Summary)
	}

	close(store.release)
	sched.Wait()

	got, _ = store.GetAgent(context.Background(), agent.ID)
	if got.Summary != "Researcher can use web_search and calculator." {
		t.Fatalf("summary = %q", got.Summary)
	}
}

func TestTriggerSummaryWithNoTools(t *testing.T) {
	sched := background.NewScheduler()
	svc := NewService(NewMemoryStore(), sched)

	if n := svc.TriggerSummary(Agent{ID: "a1", Name: "Empty"}); n != 0 {
		t.Fatalf("TriggerSummary(no tools) scheduled %d jobs, want 0", n)
	}
}

func TestSummaryJobFailureStaysInJob(t *testing.T) {
	store := &gateStore{MemoryStore: NewMemoryStore(), release: make(chan struct{}), fail: true}
	sched := background.NewScheduler()
	svc := NewService(store, sched)

	agent, err := svc.CreateAgent(context.Background(), "u1", "Doomed", []ToolDescriptor{{Name: "x"}})
	if err != nil {
		t.Fatalf("CreateAgent() error = %v (job failure must not surface)", err)
	}

	close(store.release)
	sched.Wait()

	got, _ := store.GetAgent(context.Background(), agent.ID)
	if got.Summary != "" {
		t.Fatalf("failed job still wrote a summary: %q", got.Summary)
	}
}

func TestUpdateAgentRegeneratesSummary(t *testing.T) {
	store := NewMemoryStore()
	sched := background.NewScheduler()
	svc := NewService(store, sched)

	agent, err := svc.CreateAgent(context.Background(), "u1", "Helper", []ToolDescriptor{{Name: "email"}})
	if err != nil {
		t.Fatalf("CreateAgent() error = %v", err)
	}
	sched.Wait()

	if _, err := svc.UpdateAgent(context.Background(), agent.ID, "Helper v2", []ToolDescriptor{
		{Name: "email"}, {Name: "slack"}, {Name: "notion"},
	}); err != nil {
		t.Fatalf("UpdateAgent() error = %v", err)
	}
	sched.Wait()

	got, _ := store.GetAgent(context.Background(), agent.ID)
	if got.Summary != "Helper v2 can use email, slack, and notion." {
		t.Fatalf("summary = %q", got.Summary)
	}

	if _, err := svc.UpdateAgent(context.Background(), "missing", "x", nil); !errors.Is(err, ErrAgentNotFound) {
		t.Fatalf("UpdateAgent(missing) error = %v, want ErrAgentNotFound", err)
	}
}

func TestSummarizeTools(t *testing.T) {
	if got := SummarizeTools("A", nil); got != "" {
		t.Fatalf("SummarizeTools(nil) = %q, want empty", got)
	}
	if got := SummarizeTools("A", []ToolDescriptor{{Name: "  "}}); got != "" {
		t.Fatalf("SummarizeTools(blank names) = %q, want empty", got)
	}
	if got := SummarizeTools("A", []ToolDescriptor{{Name: "x"}}); got != "A can use x." {
		t.Fatalf("one tool = %q", got)
	}
}
