package agents

import (
	"context"
	"errors"
	"strings"

	"github.com/P-Jhao/agentForage-backend-sub001/internal/background"
)

// Service persists agents and regenerates their capability summary after
// every create or update. Summary generation is fire-and-forget: the caller
// gets its response before the job runs, and a failed job changes nothing.
type Service struct {
	store     Store
	scheduler *background.Scheduler
}

func NewService(store Store, scheduler *background.Scheduler) *Service {
	return &Service{store: store, scheduler: scheduler}
}

func (s *Service) CreateAgent(ctx context.Context, userID, name string, tools []ToolDescriptor) (Agent, error) {
	userID = strings.TrimSpace(userID)
	name = strings.TrimSpace(name)
	if userID == "" {
		return Agent{}, errors.New("user_id is required")
	}
	if name == "" {
		return Agent{}, errors.New("name is required")
	}

	agent := newAgent(userID, name, tools)
	if err := s.store.SaveAgent(ctx, agent); err != nil {
		return Agent{}, err
	}
	s.TriggerSummary(agent)
	return agent, nil
}

func (s *Service) UpdateAgent(ctx context.Context, agentID, name string, tools []ToolDescriptor) (Agent, error) {
	agent, err := s.store.GetAgent(ctx, agentID)
	if err != nil {
		return Agent{}, err
	}
	if name = strings.TrimSpace(name); name != "" {
		agent.Name = name
	}
	if tools != nil {
		agent.Tools = tools
	}
	if err := s.store.SaveAgent(ctx, agent); err != nil {
		return Agent{}, err
	}
	s.TriggerSummary(agent)
	return agent, nil
}

func (s *Service) GetAgent(ctx context.Context, agentID string) (Agent, error) {
	return s.store.GetAgent(ctx, agentID)
}

// TriggerSummary schedules at most one summary job and returns the number
// scheduled: zero when there is nothing to summarize.
func (s *Service) TriggerSummary(agent Agent) int {
	if len(agent.Tools) == 0 {
		return 0
	}
	snapshot := agent.Clone()
	s.scheduler.Go("agent_summary", func(ctx context.Context) error {
		summary := SummarizeTools(snapshot.Name, snapshot.Tools)
		return s.store.UpdateSummary(ctx, snapshot.ID, summary)
	})
	return 1
}
