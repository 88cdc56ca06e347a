package agents

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrAgentNotFound = errors.New("agent not found")

// ToolDescriptor describes one capability an agent is allowed to call.
type ToolDescriptor struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type Agent struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	Name      string           `json:"name"`
	Tools     []ToolDescriptor `json:"tools"`
	Summary   string           `json:"summary,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

func (a *Agent) Clone() Agent {
	c := *a
	if a.Tools != nil {
		c.Tools = make([]ToolDescriptor, len(a.Tools))
		copy(c.Tools, a.Tools)
	}
	return c
}

type Store interface {
	SaveAgent(ctx context.Context, agent Agent) error
	GetAgent(ctx context.Context, agentID string) (Agent, error)
	UpdateSummary(ctx context.Context, agentID, summary string) error
	Close() error
}

func newAgent(userID, name string, tools []ToolDescriptor) Agent {
	now := time.Now().UTC()
	return Agent{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      name,
		Tools:     tools,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SummarizeTools builds the human-readable capability summary shown on the
// agent card. Pure function; the heavy lifting upstream (if any) happens in
// the model layer, not here.
func SummarizeTools(name string, tools []ToolDescriptor) string {
	if len(tools) == 0 {
		return ""
	}
	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		if n := strings.TrimSpace(tool.Name); n != "" {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(strings.TrimSpace(name))
	b.WriteString(" can use ")
	switch len(names) {
	case 1:
		b.WriteString(names[0])
	case 2:
		b.WriteString(names[0] + " and " + names[1])
	default:
		b.WriteString(strings.Join(names[:len(names)-1], ", "))
		b.WriteString(", and " + names[len(names)-1])
	}
	b.WriteString(".")
	return b.String()
}

// MemoryStore backs the service when no DATABASE_URL is configured.
type MemoryStore struct {
	mu     sync.RWMutex
	agents map[string]Agent
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{agents: make(map[string]Agent)}
}

func (s *MemoryStore) SaveAgent(_ context.Context, agent Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents[agent.ID] = agent.Clone()
	return nil
}

func (s *MemoryStore) GetAgent(_ context.Context, agentID string) (Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	agent, ok := s.agents[agentID]
	if !ok {
		return Agent{}, ErrAgentNotFound
	}
	return agent.Clone(), nil
}

func (s *MemoryStore) UpdateSummary(_ context.Context, agentID, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	agent, ok := s.agents[agentID]
	if !ok {
		return ErrAgentNotFound
	}
	agent.Summary = summary
	agent.UpdatedAt = time.Now().UTC()
	s.agents[agentID] = agent
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
