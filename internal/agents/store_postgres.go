package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, strings.TrimSpace(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := initAgentSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func initAgentSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmt := `CREATE TABLE IF NOT EXISTS agents (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		tools JSONB NOT NULL DEFAULT '[]',
		summary TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);`
	if _, err := pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("init agent schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveAgent(ctx context.Context, agent Agent) error {
	toolsJSON, err := json.Marshal(agent.Tools)
	if err != nil {
		return fmt.Errorf("encode tools: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO agents (id, user_id, name, tools, summary, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			tools = EXCLUDED.tools,
			updated_at = EXCLUDED.updated_at
	`, agent.ID, agent.UserID, agent.Name, toolsJSON, agent.Summary, agent.CreatedAt, agent.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save agent %s: %w", agent.ID, err)
	}
	return nil
}

func (s *PostgresStore) GetAgent(ctx context.Context, agentID string) (Agent, error) {
	var (
		agent     Agent
		toolsJSON []byte
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, user_id, name, tools, summary, created_at, updated_at
		FROM agents WHERE id = $1
	`, agentID).Scan(&agent.ID, &agent.UserID, &agent.Name, &toolsJSON,
		&agent.Summary, &agent.CreatedAt, &agent.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Agent{}, ErrAgentNotFound
		}
		return Agent{}, fmt.Errorf("get agent %s: %w", agentID, err)
	}
	if err := json.Unmarshal(toolsJSON, &agent.Tools); err != nil {
		return Agent{}, fmt.Errorf("decode tools for %s: %w", agentID, err)
	}
	return agent, nil
}

func (s *PostgresStore) UpdateSummary(ctx context.Context, agentID, summary string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE agents SET summary = $2, updated_at = $3 WHERE id = $1
	`, agentID, summary, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update summary for %s: %w", agentID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAgentNotFound
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
