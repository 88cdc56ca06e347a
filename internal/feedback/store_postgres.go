package feedback

import (
	"context"
	"fmt"
	"strings"

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
	if err := initFeedbackSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func initFeedbackSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmt := `CREATE TABLE IF NOT EXISTS feedback (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		task_id TEXT NOT NULL DEFAULT '',
		rating INTEGER NOT NULL,
		comment TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_feedback_user_created ON feedback (user_id, created_at DESC);`
	if _, err := pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("init feedback schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveFeedback(ctx context.Context, fb Feedback) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO feedback (id, user_id, task_id, rating, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, fb.ID, fb.UserID, fb.TaskID, fb.Rating, fb.Comment, fb.CreatedAt)
	if err != nil {
		return fmt.Errorf("save feedback %s: %w", fb.ID, err)
	}
	return nil
}

func (s *PostgresStore) ListFeedbackByUser(ctx context.Context, userID string, limit int) ([]Feedback, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, task_id, rating, comment, created_at
		FROM feedback WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list feedback for %s: %w", userID, err)
	}
	defer rows.Close()

	var out []Feedback
	for rows.Next() {
		var fb Feedback
		if err := rows.Scan(&fb.ID, &fb.UserID, &fb.TaskID, &fb.Rating, &fb.Comment, &fb.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan feedback row: %w", err)
		}
		out = append(out, fb)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
