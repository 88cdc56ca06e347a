package feedback

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/P-Jhao/agentForage-backend-sub001/internal/observability"
	"github.com/P-Jhao/agentForage-backend-sub001/internal/ratelimit"
)

var ErrRateLimited = errors.New("feedback rate limit exceeded")

type Feedback struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	TaskID    string    `json:"task_id,omitempty"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Store interface {
	SaveFeedback(ctx context.Context, fb Feedback) error
	ListFeedbackByUser(ctx context.Context, userID string, limit int) ([]Feedback, error)
	Close() error
}

// Service gates feedback writes behind the sliding-window limiter: check,
// then write, then record. An over-limit principal gets ErrRateLimited and
// nothing is written.
type Service struct {
	limiter *ratelimit.Limiter
	store   Store
	metrics *observability.Metrics
}

func NewService(limiter *ratelimit.Limiter, store Store, metrics *observability.Metrics) *Service {
	return &Service{limiter: limiter, store: store, metrics: metrics}
}

func (s *Service) Submit(ctx context.Context, userID, taskID string, rating int, comment string) (Feedback, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Feedback{}, errors.New("user_id is required")
	}
	if rating < 1 || rating > 5 {
		return Feedback{}, errors.New("rating must be between 1 and 5")
	}

	if !s.limiter.Allow(userID) {
		if s.metrics != nil {
			s.metrics.ObserveRateLimit(false)
		}
		return Feedback{}, ErrRateLimited
	}

	fb := Feedback{
		ID:        uuid.NewString(),
		UserID:    userID,
		TaskID:    strings.TrimSpace(taskID),
		Rating:    rating,
		Comment:   strings.TrimSpace(comment),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.SaveFeedback(ctx, fb); err != nil {
		return Feedback{}, err
	}

	// Only an admitted, persisted submission counts against the window.
	s.limiter.Record(userID)
	if s.metrics != nil {
		s.metrics.ObserveRateLimit(true)
	}
	return fb, nil
}

func (s *Service) ListByUser(ctx context.Context, userID string, limit int) ([]Feedback, error) {
	return s.store.ListFeedbackByUser(ctx, userID, limit)
}

// MemoryStore backs the service when no DATABASE_URL is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Feedback
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Feedback)}
}

func (s *MemoryStore) SaveFeedback(_ context.Context, fb Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[fb.ID] = fb
	return nil
}

func (s *MemoryStore) ListFeedbackByUser(_ context.Context, userID string, limit int) ([]Feedback, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Feedback
	for _, fb := range s.entries {
		if fb.UserID == userID {
			out = append(out, fb)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
