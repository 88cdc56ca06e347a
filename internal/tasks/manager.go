package tasks

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/P-Jhao/agentForage-backend-sub001/internal/push"
)

var ErrTaskNotFound = errors.New("task not found")

const maxDerivedTitle = 60

// Publisher delivers task events to every open connection of the owning
// principal. Satisfied by push.Registry.
type Publisher interface {
	Broadcast(userID string, evt push.Event)
}

// Manager owns the in-memory task table. Status and title transitions are
// broadcast to the owner's live connections; persistence is best-effort and
// asynchronous. Broadcasts happen under the manager lock so that transitions
// of one task reach a principal's tabs in call order.
type Manager struct {
	mu sync.RWMutex

	store     Store
	publisher Publisher

	tasks       map[string]*Task
	tasksByUser map[string][]string
}

func NewManager(publisher Publisher) *Manager {
	return &Manager{
		publisher:   publisher,
		tasks:       make(map[string]*Task),
		tasksByUser: make(map[string][]string),
	}
}

func (m *Manager) SetStore(store Store) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store = store
}

func (m *Manager) Create(req CreateRequest) (Task, error) {
	req.UserID = strings.TrimSpace(req.UserID)
	req.Prompt = strings.TrimSpace(req.Prompt)
	req.Title = strings.TrimSpace(req.Title)
	if req.UserID == "" {
		return Task{}, errors.New("user_id is required")
	}
	if req.Prompt == "" {
		return Task{}, errors.New("prompt is required")
	}
	if req.Title == "" {
		req.Title = deriveTitle(req.Prompt)
	}

	now := time.Now().UTC()
	task := &Task{
		ID:        uuid.NewString(),
		UserID:    req.UserID,
		Prompt:    req.Prompt,
		Title:     req.Title,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[task.ID] = task
	m.tasksByUser[task.UserID] = append(m.tasksByUser[task.UserID], task.ID)

	m.publishLocked(task.UserID, push.StatusChange(task.ID, string(task.Status), task.UpdatedAt))
	m.persistLocked(task.Clone())
	return task.Clone(), nil
}

// Get returns the in-memory task, falling back to the store for tasks
// persisted before the last restart. Store hits are re-cached.
func (m *Manager) Get(taskID string) (Task, error) {
	m.mu.RLock()
	task, ok := m.tasks[taskID]
	var snapshot Task
	if ok {
		snapshot = task.Clone()
	}
	store := m.store
	m.mu.RUnlock()
	if ok {
		return snapshot, nil
	}
	if store == nil {
		return Task{}, ErrTaskNotFound
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	persisted, err := store.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, ErrStoreNotFound) {
			return Task{}, ErrTaskNotFound
		}
		return Task{}, err
	}

	m.mu.Lock()
	m.ensureTaskCachedLocked(persisted)
	m.mu.Unlock()
	return persisted.Clone(), nil
}

// ListByUser merges in-memory tasks with persisted rows, newest first. When
// the store is unreachable the in-memory view still answers.
func (m *Manager) ListByUser(userID string, limit int) []Task {
	m.mu.RLock()
	store := m.store
	ids := m.tasksByUser[userID]
	memOut := make([]Task, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		if t, ok := m.tasks[ids[i]]; ok {
			memOut = append(memOut, t.Clone())
		}
	}
	m.mu.RUnlock()

	if store == nil {
		return capTasks(memOut, limit)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	persisted, err := store.ListTasksByUser(ctx, userID, limit)
	if err != nil {
		return capTasks(memOut, limit)
	}

	// Memory wins on overlap; it is at least as fresh as any row, since
	// writes land in memory before the async persist.
	merged := make(map[string]Task, len(persisted)+len(memOut))
	for _, t := range persisted {
		merged[t.ID] = t
	}
	for _, t := range memOut {
		merged[t.ID] = t
	}
	out := make([]Task, 0, len(merged))
	for _, t := range merged {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	out = capTasks(out, limit)

	// Re-cache oldest first so the in-memory id order stays chronological.
	m.mu.Lock()
	for i := len(out) - 1; i >= 0; i-- {
		m.ensureTaskCachedLocked(out[i])
	}
	m.mu.Unlock()
	return out
}

// ensureTaskCachedLocked re-caches a persisted task. An existing in-memory
// entry is never replaced; it may be ahead of the row.
func (m *Manager) ensureTaskCachedLocked(task Task) {
	if _, ok := m.tasks[task.ID]; ok {
		return
	}
	cloned := task.Clone()
	m.tasks[task.ID] = &cloned
	for _, id := range m.tasksByUser[task.UserID] {
		if id == task.ID {
			return
		}
	}
	m.tasksByUser[task.UserID] = append(m.tasksByUser[task.UserID], task.ID)
}

func capTasks(out []Task, limit int) []Task {
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out
}

// SetTitle renames a task and streams the new title to the owner's tabs.
func (m *Manager) SetTitle(taskID, title string) (Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Task{}, errors.New("title is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[taskID]
	if !ok {
		return Task{}, ErrTaskNotFound
	}
	task.Title = title
	task.UpdatedAt = time.Now().UTC()

	m.publishLocked(task.UserID, push.TitleUpdate(task.ID, task.Title))
	m.persistLocked(task.Clone())
	return task.Clone(), nil
}

// SetStatus applies a lifecycle transition and streams it. A task already in
// a terminal state stays put; callers get the unchanged snapshot back.
func (m *Manager) SetStatus(taskID string, status Status, result, errMsg string) (Task, error) {
	now := time.Now().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[taskID]
	if !ok {
		return Task{}, ErrTaskNotFound
	}
	if task.Terminal() {
		return task.Clone(), nil
	}
	task.Status = status
	task.UpdatedAt = now
	switch {
	case status == StatusRunning:
		task.StartedAt = &now
	case status.Terminal():
		task.Result = strings.TrimSpace(result)
		task.Error = strings.TrimSpace(errMsg)
		task.EndedAt = &now
	}

	m.publishLocked(task.UserID, push.StatusChange(task.ID, string(task.Status), task.UpdatedAt))
	m.persistLocked(task.Clone())
	return task.Clone(), nil
}

func (m *Manager) publishLocked(userID string, evt push.Event) {
	if m.publisher == nil {
		return
	}
	m.publisher.Broadcast(userID, evt)
}

func (m *Manager) persistLocked(task Task) {
	store := m.store
	if store == nil {
		return
	}
	go func(snapshot Task) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = store.SaveTask(ctx, snapshot)
	}(task)
}

func deriveTitle(prompt string) string {
	fields := strings.Fields(prompt)
	title := strings.Join(fields, " ")
	if len(title) > maxDerivedTitle {
		// Never cut inside a multi-byte rune.
		cut := maxDerivedTitle
		for cut > 0 && !utf8.RuneStart(title[cut]) {
			cut--
		}
		title = strings.TrimSpace(title[:cut])
	}
	return title
}
