package tasks

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/P-Jhao/agentForage-backend-sub001/internal/push"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []push.Event
	users  []string
}

func (p *capturePublisher) Broadcast(userID string, evt push.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.users = append(p.users, userID)
	p.events = append(p.events, evt)
}

func (p *capturePublisher) all() []push.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]push.Event, len(p.events))
	copy(out, p.events)
	return out
}

func TestCreateDerivesTitleAndBroadcasts(t *testing.T) {
	pub := &capturePublisher{}
	m := NewManager(pub)

	task, err := m.Create(CreateRequest{
		UserID: "u1",
		Prompt: "summarize   the quarterly report and draft an email to the team about it",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if task.Status != StatusPending {
		t.Fatalf("Status = %q, want %q", task.Status, StatusPending)
	}
	if task.Title == "" || len(task.Title) > maxDerivedTitle {
		t.Fatalf("derived title = %q (len %d)", task.Title, len(task.Title))
	}
	if strings.Contains(task.Title, "  ") {
		t.Fatalf("derived title keeps repeated spaces: %q", task.Title)
	}

	events := pub.all()
	if len(events) != 1 || events[0].Type != push.EventStatusChange {
		t.Fatalf("events = %+v, want one status_change", events)
	}
	if events[0].TaskID != task.ID {
		t.Fatalf("event task id = %q, want %q", events[0].TaskID, task.ID)
	}
}

func TestCreateValidation(t *testing.T) {
	m := NewManager(nil)
	if _, err := m.Create(CreateRequest{Prompt: "hi"}); err == nil {
		t.Fatalf("Create without user_id succeeded")
	}
	if _, err := m.Create(CreateRequest{UserID: "u1"}); err == nil {
		t.Fatalf("Create without prompt succeeded")
	}
}

func TestSetTitleBroadcastsTaskUpdate(t *testing.T) {
	pub := &capturePublisher{}
	m := NewManager(pub)
	task, err := m.Create(CreateRequest{UserID: "u1", Prompt: "do the thing"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	renamed, err := m.SetTitle(task.ID, "A better name")
	if err != nil {
		t.Fatalf("SetTitle() error = %v", err)
	}
	if renamed.Title != "A better name" {
		t.Fatalf("Title = %q", renamed.Title)
	}

	events := pub.all()
	last := events[len(events)-1]
	if last.Type != push.EventTaskUpdate {
		t.Fatalf("last event type = %q, want %q", last.Type, push.EventTaskUpdate)
	}
	data, ok := last.Data.(push.TaskUpdateData)
	if !ok || data.Title != "A better name" {
		t.Fatalf("last event data = %+v", last.Data)
	}

	if _, err := m.SetTitle("missing", "x"); err != ErrTaskNotFound {
		t.Fatalf("SetTitle(missing) error = %v, want ErrTaskNotFound", err)
	}
}

func TestSetStatusLifecycle(t *testing.T) {
	pub := &capturePublisher{}
	m := NewManager(pub)
	task, _ := m.Create(CreateRequest{UserID: "u1", Prompt: "do the thing"})

	running, err := m.SetStatus(task.ID, StatusRunning, "", "")
	if err != nil {
		t.Fatalf("SetStatus(running) error = %v", err)
	}
	if running.StartedAt == nil {
		t.Fatalf("StartedAt not set on running transition")
	}

	done, err := m.SetStatus(task.ID, StatusCompleted, "all good", "")
	if err != nil {
		t.Fatalf("SetStatus(completed) error = %v", err)
	}
	if done.Result != "all good" || done.EndedAt == nil {
		t.Fatalf("terminal snapshot = %+v", done)
	}

	// Terminal tasks do not move again.
	after, err := m.SetStatus(task.ID, StatusFailed, "", "late failure")
	if err != nil {
		t.Fatalf("SetStatus after terminal error = %v", err)
	}
	if after.Status != StatusCompleted {
		t.Fatalf("terminal task moved to %q", after.Status)
	}

	// pending -> running -> completed, in call order.
	var statuses []string
	for _, evt := range pub.all() {
		if evt.Type != push.EventStatusChange {
			continue
		}
		statuses = append(statuses, evt.Data.(push.StatusChangeData).Status)
	}
	want := []string{"pending", "running", "completed"}
	if len(statuses) != len(want) {
		t.Fatalf("status events = %v, want %v", statuses, want)
	}
	for i := range want {
		if statuses[i] != want[i] {
			t.Fatalf("status events = %v, want %v", statuses, want)
		}
	}
}

func TestListByUserNewestFirst(t *testing.T) {
	m := NewManager(nil)
	first, _ := m.Create(CreateRequest{UserID: "u1", Prompt: "first"})
	second, _ := m.Create(CreateRequest{UserID: "u1", Prompt: "second"})
	m.Create(CreateRequest{UserID: "u2", Prompt: "other user"})

	got := m.ListByUser("u1", 0)
	if len(got) != 2 {
		t.Fatalf("ListByUser = %d tasks, want 2", len(got))
	}
	if got[0].ID != second.ID || got[1].ID != first.ID {
		t.Fatalf("order = [%s %s], want newest first", got[0].Prompt, got[1].Prompt)
	}

	if limited := m.ListByUser("u1", 1); len(limited) != 1 {
		t.Fatalf("limited list = %d tasks, want 1", len(limited))
	}
}

func TestPersistWritesThroughStore(t *testing.T) {
	store := NewMemoryStore()
	m := NewManager(nil)
	m.SetStore(store)

	task, err := m.Create(CreateRequest{UserID: "u1", Prompt: "persist me"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Persistence is async; poll briefly.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := store.GetTask(context.Background(), task.ID); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("task never reached the store")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestGetFallsBackToStore(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now().UTC()
	persisted := Task{
		ID:        "t-restart",
		UserID:    "u1",
		Prompt:    "resume after restart",
		Title:     "resume after restart",
		Status:    StatusCompleted,
		Result:    "done",
		CreatedAt: now.Add(-time.Hour),
		UpdatedAt: now.Add(-time.Hour),
	}
	if err := store.SaveTask(context.Background(), persisted); err != nil {
		t.Fatalf("SaveTask() error = %v", err)
	}

	// Fresh manager, as after a process restart: memory is empty.
	m := NewManager(nil)
	m.SetStore(store)

	got, err := m.Get("t-restart")
	if err != nil {
		t.Fatalf("Get() after restart = %v, want the persisted task", err)
	}
	if got.Status != StatusCompleted || got.Result != "done" {
		t.Fatalf("Get() = %+v, want persisted completed task", got)
	}

	if _, err := m.Get("t-missing"); err != ErrTaskNotFound {
		t.Fatalf("Get(unknown) error = %v, want %v", err, ErrTaskNotFound)
	}

	// The store hit is re-cached; a second read answers from memory.
	m.SetStore(nil)
	cached, err := m.Get("t-restart")
	if err != nil {
		t.Fatalf("Get() from cache = %v", err)
	}
	if cached.ID != "t-restart" {
		t.Fatalf("cached task = %+v", cached)
	}
}

func TestListByUserMergesPersistedRows(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now().UTC()
	persisted := Task{
		ID:        "t-old",
		UserID:    "u1",
		Prompt:    "old work",
		Title:     "old work",
		Status:    StatusCompleted,
		CreatedAt: now.Add(-time.Hour),
		UpdatedAt: now.Add(-time.Hour),
	}
	if err := store.SaveTask(context.Background(), persisted); err != nil {
		t.Fatalf("SaveTask() error = %v", err)
	}

	m := NewManager(nil)
	m.SetStore(store)
	live, err := m.Create(CreateRequest{UserID: "u1", Prompt: "fresh work"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got := m.ListByUser("u1", 0)
	if len(got) != 2 {
		t.Fatalf("ListByUser = %d tasks, want 2 (live + persisted)", len(got))
	}
	if got[0].ID != live.ID || got[1].ID != "t-old" {
		t.Fatalf("order = [%s %s], want live task first", got[0].ID, got[1].ID)
	}

	// The persisted row is now cached too.
	if _, err := m.Get("t-old"); err != nil {
		t.Fatalf("Get() of merged row = %v", err)
	}
}

func TestDeriveTitleKeepsRuneBoundary(t *testing.T) {
	// One leading ASCII byte puts every two-byte rune off the byte limit,
	// so a naive byte slice would cut mid-rune.
	title := deriveTitle("a" + strings.Repeat("é", maxDerivedTitle))
	if !utf8.ValidString(title) {
		t.Fatalf("derived title is not valid UTF-8: %q", title)
	}
	if len(title) > maxDerivedTitle {
		t.Fatalf("derived title = %d bytes, want at most %d", len(title), maxDerivedTitle)
	}
	if strings.ContainsRune(title, utf8.RuneError) {
		t.Fatalf("derived title carries a mangled rune: %q", title)
	}
}
