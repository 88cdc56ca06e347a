// Package cancel implements cooperative task cancellation: one writer flips a
// per-task flag, any number of independent execution layers poll it at their
// own checkpoints. Cancellation is a signal, never a preemption.
package cancel

import (
	"sync"
	"time"
)

// Token is the read-only view handed to consumers. The registry keeps the
// only writable reference; at most one live token exists per task id.
type Token struct {
	mu        sync.Mutex
	aborted   bool
	createdAt time.Time
}

func (t *Token) Aborted() bool {
	if t == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.aborted
}

func (t *Token) CreatedAt() time.Time {
	if t == nil {
		return time.Time{}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.createdAt
}

func (t *Token) abort() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.aborted = true
}

type Registry struct {
	mu     sync.Mutex
	tokens map[string]*Token
}

func NewRegistry() *Registry {
	return &Registry{tokens: make(map[string]*Token)}
}

// Register creates the token for a task about to execute. Registering an id
// that already has a live token returns that token unchanged.
func (r *Registry) Register(taskID string) *Token {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tok, ok := r.tokens[taskID]; ok {
		return tok
	}
	tok := &Token{createdAt: time.Now().UTC()}
	r.tokens[taskID] = tok
	return tok
}

// Abort flips the token for taskID and reports whether a live token was
// found. Aborting an unknown or already-aborted id is not an error.
func (r *Registry) Abort(taskID string) bool {
	r.mu.Lock()
	tok, ok := r.tokens[taskID]
	r.mu.Unlock()
	if !ok {
		return false
	}
	tok.abort()
	return true
}

// IsAborted reports the current flag; false for ids with no live token
// (never registered, or already cleaned up).
func (r *Registry) IsAborted(taskID string) bool {
	r.mu.Lock()
	tok := r.tokens[taskID]
	r.mu.Unlock()
	return tok.Aborted()
}

// Cleanup drops the token once the task reached a terminal state, whether or
// not it was ever aborted. No-op if absent.
func (r *Registry) Cleanup(taskID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tokens, taskID)
}

// Active returns the number of live tokens, for diagnostics.
func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tokens)
}
