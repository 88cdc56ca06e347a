package push

import (
	"errors"
	"sync"
)

var (
	ErrConnClosed   = errors.New("push connection closed")
	ErrSlowConsumer = errors.New("push connection buffer full")
)

// Conn is a live write handle to one open browser tab (or any other
// subscriber). A Send error means the connection is dead and the registry
// prunes it on the spot.
type Conn interface {
	Send(Event) error
}

type Stats struct {
	Users       int `json:"users"`
	Connections int `json:"connections"`
}

// Registry tracks, per principal, every currently open push connection and
// fans events out to all of them. Purely in-memory, process lifetime.
type Registry struct {
	mu     sync.Mutex
	conns  map[string]map[int]Conn
	nextID int

	onPrune func(userID string, handle int)
}

func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]map[int]Conn),
	}
}

// SetPruneHook installs a callback invoked (outside the registry lock) each
// time a dead connection is dropped during Broadcast.
func (r *Registry) SetPruneHook(hook func(userID string, handle int)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onPrune = hook
}

// Subscribe registers a connection under the principal and returns the handle
// used to unsubscribe it later. It never fails.
func (r *Registry) Subscribe(userID string, conn Conn) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := r.nextID
	if _, ok := r.conns[userID]; !ok {
		r.conns[userID] = make(map[int]Conn)
	}
	r.conns[userID][id] = conn
	return id
}

// Unsubscribe removes the connection if present; unknown handles are a no-op.
// The principal entry itself goes away with its last connection.
func (r *Registry) Unsubscribe(userID string, handle int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	subs := r.conns[userID]
	if subs == nil {
		return
	}
	delete(subs, handle)
	if len(subs) == 0 {
		delete(r.conns, userID)
	}
}

// Broadcast delivers the event to every connection of the principal,
// independently. A failed send drops that connection and does not disturb
// delivery to the rest. Zero connections is a no-op.
func (r *Registry) Broadcast(userID string, evt Event) {
	r.mu.Lock()
	subs := r.conns[userID]
	if len(subs) == 0 {
		r.mu.Unlock()
		return
	}

	var pruned []int
	for id, conn := range subs {
		if err := conn.Send(evt); err != nil {
			pruned = append(pruned, id)
		}
	}
	for _, id := range pruned {
		delete(subs, id)
	}
	if len(subs) == 0 {
		delete(r.conns, userID)
	}
	hook := r.onPrune
	r.mu.Unlock()

	if hook != nil {
		for _, id := range pruned {
			hook(userID, id)
		}
	}
}

func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := Stats{Users: len(r.conns)}
	for _, subs := range r.conns {
		st.Connections += len(subs)
	}
	return st
}
