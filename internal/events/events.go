// Package events delivers core state-change events to external observers.
package events

import (
	"context"
	"sync"
	"time"
)

// Event kinds emitted by the allocation core.
const (
	KindRequestCreated        = "request.created"
	KindAssignmentCreated     = "assignment.created"
	KindAssignmentCompleted   = "assignment.completed"
	KindResourceStatusChanged = "resource.status_changed"
	KindDashboardRefresh      = "dashboard.refresh"
	KindRulesUpdated          = "rules.updated"
	KindSchedulerStarted      = "scheduler.started"
	KindSchedulerStopped      = "scheduler.stopped"
	KindLogCreated            = "log.created"
)

type Event struct {
	Kind     string    `json:"kind"`
	EntityID string    `json:"entity_id,omitempty"`
	Payload  any       `json:"payload,omitempty"`
	At       time.Time `json:"at"`
}

// Bus is the pub/sub sink the core publishes into. Publish must never block
// a scheduler cycle for long and must never panic.
type Bus interface {
	Publish(ctx context.Context, e Event)
}

// Memory is an in-process fan-out bus. Subscribers are invoked synchronously
// in subscription order.
type Memory struct {
	mu   sync.RWMutex
	subs map[int]func(Event)
	next int
}

func NewMemory() *Memory {
	return &Memory{subs: map[int]func(Event){}}
}

// Subscribe registers a handler and returns an unsubscribe func.
func (m *Memory) Subscribe(fn func(Event)) func() {
	m.mu.Lock()
	id := m.next
	m.next++
	m.subs[id] = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

func (m *Memory) Publish(ctx context.Context, e Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	m.mu.RLock()
	handlers := make([]func(Event), 0, len(m.subs))
	for _, fn := range m.subs {
		handlers = append(handlers, fn)
	}
	m.mu.RUnlock()
	for _, fn := range handlers {
		fn(e)
	}
}

// Fanout publishes each event to every wrapped bus.
type Fanout []Bus

func (f Fanout) Publish(ctx context.Context, e Event) {
	for _, b := range f {
		b.Publish(ctx, e)
	}
}

// Nop discards all events.
type Nop struct{}

func (Nop) Publish(ctx context.Context, e Event) {}
