// Package audit writes the append-only trail of allocation state
// transitions. Every entry lands in the store, in the structured log, and on
// the event bus; audit failures are reported to the caller but callers in
// the scheduler path only log them.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/support-allocation/backend/internal/events"
	"github.com/support-allocation/backend/internal/models"
	"github.com/support-allocation/backend/internal/store"
)

// Event types.
const (
	EventRequestCreated      = "REQUEST_CREATED"
	EventRequestQueued       = "REQUEST_QUEUED"
	EventAllocationAssigned  = "ALLOCATION_ASSIGNED"
	EventAllocationCompleted = "ALLOCATION_COMPLETED"
	EventResourceBusy        = "RESOURCE_BUSY"
	EventResourceAvailable   = "RESOURCE_AVAILABLE"
	EventSchedulerStarted    = "SCHEDULER_STARTED"
	EventSchedulerStopped    = "SCHEDULER_STOPPED"
	EventSchedulerCycle      = "SCHEDULER_CYCLE"
)

// Entity types.
const (
	EntityRequest    = "REQUEST"
	EntityAllocation = "ALLOCATION"
	EntityResource   = "RESOURCE"
	EntitySystem     = "SYSTEM"
)

type Trail struct {
	Store  store.AuditStore
	Bus    events.Bus
	Logger zerolog.Logger
}

func (t *Trail) write(ctx context.Context, e models.LogEntry) error {
	e.Timestamp = time.Now().UTC()
	saved, err := t.Store.AppendLog(ctx, e)
	if err != nil {
		t.Logger.Error().Err(err).Str("event_type", e.EventType).Msg("failed to append audit log")
		return err
	}
	t.Logger.Info().
		Str("event_type", saved.EventType).
		Str("entity_type", saved.EntityType).
		Str("entity_id", saved.EntityID).
		Msg(saved.Message)
	t.Bus.Publish(ctx, events.Event{Kind: events.KindLogCreated, EntityID: saved.ID, Payload: saved, At: saved.Timestamp})
	return nil
}

func (t *Trail) RequestCreated(ctx context.Context, req models.ServiceRequest) error {
	return t.write(ctx, models.LogEntry{
		EventType:  EventRequestCreated,
		EntityType: EntityRequest,
		EntityID:   req.ID,
		Message:    fmt.Sprintf("New request created: %s", req.ID),
		Details: map[string]any{
			"requester_id":     req.RequesterID,
			"service_category": req.ServiceCategory,
			"request_type":     req.RequestType,
			"urgency_level":    req.UrgencyLevel,
		},
	})
}

func (t *Trail) RequestQueued(ctx context.Context, requestID string, score int, reason string) error {
	return t.write(ctx, models.LogEntry{
		EventType:  EventRequestQueued,
		EntityType: EntityRequest,
		EntityID:   requestID,
		Message:    fmt.Sprintf("Request queued: %s", requestID),
		Details:    map[string]any{"priority_score": score, "reason": reason},
	})
}

func (t *Trail) AllocationAssigned(ctx context.Context, a models.Assignment, breakdown map[string]int) error {
	return t.write(ctx, models.LogEntry{
		EventType:  EventAllocationAssigned,
		EntityType: EntityAllocation,
		EntityID:   a.ID,
		Message:    fmt.Sprintf("Assignment created: %s -> %s", a.RequestID, a.ResourceID),
		Details: map[string]any{
			"request_id":      a.RequestID,
			"resource_id":     a.ResourceID,
			"priority_score":  a.PriorityScore,
			"score_breakdown": breakdown,
		},
	})
}

func (t *Trail) AllocationCompleted(ctx context.Context, a models.Assignment, elapsed time.Duration) error {
	return t.write(ctx, models.LogEntry{
		EventType:  EventAllocationCompleted,
		EntityType: EntityAllocation,
		EntityID:   a.ID,
		Message:    fmt.Sprintf("Assignment completed: %s", a.ID),
		Details: map[string]any{
			"request_id":       a.RequestID,
			"resource_id":      a.ResourceID,
			"duration_seconds": int(elapsed.Seconds()),
		},
	})
}

func (t *Trail) ResourceStatusChanged(ctx context.Context, r models.Resource) error {
	eventType := EventResourceAvailable
	message := fmt.Sprintf("Resource available: %s", r.ID)
	if r.Status == models.ResourceBusy {
		eventType = EventResourceBusy
		message = fmt.Sprintf("Resource at capacity: %s", r.ID)
	}
	return t.write(ctx, models.LogEntry{
		EventType:  eventType,
		EntityType: EntityResource,
		EntityID:   r.ID,
		Message:    message,
		Details:    map[string]any{"city": r.City, "kind": r.Kind},
	})
}

func (t *Trail) SchedulerStarted(ctx context.Context) error {
	return t.write(ctx, models.LogEntry{
		EventType:  EventSchedulerStarted,
		EntityType: EntitySystem,
		Message:    "Scheduler started",
	})
}

func (t *Trail) SchedulerStopped(ctx context.Context) error {
	return t.write(ctx, models.LogEntry{
		EventType:  EventSchedulerStopped,
		EntityType: EntitySystem,
		Message:    "Scheduler stopped",
	})
}

func (t *Trail) SchedulerCycle(ctx context.Context, cycle int64, assigned, queued, completed int) error {
	return t.write(ctx, models.LogEntry{
		EventType:  EventSchedulerCycle,
		EntityType: EntitySystem,
		Message:    fmt.Sprintf("Allocation cycle #%d", cycle),
		Details:    map[string]any{"assigned": assigned, "queued": queued, "completed": completed},
	})
}
