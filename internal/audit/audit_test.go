package audit

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/support-allocation/backend/internal/events"
	"github.com/support-allocation/backend/internal/models"
	"github.com/support-allocation/backend/internal/store"
)

func TestAllocationAssignedEntry(t *testing.T) {
	st := store.NewMemory()
	bus := events.NewMemory()
	trail := &Trail{Store: st, Bus: bus, Logger: zerolog.Nop()}
	ctx := context.Background()

	a := models.Assignment{ID: "ASN-1", RequestID: "REQ-1", ResourceID: "RES-1", PriorityScore: 70}
	if err := trail.AllocationAssigned(ctx, a, map[string]int{"URGENCY": 50, "SERVICE": 20}); err != nil {
		t.Fatalf("allocation assigned: %v", err)
	}

	logs, total, err := st.ListLogs(ctx, store.LogFilter{EventType: EventAllocationAssigned})
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	if total != 1 {
		t.Fatalf("expected one entry, got %d", total)
	}
	e := logs[0]
	if e.Message != "Assignment created: REQ-1 -> RES-1" {
		t.Fatalf("unexpected message: %q", e.Message)
	}
	if e.EntityType != EntityAllocation || e.EntityID != "ASN-1" {
		t.Fatalf("unexpected entity: %s %s", e.EntityType, e.EntityID)
	}
	if e.Details["priority_score"] != 70 {
		t.Fatalf("unexpected score detail: %v", e.Details["priority_score"])
	}
}

func TestSchedulerCycleDetails(t *testing.T) {
	st := store.NewMemory()
	trail := &Trail{Store: st, Bus: events.NewMemory(), Logger: zerolog.Nop()}
	ctx := context.Background()

	if err := trail.SchedulerCycle(ctx, 3, 2, 1, 0); err != nil {
		t.Fatalf("scheduler cycle: %v", err)
	}
	logs, _, err := st.ListLogs(ctx, store.LogFilter{EventType: EventSchedulerCycle})
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected one entry, got %d", len(logs))
	}
	d := logs[0].Details
	if d["assigned"] != 2 || d["queued"] != 1 || d["completed"] != 0 {
		t.Fatalf("unexpected cycle details: %v", d)
	}
}
