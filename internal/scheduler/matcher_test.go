package scheduler

import (
	"context"
	"testing"

	"github.com/support-allocation/backend/internal/models"
	"github.com/support-allocation/backend/internal/store"
)

func TestFindResourceLowestIDWins(t *testing.T) {
	st := store.NewMemory()
	st.AddResource(models.Resource{ID: "RES-B", City: "Izmir", Capacity: 1})
	st.AddResource(models.Resource{ID: "RES-A", City: "Izmir", Capacity: 1})

	m := &Matcher{Resources: st}
	r, ok, err := m.FindResource(context.Background(), "Izmir")
	if err != nil || !ok {
		t.Fatalf("expected a match, got ok=%v err=%v", ok, err)
	}
	if r.ID != "RES-A" {
		t.Fatalf("expected lowest id RES-A, got %s", r.ID)
	}
}

func TestFindResourceSkipsSaturated(t *testing.T) {
	st := store.NewMemory()
	st.AddResource(models.Resource{ID: "RES-A", City: "Izmir", Capacity: 1})
	st.AddResource(models.Resource{ID: "RES-B", City: "Izmir", Capacity: 2})

	ctx := context.Background()
	req, _ := st.CreateRequest(ctx, models.ServiceRequest{RequesterCity: "Izmir", UrgencyLevel: models.UrgencyLow})
	if _, err := st.AssignRequest(ctx, req.ID, "RES-A", 0, req.SubmittedAt, req.SubmittedAt.Add(1)); err != nil {
		t.Fatalf("assign: %v", err)
	}

	m := &Matcher{Resources: st}
	r, ok, err := m.FindResource(ctx, "Izmir")
	if err != nil || !ok {
		t.Fatalf("expected a match, got ok=%v err=%v", ok, err)
	}
	if r.ID != "RES-B" {
		t.Fatalf("expected RES-B (RES-A saturated), got %s", r.ID)
	}
}

func TestFindResourceNoCapacityAnywhere(t *testing.T) {
	st := store.NewMemory()
	st.AddResource(models.Resource{ID: "RES-A", City: "Izmir", Capacity: 1})

	ctx := context.Background()
	req, _ := st.CreateRequest(ctx, models.ServiceRequest{RequesterCity: "Bursa", UrgencyLevel: models.UrgencyLow})
	if _, err := st.AssignRequest(ctx, req.ID, "RES-A", 0, req.SubmittedAt, req.SubmittedAt.Add(1)); err != nil {
		t.Fatalf("assign: %v", err)
	}

	m := &Matcher{Resources: st}
	_, ok, err := m.FindResource(ctx, "Bursa")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected no match when fleet is saturated")
	}
}
