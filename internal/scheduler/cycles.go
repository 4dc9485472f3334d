package scheduler

import (
	"context"
	"errors"

	"github.com/support-allocation/backend/internal/engine"
	"github.com/support-allocation/backend/internal/events"
	"github.com/support-allocation/backend/internal/models"
	"github.com/support-allocation/backend/internal/store"
)

// RunAllocationCycle executes one allocation pass: snapshot PENDING
// requests, score them against the current rule set, and assign in priority
// order. Unmatched requests are queued and left PENDING; one request failing
// to match never stops the scan, since a lower-priority request may still
// fit a resource elsewhere.
func (s *Scheduler) RunAllocationCycle(ctx context.Context) {
	s.passMu.Lock()
	defer s.passMu.Unlock()

	pending, err := s.store.PendingRequests(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("allocation cycle: failed to list pending requests")
		s.allocationCycles.Add(1)
		return
	}
	if len(pending) == 0 {
		s.allocationCycles.Add(1)
		return
	}

	now := s.now()
	ranked := engine.Rank(pending, s.activeRules(ctx), now)

	assigned, queued, skipped := 0, 0, 0
	for _, item := range ranked {
		outcome, err := s.allocateOne(ctx, item)
		if err != nil {
			// State changed under a serialized pass; abort the remaining
			// work for this tick and let the next one resync.
			s.logger.Error().Err(err).Str("request_id", item.Request.ID).Msg("allocation cycle aborted")
			break
		}
		switch outcome {
		case allocAssigned:
			assigned++
		case allocQueued:
			queued++
		case allocSkipped:
			skipped++
		}
	}
	if skipped > 0 {
		s.logger.Warn().Int("skipped", skipped).Msg("allocation cycle skipped requests on transient errors")
	}

	if assigned > 0 {
		if err := s.trail.SchedulerCycle(ctx, s.allocationCycles.Load()+1, assigned, queued, 0); err != nil {
			s.logger.Warn().Err(err).Msg("failed to audit allocation cycle")
		}
	}
	s.bus.Publish(ctx, events.Event{Kind: events.KindDashboardRefresh})
	s.allocationCycles.Add(1)
}

// activeRules fetches the current rule snapshot. A transient rule-store
// failure degrades to an empty set (all weights zero) instead of failing
// the cycle.
func (s *Scheduler) activeRules(ctx context.Context) []models.PriorityRule {
	rules, err := s.store.ActiveRules(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("rule set unavailable, scoring with zero weights")
		return nil
	}
	return rules
}

// Outcome of a single allocation attempt. Queued means a genuine capacity
// miss; skipped means a transient error kept the request from being
// considered at all, so it is neither assigned nor queued.
type allocOutcome int

const (
	allocAssigned allocOutcome = iota
	allocQueued
	allocSkipped
)

// allocateOne attempts to assign a single scored request. A non-nil error
// means the request's state changed outside this pass.
func (s *Scheduler) allocateOne(ctx context.Context, item engine.Scored) (allocOutcome, error) {
	req := item.Request

	resource, found, err := s.matcher.FindResource(ctx, req.RequesterCity)
	if err != nil {
		s.logger.Error().Err(err).Str("request_id", req.ID).Msg("resource lookup failed")
		return allocSkipped, nil
	}
	if !found {
		s.queueRequest(ctx, req, item.Score)
		return allocQueued, nil
	}

	now := s.now()
	a, err := s.store.AssignRequest(ctx, req.ID, resource.ID, item.Score, now, now.Add(s.completionDuration()))
	if errors.Is(err, store.ErrResourceBusy) {
		// The matcher's candidate filled up between lookup and assign; treat
		// it like a miss and keep scanning.
		s.queueRequest(ctx, req, item.Score)
		return allocQueued, nil
	}
	if errors.Is(err, store.ErrRequestNotPending) {
		return allocSkipped, err
	}
	if err != nil {
		s.logger.Error().Err(err).Str("request_id", req.ID).Msg("failed to create assignment")
		return allocSkipped, nil
	}

	s.refreshResource(ctx, resource.ID)
	s.bus.Publish(ctx, events.Event{Kind: events.KindAssignmentCreated, EntityID: a.ID, Payload: a})
	if err := s.trail.AllocationAssigned(ctx, a, item.Breakdown); err != nil {
		s.logger.Warn().Err(err).Str("assignment_id", a.ID).Msg("failed to audit assignment")
	}
	if err := s.notifier.Send(ctx, req.RequesterID, req.RequesterName, req.ServiceCategory, req.RequestType); err != nil {
		s.logger.Warn().Err(err).Str("requester_id", req.RequesterID).Msg("notification failed")
	}
	return allocAssigned, nil
}

func (s *Scheduler) queueRequest(ctx context.Context, req models.ServiceRequest, score int) {
	set, err := s.store.MarkQueued(ctx, req.ID, s.now())
	if err != nil {
		s.logger.Error().Err(err).Str("request_id", req.ID).Msg("failed to queue request")
		return
	}
	if set {
		if err := s.trail.RequestQueued(ctx, req.ID, score, "no available resource"); err != nil {
			s.logger.Warn().Err(err).Str("request_id", req.ID).Msg("failed to audit queued request")
		}
	}
}

// refreshResource recomputes the derived resource status and emits the
// status-change event when it flipped.
func (s *Scheduler) refreshResource(ctx context.Context, resourceID string) {
	resource, changed, err := s.store.RefreshResourceStatus(ctx, resourceID)
	if err != nil {
		s.logger.Error().Err(err).Str("resource_id", resourceID).Msg("failed to refresh resource status")
		return
	}
	if !changed {
		return
	}
	s.bus.Publish(ctx, events.Event{Kind: events.KindResourceStatusChanged, EntityID: resource.ID, Payload: resource})
	if err := s.trail.ResourceStatusChanged(ctx, resource); err != nil {
		s.logger.Warn().Err(err).Str("resource_id", resource.ID).Msg("failed to audit resource status")
	}
}

// RunCompletionCycle finishes every assignment whose simulated service
// window has elapsed, frees the capacity, and immediately backfills queued
// requests while the freed capacity lasts.
func (s *Scheduler) RunCompletionCycle(ctx context.Context) {
	s.passMu.Lock()
	defer s.passMu.Unlock()

	now := s.now()
	due, err := s.store.DueAssignments(ctx, now)
	if err != nil {
		s.logger.Error().Err(err).Msg("completion cycle: failed to list due assignments")
		s.completionCycles.Add(1)
		return
	}

	completed := 0
	for _, a := range due {
		done, err := s.store.CompleteAssignment(ctx, a.ID, now)
		if err != nil {
			s.logger.Error().Err(err).Str("assignment_id", a.ID).Msg("failed to complete assignment")
			continue
		}
		completed++
		s.refreshResource(ctx, done.ResourceID)
		s.bus.Publish(ctx, events.Event{Kind: events.KindAssignmentCompleted, EntityID: done.ID, Payload: done})
		if err := s.trail.AllocationCompleted(ctx, done, now.Sub(done.AssignedAt)); err != nil {
			s.logger.Warn().Err(err).Str("assignment_id", done.ID).Msg("failed to audit completion")
		}
	}

	if completed > 0 {
		s.backfill(ctx)
		s.bus.Publish(ctx, events.Event{Kind: events.KindDashboardRefresh})
	}
	s.completionCycles.Add(1)
}

// backfill drains queued requests into just-freed capacity, in the same
// priority order as the allocation cycle, stopping at the first miss rather
// than rescanning everything.
func (s *Scheduler) backfill(ctx context.Context) {
	queued, err := s.store.QueuedRequests(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("backfill: failed to list queued requests")
		return
	}
	if len(queued) == 0 {
		return
	}

	ranked := engine.Rank(queued, s.activeRules(ctx), s.now())
	for _, item := range ranked {
		outcome, err := s.allocateOne(ctx, item)
		if err != nil {
			s.logger.Error().Err(err).Str("request_id", item.Request.ID).Msg("backfill aborted")
			return
		}
		if outcome != allocAssigned {
			return
		}
	}
}
