package store

import (
	"context"
	"errors"
	"time"

	"github.com/support-allocation/backend/internal/models"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrResourceBusy      = errors.New("resource at capacity")
	ErrRequestNotPending = errors.New("request is not pending")
)

type RequestFilter struct {
	Status  string
	Urgency string
	Service string
}

type LogFilter struct {
	EventType  string
	EntityType string
	EntityID   string
	Since      time.Time
	Until      time.Time
	Limit      int
	Offset     int
}

// RuleUpdate carries a partial rule mutation; nil fields are left untouched.
type RuleUpdate struct {
	Name        *string
	Weight      *int
	Active      *bool
	Condition   *string
	Description *string
}

type RequestStore interface {
	CreateRequest(ctx context.Context, req models.ServiceRequest) (models.ServiceRequest, error)
	GetRequest(ctx context.Context, id string) (models.ServiceRequest, error)
	ListRequests(ctx context.Context, f RequestFilter) ([]models.ServiceRequest, error)
	PendingRequests(ctx context.Context) ([]models.ServiceRequest, error)
	// QueuedRequests returns PENDING requests whose queuedAt is set.
	QueuedRequests(ctx context.Context) ([]models.ServiceRequest, error)
	// MarkQueued sets queuedAt once; reports whether this call set it.
	MarkQueued(ctx context.Context, id string, at time.Time) (bool, error)
}

type ResourceStore interface {
	ListResources(ctx context.Context, city, status string) ([]models.Resource, error)
	GetResource(ctx context.Context, id string) (models.Resource, error)
	// ResourceLoads returns the active (ASSIGNED) assignment count per resource.
	ResourceLoads(ctx context.Context) (map[string]int, error)
	// RefreshResourceStatus recomputes the derived AVAILABLE/BUSY status from
	// the active assignment count and reports whether the status changed.
	RefreshResourceStatus(ctx context.Context, id string) (models.Resource, bool, error)
	ResetResources(ctx context.Context) error
}

type AssignmentStore interface {
	// AssignRequest creates an assignment and moves the request to ASSIGNED as
	// one atomic unit. It fails with ErrResourceBusy when the resource has no
	// spare capacity and ErrRequestNotPending when the request already left
	// PENDING, so concurrent allocators can never double-book either side.
	AssignRequest(ctx context.Context, requestID, resourceID string, score int, assignedAt, expectedAt time.Time) (models.Assignment, error)
	// CompleteAssignment moves an ASSIGNED assignment and its request to
	// COMPLETED as one atomic unit.
	CompleteAssignment(ctx context.Context, id string, at time.Time) (models.Assignment, error)
	DueAssignments(ctx context.Context, now time.Time) ([]models.Assignment, error)
	ListAssignments(ctx context.Context, status string, limit int) ([]models.Assignment, error)
	CountAssignments(ctx context.Context, status string) (int, error)
	// AssignmentsSince returns assignments assigned at or after since, oldest
	// first. A zero since returns the full history.
	AssignmentsSince(ctx context.Context, since time.Time) ([]models.Assignment, error)
}

type RuleStore interface {
	ActiveRules(ctx context.Context) ([]models.PriorityRule, error)
	ListRules(ctx context.Context) ([]models.PriorityRule, error)
	GetRule(ctx context.Context, id string) (models.PriorityRule, error)
	CreateRule(ctx context.Context, r models.PriorityRule) (models.PriorityRule, error)
	UpdateRule(ctx context.Context, id string, upd RuleUpdate) (models.PriorityRule, error)
	DeleteRule(ctx context.Context, id string) error
}

type RequesterStore interface {
	ListRequesters(ctx context.Context) ([]models.Requester, error)
	GetRequester(ctx context.Context, id string) (models.Requester, error)
}

type AuditStore interface {
	AppendLog(ctx context.Context, e models.LogEntry) (models.LogEntry, error)
	ListLogs(ctx context.Context, f LogFilter) ([]models.LogEntry, int, error)
	RecentLogs(ctx context.Context, limit int) ([]models.LogEntry, error)
}

// Store is the persistence collaborator for the allocation core and the API.
type Store interface {
	RequestStore
	ResourceStore
	AssignmentStore
	RuleStore
	RequesterStore
	AuditStore

	// ClearTransient wipes requests, assignments, and logs, and resets all
	// resources to AVAILABLE. Demo reset used on scheduler start.
	ClearTransient(ctx context.Context) error
	Ping(ctx context.Context) error
}
