package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/support-allocation/backend/internal/models"
)

// Memory is an in-process Store used for the demo deployment and tests. All
// multi-entity mutations run under one mutex, which is what makes
// AssignRequest and CompleteAssignment atomic.
type Memory struct {
	mu          sync.RWMutex
	requests    map[string]models.ServiceRequest
	resources   map[string]models.Resource
	assignments map[string]models.Assignment
	rules       map[string]models.PriorityRule
	requesters  map[string]models.Requester
	logs        []models.LogEntry
	loads       map[string]int
}

func NewMemory() *Memory {
	return &Memory{
		requests:    map[string]models.ServiceRequest{},
		resources:   map[string]models.Resource{},
		assignments: map[string]models.Assignment{},
		rules:       map[string]models.PriorityRule{},
		requesters:  map[string]models.Requester{},
		loads:       map[string]int{},
	}
}

func (m *Memory) Ping(ctx context.Context) error { return nil }

// SeedDemo loads the demo fixture: requesters spread over the four cities,
// a small resource fleet, and the default rule set.
func (m *Memory) SeedDemo() {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := []struct{ name, city string }{
		{"Ayşe Kaya", "Istanbul"},
		{"Mehmet Demir", "Istanbul"},
		{"Zeynep Şahin", "Ankara"},
		{"Ali Yılmaz", "Ankara"},
		{"Fatma Çelik", "Izmir"},
		{"Emre Aydın", "Izmir"},
		{"Elif Arslan", "Bursa"},
		{"Can Doğan", "Bursa"},
	}
	for i, n := range names {
		id := fmt.Sprintf("USR-%03d", i+1)
		m.requesters[id] = models.Requester{ID: id, Name: n.name, City: n.city}
	}

	fleet := []models.Resource{
		{ID: "RES-001", Kind: models.KindTechTeam, City: "Istanbul", Capacity: 2},
		{ID: "RES-002", Kind: models.KindSupportAgent, City: "Istanbul", Capacity: 3},
		{ID: "RES-003", Kind: models.KindTechTeam, City: "Ankara", Capacity: 2},
		{ID: "RES-004", Kind: models.KindSupportAgent, City: "Izmir", Capacity: 2},
		{ID: "RES-005", Kind: models.KindTechTeam, City: "Bursa", Capacity: 1},
	}
	for _, r := range fleet {
		r.Status = models.ResourceAvailable
		m.resources[r.ID] = r
	}

	for _, r := range DefaultRules() {
		m.rules[r.ID] = r
	}
}

// AddResource registers a resource. Intended for seeding and tests.
func (m *Memory) AddResource(r models.Resource) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.Status == "" {
		r.Status = models.ResourceAvailable
	}
	m.resources[r.ID] = r
}

// AddRequester registers a requester. Intended for seeding and tests.
func (m *Memory) AddRequester(r models.Requester) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requesters[r.ID] = r
}

// DefaultRules returns the seed rule set: urgency and service weights plus
// the per-second waiting bonus.
func DefaultRules() []models.PriorityRule {
	now := time.Now().UTC()
	rules := []models.PriorityRule{
		{ID: "RULE-URG-HIGH", Name: "High urgency", Category: models.RuleCategoryUrgency, Key: models.UrgencyHigh},
		{ID: "RULE-URG-MED", Name: "Medium urgency", Category: models.RuleCategoryUrgency, Key: models.UrgencyMedium},
		{ID: "RULE-URG-LOW", Name: "Low urgency", Category: models.RuleCategoryUrgency, Key: models.UrgencyLow},
	}
	rules[0].Weight = models.DefaultUrgencyWeights[models.UrgencyHigh]
	rules[1].Weight = models.DefaultUrgencyWeights[models.UrgencyMedium]
	rules[2].Weight = models.DefaultUrgencyWeights[models.UrgencyLow]

	for _, svc := range models.ServiceCategories {
		rules = append(rules, models.PriorityRule{
			ID:       "RULE-SVC-" + svc,
			Name:     svc + " service",
			Category: models.RuleCategoryService,
			Key:      svc,
			Weight:   models.DefaultServiceWeights[svc],
		})
	}
	rules = append(rules, models.PriorityRule{
		ID:       "RULE-WAIT",
		Name:     "Waiting bonus",
		Category: models.RuleCategoryWaitingTime,
		Key:      models.WaitingBonusKey,
		Weight:   models.DefaultWaitingBonusPerSecond,
	})
	for i := range rules {
		rules[i].Active = true
		rules[i].UpdatedAt = now
	}
	return rules
}

func (m *Memory) CreateRequest(ctx context.Context, req models.ServiceRequest) (models.ServiceRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Status == "" {
		req.Status = models.RequestPending
	}
	if req.SubmittedAt.IsZero() {
		req.SubmittedAt = time.Now().UTC()
	}
	if r, ok := m.requesters[req.RequesterID]; ok {
		if req.RequesterCity == "" {
			req.RequesterCity = r.City
		}
		if req.RequesterName == "" {
			req.RequesterName = r.Name
		}
	}
	m.requests[req.ID] = req
	return req, nil
}

func (m *Memory) GetRequest(ctx context.Context, id string) (models.ServiceRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	req, ok := m.requests[id]
	if !ok {
		return models.ServiceRequest{}, ErrNotFound
	}
	return req, nil
}

func (m *Memory) ListRequests(ctx context.Context, f RequestFilter) ([]models.ServiceRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.ServiceRequest, 0, len(m.requests))
	for _, req := range m.requests {
		if f.Status != "" && req.Status != f.Status {
			continue
		}
		if f.Urgency != "" && req.UrgencyLevel != f.Urgency {
			continue
		}
		if f.Service != "" && req.ServiceCategory != f.Service {
			continue
		}
		out = append(out, req)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].SubmittedAt.After(out[j].SubmittedAt)
	})
	return out, nil
}

func (m *Memory) PendingRequests(ctx context.Context) ([]models.ServiceRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.ServiceRequest
	for _, req := range m.requests {
		if req.Status == models.RequestPending {
			out = append(out, req)
		}
	}
	sortBySubmission(out)
	return out, nil
}

func (m *Memory) QueuedRequests(ctx context.Context) ([]models.ServiceRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.ServiceRequest
	for _, req := range m.requests {
		if req.Status == models.RequestPending && req.QueuedAt != nil {
			out = append(out, req)
		}
	}
	sortBySubmission(out)
	return out, nil
}

func sortBySubmission(reqs []models.ServiceRequest) {
	sort.Slice(reqs, func(i, j int) bool {
		if reqs[i].SubmittedAt.Equal(reqs[j].SubmittedAt) {
			return reqs[i].ID < reqs[j].ID
		}
		return reqs[i].SubmittedAt.Before(reqs[j].SubmittedAt)
	})
}

func (m *Memory) MarkQueued(ctx context.Context, id string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok {
		return false, ErrNotFound
	}
	if req.Status != models.RequestPending || req.QueuedAt != nil {
		return false, nil
	}
	req.QueuedAt = &at
	m.requests[id] = req
	return true, nil
}

func (m *Memory) ListResources(ctx context.Context, city, status string) ([]models.Resource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Resource, 0, len(m.resources))
	for _, r := range m.resources {
		if city != "" && r.City != city {
			continue
		}
		if status != "" && r.Status != status {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) GetResource(ctx context.Context, id string) (models.Resource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.resources[id]
	if !ok {
		return models.Resource{}, ErrNotFound
	}
	return r, nil
}

func (m *Memory) ResourceLoads(ctx context.Context) (map[string]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]int, len(m.loads))
	for id, n := range m.loads {
		out[id] = n
	}
	return out, nil
}

func (m *Memory) RefreshResourceStatus(ctx context.Context, id string) (models.Resource, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refreshLocked(id)
}

func (m *Memory) refreshLocked(id string) (models.Resource, bool, error) {
	r, ok := m.resources[id]
	if !ok {
		return models.Resource{}, false, ErrNotFound
	}
	status := models.ResourceAvailable
	if m.loads[id] >= r.Capacity {
		status = models.ResourceBusy
	}
	changed := r.Status != status
	if changed {
		r.Status = status
		m.resources[id] = r
	}
	return r, changed, nil
}

func (m *Memory) ResetResources(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads = map[string]int{}
	for id, r := range m.resources {
		r.Status = models.ResourceAvailable
		m.resources[id] = r
	}
	return nil
}

func (m *Memory) AssignRequest(ctx context.Context, requestID, resourceID string, score int, assignedAt, expectedAt time.Time) (models.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, ok := m.requests[requestID]
	if !ok {
		return models.Assignment{}, ErrNotFound
	}
	if req.Status != models.RequestPending {
		return models.Assignment{}, ErrRequestNotPending
	}
	res, ok := m.resources[resourceID]
	if !ok {
		return models.Assignment{}, ErrNotFound
	}
	if m.loads[resourceID] >= res.Capacity {
		return models.Assignment{}, ErrResourceBusy
	}

	a := models.Assignment{
		ID:                   uuid.NewString(),
		RequestID:            requestID,
		ResourceID:           resourceID,
		PriorityScore:        score,
		Status:               models.AssignmentAssigned,
		AssignedAt:           assignedAt,
		ExpectedCompletionAt: expectedAt,
	}
	m.assignments[a.ID] = a

	processed := assignedAt
	req.Status = models.RequestAssigned
	req.ProcessedAt = &processed
	m.requests[requestID] = req
	m.loads[resourceID]++
	return a, nil
}

func (m *Memory) CompleteAssignment(ctx context.Context, id string, at time.Time) (models.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.assignments[id]
	if !ok {
		return models.Assignment{}, ErrNotFound
	}
	if a.Status != models.AssignmentAssigned {
		return a, nil
	}
	done := at
	a.Status = models.AssignmentCompleted
	a.CompletedAt = &done
	m.assignments[id] = a

	if req, ok := m.requests[a.RequestID]; ok {
		req.Status = models.RequestCompleted
		m.requests[a.RequestID] = req
	}
	if m.loads[a.ResourceID] > 0 {
		m.loads[a.ResourceID]--
	}
	return a, nil
}

func (m *Memory) DueAssignments(ctx context.Context, now time.Time) ([]models.Assignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Assignment
	for _, a := range m.assignments {
		if a.Status == models.AssignmentAssigned && !a.ExpectedCompletionAt.After(now) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ExpectedCompletionAt.Equal(out[j].ExpectedCompletionAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].ExpectedCompletionAt.Before(out[j].ExpectedCompletionAt)
	})
	return out, nil
}

func (m *Memory) ListAssignments(ctx context.Context, status string, limit int) ([]models.Assignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Assignment, 0, len(m.assignments))
	for _, a := range m.assignments {
		if status != "" && a.Status != status {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AssignedAt.Equal(out[j].AssignedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].AssignedAt.After(out[j].AssignedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) AssignmentsSince(ctx context.Context, since time.Time) ([]models.Assignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Assignment
	for _, a := range m.assignments {
		if !since.IsZero() && a.AssignedAt.Before(since) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AssignedAt.Equal(out[j].AssignedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].AssignedAt.Before(out[j].AssignedAt)
	})
	return out, nil
}

func (m *Memory) CountAssignments(ctx context.Context, status string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, a := range m.assignments {
		if status == "" || a.Status == status {
			n++
		}
	}
	return n, nil
}

func (m *Memory) ActiveRules(ctx context.Context) ([]models.PriorityRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.PriorityRule
	for _, r := range m.rules {
		if r.Active {
			out = append(out, r)
		}
	}
	sortRules(out)
	return out, nil
}

func (m *Memory) ListRules(ctx context.Context) ([]models.PriorityRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.PriorityRule, 0, len(m.rules))
	for _, r := range m.rules {
		out = append(out, r)
	}
	sortRules(out)
	return out, nil
}

func sortRules(rules []models.PriorityRule) {
	sort.Slice(rules, func(i, j int) bool {
		if rules[i].Category == rules[j].Category {
			return rules[i].Name < rules[j].Name
		}
		return rules[i].Category < rules[j].Category
	})
}

func (m *Memory) GetRule(ctx context.Context, id string) (models.PriorityRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rules[id]
	if !ok {
		return models.PriorityRule{}, ErrNotFound
	}
	return r, nil
}

func (m *Memory) CreateRule(ctx context.Context, r models.PriorityRule) (models.PriorityRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.UpdatedAt = time.Now().UTC()
	m.rules[r.ID] = r
	return r, nil
}

func (m *Memory) UpdateRule(ctx context.Context, id string, upd RuleUpdate) (models.PriorityRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rules[id]
	if !ok {
		return models.PriorityRule{}, ErrNotFound
	}
	if upd.Name != nil {
		r.Name = *upd.Name
	}
	if upd.Weight != nil {
		r.Weight = *upd.Weight
	}
	if upd.Active != nil {
		r.Active = *upd.Active
	}
	if upd.Condition != nil {
		r.Condition = *upd.Condition
	}
	if upd.Description != nil {
		r.Description = *upd.Description
	}
	r.UpdatedAt = time.Now().UTC()
	m.rules[id] = r
	return r, nil
}

func (m *Memory) DeleteRule(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rules[id]; !ok {
		return ErrNotFound
	}
	delete(m.rules, id)
	return nil
}

func (m *Memory) ListRequesters(ctx context.Context) ([]models.Requester, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Requester, 0, len(m.requesters))
	for _, r := range m.requesters {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) GetRequester(ctx context.Context, id string) (models.Requester, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.requesters[id]
	if !ok {
		return models.Requester{}, ErrNotFound
	}
	return r, nil
}

func (m *Memory) AppendLog(ctx context.Context, e models.LogEntry) (models.LogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	m.logs = append(m.logs, e)
	return e, nil
}

func (m *Memory) ListLogs(ctx context.Context, f LogFilter) ([]models.LogEntry, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []models.LogEntry
	for _, e := range m.logs {
		if f.EventType != "" && e.EventType != f.EventType {
			continue
		}
		if f.EntityType != "" && e.EntityType != f.EntityType {
			continue
		}
		if f.EntityID != "" && e.EntityID != f.EntityID {
			continue
		}
		if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
			continue
		}
		if !f.Until.IsZero() && e.Timestamp.After(f.Until) {
			continue
		}
		matched = append(matched, e)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Timestamp.After(matched[j].Timestamp) })

	total := len(matched)
	offset := f.Offset
	if offset > total {
		offset = total
	}
	matched = matched[offset:]
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, total, nil
}

func (m *Memory) RecentLogs(ctx context.Context, limit int) ([]models.LogEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	out, _, err := m.ListLogs(ctx, LogFilter{Limit: limit})
	return out, err
}

func (m *Memory) ClearTransient(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = map[string]models.ServiceRequest{}
	m.assignments = map[string]models.Assignment{}
	m.logs = nil
	m.loads = map[string]int{}
	for id, r := range m.resources {
		r.Status = models.ResourceAvailable
		m.resources[id] = r
	}
	return nil
}
