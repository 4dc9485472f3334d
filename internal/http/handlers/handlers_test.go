package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/support-allocation/backend/internal/assistant"
	"github.com/support-allocation/backend/internal/audit"
	"github.com/support-allocation/backend/internal/events"
	"github.com/support-allocation/backend/internal/feeder"
	"github.com/support-allocation/backend/internal/models"
	"github.com/support-allocation/backend/internal/notify"
	"github.com/support-allocation/backend/internal/scheduler"
	"github.com/support-allocation/backend/internal/store"
)

func newTestHandler(t *testing.T) (*Handler, *store.Memory, *events.Memory) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mem := store.NewMemory()
	mem.AddRequester(models.Requester{ID: "USR-1", Name: "Ayşe Yılmaz", City: "Istanbul"})
	mem.AddResource(models.Resource{ID: "RES-1", Kind: models.KindTechTeam, City: "Istanbul", Capacity: 1})

	bus := events.NewMemory()
	trail := &audit.Trail{Store: mem, Bus: bus, Logger: zerolog.Nop()}
	notifier := notify.NewMemory(zerolog.Nop())
	sched := scheduler.New(mem, bus, trail, notifier, scheduler.DefaultConfig(), zerolog.Nop())
	fdr := feeder.New(mem, bus, trail, time.Hour, zerolog.Nop())

	h := &Handler{
		Store:     mem,
		Scheduler: sched,
		Feeder:    fdr,
		Bus:       bus,
		Trail:     trail,
		Notifier:  notifier,
		Assistant: assistant.Mock{Rules: mem},
		Validator: validator.New(),
		Logger:    zerolog.Nop(),
	}
	return h, mem, bus
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, _ := http.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequestCreate(t *testing.T) {
	h, _, bus := newTestHandler(t)
	r := gin.New()
	r.POST("/api/requests", h.RequestCreate)

	var created int
	unsub := bus.Subscribe(func(e events.Event) {
		if e.Kind == events.KindRequestCreated {
			created++
		}
	})
	defer unsub()

	w := doJSON(t, r, http.MethodPost, "/api/requests", map[string]any{
		"requester_id":  "USR-1",
		"request_type":  "CONNECTION_ISSUE",
		"urgency_level": "HIGH",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var req models.ServiceRequest
	_ = json.Unmarshal(w.Body.Bytes(), &req)
	if req.ServiceCategory != "Superonline" {
		t.Fatalf("expected category derived from type, got %q", req.ServiceCategory)
	}
	if req.Status != models.RequestPending || req.RequesterCity != "Istanbul" {
		t.Fatalf("unexpected request: %+v", req)
	}
	if created != 1 {
		t.Fatalf("expected request.created event, got %d", created)
	}
}

func TestRequestCreateValidation(t *testing.T) {
	h, _, _ := newTestHandler(t)
	r := gin.New()
	r.POST("/api/requests", h.RequestCreate)

	cases := []struct {
		name string
		body map[string]any
		code int
	}{
		{"missing urgency", map[string]any{"requester_id": "USR-1", "request_type": "CONNECTION_ISSUE"}, http.StatusBadRequest},
		{"bad urgency", map[string]any{"requester_id": "USR-1", "request_type": "CONNECTION_ISSUE", "urgency_level": "CRITICAL"}, http.StatusBadRequest},
		{"unknown type", map[string]any{"requester_id": "USR-1", "request_type": "COFFEE", "urgency_level": "LOW"}, http.StatusBadRequest},
		{"category mismatch", map[string]any{"requester_id": "USR-1", "request_type": "PAYMENT_PROBLEM", "service_category": "TV+", "urgency_level": "LOW"}, http.StatusBadRequest},
		{"unknown requester", map[string]any{"requester_id": "USR-404", "request_type": "CONNECTION_ISSUE", "urgency_level": "LOW"}, http.StatusNotFound},
	}
	for _, tc := range cases {
		w := doJSON(t, r, http.MethodPost, "/api/requests", tc.body)
		if w.Code != tc.code {
			t.Errorf("%s: expected %d, got %d: %s", tc.name, tc.code, w.Code, w.Body.String())
		}
	}
}

func TestRequestsListLiveScores(t *testing.T) {
	h, mem, _ := newTestHandler(t)
	seedUrgencyRules(t, mem)
	r := gin.New()
	r.GET("/api/requests", h.RequestsList)

	_, _ = mem.CreateRequest(context.Background(), models.ServiceRequest{
		RequesterID:  "USR-1",
		UrgencyLevel: models.UrgencyHigh,
		SubmittedAt:  time.Now().UTC(),
	})

	w := doJSON(t, r, http.MethodGet, "/api/requests?status=PENDING", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var out []requestView
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if len(out) != 1 || out[0].PriorityScore == nil {
		t.Fatalf("expected one pending request with score, got %+v", out)
	}
	if *out[0].PriorityScore < 50 {
		t.Fatalf("expected HIGH urgency weight in score, got %d", *out[0].PriorityScore)
	}
}

func seedUrgencyRules(t *testing.T, mem *store.Memory) {
	t.Helper()
	for level, w := range models.DefaultUrgencyWeights {
		_, err := mem.CreateRule(context.Background(), models.PriorityRule{
			Name:     "Urgency " + level,
			Category: models.RuleCategoryUrgency,
			Key:      level,
			Weight:   w,
			Active:   true,
		})
		if err != nil {
			t.Fatalf("seed rule: %v", err)
		}
	}
}

func TestResourcesListUtilization(t *testing.T) {
	h, mem, _ := newTestHandler(t)
	r := gin.New()
	r.GET("/api/resources", h.ResourcesList)

	req, _ := mem.CreateRequest(context.Background(), models.ServiceRequest{RequesterID: "USR-1"})
	now := time.Now().UTC()
	_, _ = mem.AssignRequest(context.Background(), req.ID, "RES-1", 0, now, now.Add(10*time.Second))

	w := doJSON(t, r, http.MethodGet, "/api/resources", nil)
	var out []resourceView
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if len(out) != 1 {
		t.Fatalf("expected 1 resource, got %d", len(out))
	}
	if out[0].ActiveAssignments != 1 || out[0].Utilization != 1.0 {
		t.Fatalf("unexpected utilization: %+v", out[0])
	}
}

func TestRuleCreateCustomOnly(t *testing.T) {
	h, _, bus := newTestHandler(t)
	r := gin.New()
	r.POST("/api/rules", h.RuleCreate)

	var updated int
	unsub := bus.Subscribe(func(e events.Event) {
		if e.Kind == events.KindRulesUpdated {
			updated++
		}
	})
	defer unsub()

	w := doJSON(t, r, http.MethodPost, "/api/rules", map[string]any{
		"name":      "Izmir boost",
		"condition": "requesterCity == 'Izmir'",
		"weight":    15,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var rule models.PriorityRule
	_ = json.Unmarshal(w.Body.Bytes(), &rule)
	if rule.Category != models.RuleCategoryCustom || !rule.Active {
		t.Fatalf("expected active CUSTOM rule, got %+v", rule)
	}
	if updated != 1 {
		t.Fatalf("expected rules.updated event")
	}

	// Malformed and unknown-field conditions are rejected.
	for _, cond := range []string{"requesterCity = 'Izmir'", "favoriteColor == 'blue'", "city"} {
		w := doJSON(t, r, http.MethodPost, "/api/rules", map[string]any{"name": "x", "condition": cond, "weight": 1})
		if w.Code != http.StatusBadRequest {
			t.Errorf("condition %q: expected 400, got %d", cond, w.Code)
		}
	}
}

func TestRuleDeleteBuiltInRejected(t *testing.T) {
	h, mem, _ := newTestHandler(t)
	r := gin.New()
	r.DELETE("/api/rules/:id", h.RuleDelete)

	builtin, _ := mem.CreateRule(context.Background(), models.PriorityRule{
		Name: "Urgency HIGH", Category: models.RuleCategoryUrgency, Key: models.UrgencyHigh, Weight: 50, Active: true,
	})
	custom, _ := mem.CreateRule(context.Background(), models.PriorityRule{
		Name: "boost", Category: models.RuleCategoryCustom, Condition: "requesterCity == 'Bursa'", Weight: 5, Active: true,
	})

	if w := doJSON(t, r, http.MethodDelete, "/api/rules/"+builtin.ID, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 deleting built-in rule, got %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodDelete, "/api/rules/"+custom.ID, nil); w.Code != http.StatusOK {
		t.Fatalf("expected 200 deleting custom rule, got %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodDelete, "/api/rules/"+custom.ID, nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 deleting twice, got %d", w.Code)
	}
}

func TestRuleUpdateWeight(t *testing.T) {
	h, mem, _ := newTestHandler(t)
	r := gin.New()
	r.PATCH("/api/rules/:id", h.RuleUpdate)

	rule, _ := mem.CreateRule(context.Background(), models.PriorityRule{
		Name: "Urgency HIGH", Category: models.RuleCategoryUrgency, Key: models.UrgencyHigh, Weight: 50, Active: true,
	})

	w := doJSON(t, r, http.MethodPatch, "/api/rules/"+rule.ID, map[string]any{"weight": 70, "active": false})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var out models.PriorityRule
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if out.Weight != 70 || out.Active {
		t.Fatalf("unexpected rule after patch: %+v", out)
	}

	if w := doJSON(t, r, http.MethodPatch, "/api/rules/nope", map[string]any{"weight": 1}); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestAllocationsListBadLimit(t *testing.T) {
	h, _, _ := newTestHandler(t)
	r := gin.New()
	r.GET("/api/allocations", h.AllocationsList)

	if w := doJSON(t, r, http.MethodGet, "/api/allocations?limit=abc", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodGet, "/api/allocations?limit=-2", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodGet, "/api/allocations", nil); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestDashboardSummary(t *testing.T) {
	h, mem, _ := newTestHandler(t)
	seedUrgencyRules(t, mem)
	r := gin.New()
	r.GET("/api/dashboard/summary", h.DashboardSummary)

	for i := 0; i < 3; i++ {
		_, _ = mem.CreateRequest(context.Background(), models.ServiceRequest{
			RequesterID:     "USR-1",
			UrgencyLevel:    models.UrgencyHigh,
			ServiceCategory: "Superonline",
		})
	}

	w := doJSON(t, r, http.MethodGet, "/api/dashboard/summary", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var out dashboardSummary
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if out.Requests.Pending != 3 {
		t.Fatalf("expected 3 pending, got %d", out.Requests.Pending)
	}
	if len(out.PriorityQueue) != 3 {
		t.Fatalf("expected queue of 3, got %d", len(out.PriorityQueue))
	}
	if out.UrgencyBreakdown[models.UrgencyHigh] != 3 || out.ServiceBreakdown["Superonline"] != 3 {
		t.Fatalf("unexpected breakdowns: %+v %+v", out.UrgencyBreakdown, out.ServiceBreakdown)
	}
	if len(out.Resources) != 1 {
		t.Fatalf("expected 1 resource in summary, got %d", len(out.Resources))
	}
}

func TestLogsListPagination(t *testing.T) {
	h, mem, _ := newTestHandler(t)
	r := gin.New()
	r.GET("/api/logs", h.LogsList)

	for i := 0; i < 4; i++ {
		_, _ = mem.AppendLog(context.Background(), models.LogEntry{
			EventType: "REQUEST_CREATED", EntityType: "REQUEST", Message: "x",
			Timestamp: time.Now().UTC(),
		})
	}

	w := doJSON(t, r, http.MethodGet, "/api/logs?event_type=REQUEST_CREATED&limit=2&offset=2", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var out struct {
		Logs  []models.LogEntry `json:"logs"`
		Total int               `json:"total"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if out.Total != 4 || len(out.Logs) != 2 {
		t.Fatalf("expected total 4 page 2, got total=%d page=%d", out.Total, len(out.Logs))
	}

	if w := doJSON(t, r, http.MethodGet, "/api/logs?limit=zero", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on bad limit, got %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodGet, "/api/logs?since=yesterday", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on bad since, got %d", w.Code)
	}
}

func TestNotificationMarkRead(t *testing.T) {
	h, _, _ := newTestHandler(t)
	r := gin.New()
	r.GET("/api/notifications/:id", h.NotificationsForRequester)
	r.POST("/api/notifications/:id/read", h.NotificationRead)

	_ = h.Notifier.Send(context.Background(), "USR-1", "Ayşe Yılmaz", "Superonline", "CONNECTION_ISSUE")

	w := doJSON(t, r, http.MethodGet, "/api/notifications/USR-1", nil)
	var list []models.Notification
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if len(list) != 1 || list[0].Read {
		t.Fatalf("expected one unread notification, got %+v", list)
	}

	if w := doJSON(t, r, http.MethodPost, "/api/notifications/"+list[0].ID+"/read", nil); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodPost, "/api/notifications/nope/read", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestSchedulerLifecycleEndpoints(t *testing.T) {
	h, _, _ := newTestHandler(t)
	r := gin.New()
	r.POST("/api/scheduler/start", h.SchedulerStart)
	r.POST("/api/scheduler/stop", h.SchedulerStop)
	r.GET("/api/scheduler/status", h.SchedulerStatus)

	w := doJSON(t, r, http.MethodGet, "/api/scheduler/status", nil)
	var status scheduler.Status
	_ = json.Unmarshal(w.Body.Bytes(), &status)
	if status.Running {
		t.Fatalf("expected stopped before start")
	}

	if w := doJSON(t, r, http.MethodPost, "/api/scheduler/start", nil); w.Code != http.StatusOK {
		t.Fatalf("start: expected 200, got %d", w.Code)
	}
	w = doJSON(t, r, http.MethodGet, "/api/scheduler/status", nil)
	_ = json.Unmarshal(w.Body.Bytes(), &status)
	if !status.Running {
		t.Fatalf("expected running after start")
	}

	if w := doJSON(t, r, http.MethodPost, "/api/scheduler/stop", nil); w.Code != http.StatusOK {
		t.Fatalf("stop: expected 200, got %d", w.Code)
	}
	w = doJSON(t, r, http.MethodGet, "/api/scheduler/status", nil)
	_ = json.Unmarshal(w.Body.Bytes(), &status)
	if status.Running {
		t.Fatalf("expected stopped after stop")
	}
}

func TestAssistantChat(t *testing.T) {
	h, mem, _ := newTestHandler(t)
	r := gin.New()
	r.POST("/api/assistant/chat", h.AssistantChat)

	_, _ = mem.CreateRule(context.Background(), models.PriorityRule{
		Name: "Izmir boost", Category: models.RuleCategoryCustom, Condition: "requesterCity == 'Izmir'", Weight: 15, Active: true,
	})

	w := doJSON(t, r, http.MethodPost, "/api/assistant/chat", map[string]any{"message": "what rules are active?"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var out struct {
		Answer string `json:"answer"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if out.Answer == "" {
		t.Fatalf("expected non-empty answer")
	}

	if w := doJSON(t, r, http.MethodPost, "/api/assistant/chat", map[string]any{}); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on empty message, got %d", w.Code)
	}
}
