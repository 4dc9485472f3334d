package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/support-allocation/backend/internal/assistant"
	"github.com/support-allocation/backend/internal/audit"
	"github.com/support-allocation/backend/internal/config"
	"github.com/support-allocation/backend/internal/events"
	"github.com/support-allocation/backend/internal/feeder"
	"github.com/support-allocation/backend/internal/http/handlers"
	"github.com/support-allocation/backend/internal/notify"
	"github.com/support-allocation/backend/internal/scheduler"
	"github.com/support-allocation/backend/internal/store"
)

func newTestRouter(t *testing.T, adminKey string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mem := store.NewMemory()
	mem.SeedDemo()
	bus := events.NewMemory()
	trail := &audit.Trail{Store: mem, Bus: bus, Logger: zerolog.Nop()}
	notifier := notify.NewMemory(zerolog.Nop())

	h := &handlers.Handler{
		Store:     mem,
		Scheduler: scheduler.New(mem, bus, trail, notifier, scheduler.DefaultConfig(), zerolog.Nop()),
		Feeder:    feeder.New(mem, bus, trail, time.Hour, zerolog.Nop()),
		Bus:       bus,
		Trail:     trail,
		Notifier:  notifier,
		Assistant: assistant.Mock{Rules: mem},
		Validator: validator.New(),
		Logger:    zerolog.Nop(),
	}
	cfg := config.Config{Port: "8080", AdminKey: adminKey, CORSAllowed: "*"}
	return Router(cfg, h, zerolog.Nop())
}

func TestPublicRoutes(t *testing.T) {
	r := newTestRouter(t, "")

	for _, path := range []string{
		"/healthz",
		"/api/requests",
		"/api/resources",
		"/api/allocations",
		"/api/rules",
		"/api/rules/by-category",
		"/api/dashboard/summary",
		"/api/analytics",
		"/api/logs",
		"/api/logs/recent",
		"/api/notifications",
		"/api/scheduler/status",
	} {
		req, _ := http.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d: %s", path, w.Code, w.Body.String())
		}
	}
}

func TestAdminKeyGuardsMutations(t *testing.T) {
	r := newTestRouter(t, "secret")

	body := strings.NewReader(`{"name":"boost","condition":"requesterCity == 'Izmir'","weight":5}`)
	req, _ := http.NewRequest(http.MethodPost, "/api/rules", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without key, got %d", w.Code)
	}

	body = strings.NewReader(`{"name":"boost","condition":"requesterCity == 'Izmir'","weight":5}`)
	req, _ = http.NewRequest(http.MethodPost, "/api/rules", body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Admin-Key", "secret")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 with key, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRequestIDPropagated(t *testing.T) {
	r := newTestRouter(t, "")

	req, _ := http.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected generated request id header")
	}

	req, _ = http.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "fixed-id")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-Id"); got != "fixed-id" {
		t.Fatalf("expected caller request id echoed, got %q", got)
	}
}
