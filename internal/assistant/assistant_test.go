package assistant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/support-allocation/backend/internal/models"
	"github.com/support-allocation/backend/internal/store"
)

func TestOpenAICompatAsk(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		var body struct {
			Model    string        `json:"model"`
			Messages []ChatMessage `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Model != "test-model" || len(body.Messages) != 2 {
			t.Errorf("unexpected payload: %+v", body)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "rules explained"}},
			},
		})
	}))
	defer srv.Close()

	a := &OpenAICompat{BaseURL: srv.URL, Model: "test-model", APIKey: "test-key"}
	history := []ChatMessage{{Role: "system", Content: "context"}}

	got, err := a.Ask(context.Background(), "explain", history)
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if got != "rules explained" {
		t.Fatalf("unexpected answer %q", got)
	}

	// Second identical prompt is served from the cache.
	if _, err := a.Ask(context.Background(), "explain", history); err != nil {
		t.Fatalf("cached ask: %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected 1 upstream call, got %d", calls.Load())
	}
}

func TestOpenAICompatRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{
				"details": []any{
					map[string]any{"@type": "type.googleapis.com/google.rpc.RetryInfo", "retryDelay": "7s"},
				},
			},
		})
	}))
	defer srv.Close()

	a := &OpenAICompat{BaseURL: srv.URL, Model: "test-model"}
	_, err := a.Ask(context.Background(), "hello", nil)
	rle, ok := err.(RateLimitError)
	if !ok {
		t.Fatalf("expected RateLimitError, got %v", err)
	}
	if rle.RetryAfter.Seconds() != 7 {
		t.Fatalf("expected 7s retry-after, got %s", rle.RetryAfter)
	}
}

func TestOpenAICompatUnconfigured(t *testing.T) {
	a := &OpenAICompat{}
	if _, err := a.Ask(context.Background(), "hello", nil); err == nil {
		t.Fatalf("expected error when base URL missing")
	}
}

func TestMockDescribesActiveRules(t *testing.T) {
	mem := store.NewMemory()
	_, _ = mem.CreateRule(context.Background(), models.PriorityRule{
		Name:      "Istanbul boost",
		Category:  models.RuleCategoryCustom,
		Condition: "requesterCity == 'Istanbul'",
		Weight:    25,
		Active:    true,
	})

	m := Mock{Rules: mem}
	got, err := m.Ask(context.Background(), "what rules are active?", nil)
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if !strings.Contains(got, "Istanbul boost") || !strings.Contains(got, "+25") {
		t.Fatalf("expected rule summary, got %q", got)
	}
}

func TestMockFallbackAnswer(t *testing.T) {
	m := Mock{Rules: store.NewMemory()}
	got, err := m.Ask(context.Background(), "how is the sky today", nil)
	if err != nil || got == "" {
		t.Fatalf("expected generic answer, got %q err=%v", got, err)
	}
}
