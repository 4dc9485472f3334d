// Package notify pushes assignment notifications to requesters. The real
// push channel is out of process; the in-memory implementation stands in for
// it and keeps a reviewable history.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/support-allocation/backend/internal/models"
)

// Notifier is the fire-and-forget notification collaborator. Errors are
// logged by callers and never block an allocation cycle.
type Notifier interface {
	Send(ctx context.Context, requesterID, displayName, serviceCategory, requestType string) error
}

type Memory struct {
	mu     sync.RWMutex
	sent   []models.Notification
	Logger zerolog.Logger
}

func NewMemory(logger zerolog.Logger) *Memory {
	return &Memory{Logger: logger}
}

func (m *Memory) Send(ctx context.Context, requesterID, displayName, serviceCategory, requestType string) error {
	n := models.Notification{
		ID:              uuid.NewString(),
		RequesterID:     requesterID,
		Message:         fmt.Sprintf("%s, your %s request (%s) has been assigned and is being worked on.", displayName, serviceCategory, requestType),
		ServiceCategory: serviceCategory,
		RequestType:     requestType,
		SentAt:          time.Now().UTC(),
	}
	m.mu.Lock()
	m.sent = append(m.sent, n)
	m.mu.Unlock()

	m.Logger.Info().
		Str("requester_id", requesterID).
		Str("service_category", serviceCategory).
		Msg("notification sent")
	return nil
}

func (m *Memory) All() []models.Notification {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Notification, len(m.sent))
	copy(out, m.sent)
	return out
}

func (m *Memory) ForRequester(requesterID string) []models.Notification {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Notification
	for _, n := range m.sent {
		if n.RequesterID == requesterID {
			out = append(out, n)
		}
	}
	return out
}

func (m *Memory) MarkRead(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.sent {
		if m.sent[i].ID == id {
			m.sent[i].Read = true
			return true
		}
	}
	return false
}
