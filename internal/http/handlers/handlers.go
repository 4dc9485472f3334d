package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/support-allocation/backend/internal/assistant"
	"github.com/support-allocation/backend/internal/audit"
	"github.com/support-allocation/backend/internal/events"
	"github.com/support-allocation/backend/internal/feeder"
	"github.com/support-allocation/backend/internal/notify"
	"github.com/support-allocation/backend/internal/scheduler"
	"github.com/support-allocation/backend/internal/store"
)

type Handler struct {
	Store     store.Store
	Scheduler *scheduler.Scheduler
	Feeder    *feeder.Feeder
	Bus       events.Bus
	Trail     *audit.Trail
	Notifier  *notify.Memory
	Assistant assistant.Assistant
	Validator *validator.Validate
	Logger    zerolog.Logger
}

func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	if err := h.Store.Ping(ctx); err != nil {
		writeError(c, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Store unavailable", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func writeError(c *gin.Context, status int, code string, message string, details any) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}
