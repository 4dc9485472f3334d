package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/support-allocation/backend/internal/assistant"
)

// @Summary Start the allocation scheduler
// @Description Clears transient state from any previous run before starting
// @Tags scheduler
// @Produce json
// @Success 200 {object} scheduler.Status
// @Router /api/scheduler/start [post]
func (h *Handler) SchedulerStart(c *gin.Context) {
	if err := h.Scheduler.Start(c.Request.Context()); err != nil {
		writeError(c, http.StatusInternalServerError, "SCHEDULER_ERROR", "Failed to start scheduler", err.Error())
		return
	}
	c.JSON(http.StatusOK, h.Scheduler.Status())
}

func (h *Handler) SchedulerStop(c *gin.Context) {
	h.Scheduler.Stop(c.Request.Context())
	c.JSON(http.StatusOK, h.Scheduler.Status())
}

func (h *Handler) SchedulerStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.Scheduler.Status())
}

func (h *Handler) FeederStart(c *gin.Context) {
	if err := h.Feeder.Start(c.Request.Context()); err != nil {
		writeError(c, http.StatusInternalServerError, "FEEDER_ERROR", "Failed to start feeder", err.Error())
		return
	}
	c.JSON(http.StatusOK, h.Feeder.Status())
}

func (h *Handler) FeederStop(c *gin.Context) {
	if err := h.Feeder.Stop(c.Request.Context()); err != nil {
		writeError(c, http.StatusInternalServerError, "FEEDER_ERROR", "Failed to stop feeder", err.Error())
		return
	}
	c.JSON(http.StatusOK, h.Feeder.Status())
}

type chatPayload struct {
	Message string                  `json:"message" validate:"required"`
	History []assistant.ChatMessage `json:"history"`
}

// @Summary Ask the rule assistant
// @Description Answers questions about the active prioritization rules
// @Tags assistant
// @Accept json
// @Produce json
// @Param chat body chatPayload true "Question with optional history"
// @Success 200 {object} map[string]any
// @Failure 429 {object} map[string]any
// @Router /api/assistant/chat [post]
func (h *Handler) AssistantChat(c *gin.Context) {
	var payload chatPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(payload); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	ctx := c.Request.Context()
	history := payload.History
	if system := h.rulesContext(c); system != "" {
		history = append([]assistant.ChatMessage{{Role: "system", Content: system}}, history...)
	}

	answer, err := h.Assistant.Ask(ctx, payload.Message, history)
	if err != nil {
		var rle assistant.RateLimitError
		if errors.As(err, &rle) {
			writeError(c, http.StatusTooManyRequests, "RATE_LIMITED", "Assistant is rate limited", rle.Error())
			return
		}
		writeError(c, http.StatusBadGateway, "ASSISTANT_ERROR", "Assistant unavailable", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"answer": answer})
}

// rulesContext renders the active rule set as a system prompt so the
// assistant answers against the live configuration.
func (h *Handler) rulesContext(c *gin.Context) string {
	rules, err := h.Store.ActiveRules(c.Request.Context())
	if err != nil || len(rules) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("You answer questions about a support request allocation system. Active prioritization rules:\n")
	for _, r := range rules {
		if r.Condition != "" {
			fmt.Fprintf(&b, "- %s [%s] weight %d when %s\n", r.Name, r.Category, r.Weight, r.Condition)
			continue
		}
		fmt.Fprintf(&b, "- %s [%s] weight %d\n", r.Name, r.Category, r.Weight)
	}
	return b.String()
}
