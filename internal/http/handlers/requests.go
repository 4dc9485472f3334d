package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/support-allocation/backend/internal/engine"
	"github.com/support-allocation/backend/internal/events"
	"github.com/support-allocation/backend/internal/models"
	"github.com/support-allocation/backend/internal/store"
)

type requestView struct {
	models.ServiceRequest
	PriorityScore *int `json:"priority_score,omitempty"`
}

// @Summary List service requests
// @Description PENDING requests carry their live priority score
// @Tags requests
// @Produce json
// @Param status query string false "PENDING | ASSIGNED | COMPLETED"
// @Param urgency query string false "HIGH | MEDIUM | LOW"
// @Param service query string false "Service category"
// @Success 200 {array} requestView
// @Router /api/requests [get]
func (h *Handler) RequestsList(c *gin.Context) {
	reqs, err := h.Store.ListRequests(c.Request.Context(), store.RequestFilter{
		Status:  c.Query("status"),
		Urgency: c.Query("urgency"),
		Service: c.Query("service"),
	})
	if err != nil {
		writeError(c, http.StatusInternalServerError, "STORE_ERROR", "Failed to list requests", err.Error())
		return
	}

	rules, err := h.Store.ActiveRules(c.Request.Context())
	if err != nil {
		h.Logger.Warn().Err(err).Msg("rules unavailable, scores omitted")
		rules = nil
	}

	now := time.Now().UTC()
	out := make([]requestView, 0, len(reqs))
	for _, req := range reqs {
		v := requestView{ServiceRequest: req}
		if req.Status == models.RequestPending {
			score, _ := engine.Score(req, rules, now)
			v.PriorityScore = &score
		}
		out = append(out, v)
	}
	c.JSON(http.StatusOK, out)
}

type createRequestPayload struct {
	RequesterID     string `json:"requester_id" validate:"required"`
	RequestType     string `json:"request_type" validate:"required"`
	ServiceCategory string `json:"service_category"`
	UrgencyLevel    string `json:"urgency_level" validate:"required,oneof=HIGH MEDIUM LOW"`
}

// @Summary Submit a service request
// @Tags requests
// @Accept json
// @Produce json
// @Param request body createRequestPayload true "New request"
// @Success 201 {object} models.ServiceRequest
// @Failure 400 {object} map[string]any
// @Router /api/requests [post]
func (h *Handler) RequestCreate(c *gin.Context) {
	var payload createRequestPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(payload); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	category, ok := models.RequestTypeCategory[payload.RequestType]
	if !ok {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Unknown request type", payload.RequestType)
		return
	}
	if payload.ServiceCategory != "" && payload.ServiceCategory != category {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Service category does not match request type", nil)
		return
	}

	ctx := c.Request.Context()
	if _, err := h.Store.GetRequester(ctx, payload.RequesterID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Requester not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "STORE_ERROR", "Failed to load requester", err.Error())
		return
	}

	req, err := h.Store.CreateRequest(ctx, models.ServiceRequest{
		RequesterID:     payload.RequesterID,
		ServiceCategory: category,
		RequestType:     payload.RequestType,
		UrgencyLevel:    payload.UrgencyLevel,
	})
	if err != nil {
		writeError(c, http.StatusInternalServerError, "STORE_ERROR", "Failed to create request", err.Error())
		return
	}

	if err := h.Trail.RequestCreated(ctx, req); err != nil {
		h.Logger.Warn().Err(err).Str("request_id", req.ID).Msg("audit write failed")
	}
	h.Bus.Publish(ctx, events.Event{Kind: events.KindRequestCreated, EntityID: req.ID, Payload: req, At: req.SubmittedAt})

	c.JSON(http.StatusCreated, req)
}
