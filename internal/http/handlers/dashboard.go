package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/support-allocation/backend/internal/engine"
	"github.com/support-allocation/backend/internal/models"
	"github.com/support-allocation/backend/internal/store"
)

type queueEntry struct {
	Request   models.ServiceRequest `json:"request"`
	Score     int                   `json:"score"`
	Breakdown map[string]int        `json:"breakdown"`
}

type dashboardSummary struct {
	Requests struct {
		Pending   int `json:"pending"`
		Assigned  int `json:"assigned"`
		Completed int `json:"completed"`
		Queued    int `json:"queued"`
	} `json:"requests"`
	Allocations struct {
		Active    int `json:"active"`
		Completed int `json:"completed"`
	} `json:"allocations"`
	Resources         []resourceView      `json:"resources"`
	PriorityQueue     []queueEntry        `json:"priority_queue"`
	RecentAllocations []models.Assignment `json:"recent_allocations"`
	UrgencyBreakdown  map[string]int      `json:"urgency_breakdown"`
	ServiceBreakdown  map[string]int      `json:"service_breakdown"`
	GeneratedAt       time.Time           `json:"generated_at"`
}

// @Summary Dashboard summary
// @Description Request/allocation counts, resource utilization, top of the priority queue, recent allocations
// @Tags dashboard
// @Produce json
// @Success 200 {object} dashboardSummary
// @Router /api/dashboard/summary [get]
func (h *Handler) DashboardSummary(c *gin.Context) {
	ctx := c.Request.Context()
	now := time.Now().UTC()

	all, err := h.Store.ListRequests(ctx, store.RequestFilter{})
	if err != nil {
		writeError(c, http.StatusInternalServerError, "STORE_ERROR", "Failed to list requests", err.Error())
		return
	}

	var out dashboardSummary
	out.GeneratedAt = now
	out.UrgencyBreakdown = map[string]int{}
	out.ServiceBreakdown = map[string]int{}

	var pending []models.ServiceRequest
	for _, req := range all {
		out.UrgencyBreakdown[req.UrgencyLevel]++
		out.ServiceBreakdown[req.ServiceCategory]++
		switch req.Status {
		case models.RequestPending:
			out.Requests.Pending++
			if req.QueuedAt != nil {
				out.Requests.Queued++
			}
			pending = append(pending, req)
		case models.RequestAssigned:
			out.Requests.Assigned++
		case models.RequestCompleted:
			out.Requests.Completed++
		}
	}

	rules, err := h.Store.ActiveRules(ctx)
	if err != nil {
		h.Logger.Warn().Err(err).Msg("rules unavailable, queue scored with zero weights")
		rules = nil
	}
	ranked := engine.Rank(pending, rules, now)
	if len(ranked) > 10 {
		ranked = ranked[:10]
	}
	out.PriorityQueue = make([]queueEntry, 0, len(ranked))
	for _, s := range ranked {
		out.PriorityQueue = append(out.PriorityQueue, queueEntry{Request: s.Request, Score: s.Score, Breakdown: s.Breakdown})
	}

	if out.Allocations.Active, err = h.Store.CountAssignments(ctx, models.AssignmentAssigned); err != nil {
		writeError(c, http.StatusInternalServerError, "STORE_ERROR", "Failed to count assignments", err.Error())
		return
	}
	if out.Allocations.Completed, err = h.Store.CountAssignments(ctx, models.AssignmentCompleted); err != nil {
		writeError(c, http.StatusInternalServerError, "STORE_ERROR", "Failed to count assignments", err.Error())
		return
	}

	resources, err := h.Store.ListResources(ctx, "", "")
	if err != nil {
		writeError(c, http.StatusInternalServerError, "STORE_ERROR", "Failed to list resources", err.Error())
		return
	}
	loads, err := h.Store.ResourceLoads(ctx)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "STORE_ERROR", "Failed to load utilization", err.Error())
		return
	}
	out.Resources = make([]resourceView, 0, len(resources))
	for _, r := range resources {
		out.Resources = append(out.Resources, newResourceView(r, loads[r.ID]))
	}

	if out.RecentAllocations, err = h.Store.ListAssignments(ctx, "", 10); err != nil {
		writeError(c, http.StatusInternalServerError, "STORE_ERROR", "Failed to list assignments", err.Error())
		return
	}

	c.JSON(http.StatusOK, out)
}

// @Summary Query the audit trail
// @Tags logs
// @Produce json
// @Param event_type query string false "Event type filter"
// @Param entity_type query string false "Entity type filter"
// @Param entity_id query string false "Entity id filter"
// @Param limit query int false "Page size, default 50"
// @Param offset query int false "Page offset"
// @Success 200 {object} map[string]any
// @Router /api/logs [get]
func (h *Handler) LogsList(c *gin.Context) {
	f := store.LogFilter{
		EventType:  c.Query("event_type"),
		EntityType: c.Query("entity_type"),
		EntityID:   c.Query("entity_id"),
		Limit:      50,
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "limit must be a positive integer", raw)
			return
		}
		f.Limit = n
	}
	if raw := c.Query("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "offset must be a non-negative integer", raw)
			return
		}
		f.Offset = n
	}
	if raw := c.Query("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "since must be RFC3339", raw)
			return
		}
		f.Since = t
	}
	if raw := c.Query("until"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "until must be RFC3339", raw)
			return
		}
		f.Until = t
	}

	logs, total, err := h.Store.ListLogs(c.Request.Context(), f)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "STORE_ERROR", "Failed to list logs", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"logs":   logs,
		"total":  total,
		"limit":  f.Limit,
		"offset": f.Offset,
	})
}

func (h *Handler) LogsRecent(c *gin.Context) {
	logs, err := h.Store.RecentLogs(c.Request.Context(), 20)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "STORE_ERROR", "Failed to list logs", err.Error())
		return
	}
	c.JSON(http.StatusOK, logs)
}

func (h *Handler) NotificationsList(c *gin.Context) {
	c.JSON(http.StatusOK, h.Notifier.All())
}

// NotificationsForRequester lists a single requester's notifications; the
// path id is the requester id, not a notification id.
func (h *Handler) NotificationsForRequester(c *gin.Context) {
	c.JSON(http.StatusOK, h.Notifier.ForRequester(c.Param("id")))
}

func (h *Handler) NotificationRead(c *gin.Context) {
	if !h.Notifier.MarkRead(c.Param("id")) {
		writeError(c, http.StatusNotFound, "NOT_FOUND", "Notification not found", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
