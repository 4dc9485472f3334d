package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/support-allocation/backend/internal/models"
	"github.com/support-allocation/backend/internal/store"
)

type resourceView struct {
	models.Resource
	ActiveAssignments int     `json:"active_assignments"`
	Utilization       float64 `json:"utilization"`
}

// @Summary List resources with utilization
// @Tags resources
// @Produce json
// @Param city query string false "Filter by city"
// @Param status query string false "AVAILABLE | BUSY"
// @Success 200 {array} resourceView
// @Router /api/resources [get]
func (h *Handler) ResourcesList(c *gin.Context) {
	ctx := c.Request.Context()
	resources, err := h.Store.ListResources(ctx, c.Query("city"), c.Query("status"))
	if err != nil {
		writeError(c, http.StatusInternalServerError, "STORE_ERROR", "Failed to list resources", err.Error())
		return
	}
	loads, err := h.Store.ResourceLoads(ctx)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "STORE_ERROR", "Failed to load utilization", err.Error())
		return
	}

	out := make([]resourceView, 0, len(resources))
	for _, r := range resources {
		out = append(out, newResourceView(r, loads[r.ID]))
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) ResourceGet(c *gin.Context) {
	ctx := c.Request.Context()
	r, err := h.Store.GetResource(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Resource not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "STORE_ERROR", "Failed to load resource", err.Error())
		return
	}
	loads, err := h.Store.ResourceLoads(ctx)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "STORE_ERROR", "Failed to load utilization", err.Error())
		return
	}
	c.JSON(http.StatusOK, newResourceView(r, loads[r.ID]))
}

func newResourceView(r models.Resource, active int) resourceView {
	v := resourceView{Resource: r, ActiveAssignments: active}
	if r.Capacity > 0 {
		v.Utilization = float64(active) / float64(r.Capacity)
	}
	return v
}

// @Summary List assignments
// @Tags allocations
// @Produce json
// @Param status query string false "ASSIGNED | COMPLETED"
// @Param limit query int false "Max rows, default 50"
// @Success 200 {array} models.Assignment
// @Router /api/allocations [get]
func (h *Handler) AllocationsList(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "limit must be a positive integer", raw)
			return
		}
		limit = n
	}
	out, err := h.Store.ListAssignments(c.Request.Context(), c.Query("status"), limit)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "STORE_ERROR", "Failed to list assignments", err.Error())
		return
	}
	c.JSON(http.StatusOK, out)
}
