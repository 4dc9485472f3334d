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

func (h *Handler) RulesList(c *gin.Context) {
	rules, err := h.Store.ListRules(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusInternalServerError, "STORE_ERROR", "Failed to list rules", err.Error())
		return
	}
	c.JSON(http.StatusOK, rules)
}

func (h *Handler) RulesByCategory(c *gin.Context) {
	rules, err := h.Store.ListRules(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusInternalServerError, "STORE_ERROR", "Failed to list rules", err.Error())
		return
	}
	grouped := map[string][]models.PriorityRule{}
	for _, r := range rules {
		grouped[r.Category] = append(grouped[r.Category], r)
	}
	c.JSON(http.StatusOK, grouped)
}

type createRulePayload struct {
	Name        string `json:"name" validate:"required"`
	Condition   string `json:"condition" validate:"required"`
	Weight      int    `json:"weight" validate:"required"`
	Description string `json:"description"`
}

// @Summary Create a custom prioritization rule
// @Description Only CUSTOM rules can be created; built-in categories are edited in place
// @Tags rules
// @Accept json
// @Produce json
// @Param rule body createRulePayload true "New rule"
// @Success 201 {object} models.PriorityRule
// @Failure 400 {object} map[string]any
// @Router /api/rules [post]
func (h *Handler) RuleCreate(c *gin.Context) {
	var payload createRulePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(payload); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}
	if !engine.ValidCondition(payload.Condition) {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Condition must be of the form field == 'value' over a known field", payload.Condition)
		return
	}

	ctx := c.Request.Context()
	rule, err := h.Store.CreateRule(ctx, models.PriorityRule{
		Name:        payload.Name,
		Category:    models.RuleCategoryCustom,
		Condition:   payload.Condition,
		Weight:      payload.Weight,
		Active:      true,
		Description: payload.Description,
	})
	if err != nil {
		writeError(c, http.StatusInternalServerError, "STORE_ERROR", "Failed to create rule", err.Error())
		return
	}

	h.Bus.Publish(ctx, events.Event{Kind: events.KindRulesUpdated, EntityID: rule.ID, Payload: rule, At: time.Now().UTC()})
	c.JSON(http.StatusCreated, rule)
}

type updateRulePayload struct {
	Name        *string `json:"name"`
	Weight      *int    `json:"weight"`
	Active      *bool   `json:"active"`
	Condition   *string `json:"condition"`
	Description *string `json:"description"`
}

func (h *Handler) RuleUpdate(c *gin.Context) {
	var payload updateRulePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if payload.Condition != nil && !engine.ValidCondition(*payload.Condition) {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Condition must be of the form field == 'value' over a known field", *payload.Condition)
		return
	}

	ctx := c.Request.Context()
	rule, err := h.Store.UpdateRule(ctx, c.Param("id"), store.RuleUpdate{
		Name:        payload.Name,
		Weight:      payload.Weight,
		Active:      payload.Active,
		Condition:   payload.Condition,
		Description: payload.Description,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Rule not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "STORE_ERROR", "Failed to update rule", err.Error())
		return
	}

	h.Bus.Publish(ctx, events.Event{Kind: events.KindRulesUpdated, EntityID: rule.ID, Payload: rule, At: time.Now().UTC()})
	c.JSON(http.StatusOK, rule)
}

func (h *Handler) RuleDelete(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	rule, err := h.Store.GetRule(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Rule not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "STORE_ERROR", "Failed to load rule", err.Error())
		return
	}
	if rule.Category != models.RuleCategoryCustom {
		writeError(c, http.StatusBadRequest, "INVALID_STATE", "Only CUSTOM rules can be deleted", rule.Category)
		return
	}
	if err := h.Store.DeleteRule(ctx, id); err != nil {
		writeError(c, http.StatusInternalServerError, "STORE_ERROR", "Failed to delete rule", err.Error())
		return
	}

	h.Bus.Publish(ctx, events.Event{Kind: events.KindRulesUpdated, EntityID: id, At: time.Now().UTC()})
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
