package assistant

import (
	"context"
	"fmt"
	"strings"

	"github.com/support-allocation/backend/internal/models"
	"github.com/support-allocation/backend/internal/store"
)

// Mock answers without a backend so the admin chat works in demo
// deployments. Replies are deterministic and derived from the active rule
// set.
type Mock struct {
	Rules store.RuleStore
}

func (m Mock) Ask(ctx context.Context, prompt string, history []ChatMessage) (string, error) {
	var rules []models.PriorityRule
	if m.Rules != nil {
		var err error
		rules, err = m.Rules.ActiveRules(ctx)
		if err != nil {
			return "", err
		}
	}

	lower := strings.ToLower(prompt)
	switch {
	case strings.Contains(lower, "rule"), strings.Contains(lower, "weight"), strings.Contains(lower, "priority"):
		if len(rules) == 0 {
			return "No prioritization rules are active. All requests are ranked purely by submission time.", nil
		}
		var b strings.Builder
		fmt.Fprintf(&b, "There are %d active prioritization rules:\n", len(rules))
		for _, r := range rules {
			if r.Condition != "" {
				fmt.Fprintf(&b, "- %s (%s): +%d when %s\n", r.Name, r.Category, r.Weight, r.Condition)
				continue
			}
			fmt.Fprintf(&b, "- %s (%s): weight %d\n", r.Name, r.Category, r.Weight)
		}
		b.WriteString("A request's score is the sum of every matching rule plus the per-second waiting bonus.")
		return b.String(), nil
	case strings.Contains(lower, "queue"), strings.Contains(lower, "waiting"):
		return "Queued requests accumulate a waiting bonus every second, so long-waiting requests eventually outrank newer high-urgency ones.", nil
	default:
		return "I can explain the active prioritization rules, weights, and how the waiting queue is ordered. Ask about a specific rule or category.", nil
	}
}
