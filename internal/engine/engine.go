// Package engine computes priority scores for pending service requests
// against the currently active rule set.
package engine

import (
	"regexp"
	"sort"
	"time"

	"github.com/support-allocation/backend/internal/models"
)

// Breakdown keys reported by Score.
const (
	PartUrgency     = "urgency"
	PartService     = "service"
	PartRequestType = "requestType"
	PartWaiting     = "waiting"
	PartCustom      = "custom"
)

var conditionRe = regexp.MustCompile(`^\s*(\w+)\s*==\s*'([^']*)'\s*$`)

// Score computes the priority of a request at the given instant. It is a pure
// function of its inputs; a nil or empty rule set degrades to all-zero
// weights rather than failing. Weights may be negative, so the total may be
// negative too.
func Score(req models.ServiceRequest, rules []models.PriorityRule, now time.Time) (int, map[string]int) {
	breakdown := map[string]int{
		PartUrgency:     weight(rules, models.RuleCategoryUrgency, req.UrgencyLevel),
		PartService:     weight(rules, models.RuleCategoryService, req.ServiceCategory),
		PartRequestType: weight(rules, models.RuleCategoryRequestType, req.RequestType),
	}

	waitingSeconds := int(now.Sub(req.SubmittedAt).Seconds())
	if waitingSeconds < 0 {
		waitingSeconds = 0
	}
	breakdown[PartWaiting] = waitingSeconds * weight(rules, models.RuleCategoryWaitingTime, models.WaitingBonusKey)

	custom := 0
	for _, r := range rules {
		if !r.Active || r.Category != models.RuleCategoryCustom {
			continue
		}
		if EvaluateCondition(r.Condition, req) {
			custom += r.Weight
		}
	}
	breakdown[PartCustom] = custom

	total := 0
	for _, v := range breakdown {
		total += v
	}
	return total, breakdown
}

func weight(rules []models.PriorityRule, category, key string) int {
	for _, r := range rules {
		if r.Active && r.Category == category && r.Key == key {
			return r.Weight
		}
	}
	return 0
}

// EvaluateCondition evaluates a custom rule condition of the form
// `field == 'literal'` against a request. Unparseable conditions and unknown
// fields evaluate to false, never to an error.
func EvaluateCondition(condition string, req models.ServiceRequest) bool {
	m := conditionRe.FindStringSubmatch(condition)
	if m == nil {
		return false
	}
	field, literal := m[1], m[2]
	switch field {
	case "urgencyLevel":
		return req.UrgencyLevel == literal
	case "serviceCategory":
		return req.ServiceCategory == literal
	case "requestType":
		return req.RequestType == literal
	case "requesterCity":
		return req.RequesterCity == literal
	default:
		return false
	}
}

// ValidCondition reports whether a condition parses and references a known
// request field. Used by the rules API to reject conditions that would
// silently never match.
func ValidCondition(condition string) bool {
	m := conditionRe.FindStringSubmatch(condition)
	if m == nil {
		return false
	}
	switch m[1] {
	case "urgencyLevel", "serviceCategory", "requestType", "requesterCity":
		return true
	default:
		return false
	}
}

// Scored pairs a request with its computed priority.
type Scored struct {
	Request   models.ServiceRequest
	Score     int
	Breakdown map[string]int
}

// Rank scores every request at the same instant and orders them for
// allocation: highest score first, ties broken by earliest submission, then
// by id so the order is fully deterministic.
func Rank(reqs []models.ServiceRequest, rules []models.PriorityRule, now time.Time) []Scored {
	out := make([]Scored, 0, len(reqs))
	for _, req := range reqs {
		total, breakdown := Score(req, rules, now)
		out = append(out, Scored{Request: req, Score: total, Breakdown: breakdown})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if !out[i].Request.SubmittedAt.Equal(out[j].Request.SubmittedAt) {
			return out[i].Request.SubmittedAt.Before(out[j].Request.SubmittedAt)
		}
		return out[i].Request.ID < out[j].Request.ID
	})
	return out
}
