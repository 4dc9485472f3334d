package models

// Request statuses. Transitions are strictly PENDING -> ASSIGNED -> COMPLETED.
const (
	RequestPending   = "PENDING"
	RequestAssigned  = "ASSIGNED"
	RequestCompleted = "COMPLETED"
)

// Resource statuses. BUSY iff the active assignment count has reached capacity.
const (
	ResourceAvailable = "AVAILABLE"
	ResourceBusy      = "BUSY"
)

// Assignment statuses.
const (
	AssignmentAssigned  = "ASSIGNED"
	AssignmentCompleted = "COMPLETED"
)

// Resource kinds.
const (
	KindTechTeam     = "TECH_TEAM"
	KindSupportAgent = "SUPPORT_AGENT"
)

// Urgency levels.
const (
	UrgencyHigh   = "HIGH"
	UrgencyMedium = "MEDIUM"
	UrgencyLow    = "LOW"
)

// Rule categories.
const (
	RuleCategoryUrgency     = "URGENCY"
	RuleCategoryService     = "SERVICE"
	RuleCategoryRequestType = "REQUEST_TYPE"
	RuleCategoryWaitingTime = "WAITING_TIME"
	RuleCategoryCustom      = "CUSTOM"
)

// WaitingBonusKey selects the per-second waiting bonus rule. The bonus
// granularity is per elapsed second of waiting, not per 10-minute bucket.
const WaitingBonusKey = "BONUS_PER_SECOND"

// DefaultWaitingBonusPerSecond is seeded when no WAITING_TIME rule exists.
const DefaultWaitingBonusPerSecond = 2

var ServiceCategories = []string{"Superonline", "Paycell", "TV+"}

var RequestTypes = []string{
	"CONNECTION_ISSUE",
	"PAYMENT_PROBLEM",
	"STREAMING_ISSUE",
	"SPEED_COMPLAINT",
}

// RequestTypeCategory maps each request type to its single service category.
var RequestTypeCategory = map[string]string{
	"CONNECTION_ISSUE": "Superonline",
	"SPEED_COMPLAINT":  "Superonline",
	"PAYMENT_PROBLEM":  "Paycell",
	"STREAMING_ISSUE":  "TV+",
}

var Cities = []string{"Istanbul", "Ankara", "Izmir", "Bursa"}

var DefaultUrgencyWeights = map[string]int{
	UrgencyHigh:   50,
	UrgencyMedium: 30,
	UrgencyLow:    10,
}

var DefaultServiceWeights = map[string]int{
	"Superonline": 20,
	"Paycell":     10,
	"TV+":         5,
}
