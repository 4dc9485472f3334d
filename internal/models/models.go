package models

import "time"

type Requester struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	City string `json:"city"`
}

type ServiceRequest struct {
	ID              string     `json:"id"`
	RequesterID     string     `json:"requester_id"`
	RequesterName   string     `json:"requester_name,omitempty"`
	RequesterCity   string     `json:"requester_city"`
	ServiceCategory string     `json:"service_category"`
	RequestType     string     `json:"request_type"`
	UrgencyLevel    string     `json:"urgency_level"`
	Status          string     `json:"status"`
	SubmittedAt     time.Time  `json:"submitted_at"`
	QueuedAt        *time.Time `json:"queued_at,omitempty"`
	ProcessedAt     *time.Time `json:"processed_at,omitempty"`
}

type Resource struct {
	ID       string `json:"id"`
	Kind     string `json:"kind"`
	City     string `json:"city"`
	Capacity int    `json:"capacity"`
	Status   string `json:"status"`
}

type Assignment struct {
	ID                   string     `json:"id"`
	RequestID            string     `json:"request_id"`
	ResourceID           string     `json:"resource_id"`
	PriorityScore        int        `json:"priority_score"`
	Status               string     `json:"status"`
	AssignedAt           time.Time  `json:"assigned_at"`
	ExpectedCompletionAt time.Time  `json:"expected_completion_at"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
}

type PriorityRule struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	Key         string    `json:"key,omitempty"`
	Condition   string    `json:"condition,omitempty"`
	Weight      int       `json:"weight"`
	Active      bool      `json:"active"`
	Description string    `json:"description,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Notification struct {
	ID              string    `json:"id"`
	RequesterID     string    `json:"requester_id"`
	Message         string    `json:"message"`
	ServiceCategory string    `json:"service_category"`
	RequestType     string    `json:"request_type"`
	SentAt          time.Time `json:"sent_at"`
	Read            bool      `json:"read"`
}

type LogEntry struct {
	ID         string         `json:"id"`
	EventType  string         `json:"event_type"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id,omitempty"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}
