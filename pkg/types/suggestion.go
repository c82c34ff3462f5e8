package types

import "time"

type SuggestionType string

const (
	SuggestionDispatch    SuggestionType = "dispatch"
	SuggestionMaintenance SuggestionType = "maintenance"
	SuggestionCost        SuggestionType = "cost"
	SuggestionEfficiency  SuggestionType = "efficiency"
)

func (t SuggestionType) Valid() bool {
	switch t {
	case SuggestionDispatch, SuggestionMaintenance, SuggestionCost, SuggestionEfficiency:
		return true
	}
	return false
}

type SuggestionPriority string

const (
	PriorityHigh   SuggestionPriority = "high"
	PriorityMedium SuggestionPriority = "medium"
	PriorityLow    SuggestionPriority = "low"
)

func (p SuggestionPriority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

type SuggestionStatus string

const (
	SuggestionPending   SuggestionStatus = "pending"
	SuggestionApplied   SuggestionStatus = "applied"
	SuggestionDismissed SuggestionStatus = "dismissed"
)

func (s SuggestionStatus) Valid() bool {
	switch s {
	case SuggestionPending, SuggestionApplied, SuggestionDismissed:
		return true
	}
	return false
}

// Suggestion is an optimization recommendation for a user's fleet.
type Suggestion struct {
	ID               string             `json:"id"`
	UserID           string             `json:"user_id"`
	Type             SuggestionType     `json:"type"`
	Priority         SuggestionPriority `json:"priority"`
	Title            string             `json:"title"`
	Description      string             `json:"description"`
	ImpactMetric     string             `json:"impact_metric,omitempty"`
	ImpactValue      string             `json:"impact_value,omitempty"`
	Confidence       float64            `json:"confidence"`
	AffectedPlantIDs []string           `json:"affected_plant_ids"`
	Status           SuggestionStatus   `json:"status"`
	Metadata         map[string]any     `json:"metadata"`
	CreatedAt        time.Time          `json:"created_at"`
	AppliedAt        *time.Time         `json:"applied_at"`
	DismissedAt      *time.Time         `json:"dismissed_at"`
}

// Apply marks the suggestion applied at now.
func (s *Suggestion) Apply(now time.Time) {
	s.Status = SuggestionApplied
	s.AppliedAt = &now
}

// Dismiss marks the suggestion dismissed at now.
func (s *Suggestion) Dismiss(now time.Time) {
	s.Status = SuggestionDismissed
	s.DismissedAt = &now
}

// OptimizationSummary counts a user's suggestions by state.
type OptimizationSummary struct {
	TotalSuggestions  int    `json:"total_suggestions"`
	PendingCount      int    `json:"pending_count"`
	AppliedCount      int    `json:"applied_count"`
	DismissedCount    int    `json:"dismissed_count"`
	HighPriorityCount int    `json:"high_priority_count"`
	EstimatedSavings  string `json:"estimated_savings"`
	EfficiencyGain    string `json:"efficiency_gain"`
}
