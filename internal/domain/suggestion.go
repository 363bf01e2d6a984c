package domain

// Confidence levels recognized on a Suggestion. Anything else is dropped.
const (
	ConfidenceLow    = "low"
	ConfidenceMedium = "medium"
	ConfidenceHigh   = "high"
)

// ImpactEstimate is the model's optional estimate of savings for a suggestion.
type ImpactEstimate struct {
	Currency string   `json:"currency,omitempty"`
	Monthly  *float64 `json:"monthly,omitempty"`
	Yearly   *float64 `json:"yearly,omitempty"`
}

// SuggestionAction is a concrete follow-up the model proposes for a suggestion.
type SuggestionAction struct {
	Type     string `json:"type"`
	Label    string `json:"label"`
	TargetID string `json:"targetId,omitempty"`
}

// Suggestion is one validated cost-saving proposal extracted from model
// output. Type, Title, Description and TargetIDs are always present;
// everything else survives only if it passed its own type check.
type Suggestion struct {
	Type           string             `json:"type"`
	Title          string             `json:"title"`
	Description    string             `json:"description"`
	TargetIDs      []string           `json:"targetIds"`
	ImpactEstimate *ImpactEstimate    `json:"impactEstimate,omitempty"`
	Confidence     string             `json:"confidence,omitempty"`
	Actions        []SuggestionAction `json:"actions,omitempty"`
}
