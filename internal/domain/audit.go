package domain

import "time"

// UsageRecord is one best-effort audit entry per mediated request. It lives
// in the boundary layer only; the mediation core never persists anything.
type UsageRecord struct {
	RequestID    string
	Task         string
	Outcome      string
	InputTokens  int
	OutputTokens int
	At           time.Time
}

// Task identifiers recorded in the audit log.
const (
	TaskChat    = "chat"
	TaskSuggest = "suggestions"
)
