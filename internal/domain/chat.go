package domain

// Conversation roles accepted from callers.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ChatMessage is a single sanitized conversation turn.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatContext carries optional free-form hints folded into the system
// instruction. Absent fields are empty strings and are simply not emitted.
type ChatContext struct {
	Timezone  string `json:"timezone,omitempty"`
	Currency  string `json:"currency,omitempty"`
	Locale    string `json:"locale,omitempty"`
	SampledAt string `json:"sampledAt,omitempty"`
}

// Citation points at source material the model reports for generated text.
type Citation struct {
	URI     string `json:"uri,omitempty"`
	License string `json:"license,omitempty"`
}

// SafetyRating is a provider-reported content rating.
type SafetyRating struct {
	Category    string `json:"category"`
	Probability string `json:"probability"`
}

// Annotation attaches provider metadata to an assistant message. Exactly one
// of Citations or Rating is populated depending on Type.
type Annotation struct {
	Type      string        `json:"type"`
	Citations []Citation    `json:"citations,omitempty"`
	Rating    *SafetyRating `json:"rating,omitempty"`
}

// Annotation types.
const (
	AnnotationCitations = "citations"
	AnnotationSafety    = "safety"
)

// Usage reports token accounting when the provider surfaces it.
type Usage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}
