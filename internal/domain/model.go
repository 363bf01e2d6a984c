package domain

import "encoding/json"

// Turn roles understood by the model provider. The provider only
// distinguishes caller text from its own prior output.
const (
	TurnRoleUser  = "user"
	TurnRoleModel = "model"
)

// ModelTurn is one role-tagged text turn sent to the provider.
type ModelTurn struct {
	Role string
	Text string
}

// GenerationConfig carries the sampling and output-shape parameters for a
// single model request. ResponseMIMEType/ResponseSchema are set only for
// structured tasks.
type GenerationConfig struct {
	Temperature      float64
	TopP             float64
	TopK             int
	MaxOutputTokens  int
	ResponseMIMEType string
	ResponseSchema   json.RawMessage
}

// ModelRequest is a fully-assembled, provider-agnostic model request.
type ModelRequest struct {
	Model             string
	Turns             []ModelTurn
	SystemInstruction string
	Generation        GenerationConfig
}

// ModelResult is the raw outcome of a model call before normalization.
// Usage is nil when the provider reported no recognizable token counts.
type ModelResult struct {
	Text          string
	Citations     []Citation
	SafetyRatings []SafetyRating
	Usage         *Usage
}
