package usecase

import (
	"encoding/json"
	"fmt"
	"strings"

	"subtrack-assistant/internal/domain"
)

const maxPromptLen = 20000

// buildChatRequest maps the sanitized conversation onto the provider's two
// turn roles. System-role contents never become turns; they are concatenated
// with the context hints into the single system instruction.
func buildChatRequest(model string, messages []domain.ChatMessage, ctx domain.ChatContext) domain.ModelRequest {
	turns := make([]domain.ModelTurn, 0, len(messages))
	var systemParts []string
	for _, m := range messages {
		switch m.Role {
		case domain.RoleAssistant:
			turns = append(turns, domain.ModelTurn{Role: domain.TurnRoleModel, Text: m.Content})
		case domain.RoleSystem:
			systemParts = append(systemParts, m.Content)
		default:
			turns = append(turns, domain.ModelTurn{Role: domain.TurnRoleUser, Text: m.Content})
		}
	}
	return domain.ModelRequest{
		Model:             model,
		Turns:             turns,
		SystemInstruction: buildSystemInstruction(systemParts, ctx),
		Generation: domain.GenerationConfig{
			Temperature:     0.7,
			TopP:            0.95,
			TopK:            40,
			MaxOutputTokens: 2048,
		},
	}
}

// buildSystemInstruction joins system-role contents with context hints.
// Returns "" when there is nothing to say, in which case no system
// instruction is attached to the request.
func buildSystemInstruction(systemParts []string, ctx domain.ChatContext) string {
	parts := make([]string, 0, len(systemParts)+4)
	parts = append(parts, systemParts...)

	var hints []string
	for _, h := range []struct{ key, value string }{
		{"Timezone", ctx.Timezone},
		{"Currency", ctx.Currency},
		{"Locale", ctx.Locale},
		{"SampledAt", ctx.SampledAt},
	} {
		if h.value != "" {
			hints = append(hints, fmt.Sprintf("%s: %s", h.key, h.value))
		}
	}
	if len(hints) > 0 {
		parts = append(parts, strings.Join(hints, "\n"))
	}
	return strings.Join(parts, "\n\n")
}

// snapshotDocument is the JSON document embedded in the suggestion prompt.
type snapshotDocument struct {
	Subscriptions []domain.SubscriptionSnapshotItem `json:"subscriptions"`
	Preferences   *domain.SuggestPreferences        `json:"preferences,omitempty"`
	SampledAt     string                            `json:"sampledAt,omitempty"`
}

// buildSuggestRequest assembles the structured suggestion task: a single user
// turn carrying the grounding rules and the fenced snapshot, plus the output
// schema and deterministic sampling.
func buildSuggestRequest(model string, subs []domain.SubscriptionSnapshotItem, prefs *domain.SuggestPreferences, sampledAt string) (domain.ModelRequest, error) {
	doc, err := json.Marshal(snapshotDocument{
		Subscriptions: subs,
		Preferences:   prefs,
		SampledAt:     strings.TrimSpace(sampledAt),
	})
	if err != nil {
		return domain.ModelRequest{}, fmt.Errorf("usecase: marshal snapshot: %w", err)
	}

	prompt := strings.Join([]string{
		"Task:",
		"Analyze the subscription snapshot below and propose cost-saving suggestions.",
		"",
		"Rules:",
		"1) Ground every suggestion only in the snapshot data. Do not invent subscriptions.",
		"2) Use only snapshot ids in targetIds.",
		"3) Prefer concrete, actionable suggestions (cancel, downgrade, switch billing cycle, bundle).",
		"4) Respect the user's preferences when present.",
		"",
		"Snapshot:",
		"```json",
		string(doc),
		"```",
	}, "\n")

	return domain.ModelRequest{
		Model: model,
		Turns: []domain.ModelTurn{
			{Role: domain.TurnRoleUser, Text: truncate(prompt, maxPromptLen)},
		},
		Generation: domain.GenerationConfig{
			Temperature:      0.2,
			TopP:             0.95,
			TopK:             40,
			MaxOutputTokens:  1024,
			ResponseMIMEType: "application/json",
			ResponseSchema:   suggestionsResponseSchema(),
		},
	}, nil
}

// suggestionsResponseSchema declares the output shape the provider must
// return for the suggestion task.
func suggestionsResponseSchema() json.RawMessage {
	return json.RawMessage(`{
		"type":"OBJECT",
		"properties":{
			"suggestions":{
				"type":"ARRAY",
				"items":{
					"type":"OBJECT",
					"properties":{
						"type":{"type":"STRING"},
						"title":{"type":"STRING"},
						"description":{"type":"STRING"},
						"targetIds":{"type":"ARRAY","items":{"type":"STRING"}},
						"impactEstimate":{
							"type":"OBJECT",
							"properties":{
								"currency":{"type":"STRING"},
								"monthly":{"type":"NUMBER"},
								"yearly":{"type":"NUMBER"}
							}
						},
						"confidence":{"type":"STRING"},
						"actions":{
							"type":"ARRAY",
							"items":{
								"type":"OBJECT",
								"properties":{
									"type":{"type":"STRING"},
									"label":{"type":"STRING"},
									"targetId":{"type":"STRING"}
								},
								"required":["type","label"]
							}
						}
					},
					"required":["type","title","description","targetIds"]
				}
			},
			"summary":{"type":"STRING"}
		},
		"required":["suggestions"]
	}`)
}
