package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"subtrack-assistant/internal/domain"
)

const (
	defaultChatModel    = "gemini-2.0-flash"
	defaultSuggestModel = "gemini-2.0-flash"
)

// AssistService is the mediation layer between the application's data shapes
// and the external model provider. It holds no per-request state; every
// invocation is independent.
type AssistService struct {
	invoker      ModelInvoker
	chatModel    string
	suggestModel string
	timeout      time.Duration
}

// ChatInput carries the untrusted caller payload for the chat task. Messages
// stay raw so sanitization can drop malformed entries individually.
type ChatInput struct {
	Messages []json.RawMessage
	Context  json.RawMessage
}

// AssistantMessage is the normalized reply returned to the boundary layer.
type AssistantMessage struct {
	Role        string              `json:"role"`
	Content     string              `json:"content"`
	Annotations []domain.Annotation `json:"annotations,omitempty"`
}

type ChatOutput struct {
	Message AssistantMessage
	Usage   *domain.Usage
}

// SuggestInput carries the untrusted caller payload for the suggestion task.
type SuggestInput struct {
	Subscriptions []json.RawMessage
	Preferences   json.RawMessage
	SampledAt     string
}

type SuggestOutput struct {
	Suggestions []domain.Suggestion
	Summary     string
	Usage       *domain.Usage
}

// NewAssistService wires the service. Empty model identifiers and a
// non-positive timeout fall back to the built-in defaults.
func NewAssistService(invoker ModelInvoker, chatModel, suggestModel string, timeout time.Duration) (*AssistService, error) {
	if invoker == nil {
		return nil, errors.New("usecase: model invoker must not be nil")
	}
	if chatModel == "" {
		chatModel = defaultChatModel
	}
	if suggestModel == "" {
		suggestModel = defaultSuggestModel
	}
	if timeout <= 0 {
		timeout = defaultModelTimeout
	}
	return &AssistService{
		invoker:      invoker,
		chatModel:    chatModel,
		suggestModel: suggestModel,
		timeout:      timeout,
	}, nil
}

// Chat sanitizes the conversation, issues the free-form request and returns
// the assistant's reply. An empty reply is a valid outcome.
func (s *AssistService) Chat(ctx context.Context, in ChatInput) (ChatOutput, error) {
	messages := sanitizeMessages(in.Messages)
	if len(messages) == 0 {
		return ChatOutput{}, newError(ErrorBadRequest, "no_valid_messages", nil)
	}

	req := buildChatRequest(s.chatModel, messages, sanitizeContext(in.Context))
	res, err := invokeWithTimeout(ctx, s.invoker, req, s.timeout)
	if err != nil {
		return ChatOutput{}, err
	}

	content, annotations := normalizeChatResult(res)
	return ChatOutput{
		Message: AssistantMessage{
			Role:        domain.RoleAssistant,
			Content:     content,
			Annotations: annotations,
		},
		Usage: res.Usage,
	}, nil
}

// Suggest sanitizes the snapshot, issues the structured request and returns
// the validated suggestion list.
func (s *AssistService) Suggest(ctx context.Context, in SuggestInput) (SuggestOutput, error) {
	subscriptions := sanitizeSubscriptions(in.Subscriptions)
	if len(subscriptions) == 0 {
		return SuggestOutput{}, newError(ErrorBadRequest, "no_valid_subscriptions", nil)
	}

	req, err := buildSuggestRequest(s.suggestModel, subscriptions, sanitizePreferences(in.Preferences), in.SampledAt)
	if err != nil {
		return SuggestOutput{}, newError(ErrorModel, "snapshot_encode_error", err)
	}

	res, err := invokeWithTimeout(ctx, s.invoker, req, s.timeout)
	if err != nil {
		return SuggestOutput{}, err
	}

	doc, err := parseSuggestionsDocument(res.Text)
	if err != nil {
		return SuggestOutput{}, err
	}

	suggestions, summary := normalizeSuggestions(doc)
	return SuggestOutput{
		Suggestions: suggestions,
		Summary:     summary,
		Usage:       res.Usage,
	}, nil
}
