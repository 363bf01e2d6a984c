package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"subtrack-assistant/internal/domain"
	"subtrack-assistant/internal/repository"
	"subtrack-assistant/internal/usecase"
)

const correlationHeader = "X-Correlation-Id"

// AssistUseCase is the mediation-layer surface consumed by the handler.
type AssistUseCase interface {
	Chat(ctx context.Context, in usecase.ChatInput) (usecase.ChatOutput, error)
	Suggest(ctx context.Context, in usecase.SuggestInput) (usecase.SuggestOutput, error)
}

// Handler adapts API Gateway events to the mediation layer and owns the
// error-code to HTTP-status mapping. The usage writer is optional; when set,
// audit failures are logged and never surfaced.
type Handler struct {
	uc    AssistUseCase
	usage repository.UsageWriter
}

type chatRequest struct {
	Messages []json.RawMessage `json:"messages"`
	Context  json.RawMessage   `json:"context"`
}

type chatResponse struct {
	Message usecase.AssistantMessage `json:"message"`
	Usage   *domain.Usage            `json:"usage,omitempty"`
}

type suggestRequest struct {
	Subscriptions []json.RawMessage `json:"subscriptions"`
	Preferences   json.RawMessage   `json:"preferences"`
	SampledAt     string            `json:"sampledAt"`
}

type suggestResponse struct {
	Suggestions []domain.Suggestion `json:"suggestions"`
	Summary     string              `json:"summary,omitempty"`
	Usage       *domain.Usage       `json:"usage,omitempty"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// NewHandler creates a Handler. usage may be nil to disable audit records.
func NewHandler(uc AssistUseCase, usage repository.UsageWriter) (*Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: use case must not be nil")
	}
	return &Handler{uc: uc, usage: usage}, nil
}

// Handle routes one API Gateway event to the matching mediation operation.
func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := resolveCorrelationID(event.Headers)

	if event.HTTPMethod != http.MethodPost {
		return respond(http.StatusMethodNotAllowed, errorResponse{Error: "METHOD_NOT_ALLOWED"}, correlationID), nil
	}

	switch event.Path {
	case "/chat":
		return h.handleChat(ctx, event.Body, correlationID), nil
	case "/suggestions":
		return h.handleSuggest(ctx, event.Body, correlationID), nil
	default:
		return respond(http.StatusNotFound, errorResponse{Error: "NOT_FOUND"}, correlationID), nil
	}
}

func (h *Handler) handleChat(ctx context.Context, body, correlationID string) events.APIGatewayProxyResponse {
	var req chatRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		return respond(http.StatusBadRequest, errorResponse{Error: string(usecase.ErrorBadRequest), Reason: "invalid_body"}, correlationID)
	}

	out, err := h.uc.Chat(ctx, usecase.ChatInput{Messages: req.Messages, Context: req.Context})
	h.recordUsage(ctx, correlationID, domain.TaskChat, out.Usage, err)
	if err != nil {
		return respondError(err, correlationID)
	}
	return respond(http.StatusOK, chatResponse{Message: out.Message, Usage: out.Usage}, correlationID)
}

func (h *Handler) handleSuggest(ctx context.Context, body, correlationID string) events.APIGatewayProxyResponse {
	var req suggestRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		return respond(http.StatusBadRequest, errorResponse{Error: string(usecase.ErrorBadRequest), Reason: "invalid_body"}, correlationID)
	}

	out, err := h.uc.Suggest(ctx, usecase.SuggestInput{
		Subscriptions: req.Subscriptions,
		Preferences:   req.Preferences,
		SampledAt:     req.SampledAt,
	})
	h.recordUsage(ctx, correlationID, domain.TaskSuggest, out.Usage, err)
	if err != nil {
		return respondError(err, correlationID)
	}
	return respond(http.StatusOK, suggestResponse{
		Suggestions: out.Suggestions,
		Summary:     out.Summary,
		Usage:       out.Usage,
	}, correlationID)
}

// recordUsage writes one best-effort audit record. Synchronous because the
// Lambda runtime may freeze background goroutines after the response.
func (h *Handler) recordUsage(ctx context.Context, correlationID, task string, usage *domain.Usage, callErr error) {
	if h.usage == nil {
		return
	}
	rec := domain.UsageRecord{
		RequestID: correlationID,
		Task:      task,
		Outcome:   outcomeCode(callErr),
		At:        time.Now(),
	}
	if usage != nil {
		rec.InputTokens = usage.InputTokens
		rec.OutputTokens = usage.OutputTokens
	}
	if err := h.usage.PutUsageRecord(ctx, rec); err != nil {
		slog.Warn("usage audit write failed", "requestId", correlationID, "err", err)
	}
}

func outcomeCode(err error) string {
	if err == nil {
		return "OK"
	}
	var ucErr *usecase.Error
	if errors.As(err, &ucErr) {
		return string(ucErr.Code)
	}
	return "INTERNAL_ERROR"
}

func respondError(err error, correlationID string) events.APIGatewayProxyResponse {
	var ucErr *usecase.Error
	if !errors.As(err, &ucErr) {
		slog.Error("unexpected use case failure", "requestId", correlationID, "err", err)
		return respond(http.StatusInternalServerError, errorResponse{Error: "INTERNAL_ERROR"}, correlationID)
	}

	status := http.StatusInternalServerError
	switch ucErr.Code {
	case usecase.ErrorBadRequest:
		status = http.StatusBadRequest
	case usecase.ErrorTimeout:
		status = http.StatusGatewayTimeout
	case usecase.ErrorModel:
		status = http.StatusBadGateway
	}
	return respond(status, errorResponse{Error: string(ucErr.Code), Reason: ucErr.Reason}, correlationID)
}

func respond(status int, body any, correlationID string) events.APIGatewayProxyResponse {
	encoded, err := json.Marshal(body)
	if err != nil {
		slog.Error("failed to encode response body", "err", err)
		status = http.StatusInternalServerError
		encoded = []byte(`{"error":"INTERNAL_ERROR"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: correlationID,
		},
		Body: string(encoded),
	}
}

// resolveCorrelationID reuses the caller-provided id when present, matching
// the header case-insensitively, and mints one otherwise.
func resolveCorrelationID(headers map[string]string) string {
	for k, v := range headers {
		if http.CanonicalHeaderKey(k) == correlationHeader && v != "" {
			return v
		}
	}
	return uuid.NewString()
}
