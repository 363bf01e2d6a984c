package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"subtrack-assistant/internal/domain"
)

// content is one role-tagged block of the generateContent wire format.
type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature      *float64        `json:"temperature,omitempty"`
	TopP             *float64        `json:"topP,omitempty"`
	TopK             *int            `json:"topK,omitempty"`
	MaxOutputTokens  *int            `json:"maxOutputTokens,omitempty"`
	ResponseMimeType string          `json:"responseMimeType,omitempty"`
	ResponseSchema   json.RawMessage `json:"responseSchema,omitempty"`
}

// generateRequest is the minimal request shape for the generateContent endpoint.
type generateRequest struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type citationSource struct {
	URI     string `json:"uri"`
	License string `json:"license"`
}

type citationMetadata struct {
	CitationSources []citationSource `json:"citationSources"`
}

type safetyRating struct {
	Category    string `json:"category"`
	Probability string `json:"probability"`
}

// generateResponse is the minimal response shape returned by the
// generateContent endpoint. usageMetadata stays raw because the API has
// shipped different token-count field names over time.
type generateResponse struct {
	Candidates []struct {
		Content          content           `json:"content"`
		CitationMetadata *citationMetadata `json:"citationMetadata"`
		SafetyRatings    []safetyRating    `json:"safetyRatings"`
	} `json:"candidates"`
	UsageMetadata json.RawMessage `json:"usageMetadata"`
}

// apiKeyPayload is the expected JSON shape stored in SSM for the API key.
type apiKeyPayload struct {
	APIKey string `json:"apiKey"`
}

type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("gemini: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client is a focused client for the generative-language generateContent API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	apiKey     string
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient fetches the API key from SSM immediately so a missing credential
// fails process startup rather than the first request. The transport timeout
// is intentionally wider than the gateway deadline; abandoned calls are still
// bounded by it.
func NewClient(ctx context.Context, ps Getter, paramPrefix string, opts ...Option) (*Client, error) {
	if ps == nil {
		return nil, errors.New("gemini: paramstore getter must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("gemini: parameter prefix must not be empty")
	}
	apiKey, err := fetchAPIKeyFromParamStore(ctx, ps, paramPrefix+"/gemini-api-key")
	if err != nil {
		return nil, err
	}
	c := &Client{
		baseURL:    "https://generativelanguage.googleapis.com",
		httpClient: &http.Client{Timeout: 60 * time.Second},
		apiKey:     apiKey,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func generateURL(baseURL, model string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = "https://generativelanguage.googleapis.com"
	}
	return base + "/v1beta/models/" + model + ":generateContent"
}

// resolvedHTTPClient returns the configured HTTP client, or a default if none
// was set (e.g. in tests that nil out the field).
func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return &http.Client{Timeout: 60 * time.Second}
}

// Generate issues a single generateContent call and maps the response to the
// provider-agnostic result shape.
func (c *Client) Generate(ctx context.Context, mreq domain.ModelRequest) (domain.ModelResult, error) {
	if mreq.Model == "" {
		return domain.ModelResult{}, errors.New("gemini: model must not be empty")
	}

	body, err := json.Marshal(toWireRequest(mreq))
	if err != nil {
		return domain.ModelResult{}, fmt.Errorf("gemini: marshal request: %w", err)
	}

	url := generateURL(c.baseURL, mreq.Model)

	req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if reqErr != nil {
		return domain.ModelResult{}, fmt.Errorf("gemini: create request: %w", reqErr)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	raw, err := c.doJSONRequest(req, url)
	if err != nil {
		return domain.ModelResult{}, fmt.Errorf("gemini: request failed: %w", err)
	}

	var payload generateResponse
	if decErr := json.Unmarshal(raw, &payload); decErr != nil {
		return domain.ModelResult{}, fmt.Errorf("gemini: decode response: %w", decErr)
	}
	if len(payload.Candidates) == 0 {
		return domain.ModelResult{}, errors.New("gemini: no candidates in response")
	}

	return toModelResult(payload), nil
}

func toWireRequest(mreq domain.ModelRequest) generateRequest {
	contents := make([]content, 0, len(mreq.Turns))
	for _, turn := range mreq.Turns {
		contents = append(contents, content{
			Role:  turn.Role,
			Parts: []part{{Text: turn.Text}},
		})
	}

	out := generateRequest{Contents: contents}
	if mreq.SystemInstruction != "" {
		out.SystemInstruction = &content{Parts: []part{{Text: mreq.SystemInstruction}}}
	}

	gen := mreq.Generation
	cfg := &generationConfig{
		Temperature:      &gen.Temperature,
		TopP:             &gen.TopP,
		ResponseMimeType: gen.ResponseMIMEType,
		ResponseSchema:   gen.ResponseSchema,
	}
	if gen.TopK > 0 {
		topK := gen.TopK
		cfg.TopK = &topK
	}
	if gen.MaxOutputTokens > 0 {
		maxTokens := gen.MaxOutputTokens
		cfg.MaxOutputTokens = &maxTokens
	}
	out.GenerationConfig = cfg
	return out
}

func toModelResult(payload generateResponse) domain.ModelResult {
	candidate := payload.Candidates[0]

	var sb strings.Builder
	for _, p := range candidate.Content.Parts {
		sb.WriteString(p.Text)
	}

	result := domain.ModelResult{
		Text:  sb.String(),
		Usage: extractUsage(payload.UsageMetadata),
	}
	if candidate.CitationMetadata != nil {
		for _, src := range candidate.CitationMetadata.CitationSources {
			result.Citations = append(result.Citations, domain.Citation{
				URI:     src.URI,
				License: src.License,
			})
		}
	}
	for _, r := range candidate.SafetyRatings {
		result.SafetyRatings = append(result.SafetyRatings, domain.SafetyRating{
			Category:    r.Category,
			Probability: r.Probability,
		})
	}
	return result
}

// Token-count field names the API has used across versions, newest first.
var (
	inputTokenFields  = []string{"promptTokenCount", "promptTokens", "inputTokens"}
	outputTokenFields = []string{"candidatesTokenCount", "candidatesTokens", "outputTokens"}
)

// extractUsage looks up token counts by ordered candidate field names; the
// first present numeric value wins per side. Missing or malformed metadata
// yields nil, never an error.
func extractUsage(raw json.RawMessage) *domain.Usage {
	if len(raw) == 0 {
		return nil
	}
	var meta map[string]any
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil
	}

	input, okIn := lookupTokenCount(meta, inputTokenFields)
	output, okOut := lookupTokenCount(meta, outputTokenFields)
	if !okIn && !okOut {
		return nil
	}
	return &domain.Usage{InputTokens: input, OutputTokens: output}
}

func lookupTokenCount(meta map[string]any, names []string) (int, bool) {
	for _, name := range names {
		v, present := meta[name]
		if !present {
			continue
		}
		if f, ok := v.(float64); ok {
			return int(f), true
		}
	}
	return 0, false
}

func (c *Client) doJSONRequest(req *http.Request, url string) ([]byte, error) {
	res, doErr := c.resolvedHTTPClient().Do(req)
	if doErr != nil {
		return nil, doErr
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        url,
			Body:       string(buf),
		}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return buf, nil
}

func fetchAPIKeyFromParamStore(ctx context.Context, getter Getter, name string) (string, error) {
	raw, err := getter.GetParameter(ctx, name)
	if err != nil {
		return "", fmt.Errorf("gemini: fetch API key from paramstore: %w", err)
	}
	var kp apiKeyPayload
	if err := json.Unmarshal([]byte(raw), &kp); err != nil {
		return "", fmt.Errorf("gemini: unmarshal paramstore API key value as JSON: %w", err)
	}
	if kp.APIKey == "" {
		return "", errors.New("gemini: API key is empty")
	}
	return kp.APIKey, nil
}
