package usecase

import (
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"subtrack-assistant/internal/domain"
)

const (
	maxSuggestionTypeLen = 64
	maxTitleLen          = 200
	maxDescriptionLen    = 2000
	maxSummaryLen        = 1000
	maxActionTypeLen     = 64
	maxActionLabelLen    = 120
)

// normalizeChatResult shapes the raw model output into the assistant message
// payload. Empty text is a valid result. Citations win over safety ratings
// when both are present.
func normalizeChatResult(res domain.ModelResult) (string, []domain.Annotation) {
	if len(res.Citations) > 0 {
		return res.Text, []domain.Annotation{{
			Type:      domain.AnnotationCitations,
			Citations: res.Citations,
		}}
	}
	if len(res.SafetyRatings) > 0 {
		annotations := make([]domain.Annotation, 0, len(res.SafetyRatings))
		for i := range res.SafetyRatings {
			rating := res.SafetyRatings[i]
			annotations = append(annotations, domain.Annotation{
				Type:   domain.AnnotationSafety,
				Rating: &rating,
			})
		}
		return res.Text, annotations
	}
	return res.Text, nil
}

// suggestionsDocument is the expected top-level shape of the structured task
// output. Both fields stay untyped: a suggestions field of the wrong shape
// degrades to an empty list rather than failing the whole parse.
type suggestionsDocument struct {
	Suggestions any `json:"suggestions"`
	Summary     any `json:"summary"`
}

// Fenced-block fallbacks for models that wrap JSON in markdown despite the
// declared response MIME type. json-tagged fences are preferred; a bare fence
// is the last resort. First match wins within each pattern.
var (
	fencedJSONPattern = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")
	fencedPattern     = regexp.MustCompile("(?s)```\\s*(.*?)\\s*```")
)

// parseSuggestionsDocument tries the full text as JSON first, then the first
// json fence, then the first bare fence. Anything else is a MODEL_ERROR.
func parseSuggestionsDocument(raw string) (suggestionsDocument, error) {
	trimmed := strings.TrimSpace(raw)

	var doc suggestionsDocument
	if err := json.Unmarshal([]byte(trimmed), &doc); err == nil {
		return doc, nil
	}
	for _, pattern := range []*regexp.Regexp{fencedJSONPattern, fencedPattern} {
		m := pattern.FindStringSubmatch(trimmed)
		if m == nil {
			continue
		}
		var fenced suggestionsDocument
		if err := json.Unmarshal([]byte(m[1]), &fenced); err == nil {
			return fenced, nil
		}
	}
	return suggestionsDocument{}, newError(ErrorModel, "invalid_model_json",
		errors.New("model did not return valid JSON"))
}

// normalizeSuggestions validates every entry independently and drops the ones
// that fail. A document whose suggestions field is missing or not an array
// normalizes to an empty list, not an error.
func normalizeSuggestions(doc suggestionsDocument) ([]domain.Suggestion, string) {
	entries, _ := doc.Suggestions.([]any)
	out := make([]domain.Suggestion, 0, len(entries))
	for _, raw := range entries {
		if s, ok := validateSuggestion(raw); ok {
			out = append(out, s)
		}
	}
	summary := ""
	if v, ok := asString(doc.Summary); ok {
		summary = truncate(strings.TrimSpace(v), maxSummaryLen)
	}
	return out, summary
}

// validateSuggestion is total: either the entry satisfies the required shape
// or it is rejected wholesale. Required fields gate the whole entry, optional
// fields degrade to absent.
func validateSuggestion(raw any) (domain.Suggestion, bool) {
	entry, ok := raw.(map[string]any)
	if !ok {
		return domain.Suggestion{}, false
	}
	typ, ok := asString(entry["type"])
	if !ok {
		return domain.Suggestion{}, false
	}
	title, ok := asString(entry["title"])
	if !ok {
		return domain.Suggestion{}, false
	}
	description, ok := asString(entry["description"])
	if !ok {
		return domain.Suggestion{}, false
	}
	rawIDs, ok := entry["targetIds"].([]any)
	if !ok {
		return domain.Suggestion{}, false
	}

	out := domain.Suggestion{
		Type:        truncate(typ, maxSuggestionTypeLen),
		Title:       truncate(title, maxTitleLen),
		Description: truncate(description, maxDescriptionLen),
		TargetIDs:   coerceTargetIDs(rawIDs),
	}
	if v, ok := asString(entry["confidence"]); ok && validConfidence(v) {
		out.Confidence = v
	}
	out.ImpactEstimate = coerceImpactEstimate(entry["impactEstimate"])
	out.Actions = coerceActions(entry["actions"])
	return out, true
}

func validConfidence(v string) bool {
	switch v {
	case domain.ConfidenceLow, domain.ConfidenceMedium, domain.ConfidenceHigh:
		return true
	}
	return false
}

// coerceTargetIDs stringifies each entry and drops empties.
func coerceTargetIDs(raw []any) []string {
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		var id string
		switch t := v.(type) {
		case string:
			id = strings.TrimSpace(t)
		case float64:
			id = strconv.FormatFloat(t, 'f', -1, 64)
		default:
			continue
		}
		if id == "" {
			continue
		}
		out = append(out, truncate(id, maxSubIDLen))
	}
	return out
}

// coerceImpactEstimate accepts the estimate only field-by-field; a malformed
// or empty object degrades to absent.
func coerceImpactEstimate(raw any) *domain.ImpactEstimate {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	est := domain.ImpactEstimate{}
	keep := false
	if v, ok := asString(m["currency"]); ok && strings.TrimSpace(v) != "" {
		est.Currency = truncate(strings.TrimSpace(v), maxSubCurrencyLen)
		keep = true
	}
	if v, ok := asFiniteNumber(m["monthly"]); ok {
		monthly := v
		est.Monthly = &monthly
		keep = true
	}
	if v, ok := asFiniteNumber(m["yearly"]); ok {
		yearly := v
		est.Yearly = &yearly
		keep = true
	}
	if !keep {
		return nil
	}
	return &est
}

// coerceActions keeps entries with valid type and label; targetId is attached
// only when present.
func coerceActions(raw any) []domain.SuggestionAction {
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]domain.SuggestionAction, 0, len(list))
	for _, v := range list {
		m, ok := v.(map[string]any)
		if !ok {
			continue
		}
		typ, ok := asString(m["type"])
		if !ok || strings.TrimSpace(typ) == "" {
			continue
		}
		label, ok := asString(m["label"])
		if !ok || strings.TrimSpace(label) == "" {
			continue
		}
		action := domain.SuggestionAction{
			Type:  truncate(strings.TrimSpace(typ), maxActionTypeLen),
			Label: truncate(strings.TrimSpace(label), maxActionLabelLen),
		}
		if id, ok := asString(m["targetId"]); ok && strings.TrimSpace(id) != "" {
			action.TargetID = truncate(strings.TrimSpace(id), maxSubIDLen)
		}
		out = append(out, action)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
