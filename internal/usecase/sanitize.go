package usecase

import (
	"encoding/json"
	"math"
	"strings"

	"subtrack-assistant/internal/domain"
)

const (
	maxMessageContentLen = 4000
	maxMessages          = 50
	maxSubscriptions     = 200

	maxSubIDLen       = 64
	maxSubNameLen     = 200
	maxSubCategoryLen = 100
	maxSubCurrencyLen = 64
	maxSubCycleLen    = 100
	maxSubDateLen     = 100
)

// rawChatMessage is the lenient decode target for a caller-supplied message.
// Fields stay untyped so a single bad field drops the entry instead of
// failing the whole array.
type rawChatMessage struct {
	Role    any `json:"role"`
	Content any `json:"content"`
}

type rawSubscription struct {
	ID              any `json:"id"`
	Name            any `json:"name"`
	Category        any `json:"category"`
	Amount          any `json:"amount"`
	Currency        any `json:"currency"`
	BillingCycle    any `json:"billingCycle"`
	NextPaymentDate any `json:"nextPaymentDate"`
	IsActive        any `json:"isActive"`
}

type rawChatContext struct {
	Timezone  any `json:"timezone"`
	Currency  any `json:"currency"`
	Locale    any `json:"locale"`
	SampledAt any `json:"sampledAt"`
}

type rawPreferences struct {
	DefaultCurrency any `json:"defaultCurrency"`
	SavingsGoal     any `json:"savingsGoal"`
	Locale          any `json:"locale"`
	Timezone        any `json:"timezone"`
}

// sanitizeMessages keeps only entries with a recognized role and non-empty
// string content, truncates content to the per-message cap, and retains the
// most recent maxMessages entries in original order.
func sanitizeMessages(raw []json.RawMessage) []domain.ChatMessage {
	out := make([]domain.ChatMessage, 0, len(raw))
	for _, r := range raw {
		var m rawChatMessage
		if err := json.Unmarshal(r, &m); err != nil {
			continue
		}
		role, ok := asString(m.Role)
		if !ok || !validRole(role) {
			continue
		}
		content, ok := asString(m.Content)
		if !ok {
			continue
		}
		content = strings.TrimSpace(content)
		if content == "" {
			continue
		}
		out = append(out, domain.ChatMessage{
			Role:    role,
			Content: truncate(content, maxMessageContentLen),
		})
	}
	if len(out) > maxMessages {
		out = out[len(out)-maxMessages:]
	}
	return out
}

func validRole(role string) bool {
	switch role {
	case domain.RoleUser, domain.RoleAssistant, domain.RoleSystem:
		return true
	}
	return false
}

// sanitizeContext extracts the optional string hints; anything missing or
// non-string is left absent.
func sanitizeContext(raw json.RawMessage) domain.ChatContext {
	var c rawChatContext
	if len(raw) == 0 || json.Unmarshal(raw, &c) != nil {
		return domain.ChatContext{}
	}
	out := domain.ChatContext{}
	if v, ok := asString(c.Timezone); ok {
		out.Timezone = strings.TrimSpace(v)
	}
	if v, ok := asString(c.Currency); ok {
		out.Currency = strings.TrimSpace(v)
	}
	if v, ok := asString(c.Locale); ok {
		out.Locale = strings.TrimSpace(v)
	}
	if v, ok := asString(c.SampledAt); ok {
		out.SampledAt = strings.TrimSpace(v)
	}
	return out
}

// sanitizeSubscriptions drops any entry failing full field validation,
// truncates text fields to their caps, and keeps the most recent
// maxSubscriptions valid entries.
func sanitizeSubscriptions(raw []json.RawMessage) []domain.SubscriptionSnapshotItem {
	out := make([]domain.SubscriptionSnapshotItem, 0, len(raw))
	for _, r := range raw {
		var s rawSubscription
		if err := json.Unmarshal(r, &s); err != nil {
			continue
		}
		item, ok := validateSubscription(s)
		if !ok {
			continue
		}
		out = append(out, item)
	}
	if len(out) > maxSubscriptions {
		out = out[len(out)-maxSubscriptions:]
	}
	return out
}

// validateSubscription is total: it returns a fully-typed item or rejects the
// entry. No partial repair.
func validateSubscription(s rawSubscription) (domain.SubscriptionSnapshotItem, bool) {
	id, ok := asString(s.ID)
	if !ok {
		return domain.SubscriptionSnapshotItem{}, false
	}
	name, ok := asString(s.Name)
	if !ok {
		return domain.SubscriptionSnapshotItem{}, false
	}
	category, ok := asString(s.Category)
	if !ok {
		return domain.SubscriptionSnapshotItem{}, false
	}
	amount, ok := asFiniteNumber(s.Amount)
	if !ok {
		return domain.SubscriptionSnapshotItem{}, false
	}
	currency, ok := asString(s.Currency)
	if !ok {
		return domain.SubscriptionSnapshotItem{}, false
	}
	cycle, ok := asString(s.BillingCycle)
	if !ok {
		return domain.SubscriptionSnapshotItem{}, false
	}
	nextPayment, ok := asString(s.NextPaymentDate)
	if !ok {
		return domain.SubscriptionSnapshotItem{}, false
	}
	active, ok := s.IsActive.(bool)
	if !ok {
		return domain.SubscriptionSnapshotItem{}, false
	}
	return domain.SubscriptionSnapshotItem{
		ID:              truncate(id, maxSubIDLen),
		Name:            truncate(name, maxSubNameLen),
		Category:        truncate(category, maxSubCategoryLen),
		Amount:          amount,
		Currency:        truncate(currency, maxSubCurrencyLen),
		BillingCycle:    truncate(cycle, maxSubCycleLen),
		NextPaymentDate: truncate(nextPayment, maxSubDateLen),
		IsActive:        active,
	}, true
}

// sanitizePreferences gates each optional field on its own type check and
// returns nil when nothing usable was supplied. Invalid fields are omitted,
// never defaulted.
func sanitizePreferences(raw json.RawMessage) *domain.SuggestPreferences {
	var p rawPreferences
	if len(raw) == 0 || json.Unmarshal(raw, &p) != nil {
		return nil
	}
	out := domain.SuggestPreferences{}
	found := false
	if v, ok := asString(p.DefaultCurrency); ok && strings.TrimSpace(v) != "" {
		out.DefaultCurrency = strings.TrimSpace(v)
		found = true
	}
	if v, ok := asFiniteNumber(p.SavingsGoal); ok {
		goal := v
		out.SavingsGoal = &goal
		found = true
	}
	if v, ok := asString(p.Locale); ok && strings.TrimSpace(v) != "" {
		out.Locale = strings.TrimSpace(v)
		found = true
	}
	if v, ok := asString(p.Timezone); ok && strings.TrimSpace(v) != "" {
		out.Timezone = strings.TrimSpace(v)
		found = true
	}
	if !found {
		return nil
	}
	return &out
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asFiniteNumber(v any) (float64, bool) {
	f, ok := v.(float64)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// truncate caps s at n runes; the result is always a prefix of s.
func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
