package usecase

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"subtrack-assistant/internal/domain"
)

func rawJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func rawMessage(t *testing.T, role, content any) json.RawMessage {
	t.Helper()
	return rawJSON(t, map[string]any{"role": role, "content": content})
}

func validRawSubscription(t *testing.T, id string) json.RawMessage {
	t.Helper()
	return rawJSON(t, map[string]any{
		"id": id, "name": "Netflix", "category": "entertainment",
		"amount": 9.99, "currency": "USD", "billingCycle": "monthly",
		"nextPaymentDate": "2026-09-01", "isActive": true,
	})
}

// ---------------------------------------------------------------------------
// sanitizeMessages
// ---------------------------------------------------------------------------

func TestSanitizeMessages_KeepsValidEntries(t *testing.T) {
	in := []json.RawMessage{
		rawMessage(t, "user", "hello"),
		rawMessage(t, "assistant", "hi there"),
		rawMessage(t, "system", "be brief"),
	}
	out := sanitizeMessages(in)
	require.Len(t, out, 3)
	require.Equal(t, domain.ChatMessage{Role: "user", Content: "hello"}, out[0])
	require.Equal(t, domain.ChatMessage{Role: "assistant", Content: "hi there"}, out[1])
	require.Equal(t, domain.ChatMessage{Role: "system", Content: "be brief"}, out[2])
}

func TestSanitizeMessages_DropsInvalidEntries(t *testing.T) {
	in := []json.RawMessage{
		rawMessage(t, "user", "keep me"),
		rawMessage(t, "robot", "bad role"),
		rawMessage(t, "user", "   "),
		rawMessage(t, "user", 42),
		rawMessage(t, nil, "no role"),
		json.RawMessage(`"not an object"`),
	}
	out := sanitizeMessages(in)
	require.Len(t, out, 1)
	require.Equal(t, "keep me", out[0].Content)
}

func TestSanitizeMessages_AllInvalidYieldsEmpty(t *testing.T) {
	in := []json.RawMessage{
		rawMessage(t, "robot", "bad"),
		rawMessage(t, "user", ""),
	}
	require.Empty(t, sanitizeMessages(in))
}

func TestSanitizeMessages_KeepsMostRecentFifty(t *testing.T) {
	in := make([]json.RawMessage, 0, 60)
	for i := 0; i < 60; i++ {
		in = append(in, rawMessage(t, "user", fmt.Sprintf("msg-%d", i)))
	}
	out := sanitizeMessages(in)
	require.Len(t, out, maxMessages)
	require.Equal(t, "msg-10", out[0].Content)
	require.Equal(t, "msg-59", out[len(out)-1].Content)
}

func TestSanitizeMessages_TruncatesContentToCap(t *testing.T) {
	long := strings.Repeat("a", maxMessageContentLen+100)
	out := sanitizeMessages([]json.RawMessage{rawMessage(t, "user", long)})
	require.Len(t, out, 1)
	require.Len(t, out[0].Content, maxMessageContentLen)
	require.True(t, strings.HasPrefix(long, out[0].Content))
}

// ---------------------------------------------------------------------------
// sanitizeSubscriptions
// ---------------------------------------------------------------------------

func TestSanitizeSubscriptions_DropsEntriesFailingTypeChecks(t *testing.T) {
	bad := rawJSON(t, map[string]any{
		"id": "s2", "name": "B", "category": "c",
		"amount": "bad", "currency": "USD", "billingCycle": "monthly",
		"nextPaymentDate": "2026-09-01", "isActive": true,
	})
	out := sanitizeSubscriptions([]json.RawMessage{validRawSubscription(t, "s1"), bad})
	require.Len(t, out, 1)
	require.Equal(t, "s1", out[0].ID)
}

func TestSanitizeSubscriptions_RequiresEveryField(t *testing.T) {
	cases := []struct {
		name  string
		patch map[string]any
	}{
		{"missing id", map[string]any{"id": nil}},
		{"numeric name", map[string]any{"name": 3}},
		{"bool category", map[string]any{"category": false}},
		{"string amount", map[string]any{"amount": "9.99"}},
		{"numeric currency", map[string]any{"currency": 1}},
		{"missing billingCycle", map[string]any{"billingCycle": nil}},
		{"numeric nextPaymentDate", map[string]any{"nextPaymentDate": 20260901}},
		{"string isActive", map[string]any{"isActive": "yes"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			base := map[string]any{
				"id": "s1", "name": "A", "category": "c",
				"amount": 9.99, "currency": "USD", "billingCycle": "monthly",
				"nextPaymentDate": "2026-09-01", "isActive": true,
			}
			for k, v := range tc.patch {
				if v == nil {
					delete(base, k)
				} else {
					base[k] = v
				}
			}
			require.Empty(t, sanitizeSubscriptions([]json.RawMessage{rawJSON(t, base)}))
		})
	}
}

func TestSanitizeSubscriptions_KeepsMostRecentTwoHundred(t *testing.T) {
	in := make([]json.RawMessage, 0, 210)
	for i := 0; i < 210; i++ {
		in = append(in, validRawSubscription(t, fmt.Sprintf("s%d", i)))
	}
	out := sanitizeSubscriptions(in)
	require.Len(t, out, maxSubscriptions)
	require.Equal(t, "s10", out[0].ID)
	require.Equal(t, "s209", out[len(out)-1].ID)
}

func TestSanitizeSubscriptions_TruncatesTextFields(t *testing.T) {
	longName := strings.Repeat("n", maxSubNameLen+50)
	in := rawJSON(t, map[string]any{
		"id": "s1", "name": longName, "category": "c",
		"amount": 1.0, "currency": "USD", "billingCycle": "monthly",
		"nextPaymentDate": "2026-09-01", "isActive": true,
	})
	out := sanitizeSubscriptions([]json.RawMessage{in})
	require.Len(t, out, 1)
	require.Len(t, out[0].Name, maxSubNameLen)
	require.True(t, strings.HasPrefix(longName, out[0].Name))
}

func TestAsFiniteNumber_RejectsNonFiniteValues(t *testing.T) {
	// NaN/Inf cannot arrive via JSON, but the check must still be total for
	// values injected through other decode paths.
	_, ok := asFiniteNumber(math.NaN())
	require.False(t, ok)
	_, ok = asFiniteNumber(math.Inf(1))
	require.False(t, ok)
	_, ok = asFiniteNumber(math.Inf(-1))
	require.False(t, ok)
	_, ok = asFiniteNumber("9.99")
	require.False(t, ok)

	v, ok := asFiniteNumber(9.99)
	require.True(t, ok)
	require.Equal(t, 9.99, v)
}

// ---------------------------------------------------------------------------
// sanitizeContext / sanitizePreferences
// ---------------------------------------------------------------------------

func TestSanitizeContext_AbsentAndInvalidFieldsOmitted(t *testing.T) {
	ctx := sanitizeContext(rawJSON(t, map[string]any{
		"timezone":  "Europe/Berlin",
		"currency":  7,
		"sampledAt": "2026-08-23T10:00:00Z",
	}))
	require.Equal(t, "Europe/Berlin", ctx.Timezone)
	require.Empty(t, ctx.Currency)
	require.Empty(t, ctx.Locale)
	require.Equal(t, "2026-08-23T10:00:00Z", ctx.SampledAt)

	require.Equal(t, domain.ChatContext{}, sanitizeContext(nil))
	require.Equal(t, domain.ChatContext{}, sanitizeContext(json.RawMessage(`"junk"`)))
}

func TestSanitizePreferences_FieldsGatedIndependently(t *testing.T) {
	prefs := sanitizePreferences(rawJSON(t, map[string]any{
		"defaultCurrency": "EUR",
		"savingsGoal":     "lots", // wrong type, omitted
		"locale":          "de-DE",
	}))
	require.NotNil(t, prefs)
	require.Equal(t, "EUR", prefs.DefaultCurrency)
	require.Nil(t, prefs.SavingsGoal)
	require.Equal(t, "de-DE", prefs.Locale)
	require.Empty(t, prefs.Timezone)
}

func TestSanitizePreferences_NilWhenNothingUsable(t *testing.T) {
	require.Nil(t, sanitizePreferences(nil))
	require.Nil(t, sanitizePreferences(json.RawMessage(`{}`)))
	require.Nil(t, sanitizePreferences(rawJSON(t, map[string]any{"savingsGoal": "bad"})))
}

func TestSanitizePreferences_SavingsGoalNumber(t *testing.T) {
	prefs := sanitizePreferences(rawJSON(t, map[string]any{"savingsGoal": 50.0}))
	require.NotNil(t, prefs)
	require.NotNil(t, prefs.SavingsGoal)
	require.Equal(t, 50.0, *prefs.SavingsGoal)
}
