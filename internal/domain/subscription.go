package domain

// SubscriptionSnapshotItem is one fully-validated subscription record from the
// caller's snapshot. Every field is required; entries failing validation are
// dropped before this type is ever constructed.
type SubscriptionSnapshotItem struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Category        string  `json:"category"`
	Amount          float64 `json:"amount"`
	Currency        string  `json:"currency"`
	BillingCycle    string  `json:"billingCycle"`
	NextPaymentDate string  `json:"nextPaymentDate"`
	IsActive        bool    `json:"isActive"`
}

// SuggestPreferences holds optional caller preferences for the suggestion
// task. Each field is independently present-or-absent; invalid fields are
// omitted rather than defaulted.
type SuggestPreferences struct {
	DefaultCurrency string   `json:"defaultCurrency,omitempty"`
	SavingsGoal     *float64 `json:"savingsGoal,omitempty"`
	Locale          string   `json:"locale,omitempty"`
	Timezone        string   `json:"timezone,omitempty"`
}
