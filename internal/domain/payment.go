package domain

// IntentStatus is the provider-owned status of a payment intent.
type IntentStatus string

const (
	IntentRequiresPayment IntentStatus = "requires_payment"
	IntentRequiresAction  IntentStatus = "requires_action"
	IntentProcessing      IntentStatus = "processing"
	IntentSucceeded       IntentStatus = "succeeded"
	IntentFailed          IntentStatus = "failed"
	IntentCanceled        IntentStatus = "canceled"
)

// PaymentIntent is referenced, never owned: the application only observes it.
type PaymentIntent struct {
	ID             string            `json:"id"`
	ClientSecret   string            `json:"-"`
	AmountCents    int64             `json:"amountCents"`
	Currency       string            `json:"currency"`
	Status         IntentStatus      `json:"status"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	RedirectURL    string            `json:"redirectUrl,omitempty"`
	FailureMessage string            `json:"failureMessage,omitempty"`
}
