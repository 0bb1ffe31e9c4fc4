package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"serenity-booking/internal/domain"
)

// ErrInvalidSignature means the payload was not signed with our secret.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// EventType is the subset of provider events the service acts on.
type EventType string

const (
	EventIntentSucceeded EventType = "payment_intent.succeeded"
	EventIntentFailed    EventType = "payment_intent.payment_failed"
	EventOther           EventType = "other"
)

// WebhookEvent is a verified provider notification.
type WebhookEvent struct {
	ID     string
	Type   EventType
	Raw    string
	Intent *domain.PaymentIntent
}

// WebhookVerifier checks signatures on provider callbacks.
type WebhookVerifier struct {
	secret    string
	tolerance time.Duration
}

func NewWebhookVerifier(secret string) *WebhookVerifier {
	return &WebhookVerifier{secret: secret, tolerance: webhook.DefaultTolerance}
}

// Configured reports whether a signing secret is present.
func (v *WebhookVerifier) Configured() bool {
	return v != nil && v.secret != ""
}

// Parse verifies header against payload and decodes the event. Any signature
// problem is reported as ErrInvalidSignature.
func (v *WebhookVerifier) Parse(payload []byte, header string) (*WebhookEvent, error) {
	if !v.Configured() {
		return nil, domain.NewError(domain.KindNotConfigured, "webhook secret not configured", nil)
	}
	if header == "" {
		return nil, fmt.Errorf("%w: missing signature header", ErrInvalidSignature)
	}
	event, err := webhook.ConstructEventWithOptions(payload, header, v.secret, webhook.ConstructEventOptions{
		Tolerance:                v.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	out := &WebhookEvent{ID: event.ID, Raw: string(event.Type), Type: EventOther}
	switch EventType(event.Type) {
	case EventIntentSucceeded, EventIntentFailed:
		out.Type = EventType(event.Type)
	default:
		return out, nil
	}

	if event.Data == nil {
		return nil, errors.New("webhook event has no data")
	}
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, fmt.Errorf("decode payment intent: %w", err)
	}
	out.Intent = toIntent(&pi)
	return out, nil
}
