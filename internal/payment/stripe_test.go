package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serenity-booking/internal/domain"
)

// fakeStripe serves the handful of PaymentIntents endpoints the adapter uses.
type fakeStripe struct {
	mu         sync.Mutex
	lastForm   map[string]string
	createHits int
}

func (f *fakeStripe) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/payment_intents", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		f.mu.Lock()
		f.createHits++
		f.lastForm = map[string]string{}
		for k := range r.PostForm {
			f.lastForm[k] = r.PostForm.Get(k)
		}
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{
			"id":            "pi_new",
			"object":        "payment_intent",
			"amount":        6000,
			"currency":      "usd",
			"status":        "requires_payment_method",
			"client_secret": "pi_new_secret_abc",
			"metadata":      map[string]string{"customer_email": r.PostForm.Get("metadata[customer_email]")},
		})
	})
	mux.HandleFunc("/v1/payment_intents/pi_ok", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"id": "pi_ok", "object": "payment_intent", "amount": 6000, "currency": "usd",
			"status": "succeeded", "client_secret": "pi_ok_secret",
		})
	})
	mux.HandleFunc("/v1/payment_intents/pi_3ds/confirm", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"id": "pi_3ds", "object": "payment_intent", "amount": 6000, "currency": "usd",
			"status": "requires_action",
			"next_action": map[string]any{
				"type":            "redirect_to_url",
				"redirect_to_url": map[string]any{"url": "https://bank.example/3ds", "return_url": "http://localhost:3000/success"},
			},
		})
	})
	mux.HandleFunc("/v1/payment_intents/pi_decline/confirm", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusPaymentRequired, map[string]any{
			"error": map[string]any{"type": "card_error", "code": "card_declined", "message": "Your card was declined."},
		})
	})
	mux.HandleFunc("/v1/payment_intents/pi_down", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error": map[string]any{"type": "api_error", "message": "boom"},
		})
	})
	mux.HandleFunc("/v1/payment_intents/pi_slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	mux.HandleFunc("/v1/payment_intents/pi_badkey", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"error": map[string]any{"type": "invalid_request_error", "message": "Invalid API Key provided"},
		})
	})
	return mux
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func newTestStripe(t *testing.T, timeout time.Duration) (*Stripe, *fakeStripe) {
	t.Helper()
	fake := &fakeStripe{}
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)
	s := NewStripe(StripeConfig{
		SecretKey:   "sk_test_123",
		APIURL:      srv.URL,
		Site:        "serenityservices",
		Environment: "test",
		Timeout:     timeout,
	}, nil)
	return s, fake
}

func TestStripe_CreateIntentSendsAmountAndMetadata(t *testing.T) {
	s, fake := newTestStripe(t, time.Second)

	pi, err := s.CreateIntent(context.Background(), IntentRequest{
		AmountCents:       6000,
		ServiceDescriptor: "cleaning",
		Customer:          domain.CustomerDetails{Name: "Ada", Email: "ada@example.com", Address: "1 Main St", Phone: "555"},
	})
	require.NoError(t, err)
	assert.Equal(t, "pi_new", pi.ID)
	assert.Equal(t, "pi_new_secret_abc", pi.ClientSecret)
	assert.Equal(t, domain.IntentRequiresPayment, pi.Status)

	assert.Equal(t, "6000", fake.lastForm["amount"])
	assert.Equal(t, "usd", fake.lastForm["currency"])
	assert.Equal(t, "serenityservices", fake.lastForm["metadata[site]"])
	assert.Equal(t, "ada@example.com", fake.lastForm["metadata[customer_email]"])
	assert.Equal(t, "cleaning", fake.lastForm["metadata[service_type]"])
	_, hasNotes := fake.lastForm["metadata[notes]"]
	assert.False(t, hasNotes, "blank metadata is not sent")
}

func TestStripe_CreateIntentRejectsBadAmountBeforeNetwork(t *testing.T) {
	s, fake := newTestStripe(t, time.Second)

	_, err := s.CreateIntent(context.Background(), IntentRequest{AmountCents: 30})
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	assert.Zero(t, fake.createHits)
}

func TestStripe_RetrieveAndConfirmStatuses(t *testing.T) {
	s, _ := newTestStripe(t, time.Second)
	ctx := context.Background()

	pi, err := s.RetrieveIntent(ctx, "pi_ok")
	require.NoError(t, err)
	assert.Equal(t, domain.IntentSucceeded, pi.Status)

	pi, err = s.ConfirmIntent(ctx, "pi_3ds", "pm_card_threeDSecure2Required", "http://localhost:3000/success")
	require.NoError(t, err)
	assert.Equal(t, domain.IntentRequiresAction, pi.Status)
	assert.Equal(t, "https://bank.example/3ds", pi.RedirectURL)
}

func TestStripe_ErrorClassification(t *testing.T) {
	s, _ := newTestStripe(t, 100*time.Millisecond)
	ctx := context.Background()

	_, err := s.ConfirmIntent(ctx, "pi_decline", "pm_card_chargeDeclined", "")
	de, ok := domain.AsError(err)
	require.True(t, ok)
	assert.Equal(t, domain.KindPaymentDeclined, de.Kind)
	assert.Equal(t, "Your card was declined.", de.Message)
	assert.False(t, de.Retriable())

	_, err = s.RetrieveIntent(ctx, "pi_down")
	assert.Equal(t, domain.KindUnavailable, domain.KindOf(err))

	_, err = s.RetrieveIntent(ctx, "pi_slow")
	de, ok = domain.AsError(err)
	require.True(t, ok)
	assert.Equal(t, domain.KindUnavailable, de.Kind)
	assert.True(t, de.Retriable())

	_, err = s.RetrieveIntent(ctx, "pi_badkey")
	assert.Equal(t, domain.KindNotConfigured, domain.KindOf(err))
}
