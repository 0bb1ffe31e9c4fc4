package payment

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"go.uber.org/zap"

	"serenity-booking/internal/domain"
	"serenity-booking/internal/logging"
)

// StripeConfig configures the Stripe adapter.
type StripeConfig struct {
	SecretKey   string
	APIURL      string
	Currency    string
	Site        string
	Environment string
	Timeout     time.Duration
	HTTPClient  *http.Client
}

// Stripe is a Gateway backed by the Stripe PaymentIntents API.
type Stripe struct {
	api     *client.API
	cfg     StripeConfig
	logger  *zap.Logger
	timeout time.Duration
}

// NewGateway returns the Stripe adapter, or Unconfigured when no key is set.
func NewGateway(cfg StripeConfig, logger *zap.Logger) Gateway {
	if strings.TrimSpace(cfg.SecretKey) == "" {
		logging.OrNop(logger).Warn("STRIPE_SECRET_KEY not set; payments disabled")
		return Unconfigured{}
	}
	return NewStripe(cfg, logger)
}

func NewStripe(cfg StripeConfig, logger *zap.Logger) *Stripe {
	logger = logging.OrNop(logger).Named("stripe")
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	backendFor := func(kind stripe.SupportedBackend) stripe.Backend {
		bc := &stripe.BackendConfig{
			HTTPClient:        cfg.HTTPClient,
			LeveledLogger:     logger.Sugar(),
			MaxNetworkRetries: stripe.Int64(1),
		}
		if cfg.APIURL != "" {
			bc.URL = stripe.String(cfg.APIURL)
			bc.MaxNetworkRetries = stripe.Int64(0)
		}
		return stripe.GetBackendWithConfig(kind, bc)
	}
	backends := &stripe.Backends{
		API:     backendFor(stripe.APIBackend),
		Connect: backendFor(stripe.ConnectBackend),
		Uploads: backendFor(stripe.UploadsBackend),
	}

	return &Stripe{
		api:     client.New(cfg.SecretKey, backends),
		cfg:     cfg,
		logger:  logger,
		timeout: timeout,
	}
}

func (s *Stripe) CreateIntent(ctx context.Context, req IntentRequest) (*domain.PaymentIntent, error) {
	if err := ValidateAmount(req.AmountCents); err != nil {
		return nil, err
	}
	currency := req.Currency
	if currency == "" {
		currency = s.cfg.Currency
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.AmountCents),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if req.ServiceDescriptor != "" {
		params.Description = stripe.String(req.ServiceDescriptor)
	}
	if req.Customer.Email != "" {
		params.ReceiptEmail = stripe.String(req.Customer.Email)
	}
	for k, v := range req.Metadata(s.cfg.Site, s.cfg.Environment) {
		if v != "" {
			params.AddMetadata(k, v)
		}
	}
	params.Context = ctx

	pi, err := s.api.PaymentIntents.New(params)
	if err != nil {
		return nil, s.classify("create intent", err)
	}
	s.logger.Info("payment intent created",
		zap.String("payment_intent_id", pi.ID),
		zap.Int64("amount_cents", pi.Amount))
	return toIntent(pi), nil
}

func (s *Stripe) ConfirmIntent(ctx context.Context, intentID, paymentMethodID, returnURL string) (*domain.PaymentIntent, error) {
	if intentID == "" {
		return nil, domain.Validation("payment intent id required")
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	params := &stripe.PaymentIntentConfirmParams{}
	if paymentMethodID != "" {
		params.PaymentMethod = stripe.String(paymentMethodID)
	}
	if returnURL != "" {
		params.ReturnURL = stripe.String(returnURL)
	}
	params.Context = ctx

	pi, err := s.api.PaymentIntents.Confirm(intentID, params)
	if err != nil {
		return nil, s.classify("confirm intent", err)
	}
	s.logger.Info("payment intent confirmed",
		zap.String("payment_intent_id", pi.ID),
		zap.String("status", string(pi.Status)))
	return toIntent(pi), nil
}

func (s *Stripe) RetrieveIntent(ctx context.Context, intentID string) (*domain.PaymentIntent, error) {
	if intentID == "" {
		return nil, domain.Validation("payment intent id required")
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := s.api.PaymentIntents.Get(intentID, params)
	if err != nil {
		return nil, s.classify("retrieve intent", err)
	}
	return toIntent(pi), nil
}

func (s *Stripe) classify(op string, err error) error {
	kind, msg := classifyError(err)
	s.logger.Warn(op+" failed", zap.String("kind", string(kind)), zap.Error(err))
	return domain.NewError(kind, msg, err)
}

func classifyError(err error) (domain.ErrorKind, string) {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return domain.KindUnavailable, "payment provider timed out"
	}
	var se *stripe.Error
	if !errors.As(err, &se) {
		return domain.KindUnavailable, "payment provider unreachable"
	}
	switch {
	case se.HTTPStatusCode == http.StatusUnauthorized || se.HTTPStatusCode == http.StatusForbidden:
		return domain.KindNotConfigured, "payment system not configured"
	case se.Type == stripe.ErrorTypeCard || se.HTTPStatusCode == http.StatusPaymentRequired:
		msg := se.Msg
		if msg == "" {
			msg = "payment declined"
		}
		return domain.KindPaymentDeclined, msg
	case se.HTTPStatusCode == http.StatusTooManyRequests || se.HTTPStatusCode >= 500:
		return domain.KindUnavailable, "payment provider unavailable"
	case se.HTTPStatusCode == http.StatusBadRequest || se.HTTPStatusCode == http.StatusNotFound:
		msg := se.Msg
		if msg == "" {
			msg = "payment request rejected"
		}
		return domain.KindValidation, msg
	default:
		return domain.KindUnavailable, "payment provider unavailable"
	}
}

func toIntent(pi *stripe.PaymentIntent) *domain.PaymentIntent {
	out := &domain.PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		AmountCents:  pi.Amount,
		Currency:     string(pi.Currency),
		Status:       mapStatus(pi),
		Metadata:     pi.Metadata,
	}
	if pi.NextAction != nil && pi.NextAction.RedirectToURL != nil {
		out.RedirectURL = pi.NextAction.RedirectToURL.URL
	}
	if pi.LastPaymentError != nil {
		out.FailureMessage = pi.LastPaymentError.Msg
	}
	return out
}

func mapStatus(pi *stripe.PaymentIntent) domain.IntentStatus {
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		return domain.IntentSucceeded
	case stripe.PaymentIntentStatusProcessing, stripe.PaymentIntentStatusRequiresCapture:
		return domain.IntentProcessing
	case stripe.PaymentIntentStatusRequiresAction, stripe.PaymentIntentStatusRequiresConfirmation:
		return domain.IntentRequiresAction
	case stripe.PaymentIntentStatusCanceled:
		return domain.IntentCanceled
	case stripe.PaymentIntentStatusRequiresPaymentMethod:
		if pi.LastPaymentError != nil {
			return domain.IntentFailed
		}
		return domain.IntentRequiresPayment
	default:
		return domain.IntentProcessing
	}
}
