// Package payment talks to the hosted payment provider. The application never
// owns a payment intent; it creates one, asks the provider to confirm it, and
// reads back its status.
package payment

import (
	"context"
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"serenity-booking/internal/domain"
)

// MinimumChargeCents is the provider's smallest accepted charge.
const MinimumChargeCents = 50

// maxMetadataValue is the provider's limit per metadata value.
const maxMetadataValue = 500

// Metadata keys attached to every intent. The webhook reconciler rebuilds an
// order from these when the browser never returned.
const (
	MetaSite            = "site"
	MetaServiceType     = "service_type"
	MetaCustomerEmail   = "customer_email"
	MetaCustomerName    = "customer_name"
	MetaCustomerPhone   = "customer_phone"
	MetaCustomerAddress = "customer_address"
	MetaNotes           = "notes"
	MetaScheduledDate   = "scheduled_date"
	MetaScheduledTime   = "scheduled_time"
	MetaEnvironment     = "environment"
	MetaVisitorID       = "visitor_id"
	MetaItems           = "items"
)

// Gateway is the payment intent provider.
type Gateway interface {
	CreateIntent(ctx context.Context, req IntentRequest) (*domain.PaymentIntent, error)
	// ConfirmIntent confirms server-side with a payment method. The provider
	// may answer requires_action with a redirect URL.
	ConfirmIntent(ctx context.Context, intentID, paymentMethodID, returnURL string) (*domain.PaymentIntent, error)
	// RetrieveIntent is a pure read and safe to repeat.
	RetrieveIntent(ctx context.Context, intentID string) (*domain.PaymentIntent, error)
}

// IntentRequest describes the charge to create.
type IntentRequest struct {
	AmountCents       int64
	Currency          string
	ServiceDescriptor string
	Customer          domain.CustomerDetails
	ScheduledDate     string
	ScheduledTime     string
	Items             domain.LineItems
	VisitorID         string
}

// Metadata renders the request as provider metadata.
func (r IntentRequest) Metadata(site, environment string) map[string]string {
	md := map[string]string{
		MetaSite:            site,
		MetaServiceType:     r.ServiceDescriptor,
		MetaCustomerEmail:   r.Customer.Email,
		MetaCustomerName:    r.Customer.Name,
		MetaCustomerPhone:   r.Customer.Phone,
		MetaCustomerAddress: r.Customer.Address,
		MetaNotes:           r.Customer.Notes,
		MetaScheduledDate:   r.ScheduledDate,
		MetaScheduledTime:   r.ScheduledTime,
		MetaEnvironment:     environment,
		MetaVisitorID:       r.VisitorID,
	}
	if len(r.Items) > 0 {
		if raw, err := json.Marshal(r.Items); err == nil && len(raw) <= maxMetadataValue {
			md[MetaItems] = string(raw)
		}
	}
	for k, v := range md {
		md[k] = truncate(v, maxMetadataValue)
	}
	return md
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// OrderDetails is what an order can be rebuilt from when only the intent is known.
type OrderDetails struct {
	Customer      domain.CustomerDetails
	ServiceType   string
	ScheduledDate string
	ScheduledTime string
	Items         domain.LineItems
	VisitorID     string
}

// DetailsFromMetadata is the inverse of IntentRequest.Metadata.
func DetailsFromMetadata(md map[string]string) OrderDetails {
	d := OrderDetails{
		Customer: domain.CustomerDetails{
			Name:    md[MetaCustomerName],
			Email:   strings.ToLower(md[MetaCustomerEmail]),
			Phone:   md[MetaCustomerPhone],
			Address: md[MetaCustomerAddress],
			Notes:   md[MetaNotes],
		},
		ServiceType:   md[MetaServiceType],
		ScheduledDate: md[MetaScheduledDate],
		ScheduledTime: md[MetaScheduledTime],
		VisitorID:     md[MetaVisitorID],
	}
	if raw := md[MetaItems]; raw != "" {
		_ = json.Unmarshal([]byte(raw), &d.Items)
	}
	return d
}

// ValidateAmount rejects amounts the provider would refuse or misread.
func ValidateAmount(cents int64) error {
	if cents <= 0 {
		return domain.Validation("amount must be a positive number of cents")
	}
	if cents < MinimumChargeCents {
		return domain.Validation("amount is below the minimum charge")
	}
	return nil
}

// CentsFromDollars converts a currency amount to cents, refusing sub-cent
// precision instead of rounding it away.
func CentsFromDollars(amount decimal.Decimal) (int64, error) {
	cents := amount.Shift(2)
	if !cents.Equal(cents.Truncate(0)) {
		return 0, domain.Validation("amount has sub-cent precision")
	}
	return cents.IntPart(), nil
}

// Unconfigured is the gateway used when no provider key is set.
type Unconfigured struct{}

var errNotConfigured = domain.NewError(domain.KindNotConfigured, "payment system not configured", nil)

func (Unconfigured) CreateIntent(context.Context, IntentRequest) (*domain.PaymentIntent, error) {
	return nil, errNotConfigured
}

func (Unconfigured) ConfirmIntent(context.Context, string, string, string) (*domain.PaymentIntent, error) {
	return nil, errNotConfigured
}

func (Unconfigured) RetrieveIntent(context.Context, string) (*domain.PaymentIntent, error) {
	return nil, errNotConfigured
}
