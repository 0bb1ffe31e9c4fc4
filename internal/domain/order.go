package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderCompleted OrderStatus = "completed"
	OrderCancelled OrderStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

// Order is one booking. PaymentIntentID is unique and is the correlation key
// for idempotent upserts.
type Order struct {
	ID              string          `json:"id"`
	CustomerName    string          `json:"customerName"`
	CustomerEmail   string          `json:"customerEmail"`
	CustomerPhone   string          `json:"customerPhone"`
	CustomerAddress string          `json:"customerAddress"`
	ServiceType     string          `json:"serviceType"`
	Items           LineItems       `json:"items,omitempty"`
	AmountCents     int64           `json:"amountCents"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	PaymentIntentID string          `json:"paymentIntentId,omitempty"`
	ScheduledDate   string          `json:"scheduledDate,omitempty"`
	ScheduledTime   string          `json:"scheduledTime,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	Status          OrderStatus     `json:"status"`
	PaymentStatus   PaymentStatus   `json:"paymentStatus"`
	VisitorID       string          `json:"visitorId,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// Scheduled reports whether both date and time are set.
func (o Order) Scheduled() bool {
	return o.ScheduledDate != "" && o.ScheduledTime != ""
}

// ConsistentStatus checks confirmed implies paid and cancelled implies not paid.
func ConsistentStatus(status OrderStatus, payment PaymentStatus) bool {
	switch status {
	case OrderConfirmed:
		return payment == PaymentPaid
	case OrderCancelled:
		return payment != PaymentPaid
	default:
		return true
	}
}

// CentsToAmount converts integer cents to a decimal currency amount.
func CentsToAmount(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// OrderPatch carries the only fields a partial update may touch.
type OrderPatch struct {
	ScheduledDate *string `json:"scheduledDate,omitempty"`
	ScheduledTime *string `json:"scheduledTime,omitempty"`
	Notes         *string `json:"notes,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p OrderPatch) Empty() bool {
	return p.ScheduledDate == nil && p.ScheduledTime == nil && p.Notes == nil
}
