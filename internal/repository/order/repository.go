package order

import (
	"context"

	"serenity-booking/internal/domain"
)

// Filter narrows the admin listing. Empty fields match everything.
type Filter struct {
	Search      string
	Status      domain.OrderStatus
	ServiceType string
	Limit       int
}

// Repository persists and fetches orders.
type Repository interface {
	Insert(ctx context.Context, o domain.Order) (*domain.Order, error)
	// UpsertByPaymentIntent creates or updates the order correlated with
	// o.PaymentIntentID. A paid order is never downgraded. created reports
	// whether a new row was inserted.
	UpsertByPaymentIntent(ctx context.Context, o domain.Order) (order *domain.Order, created bool, err error)
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	GetByPaymentIntentID(ctx context.Context, intentID string) (*domain.Order, error)
	ListByEmail(ctx context.Context, email string) ([]domain.Order, error)
	List(ctx context.Context, f Filter) ([]domain.Order, error)
	Patch(ctx context.Context, id string, p domain.OrderPatch) (*domain.Order, error)
	SetPaymentState(ctx context.Context, intentID string, status domain.OrderStatus, payment domain.PaymentStatus) (*domain.Order, error)
}
