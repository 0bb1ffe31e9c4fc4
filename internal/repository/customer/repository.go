package customer

import (
	"context"

	"serenity-booking/internal/domain"
)

// Repository persists and fetches customers.
type Repository interface {
	// Upsert creates or updates the customer keyed by lower-cased email.
	// Blank phone or address keep the stored values.
	Upsert(ctx context.Context, c domain.Customer) (*domain.Customer, error)
	GetByEmail(ctx context.Context, email string) (*domain.Customer, error)
}
