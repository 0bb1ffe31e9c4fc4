package visitor

import (
	"context"

	"serenity-booking/internal/domain"
)

// Repository is the durable half of the visitor session. Profiles are stored
// whole, keyed by visitor id; the last write wins.
type Repository interface {
	Get(ctx context.Context, id string) (*domain.VisitorProfile, error)
	Put(ctx context.Context, p domain.VisitorProfile) error
	Delete(ctx context.Context, id string) error
}
