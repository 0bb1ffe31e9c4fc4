package customer

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"serenity-booking/internal/domain"
	"serenity-booking/internal/logging"
	custrepo "serenity-booking/internal/repository/customer"
)

// Service keeps one contact record per email address. Checkout feeds it after
// every persisted order; staff can also write it directly.
type Service struct {
	repo    custrepo.Repository
	logger  *zap.Logger
	timeout time.Duration
}

// New creates a Service with sane defaults.
func New(repo custrepo.Repository, logger *zap.Logger) *Service {
	return &Service{
		repo:    repo,
		logger:  logging.OrNop(logger).Named("customers"),
		timeout: 5 * time.Second,
	}
}

// Upsert creates or refreshes the customer for in.Email. Name and email are
// required; a blank phone or address keeps whatever was stored before.
func (s *Service) Upsert(ctx context.Context, in domain.CustomerDetails) (*domain.Customer, error) {
	in = in.Normalize()
	var missing []string
	if in.Email == "" {
		missing = append(missing, "email")
	}
	if in.Name == "" {
		missing = append(missing, "name")
	}
	if len(missing) > 0 {
		return nil, domain.Validation("missing required fields: " + strings.Join(missing, " and "))
	}
	if !domain.ValidEmail(in.Email) {
		return nil, domain.Validation("invalid email address")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	c, err := s.repo.Upsert(ctx, domain.Customer{
		Email:   in.Email,
		Name:    in.Name,
		Phone:   in.Phone,
		Address: in.Address,
	})
	if err != nil {
		s.logger.Error("upsert customer", zap.String("email", in.Email), zap.Error(err))
		return nil, domain.NewError(domain.KindUnavailable, "customer store unavailable, please try again", err)
	}
	return c, nil
}

// GetByEmail returns the customer stored for email.
func (s *Service) GetByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, domain.Validation("email parameter is required")
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	c, err := s.repo.GetByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.NewError(domain.KindNotFound, "customer not found", err)
	}
	if err != nil {
		return nil, domain.NewError(domain.KindUnavailable, "customer store unavailable, please try again", err)
	}
	return c, nil
}
