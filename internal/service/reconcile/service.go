// Package reconcile applies provider webhooks to the order store.
package reconcile

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"serenity-booking/internal/domain"
	"serenity-booking/internal/logging"
	"serenity-booking/internal/payment"
	"serenity-booking/internal/service/checkout"
)

type orderStore interface {
	SetPaymentState(ctx context.Context, intentID string, status domain.OrderStatus, payment domain.PaymentStatus) (*domain.Order, error)
}

type recorder interface {
	Record(ctx context.Context, pi *domain.PaymentIntent) (checkout.State, error)
}

// Outcome describes what a webhook did, for logging and tests.
type Outcome string

const (
	OutcomeUpdated Outcome = "updated"
	OutcomeCreated Outcome = "created"
	OutcomeNoOrder Outcome = "no_order"
	OutcomeIgnored Outcome = "ignored"
)

type Service struct {
	orders   orderStore
	recorder recorder
	logger   *zap.Logger
}

func New(orders orderStore, rec recorder, logger *zap.Logger) *Service {
	return &Service{orders: orders, recorder: rec, logger: logging.OrNop(logger).Named("reconcile")}
}

// Handle applies a verified event. A returned error means the provider
// should retry delivery.
func (s *Service) Handle(ctx context.Context, ev *payment.WebhookEvent) (Outcome, error) {
	if ev == nil {
		return OutcomeIgnored, nil
	}
	switch ev.Type {
	case payment.EventIntentSucceeded:
		return s.succeeded(ctx, ev)
	case payment.EventIntentFailed:
		return s.failed(ctx, ev)
	default:
		s.logger.Debug("webhook ignored", zap.String("event_id", ev.ID), zap.String("type", ev.Raw))
		return OutcomeIgnored, nil
	}
}

func (s *Service) succeeded(ctx context.Context, ev *payment.WebhookEvent) (Outcome, error) {
	pi := ev.Intent
	if pi == nil || pi.ID == "" {
		return OutcomeIgnored, errors.New("succeeded event without payment intent")
	}
	o, err := s.orders.SetPaymentState(ctx, pi.ID, domain.OrderConfirmed, domain.PaymentPaid)
	switch {
	case err == nil:
		s.logger.Info("order marked paid",
			zap.String("event_id", ev.ID),
			zap.String("payment_intent_id", pi.ID),
			zap.String("order_id", o.ID))
		return OutcomeUpdated, nil
	case !errors.Is(err, domain.ErrNotFound):
		return OutcomeIgnored, fmt.Errorf("mark order paid: %w", err)
	}

	// The browser never came back or the order write failed; build the
	// order from the intent metadata.
	st, err := s.recorder.Record(ctx, pi)
	if err != nil {
		return OutcomeIgnored, fmt.Errorf("record order from webhook: %w", err)
	}
	s.logger.Info("order created from webhook",
		zap.String("event_id", ev.ID),
		zap.String("payment_intent_id", pi.ID),
		zap.String("order_id", st.Order.ID))
	return OutcomeCreated, nil
}

func (s *Service) failed(ctx context.Context, ev *payment.WebhookEvent) (Outcome, error) {
	pi := ev.Intent
	if pi == nil || pi.ID == "" {
		return OutcomeIgnored, errors.New("failed event without payment intent")
	}
	o, err := s.orders.SetPaymentState(ctx, pi.ID, domain.OrderCancelled, domain.PaymentFailed)
	if errors.Is(err, domain.ErrNotFound) {
		s.logger.Info("payment failed before any order existed",
			zap.String("event_id", ev.ID),
			zap.String("payment_intent_id", pi.ID))
		return OutcomeNoOrder, nil
	}
	if err != nil {
		return OutcomeIgnored, fmt.Errorf("mark order failed: %w", err)
	}
	s.logger.Info("order payment failed",
		zap.String("event_id", ev.ID),
		zap.String("payment_intent_id", pi.ID),
		zap.String("order_id", o.ID),
		zap.String("payment_status", string(o.PaymentStatus)))
	return OutcomeUpdated, nil
}
