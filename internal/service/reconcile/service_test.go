package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serenity-booking/internal/domain"
	"serenity-booking/internal/payment"
	"serenity-booking/internal/repository/order"
	"serenity-booking/internal/service/checkout"
)

type stubRecorder struct {
	orders *order.Memory
	calls  int
	err    error
}

func (r *stubRecorder) Record(ctx context.Context, pi *domain.PaymentIntent) (checkout.State, error) {
	r.calls++
	if r.err != nil {
		return checkout.State{Phase: checkout.PhaseError}, r.err
	}
	o, _, err := r.orders.UpsertByPaymentIntent(ctx, domain.Order{
		CustomerName:    pi.Metadata[payment.MetaCustomerName],
		CustomerEmail:   pi.Metadata[payment.MetaCustomerEmail],
		AmountCents:     pi.AmountCents,
		PaymentIntentID: pi.ID,
		Status:          domain.OrderConfirmed,
		PaymentStatus:   domain.PaymentPaid,
	})
	if err != nil {
		return checkout.State{}, err
	}
	return checkout.State{Phase: checkout.PhaseOrderPersisted, Order: o}, nil
}

func event(t payment.EventType, intentID string) *payment.WebhookEvent {
	return &payment.WebhookEvent{
		ID:   "evt_1",
		Type: t,
		Raw:  string(t),
		Intent: &domain.PaymentIntent{
			ID:          intentID,
			AmountCents: 6000,
			Status:      domain.IntentSucceeded,
			Metadata: map[string]string{
				payment.MetaCustomerName:  "Ada",
				payment.MetaCustomerEmail: "ada@example.com",
			},
		},
	}
}

func seedPending(t *testing.T, repo *order.Memory, intentID string) *domain.Order {
	t.Helper()
	o, err := repo.Insert(context.Background(), domain.Order{
		CustomerName:    "Ada",
		CustomerEmail:   "ada@example.com",
		AmountCents:     6000,
		PaymentIntentID: intentID,
		Status:          domain.OrderPending,
		PaymentStatus:   domain.PaymentPending,
	})
	require.NoError(t, err)
	return o
}

func TestHandle_SucceededMarksExistingOrderPaid(t *testing.T) {
	repo := order.NewMemory()
	rec := &stubRecorder{orders: repo}
	svc := New(repo, rec, nil)
	seedPending(t, repo, "pi_1")

	out, err := svc.Handle(context.Background(), event(payment.EventIntentSucceeded, "pi_1"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, out)
	assert.Zero(t, rec.calls)

	o, err := repo.GetByPaymentIntentID(context.Background(), "pi_1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderConfirmed, o.Status)
	assert.Equal(t, domain.PaymentPaid, o.PaymentStatus)
}

func TestHandle_SucceededWithoutOrderCreatesIt(t *testing.T) {
	repo := order.NewMemory()
	rec := &stubRecorder{orders: repo}
	svc := New(repo, rec, nil)

	out, err := svc.Handle(context.Background(), event(payment.EventIntentSucceeded, "pi_2"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, out)
	assert.Equal(t, 1, rec.calls)
	assert.Equal(t, 1, repo.Len())

	// A redelivery updates the same order.
	out, err = svc.Handle(context.Background(), event(payment.EventIntentSucceeded, "pi_2"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, out)
	assert.Equal(t, 1, repo.Len())
}

func TestHandle_SucceededRecordFailureIsRetried(t *testing.T) {
	repo := order.NewMemory()
	rec := &stubRecorder{orders: repo, err: domain.NewError(domain.KindPartialFailure, "not saved", nil)}
	svc := New(repo, rec, nil)

	_, err := svc.Handle(context.Background(), event(payment.EventIntentSucceeded, "pi_3"))
	require.Error(t, err)
	assert.Equal(t, domain.KindPartialFailure, domain.KindOf(err))
}

func TestHandle_StoreDownIsRetried(t *testing.T) {
	repo := order.NewMemory()
	repo.Err = errors.New("connection refused")
	svc := New(repo, &stubRecorder{orders: repo}, nil)

	_, err := svc.Handle(context.Background(), event(payment.EventIntentFailed, "pi_4"))
	require.Error(t, err)
}

func TestHandle_FailedCancelsPendingOrder(t *testing.T) {
	repo := order.NewMemory()
	svc := New(repo, &stubRecorder{orders: repo}, nil)
	seedPending(t, repo, "pi_5")

	out, err := svc.Handle(context.Background(), event(payment.EventIntentFailed, "pi_5"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, out)

	o, err := repo.GetByPaymentIntentID(context.Background(), "pi_5")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderCancelled, o.Status)
	assert.Equal(t, domain.PaymentFailed, o.PaymentStatus)
}

func TestHandle_FailedNeverDowngradesPaidOrder(t *testing.T) {
	repo := order.NewMemory()
	svc := New(repo, &stubRecorder{orders: repo}, nil)
	_, _, err := repo.UpsertByPaymentIntent(context.Background(), domain.Order{
		CustomerName:    "Ada",
		CustomerEmail:   "ada@example.com",
		AmountCents:     6000,
		PaymentIntentID: "pi_6",
		Status:          domain.OrderConfirmed,
		PaymentStatus:   domain.PaymentPaid,
	})
	require.NoError(t, err)

	_, err = svc.Handle(context.Background(), event(payment.EventIntentFailed, "pi_6"))
	require.NoError(t, err)

	o, err := repo.GetByPaymentIntentID(context.Background(), "pi_6")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPaid, o.PaymentStatus)
	assert.Equal(t, domain.OrderConfirmed, o.Status)
}

func TestHandle_FailedWithoutOrderIsNoop(t *testing.T) {
	repo := order.NewMemory()
	svc := New(repo, &stubRecorder{orders: repo}, nil)

	out, err := svc.Handle(context.Background(), event(payment.EventIntentFailed, "pi_7"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoOrder, out)
	assert.Zero(t, repo.Len())
}

func TestHandle_OtherEventsIgnored(t *testing.T) {
	repo := order.NewMemory()
	rec := &stubRecorder{orders: repo}
	svc := New(repo, rec, nil)

	out, err := svc.Handle(context.Background(), &payment.WebhookEvent{ID: "evt_9", Type: payment.EventOther, Raw: "charge.refunded"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, out)
	assert.Zero(t, rec.calls)
	assert.Zero(t, repo.Len())
}
