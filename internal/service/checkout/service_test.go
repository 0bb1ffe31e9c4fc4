package checkout

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serenity-booking/internal/domain"
)

func TestSubmit_CreatesIntentForCartTotal(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	_, err := h.carts.AddItem(ctx, h.sess, "cleaning", 1)
	require.NoError(t, err)
	_, err = h.carts.AddItem(ctx, h.sess, "massage-30", 2)
	require.NoError(t, err)

	st, err := h.svc.Submit(ctx, h.sess, validForm())
	require.NoError(t, err)
	assert.Equal(t, PhaseAwaitingPayment, st.Phase)
	assert.Equal(t, "pi_1", st.PaymentIntentID)
	assert.Equal(t, "pi_1_secret", st.ClientSecret)
	assert.Equal(t, int64(16000), h.gateway.lastCreate.AmountCents)
	assert.Equal(t, "cleaning,massage-30", h.gateway.lastCreate.ServiceDescriptor)
	assert.NotEmpty(t, h.gateway.lastCreate.VisitorID)

	p, err := h.sess.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", p.Name)
	assert.Len(t, p.CartItems, 2, "cart is kept until the order is saved")
}

func TestSubmit_SingleServiceIgnoresCart(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	in := validForm()
	in.ServiceID = "massage-60"

	st, err := h.svc.Submit(ctx, h.sess, in)
	require.NoError(t, err)
	assert.Equal(t, PhaseAwaitingPayment, st.Phase)
	assert.Equal(t, int64(15000), h.gateway.lastCreate.AmountCents)
}

func TestSubmit_ValidationHappensBeforeGateway(t *testing.T) {
	ctx := context.Background()
	cases := map[string]func(*SubmitInput){
		"missing phone": func(in *SubmitInput) { in.Customer.Phone = "  " },
		"bad email":     func(in *SubmitInput) { in.Customer.Email = "not-an-email" },
		"bad date":      func(in *SubmitInput) { in.ScheduledDate = "05/01/2026" },
		"bad time":      func(in *SubmitInput) { in.ScheduledTime = "9am" },
		"unknown item":  func(in *SubmitInput) { in.ServiceID = "gardening" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			h := newHarness()
			_, err := h.carts.AddItem(ctx, h.sess, "cleaning", 1)
			require.NoError(t, err)
			in := validForm()
			mutate(&in)

			st, err := h.svc.Submit(ctx, h.sess, in)
			assert.Equal(t, domain.KindValidation, domain.KindOf(err))
			assert.Equal(t, PhaseError, st.Phase)
			assert.Zero(t, h.gateway.createCalls)

			view, err := h.carts.Get(ctx, h.sess)
			require.NoError(t, err)
			assert.Len(t, view.Items, 1, "cart preserved")
		})
	}
}

func TestSubmit_EmptyCart(t *testing.T) {
	h := newHarness()
	_, err := h.svc.Submit(context.Background(), h.sess, validForm())
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	assert.Zero(t, h.gateway.createCalls)
}

// A stored cart is never trusted to be in range; a wrapped total must not
// reach the provider.
func TestSubmit_RejectsOverflowingCart(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	p, err := h.visitors.Current(ctx, h.sess)
	require.NoError(t, err)
	p.CartItems = domain.LineItems{{ServiceID: "cleaning", Title: "Cleaning", UnitPriceCents: 6000, Quantity: 1<<60 + 1}}
	require.NoError(t, h.sess.Save(ctx, p))

	st, err := h.svc.Submit(ctx, h.sess, validForm())
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	assert.Equal(t, PhaseError, st.Phase)
	assert.Zero(t, h.gateway.createCalls)
}

func TestSubmit_GatewayNotConfigured(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	h.gateway.createErr = domain.NewError(domain.KindNotConfigured, "payment system not configured", nil)
	_, err := h.carts.AddItem(ctx, h.sess, "cooking", 1)
	require.NoError(t, err)

	st, err := h.svc.Submit(ctx, h.sess, validForm())
	assert.Equal(t, domain.KindNotConfigured, domain.KindOf(err))
	assert.Equal(t, PhaseError, st.Phase)
	require.NotNil(t, st.Err)
	assert.Equal(t, "payment system not configured", st.Err.Message)
}

func TestConfirm_SucceededPersistsOrder(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	_, err := h.carts.AddItem(ctx, h.sess, "cleaning", 1)
	require.NoError(t, err)
	submitted, err := h.svc.Submit(ctx, h.sess, validForm())
	require.NoError(t, err)

	st, err := h.svc.Confirm(ctx, h.sess, ConfirmInput{PaymentIntentID: submitted.PaymentIntentID, PaymentMethodID: "pm_card_visa"})
	require.NoError(t, err)
	assert.Equal(t, PhaseOrderPersisted, st.Phase)
	require.NotNil(t, st.Order)
	assert.Equal(t, int64(6000), st.Order.AmountCents)
	assert.Equal(t, "60", st.Order.Amount.String())
	assert.Equal(t, domain.OrderConfirmed, st.Order.Status)
	assert.Equal(t, domain.PaymentPaid, st.Order.PaymentStatus)
	assert.Equal(t, "1 Main St", st.Order.CustomerAddress)
	assert.Empty(t, st.ClientSecret)

	view, err := h.carts.Get(ctx, h.sess)
	require.NoError(t, err)
	assert.Empty(t, view.Items, "cart cleared after order")
	assert.Equal(t, 1, h.customers.calls)
	assert.Equal(t, "ada@example.com", h.customers.lastUpsert.Email)
}

func TestConfirm_WithScheduleEndsScheduled(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	in := validForm()
	in.ServiceID = "combo"
	in.ScheduledDate = "2026-05-01"
	in.ScheduledTime = "09:30"
	submitted, err := h.svc.Submit(ctx, h.sess, in)
	require.NoError(t, err)

	st, err := h.svc.Confirm(ctx, h.sess, ConfirmInput{PaymentIntentID: submitted.PaymentIntentID})
	require.NoError(t, err)
	assert.Equal(t, PhaseScheduled, st.Phase)
	assert.Equal(t, "09:30", st.Order.ScheduledTime)
}

func TestConfirm_RequiresActionRedirects(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	h.gateway.confirmStatus = domain.IntentRequiresAction
	in := validForm()
	in.ServiceID = "cooking"
	submitted, err := h.svc.Submit(ctx, h.sess, in)
	require.NoError(t, err)

	st, err := h.svc.Confirm(ctx, h.sess, ConfirmInput{PaymentIntentID: submitted.PaymentIntentID})
	require.NoError(t, err)
	assert.Equal(t, PhaseAwaitingPayment, st.Phase)
	assert.Equal(t, "https://bank.example/3ds/"+submitted.PaymentIntentID, st.RedirectURL)
	assert.Zero(t, h.orders.Len())
}

func TestConfirm_DeclinedIsFailed(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	h.gateway.confirmErr = domain.NewError(domain.KindPaymentDeclined, "Your card was declined.", nil)
	in := validForm()
	in.ServiceID = "cooking"
	submitted, err := h.svc.Submit(ctx, h.sess, in)
	require.NoError(t, err)

	st, err := h.svc.Confirm(ctx, h.sess, ConfirmInput{PaymentIntentID: submitted.PaymentIntentID})
	assert.Equal(t, domain.KindPaymentDeclined, domain.KindOf(err))
	assert.Equal(t, PhaseFailed, st.Phase)
	assert.Zero(t, h.orders.Len())
}

func TestResume_MissingParams(t *testing.T) {
	h := newHarness()
	st, err := h.svc.Resume(context.Background(), h.sess, ReturnParams{PaymentIntentID: "pi_1"})
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	assert.Equal(t, PhaseError, st.Phase)
	assert.Zero(t, h.gateway.retrieveCalls)
}

func TestResume_SecretMismatch(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	in := validForm()
	in.ServiceID = "cooking"
	submitted, err := h.svc.Submit(ctx, h.sess, in)
	require.NoError(t, err)
	h.gateway.setStatus(submitted.PaymentIntentID, domain.IntentSucceeded)

	_, err = h.svc.Resume(ctx, h.sess, ReturnParams{PaymentIntentID: submitted.PaymentIntentID, ClientSecret: "other"})
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	assert.Zero(t, h.orders.Len())
}

func TestResume_TwiceCreatesOneOrder(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	in := validForm()
	in.ServiceID = "cleaning"
	submitted, err := h.svc.Submit(ctx, h.sess, in)
	require.NoError(t, err)
	h.gateway.setStatus(submitted.PaymentIntentID, domain.IntentSucceeded)
	rp := ReturnParams{PaymentIntentID: submitted.PaymentIntentID, ClientSecret: submitted.ClientSecret}

	first, err := h.svc.Resume(ctx, h.sess, rp)
	require.NoError(t, err)
	second, err := h.svc.Resume(ctx, h.sess, rp)
	require.NoError(t, err)

	assert.Equal(t, first.Order.ID, second.Order.ID)
	assert.Equal(t, 1, h.orders.Len())
}

func TestResume_FromMetadataWithFreshSession(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	in := validForm()
	in.ServiceID = "massage-30"
	in.Customer.Notes = "side door"
	submitted, err := h.svc.Submit(ctx, h.sess, in)
	require.NoError(t, err)
	h.gateway.setStatus(submitted.PaymentIntentID, domain.IntentSucceeded)

	other := newHarness()
	other.gateway = h.gateway
	other.svc.deps.Gateway = h.gateway

	st, err := other.svc.Resume(ctx, other.sess, ReturnParams{PaymentIntentID: submitted.PaymentIntentID, ClientSecret: submitted.ClientSecret})
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", st.Order.CustomerName)
	assert.Equal(t, "side door", st.Order.Notes)
	assert.Equal(t, "massage-30", st.Order.ServiceType)
	require.Len(t, st.Order.Items, 1)
}

func TestResume_StoreDownIsPartialFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	in := validForm()
	in.ServiceID = "cleaning"
	submitted, err := h.svc.Submit(ctx, h.sess, in)
	require.NoError(t, err)
	h.gateway.setStatus(submitted.PaymentIntentID, domain.IntentSucceeded)
	h.orders.Err = errors.New("connection refused")

	st, err := h.svc.Resume(ctx, h.sess, ReturnParams{PaymentIntentID: submitted.PaymentIntentID, ClientSecret: submitted.ClientSecret})
	require.Error(t, err)
	assert.Equal(t, PhaseError, st.Phase)
	require.NotNil(t, st.Err)
	assert.Equal(t, domain.KindPartialFailure, st.Err.Kind)
	assert.False(t, st.Err.Retriable())
	assert.Contains(t, st.Err.Message, "contact support")
	assert.Contains(t, st.Err.Message, submitted.PaymentIntentID)

	view, err := h.carts.Get(ctx, h.sess)
	require.NoError(t, err)
	assert.Len(t, view.Items, 0, "single-service checkout never touched the cart")
}

func TestResume_FailedIntent(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	in := validForm()
	in.ServiceID = "cleaning"
	submitted, err := h.svc.Submit(ctx, h.sess, in)
	require.NoError(t, err)
	h.gateway.setStatus(submitted.PaymentIntentID, domain.IntentFailed)

	st, err := h.svc.Resume(ctx, h.sess, ReturnParams{PaymentIntentID: submitted.PaymentIntentID, ClientSecret: submitted.ClientSecret})
	assert.Equal(t, domain.KindPaymentDeclined, domain.KindOf(err))
	assert.Equal(t, PhaseFailed, st.Phase)
	assert.Equal(t, domain.PaymentFailed, st.PaymentStatus)
}

func TestSchedule(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	in := validForm()
	in.ServiceID = "cleaning"
	submitted, err := h.svc.Submit(ctx, h.sess, in)
	require.NoError(t, err)
	confirmed, err := h.svc.Confirm(ctx, h.sess, ConfirmInput{PaymentIntentID: submitted.PaymentIntentID})
	require.NoError(t, err)
	require.Equal(t, PhaseOrderPersisted, confirmed.Phase)

	_, err = h.svc.Schedule(ctx, confirmed.Order.ID, ScheduleInput{Date: "2026-05-01"})
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	h.orders.Err = errors.New("timeout")
	st, err := h.svc.Schedule(ctx, confirmed.Order.ID, ScheduleInput{Date: "2026-05-01", Time: "14:00"})
	assert.Equal(t, domain.KindUnavailable, domain.KindOf(err))
	assert.True(t, st.Err.Retriable())
	h.orders.Err = nil

	st, err = h.svc.Schedule(ctx, confirmed.Order.ID, ScheduleInput{Date: "2026-05-01", Time: "14:00"})
	require.NoError(t, err)
	assert.Equal(t, PhaseScheduled, st.Phase)
	assert.Equal(t, "14:00", st.Order.ScheduledTime)

	_, err = h.svc.Schedule(ctx, "missing", ScheduleInput{Date: "2026-05-01", Time: "14:00"})
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestSchedule_UnpaidOrderRejected(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	o, err := h.orders.Insert(ctx, domain.Order{CustomerEmail: "x@example.com", AmountCents: 5000})
	require.NoError(t, err)

	_, err = h.svc.Schedule(ctx, o.ID, ScheduleInput{Date: "2026-05-01", Time: "14:00"})
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
}

func TestLookup(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	in := validForm()
	in.ServiceID = "cleaning"
	submitted, err := h.svc.Submit(ctx, h.sess, in)
	require.NoError(t, err)

	st, err := h.svc.Lookup(ctx, submitted.PaymentIntentID)
	require.NoError(t, err)
	assert.Equal(t, PhaseAwaitingPayment, st.Phase)

	h.gateway.setStatus(submitted.PaymentIntentID, domain.IntentSucceeded)
	st, err = h.svc.Lookup(ctx, submitted.PaymentIntentID)
	require.NoError(t, err)
	assert.Equal(t, PhasePaymentConfirmed, st.Phase)
	assert.Zero(t, h.orders.Len(), "lookup never writes")

	_, err = h.svc.Resume(ctx, h.sess, ReturnParams{PaymentIntentID: submitted.PaymentIntentID, ClientSecret: submitted.ClientSecret})
	require.NoError(t, err)
	st, err = h.svc.Lookup(ctx, submitted.PaymentIntentID)
	require.NoError(t, err)
	assert.Equal(t, PhaseOrderPersisted, st.Phase)
	require.NotNil(t, st.Order)
}

func TestRecord_BuildsOrderFromMetadata(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	in := validForm()
	in.ServiceID = "cooking"
	submitted, err := h.svc.Submit(ctx, h.sess, in)
	require.NoError(t, err)
	h.gateway.setStatus(submitted.PaymentIntentID, domain.IntentSucceeded)
	pi, err := h.gateway.RetrieveIntent(ctx, submitted.PaymentIntentID)
	require.NoError(t, err)

	st, err := h.svc.Record(ctx, pi)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", st.Order.CustomerEmail)
	assert.Equal(t, "cooking", st.Order.ServiceType)
	assert.NotEmpty(t, st.Order.VisitorID)
}

func TestLookup_UnpaidOrderFollowsIntent(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	in := validForm()
	in.ServiceID = "cleaning"
	submitted, err := h.svc.Submit(ctx, h.sess, in)
	require.NoError(t, err)
	_, err = h.orders.Insert(ctx, domain.Order{CustomerEmail: "ada@example.com", AmountCents: 6000, PaymentIntentID: submitted.PaymentIntentID})
	require.NoError(t, err)

	h.gateway.setStatus(submitted.PaymentIntentID, domain.IntentProcessing)
	st, err := h.svc.Lookup(ctx, submitted.PaymentIntentID)
	assert.Equal(t, domain.KindPaymentIncomplete, domain.KindOf(err))
	assert.Equal(t, PhaseError, st.Phase)
	assert.Equal(t, domain.IntentProcessing, st.IntentStatus)
	require.NotNil(t, st.Order)

	h.gateway.setStatus(submitted.PaymentIntentID, domain.IntentFailed)
	st, err = h.svc.Lookup(ctx, submitted.PaymentIntentID)
	assert.Equal(t, domain.KindPaymentDeclined, domain.KindOf(err))
	assert.Equal(t, PhaseFailed, st.Phase)
	assert.Equal(t, domain.PaymentFailed, st.PaymentStatus)
	assert.Equal(t, domain.IntentFailed, st.IntentStatus)

	stored, err := h.orders.GetByPaymentIntentID(ctx, submitted.PaymentIntentID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPending, stored.PaymentStatus, "lookup never writes")
}

func TestResume_SurfacesRawIntentStatus(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	in := validForm()
	in.ServiceID = "massage-30"
	submitted, err := h.svc.Submit(ctx, h.sess, in)
	require.NoError(t, err)
	assert.Equal(t, domain.IntentRequiresPayment, submitted.IntentStatus)

	h.gateway.setStatus(submitted.PaymentIntentID, domain.IntentProcessing)
	st, err := h.svc.Resume(ctx, h.sess, ReturnParams{PaymentIntentID: submitted.PaymentIntentID, ClientSecret: submitted.ClientSecret})
	assert.Equal(t, domain.KindPaymentIncomplete, domain.KindOf(err))
	assert.Equal(t, domain.IntentProcessing, st.IntentStatus)
}
