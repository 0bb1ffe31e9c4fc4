// Package checkout runs the booking lifecycle: a cart becomes a payment
// intent, a confirmed payment becomes an order, an order gets a schedule.
// Every step can be re-derived from the payment provider and the order store,
// so a browser that left mid-flow can always resume.
package checkout

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"serenity-booking/internal/domain"
	"serenity-booking/internal/logging"
	"serenity-booking/internal/payment"
	"serenity-booking/internal/service/cart"
	"serenity-booking/internal/service/visitor"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

type orderStore interface {
	UpsertByPaymentIntent(ctx context.Context, o domain.Order) (*domain.Order, bool, error)
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	GetByPaymentIntentID(ctx context.Context, intentID string) (*domain.Order, error)
	Patch(ctx context.Context, id string, p domain.OrderPatch) (*domain.Order, error)
}

type serviceCatalog interface {
	Get(id string) (domain.Service, bool)
}

type profiles interface {
	Current(ctx context.Context, sess visitor.Session) (*domain.VisitorProfile, error)
}

type carts interface {
	Clear(ctx context.Context, sess visitor.Session) (cart.View, error)
}

type customers interface {
	Upsert(ctx context.Context, in domain.CustomerDetails) (*domain.Customer, error)
}

// Options are the deployment settings checkout needs.
type Options struct {
	Site         string
	Environment  string
	Currency     string
	ReturnURL    string
	StoreTimeout time.Duration
}

// Deps groups collaborators. Customers may be nil.
type Deps struct {
	Gateway   payment.Gateway
	Orders    orderStore
	Catalog   serviceCatalog
	Profiles  profiles
	Carts     carts
	Customers customers
}

type Service struct {
	deps   Deps
	opts   Options
	logger *zap.Logger
}

func New(deps Deps, opts Options, logger *zap.Logger) *Service {
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 5 * time.Second
	}
	return &Service{deps: deps, opts: opts, logger: logging.OrNop(logger).Named("checkout")}
}

// SubmitInput is the checkout form. ServiceID, when set, books that single
// service instead of the cart.
type SubmitInput struct {
	Customer      domain.CustomerDetails `json:"customer"`
	ScheduledDate string                 `json:"scheduledDate"`
	ScheduledTime string                 `json:"scheduledTime"`
	ServiceID     string                 `json:"serviceId,omitempty"`
}

// ConfirmInput confirms an intent server-side.
type ConfirmInput struct {
	PaymentIntentID string       `json:"paymentIntentId"`
	PaymentMethodID string       `json:"paymentMethodId"`
	Form            *SubmitInput `json:"form,omitempty"`
}

// ReturnParams are the query parameters the provider appends to the return URL.
type ReturnParams struct {
	PaymentIntentID string `form:"payment_intent"`
	ClientSecret    string `form:"payment_intent_client_secret"`
	RedirectStatus  string `form:"redirect_status"`
}

// ScheduleInput sets the appointment on a persisted order.
type ScheduleInput struct {
	Date  string  `json:"scheduledDate"`
	Time  string  `json:"scheduledTime"`
	Notes *string `json:"notes,omitempty"`
}

// Submit validates the form and cart and creates a payment intent for the
// cart total. Nothing reaches the provider unless validation passes.
func (s *Service) Submit(ctx context.Context, sess visitor.Session, in SubmitInput) (State, error) {
	st := State{Phase: PhaseDraft}

	p, err := s.deps.Profiles.Current(ctx, sess)
	if err != nil {
		return st, st.fail(domain.NewError(domain.KindUnavailable, "could not load your session", err))
	}

	in.Customer = in.Customer.Normalize()
	// Keep what the visitor typed even if the rest fails.
	visitor.ApplyContact(p, visitor.ProfileInput{
		Name: in.Customer.Name, Email: in.Customer.Email, Phone: in.Customer.Phone, Address: in.Customer.Address,
	})
	if err := sess.Save(ctx, p); err != nil {
		s.logger.Warn("save contact details", zap.String("visitor_id", p.ID), zap.Error(err))
	}

	items, err := s.itemsFor(in, p)
	if err != nil {
		return st, st.fail(err)
	}
	if err := in.Customer.Validate(true); err != nil {
		return st, st.fail(err)
	}
	if err := validateSchedule(in.ScheduledDate, in.ScheduledTime, false); err != nil {
		return st, st.fail(err)
	}
	amount, err := items.CheckedTotalCents()
	if err != nil {
		return st, st.fail(err)
	}
	if err := payment.ValidateAmount(amount); err != nil {
		return st, st.fail(err)
	}

	pi, err := s.deps.Gateway.CreateIntent(ctx, payment.IntentRequest{
		AmountCents:       amount,
		Currency:          s.opts.Currency,
		ServiceDescriptor: serviceDescriptor(items),
		Customer:          in.Customer,
		ScheduledDate:     in.ScheduledDate,
		ScheduledTime:     in.ScheduledTime,
		Items:             items,
		VisitorID:         p.ID,
	})
	if err != nil {
		return st, st.fail(err)
	}
	if err := st.apply(EventIntentCreated); err != nil {
		return st, st.fail(err)
	}
	st.PaymentIntentID = pi.ID
	st.ClientSecret = pi.ClientSecret
	st.AmountCents = pi.AmountCents
	st.PaymentStatus = domain.PaymentPending
	st.IntentStatus = pi.Status
	s.logger.Info("checkout submitted",
		zap.String("visitor_id", p.ID),
		zap.String("payment_intent_id", pi.ID),
		zap.Int64("amount_cents", amount))
	return st, nil
}

// Confirm asks the provider to confirm the intent with a payment method.
func (s *Service) Confirm(ctx context.Context, sess visitor.Session, in ConfirmInput) (State, error) {
	st := State{Phase: PhaseAwaitingPayment, PaymentIntentID: in.PaymentIntentID}
	if strings.TrimSpace(in.PaymentIntentID) == "" {
		return st, st.fail(domain.Validation("payment intent id required"))
	}
	pi, err := s.deps.Gateway.ConfirmIntent(ctx, in.PaymentIntentID, in.PaymentMethodID, s.opts.ReturnURL)
	if err != nil {
		return st, st.fail(err)
	}
	return s.advance(ctx, sess, st, pi, in.Form)
}

// Resume is the re-entry point after a provider redirect. It trusts nothing
// but the provider's view of the intent.
func (s *Service) Resume(ctx context.Context, sess visitor.Session, rp ReturnParams) (State, error) {
	st := State{Phase: PhaseAwaitingPayment, PaymentIntentID: rp.PaymentIntentID}
	if rp.PaymentIntentID == "" || rp.ClientSecret == "" {
		st.Phase = PhaseError
		return st, st.fail(domain.Validation("missing payment details in return URL"))
	}
	pi, err := s.deps.Gateway.RetrieveIntent(ctx, rp.PaymentIntentID)
	if err != nil {
		return st, st.fail(err)
	}
	if pi.ClientSecret != "" && pi.ClientSecret != rp.ClientSecret {
		return st, st.fail(domain.Validation("payment details do not match"))
	}
	return s.advance(ctx, sess, st, pi, nil)
}

// Lookup re-derives the state of a checkout from the store, then the provider.
// A paid order is final; anything else is settled by the intent status. It
// never writes.
func (s *Service) Lookup(ctx context.Context, intentID string) (State, error) {
	st := State{Phase: PhaseAwaitingPayment, PaymentIntentID: intentID}
	if intentID == "" {
		return st, st.fail(domain.Validation("payment intent id required"))
	}

	sctx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	o, err := s.deps.Orders.GetByPaymentIntentID(sctx, intentID)
	cancel()
	switch {
	case err == nil:
		if o.PaymentStatus == domain.PaymentPaid {
			return stateForOrder(o), nil
		}
		st.Order = o
	case !errors.Is(err, domain.ErrNotFound):
		return st, st.fail(storeError(err))
	}

	pi, err := s.deps.Gateway.RetrieveIntent(ctx, intentID)
	if err != nil {
		return st, st.fail(err)
	}
	st.AmountCents = pi.AmountCents
	st.IntentStatus = pi.Status
	switch pi.Status {
	case domain.IntentSucceeded:
		// Paid but not yet recorded; the webhook or a resume will persist it.
		st.Phase = PhasePaymentConfirmed
		st.PaymentStatus = domain.PaymentPaid
	case domain.IntentRequiresAction, domain.IntentRequiresPayment:
		st.PaymentStatus = domain.PaymentPending
		st.RedirectURL = pi.RedirectURL
	case domain.IntentFailed, domain.IntentCanceled:
		st.PaymentStatus = domain.PaymentFailed
		return st, st.fail(declined(pi))
	default:
		st.PaymentStatus = domain.PaymentPending
		return st, st.fail(incomplete())
	}
	return st, nil
}

// Schedule sets date and time on a persisted order. It can be retried on its
// own without touching payment.
func (s *Service) Schedule(ctx context.Context, orderID string, in ScheduleInput) (State, error) {
	st := State{Phase: PhaseOrderPersisted}
	if err := validateSchedule(in.Date, in.Time, true); err != nil {
		return st, st.fail(err)
	}

	sctx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()

	o, err := s.deps.Orders.GetByID(sctx, orderID)
	if err != nil {
		return st, st.fail(storeError(err))
	}
	st = stateForOrder(o)
	if o.PaymentStatus != domain.PaymentPaid {
		return st, st.fail(domain.Validation("order is not paid"))
	}
	if err := st.apply(EventScheduleSet); err != nil {
		return st, st.fail(err)
	}

	patched, err := s.deps.Orders.Patch(sctx, orderID, domain.OrderPatch{
		ScheduledDate: &in.Date,
		ScheduledTime: &in.Time,
		Notes:         in.Notes,
	})
	if err != nil {
		st.Phase = stateForOrder(o).Phase
		return st, st.fail(storeError(err))
	}
	st.Order = patched
	s.logger.Info("order scheduled",
		zap.String("order_id", orderID),
		zap.String("scheduled_date", in.Date),
		zap.String("scheduled_time", in.Time))
	return st, nil
}

// Record persists the order for an intent the provider reports as succeeded,
// using only the intent's metadata. The webhook uses it as a backstop when the
// browser never came back.
func (s *Service) Record(ctx context.Context, pi *domain.PaymentIntent) (State, error) {
	st := State{Phase: PhaseAwaitingPayment, PaymentIntentID: pi.ID}
	if pi.Status != domain.IntentSucceeded {
		return st, st.fail(incomplete())
	}
	return s.advance(ctx, nil, st, pi, nil)
}

// advance moves an AwaitingPayment state according to the provider status.
func (s *Service) advance(ctx context.Context, sess visitor.Session, st State, pi *domain.PaymentIntent, form *SubmitInput) (State, error) {
	st.PaymentIntentID = pi.ID
	st.AmountCents = pi.AmountCents
	st.IntentStatus = pi.Status

	switch pi.Status {
	case domain.IntentSucceeded:
		if err := st.apply(EventPaymentSucceeded); err != nil {
			return st, st.fail(err)
		}
		st.PaymentStatus = domain.PaymentPaid
		return s.persist(ctx, sess, st, pi, form)
	case domain.IntentRequiresAction:
		if pi.RedirectURL == "" {
			return st, st.fail(incomplete())
		}
		if err := st.apply(EventActionRequired); err != nil {
			return st, st.fail(err)
		}
		st.PaymentStatus = domain.PaymentPending
		st.RedirectURL = pi.RedirectURL
		return st, nil
	case domain.IntentRequiresPayment, domain.IntentFailed, domain.IntentCanceled:
		st.PaymentStatus = domain.PaymentFailed
		s.logger.Info("payment declined", zap.String("payment_intent_id", pi.ID), zap.String("status", string(pi.Status)))
		return st, st.fail(declined(pi))
	default:
		st.PaymentStatus = domain.PaymentPending
		return st, st.fail(incomplete())
	}
}

// persist upserts the order for a succeeded intent. The provider amount is
// authoritative. Running it twice for one intent yields one order.
func (s *Service) persist(ctx context.Context, sess visitor.Session, st State, pi *domain.PaymentIntent, form *SubmitInput) (State, error) {
	details := payment.DetailsFromMetadata(pi.Metadata)
	var profile *domain.VisitorProfile
	if sess != nil {
		if p, err := s.deps.Profiles.Current(ctx, sess); err == nil {
			profile = p
		}
	}
	mergeDetails(&details, form, profile)

	order := domain.Order{
		CustomerName:    details.Customer.Name,
		CustomerEmail:   details.Customer.Email,
		CustomerPhone:   details.Customer.Phone,
		CustomerAddress: details.Customer.Address,
		ServiceType:     details.ServiceType,
		Items:           details.Items,
		AmountCents:     pi.AmountCents,
		Currency:        pi.Currency,
		PaymentIntentID: pi.ID,
		ScheduledDate:   details.ScheduledDate,
		ScheduledTime:   details.ScheduledTime,
		Notes:           details.Customer.Notes,
		Status:          domain.OrderConfirmed,
		PaymentStatus:   domain.PaymentPaid,
		VisitorID:       details.VisitorID,
	}

	sctx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	saved, created, err := s.deps.Orders.UpsertByPaymentIntent(sctx, order)
	cancel()
	if err != nil {
		s.logger.Error("payment succeeded but order not saved",
			zap.String("payment_intent_id", pi.ID),
			zap.Error(err))
		return st, st.fail(domain.NewError(domain.KindPartialFailure,
			"Your payment was received but we could not save your booking. Please contact support and quote reference "+pi.ID+". Do not pay again.",
			err))
	}

	if err := st.apply(EventOrderSaved); err != nil {
		return st, st.fail(err)
	}
	if saved.Scheduled() {
		if err := st.apply(EventScheduleSet); err != nil {
			return st, st.fail(err)
		}
	}
	st.Order = saved
	st.PaymentStatus = saved.PaymentStatus
	st.ClientSecret = ""
	s.logger.Info("order persisted",
		zap.String("order_id", saved.ID),
		zap.String("payment_intent_id", pi.ID),
		zap.Bool("created", created))

	if sess != nil && s.deps.Carts != nil {
		if _, err := s.deps.Carts.Clear(ctx, sess); err != nil {
			s.logger.Warn("clear cart after order", zap.String("order_id", saved.ID), zap.Error(err))
		}
	}
	if s.deps.Customers != nil && details.Customer.Email != "" && details.Customer.Name != "" {
		if _, err := s.deps.Customers.Upsert(ctx, details.Customer); err != nil {
			s.logger.Warn("upsert customer after order", zap.String("order_id", saved.ID), zap.Error(err))
		}
	}
	return st, nil
}

func (s *Service) itemsFor(in SubmitInput, p *domain.VisitorProfile) (domain.LineItems, error) {
	if id := strings.TrimSpace(in.ServiceID); id != "" {
		svc, ok := s.deps.Catalog.Get(id)
		if !ok {
			return nil, domain.Validation("unknown service " + id)
		}
		return domain.LineItems{{
			ServiceID:      svc.ID,
			Title:          svc.Title,
			UnitPriceCents: svc.UnitPriceCents,
			DurationLabel:  svc.DurationLabel,
			Quantity:       1,
		}}, nil
	}
	if len(p.CartItems) == 0 {
		return nil, domain.Validation("cart is empty")
	}
	return append(domain.LineItems{}, p.CartItems...), nil
}

// mergeDetails fills order details: form state first, then intent metadata
// (already in d), then the visitor profile for anything still blank.
func mergeDetails(d *payment.OrderDetails, form *SubmitInput, profile *domain.VisitorProfile) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	fill := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	if form != nil {
		c := form.Customer.Normalize()
		set(&d.Customer.Name, c.Name)
		set(&d.Customer.Email, c.Email)
		set(&d.Customer.Phone, c.Phone)
		set(&d.Customer.Address, c.Address)
		set(&d.Customer.Notes, c.Notes)
		set(&d.ScheduledDate, form.ScheduledDate)
		set(&d.ScheduledTime, form.ScheduledTime)
	}
	if profile != nil {
		fill(&d.Customer.Name, profile.Name)
		fill(&d.Customer.Email, profile.Email)
		fill(&d.Customer.Phone, profile.Phone)
		fill(&d.Customer.Address, profile.Address)
		fill(&d.VisitorID, profile.ID)
		if len(d.Items) == 0 {
			d.Items = append(domain.LineItems{}, profile.CartItems...)
		}
	}
	if d.ServiceType == "" {
		d.ServiceType = serviceDescriptor(d.Items)
	}
}

func serviceDescriptor(items domain.LineItems) string {
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ServiceID)
	}
	return strings.Join(ids, ",")
}

func validateSchedule(date, clock string, required bool) error {
	if required && (date == "" || clock == "") {
		return domain.Validation("scheduled date and time are required")
	}
	if date != "" {
		if _, err := time.Parse(dateLayout, date); err != nil {
			return domain.Validation("scheduled date must be YYYY-MM-DD")
		}
	}
	if clock != "" {
		if _, err := time.Parse(timeLayout, clock); err != nil {
			return domain.Validation("scheduled time must be HH:MM")
		}
	}
	return nil
}

func stateForOrder(o *domain.Order) State {
	st := State{
		Phase:           PhaseOrderPersisted,
		PaymentIntentID: o.PaymentIntentID,
		AmountCents:     o.AmountCents,
		PaymentStatus:   o.PaymentStatus,
		Order:           o,
	}
	if o.Scheduled() {
		st.Phase = PhaseScheduled
	}
	return st
}

func storeError(err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NewError(domain.KindNotFound, "order not found", err)
	}
	if _, ok := domain.AsError(err); ok {
		return err
	}
	return domain.NewError(domain.KindUnavailable, "order store unavailable, please try again", err)
}

func declined(pi *domain.PaymentIntent) error {
	msg := pi.FailureMessage
	if msg == "" {
		msg = "Payment was declined. Please start a new checkout with another payment method."
	}
	return domain.NewError(domain.KindPaymentDeclined, msg, nil)
}

func incomplete() error {
	return domain.NewError(domain.KindPaymentIncomplete, "Payment not completed", nil)
}
