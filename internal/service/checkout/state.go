package checkout

import (
	"errors"
	"fmt"

	"serenity-booking/internal/domain"
)

// Phase is where a checkout attempt stands.
type Phase string

const (
	PhaseDraft            Phase = "draft"
	PhaseAwaitingPayment  Phase = "awaiting_payment"
	PhasePaymentConfirmed Phase = "payment_confirmed"
	PhaseOrderPersisted   Phase = "order_persisted"
	PhaseScheduled        Phase = "scheduled"
	PhaseError            Phase = "error"
	PhaseFailed           Phase = "failed"
)

// Event drives a Phase change.
type Event string

const (
	EventIntentCreated     Event = "intent_created"
	EventActionRequired    Event = "action_required"
	EventPaymentSucceeded  Event = "payment_succeeded"
	EventPaymentDeclined   Event = "payment_declined"
	EventPaymentIncomplete Event = "payment_incomplete"
	EventOrderSaved        Event = "order_saved"
	EventScheduleSet       Event = "schedule_set"
	EventFailure           Event = "failure"
)

// ErrIllegalTransition is returned by Next for an event the phase does not accept.
var ErrIllegalTransition = errors.New("illegal checkout transition")

type transition struct {
	from Phase
	on   Event
}

// transitions is the whole lifecycle. Failure is handled in Next because every
// phase except Failed accepts it.
var transitions = map[transition]Phase{
	{PhaseDraft, EventIntentCreated}: PhaseAwaitingPayment,
	{PhaseError, EventIntentCreated}: PhaseAwaitingPayment,

	{PhaseAwaitingPayment, EventActionRequired}:    PhaseAwaitingPayment,
	{PhaseAwaitingPayment, EventPaymentSucceeded}:  PhasePaymentConfirmed,
	{PhaseAwaitingPayment, EventPaymentDeclined}:   PhaseFailed,
	{PhaseAwaitingPayment, EventPaymentIncomplete}: PhaseError,

	// A later resume may find the intent settled.
	{PhaseError, EventPaymentSucceeded}:  PhasePaymentConfirmed,
	{PhaseError, EventPaymentDeclined}:   PhaseFailed,
	{PhaseError, EventPaymentIncomplete}: PhaseError,

	{PhasePaymentConfirmed, EventOrderSaved}: PhaseOrderPersisted,
	{PhaseOrderPersisted, EventOrderSaved}:   PhaseOrderPersisted,
	{PhaseScheduled, EventOrderSaved}:        PhaseScheduled,

	{PhaseOrderPersisted, EventScheduleSet}: PhaseScheduled,
	{PhaseScheduled, EventScheduleSet}:      PhaseScheduled,
}

// Next returns the phase reached from p on e.
func Next(p Phase, e Event) (Phase, error) {
	if e == EventFailure {
		if p == PhaseFailed {
			return p, fmt.Errorf("%w: %s on %s", ErrIllegalTransition, e, p)
		}
		return PhaseError, nil
	}
	next, ok := transitions[transition{p, e}]
	if !ok {
		return p, fmt.Errorf("%w: %s on %s", ErrIllegalTransition, e, p)
	}
	return next, nil
}

// State is the observable result of every checkout operation.
type State struct {
	Phase           Phase                `json:"phase"`
	PaymentIntentID string               `json:"paymentIntentId,omitempty"`
	ClientSecret    string               `json:"clientSecret,omitempty"`
	RedirectURL     string               `json:"redirectUrl,omitempty"`
	AmountCents     int64                `json:"amountCents,omitempty"`
	PaymentStatus   domain.PaymentStatus `json:"paymentStatus,omitempty"`
	// IntentStatus is the provider's raw status, when one was read.
	IntentStatus domain.IntentStatus `json:"intentStatus,omitempty"`
	Order        *domain.Order       `json:"order,omitempty"`
	Err          *domain.Error       `json:"error,omitempty"`
}

func (s *State) apply(e Event) error {
	next, err := Next(s.Phase, e)
	if err != nil {
		return err
	}
	s.Phase = next
	return nil
}

// fail moves the state to Error, or to Failed for a declined payment, and
// records err. The returned error is the structured one.
func (s *State) fail(err error) error {
	de, ok := domain.AsError(err)
	if !ok {
		de = domain.NewError(domain.KindInternal, "unexpected error", err)
	}
	s.Err = de
	ev := EventFailure
	if de.Kind == domain.KindPaymentDeclined {
		ev = EventPaymentDeclined
	}
	if next, terr := Next(s.Phase, ev); terr == nil {
		s.Phase = next
	} else {
		s.Phase = PhaseError
	}
	return de
}
