package checkout

import (
	"context"
	"fmt"
	"sync"

	"serenity-booking/internal/catalog"
	"serenity-booking/internal/domain"
	"serenity-booking/internal/payment"
	"serenity-booking/internal/repository/order"
	"serenity-booking/internal/service/cart"
	"serenity-booking/internal/service/visitor"
	"serenity-booking/internal/session"
)

// fakeGateway is an in-memory payment provider.
type fakeGateway struct {
	mu            sync.Mutex
	intents       map[string]*domain.PaymentIntent
	seq           int
	createCalls   int
	confirmCalls  int
	retrieveCalls int
	lastCreate    payment.IntentRequest
	createErr     error
	confirmErr    error
	retrieveErr   error
	// confirmStatus is the status an intent moves to on confirm.
	confirmStatus domain.IntentStatus
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{intents: make(map[string]*domain.PaymentIntent), confirmStatus: domain.IntentSucceeded}
}

func (g *fakeGateway) CreateIntent(_ context.Context, req payment.IntentRequest) (*domain.PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.createCalls++
	g.lastCreate = req
	if g.createErr != nil {
		return nil, g.createErr
	}
	if err := payment.ValidateAmount(req.AmountCents); err != nil {
		return nil, err
	}
	g.seq++
	id := fmt.Sprintf("pi_%d", g.seq)
	pi := &domain.PaymentIntent{
		ID:           id,
		ClientSecret: id + "_secret",
		AmountCents:  req.AmountCents,
		Currency:     "usd",
		Status:       domain.IntentRequiresPayment,
		Metadata:     req.Metadata("serenityservices", "test"),
	}
	g.intents[id] = pi
	return clone(pi), nil
}

func (g *fakeGateway) ConfirmIntent(_ context.Context, intentID, _, _ string) (*domain.PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.confirmCalls++
	if g.confirmErr != nil {
		return nil, g.confirmErr
	}
	pi, ok := g.intents[intentID]
	if !ok {
		return nil, domain.Validation("no such payment intent")
	}
	pi.Status = g.confirmStatus
	if pi.Status == domain.IntentRequiresAction {
		pi.RedirectURL = "https://bank.example/3ds/" + intentID
	}
	return clone(pi), nil
}

func (g *fakeGateway) RetrieveIntent(_ context.Context, intentID string) (*domain.PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.retrieveCalls++
	if g.retrieveErr != nil {
		return nil, g.retrieveErr
	}
	pi, ok := g.intents[intentID]
	if !ok {
		return nil, domain.Validation("no such payment intent")
	}
	return clone(pi), nil
}

// setStatus lets a test play the provider settling an intent out of band.
func (g *fakeGateway) setStatus(intentID string, status domain.IntentStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.intents[intentID].Status = status
}

func clone(pi *domain.PaymentIntent) *domain.PaymentIntent {
	out := *pi
	out.Metadata = make(map[string]string, len(pi.Metadata))
	for k, v := range pi.Metadata {
		out.Metadata[k] = v
	}
	return &out
}

type stubCustomers struct {
	lastUpsert domain.CustomerDetails
	calls      int
	err        error
}

func (s *stubCustomers) Upsert(_ context.Context, in domain.CustomerDetails) (*domain.Customer, error) {
	s.calls++
	s.lastUpsert = in
	if s.err != nil {
		return nil, s.err
	}
	return &domain.Customer{ID: "cust-1", Email: in.Email, Name: in.Name}, nil
}

type harness struct {
	gateway   *fakeGateway
	orders    *order.Memory
	customers *stubCustomers
	carts     *cart.Service
	visitors  *visitor.Service
	sess      *session.Dual
	svc       *Service
}

func newHarness() *harness {
	cat := catalog.Default()
	visitors := visitor.New(nil)
	h := &harness{
		gateway:   newFakeGateway(),
		orders:    order.NewMemory(),
		customers: &stubCustomers{},
		visitors:  visitors,
		carts:     cart.New(cat, visitors, nil),
		sess:      session.NewDual(nil, session.NewMemoryJar(), session.RandomSigner(), nil, 0),
	}
	h.svc = New(Deps{
		Gateway:   h.gateway,
		Orders:    h.orders,
		Catalog:   cat,
		Profiles:  visitors,
		Carts:     h.carts,
		Customers: h.customers,
	}, Options{
		Site:        "serenityservices",
		Environment: "test",
		Currency:    "usd",
		ReturnURL:   "http://localhost:3000/success",
	}, nil)
	return h
}

func validForm() SubmitInput {
	return SubmitInput{
		Customer: domain.CustomerDetails{
			Name:    "Ada Lovelace",
			Email:   "ada@example.com",
			Phone:   "555-0100",
			Address: "1 Main St",
		},
	}
}
