package httpserver

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"serenity-booking/internal/domain"
	"serenity-booking/internal/payment"
)

// fakeGateway settles every confirmed intent with confirmStatus.
type fakeGateway struct {
	mu            sync.Mutex
	intents       map[string]*domain.PaymentIntent
	seq           int
	createCalls   int
	confirmStatus domain.IntentStatus
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{intents: make(map[string]*domain.PaymentIntent), confirmStatus: domain.IntentSucceeded}
}

func (g *fakeGateway) CreateIntent(_ context.Context, req payment.IntentRequest) (*domain.PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.createCalls++
	if err := payment.ValidateAmount(req.AmountCents); err != nil {
		return nil, err
	}
	g.seq++
	id := fmt.Sprintf("pi_http_%d", g.seq)
	pi := &domain.PaymentIntent{
		ID:           id,
		ClientSecret: id + "_secret",
		AmountCents:  req.AmountCents,
		Currency:     "usd",
		Status:       domain.IntentRequiresPayment,
		Metadata:     req.Metadata("serenityservices", "test"),
	}
	g.intents[id] = pi
	cp := *pi
	return &cp, nil
}

func (g *fakeGateway) ConfirmIntent(_ context.Context, intentID, paymentMethodID, _ string) (*domain.PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	pi, ok := g.intents[intentID]
	if !ok {
		return nil, domain.Validation("no such payment intent")
	}
	if strings.Contains(paymentMethodID, "declined") {
		return nil, domain.NewError(domain.KindPaymentDeclined, "Your card was declined.", nil)
	}
	pi.Status = g.confirmStatus
	cp := *pi
	return &cp, nil
}

func (g *fakeGateway) RetrieveIntent(_ context.Context, intentID string) (*domain.PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	pi, ok := g.intents[intentID]
	if !ok {
		return nil, domain.Validation("no such payment intent")
	}
	cp := *pi
	return &cp, nil
}

func (g *fakeGateway) setStatus(intentID string, status domain.IntentStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.intents[intentID].Status = status
}

type stubCustomers struct {
	mu    sync.Mutex
	users map[string]domain.Customer
}

func (s *stubCustomers) Upsert(_ context.Context, in domain.CustomerDetails) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	in = in.Normalize()
	if in.Email == "" || in.Name == "" {
		return nil, domain.Validation("missing required fields: email and name")
	}
	c := domain.Customer{ID: "cust-" + in.Email, Email: in.Email, Name: in.Name, Phone: in.Phone, Address: in.Address}
	s.users[in.Email] = c
	return &c, nil
}

func (s *stubCustomers) GetByEmail(_ context.Context, email string) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.users[strings.ToLower(email)]
	if !ok {
		return nil, domain.NewError(domain.KindNotFound, "customer not found", nil)
	}
	return &c, nil
}
