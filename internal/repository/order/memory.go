package order

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"serenity-booking/internal/domain"
)

// Memory is an in-process Repository with the same upsert and downgrade rules
// as the Postgres implementation. Used by tests and local demos.
type Memory struct {
	mu     sync.Mutex
	orders map[string]domain.Order
	now    func() time.Time
	// Err, when set, is returned by every call to simulate an unavailable store.
	Err error
}

func NewMemory() *Memory {
	return &Memory{orders: make(map[string]domain.Order), now: time.Now}
}

func (m *Memory) Insert(_ context.Context, o domain.Order) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	if o.PaymentIntentID != "" && m.findByIntent(o.PaymentIntentID) != "" {
		return nil, domain.ErrAlreadyExists
	}
	out := m.insert(o)
	return &out, nil
}

func (m *Memory) UpsertByPaymentIntent(_ context.Context, o domain.Order) (*domain.Order, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, false, m.Err
	}
	id := m.findByIntent(o.PaymentIntentID)
	if id == "" {
		out := m.insert(o)
		return &out, true, nil
	}

	cur := m.orders[id]
	keep := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	keep(&cur.CustomerName, o.CustomerName)
	keep(&cur.CustomerEmail, strings.ToLower(o.CustomerEmail))
	keep(&cur.CustomerPhone, o.CustomerPhone)
	keep(&cur.CustomerAddress, o.CustomerAddress)
	keep(&cur.ServiceType, o.ServiceType)
	keep(&cur.ScheduledDate, o.ScheduledDate)
	keep(&cur.ScheduledTime, o.ScheduledTime)
	keep(&cur.Notes, o.Notes)
	keep(&cur.VisitorID, o.VisitorID)
	if len(o.Items) > 0 {
		cur.Items = o.Items
	}
	cur.AmountCents = o.AmountCents
	cur.Amount = domain.CentsToAmount(o.AmountCents)
	if cur.PaymentStatus != domain.PaymentPaid {
		cur.Status = o.Status
		cur.PaymentStatus = o.PaymentStatus
	} else if cur.Status == domain.OrderPending && o.PaymentStatus == domain.PaymentPaid {
		cur.Status = o.Status
	}
	cur.UpdatedAt = m.now().UTC()
	m.orders[id] = cur
	return &cur, false, nil
}

func (m *Memory) GetByID(_ context.Context, id string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	o, ok := m.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &o, nil
}

func (m *Memory) GetByPaymentIntentID(_ context.Context, intentID string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	id := m.findByIntent(intentID)
	if id == "" {
		return nil, domain.ErrNotFound
	}
	o := m.orders[id]
	return &o, nil
}

func (m *Memory) ListByEmail(_ context.Context, email string) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	email = strings.ToLower(strings.TrimSpace(email))
	var out []domain.Order
	for _, o := range m.orders {
		if strings.ToLower(o.CustomerEmail) == email {
			out = append(out, o)
		}
	}
	newestFirst(out)
	return out, nil
}

func (m *Memory) List(_ context.Context, f Filter) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	search := strings.ToLower(strings.TrimSpace(f.Search))
	var out []domain.Order
	for _, o := range m.orders {
		if search != "" &&
			!strings.Contains(strings.ToLower(o.CustomerName), search) &&
			!strings.Contains(strings.ToLower(o.CustomerEmail), search) &&
			!strings.Contains(o.ID, search) {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		if f.ServiceType != "" && o.ServiceType != f.ServiceType {
			continue
		}
		out = append(out, o)
	}
	newestFirst(out)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *Memory) Patch(_ context.Context, id string, p domain.OrderPatch) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	o, ok := m.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if p.ScheduledDate != nil {
		o.ScheduledDate = *p.ScheduledDate
	}
	if p.ScheduledTime != nil {
		o.ScheduledTime = *p.ScheduledTime
	}
	if p.Notes != nil {
		o.Notes = *p.Notes
	}
	o.UpdatedAt = m.now().UTC()
	m.orders[id] = o
	return &o, nil
}

func (m *Memory) SetPaymentState(_ context.Context, intentID string, status domain.OrderStatus, payment domain.PaymentStatus) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	id := m.findByIntent(intentID)
	if id == "" {
		return nil, domain.ErrNotFound
	}
	o := m.orders[id]
	if o.PaymentStatus == domain.PaymentPaid && payment != domain.PaymentPaid {
		return &o, nil
	}
	if !(o.Status == domain.OrderCompleted && payment == domain.PaymentPaid) {
		o.Status = status
	}
	o.PaymentStatus = payment
	o.UpdatedAt = m.now().UTC()
	m.orders[id] = o
	return &o, nil
}

// Len reports how many orders are stored.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

func (m *Memory) insert(o domain.Order) domain.Order {
	now := m.now().UTC()
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Status == "" {
		o.Status = domain.OrderPending
	}
	if o.PaymentStatus == "" {
		o.PaymentStatus = domain.PaymentPending
	}
	if o.Currency == "" {
		o.Currency = "usd"
	}
	o.CustomerEmail = strings.ToLower(o.CustomerEmail)
	o.Amount = domain.CentsToAmount(o.AmountCents)
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now
	m.orders[o.ID] = o
	return o
}

func (m *Memory) findByIntent(intentID string) string {
	if intentID == "" {
		return ""
	}
	for id, o := range m.orders {
		if o.PaymentIntentID == intentID {
			return id
		}
	}
	return ""
}

func newestFirst(orders []domain.Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
}
