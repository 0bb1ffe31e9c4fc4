package seed

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"serenity-booking/internal/domain"
)

type OrderWriter interface {
	UpsertByPaymentIntent(ctx context.Context, o domain.Order) (*domain.Order, bool, error)
}

type CustomerWriter interface {
	Upsert(ctx context.Context, c domain.Customer) (*domain.Customer, error)
}

type ServiceLookup interface {
	Get(id string) (domain.Service, bool)
	Currency() string
}

type orderSeed struct {
	IntentID string
	Name     string
	Email    string
	Phone    string
	Address  string
	Items    map[string]int
	// DaysOut is relative to the seed date; zero leaves the order unscheduled.
	DaysOut int
	Time    string
	Status  domain.OrderStatus
	Payment domain.PaymentStatus
}

var demoOrders = []orderSeed{
	{
		IntentID: "pi_demo_confirmed",
		Name:     "Ada Lovelace",
		Email:    "ada@example.com",
		Phone:    "555-0100",
		Address:  "1 Analytical Way",
		Items:    map[string]int{"cleaning": 1},
		DaysOut:  3,
		Time:     "10:00",
		Status:   domain.OrderConfirmed,
		Payment:  domain.PaymentPaid,
	},
	{
		IntentID: "pi_demo_pending",
		Name:     "Grace Hopper",
		Email:    "grace@example.com",
		Address:  "2 Compiler Court",
		Items:    map[string]int{"cooking": 1, "massage-30": 1},
		Status:   domain.OrderPending,
		Payment:  domain.PaymentPending,
	},
	{
		IntentID: "pi_demo_completed",
		Name:     "Ada Lovelace",
		Email:    "ada@example.com",
		Phone:    "555-0100",
		Address:  "1 Analytical Way",
		Items:    map[string]int{"massage-60": 1},
		DaysOut:  -7,
		Time:     "15:30",
		Status:   domain.OrderCompleted,
		Payment:  domain.PaymentPaid,
	},
	{
		IntentID: "pi_demo_cancelled",
		Name:     "Alan Turing",
		Email:    "alan@example.com",
		Address:  "3 Bletchley Lane",
		Items:    map[string]int{"combo": 1},
		Status:   domain.OrderCancelled,
		Payment:  domain.PaymentFailed,
	},
}

// Apply writes demo customers and orders for manual testing. Orders carry fixed
// payment intent ids so re-running updates rather than duplicates.
func Apply(ctx context.Context, orders OrderWriter, customers CustomerWriter, services ServiceLookup, now time.Time) (int, error) {
	seenCustomers := map[string]bool{}
	for _, s := range demoOrders {
		o, err := build(s, services, now)
		if err != nil {
			return 0, fmt.Errorf("build order %s: %w", s.IntentID, err)
		}
		if !seenCustomers[s.Email] {
			seenCustomers[s.Email] = true
			c := domain.Customer{Email: s.Email, Name: s.Name, Phone: s.Phone, Address: s.Address}
			if _, err := customers.Upsert(ctx, c); err != nil {
				return 0, fmt.Errorf("upsert customer %s: %w", s.Email, err)
			}
		}
		if _, _, err := orders.UpsertByPaymentIntent(ctx, o); err != nil {
			return 0, fmt.Errorf("upsert order %s: %w", s.IntentID, err)
		}
	}
	return len(demoOrders), nil
}

func build(s orderSeed, services ServiceLookup, now time.Time) (domain.Order, error) {
	var items domain.LineItems
	for id, qty := range s.Items {
		svc, ok := services.Get(id)
		if !ok {
			return domain.Order{}, fmt.Errorf("unknown service %q", id)
		}
		items = append(items, domain.LineItem{
			ServiceID:      svc.ID,
			Title:          svc.Title,
			UnitPriceCents: svc.UnitPriceCents,
			DurationLabel:  svc.DurationLabel,
			Quantity:       qty,
		})
	}
	// map order is random; keep service_type stable across runs
	sort.Slice(items, func(i, j int) bool { return items[i].ServiceID < items[j].ServiceID })
	o := domain.Order{
		CustomerName:    s.Name,
		CustomerEmail:   s.Email,
		CustomerPhone:   s.Phone,
		CustomerAddress: s.Address,
		ServiceType:     serviceType(items),
		Items:           items,
		AmountCents:     items.TotalCents(),
		Currency:        services.Currency(),
		PaymentIntentID: s.IntentID,
		Status:          s.Status,
		PaymentStatus:   s.Payment,
	}
	if s.DaysOut != 0 {
		o.ScheduledDate = now.AddDate(0, 0, s.DaysOut).Format("2006-01-02")
		o.ScheduledTime = s.Time
	}
	return o, nil
}

func serviceType(items domain.LineItems) string {
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ServiceID)
	}
	return strings.Join(ids, ",")
}
