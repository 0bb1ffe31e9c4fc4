package cart

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"serenity-booking/internal/domain"
	"serenity-booking/internal/logging"
	"serenity-booking/internal/service/visitor"
)

var errQuantityRange = domain.Validation(fmt.Sprintf("quantity must be between 1 and %d", domain.MaxQuantity))

type serviceCatalog interface {
	Get(id string) (domain.Service, bool)
}

type profiles interface {
	Current(ctx context.Context, sess visitor.Session) (*domain.VisitorProfile, error)
}

// Service mutates the cart held inside the visitor profile. Every mutation
// persists the whole profile through the session.
type Service struct {
	catalog  serviceCatalog
	profiles profiles
	logger   *zap.Logger
}

func New(cat serviceCatalog, profiles profiles, logger *zap.Logger) *Service {
	return &Service{catalog: cat, profiles: profiles, logger: logging.OrNop(logger).Named("cart")}
}

// View is the cart as served to clients.
type View struct {
	Items      domain.LineItems `json:"items"`
	TotalCents int64            `json:"totalCents"`
	Total      decimal.Decimal  `json:"total"`
	ItemCount  int              `json:"itemCount"`
}

// NewView summarizes items.
func NewView(items domain.LineItems) View {
	if items == nil {
		items = domain.LineItems{}
	}
	total := items.TotalCents()
	return View{Items: items, TotalCents: total, Total: domain.CentsToAmount(total), ItemCount: items.Count()}
}

func (s *Service) Get(ctx context.Context, sess visitor.Session) (View, error) {
	p, err := s.profiles.Current(ctx, sess)
	if err != nil {
		return View{}, err
	}
	return NewView(p.CartItems), nil
}

// AddItem adds quantity of a catalog service. An existing line keeps its
// snapshotted title and price and only grows in quantity.
func (s *Service) AddItem(ctx context.Context, sess visitor.Session, serviceID string, quantity int) (View, error) {
	if quantity == 0 {
		quantity = 1
	}
	if quantity < 0 || quantity > domain.MaxQuantity {
		return View{}, errQuantityRange
	}
	svc, ok := s.catalog.Get(strings.TrimSpace(serviceID))
	if !ok {
		return View{}, domain.Validation("unknown service " + serviceID)
	}
	return s.mutate(ctx, sess, func(items domain.LineItems) (domain.LineItems, error) {
		if i := items.Index(svc.ID); i >= 0 {
			if items[i].Quantity+quantity > domain.MaxQuantity {
				return nil, errQuantityRange
			}
			items[i].Quantity += quantity
			return items, nil
		}
		return append(items, domain.LineItem{
			ServiceID:      svc.ID,
			Title:          svc.Title,
			UnitPriceCents: svc.UnitPriceCents,
			DurationLabel:  svc.DurationLabel,
			Quantity:       quantity,
		}), nil
	})
}

// UpdateQuantity sets the quantity of a line. Zero or less removes it; an
// unknown id is a no-op.
func (s *Service) UpdateQuantity(ctx context.Context, sess visitor.Session, serviceID string, quantity int) (View, error) {
	if quantity <= 0 {
		return s.RemoveItem(ctx, sess, serviceID)
	}
	if quantity > domain.MaxQuantity {
		return View{}, errQuantityRange
	}
	return s.mutate(ctx, sess, func(items domain.LineItems) (domain.LineItems, error) {
		if i := items.Index(serviceID); i >= 0 {
			items[i].Quantity = quantity
		}
		return items, nil
	})
}

func (s *Service) RemoveItem(ctx context.Context, sess visitor.Session, serviceID string) (View, error) {
	return s.mutate(ctx, sess, func(items domain.LineItems) (domain.LineItems, error) {
		i := items.Index(serviceID)
		if i < 0 {
			return items, nil
		}
		return append(items[:i], items[i+1:]...), nil
	})
}

// Clear empties the cart. Contact details and preferences stay.
func (s *Service) Clear(ctx context.Context, sess visitor.Session) (View, error) {
	return s.mutate(ctx, sess, func(domain.LineItems) (domain.LineItems, error) {
		return domain.LineItems{}, nil
	})
}

func (s *Service) mutate(ctx context.Context, sess visitor.Session, fn func(domain.LineItems) (domain.LineItems, error)) (View, error) {
	p, err := s.profiles.Current(ctx, sess)
	if err != nil {
		return View{}, err
	}
	items, err := fn(append(domain.LineItems{}, p.CartItems...))
	if err != nil {
		return View{}, err
	}
	p.CartItems = items
	if err := sess.Save(ctx, p); err != nil {
		return View{}, err
	}
	return NewView(p.CartItems), nil
}
