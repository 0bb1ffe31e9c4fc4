package order

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"serenity-booking/internal/domain"
	"serenity-booking/internal/logging"
	"serenity-booking/internal/payment"
	orderrepo "serenity-booking/internal/repository/order"
)

// CreateInput is the body of a direct order create, used by the booking page
// and by staff entering phone bookings.
type CreateInput struct {
	CustomerDetails domain.CustomerDetails `json:"customerDetails"`
	Service         string                 `json:"service"`
	Amount          decimal.Decimal        `json:"amount"`
	PaymentIntentID string                 `json:"paymentIntentId"`
	ScheduledDate   string                 `json:"scheduledDate"`
	ScheduledTime   string                 `json:"scheduledTime"`
}

// Summary aggregates a set of orders for the dashboards. Revenue counts paid
// orders only.
type Summary struct {
	TotalOrders  int             `json:"totalOrders"`
	TotalRevenue decimal.Decimal `json:"totalRevenue"`
	Pending      int             `json:"pending"`
	Confirmed    int             `json:"confirmed"`
	Completed    int             `json:"completed"`
	Cancelled    int             `json:"cancelled"`
	Upcoming     int             `json:"upcoming"`
}

// Dashboard is a read-only projection of orders.
type Dashboard struct {
	Orders  []domain.Order `json:"orders"`
	Summary Summary        `json:"summary"`
}

type Service struct {
	repo    orderrepo.Repository
	logger  *zap.Logger
	timeout time.Duration
	now     func() time.Time
}

func New(repo orderrepo.Repository, timeout time.Duration, logger *zap.Logger) *Service {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Service{
		repo:    repo,
		logger:  logging.OrNop(logger).Named("orders"),
		timeout: timeout,
		now:     time.Now,
	}
}

// Create stores a pending order. With a payment intent id the call is an
// upsert, so a retried request never duplicates and never downgrades a paid
// order.
func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.Order, error) {
	details := in.CustomerDetails.Normalize()
	if err := details.Validate(false); err != nil {
		return nil, err
	}
	cents, err := payment.CentsFromDollars(in.Amount)
	if err != nil {
		return nil, err
	}
	if cents <= 0 {
		return nil, domain.Validation("amount must be positive")
	}
	if err := validateSchedule(strPtr(in.ScheduledDate), strPtr(in.ScheduledTime)); err != nil {
		return nil, err
	}

	o := domain.Order{
		CustomerName:    details.Name,
		CustomerEmail:   details.Email,
		CustomerPhone:   details.Phone,
		CustomerAddress: details.Address,
		ServiceType:     strings.TrimSpace(in.Service),
		AmountCents:     cents,
		PaymentIntentID: strings.TrimSpace(in.PaymentIntentID),
		ScheduledDate:   strings.TrimSpace(in.ScheduledDate),
		ScheduledTime:   strings.TrimSpace(in.ScheduledTime),
		Notes:           details.Notes,
		Status:          domain.OrderPending,
		PaymentStatus:   domain.PaymentPending,
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var saved *domain.Order
	if o.PaymentIntentID != "" {
		var created bool
		saved, created, err = s.repo.UpsertByPaymentIntent(ctx, o)
		if err == nil {
			s.logger.Info("order upserted",
				zap.String("order_id", saved.ID),
				zap.String("payment_intent_id", o.PaymentIntentID),
				zap.Bool("created", created))
		}
	} else {
		saved, err = s.repo.Insert(ctx, o)
		if err == nil {
			s.logger.Info("order created", zap.String("order_id", saved.ID))
		}
	}
	if err != nil {
		return nil, storeError(err)
	}
	return saved, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	o, err := s.repo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, storeError(err)
	}
	return o, nil
}

// ForCustomer returns a customer's orders, newest first, with a summary.
func (s *Service) ForCustomer(ctx context.Context, email string) (*Dashboard, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, domain.Validation("email parameter is required")
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	orders, err := s.repo.ListByEmail(ctx, email)
	if err != nil {
		return nil, storeError(err)
	}
	return s.dashboard(orders), nil
}

// AdminList lists all orders matching f. The summary covers the listed orders.
func (s *Service) AdminList(ctx context.Context, f orderrepo.Filter) (*Dashboard, error) {
	f.Search = strings.TrimSpace(f.Search)
	if f.Status == "all" {
		f.Status = ""
	}
	if f.ServiceType == "all" {
		f.ServiceType = ""
	}
	switch f.Status {
	case "", domain.OrderPending, domain.OrderConfirmed, domain.OrderCompleted, domain.OrderCancelled:
	default:
		return nil, domain.Validation("unknown status filter: " + string(f.Status))
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	orders, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, storeError(err)
	}
	return s.dashboard(orders), nil
}

// Patch updates scheduling fields and notes. Nothing else about an order can
// change through it.
func (s *Service) Patch(ctx context.Context, id string, p domain.OrderPatch) (*domain.Order, error) {
	if p.Empty() {
		return nil, domain.Validation("nothing to update")
	}
	if err := validateSchedule(p.ScheduledDate, p.ScheduledTime); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	o, err := s.repo.Patch(ctx, strings.TrimSpace(id), p)
	if err != nil {
		return nil, storeError(err)
	}
	s.logger.Info("order updated", zap.String("order_id", o.ID))
	return o, nil
}

func (s *Service) dashboard(orders []domain.Order) *Dashboard {
	if orders == nil {
		orders = []domain.Order{}
	}
	return &Dashboard{Orders: orders, Summary: Summarize(orders, s.now())}
}

// Summarize counts orders by status and sums paid revenue. An order is
// upcoming when its scheduled date is after today.
func Summarize(orders []domain.Order, now time.Time) Summary {
	sum := Summary{TotalOrders: len(orders), TotalRevenue: decimal.Zero}
	today := now.Format(dateLayout)
	for _, o := range orders {
		switch o.Status {
		case domain.OrderPending:
			sum.Pending++
		case domain.OrderConfirmed:
			sum.Confirmed++
		case domain.OrderCompleted:
			sum.Completed++
		case domain.OrderCancelled:
			sum.Cancelled++
		}
		if o.PaymentStatus == domain.PaymentPaid {
			sum.TotalRevenue = sum.TotalRevenue.Add(domain.CentsToAmount(o.AmountCents))
		}
		// ISO dates compare lexically.
		if o.ScheduledDate != "" && o.ScheduledDate > today && o.Status != domain.OrderCancelled {
			sum.Upcoming++
		}
	}
	return sum
}

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

func validateSchedule(date, clock *string) error {
	if date != nil && *date != "" {
		if _, err := time.Parse(dateLayout, *date); err != nil {
			return domain.Validation("scheduledDate must be YYYY-MM-DD")
		}
	}
	if clock != nil && *clock != "" {
		if _, err := time.Parse(timeLayout, *clock); err != nil {
			return domain.Validation("scheduledTime must be HH:MM")
		}
	}
	return nil
}

func storeError(err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NewError(domain.KindNotFound, "order not found", err)
	}
	if errors.Is(err, domain.ErrAlreadyExists) {
		return domain.Validation("an order for this payment already exists")
	}
	if _, ok := domain.AsError(err); ok {
		return err
	}
	return domain.NewError(domain.KindUnavailable, "order store unavailable, please try again", err)
}

func strPtr(s string) *string {
	s = strings.TrimSpace(s)
	return &s
}
