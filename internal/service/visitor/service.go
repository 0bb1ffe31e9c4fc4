package visitor

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"serenity-booking/internal/domain"
	"serenity-booking/internal/logging"
)

// visitWindow is how long after the last request a new request still counts
// as the same visit.
const visitWindow = 30 * time.Minute

// Session loads and saves the visitor profile for the current request.
type Session interface {
	Load(ctx context.Context) (*domain.VisitorProfile, error)
	Save(ctx context.Context, p *domain.VisitorProfile) error
	Clear(ctx context.Context) error
}

// Service manages the anonymous visitor profile: identity, contact details
// collected progressively, preferences and visit counting.
type Service struct {
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
}

func New(logger *zap.Logger) *Service {
	return &Service{
		logger: logging.OrNop(logger).Named("visitor"),
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// ProfileInput carries contact fields. Blank fields leave stored values alone.
type ProfileInput struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// Current returns the stored profile, creating and saving a fresh one for a new visitor.
func (s *Service) Current(ctx context.Context, sess Session) (*domain.VisitorProfile, error) {
	p, err := sess.Load(ctx)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	p = &domain.VisitorProfile{
		ID:         s.newID(),
		CartItems:  domain.LineItems{},
		LastVisit:  s.now().UTC(),
		VisitCount: 1,
	}
	if err := sess.Save(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Debug("new visitor", zap.String("visitor_id", p.ID))
	return p, nil
}

// Open is called on page load. It counts a new visit when the previous request
// is older than the visit window.
func (s *Service) Open(ctx context.Context, sess Session) (*domain.VisitorProfile, error) {
	p, err := sess.Load(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return s.Current(ctx, sess)
	}
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if now.Sub(p.LastVisit) >= visitWindow {
		p.VisitCount++
	}
	p.LastVisit = now
	if err := sess.Save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// UpdateProfile fills in contact details. The visitor id never changes.
func (s *Service) UpdateProfile(ctx context.Context, sess Session, in ProfileInput) (*domain.VisitorProfile, error) {
	p, err := s.Current(ctx, sess)
	if err != nil {
		return nil, err
	}
	ApplyContact(p, in)
	if err := sess.Save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// SetPreferences replaces the notification and marketing flags.
func (s *Service) SetPreferences(ctx context.Context, sess Session, prefs domain.Preferences) (*domain.VisitorProfile, error) {
	p, err := s.Current(ctx, sess)
	if err != nil {
		return nil, err
	}
	p.Preferences = prefs
	if err := sess.Save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Clear forgets the visitor entirely. Only ever triggered by the visitor.
func (s *Service) Clear(ctx context.Context, sess Session) error {
	return sess.Clear(ctx)
}

// ApplyContact copies non-blank fields from in onto p.
func ApplyContact(p *domain.VisitorProfile, in ProfileInput) {
	set := func(dst *string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}
	set(&p.Name, in.Name)
	set(&p.Email, strings.ToLower(in.Email))
	set(&p.Phone, in.Phone)
	set(&p.Address, in.Address)
}
