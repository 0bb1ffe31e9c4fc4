// Package session persists the visitor profile to two redundant stores: a
// durable repository and a browser cookie. Writes go to both; reads prefer the
// durable copy and fall back to the cookie.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"serenity-booking/internal/domain"
	"serenity-booking/internal/logging"
	visitorrepo "serenity-booking/internal/repository/visitor"
)

const (
	DataCookie = "serenity_visitor_data"
	IDCookie   = "serenity_visitor_id"
	SigCookie  = "serenity_visitor_sig"

	// maxCookieBytes is the practical per-cookie limit of common browsers.
	maxCookieBytes = 4000
)

// CookieMaxAge is one year, in seconds.
const CookieMaxAge = 365 * 24 * 60 * 60

// CookieJar reads and writes plain cookie values for the current request.
// Implementations handle any transport escaping.
type CookieJar interface {
	Get(name string) (string, bool)
	Set(name, value string, maxAge int)
}

// Dual is a visitor session backed by a durable repository and a cookie jar.
// A nil repository gives a cookie-only session. The data cookie is only
// trusted when its signature verifies.
type Dual struct {
	repo    visitorrepo.Repository
	jar     CookieJar
	signer  *Signer
	logger  *zap.Logger
	timeout time.Duration
}

// NewDual returns a session for one request.
func NewDual(repo visitorrepo.Repository, jar CookieJar, signer *Signer, logger *zap.Logger, timeout time.Duration) *Dual {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Dual{repo: repo, jar: jar, signer: signer, logger: logging.OrNop(logger), timeout: timeout}
}

// Load returns the stored profile or domain.ErrNotFound when the visitor is new.
func (d *Dual) Load(ctx context.Context) (*domain.VisitorProfile, error) {
	if id, ok := d.jar.Get(IDCookie); ok && id != "" && d.repo != nil {
		rctx, cancel := context.WithTimeout(ctx, d.timeout)
		p, err := d.repo.Get(rctx, id)
		cancel()
		switch {
		case err == nil:
			return p, nil
		case errors.Is(err, domain.ErrNotFound):
		default:
			d.logger.Warn("durable visitor store unavailable, using cookie", zap.String("visitor_id", id), zap.Error(err))
		}
	}

	raw, ok := d.jar.Get(DataCookie)
	if !ok || raw == "" {
		return nil, domain.ErrNotFound
	}
	sig, _ := d.jar.Get(SigCookie)
	if d.signer == nil || !d.signer.Valid(raw, sig) {
		d.logger.Warn("discarding visitor cookie with bad signature")
		return nil, domain.ErrNotFound
	}
	var p domain.VisitorProfile
	if err := json.Unmarshal([]byte(raw), &p); err != nil || p.ID == "" {
		d.logger.Warn("discarding unreadable visitor cookie", zap.Error(err))
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

// Save writes the full profile to the cookie and then to the durable store.
// A durable failure is logged; the cookie copy still holds the state.
func (d *Dual) Save(ctx context.Context, p *domain.VisitorProfile) error {
	if p == nil || p.ID == "" {
		return errors.New("visitor profile id required")
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	d.jar.Set(IDCookie, p.ID, CookieMaxAge)
	switch {
	case d.signer == nil:
		d.logger.Warn("no cookie signer, visitor profile kept server side only", zap.String("visitor_id", p.ID))
	case len(raw) > maxCookieBytes:
		d.logger.Warn("visitor profile too large for cookie", zap.String("visitor_id", p.ID), zap.Int("bytes", len(raw)))
	default:
		sig, err := d.signer.Sign(string(raw))
		if err != nil {
			return err
		}
		d.jar.Set(DataCookie, string(raw), CookieMaxAge)
		d.jar.Set(SigCookie, sig, CookieMaxAge)
	}

	if d.repo == nil {
		return nil
	}
	rctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	if err := d.repo.Put(rctx, *p); err != nil {
		d.logger.Warn("durable visitor save failed", zap.String("visitor_id", p.ID), zap.Error(err))
	}
	return nil
}

// Clear removes the profile from both stores.
func (d *Dual) Clear(ctx context.Context) error {
	id, _ := d.jar.Get(IDCookie)
	d.jar.Set(DataCookie, "", -1)
	d.jar.Set(SigCookie, "", -1)
	d.jar.Set(IDCookie, "", -1)
	if d.repo == nil || id == "" {
		return nil
	}
	rctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return d.repo.Delete(rctx, id)
}
