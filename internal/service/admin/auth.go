// Package admin guards the staff-only order views with bearer tokens.
package admin

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"serenity-booking/internal/domain"
)

const issuer = "serenity-booking"

var (
	// ErrInvalidCredentials is returned when username/password do not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken indicates the bearer token could not be validated.
	ErrInvalidToken = errors.New("invalid token")
)

var errNotConfigured = domain.NewError(domain.KindNotConfigured, "admin access not configured", nil)

// Authenticator checks operator credentials and issues HS256 tokens.
type Authenticator struct {
	secret       []byte
	username     string
	passwordHash []byte
	ttl          time.Duration
	now          func() time.Time
}

func NewAuthenticator(secret, username, passwordHash string, ttl time.Duration) *Authenticator {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Authenticator{
		secret:       []byte(secret),
		username:     username,
		passwordHash: []byte(passwordHash),
		ttl:          ttl,
		now:          time.Now,
	}
}

// Configured reports whether tokens can be issued and checked.
func (a *Authenticator) Configured() bool {
	return a != nil && len(a.secret) > 0
}

// Login verifies the operator password and returns a signed token.
func (a *Authenticator) Login(username, password string) (string, time.Time, error) {
	if !a.Configured() || a.username == "" || len(a.passwordHash) == 0 {
		return "", time.Time{}, errNotConfigured
	}
	userOK := subtle.ConstantTimeCompare([]byte(strings.TrimSpace(username)), []byte(a.username)) == 1
	// Always run bcrypt so a wrong username costs as much as a wrong password.
	passErr := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password))
	if !userOK || passErr != nil {
		return "", time.Time{}, ErrInvalidCredentials
	}
	return a.Mint(a.username)
}

// Mint signs a token for subject without checking credentials. Used by the
// operator CLI.
func (a *Authenticator) Mint(subject string) (string, time.Time, error) {
	if !a.Configured() {
		return "", time.Time{}, errNotConfigured
	}
	now := a.now()
	exp := now.Add(a.ttl)
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Verify parses a bearer token. Only HMAC-signed tokens from this issuer are
// accepted.
func (a *Authenticator) Verify(tokenStr string) (*jwt.RegisteredClaims, error) {
	if !a.Configured() {
		return nil, errNotConfigured
	}
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithExpirationRequired(), jwt.WithTimeFunc(a.now))
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

// HashPassword returns the bcrypt hash operators put in ADMIN_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	if len(password) < 8 {
		return "", domain.Validation("password must be at least 8 characters")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}
