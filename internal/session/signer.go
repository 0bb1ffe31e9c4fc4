package session

import (
	"crypto/rand"
	"encoding/base64"
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// Signer authenticates the data cookie with HMAC-SHA256 so a visitor cannot
// edit the cart snapshot they are charged for.
type Signer struct {
	key []byte
}

func NewSigner(key []byte) (*Signer, error) {
	if len(key) < 16 {
		return nil, errors.New("session key must be at least 16 bytes")
	}
	return &Signer{key: key}, nil
}

// RandomSigner uses a process-local key. Cookies signed by an earlier process
// stop verifying after a restart.
func RandomSigner() *Signer {
	key := make([]byte, 32)
	_, _ = rand.Read(key)
	return &Signer{key: key}
}

func (s *Signer) Sign(value string) (string, error) {
	sig, err := jwt.SigningMethodHS256.Sign(value, s.key)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(sig), nil
}

func (s *Signer) Valid(value, sig string) bool {
	raw, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil || len(raw) == 0 {
		return false
	}
	return jwt.SigningMethodHS256.Verify(value, raw, s.key) == nil
}
