// Package identity mints and verifies bearer tokens bound to vessel
// identifiers.
package identity

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidToken is returned when a token is malformed or its signature
// does not match the claimed identifier.
var ErrInvalidToken = errors.New("invalid token")

// Service binds tokens one-to-one with vessel identifiers using an
// HMAC-SHA256 signature over the identifier. A token verifies back to
// exactly the identifier it was minted for; forging a token for another
// identifier requires the shared secret.
type Service struct {
	secret []byte
}

// New creates a Service from the shared secret.
func New(secret string) (*Service, error) {
	if secret == "" {
		return nil, errors.New("identity secret must not be empty")
	}
	return &Service{secret: []byte(secret)}, nil
}

// Mint issues a token bound to uniqueID.
func (s *Service) Mint(uniqueID string) string {
	return encode(uniqueID) + "." + encode(string(s.sign(uniqueID)))
}

// Verify recovers the bound identifier from a token, or fails with
// ErrInvalidToken.
func (s *Service) Verify(token string) (string, error) {
	payload, sig, ok := strings.Cut(token, ".")
	if !ok {
		return "", ErrInvalidToken
	}

	uniqueID, err := decode(payload)
	if err != nil {
		return "", ErrInvalidToken
	}
	got, err := decode(sig)
	if err != nil {
		return "", ErrInvalidToken
	}

	if !hmac.Equal([]byte(got), s.sign(uniqueID)) {
		return "", ErrInvalidToken
	}
	return uniqueID, nil
}

func (s *Service) sign(uniqueID string) []byte {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(uniqueID))
	return mac.Sum(nil)
}

func encode(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}

func decode(s string) (string, error) {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return "", fmt.Errorf("decode token segment: %w", err)
	}
	return string(b), nil
}
