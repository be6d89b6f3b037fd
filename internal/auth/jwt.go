package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken covers every verification failure: bad signature,
// malformed structure, wrong signing method, or elapsed expiry. Callers
// must not be able to tell these apart.
var ErrInvalidToken = errors.New("invalid token")

// DefaultTokenTTL is the fallback lifetime when Issue is called with a
// non-positive one. The login/signup flow always passes the configured
// access TTL, so this mostly matters for direct callers.
const DefaultTokenTTL = 15 * time.Minute

type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

type Manager struct {
	secret []byte
}

func NewManager(secret string) *Manager {
	return &Manager{secret: []byte(secret)}
}

// Issue signs a bearer token whose subject is the given username, valid
// for the given lifetime from now.
func (m *Manager) Issue(subject string, lifetime time.Duration) (string, error) {
	if lifetime <= 0 {
		lifetime = DefaultTokenTTL
	}

	now := time.Now().UTC()

	claims := Claims{
		Username: subject,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(lifetime)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	return token.SignedString(m.secret)
}

// Verify parses and validates a token string and returns the embedded
// subject. Expiry is checked by the jwt library against the exp claim.
func (m *Manager) Verify(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		// Enforce HS256

		_, ok := t.Method.(*jwt.SigningMethodHMAC)

		if !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	})

	if err != nil {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)

	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}

	if claims.Username == "" {
		return "", ErrInvalidToken
	}

	return claims.Username, nil
}
