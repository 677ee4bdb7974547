package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const defaultTokenTTL = 7 * 24 * time.Hour

// ErrUnauthorized covers every way a credential can be bad: missing,
// malformed, wrongly signed or expired. Callers never learn which.
var ErrUnauthorized = errors.New("unauthorized")

// Identity is the subject bound to a validated credential.
type Identity struct {
	Username  string
	ExpiresAt time.Time
}

// TokenAuthority issues and validates the signed bearer tokens that
// represent a successful login. Tokens are stateless: validity is a pure
// function of token content and current time, and a token cannot be revoked
// before its natural expiry.
type TokenAuthority struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenAuthority(secret string, ttl time.Duration) *TokenAuthority {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &TokenAuthority{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue signs a fresh token for subject. Callers must only invoke it right
// after a successful account verification.
func (a *TokenAuthority) Issue(subject string) (string, time.Time, error) {
	now := a.now().UTC()
	expiresAt := now.Add(a.ttl)

	claims := jwt.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": expiresAt.Unix(),
		"typ": "access",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	encoded, err := token.SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}

	return encoded, expiresAt, nil
}

// Validate checks signature and expiry and returns the bound identity.
func (a *TokenAuthority) Validate(encoded string) (Identity, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(encoded, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return Identity{}, ErrUnauthorized
	}
	if tokenType, _ := claims["typ"].(string); tokenType != "access" {
		return Identity{}, ErrUnauthorized
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return Identity{}, ErrUnauthorized
	}
	expiry, err := claims.GetExpirationTime()
	if err != nil || expiry == nil {
		return Identity{}, ErrUnauthorized
	}

	return Identity{Username: subject, ExpiresAt: expiry.Time}, nil
}
