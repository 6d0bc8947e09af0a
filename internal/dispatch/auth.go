package dispatch

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"commitvault/internal/failure"

	"github.com/golang-jwt/jwt/v5"
)

const dispatchAudience = "dispatch"

// Principal is an authenticated dispatch caller.
type Principal struct {
	Subject string
}

type Authenticator interface {
	Authenticate(token string) (Principal, error)
}

// Issuer mints tokens accepted by the matching Authenticator.
type Issuer interface {
	Issue(subject string, ttl time.Duration) (string, error)
}

// TokenAuthenticator accepts HS256 JWTs with the configured issuer and the
// dispatch audience.
type TokenAuthenticator struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewTokenAuthenticator(secret, issuer string) (*TokenAuthenticator, error) {
	if len(secret) < 32 {
		return nil, errors.New("token secret must be at least 32 bytes")
	}
	if issuer == "" {
		return nil, errors.New("token issuer is required")
	}
	return &TokenAuthenticator{secret: []byte(secret), issuer: issuer, now: time.Now}, nil
}

func (a *TokenAuthenticator) Issue(subject string, ttl time.Duration) (string, error) {
	if subject == "" || ttl <= 0 {
		return "", errors.New("invalid params for issuing token")
	}
	now := a.now()
	claims := &jwt.RegisteredClaims{
		Issuer:    a.issuer,
		Subject:   subject,
		Audience:  jwt.ClaimStrings{dispatchAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (a *TokenAuthenticator) Authenticate(token string) (Principal, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(a.issuer),
		jwt.WithAudience(dispatchAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return Principal{}, failure.Wrap(failure.KindUnauthorized, "invalid token", err)
	}
	if claims.Subject == "" {
		return Principal{}, failure.New(failure.KindUnauthorized, "token without subject")
	}
	return Principal{Subject: claims.Subject}, nil
}

// LegacyAuthenticator accepts base64(secret) as the token. The encoding is
// reversible, so anyone who sees one token knows the secret; kept only for
// clients that cannot mint JWTs.
type LegacyAuthenticator struct {
	secret []byte
}

func NewLegacyAuthenticator(secret string) (*LegacyAuthenticator, error) {
	if secret == "" {
		return nil, errors.New("legacy secret is required")
	}
	return &LegacyAuthenticator{secret: []byte(secret)}, nil
}

func (a *LegacyAuthenticator) Authenticate(token string) (Principal, error) {
	decoded, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return Principal{}, failure.Wrap(failure.KindUnauthorized, "malformed token", err)
	}
	if subtle.ConstantTimeCompare(decoded, a.secret) != 1 {
		return Principal{}, failure.New(failure.KindUnauthorized, "token mismatch")
	}
	return Principal{Subject: "legacy"}, nil
}

// Issue ignores subject and ttl: legacy tokens carry neither.
func (a *LegacyAuthenticator) Issue(string, time.Duration) (string, error) {
	return base64.StdEncoding.EncodeToString(a.secret), nil
}
