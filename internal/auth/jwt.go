// Package auth provides session tokens, password hashing, bearer middleware
// and federated identity verification for the Soundscape API.
//
// SESSION TOKENS:
// A session token is a JWT signed with HS256. Its "sub" claim carries the
// internal user ID and it expires after the configured TTL (7 days by
// default). There is no server-side revocation list: expiry is the only way a
// token stops working.
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: {"alg":"HS256","typ":"JWT"}
//	- Payload: {"sub":"<userID>","iss":"soundscape","exp":...}
//	- Signature: HMAC-SHA256(header+"."+payload, secretKey)
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultSessionTTL is how long a session token stays valid.
const DefaultSessionTTL = 7 * 24 * time.Hour

const issuer = "soundscape"

var (
	// ErrTokenExpired means the token was genuine but is past its expiry.
	ErrTokenExpired = errors.New("auth: token expired")
	// ErrTokenInvalid covers every other verification failure.
	ErrTokenInvalid = errors.New("auth: invalid token")
)

// TokenService handles JWT creation and validation.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService creates a TokenService with the given secret and the
// default 7-day TTL. The secret should be at least 32 bytes of random data in
// production.
func NewTokenService(secret string) (*TokenService, error) {
	return NewTokenServiceWithTTL(secret, DefaultSessionTTL)
}

// NewTokenServiceWithTTL is NewTokenService with a custom token lifetime.
func NewTokenServiceWithTTL(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if ttl <= 0 {
		return nil, errors.New("auth: token TTL must be positive")
	}
	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

type claims struct {
	jwt.RegisteredClaims
}

// Generate creates and signs a session token for userID.
func (s *TokenService) Generate(userID string) (string, error) {
	return s.GenerateWithDuration(userID, s.ttl)
}

// GenerateWithDuration creates a token with a custom expiry duration.
// Negative durations produce already-expired tokens, which tests rely on.
func (s *TokenService) GenerateWithDuration(userID string, d time.Duration) (string, error) {
	if userID == "" {
		return "", errors.New("auth: cannot sign a token without a subject")
	}
	now := s.now()

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies a JWT string and returns the userID in its
// "sub" claim. Errors wrap ErrTokenExpired or ErrTokenInvalid.
//
// jwt.WithValidMethods pins HS256 so a token claiming alg "none" (or an
// asymmetric algorithm keyed with our secret) is rejected.
func (s *TokenService) Validate(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("%w: bad claims", ErrTokenInvalid)
	}

	if c.Subject == "" {
		return "", fmt.Errorf("%w: token has no subject", ErrTokenInvalid)
	}

	return c.Subject, nil
}
