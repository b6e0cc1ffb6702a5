// Package auth issues and checks the bearer tokens that guard the trigger
// endpoints.
//
// TOKEN FLOW:
//  1. An operator mints a token with cmd/token (admin tokens for automation,
//     e.g. an external cron hitting POST /api/sync).
//  2. Callers send it as "Authorization: Bearer <jwt>".
//  3. RequireAdmin validates it and stores the claims in the request context.
//
// JWT STRUCTURE (three base64-encoded parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: algorithm + token type → {"alg":"HS256","typ":"JWT"}
//	- Payload: claims → {"sub":"userID","adm":true,"exp":1234567890}
//	- Signature: HMAC-SHA256(header+"."+payload, secretKey)
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "playtracker"

// DefaultTTL is the lifetime of a token minted without an explicit duration.
const DefaultTTL = 15 * time.Minute

// TokenService handles JWT creation and validation with one HMAC secret.
type TokenService struct {
	secret []byte
}

// NewTokenService creates a TokenService with the given secret.
// Example: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret)}, nil
}

// Identity is what a valid token says about its bearer.
type Identity struct {
	UserID string
	Admin  bool
}

type claims struct {
	jwt.RegisteredClaims
	Admin bool `json:"adm,omitempty"`
}

// Generate signs a DefaultTTL token for userID.
func (s *TokenService) Generate(userID string, admin bool) (string, error) {
	return s.GenerateWithDuration(userID, admin, DefaultTTL)
}

// GenerateWithDuration signs a token that expires after d.
func (s *TokenService) GenerateWithDuration(userID string, admin bool, d time.Duration) (string, error) {
	now := time.Now()

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
		Admin: admin,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies a JWT string.
//
// The jwt library checks the signature, expiry and issuer. Passing
// jwt.WithValidMethods rejects "alg: none" and other algorithm swaps.
func (s *TokenService) Validate(tokenStr string) (Identity, error) {
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
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, fmt.Errorf("auth: token expired")
		}
		return Identity{}, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return Identity{}, fmt.Errorf("auth: invalid token claims")
	}
	if c.Subject == "" {
		return Identity{}, fmt.Errorf("auth: token has no subject")
	}
	return Identity{UserID: c.Subject, Admin: c.Admin}, nil
}
