// Package token issues and verifies the session tokens handed out
// after an authorized provider login.
package token

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/emercoin/emcid-login/pkg/linker"
)

// DefaultExpiry is how long an issued session token stays valid.
const DefaultExpiry = 24 * time.Hour

// Claims is the session token claim set. The subject is the account id.
type Claims struct {
	Username string   `json:"username,omitempty"`
	Roles    []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// Issuer signs session tokens with a shared HMAC secret.
type Issuer struct {
	Secret   string
	Issuer   string
	Audience string
	Expiry   time.Duration
}

// NewIssuer creates an Issuer with the default expiry.
func NewIssuer(secret, issuer, audience string) *Issuer {
	return &Issuer{
		Secret:   secret,
		Issuer:   issuer,
		Audience: audience,
		Expiry:   DefaultExpiry,
	}
}

// IssueToken creates a signed session token for the account.
func (g *Issuer) IssueToken(account linker.Account) (string, time.Time, error) {
	now := time.Now().UTC()
	claims := Claims{
		Username: account.Username,
		Roles:    account.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(g.Expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now.Add(-5 * time.Minute)),
			Issuer:    g.Issuer,
			Subject:   account.ID.String(),
			ID:        uuid.New().String(),
			Audience:  jwt.ClaimStrings{g.Audience},
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString([]byte(g.Secret))
	if err != nil {
		slog.Error("Failed to sign session token", "err", err)
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, claims.ExpiresAt.Time, nil
}

// ParseToken parses and validates a session token string.
func (g *Issuer) ParseToken(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(g.Secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !tok.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// NewVerifier returns the jwtauth verifier routers use to protect
// endpoints with the same secret the Issuer signs with.
func NewVerifier(secret string) *jwtauth.JWTAuth {
	return jwtauth.New("HS256", []byte(secret), nil)
}
