package security

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/timber-social/timber-backend/internal/domain"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// Claims carries the account projection. Access and refresh tokens share this shape
// and differ only in secret, lifetime and token_type.
type Claims struct {
	TokenType string             `json:"token_type"`
	User      domain.AccountView `json:"user"`
	jwt.RegisteredClaims
}

func (c *Claims) UserID() (uint, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse subject: %w", err)
	}
	return uint(id), nil
}

type JWTManager struct {
	issuer        string
	audience      string
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

func NewJWTManager(issuer, audience, accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *JWTManager {
	return &JWTManager{
		issuer:        issuer,
		audience:      audience,
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}
}

// WithClock replaces the time source used for signing and verification.
func (m *JWTManager) WithClock(now func() time.Time) *JWTManager {
	m.now = now
	return m
}

func (m *JWTManager) AccessTTL() time.Duration  { return m.accessTTL }
func (m *JWTManager) RefreshTTL() time.Duration { return m.refreshTTL }

func (m *JWTManager) SignAccessToken(user domain.AccountView) (string, error) {
	return m.sign(user, tokenTypeAccess, m.accessSecret, m.accessTTL)
}

func (m *JWTManager) SignRefreshToken(user domain.AccountView) (string, error) {
	return m.sign(user, tokenTypeRefresh, m.refreshSecret, m.refreshTTL)
}

// VerifyAccessToken returns ok=false for every failure (expired, malformed, wrong
// secret, wrong type). Callers cannot and should not tell these apart.
func (m *JWTManager) VerifyAccessToken(raw string) (*Claims, bool) {
	claims, err := m.parse(raw, m.accessSecret, tokenTypeAccess)
	if err != nil {
		return nil, false
	}
	return claims, true
}

func (m *JWTManager) VerifyRefreshToken(raw string) (*Claims, bool) {
	claims, err := m.parse(raw, m.refreshSecret, tokenTypeRefresh)
	if err != nil {
		return nil, false
	}
	return claims, true
}

func (m *JWTManager) sign(user domain.AccountView, tokenType string, secret []byte, ttl time.Duration) (string, error) {
	now := m.now()
	claims := Claims{
		TokenType: tokenType,
		User:      user,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			Audience:  []string{m.audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", tokenType, err)
	}
	return signed, nil
}

func (m *JWTManager) parse(raw string, secret []byte, tokenType string) (*Claims, error) {
	if raw == "" {
		return nil, errors.New("empty token")
	}
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing algorithm")
		}
		return secret, nil
	},
		jwt.WithIssuer(m.issuer),
		jwt.WithAudience(m.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, err
	}
	if !tok.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.TokenType != tokenType {
		return nil, fmt.Errorf("unexpected token type: %s", claims.TokenType)
	}
	return claims, nil
}
