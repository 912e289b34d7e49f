package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken covers every token defect: bad signature, expiry, wrong
// type, or a session the server no longer knows about. Callers get no
// detail beyond this, deliberately.
var ErrInvalidToken = errors.New("invalid or expired token")

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// Claims is the JWT payload for both token types. Type distinguishes access
// tokens from refresh tokens; refresh tokens additionally carry the jti of
// their server-side session row.
type Claims struct {
	Type string `json:"type"`
	jwt.RegisteredClaims
}

// TokenManager issues and validates the two token kinds. Access and refresh
// tokens are signed with separate secrets so a leaked access secret cannot
// mint long-lived sessions.
type TokenManager struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

func NewTokenManager(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *TokenManager {
	return &TokenManager{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

// NewAccessToken mints a short-lived access token for the user.
func (m *TokenManager) NewAccessToken(userID string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(m.accessTTL)
	claims := Claims{
		Type: tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.accessSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return signed, expiresAt, nil
}

// NewRefreshToken mints a refresh token whose jti indexes the session row
// stored server-side; presenting the JWT alone is not enough to refresh.
func (m *TokenManager) NewRefreshToken(userID string) (signed, jti string, expiresAt time.Time, err error) {
	jti, err = randomHex(32)
	if err != nil {
		return "", "", time.Time{}, err
	}
	now := time.Now()
	expiresAt = now.Add(m.refreshTTL)
	claims := Claims{
		Type: tokenTypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.refreshSecret)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return signed, jti, expiresAt, nil
}

// ParseAccessToken validates an access token and returns its subject.
func (m *TokenManager) ParseAccessToken(raw string) (string, error) {
	claims, err := m.parse(raw, m.accessSecret)
	if err != nil || claims.Type != tokenTypeAccess || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// ParseRefreshToken validates a refresh token and returns its subject and
// the session jti to look up server-side.
func (m *TokenManager) ParseRefreshToken(raw string) (userID, jti string, err error) {
	claims, err := m.parse(raw, m.refreshSecret)
	if err != nil || claims.Type != tokenTypeRefresh || claims.Subject == "" || claims.ID == "" {
		return "", "", ErrInvalidToken
	}
	return claims.Subject, claims.ID, nil
}

func (m *TokenManager) parse(raw string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate random token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
