package auth

import (
	"errors"
	"testing"
	"time"
)

func newTestManager() *TokenManager {
	return NewTokenManager("access-secret", "refresh-secret", 30*time.Minute, 7*24*time.Hour)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	m := newTestManager()

	signed, expiresAt, err := m.NewAccessToken("user-1")
	if err != nil {
		t.Fatalf("NewAccessToken failed: %v", err)
	}
	if time.Until(expiresAt) <= 0 {
		t.Error("access token already expired")
	}

	userID, err := m.ParseAccessToken(signed)
	if err != nil {
		t.Fatalf("ParseAccessToken failed: %v", err)
	}
	if userID != "user-1" {
		t.Errorf("subject = %q, want user-1", userID)
	}
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	m := newTestManager()

	signed, jti, _, err := m.NewRefreshToken("user-1")
	if err != nil {
		t.Fatalf("NewRefreshToken failed: %v", err)
	}
	if len(jti) != 64 {
		t.Errorf("jti length = %d, want 64 hex chars", len(jti))
	}

	userID, parsedJTI, err := m.ParseRefreshToken(signed)
	if err != nil {
		t.Fatalf("ParseRefreshToken failed: %v", err)
	}
	if userID != "user-1" {
		t.Errorf("subject = %q, want user-1", userID)
	}
	if parsedJTI != jti {
		t.Errorf("jti = %q, want %q", parsedJTI, jti)
	}
}

func TestTokenTypeConfusionRejected(t *testing.T) {
	m := newTestManager()

	access, _, err := m.NewAccessToken("user-1")
	if err != nil {
		t.Fatalf("NewAccessToken failed: %v", err)
	}
	refresh, _, _, err := m.NewRefreshToken("user-1")
	if err != nil {
		t.Fatalf("NewRefreshToken failed: %v", err)
	}

	if _, _, err := m.ParseRefreshToken(access); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("access token accepted as refresh token: %v", err)
	}
	if _, err := m.ParseAccessToken(refresh); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("refresh token accepted as access token: %v", err)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	m := NewTokenManager("access-secret", "refresh-secret", -time.Minute, -time.Minute)

	signed, _, err := m.NewAccessToken("user-1")
	if err != nil {
		t.Fatalf("NewAccessToken failed: %v", err)
	}
	if _, err := m.ParseAccessToken(signed); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expired token accepted: %v", err)
	}
}

func TestWrongSecretRejected(t *testing.T) {
	m := newTestManager()
	other := NewTokenManager("different-secret", "different-refresh", 30*time.Minute, time.Hour)

	signed, _, err := m.NewAccessToken("user-1")
	if err != nil {
		t.Fatalf("NewAccessToken failed: %v", err)
	}
	if _, err := other.ParseAccessToken(signed); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("token accepted under a different secret: %v", err)
	}
}

func TestGarbageTokenRejected(t *testing.T) {
	m := newTestManager()
	for _, raw := range []string{"", "not-a-jwt", "aaa.bbb.ccc"} {
		if _, err := m.ParseAccessToken(raw); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("ParseAccessToken(%q) err = %v, want ErrInvalidToken", raw, err)
		}
	}
}
