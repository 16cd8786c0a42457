package auth

import (
	"errors"
	"testing"
	"time"

	"ops-dashboard/internal/config"

	"golang.org/x/crypto/bcrypt"
)

func testManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(config.AuthConfig{
		JWTSecret:       "secret",
		JWTIssuer:       "issuer",
		JWTAudience:     "aud",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	return m
}

func TestIssueAndVerifyAccessToken(t *testing.T) {
	m := testManager(t)

	now := time.Unix(1700000000, 0).UTC()
	pair, err := m.IssuePair(now, "owner", "owner")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("expected token strings")
	}
	if !pair.ExpiresAt.Equal(now.Add(15 * time.Minute)) {
		t.Fatalf("unexpected expiry %s", pair.ExpiresAt)
	}

	claims, err := m.Verify(pair.AccessToken, TokenTypeAccess, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != "owner" || claims.Role != "owner" {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	refresh, err := m.Verify(pair.RefreshToken, TokenTypeRefresh, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("verify refresh: %v", err)
	}
	if refresh.Role != "" {
		t.Fatalf("refresh token must not carry a role")
	}
}

func TestVerifyRejectsWrongTokenType(t *testing.T) {
	m, _ := NewManager(config.AuthConfig{JWTSecret: "secret", AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour})
	p, err := m.IssuePair(time.Now(), "u", "owner")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Verify(p.RefreshToken, TokenTypeAccess, time.Now()); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected token_type mismatch, got %v", err)
	}
}

func TestVerifyRejectsExpiredAndForeign(t *testing.T) {
	m := testManager(t)
	now := time.Unix(1700000000, 0).UTC()
	p, _ := m.IssuePair(now, "owner", "owner")

	if _, err := m.Verify(p.AccessToken, TokenTypeAccess, now.Add(time.Hour)); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token rejected, got %v", err)
	}

	other, _ := NewManager(config.AuthConfig{JWTSecret: "other", JWTIssuer: "issuer", JWTAudience: "aud", AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour})
	if _, err := other.Verify(p.AccessToken, TokenTypeAccess, now); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected foreign signature rejected, got %v", err)
	}
}

func TestAuthenticator(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	viewerHash, err := bcrypt.GenerateFromPassword([]byte("battery staple"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	a, err := NewAuthenticator(
		Account{Username: "owner", PasswordHash: string(hash), Role: "owner"},
		Account{Username: "frontdesk", PasswordHash: string(viewerHash), Role: "viewer"},
	)
	if err != nil {
		t.Fatalf("authenticator: %v", err)
	}

	for _, tc := range []struct{ user, pw, role string }{
		{"owner", "correct horse", "owner"},
		{"frontdesk", "battery staple", "viewer"},
	} {
		role, err := a.Check(tc.user, tc.pw)
		if err != nil || role != tc.role {
			t.Fatalf("%s: expected role %q, got %q %v", tc.user, tc.role, role, err)
		}
	}
	for _, tc := range [][2]string{{"owner", "wrong"}, {"frontdesk", "correct horse"}, {"intruder", "correct horse"}, {"", ""}} {
		if _, err := a.Check(tc[0], tc[1]); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("%v: expected ErrInvalidCredentials, got %v", tc, err)
		}
	}
	if role, ok := a.RoleOf("frontdesk"); !ok || role != "viewer" {
		t.Fatalf("expected frontdesk viewer, got %q %v", role, ok)
	}
	if _, ok := a.RoleOf("intruder"); ok {
		t.Fatalf("expected unknown user")
	}

	if _, err := NewAuthenticator(Account{Username: "owner", PasswordHash: "plain", Role: "owner"}); err == nil {
		t.Fatalf("expected non-bcrypt hash rejected")
	}
	if _, err := NewAuthenticator(); err == nil {
		t.Fatalf("expected empty account list rejected")
	}
	dup := Account{Username: "owner", PasswordHash: string(hash), Role: "owner"}
	if _, err := NewAuthenticator(dup, dup); err == nil {
		t.Fatalf("expected duplicate account rejected")
	}
}
