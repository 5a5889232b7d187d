package service

import (
	"context"
	"testing"
	"time"

	"github.com/timber-social/timber-backend/internal/domain"
	"github.com/timber-social/timber-backend/internal/security"
)

func newTestTokenService(repo *inMemorySessionRepo, now func() time.Time) *TokenService {
	jwtMgr := security.NewJWTManager("timber-test", "timber-test-web", "access-secret", "refresh-secret", 10*time.Minute, 30*24*time.Hour).
		WithClock(now)
	return NewTokenService(jwtMgr, repo, "pepper", 30*24*time.Hour).WithClock(now)
}

func TestTokenIssueStoresHashedSession(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := newInMemorySessionRepo()
	svc := newTestTokenService(repo, func() time.Time { return now })

	pair, err := svc.Issue(context.Background(), domain.AccountView{ID: 9, Username: "ada"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	sessions := repo.forUser(9)
	if len(sessions) != 1 {
		t.Fatalf("expected one session, got %d", len(sessions))
	}
	if sessions[0].RefreshTokenHash == pair.RefreshToken {
		t.Fatal("raw refresh token must not be stored")
	}
	if sessions[0].RefreshTokenHash != security.HashRefreshToken(pair.RefreshToken, "pepper") {
		t.Fatal("stored hash does not match peppered refresh token")
	}
	if !sessions[0].ExpiresAt.Equal(now.Add(30 * 24 * time.Hour)) {
		t.Fatalf("unexpected session expiry: %s", sessions[0].ExpiresAt)
	}
	if !pair.AccessExpiresAt.Equal(now.Add(10 * time.Minute)) {
		t.Fatalf("unexpected access expiry: %s", pair.AccessExpiresAt)
	}
}

func TestTokenIssueReplacesPriorSession(t *testing.T) {
	repo := newInMemorySessionRepo()
	svc := newTestTokenService(repo, time.Now)
	ctx := context.Background()

	first, err := svc.Issue(ctx, domain.AccountView{ID: 1})
	if err != nil {
		t.Fatalf("first issue: %v", err)
	}
	if _, err := svc.Issue(ctx, domain.AccountView{ID: 1}); err != nil {
		t.Fatalf("second issue: %v", err)
	}
	if got := len(repo.forUser(1)); got != 1 {
		t.Fatalf("expected one session after relogin, got %d", got)
	}
	if _, err := svc.FindSession(ctx, first.RefreshToken); err == nil {
		t.Fatal("first refresh token should no longer resolve")
	}
}

func TestTokenRevokeIsIdempotent(t *testing.T) {
	repo := newInMemorySessionRepo()
	svc := newTestTokenService(repo, time.Now)
	ctx := context.Background()

	pair, err := svc.Issue(ctx, domain.AccountView{ID: 3})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	revoked, err := svc.Revoke(ctx, pair.RefreshToken)
	if err != nil || !revoked {
		t.Fatalf("first revoke: revoked=%v err=%v", revoked, err)
	}
	revoked, err = svc.Revoke(ctx, pair.RefreshToken)
	if err != nil || revoked {
		t.Fatalf("second revoke: revoked=%v err=%v", revoked, err)
	}
}

func TestTokenCleanupExpiredUsesClock(t *testing.T) {
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	repo := newInMemorySessionRepo()
	svc := newTestTokenService(repo, func() time.Time { return now })
	ctx := context.Background()

	if _, err := svc.Issue(ctx, domain.AccountView{ID: 4}); err != nil {
		t.Fatalf("issue: %v", err)
	}
	now = now.Add(31 * 24 * time.Hour)
	n, err := svc.CleanupExpired(ctx)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 expired session removed, got %d", n)
	}
}
