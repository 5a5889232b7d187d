package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/timber-social/timber-backend/internal/domain"
	"github.com/timber-social/timber-backend/internal/repository"
	"github.com/timber-social/timber-backend/internal/security"
)

type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// TokenService mints token pairs and owns the single-session-per-account rule.
type TokenService struct {
	jwtMgr      *security.JWTManager
	sessionRepo repository.SessionRepository
	pepper      string
	sessionTTL  time.Duration
	now         func() time.Time
}

func NewTokenService(jwtMgr *security.JWTManager, sessionRepo repository.SessionRepository, pepper string, sessionTTL time.Duration) *TokenService {
	return &TokenService{
		jwtMgr:      jwtMgr,
		sessionRepo: sessionRepo,
		pepper:      pepper,
		sessionTTL:  sessionTTL,
		now:         time.Now,
	}
}

func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	s.now = now
	return s
}

// Issue signs a fresh access/refresh pair and replaces every session the
// account held with one bound to the new refresh token.
func (s *TokenService) Issue(ctx context.Context, user domain.AccountView) (*TokenPair, error) {
	access, err := s.jwtMgr.SignAccessToken(user)
	if err != nil {
		return nil, err
	}
	refresh, err := s.jwtMgr.SignRefreshToken(user)
	if err != nil {
		return nil, err
	}
	now := s.now()
	session := &domain.Session{
		UserID:           user.ID,
		RefreshTokenHash: security.HashRefreshToken(refresh, s.pepper),
		ExpiresAt:        now.Add(s.sessionTTL).UTC(),
	}
	if err := s.sessionRepo.ReplaceForUser(ctx, session); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  now.Add(s.jwtMgr.AccessTTL()),
		RefreshExpiresAt: session.ExpiresAt,
	}, nil
}

func (s *TokenService) SignAccess(user domain.AccountView) (string, time.Time, error) {
	access, err := s.jwtMgr.SignAccessToken(user)
	if err != nil {
		return "", time.Time{}, err
	}
	return access, s.now().Add(s.jwtMgr.AccessTTL()), nil
}

// FindSession resolves the session stored for an exact refresh token string.
// The token signature is not consulted; persistence decides validity.
func (s *TokenService) FindSession(ctx context.Context, refreshToken string) (*domain.Session, error) {
	return s.sessionRepo.FindByTokenHash(ctx, security.HashRefreshToken(refreshToken, s.pepper))
}

// Revoke deletes the session bound to refreshToken. It reports false when no
// session matched.
func (s *TokenService) Revoke(ctx context.Context, refreshToken string) (bool, error) {
	session, err := s.FindSession(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := s.sessionRepo.DeleteByID(ctx, session.ID); err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *TokenService) RevokeAll(ctx context.Context, userID uint) (int64, error) {
	return s.sessionRepo.DeleteByUserID(ctx, userID)
}

func (s *TokenService) CleanupExpired(ctx context.Context) (int64, error) {
	return s.sessionRepo.CleanupExpired(ctx, s.now())
}
