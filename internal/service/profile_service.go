package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/timber-social/timber-backend/internal/domain"
	"github.com/timber-social/timber-backend/internal/observability"
	"github.com/timber-social/timber-backend/internal/repository"
)

const defaultProfileMissTTL = 30 * time.Second

type ProfileService struct {
	accounts repository.AccountRepository
	follows  repository.FollowRepository
	misses   ProfileMissCache
	missTTL  time.Duration
	logger   *slog.Logger
}

func NewProfileService(accounts repository.AccountRepository, follows repository.FollowRepository, misses ProfileMissCache, logger *slog.Logger) *ProfileService {
	if misses == nil {
		misses = NewNoopProfileMissCache()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ProfileService{accounts: accounts, follows: follows, misses: misses, missTTL: defaultProfileMissTTL, logger: logger}
}

// PublicProfile resolves a verified, active account by username. viewerID is
// zero for anonymous callers.
func (s *ProfileService) PublicProfile(ctx context.Context, username string, viewerID uint) (*domain.PublicProfile, error) {
	if missing, err := s.misses.IsMissing(ctx, username); err != nil {
		s.logger.WarnContext(ctx, "profile miss cache read failed", "error", err)
	} else if missing {
		return nil, NotFound(msgUserNotFound)
	}

	account, err := s.accounts.FindByUsername(ctx, username, true)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			s.markMissing(ctx, username)
			return nil, NotFound(msgUserNotFound)
		}
		return nil, Internal("Failed to load profile", err)
	}
	if account.Status != domain.AccountStatusActive {
		s.markMissing(ctx, username)
		return nil, NotFound(msgUserNotFound)
	}
	return s.profileOf(ctx, account, viewerID)
}

// UpdateProfile changes the caller's own name, bio or interests and returns
// the resulting public profile.
func (s *ProfileService) UpdateProfile(ctx context.Context, userID uint, in ProfileUpdateInput) (*domain.PublicProfile, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	update := repository.AccountUpdate{Name: in.Name, Bio: in.Bio}
	if in.Interests != nil {
		interests := domain.StringList(*in.Interests)
		update.Interests = &interests
	}
	updated, err := s.accounts.UpdateByID(ctx, userID, update)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, NotFound(msgUserNotFound)
		}
		return nil, Internal("Failed to update profile", err)
	}
	observability.Audit(ctx, s.logger, "account.profile_updated", "user_id", updated.ID)
	return s.profileOf(ctx, updated, userID)
}

func (s *ProfileService) profileOf(ctx context.Context, account *domain.Account, viewerID uint) (*domain.PublicProfile, error) {
	profile := &domain.PublicProfile{
		ID:        account.ID,
		Name:      account.Name,
		Username:  account.Username,
		Bio:       account.Bio,
		Interests: account.Interests,
		CreatedAt: account.CreatedAt,
		IsSelf:    viewerID != 0 && viewerID == account.ID,
	}
	if profile.Interests == nil {
		profile.Interests = domain.StringList{}
	}
	var err error
	if profile.FollowersCount, err = s.follows.CountFollowers(ctx, account.ID); err != nil {
		return nil, Internal("Failed to load profile", err)
	}
	if profile.FollowingCount, err = s.follows.CountFollowing(ctx, account.ID); err != nil {
		return nil, Internal("Failed to load profile", err)
	}
	if viewerID != 0 && !profile.IsSelf {
		if profile.IsFollowing, err = s.follows.IsFollowing(ctx, viewerID, account.ID); err != nil {
			return nil, Internal("Failed to load profile", err)
		}
	}
	return profile, nil
}

func (s *ProfileService) markMissing(ctx context.Context, username string) {
	if err := s.misses.MarkMissing(ctx, username, s.missTTL); err != nil {
		s.logger.WarnContext(ctx, "profile miss cache write failed", "error", err)
	}
}
