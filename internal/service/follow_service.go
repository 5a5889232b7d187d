package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/timber-social/timber-backend/internal/domain"
	"github.com/timber-social/timber-backend/internal/observability"
	"github.com/timber-social/timber-backend/internal/repository"
)

const (
	msgFollowSelf       = "You cannot follow yourself"
	msgFollowTarget     = "User to follow not found"
	msgAlreadyFollowing = "You are already following this user"
	msgUnfollowTarget   = "User to unfollow not found"
	msgFollowed         = "User followed successfully"
	msgUnfollowed       = "User unfollowed successfully"
)

type FollowService struct {
	accounts repository.AccountRepository
	follows  repository.FollowRepository
	logger   *slog.Logger
}

func NewFollowService(accounts repository.AccountRepository, follows repository.FollowRepository, logger *slog.Logger) *FollowService {
	if logger == nil {
		logger = slog.Default()
	}
	return &FollowService{accounts: accounts, follows: follows, logger: logger}
}

// Follow adds an edge from followerID to a verified, active target.
func (s *FollowService) Follow(ctx context.Context, followerID, targetID uint) (string, error) {
	if followerID == targetID {
		return "", BadRequest(msgFollowSelf)
	}
	if _, err := s.visible(ctx, targetID, msgFollowTarget); err != nil {
		return "", err
	}
	if err := s.follows.Follow(ctx, followerID, targetID); err != nil {
		if errors.Is(err, repository.ErrAlreadyFollowing) {
			return "", BadRequest(msgAlreadyFollowing)
		}
		return "", Internal("Failed to follow user", err)
	}
	observability.Audit(ctx, s.logger, "account.followed", "user_id", followerID, "target_id", targetID)
	return msgFollowed, nil
}

// Unfollow is idempotent once the target exists.
func (s *FollowService) Unfollow(ctx context.Context, followerID, targetID uint) (string, error) {
	if followerID == targetID {
		return "", BadRequest(msgFollowSelf)
	}
	if _, err := s.accounts.FindByID(ctx, targetID); err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return "", NotFound(msgUnfollowTarget)
		}
		return "", Internal("Failed to unfollow user", err)
	}
	removed, err := s.follows.Unfollow(ctx, followerID, targetID)
	if err != nil {
		return "", Internal("Failed to unfollow user", err)
	}
	if removed {
		observability.Audit(ctx, s.logger, "account.unfollowed", "user_id", followerID, "target_id", targetID)
	}
	return msgUnfollowed, nil
}

func (s *FollowService) Followers(ctx context.Context, userID uint, page, limit int) (repository.PageResult[domain.AccountSummary], error) {
	return s.list(ctx, userID, page, limit, s.follows.ListFollowers)
}

func (s *FollowService) Following(ctx context.Context, userID uint, page, limit int) (repository.PageResult[domain.AccountSummary], error) {
	return s.list(ctx, userID, page, limit, s.follows.ListFollowing)
}

func (s *FollowService) list(
	ctx context.Context,
	userID uint,
	page, limit int,
	fetch func(ctx context.Context, userID uint, page repository.PageRequest) (repository.PageResult[domain.Account], error),
) (repository.PageResult[domain.AccountSummary], error) {
	if err := fieldsErr(repository.CheckPageQuery(page, limit)); err != nil {
		return repository.PageResult[domain.AccountSummary]{}, err
	}
	if _, err := s.visible(ctx, userID, msgUserNotFound); err != nil {
		return repository.PageResult[domain.AccountSummary]{}, err
	}
	res, err := fetch(ctx, userID, repository.PageRequest{Page: page, PageSize: limit})
	if err != nil {
		return repository.PageResult[domain.AccountSummary]{}, Internal("Failed to load follow list", err)
	}
	items := make([]domain.AccountSummary, 0, len(res.Items))
	for i := range res.Items {
		items = append(items, res.Items[i].Summary())
	}
	return repository.PageResult[domain.AccountSummary]{
		Items:      items,
		Page:       res.Page,
		PageSize:   res.PageSize,
		Total:      res.Total,
		TotalPages: res.TotalPages,
	}, nil
}

// visible loads an account that other users may see: verified and active.
func (s *FollowService) visible(ctx context.Context, id uint, notFound string) (*domain.Account, error) {
	account, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, NotFound(notFound)
		}
		return nil, Internal("Failed to load user", err)
	}
	if !account.IsVerified || account.Status != domain.AccountStatusActive {
		return nil, NotFound(notFound)
	}
	return account, nil
}
