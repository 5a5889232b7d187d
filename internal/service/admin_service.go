package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/timber-social/timber-backend/internal/domain"
	"github.com/timber-social/timber-backend/internal/observability"
	"github.com/timber-social/timber-backend/internal/repository"
)

type AdminListQuery struct {
	Page   int
	Limit  int
	Search string
}

type AdminService struct {
	accounts repository.AccountRepository
	tokens   *TokenService
	misses   ProfileMissCache
	logger   *slog.Logger
}

func NewAdminService(accounts repository.AccountRepository, tokens *TokenService, misses ProfileMissCache, logger *slog.Logger) *AdminService {
	if misses == nil {
		misses = NewNoopProfileMissCache()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminService{accounts: accounts, tokens: tokens, misses: misses, logger: logger}
}

func (s *AdminService) ListAccounts(ctx context.Context, query AdminListQuery) (repository.PageResult[domain.AccountView], error) {
	if err := fieldsErr(repository.CheckPageQuery(query.Page, query.Limit)); err != nil {
		return repository.PageResult[domain.AccountView]{}, err
	}

	page, err := s.accounts.ListPaged(ctx, repository.AccountListQuery{
		PageRequest: repository.PageRequest{Page: query.Page, PageSize: query.Limit},
		Search:      query.Search,
	})
	if err != nil {
		return repository.PageResult[domain.AccountView]{}, Internal("fail to retrieve user list", err)
	}
	views := make([]domain.AccountView, 0, len(page.Items))
	for i := range page.Items {
		views = append(views, page.Items[i].View())
	}
	return repository.PageResult[domain.AccountView]{
		Items:      views,
		Page:       page.Page,
		PageSize:   page.PageSize,
		Total:      page.Total,
		TotalPages: page.TotalPages,
	}, nil
}

// Suspend blocks future logins and drops the account's live session. Admin
// accounts cannot be suspended.
func (s *AdminService) Suspend(ctx context.Context, actorID, targetID uint) (*domain.AccountView, error) {
	target, err := s.load(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if target.Roles.Has(domain.RoleAdmin) {
		return nil, BadRequest("An admin can't be suspended")
	}
	view, err := s.setStatus(ctx, actorID, target, domain.AccountStatusSuspended)
	if err != nil {
		return nil, err
	}
	if _, err := s.tokens.RevokeAll(ctx, target.ID); err != nil {
		return nil, Internal("Failed to revoke sessions", err)
	}
	return view, nil
}

func (s *AdminService) Reactivate(ctx context.Context, actorID, targetID uint) (*domain.AccountView, error) {
	target, err := s.load(ctx, targetID)
	if err != nil {
		return nil, err
	}
	return s.setStatus(ctx, actorID, target, domain.AccountStatusActive)
}

func (s *AdminService) load(ctx context.Context, id uint) (*domain.Account, error) {
	account, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, NotFound(msgUserNotFound)
		}
		return nil, Internal("Failed to load user", err)
	}
	return account, nil
}

func (s *AdminService) setStatus(ctx context.Context, actorID uint, target *domain.Account, status domain.AccountStatus) (*domain.AccountView, error) {
	updated, err := s.accounts.UpdateByID(ctx, target.ID, repository.AccountUpdate{Status: &status})
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, NotFound(msgUserNotFound)
		}
		return nil, Internal("Failed to update user", err)
	}
	if err := s.misses.Forget(ctx, updated.Username); err != nil {
		s.logger.WarnContext(ctx, "profile miss cache forget failed", "error", err)
	}
	observability.RecordAdminMutation(ctx, string(status))
	observability.Audit(ctx, s.logger, "admin.account_status_changed",
		"actor_id", actorID, "user_id", updated.ID, "status", string(status))
	view := updated.View()
	return &view, nil
}
