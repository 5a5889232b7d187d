package service

import (
	"context"

	"github.com/timber-social/timber-backend/internal/domain"
	"github.com/timber-social/timber-backend/internal/repository"
)

type AuthServiceInterface interface {
	Register(ctx context.Context, in RegisterInput) (*RegisterResult, error)
	VerifyUser(ctx context.Context, in CodeInput) (*domain.AccountView, error)
	ResendVerificationCode(ctx context.Context, in EmailInput) (string, error)
	CheckVerificationCode(ctx context.Context, in CodeInput) (string, error)
	ForgotPassword(ctx context.Context, in EmailInput) (string, error)
	ResetPassword(ctx context.Context, in ResetPasswordInput) (string, error)
	Login(ctx context.Context, in LoginInput) (*LoginResult, error)
	RefreshAccessToken(ctx context.Context, refreshToken string) (*RefreshResult, error)
	Logout(ctx context.Context, refreshToken string) (string, error)
}

type ProfileServiceInterface interface {
	PublicProfile(ctx context.Context, username string, viewerID uint) (*domain.PublicProfile, error)
	UpdateProfile(ctx context.Context, userID uint, in ProfileUpdateInput) (*domain.PublicProfile, error)
}

type FollowServiceInterface interface {
	Follow(ctx context.Context, followerID, targetID uint) (string, error)
	Unfollow(ctx context.Context, followerID, targetID uint) (string, error)
	Followers(ctx context.Context, userID uint, page, limit int) (repository.PageResult[domain.AccountSummary], error)
	Following(ctx context.Context, userID uint, page, limit int) (repository.PageResult[domain.AccountSummary], error)
}

type AdminServiceInterface interface {
	ListAccounts(ctx context.Context, query AdminListQuery) (repository.PageResult[domain.AccountView], error)
	Suspend(ctx context.Context, actorID, targetID uint) (*domain.AccountView, error)
	Reactivate(ctx context.Context, actorID, targetID uint) (*domain.AccountView, error)
}

var (
	_ AuthServiceInterface    = (*AuthService)(nil)
	_ ProfileServiceInterface = (*ProfileService)(nil)
	_ FollowServiceInterface  = (*FollowService)(nil)
	_ AdminServiceInterface   = (*AdminService)(nil)
)
