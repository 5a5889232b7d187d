package repository

import (
	"context"
	"errors"

	"github.com/timber-social/timber-backend/internal/domain"
	"github.com/timber-social/timber-backend/internal/observability"

	"gorm.io/gorm"
)

var ErrAlreadyFollowing = errors.New("already following")

// FollowRepository stores the follow graph. Lists and counts only include
// active accounts on the far side of the edge.
type FollowRepository interface {
	Follow(ctx context.Context, followerID, followingID uint) error
	Unfollow(ctx context.Context, followerID, followingID uint) (bool, error)
	IsFollowing(ctx context.Context, followerID, followingID uint) (bool, error)
	CountFollowers(ctx context.Context, userID uint) (int64, error)
	CountFollowing(ctx context.Context, userID uint) (int64, error)
	ListFollowers(ctx context.Context, userID uint, page PageRequest) (PageResult[domain.Account], error)
	ListFollowing(ctx context.Context, userID uint, page PageRequest) (PageResult[domain.Account], error)
}

type GormFollowRepository struct{ db *gorm.DB }

func NewFollowRepository(db *gorm.DB) FollowRepository { return &GormFollowRepository{db: db} }

func (r *GormFollowRepository) Follow(ctx context.Context, followerID, followingID uint) error {
	err := r.db.WithContext(ctx).Create(&domain.Follow{FollowerID: followerID, FollowingID: followingID}).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			observability.RecordRepositoryOperation(ctx, "follow", "create", "conflict")
			return ErrAlreadyFollowing
		}
		observability.RecordRepositoryOperation(ctx, "follow", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "follow", "create", "success")
	return nil
}

func (r *GormFollowRepository) Unfollow(ctx context.Context, followerID, followingID uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Delete(&domain.Follow{})
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "follow", "delete", "error")
		return false, res.Error
	}
	observability.RecordRepositoryOperation(ctx, "follow", "delete", "success")
	return res.RowsAffected > 0, nil
}

func (r *GormFollowRepository) IsFollowing(ctx context.Context, followerID, followingID uint) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&domain.Follow{}).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Count(&n).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "follow", "exists", "error")
		return false, err
	}
	observability.RecordRepositoryOperation(ctx, "follow", "exists", "success")
	return n > 0, nil
}

// followers joins the accounts on the follower side of edges pointing at userID.
func (r *GormFollowRepository) followers(ctx context.Context, userID uint) *gorm.DB {
	return r.db.WithContext(ctx).Model(&domain.Account{}).
		Joins("JOIN follows ON follows.follower_id = accounts.id").
		Where("follows.following_id = ? AND accounts.status = ?", userID, domain.AccountStatusActive)
}

// following joins the accounts on the followed side of edges leaving userID.
func (r *GormFollowRepository) following(ctx context.Context, userID uint) *gorm.DB {
	return r.db.WithContext(ctx).Model(&domain.Account{}).
		Joins("JOIN follows ON follows.following_id = accounts.id").
		Where("follows.follower_id = ? AND accounts.status = ?", userID, domain.AccountStatusActive)
}

func (r *GormFollowRepository) CountFollowers(ctx context.Context, userID uint) (int64, error) {
	return r.count(ctx, "count_followers", r.followers(ctx, userID))
}

func (r *GormFollowRepository) CountFollowing(ctx context.Context, userID uint) (int64, error) {
	return r.count(ctx, "count_following", r.following(ctx, userID))
}

func (r *GormFollowRepository) count(ctx context.Context, op string, q *gorm.DB) (int64, error) {
	var n int64
	if err := q.Count(&n).Error; err != nil {
		observability.RecordRepositoryOperation(ctx, "follow", op, "error")
		return 0, err
	}
	observability.RecordRepositoryOperation(ctx, "follow", op, "success")
	return n, nil
}

func (r *GormFollowRepository) ListFollowers(ctx context.Context, userID uint, page PageRequest) (PageResult[domain.Account], error) {
	return r.list(ctx, "list_followers", r.followers(ctx, userID), page)
}

func (r *GormFollowRepository) ListFollowing(ctx context.Context, userID uint, page PageRequest) (PageResult[domain.Account], error) {
	return r.list(ctx, "list_following", r.following(ctx, userID), page)
}

func (r *GormFollowRepository) list(ctx context.Context, op string, base *gorm.DB, page PageRequest) (PageResult[domain.Account], error) {
	req := normalizePageRequest(page)
	result := PageResult[domain.Account]{Page: req.Page, PageSize: req.PageSize}

	if err := base.Session(&gorm.Session{}).Count(&result.Total).Error; err != nil {
		observability.RecordRepositoryOperation(ctx, "follow", op, "error")
		return PageResult[domain.Account]{}, err
	}
	err := base.Select("accounts.*").
		Order("follows.created_at DESC").Order("accounts.id DESC").
		Offset(req.Offset()).Limit(req.PageSize).
		Find(&result.Items).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "follow", op, "error")
		return PageResult[domain.Account]{}, err
	}
	result.TotalPages = calcTotalPages(result.Total, req.PageSize)
	observability.RecordRepositoryOperation(ctx, "follow", op, "success")
	return result, nil
}
