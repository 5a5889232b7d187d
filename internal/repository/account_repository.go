package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/timber-social/timber-backend/internal/domain"
	"github.com/timber-social/timber-backend/internal/observability"

	"gorm.io/gorm"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrAccountConflict = errors.New("account already exists")
	ErrInvalidUpdate   = errors.New("invalid account update")
)

// AccountUpdate carries a partial change set. Nil fields are left untouched.
// Setting VerificationCode requires VerificationCodeExpiry and vice versa;
// ClearCode removes both.
type AccountUpdate struct {
	Name                   *string
	Username               *string
	Bio                    *string
	Interests              *domain.StringList
	PasswordHash           *string
	IsVerified             *bool
	Status                 *domain.AccountStatus
	VerificationCode       *string
	VerificationCodeExpiry *time.Time
	ClearCode              bool
}

func (u AccountUpdate) columns() (map[string]any, error) {
	cols := map[string]any{}
	if u.Name != nil {
		cols["name"] = *u.Name
	}
	if u.Username != nil {
		cols["username"] = NormalizeUsername(*u.Username)
	}
	if u.Bio != nil {
		cols["bio"] = *u.Bio
	}
	if u.Interests != nil {
		cols["interests"] = *u.Interests
	}
	if u.PasswordHash != nil {
		cols["password_hash"] = *u.PasswordHash
	}
	if u.IsVerified != nil {
		cols["is_verified"] = *u.IsVerified
	}
	if u.Status != nil {
		if !u.Status.Valid() {
			return nil, ErrInvalidUpdate
		}
		cols["status"] = *u.Status
	}
	hasCode := u.VerificationCode != nil
	hasExpiry := u.VerificationCodeExpiry != nil
	switch {
	case u.ClearCode && (hasCode || hasExpiry):
		return nil, ErrInvalidUpdate
	case u.ClearCode:
		cols["verification_code"] = nil
		cols["verification_code_expiry"] = nil
	case hasCode != hasExpiry:
		return nil, ErrInvalidUpdate
	case hasCode:
		cols["verification_code"] = *u.VerificationCode
		cols["verification_code_expiry"] = u.VerificationCodeExpiry.UTC()
	}
	if len(cols) == 0 {
		return nil, ErrInvalidUpdate
	}
	return cols, nil
}

type AccountListQuery struct {
	PageRequest
	Search string
}

type AccountRepository interface {
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
	FindByUsername(ctx context.Context, username string, verifiedOnly bool) (*domain.Account, error)
	FindByID(ctx context.Context, id uint) (*domain.Account, error)
	Create(ctx context.Context, account *domain.Account) error
	UpdateByID(ctx context.Context, id uint, update AccountUpdate) (*domain.Account, error)
	ListPaged(ctx context.Context, query AccountListQuery) (PageResult[domain.Account], error)
}

type GormAccountRepository struct{ db *gorm.DB }

func NewAccountRepository(db *gorm.DB) AccountRepository { return &GormAccountRepository{db: db} }

func NormalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

func NormalizeUsername(username string) string { return strings.ToLower(strings.TrimSpace(username)) }

func (r *GormAccountRepository) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	var a domain.Account
	err := r.db.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).First(&a).Error
	return r.found(ctx, "find_by_email", &a, err)
}

func (r *GormAccountRepository) FindByUsername(ctx context.Context, username string, verifiedOnly bool) (*domain.Account, error) {
	var a domain.Account
	q := r.db.WithContext(ctx).Where("username = ?", NormalizeUsername(username))
	if verifiedOnly {
		q = q.Where("is_verified = ?", true)
	}
	err := q.Order("id ASC").First(&a).Error
	return r.found(ctx, "find_by_username", &a, err)
}

func (r *GormAccountRepository) FindByID(ctx context.Context, id uint) (*domain.Account, error) {
	var a domain.Account
	err := r.db.WithContext(ctx).First(&a, id).Error
	return r.found(ctx, "find_by_id", &a, err)
}

func (r *GormAccountRepository) found(ctx context.Context, op string, a *domain.Account, err error) (*domain.Account, error) {
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(ctx, "account", op, "not_found")
			return nil, ErrAccountNotFound
		}
		observability.RecordRepositoryOperation(ctx, "account", op, "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "account", op, "success")
	return a, nil
}

func (r *GormAccountRepository) Create(ctx context.Context, account *domain.Account) error {
	account.Email = NormalizeEmail(account.Email)
	account.Username = NormalizeUsername(account.Username)
	if len(account.Roles) == 0 {
		account.Roles = domain.DefaultRoles()
	}
	if account.Status == "" {
		account.Status = domain.AccountStatusActive
	}
	err := r.db.WithContext(ctx).Create(account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			observability.RecordRepositoryOperation(ctx, "account", "create", "conflict")
			return ErrAccountConflict
		}
		observability.RecordRepositoryOperation(ctx, "account", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "account", "create", "success")
	return nil
}

func (r *GormAccountRepository) UpdateByID(ctx context.Context, id uint, update AccountUpdate) (*domain.Account, error) {
	cols, err := update.columns()
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "account", "update_by_id", "invalid")
		return nil, err
	}
	var updated domain.Account
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Account{}).Where("id = ?", id).Updates(cols)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAccountNotFound
		}
		return tx.First(&updated, id).Error
	})
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) || errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(ctx, "account", "update_by_id", "not_found")
			return nil, ErrAccountNotFound
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			observability.RecordRepositoryOperation(ctx, "account", "update_by_id", "conflict")
			return nil, ErrAccountConflict
		}
		observability.RecordRepositoryOperation(ctx, "account", "update_by_id", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "account", "update_by_id", "success")
	return &updated, nil
}

func (r *GormAccountRepository) ListPaged(ctx context.Context, query AccountListQuery) (PageResult[domain.Account], error) {
	req := normalizePageRequest(query.PageRequest)
	result := PageResult[domain.Account]{
		Page:     req.Page,
		PageSize: req.PageSize,
	}

	base := r.db.WithContext(ctx).Model(&domain.Account{})
	if search := strings.ToLower(strings.TrimSpace(query.Search)); search != "" {
		pattern := "%" + search + "%"
		base = base.Where("LOWER(name) LIKE ? OR LOWER(username) LIKE ? OR LOWER(email) LIKE ?", pattern, pattern, pattern)
	}

	if err := base.Session(&gorm.Session{}).Count(&result.Total).Error; err != nil {
		observability.RecordRepositoryOperation(ctx, "account", "list_paged", "error")
		return PageResult[domain.Account]{}, err
	}

	if err := base.Order("created_at DESC").Order("id DESC").Offset(req.Offset()).Limit(req.PageSize).Find(&result.Items).Error; err != nil {
		observability.RecordRepositoryOperation(ctx, "account", "list_paged", "error")
		return PageResult[domain.Account]{}, err
	}
	result.TotalPages = calcTotalPages(result.Total, req.PageSize)
	observability.RecordRepositoryOperation(ctx, "account", "list_paged", "success")
	return result, nil
}
