package repository

import (
	"fmt"

	"github.com/timber-social/timber-backend/internal/domain"

	"gorm.io/gorm"
)

// verifiedUsernameIndex makes a username unique among verified accounts while
// pending registrations may still share one. Postgres and sqlite both accept
// partial indexes.
const verifiedUsernameIndex = `CREATE UNIQUE INDEX IF NOT EXISTS idx_accounts_verified_username ON accounts (username) WHERE is_verified = true`

// Migrate brings the schema up to date.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&domain.Account{}, &domain.Session{}, &domain.Follow{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	if err := db.Exec(verifiedUsernameIndex).Error; err != nil {
		return fmt.Errorf("create verified username index: %w", err)
	}
	return nil
}
