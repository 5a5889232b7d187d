package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type AccountStatus string

const (
	AccountStatusActive    AccountStatus = "active"
	AccountStatusSuspended AccountStatus = "suspended"
	AccountStatusDeleted   AccountStatus = "deleted"
)

func (s AccountStatus) Valid() bool {
	switch s {
	case AccountStatusActive, AccountStatusSuspended, AccountStatusDeleted:
		return true
	}
	return false
}

// RoleSet is persisted as a comma separated column so the schema stays portable
// between postgres and sqlite.
type RoleSet []Role

func DefaultRoles() RoleSet { return RoleSet{RoleUser} }

func (rs RoleSet) Has(role Role) bool {
	for _, r := range rs {
		if r == role {
			return true
		}
	}
	return false
}

func (rs RoleSet) Strings() []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, string(r))
	}
	return out
}

func (rs RoleSet) Value() (driver.Value, error) {
	if len(rs) == 0 {
		return string(RoleUser), nil
	}
	return strings.Join(rs.Strings(), ","), nil
}

func (rs *RoleSet) Scan(src any) error {
	var raw string
	switch v := src.(type) {
	case nil:
		*rs = nil
		return nil
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("scan role set: unsupported type %T", src)
	}
	out := RoleSet{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" || out.Has(Role(part)) {
			continue
		}
		out = append(out, Role(part))
	}
	*rs = out
	return nil
}

// StringList is stored as a JSON array in a text column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		l = StringList{}
	}
	raw, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func (l *StringList) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = StringList{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("scan string list: unsupported type %T", src)
	}
	if len(raw) == 0 {
		*l = StringList{}
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("scan string list: %w", err)
	}
	*l = out
	return nil
}

type Account struct {
	ID                     uint          `gorm:"primaryKey" json:"id"`
	Name                   string        `gorm:"size:100;not null" json:"name"`
	Username               string        `gorm:"size:30;index;not null" json:"username"`
	Email                  string        `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PasswordHash           string        `gorm:"size:255;not null" json:"-"`
	Roles                  RoleSet       `gorm:"type:text;not null" json:"roles"`
	Bio                    string        `gorm:"size:500;not null;default:''" json:"bio"`
	Interests              StringList    `gorm:"type:text" json:"interests"`
	Status                 AccountStatus `gorm:"size:16;index;not null;default:active" json:"account_status"`
	IsVerified             bool          `gorm:"index;not null;default:false" json:"is_verified"`
	VerificationCode       *string       `gorm:"size:6" json:"-"`
	VerificationCodeExpiry *time.Time    `json:"-"`
	CreatedAt              time.Time     `json:"created_at"`
	UpdatedAt              time.Time     `json:"updated_at"`
}

// HasPendingCode reports whether both halves of the one-time code are present.
func (a *Account) HasPendingCode() bool {
	return a.VerificationCode != nil && *a.VerificationCode != "" && a.VerificationCodeExpiry != nil
}

// AccountView is the projection handed to callers and embedded in token claims.
// It never carries the password hash or the one-time code.
type AccountView struct {
	ID         uint          `json:"id"`
	Name       string        `json:"name"`
	Username   string        `json:"username"`
	Email      string        `json:"email"`
	IsVerified bool          `json:"is_verified"`
	Roles      []Role        `json:"roles"`
	Status     AccountStatus `json:"account_status"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

func (a *Account) View() AccountView {
	roles := append([]Role(nil), a.Roles...)
	if len(roles) == 0 {
		roles = []Role{RoleUser}
	}
	status := a.Status
	if status == "" {
		status = AccountStatusActive
	}
	return AccountView{
		ID:         a.ID,
		Name:       a.Name,
		Username:   a.Username,
		Email:      a.Email,
		IsVerified: a.IsVerified,
		Roles:      roles,
		Status:     status,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
}

// PublicProfile is what anonymous or third-party viewers see. IsFollowing is
// always false for anonymous viewers and for the account owner.
type PublicProfile struct {
	ID             uint       `json:"id"`
	Name           string     `json:"name"`
	Username       string     `json:"username"`
	Bio            string     `json:"bio"`
	Interests      StringList `json:"interests"`
	FollowersCount int64      `json:"followers_count"`
	FollowingCount int64      `json:"following_count"`
	CreatedAt      time.Time  `json:"created_at"`
	IsSelf         bool       `json:"is_self"`
	IsFollowing    bool       `json:"is_following"`
}
