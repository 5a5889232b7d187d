package domain

import "time"

// Follow is a directed edge: FollowerID follows FollowingID.
type Follow struct {
	FollowerID  uint      `gorm:"primaryKey;autoIncrement:false"`
	FollowingID uint      `gorm:"primaryKey;autoIncrement:false;index"`
	CreatedAt   time.Time `gorm:"index"`
}

// AccountSummary is the entry shape of follower and following lists.
type AccountSummary struct {
	ID       uint   `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Bio      string `json:"bio"`
}

func (a *Account) Summary() AccountSummary {
	return AccountSummary{ID: a.ID, Name: a.Name, Username: a.Username, Bio: a.Bio}
}
