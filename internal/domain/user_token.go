package domain

import "time"

// UserToken is a persisted refresh token. Only refresh-purpose tokens
// are stored; access tokens live and die inside their signature.
//
// A row exists exactly while its refresh token is usable: rotation
// rewrites the same row with a new key and expiry, logout deletes it,
// and expired rows are swept lazily whenever their owner authenticates.
type UserToken struct {
	ID        int64     `json:"id" gorm:"primaryKey"`
	UserID    int64     `json:"user_id" gorm:"index;not null"`
	TokenKey  string    `json:"-" gorm:"size:255;uniqueIndex"`
	ExpiresAt time.Time `json:"expires_at" gorm:"index;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	Purpose   string    `json:"purpose" gorm:"size:20;not null"`
}

func (UserToken) TableName() string { return "user_tokens" }

func (t *UserToken) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
