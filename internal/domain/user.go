package domain

import "time"

// User is an account holder. Verification sets VerifiedAt and IsActive
// together; registration never sets either. UpdatedAt stays nil until
// the first mutation, which is what ties action tokens to account state.
type User struct {
	ID           int64      `json:"id" gorm:"primaryKey"`
	Email        string     `json:"email" gorm:"size:255;uniqueIndex;not null"`
	Name         string     `json:"name" gorm:"size:150;not null"`
	PasswordHash string     `json:"-" gorm:"column:password_hash;size:128"`
	IsActive     bool       `json:"is_active" gorm:"default:false"`
	VerifiedAt   *time.Time `json:"verified_at"`
	UpdatedAt    *time.Time `json:"updated_at" gorm:"autoUpdateTime:false"`
	CreatedAt    time.Time  `json:"created_at" gorm:"autoCreateTime"`
}

func (User) TableName() string { return "users" }

func (u *User) IsVerified() bool { return u.VerifiedAt != nil }

// ContextString derives the single-use token context for tag: the tag,
// the last six characters of the password hash and the tracked timestamp
// at second precision. Any persisted mutation moves UpdatedAt and
// permanently invalidates tokens minted against the old context.
func (u *User) ContextString(tag string) string {
	suffix := u.PasswordHash
	if len(suffix) > 6 {
		suffix = suffix[len(suffix)-6:]
	}
	ts := u.CreatedAt
	if u.UpdatedAt != nil {
		ts = *u.UpdatedAt
	}
	return tag + suffix + ts.UTC().Format("20060102150405")
}
