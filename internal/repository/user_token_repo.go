package repository

import (
	"context"
	"time"

	"usersystem/internal/domain"

	"gorm.io/gorm"
)

// UserTokenRepository provides DB access for persisted refresh tokens.
type UserTokenRepository struct {
	db *gorm.DB
}

func NewUserTokenRepository(db *gorm.DB) *UserTokenRepository {
	return &UserTokenRepository{db: db}
}

func (r *UserTokenRepository) Create(ctx context.Context, t *domain.UserToken) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *UserTokenRepository) GetByKey(ctx context.Context, tokenKey string) (*domain.UserToken, error) {
	var t domain.UserToken
	err := r.db.WithContext(ctx).Where("token_key = ?", tokenKey).First(&t).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &t, nil
}

// Rotate rewrites the row in place with a fresh key and expiry. Keeping
// the same row (rather than insert-new/delete-old) avoids orphaned rows
// when one of the two writes fails.
func (r *UserTokenRepository) Rotate(ctx context.Context, id int64, tokenKey string, expiresAt time.Time) error {
	return r.db.WithContext(ctx).Model(&domain.UserToken{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"token_key":  tokenKey,
			"expires_at": expiresAt,
		}).Error
}

func (r *UserTokenRepository) DeleteByID(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&domain.UserToken{}, id).Error
}

// ClearExpired deletes the given user's expired rows only. There is no
// global sweep on the request path; stale rows for other users wait for
// their owner's next login, refresh or logout.
func (r *UserTokenRepository) ClearExpired(ctx context.Context, userID int64) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).
		Where("user_id = ? AND expires_at < ?", userID, now).
		Delete(&domain.UserToken{}).Error
}
