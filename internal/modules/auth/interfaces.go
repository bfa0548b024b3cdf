package auth

import (
	"context"
	"time"

	"usersystem/internal/domain"
	"usersystem/internal/mailer"
	"usersystem/internal/pkg/token"
)

// UserRepositoryInterface — only the methods the auth service uses.
type UserRepositoryInterface interface {
	Create(ctx context.Context, u *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Update(ctx context.Context, u *domain.User) error
}

// UserTokenRepositoryInterface — storage for refresh-token rows.
type UserTokenRepositoryInterface interface {
	Create(ctx context.Context, t *domain.UserToken) error
	GetByKey(ctx context.Context, tokenKey string) (*domain.UserToken, error)
	Rotate(ctx context.Context, id int64, tokenKey string, expiresAt time.Time) error
	DeleteByID(ctx context.Context, id int64) error
	ClearExpired(ctx context.Context, userID int64) error
}

// TokenServiceInterface signs and verifies session tokens.
type TokenServiceInterface interface {
	Issue(userID int64, purpose token.Purpose, tokenKey string, expiresAt time.Time) (string, error)
	Verify(tokenStr string, expected token.Purpose) (*token.Payload, error)
}

// MailDispatcher hands a message to the background delivery queue.
type MailDispatcher interface {
	Enqueue(msg mailer.Message)
}
