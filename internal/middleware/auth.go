package middleware

import (
	"context"
	"errors"
	"strings"

	"usersystem/internal/domain"
	"usersystem/internal/pkg/response"
	"usersystem/internal/pkg/token"

	"github.com/gin-gonic/gin"
)

// ContextUserKey is where Auth stores the authenticated *domain.User.
const ContextUserKey = "user"

// ContextUserIDKey is where Auth stores the authenticated user id.
const ContextUserIDKey = "user_id"

type tokenVerifier interface {
	Verify(tokenStr string, expected token.Purpose) (*token.Payload, error)
}

type userProvider interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
}

// Auth guards protected routes with a bearer access token. A refresh
// token presented here fails the purpose check and is rejected just
// like a forged token; an expired access token gets its own message so
// clients know to refresh.
func Auth(tokens tokenVerifier, users userProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if h == "" {
			response.Unauthorized(c, "Missing Authorization header")
			return
		}
		if !strings.HasPrefix(h, "Bearer ") {
			response.Unauthorized(c, "Invalid Authorization header")
			return
		}
		tokenStr := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
		if tokenStr == "" {
			response.Unauthorized(c, "Empty token")
			return
		}

		payload, err := tokens.Verify(tokenStr, token.PurposeAccess)
		if err != nil {
			if errors.Is(err, token.ErrExpired) {
				response.Unauthorized(c, "Token expired")
				return
			}
			response.Unauthorized(c, "Not authorised")
			return
		}

		user, err := users.GetByID(c.Request.Context(), payload.UserID)
		if err != nil {
			response.Unauthorized(c, "Not authorised")
			return
		}

		c.Set(ContextUserIDKey, user.ID)
		c.Set(ContextUserKey, user)
		c.Next()
	}
}

// CurrentUser returns the user placed by Auth, or nil outside it.
func CurrentUser(c *gin.Context) *domain.User {
	v, ok := c.Get(ContextUserKey)
	if !ok {
		return nil
	}
	user, ok := v.(*domain.User)
	if !ok {
		return nil
	}
	return user
}
