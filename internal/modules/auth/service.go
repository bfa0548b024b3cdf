package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"usersystem/internal/config"
	"usersystem/internal/domain"
	"usersystem/internal/pkg/hashing"
	"usersystem/internal/pkg/token"
	"usersystem/internal/repository"
)

// Access keys are never persisted, so 50 bytes is plenty; refresh keys
// double that since a refresh token mints whole new sessions.
const (
	accessKeyBytes  = 50
	refreshKeyBytes = 100
)

// Service composes hashing, token issuance and refresh-token storage
// into the registration, session and password flows.
type Service struct {
	users  UserRepositoryInterface
	tokens UserTokenRepositoryInterface
	jwt    TokenServiceInterface
	mail   MailDispatcher
	cfg    *config.Config
}

func NewService(
	users UserRepositoryInterface,
	tokens UserTokenRepositoryInterface,
	jwt TokenServiceInterface,
	mail MailDispatcher,
	cfg *config.Config,
) *Service {
	return &Service{
		users:  users,
		tokens: tokens,
		jwt:    jwt,
		mail:   mail,
		cfg:    cfg,
	}
}

// IssuedToken is one signed token with its expiry, as returned to the
// client.
type IssuedToken struct {
	Token     string
	ExpiresAt time.Time
}

type TokenPair struct {
	Access  IssuedToken
	Refresh IssuedToken
}

// Register creates an inactive account and queues the verification
// email. Activation only ever happens through VerifyAccount.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*domain.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrEmailAlreadyExists
	}

	digest, err := hashing.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Email:        email,
		Name:         req.Name,
		PasswordHash: digest,
		IsActive:     false,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrEmailAlreadyExists
		}
		return nil, err
	}

	if err := s.sendVerificationEmail(user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login checks credentials and account state, persists a fresh
// refresh-token row and returns a signed access/refresh pair. The
// user's expired rows are swept as a side effect.
func (s *Service) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !hashing.Verify(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrAccountNotActive
	}
	if !user.IsVerified() {
		return nil, ErrAccountNotVerified
	}

	pair, refreshKey, refreshExp, err := s.issuePair(user.ID)
	if err != nil {
		return nil, err
	}

	row := &domain.UserToken{
		UserID:    user.ID,
		TokenKey:  refreshKey,
		ExpiresAt: refreshExp,
		Purpose:   string(token.PurposeRefresh),
	}
	if err := s.tokens.Create(ctx, row); err != nil {
		return nil, err
	}
	if err := s.tokens.ClearExpired(ctx, user.ID); err != nil {
		return nil, err
	}

	return pair, nil
}

// Refresh rotates the presented refresh token: the same row is
// rewritten with a new key and expiry, so the old key stops resolving.
// Two concurrent refreshes with the same token both pass validation and
// the last writer's key wins; the other caller's new refresh token goes
// stale silently.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	payload, err := s.jwt.Verify(refreshToken, token.PurposeRefresh)
	if err != nil {
		if errors.Is(err, token.ErrExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrUnauthorized
	}

	user, err := s.users.GetByID(ctx, payload.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}

	row, err := s.tokens.GetByKey(ctx, payload.TokenKey)
	if err != nil {
		// Covers forged keys and already-rotated tokens alike.
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}

	pair, refreshKey, refreshExp, err := s.issuePair(user.ID)
	if err != nil {
		return nil, err
	}

	if err := s.tokens.Rotate(ctx, row.ID, refreshKey, refreshExp); err != nil {
		return nil, err
	}
	if err := s.tokens.ClearExpired(ctx, user.ID); err != nil {
		return nil, err
	}

	return pair, nil
}

// Logout revokes the presented refresh token. An expired token means
// the session is already dead, so that case succeeds silently; an
// invalid token, wrong purpose or unknown key is rejected. Access
// tokens are not revocable and keep working until their own expiry.
func (s *Service) Logout(ctx context.Context, user *domain.User, refreshToken string) error {
	payload, err := s.jwt.Verify(refreshToken, token.PurposeRefresh)
	if err != nil {
		if errors.Is(err, token.ErrExpired) {
			return nil
		}
		return ErrUnauthorized
	}

	row, err := s.tokens.GetByKey(ctx, payload.TokenKey)
	if err != nil {
		// A valid signed refresh token always has a row unless it was
		// already revoked.
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUnauthorized
		}
		return err
	}

	if err := s.tokens.DeleteByID(ctx, row.ID); err != nil {
		return err
	}
	return s.tokens.ClearExpired(ctx, user.ID)
}

// VerifyAccount activates the account named in an emailed link. Every
// failure mode collapses into ErrInvalidLink so the endpoint leaks
// nothing about why a link stopped working.
func (s *Service) VerifyAccount(ctx context.Context, email, presented string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidLink
		}
		return err
	}

	if !CheckActionToken(user, s.cfg.VerifyAccountEmailContext, presented) {
		return ErrInvalidLink
	}

	now := time.Now().UTC()
	user.IsActive = true
	user.VerifiedAt = &now
	// Update moves UpdatedAt, which permanently invalidates this link.
	if err := s.users.Update(ctx, user); err != nil {
		return err
	}

	s.sendVerificationConfirmationEmail(user)
	return nil
}

// ResendVerification re-issues the activation email for a registered
// but not yet verified account.
func (s *Service) ResendVerification(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrEmailNotFound
		}
		return err
	}
	if user.IsActive || user.IsVerified() {
		return ErrAlreadyActive
	}
	return s.sendVerificationEmail(user)
}

// ForgotPassword emails a reset link. The account must be in a
// loginable state; an unverified account has nothing to reset into.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrEmailNotFound
		}
		return err
	}
	if !user.IsActive {
		return ErrAccountNotActive
	}
	if !user.IsVerified() {
		return ErrAccountNotVerified
	}
	return s.sendForgotPasswordEmail(user)
}

// ResetForgottenPassword validates the emailed reset token and stores
// the new password. Re-hashing moves UpdatedAt, so the token dies with
// its single use.
func (s *Service) ResetForgottenPassword(ctx context.Context, email, presented, newPassword string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrEmailNotFound
		}
		return err
	}
	if !user.IsActive {
		return ErrAccountNotActive
	}
	if !user.IsVerified() {
		return ErrAccountNotVerified
	}

	if !CheckActionToken(user, s.cfg.ForgotPasswordEmailContext, presented) {
		return ErrInvalidLink
	}

	if err := s.setPassword(ctx, user, newPassword); err != nil {
		return err
	}
	s.sendPasswordResetConfirmationEmail(user)
	return nil
}

// ResetPassword changes the password of an already authenticated user.
func (s *Service) ResetPassword(ctx context.Context, user *domain.User, newPassword string) error {
	if err := s.setPassword(ctx, user, newPassword); err != nil {
		return err
	}
	s.sendPasswordResetConfirmationEmail(user)
	return nil
}

func (s *Service) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *Service) setPassword(ctx context.Context, user *domain.User, newPassword string) error {
	digest, err := hashing.Hash(newPassword)
	if err != nil {
		return err
	}
	user.PasswordHash = digest
	return s.users.Update(ctx, user)
}

// issuePair mints a signed access/refresh pair and returns the refresh
// key material for persistence.
func (s *Service) issuePair(userID int64) (*TokenPair, string, time.Time, error) {
	now := time.Now().UTC()

	accessKey, err := token.RandomKey(accessKeyBytes)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	refreshKey, err := token.RandomKey(refreshKeyBytes)
	if err != nil {
		return nil, "", time.Time{}, err
	}

	accessExp := now.Add(s.cfg.AccessTokenTTL)
	refreshExp := now.Add(s.cfg.RefreshTokenTTL)

	accessToken, err := s.jwt.Issue(userID, token.PurposeAccess, accessKey, accessExp)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	refreshToken, err := s.jwt.Issue(userID, token.PurposeRefresh, refreshKey, refreshExp)
	if err != nil {
		return nil, "", time.Time{}, err
	}

	pair := &TokenPair{
		Access:  IssuedToken{Token: accessToken, ExpiresAt: accessExp},
		Refresh: IssuedToken{Token: refreshToken, ExpiresAt: refreshExp},
	}
	return pair, refreshKey, refreshExp, nil
}
