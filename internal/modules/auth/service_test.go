package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"usersystem/internal/config"
	"usersystem/internal/domain"
	"usersystem/internal/mailer"
	"usersystem/internal/pkg/hashing"
	"usersystem/internal/pkg/token"
	"usersystem/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) Create(ctx context.Context, u *domain.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *mockUserRepo) Update(ctx context.Context, u *domain.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

type mockTokenRepo struct {
	mock.Mock
}

func (m *mockTokenRepo) Create(ctx context.Context, t *domain.UserToken) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *mockTokenRepo) GetByKey(ctx context.Context, tokenKey string) (*domain.UserToken, error) {
	args := m.Called(ctx, tokenKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.UserToken), args.Error(1)
}

func (m *mockTokenRepo) Rotate(ctx context.Context, id int64, tokenKey string, expiresAt time.Time) error {
	args := m.Called(ctx, id, tokenKey, expiresAt)
	return args.Error(0)
}

func (m *mockTokenRepo) DeleteByID(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockTokenRepo) ClearExpired(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

type mockMail struct {
	mu       sync.Mutex
	messages []mailer.Message
}

func (m *mockMail) Enqueue(msg mailer.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
}

func (m *mockMail) all() []mailer.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mailer.Message(nil), m.messages...)
}

func testConfig() *config.Config {
	return &config.Config{
		AppName:                    "User System",
		AppEnv:                     "dev",
		JWTSecret:                  "service-test-secret",
		JWTAlgorithm:               "HS256",
		AccessTokenTTL:             3 * time.Minute,
		RefreshTokenTTL:            15 * time.Minute,
		FrontendHost:               "http://127.0.0.1:5500",
		VerifyAccountURL:           "/auth/account-verify",
		ForgotPasswordResetURL:     "/forgot-password-reset",
		VerifyAccountEmailContext:  "verify-account",
		ForgotPasswordEmailContext: "password-reset",
	}
}

func newTestService(t *testing.T) (*Service, *mockUserRepo, *mockTokenRepo, *mockMail) {
	t.Helper()
	users := new(mockUserRepo)
	tokens := new(mockTokenRepo)
	mail := &mockMail{}
	jwtSvc, err := token.New("service-test-secret", "HS256")
	require.NoError(t, err)
	return NewService(users, tokens, jwtSvc, mail, testConfig()), users, tokens, mail
}

func activeUser(t *testing.T, password string) *domain.User {
	t.Helper()
	digest, err := hashing.Hash(password)
	require.NoError(t, err)
	verified := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	return &domain.User{
		ID:           1,
		Email:        "user@example.com",
		Name:         "Test User",
		PasswordHash: digest,
		IsActive:     true,
		VerifiedAt:   &verified,
		CreatedAt:    time.Date(2024, 5, 1, 7, 0, 0, 0, time.UTC),
	}
}

func TestRegisterSuccess(t *testing.T) {
	svc, users, _, mail := newTestService(t)

	users.On("ExistsByEmail", mock.Anything, "new@example.com").Return(false, nil)
	users.On("Create", mock.Anything, mock.MatchedBy(func(u *domain.User) bool {
		return u.Email == "new@example.com" && !u.IsActive && u.VerifiedAt == nil && u.PasswordHash != "password123"
	})).Return(nil)

	user, err := svc.Register(context.Background(), RegisterRequest{
		Name:     "New User",
		Email:    "New@Example.com",
		Password: "password123",
	})
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", user.Email)
	assert.False(t, user.IsActive)

	msgs := mail.all()
	require.Len(t, msgs, 1)
	assert.Equal(t, []string{"new@example.com"}, msgs[0].To)
	assert.Equal(t, "users/account-verification.html", msgs[0].Template)
	assert.Contains(t, msgs[0].Context["activate_url"], "http://127.0.0.1:5500/auth/account-verify?token=")

	users.AssertExpectations(t)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, users, _, mail := newTestService(t)

	users.On("ExistsByEmail", mock.Anything, "taken@example.com").Return(true, nil)

	_, err := svc.Register(context.Background(), RegisterRequest{
		Name:     "X",
		Email:    "taken@example.com",
		Password: "password123",
	})
	assert.ErrorIs(t, err, ErrEmailAlreadyExists)
	assert.Empty(t, mail.all())
}

func TestRegisterDuplicateRace(t *testing.T) {
	svc, users, _, _ := newTestService(t)

	// Pre-check passes but the insert loses the race on the unique
	// index.
	users.On("ExistsByEmail", mock.Anything, "taken@example.com").Return(false, nil)
	users.On("Create", mock.Anything, mock.Anything).Return(repository.ErrDuplicateEmail)

	_, err := svc.Register(context.Background(), RegisterRequest{
		Name:     "X",
		Email:    "taken@example.com",
		Password: "password123",
	})
	assert.ErrorIs(t, err, ErrEmailAlreadyExists)
}

func TestLoginSuccess(t *testing.T) {
	svc, users, tokens, _ := newTestService(t)
	user := activeUser(t, "password123")

	users.On("GetByEmail", mock.Anything, "user@example.com").Return(user, nil)
	var storedKey string
	tokens.On("Create", mock.Anything, mock.MatchedBy(func(row *domain.UserToken) bool {
		storedKey = row.TokenKey
		return row.UserID == user.ID && row.Purpose == "rt" && row.ExpiresAt.After(time.Now())
	})).Return(nil)
	tokens.On("ClearExpired", mock.Anything, user.ID).Return(nil)

	pair, err := svc.Login(context.Background(), "user@example.com", "password123")
	require.NoError(t, err)
	require.NotNil(t, pair)
	assert.NotEqual(t, pair.Access.Token, pair.Refresh.Token)
	assert.True(t, pair.Refresh.ExpiresAt.After(pair.Access.ExpiresAt))

	// The signed refresh token carries the persisted row's key.
	jwtSvc, err := token.New("service-test-secret", "HS256")
	require.NoError(t, err)
	payload, err := jwtSvc.Verify(pair.Refresh.Token, token.PurposeRefresh)
	require.NoError(t, err)
	assert.Equal(t, storedKey, payload.TokenKey)
	assert.Equal(t, user.ID, payload.UserID)

	tokens.AssertExpectations(t)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, users, _, _ := newTestService(t)
	user := activeUser(t, "password123")

	users.On("GetByEmail", mock.Anything, "user@example.com").Return(user, nil)

	_, err := svc.Login(context.Background(), "user@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginUnknownEmail(t *testing.T) {
	svc, users, _, _ := newTestService(t)

	users.On("GetByEmail", mock.Anything, "ghost@example.com").Return(nil, repository.ErrNotFound)

	_, err := svc.Login(context.Background(), "ghost@example.com", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginInactiveAccount(t *testing.T) {
	svc, users, _, _ := newTestService(t)
	user := activeUser(t, "password123")
	user.IsActive = false

	users.On("GetByEmail", mock.Anything, "user@example.com").Return(user, nil)

	_, err := svc.Login(context.Background(), "user@example.com", "password123")
	assert.ErrorIs(t, err, ErrAccountNotActive)
}

func TestLoginUnverifiedAccount(t *testing.T) {
	svc, users, _, _ := newTestService(t)
	user := activeUser(t, "password123")
	user.VerifiedAt = nil

	users.On("GetByEmail", mock.Anything, "user@example.com").Return(user, nil)

	_, err := svc.Login(context.Background(), "user@example.com", "password123")
	assert.ErrorIs(t, err, ErrAccountNotVerified)
}

func TestRefreshRotatesSameRow(t *testing.T) {
	svc, users, tokens, _ := newTestService(t)
	user := activeUser(t, "password123")

	jwtSvc, err := token.New("service-test-secret", "HS256")
	require.NoError(t, err)
	presented, err := jwtSvc.Issue(user.ID, token.PurposeRefresh, "current-key", time.Now().Add(10*time.Minute))
	require.NoError(t, err)

	row := &domain.UserToken{ID: 55, UserID: user.ID, TokenKey: "current-key", Purpose: "rt"}

	users.On("GetByID", mock.Anything, user.ID).Return(user, nil)
	tokens.On("GetByKey", mock.Anything, "current-key").Return(row, nil)
	tokens.On("Rotate", mock.Anything, int64(55), mock.MatchedBy(func(key string) bool {
		return key != "" && key != "current-key"
	}), mock.Anything).Return(nil)
	tokens.On("ClearExpired", mock.Anything, user.ID).Return(nil)

	pair, err := svc.Refresh(context.Background(), presented)
	require.NoError(t, err)

	// The returned refresh token must carry a different key than the
	// presented one.
	payload, err := jwtSvc.Verify(pair.Refresh.Token, token.PurposeRefresh)
	require.NoError(t, err)
	assert.NotEqual(t, "current-key", payload.TokenKey)

	tokens.AssertExpectations(t)
}

func TestConcurrentRefreshLastWriterWins(t *testing.T) {
	svc, users, tokens, _ := newTestService(t)
	user := activeUser(t, "password123")

	jwtSvc, err := token.New("service-test-secret", "HS256")
	require.NoError(t, err)
	shared, err := jwtSvc.Issue(user.ID, token.PurposeRefresh, "shared-key", time.Now().Add(10*time.Minute))
	require.NoError(t, err)

	row := &domain.UserToken{ID: 9, UserID: user.ID, TokenKey: "shared-key", Purpose: "rt"}

	users.On("GetByID", mock.Anything, user.ID).Return(user, nil)
	// Two clients race the same token: both read the row before either
	// rotation lands, so both pass validation.
	tokens.On("GetByKey", mock.Anything, "shared-key").Return(row, nil).Twice()
	var rotatedKeys []string
	tokens.On("Rotate", mock.Anything, int64(9), mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			rotatedKeys = append(rotatedKeys, args.String(2))
		}).Return(nil)
	tokens.On("ClearExpired", mock.Anything, user.ID).Return(nil)

	pairA, err := svc.Refresh(context.Background(), shared)
	require.NoError(t, err)
	pairB, err := svc.Refresh(context.Background(), shared)
	require.NoError(t, err)

	// Rotation is an unconditional rewrite of the row, so it ran once per
	// caller and the later write is the one that survives.
	require.Len(t, rotatedKeys, 2)

	payloadA, err := jwtSvc.Verify(pairA.Refresh.Token, token.PurposeRefresh)
	require.NoError(t, err)
	payloadB, err := jwtSvc.Verify(pairB.Refresh.Token, token.PurposeRefresh)
	require.NoError(t, err)

	// The second caller's token carries the stored key and stays usable;
	// the first caller's freshly minted token is already stale.
	assert.Equal(t, rotatedKeys[1], payloadB.TokenKey)
	assert.Equal(t, rotatedKeys[0], payloadA.TokenKey)
	assert.NotEqual(t, payloadB.TokenKey, payloadA.TokenKey)

	tokens.AssertExpectations(t)
}

func TestRefreshUnknownKeyUnauthorized(t *testing.T) {
	svc, users, tokens, _ := newTestService(t)
	user := activeUser(t, "password123")

	jwtSvc, err := token.New("service-test-secret", "HS256")
	require.NoError(t, err)
	presented, err := jwtSvc.Issue(user.ID, token.PurposeRefresh, "rotated-away", time.Now().Add(10*time.Minute))
	require.NoError(t, err)

	users.On("GetByID", mock.Anything, user.ID).Return(user, nil)
	tokens.On("GetByKey", mock.Anything, "rotated-away").Return(nil, repository.ErrNotFound)

	_, err = svc.Refresh(context.Background(), presented)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestRefreshExpiredToken(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	jwtSvc, err := token.New("service-test-secret", "HS256")
	require.NoError(t, err)
	expired, err := jwtSvc.Issue(1, token.PurposeRefresh, "k", time.Now().Add(-time.Minute))
	require.NoError(t, err)

	_, err = svc.Refresh(context.Background(), expired)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	jwtSvc, err := token.New("service-test-secret", "HS256")
	require.NoError(t, err)
	accessTok, err := jwtSvc.Issue(1, token.PurposeAccess, "k", time.Now().Add(time.Minute))
	require.NoError(t, err)

	_, err = svc.Refresh(context.Background(), accessTok)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestLogoutDeletesRow(t *testing.T) {
	svc, _, tokens, _ := newTestService(t)
	user := activeUser(t, "password123")

	jwtSvc, err := token.New("service-test-secret", "HS256")
	require.NoError(t, err)
	presented, err := jwtSvc.Issue(user.ID, token.PurposeRefresh, "live-key", time.Now().Add(10*time.Minute))
	require.NoError(t, err)

	row := &domain.UserToken{ID: 77, UserID: user.ID, TokenKey: "live-key", Purpose: "rt"}
	tokens.On("GetByKey", mock.Anything, "live-key").Return(row, nil)
	tokens.On("DeleteByID", mock.Anything, int64(77)).Return(nil)
	tokens.On("ClearExpired", mock.Anything, user.ID).Return(nil)

	require.NoError(t, svc.Logout(context.Background(), user, presented))
	tokens.AssertExpectations(t)
}

func TestLogoutExpiredTokenIsSilentSuccess(t *testing.T) {
	svc, _, tokens, _ := newTestService(t)
	user := activeUser(t, "password123")

	jwtSvc, err := token.New("service-test-secret", "HS256")
	require.NoError(t, err)
	expired, err := jwtSvc.Issue(user.ID, token.PurposeRefresh, "k", time.Now().Add(-time.Minute))
	require.NoError(t, err)

	// Already dead: no storage calls, no error.
	assert.NoError(t, svc.Logout(context.Background(), user, expired))
	tokens.AssertNotCalled(t, "GetByKey", mock.Anything, mock.Anything)
	tokens.AssertNotCalled(t, "DeleteByID", mock.Anything, mock.Anything)
}

func TestLogoutInvalidTokenUnauthorized(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	user := activeUser(t, "password123")

	err := svc.Logout(context.Background(), user, "garbage-token")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestLogoutAccessTokenUnauthorized(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	user := activeUser(t, "password123")

	jwtSvc, err := token.New("service-test-secret", "HS256")
	require.NoError(t, err)
	accessTok, err := jwtSvc.Issue(user.ID, token.PurposeAccess, "k", time.Now().Add(time.Minute))
	require.NoError(t, err)

	err = svc.Logout(context.Background(), user, accessTok)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestLogoutMissingRowUnauthorized(t *testing.T) {
	svc, _, tokens, _ := newTestService(t)
	user := activeUser(t, "password123")

	jwtSvc, err := token.New("service-test-secret", "HS256")
	require.NoError(t, err)
	presented, err := jwtSvc.Issue(user.ID, token.PurposeRefresh, "revoked-key", time.Now().Add(time.Minute))
	require.NoError(t, err)

	tokens.On("GetByKey", mock.Anything, "revoked-key").Return(nil, repository.ErrNotFound)

	err = svc.Logout(context.Background(), user, presented)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestVerifyAccountSuccess(t *testing.T) {
	svc, users, _, mail := newTestService(t)
	user := activeUser(t, "password123")
	user.IsActive = false
	user.VerifiedAt = nil

	actionToken, err := IssueActionToken(user, "verify-account")
	require.NoError(t, err)

	users.On("GetByEmail", mock.Anything, "user@example.com").Return(user, nil)
	users.On("Update", mock.Anything, mock.MatchedBy(func(u *domain.User) bool {
		return u.IsActive && u.VerifiedAt != nil
	})).Return(nil)

	require.NoError(t, svc.VerifyAccount(context.Background(), "user@example.com", actionToken))

	msgs := mail.all()
	require.Len(t, msgs, 1)
	assert.Equal(t, "users/account-verification-confirmation.html", msgs[0].Template)
	users.AssertExpectations(t)
}

func TestVerifyAccountBadToken(t *testing.T) {
	svc, users, _, _ := newTestService(t)
	user := activeUser(t, "password123")
	user.IsActive = false
	user.VerifiedAt = nil

	users.On("GetByEmail", mock.Anything, "user@example.com").Return(user, nil)

	err := svc.VerifyAccount(context.Background(), "user@example.com", "forged")
	assert.ErrorIs(t, err, ErrInvalidLink)
	users.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestVerifyAccountUnknownEmail(t *testing.T) {
	svc, users, _, _ := newTestService(t)

	users.On("GetByEmail", mock.Anything, "ghost@example.com").Return(nil, repository.ErrNotFound)

	err := svc.VerifyAccount(context.Background(), "ghost@example.com", "whatever")
	assert.ErrorIs(t, err, ErrInvalidLink)
}

func TestResendVerificationAlreadyActive(t *testing.T) {
	svc, users, _, _ := newTestService(t)
	user := activeUser(t, "password123")

	users.On("GetByEmail", mock.Anything, "user@example.com").Return(user, nil)

	err := svc.ResendVerification(context.Background(), "user@example.com")
	assert.ErrorIs(t, err, ErrAlreadyActive)
}

func TestForgotPasswordGates(t *testing.T) {
	svc, users, _, mail := newTestService(t)

	inactive := activeUser(t, "password123")
	inactive.IsActive = false
	users.On("GetByEmail", mock.Anything, "user@example.com").Return(inactive, nil).Once()
	assert.ErrorIs(t, svc.ForgotPassword(context.Background(), "user@example.com"), ErrAccountNotActive)

	unverified := activeUser(t, "password123")
	unverified.VerifiedAt = nil
	users.On("GetByEmail", mock.Anything, "user@example.com").Return(unverified, nil).Once()
	assert.ErrorIs(t, svc.ForgotPassword(context.Background(), "user@example.com"), ErrAccountNotVerified)

	assert.Empty(t, mail.all())
}

func TestForgotPasswordSendsResetLink(t *testing.T) {
	svc, users, _, mail := newTestService(t)
	user := activeUser(t, "password123")

	users.On("GetByEmail", mock.Anything, "user@example.com").Return(user, nil)

	require.NoError(t, svc.ForgotPassword(context.Background(), "user@example.com"))

	msgs := mail.all()
	require.Len(t, msgs, 1)
	assert.Equal(t, "users/forgot-password-reset.html", msgs[0].Template)
	assert.Contains(t, msgs[0].Context["reset_url"], "/forgot-password-reset?token=")
}

func TestResetForgottenPassword(t *testing.T) {
	svc, users, _, mail := newTestService(t)
	user := activeUser(t, "old-password")
	oldHash := user.PasswordHash

	actionToken, err := IssueActionToken(user, "password-reset")
	require.NoError(t, err)

	users.On("GetByEmail", mock.Anything, "user@example.com").Return(user, nil)
	users.On("Update", mock.Anything, mock.MatchedBy(func(u *domain.User) bool {
		return u.PasswordHash != oldHash
	})).Return(nil)

	err = svc.ResetForgottenPassword(context.Background(), "user@example.com", actionToken, "new-password-1")
	require.NoError(t, err)
	assert.True(t, hashing.Verify("new-password-1", user.PasswordHash))

	msgs := mail.all()
	require.Len(t, msgs, 1)
	assert.Equal(t, "users/password-reset.html", msgs[0].Template)
}

func TestResetForgottenPasswordBadToken(t *testing.T) {
	svc, users, _, _ := newTestService(t)
	user := activeUser(t, "old-password")

	users.On("GetByEmail", mock.Anything, "user@example.com").Return(user, nil)

	err := svc.ResetForgottenPassword(context.Background(), "user@example.com", "forged", "new-password-1")
	assert.ErrorIs(t, err, ErrInvalidLink)
	users.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}
