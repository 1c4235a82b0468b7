package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskify/backend/internal/auth"
	"taskify/backend/internal/cache"
	"taskify/backend/internal/database"
	"taskify/backend/internal/models"
	"taskify/backend/internal/repositories"
	"taskify/backend/internal/services"
)

type authFixture struct {
	service *services.AuthServiceImpl
	tokens  *auth.TokenManager
	users   *repositories.UserRepository
	tasks   *repositories.TaskRepository
	redis   *miniredis.Miniredis
}

func setupAuth(t *testing.T) *authFixture {
	t.Helper()

	db, err := database.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	mr := miniredis.RunT(t)
	cfg := cache.DefaultCacheConfig()
	cfg.Addr = mr.Addr()
	cfg.MaxRetries = -1
	redisCache := cache.NewRedisCache(cfg)
	t.Cleanup(func() { redisCache.Close() })

	tokens := auth.NewTokenManager("test-secret", "taskify-backend", 15*time.Minute, time.Hour)
	users := repositories.NewUserRepository(db)
	return &authFixture{
		service: services.NewAuthService(users, tokens, cache.NewRevocationStore(redisCache), 4, nil),
		tokens:  tokens,
		users:   users,
		tasks:   repositories.NewTaskRepository(db),
		redis:   mr,
	}
}

func register(t *testing.T, f *authFixture, email, username, password string) *services.AuthResult {
	t.Helper()

	result, err := f.service.Register(context.Background(), services.RegistrationRequest{
		Email:    email,
		Username: username,
		Password: &password,
	})
	require.NoError(t, err)
	return result
}

func assertKind(t *testing.T, err error, kind error) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, errors.Is(err, kind), "expected %v, got %v", kind, err)
}

func TestAuthService_RegisterAndLogin(t *testing.T) {
	f := setupAuth(t)

	registered := register(t, f, "ada@example.com", "ada", "correct horse")
	assert.NotEmpty(t, registered.User.ID)
	require.NotNil(t, registered.User.Password)
	assert.NotEqual(t, "correct horse", *registered.User.Password)
	assert.NotEmpty(t, registered.Tokens.AccessToken)
	assert.NotEmpty(t, registered.Tokens.RefreshToken)

	loggedIn, err := f.service.Login(context.Background(), services.LoginRequest{
		Email:    "ada@example.com",
		Password: "correct horse",
	})
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, loggedIn.User.ID)

	claims, err := f.tokens.Parse(loggedIn.Tokens.AccessToken, auth.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, claims.UserID())
}

func TestAuthService_RegisterConflicts(t *testing.T) {
	f := setupAuth(t)
	register(t, f, "ada@example.com", "ada", "pw")

	_, err := f.service.Register(context.Background(), services.RegistrationRequest{Email: "ada@example.com", Username: "other"})
	assertKind(t, err, services.ErrConflict)
	assert.Equal(t, "email already exists", services.Detail(err))

	_, err = f.service.Register(context.Background(), services.RegistrationRequest{Email: "new@example.com", Username: "ada"})
	assertKind(t, err, services.ErrConflict)
	assert.Equal(t, "username already exists", services.Detail(err))
}

func TestAuthService_LoginFailures(t *testing.T) {
	f := setupAuth(t)
	register(t, f, "ada@example.com", "ada", "pw")

	_, err := f.service.Register(context.Background(), services.RegistrationRequest{Email: "nopw@example.com", Username: "nopw"})
	require.NoError(t, err)

	tests := []struct {
		name   string
		req    services.LoginRequest
		detail string
	}{
		{"unknown email", services.LoginRequest{Email: "who@example.com", Password: "pw"}, "invalid email"},
		{"wrong password", services.LoginRequest{Email: "ada@example.com", Password: "nope"}, "invalid password"},
		{"account without password", services.LoginRequest{Email: "nopw@example.com", Password: "pw"}, "invalid password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.Login(context.Background(), tt.req)
			assertKind(t, err, services.ErrUnauthorized)
			assert.Equal(t, tt.detail, services.Detail(err))
		})
	}
}

func TestAuthService_RefreshAndLogout(t *testing.T) {
	f := setupAuth(t)
	result := register(t, f, "ada@example.com", "ada", "pw")
	ctx := context.Background()

	refreshed, err := f.service.Refresh(ctx, result.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "bearer", refreshed.TokenType)
	_, err = f.tokens.Parse(refreshed.AccessToken, auth.AccessToken)
	require.NoError(t, err)

	_, err = f.service.Refresh(ctx, result.Tokens.AccessToken)
	assertKind(t, err, services.ErrUnauthorized)

	require.NoError(t, f.service.Logout(ctx, result.Tokens.RefreshToken))

	_, err = f.service.Refresh(ctx, result.Tokens.RefreshToken)
	assertKind(t, err, services.ErrUnauthorized)
	assert.Equal(t, "Refresh token has been revoked", services.Detail(err))
}

func TestAuthService_RefreshFailsClosedWhenRedisDown(t *testing.T) {
	f := setupAuth(t)
	result := register(t, f, "ada@example.com", "ada", "pw")
	f.redis.Close()

	_, err := f.service.Refresh(context.Background(), result.Tokens.RefreshToken)
	assertKind(t, err, services.ErrUnauthorized)
}

func TestAuthService_CurrentUser(t *testing.T) {
	f := setupAuth(t)
	result := register(t, f, "ada@example.com", "ada", "pw")
	ctx := context.Background()

	user, err := f.service.CurrentUser(ctx, result.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, models.CurrentUser{ID: result.User.ID, Email: "ada@example.com"}, user.Identity())

	_, err = f.service.CurrentUser(ctx, result.Tokens.RefreshToken)
	assertKind(t, err, services.ErrUnauthorized)

	_, err = f.service.CurrentUser(ctx, "garbage")
	assertKind(t, err, services.ErrUnauthorized)

	orphan, _, err := f.tokens.Issue("no-such-user", auth.AccessToken)
	require.NoError(t, err)
	_, err = f.service.CurrentUser(ctx, orphan)
	assertKind(t, err, services.ErrUnauthorized)
}

func TestAuthService_Greet(t *testing.T) {
	f := setupAuth(t)
	result := register(t, f, "ada@example.com", "ada", "pw")

	greeting, err := f.service.Greet(context.Background(), result.User.Identity())
	require.NoError(t, err)
	assert.Equal(t, "Hello, ada!", greeting)
}

func TestAuthService_DeleteAccountCascades(t *testing.T) {
	f := setupAuth(t)
	ada := register(t, f, "ada@example.com", "ada", "pw")
	bob := register(t, f, "bob@example.com", "bob", "pw")
	ctx := context.Background()

	due := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	own := &models.Task{Title: "ada's", DueDate: due, CreatedBy: ada.User.ID}
	assigned := &models.Task{Title: "for ada", DueDate: due, CreatedBy: bob.User.ID, AssignedTo: strPtr("ada@example.com")}
	require.NoError(t, f.tasks.Create(ctx, own))
	require.NoError(t, f.tasks.Create(ctx, assigned))

	require.NoError(t, f.service.DeleteAccount(ctx, ada.User.Identity()))

	_, err := f.tasks.FindByID(ctx, own.ID)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	_, err = f.tasks.FindByID(ctx, assigned.ID)
	assert.NoError(t, err)

	_, err = f.service.CurrentUser(ctx, ada.Tokens.AccessToken)
	assertKind(t, err, services.ErrUnauthorized)

	err = f.service.DeleteAccount(ctx, ada.User.Identity())
	assertKind(t, err, services.ErrNotFound)
}
