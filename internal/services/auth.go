package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"taskify/backend/internal/auth"
	"taskify/backend/internal/logging"
	"taskify/backend/internal/models"
	"taskify/backend/internal/repositories"
)

type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	Delete(ctx context.Context, id string) error
}

// RevocationStore remembers refresh token ids that were logged out.
type RevocationStore interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type AuthService interface {
	Register(ctx context.Context, req RegistrationRequest) (*AuthResult, error)
	Login(ctx context.Context, req LoginRequest) (*AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error)
	Logout(ctx context.Context, refreshToken string) error
	CurrentUser(ctx context.Context, accessToken string) (*models.User, error)
	DeleteAccount(ctx context.Context, user models.CurrentUser) error
	Greet(ctx context.Context, user models.CurrentUser) (string, error)
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type AuthResult struct {
	User   *models.User
	Tokens *auth.TokenPair
}

type RefreshResult struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type AuthServiceImpl struct {
	users      UserStore
	tokens     *auth.TokenManager
	revoked    RevocationStore
	bcryptCost int
	logger     logrus.FieldLogger
}

func NewAuthService(users UserStore, tokens *auth.TokenManager, revoked RevocationStore, bcryptCost int, logger logrus.FieldLogger) *AuthServiceImpl {
	if logger == nil {
		logger = logging.Discard()
	}
	return &AuthServiceImpl{
		users:      users,
		tokens:     tokens,
		revoked:    revoked,
		bcryptCost: bcryptCost,
		logger:     logger,
	}
}

func (s *AuthServiceImpl) Login(ctx context.Context, req LoginRequest) (*AuthResult, error) {
	user, err := s.users.FindByEmail(ctx, models.NormalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, newError(ErrUnauthorized, "invalid email", nil)
		}
		s.logger.WithError(err).Error("failed to look up user for login")
		return nil, newError(ErrPersistence, "Failed to log in", err)
	}

	// Accounts registered without a password cannot log in with one.
	if user.Password == nil || !auth.VerifyPassword(*user.Password, req.Password) {
		s.logger.WithField("user_id", user.ID).Warn("login rejected: bad password")
		return nil, newError(ErrUnauthorized, "invalid password", nil)
	}

	pair, err := s.tokens.IssuePair(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issue tokens: %w", err)
	}
	s.logger.WithField("user_id", user.ID).Info("user logged in")
	return &AuthResult{User: user, Tokens: pair}, nil
}

func (s *AuthServiceImpl) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	claims, err := s.verifyRefresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	access, _, err := s.tokens.Issue(claims.UserID(), auth.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	return &RefreshResult{
		AccessToken: access,
		TokenType:   "bearer",
		ExpiresIn:   int64(s.tokens.AccessTTL().Seconds()),
	}, nil
}

// Logout revokes the refresh token until it would have expired anyway.
func (s *AuthServiceImpl) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.verifyRefresh(ctx, refreshToken)
	if err != nil {
		return err
	}

	if s.revoked == nil {
		return newError(ErrPersistence, "Failed to log out", errors.New("no revocation store configured"))
	}
	ttl := time.Until(claims.ExpiresAt.Time)
	if err := s.revoked.Revoke(ctx, claims.ID, ttl); err != nil {
		s.logger.WithError(err).WithField("user_id", claims.UserID()).Error("failed to revoke refresh token")
		return newError(ErrPersistence, "Failed to log out", err)
	}
	s.logger.WithField("user_id", claims.UserID()).Info("user logged out")
	return nil
}

func (s *AuthServiceImpl) verifyRefresh(ctx context.Context, refreshToken string) (*auth.Claims, error) {
	claims, err := s.tokens.Parse(refreshToken, auth.RefreshToken)
	if err != nil {
		return nil, newError(ErrUnauthorized, "Invalid refresh token", err)
	}

	if s.revoked != nil {
		revoked, err := s.revoked.IsRevoked(ctx, claims.ID)
		if err != nil {
			s.logger.WithError(err).Error("revocation lookup failed")
			return nil, newError(ErrUnauthorized, "Invalid refresh token", err)
		}
		if revoked {
			return nil, newError(ErrUnauthorized, "Refresh token has been revoked", nil)
		}
	}
	return claims, nil
}

// CurrentUser resolves a bearer access token to the stored user.
func (s *AuthServiceImpl) CurrentUser(ctx context.Context, accessToken string) (*models.User, error) {
	claims, err := s.tokens.Parse(accessToken, auth.AccessToken)
	if err != nil {
		return nil, newError(ErrUnauthorized, "Could not validate credentials", err)
	}

	user, err := s.users.FindByID(ctx, claims.UserID())
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, newError(ErrUnauthorized, "Could not validate credentials", nil)
		}
		return nil, newError(ErrPersistence, "Failed to load user", err)
	}
	return user, nil
}

func (s *AuthServiceImpl) DeleteAccount(ctx context.Context, user models.CurrentUser) error {
	if err := s.users.Delete(ctx, user.ID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return newError(ErrNotFound, "User not found", nil)
		}
		s.logger.WithError(err).WithField("user_id", user.ID).Error("failed to delete account")
		return newError(ErrPersistence, "Failed to delete account", err)
	}
	s.logger.WithField("user_id", user.ID).Info("account deleted")
	return nil
}

func (s *AuthServiceImpl) Greet(ctx context.Context, user models.CurrentUser) (string, error) {
	stored, err := s.users.FindByID(ctx, user.ID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return "", newError(ErrNotFound, "User not found", nil)
		}
		return "", newError(ErrPersistence, "Failed to load user", err)
	}
	return fmt.Sprintf("Hello, %s!", stored.DisplayName()), nil
}
