package services

import (
	"context"
	"errors"
	"fmt"

	"taskify/backend/internal/auth"
	"taskify/backend/internal/models"
	"taskify/backend/internal/repositories"
)

type RegistrationRequest struct {
	Email    string  `json:"email" binding:"required,email"`
	Username string  `json:"username" binding:"required,max=70"`
	Password *string `json:"password"`
}

func (s *AuthServiceImpl) Register(ctx context.Context, req RegistrationRequest) (*AuthResult, error) {
	req.Email = models.NormalizeEmail(req.Email)
	if _, err := s.users.FindByEmail(ctx, req.Email); err == nil {
		return nil, newError(ErrConflict, "email already exists", nil)
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return nil, newError(ErrPersistence, "Failed to register user", err)
	}

	if _, err := s.users.FindByUsername(ctx, req.Username); err == nil {
		return nil, newError(ErrConflict, "username already exists", nil)
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return nil, newError(ErrPersistence, "Failed to register user", err)
	}

	username := req.Username
	user := &models.User{Email: req.Email, Username: &username}
	if req.Password != nil && *req.Password != "" {
		hashed, err := auth.HashPassword(*req.Password, s.bcryptCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		user.Password = &hashed
	}

	if err := s.users.Create(ctx, user); err != nil {
		// Lost a race with a concurrent registration.
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, newError(ErrConflict, "email already exists", nil)
		}
		s.logger.WithError(err).Error("failed to register user")
		return nil, newError(ErrPersistence, "Failed to register user", err)
	}

	pair, err := s.tokens.IssuePair(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issue tokens: %w", err)
	}
	s.logger.WithField("user_id", user.ID).Info("user registered")
	return &AuthResult{User: user, Tokens: pair}, nil
}
