package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
)

// UserService handles registration and credential checks.
type UserService struct {
	store      UserStore
	bcryptCost int
}

func NewUserService(store UserStore, bcryptCost int) *UserService {
	return &UserService{store: store, bcryptCost: bcryptCost}
}

// Register creates a new account. A duplicate email, even one belonging
// to a soft-deleted account, is a conflict.
func (s *UserService) Register(ctx context.Context, email, password, fullName string) (*core.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, core.Validationf("email is required")
	}
	if len(password) < 8 {
		return nil, core.Validationf("password must be at least 8 characters")
	}

	existing, err := s.store.UserByEmail(ctx, email)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return nil, fmt.Errorf("lookup email: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("email already registered: %w", core.ErrConflict)
	}

	hashed, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &core.User{
		Email:          email,
		HashedPassword: hashed,
		FullName:       strings.TrimSpace(fullName),
		IsActive:       true,
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	slog.InfoContext(ctx, "User registered", applog.FieldUserID, user.ID, applog.FieldEmail, user.Email)
	return user, nil
}

// Authenticate verifies credentials and stamps last_login_at. Unknown
// emails, wrong passwords and soft-deleted accounts are all refused
// with the same error.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*core.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.store.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, core.ErrUnauthorized
		}
		return nil, fmt.Errorf("lookup email: %w", err)
	}
	if user.IsDeleted || !user.IsActive {
		// Deleted accounts are locked out for good.
		return nil, core.ErrUnauthorized
	}
	if !auth.CheckPassword(user.HashedPassword, password) {
		return nil, core.ErrUnauthorized
	}

	now := time.Now().UTC()
	user.LastLoginAt = &now
	if err := s.store.UpdateUser(ctx, user); err != nil {
		slog.WarnContext(ctx, "Failed to stamp last login", applog.FieldUserID, user.ID, applog.FieldError, err)
	}

	return user, nil
}

// CurrentUser resolves the identity behind a token subject. Deleted or
// deactivated accounts yield ErrUnauthorized even if the token itself
// is valid.
func (s *UserService) CurrentUser(ctx context.Context, email string) (*core.User, error) {
	user, err := s.store.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, core.ErrUnauthorized
		}
		return nil, fmt.Errorf("lookup email: %w", err)
	}
	if user.IsDeleted || !user.IsActive {
		return nil, core.ErrUnauthorized
	}
	return user, nil
}
