package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
	"fintrack/internal/services"
	"fintrack/internal/storage/memory"
)

// bcrypt cost 4 keeps the hashing fast in tests
const testBcryptCost = 4

func TestRegister(t *testing.T) {
	store := memory.NewStore()
	svc := services.NewUserService(store, testBcryptCost)
	ctx := context.Background()

	user, err := svc.Register(ctx, "  Alice@Example.COM ", "password123", "Alice")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.NotZero(t, user.ID)
	assert.True(t, user.IsActive)
	assert.NotEqual(t, "password123", user.HashedPassword)
}

func TestRegisterShortPassword(t *testing.T) {
	store := memory.NewStore()
	svc := services.NewUserService(store, testBcryptCost)

	_, err := svc.Register(context.Background(), "bob@example.com", "short", "Bob")
	require.Error(t, err)
	assert.True(t, core.IsValidation(err))
}

func TestRegisterDuplicateEmail(t *testing.T) {
	store := memory.NewStore()
	svc := services.NewUserService(store, testBcryptCost)
	ctx := context.Background()

	_, err := svc.Register(ctx, "carol@example.com", "password123", "Carol")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "CAROL@example.com", "password456", "Carol Again")
	assert.ErrorIs(t, err, core.ErrConflict)
}

func TestRegisterDeletedEmailStillConflicts(t *testing.T) {
	store := memory.NewStore()
	svc := services.NewUserService(store, testBcryptCost)
	ctx := context.Background()

	user, err := svc.Register(ctx, "dave@example.com", "password123", "Dave")
	require.NoError(t, err)

	user.MarkDeleted(time.Now().UTC())
	require.NoError(t, store.UpdateUser(ctx, user))

	_, err = svc.Register(ctx, "dave@example.com", "password123", "Dave II")
	assert.ErrorIs(t, err, core.ErrConflict)
}

func TestAuthenticate(t *testing.T) {
	store := memory.NewStore()
	svc := services.NewUserService(store, testBcryptCost)
	ctx := context.Background()

	_, err := svc.Register(ctx, "erin@example.com", "password123", "Erin")
	require.NoError(t, err)

	user, err := svc.Authenticate(ctx, "erin@example.com", "password123")
	require.NoError(t, err)
	assert.NotNil(t, user.LastLoginAt, "login should stamp last_login_at")

	_, err = svc.Authenticate(ctx, "erin@example.com", "wrong-password")
	assert.ErrorIs(t, err, core.ErrUnauthorized)

	_, err = svc.Authenticate(ctx, "nobody@example.com", "password123")
	assert.ErrorIs(t, err, core.ErrUnauthorized)
}

func TestAuthenticateDeletedAccount(t *testing.T) {
	store := memory.NewStore()
	svc := services.NewUserService(store, testBcryptCost)
	ctx := context.Background()

	user, err := svc.Register(ctx, "frank@example.com", "password123", "Frank")
	require.NoError(t, err)

	user.MarkDeleted(time.Now().UTC())
	require.NoError(t, store.UpdateUser(ctx, user))

	_, err = svc.Authenticate(ctx, "frank@example.com", "password123")
	assert.ErrorIs(t, err, core.ErrUnauthorized)

	_, err = svc.CurrentUser(ctx, "frank@example.com")
	assert.ErrorIs(t, err, core.ErrUnauthorized)
}
