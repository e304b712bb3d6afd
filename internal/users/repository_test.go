package users

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/otesta/otesta-backend/pkg/enums"
)

func setupUsersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  full_name TEXT NOT NULL,
  role TEXT NOT NULL,
  password_hash TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(schema).Error)
	return db
}

func TestRepositoryGetByEmail(t *testing.T) {
	repo := NewRepository(setupUsersTestDB(t))
	ctx := context.Background()

	_, err := repo.GetByEmail(ctx, "ghost@otesta.it")
	assert.ErrorIs(t, err, ErrUserNotFound)

	seeded := User{
		ID:           uuid.NewString(),
		Email:        "demo@otesta.it",
		FullName:     "Demo Shopper",
		Role:         enums.UserRoleUser,
		PasswordHash: "argon2-hash",
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
	require.NoError(t, repo.Upsert(ctx, seeded))

	got, err := repo.GetByEmail(ctx, "demo@otesta.it")
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, got.ID)
	assert.Equal(t, "Demo Shopper", got.FullName)
	assert.Equal(t, enums.UserRoleUser, got.Role)
}

func TestRepositoryUpsertIsIdempotentOnEmail(t *testing.T) {
	repo := NewRepository(setupUsersTestDB(t))
	ctx := context.Background()

	first := User{
		ID:           uuid.NewString(),
		Email:        "admin@otesta.it",
		FullName:     "Otesta Admin",
		Role:         enums.UserRoleAdmin,
		PasswordHash: "hash-1",
	}
	require.NoError(t, repo.Upsert(ctx, first))

	second := first
	second.ID = uuid.NewString()
	second.FullName = "Otesta Admin Renamed"
	second.PasswordHash = "hash-2"
	require.NoError(t, repo.Upsert(ctx, second))

	got, err := repo.GetByEmail(ctx, "admin@otesta.it")
	require.NoError(t, err)
	// The original row survives; only the mutable columns move.
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, "Otesta Admin Renamed", got.FullName)
	assert.Equal(t, "hash-2", got.PasswordHash)
}
