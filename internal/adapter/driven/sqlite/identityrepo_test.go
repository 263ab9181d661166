package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityRepo_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewIdentityRepo(db)
	ctx := context.Background()

	id := seedIdentity(t, db, "alice", true, time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC))

	got, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, "alice@example.com", got.Email)
	assert.True(t, got.IsAdmin)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestIdentityRepo_GetByID_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewIdentityRepo(db)

	got, err := repo.GetByID(context.Background(), 999)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestIdentityRepo_GetByUsername(t *testing.T) {
	db := setupTestDB(t)
	repo := NewIdentityRepo(db)
	ctx := context.Background()

	seedIdentity(t, db, "bob", false, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))

	got, err := repo.GetByUsername(ctx, "bob")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.IsAdmin)

	missing, err := repo.GetByUsername(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestIdentityRepo_OldestAdmin(t *testing.T) {
	db := setupTestDB(t)
	repo := NewIdentityRepo(db)
	ctx := context.Background()

	seedIdentity(t, db, "newer-admin", true, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	oldest := seedIdentity(t, db, "older-admin", true, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	seedIdentity(t, db, "even-older-user", false, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	got, err := repo.OldestAdmin(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, oldest, got.ID)
	assert.Equal(t, "older-admin", got.Username)
}

func TestIdentityRepo_OldestAdmin_NoAdmins(t *testing.T) {
	db := setupTestDB(t)
	repo := NewIdentityRepo(db)

	seedIdentity(t, db, "plain-user", false, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	got, err := repo.OldestAdmin(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
}
