package profiles

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/storefront/internal/database"
	"github.com/mrlokans/storefront/internal/database/dbtest"
	"github.com/mrlokans/storefront/internal/entities"
)

func newProfile(t *testing.T, repo *Repository, email string, role entities.Role) *entities.Profile {
	t.Helper()
	p, err := entities.NewProfile(email, "Test", "", role)
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), p))
	return p
}

func TestRepository_CreateAndGetByEmail(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()

	created := newProfile(t, repo, "Reader@Example.com", entities.RoleReader)
	assert.NotZero(t, created.ID)

	got, err := repo.GetByEmail(ctx, "reader@example.COM")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "reader@example.com", got.Email)
}

func TestRepository_CreateDuplicateEmail(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	newProfile(t, repo, "dup@example.com", entities.RoleReader)

	p, err := entities.NewProfile("dup@example.com", "Other", "", entities.RoleReader)
	require.NoError(t, err)
	err = repo.Create(context.Background(), p)
	assert.True(t, database.IsUniqueViolation(err))
}

func TestRepository_RoleOf(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()
	p := newProfile(t, repo, "pub@example.com", entities.RolePublisher)

	role, err := repo.RoleOf(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.RolePublisher, role)

	_, err = repo.RoleOf(ctx, 9999)
	assert.True(t, database.IsNotFound(err))
}

func TestRepository_UpdateRole(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()
	p := newProfile(t, repo, "promote@example.com", entities.RoleReader)

	require.NoError(t, repo.UpdateRole(ctx, p.ID, entities.RoleAdmin))
	role, err := repo.RoleOf(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.RoleAdmin, role)

	assert.True(t, database.IsNotFound(repo.UpdateRole(ctx, 9999, entities.RoleAdmin)))
}

func TestRepository_LoginState(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()
	p := newProfile(t, repo, "lock@example.com", entities.RoleReader)

	until := time.Now().Add(time.Hour)
	require.NoError(t, repo.RecordFailedLogin(ctx, p.ID, 5, &until))

	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.FailedLoginCount)
	require.NotNil(t, got.LockedUntil)

	require.NoError(t, repo.RecordLogin(ctx, p.ID, time.Now()))
	got, err = repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Zero(t, got.FailedLoginCount)
	assert.Nil(t, got.LockedUntil)
	assert.NotNil(t, got.LastLoginAt)
}

func TestRepository_TokenHash(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()
	p := newProfile(t, repo, "api@example.com", entities.RoleReader)

	require.NoError(t, repo.SetTokenHash(ctx, p.ID, "abc123"))
	got, err := repo.GetByTokenHash(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
	assert.NotNil(t, got.TokenCreatedAt)

	require.NoError(t, repo.SetTokenHash(ctx, p.ID, ""))
	_, err = repo.GetByTokenHash(ctx, "abc123")
	assert.True(t, database.IsNotFound(err))
}

func TestRepository_List(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()
	newProfile(t, repo, "a@example.com", entities.RoleReader)
	newProfile(t, repo, "b@example.com", entities.RoleReader)
	newProfile(t, repo, "c@example.com", entities.RoleAdmin)

	list, total, err := repo.List(ctx, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, list, 2)
	assert.Equal(t, "a@example.com", list[0].Email)
}
