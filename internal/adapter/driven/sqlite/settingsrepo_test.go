package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsRepo_GetMissingReturnsNil(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSettingsRepo(db)

	val, err := repo.Get(context.Background(), "accounts")
	require.NoError(t, err)
	assert.Nil(t, val)
}

func TestSettingsRepo_SetGetOverwrite(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSettingsRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "view-state", []byte(`{"view_mode":"week"}`)))
	require.NoError(t, repo.Set(ctx, "view-state", []byte(`{"view_mode":"month"}`)))

	val, err := repo.Get(ctx, "view-state")
	require.NoError(t, err)
	assert.JSONEq(t, `{"view_mode":"month"}`, string(val))
}

func TestSettingsRepo_Delete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSettingsRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "calendar-settings.a@example.com", []byte(`[]`)))
	require.NoError(t, repo.Delete(ctx, "calendar-settings.a@example.com"))

	val, err := repo.Get(ctx, "calendar-settings.a@example.com")
	require.NoError(t, err)
	assert.Nil(t, val)
}
