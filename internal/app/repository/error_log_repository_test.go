package repository

import (
	"context"
	"testing"
	"time"

	"github.com/mercadito/storefront-backend/internal/app/model"
	"github.com/mercadito/storefront-backend/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorLogRepository_DeleteOlderThan(t *testing.T) {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	defer db.CleanupTestDB(testDB)

	repo := NewErrorLogRepository(testDB)
	ctx := context.Background()

	old := &model.ErrorLog{Source: "CartGateway", Operation: "GetCart", Message: "old", CreatedAt: time.Now().Add(-48 * time.Hour)}
	recent := &model.ErrorLog{Source: "CartGateway", Operation: "GetCart", Message: "recent"}
	require.NoError(t, repo.Create(ctx, old))
	require.NoError(t, repo.Create(ctx, recent))

	deleted, err := repo.DeleteOlderThan(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	entries, err := repo.FindRecent(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "recent", entries[0].Message)
}

func TestErrorLogRepository_FindRecentFiltersSource(t *testing.T) {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	defer db.CleanupTestDB(testDB)

	repo := NewErrorLogRepository(testDB)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &model.ErrorLog{Source: "CartGateway", Operation: "InsertItem", Message: "a"}))
	require.NoError(t, repo.Create(ctx, &model.ErrorLog{Source: "Scheduler", Operation: "prune", Message: "b"}))

	entries, err := repo.FindRecent(ctx, "Scheduler", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "prune", entries[0].Operation)
}
