package db

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360-copilot/backend/internal/crm"
)

func seededStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	store, err := New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(store.Close)

	require.NoError(t, store.Migrate(ctx))
	require.NoError(t, store.Seed(ctx, crm.NewDemoSource()))
	return store
}

func TestStore_Cases(t *testing.T) {
	store := seededStore(t)
	ctx := context.Background()

	c, err := store.GetCaseByNumber(ctx, "00001001")
	require.NoError(t, err)
	assert.Equal(t, "500XX00000A1001", c.ID)
	assert.Equal(t, "TechVision Solutions", c.Account["Name"])
	assert.Equal(t, "Jennifer Martinez", c.Contact["Name"])
	require.NotNil(t, c.Owner)

	byShort, err := store.GetCaseByNumber(ctx, "1001")
	require.NoError(t, err)
	assert.Equal(t, c.ID, byShort.ID)

	_, err = store.GetCaseByID(ctx, "missing")
	assert.ErrorIs(t, err, crm.ErrNotFound)

	bundles, err := store.GetRelatedObjects(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, bundles, 4)
	assert.Equal(t, "Account", bundles[0].ObjectName)
	assert.Len(t, bundles[2].Records, 2)
}

func TestStore_SaveCaseSummaryUpserts(t *testing.T) {
	store := seededStore(t)
	ctx := context.Background()

	first, err := store.SaveCaseSummary(ctx, "500XX00000A1002", "one", map[string]any{"source": "test"})
	require.NoError(t, err)
	assert.Equal(t, "create", first.Action)

	second, err := store.SaveCaseSummary(ctx, "500XX00000A1002", "two", nil)
	require.NoError(t, err)
	assert.Equal(t, "update", second.Action)
	assert.Equal(t, first.RecordID, second.RecordID)
}

func TestStore_AccountsAndActivities(t *testing.T) {
	store := seededStore(t)
	ctx := context.Background()

	a, err := store.SearchAccount(ctx, "north")
	require.NoError(t, err)
	assert.Equal(t, "001XX000003DHH1", a.ID)

	_, err = store.SearchAccount(ctx, "no such account")
	assert.ErrorIs(t, err, crm.ErrNotFound)

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)
	set, err := store.GetAccountActivities(ctx, "001XX000003DHH0", start, end)
	require.NoError(t, err)
	assert.Len(t, set.All(), 120)

	users, err := store.ListActiveUsers(ctx, 3, "005XX0000001AAA")
	require.NoError(t, err)
	assert.Len(t, users, 3)

	health := store.CheckConnection(ctx)
	assert.True(t, health.Connected)
}
