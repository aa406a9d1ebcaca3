package crm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDemoSource_Cases(t *testing.T) {
	src := NewDemoSource()
	ctx := context.Background()

	c, err := src.GetCaseByNumber(ctx, "00001001")
	require.NoError(t, err)
	assert.Equal(t, "500XX00000A1001", c.ID)
	require.NotNil(t, c.Owner)
	assert.Equal(t, "Sarah Chen", c.Owner.Name)

	c2, err := src.GetCaseByNumber(ctx, "1001")
	require.NoError(t, err)
	assert.Equal(t, c.ID, c2.ID)

	_, err = src.GetCaseByNumber(ctx, "99999999")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = src.GetCaseByID(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDemoSource_RelatedObjects(t *testing.T) {
	src := NewDemoSource()
	bundles, err := src.GetRelatedObjects(context.Background(), "500XX00000A1001")
	require.NoError(t, err)

	var names []string
	for _, b := range bundles {
		names = append(names, b.ObjectName)
		assert.NotEmpty(t, b.Records)
	}
	assert.Equal(t, []string{"Account", "Contact", "CaseComment", "EmailMessage"}, names)

	_, err = src.GetRelatedObjects(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDemoSource_ListActiveUsers(t *testing.T) {
	src := NewDemoSource()
	users, err := src.ListActiveUsers(context.Background(), 3, "005XX0000001AAA")
	require.NoError(t, err)
	assert.Len(t, users, 3)
	for _, u := range users {
		assert.NotEqual(t, "005XX0000001AAA", u.ID)
	}
}

func TestDemoSource_SaveCaseSummary(t *testing.T) {
	src := NewDemoSource()
	ctx := context.Background()

	res, err := src.SaveCaseSummary(ctx, "500XX00000A1001", "first", nil)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "a00MOCKA1001", res.RecordID)
	assert.Equal(t, "create", res.Action)

	res, err = src.SaveCaseSummary(ctx, "500XX00000A1001", "second", nil)
	require.NoError(t, err)
	assert.Equal(t, "update", res.Action)

	got, ok := src.SavedSummary("500XX00000A1001")
	assert.True(t, ok)
	assert.Equal(t, "second", got)
}

func TestDemoSource_SearchAccount(t *testing.T) {
	src := NewDemoSource()
	ctx := context.Background()

	a, err := src.SearchAccount(ctx, "techvision")
	require.NoError(t, err)
	assert.Equal(t, "001XX000003DHH0", a.ID)

	a, err = src.SearchAccount(ctx, "001XX000003DHH1")
	require.NoError(t, err)
	assert.Equal(t, "Northwind Traders", a.Name)

	_, err = src.SearchAccount(ctx, "Initech")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDemoSource_AccountActivities(t *testing.T) {
	src := NewDemoSource()
	ctx := context.Background()
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)

	set, err := src.GetAccountActivities(ctx, "001XX000003DHH0", start, end)
	require.NoError(t, err)
	assert.Len(t, set.Tasks, 60)
	assert.Len(t, set.Events, 40)
	assert.Len(t, set.Cases, 20)
	assert.Len(t, set.All(), 120)

	narrow, err := src.GetAccountActivities(ctx, "001XX000003DHH0", start, start.AddDate(0, 1, 0))
	require.NoError(t, err)
	assert.Less(t, len(narrow.All()), 120)

	empty, err := src.GetAccountActivities(ctx, "001XX000003DHH2", start, end)
	require.NoError(t, err)
	assert.Empty(t, empty.All())

	_, err = src.GetAccountActivities(ctx, "001XX000009ZZZ9", start, end)
	assert.ErrorIs(t, err, ErrNotFound)
}
