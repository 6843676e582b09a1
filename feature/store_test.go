package feature

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, dir
}

func draft(name string) Draft {
	return Draft{
		Category:    "core",
		Name:        name,
		Description: "description of " + name,
		Steps:       []string{"do it", "verify it"},
	}
}

func TestCreateAssignsIncreasingPriorities(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	a, err := store.Create(ctx, draft("first"))
	require.NoError(t, err)
	b, err := store.Create(ctx, draft("second"))
	require.NoError(t, err)

	assert.Equal(t, int64(1), a.Priority)
	assert.Equal(t, int64(2), b.Priority)
	assert.False(t, a.Passes)
	assert.Equal(t, []string{"do it", "verify it"}, a.Steps)
}

func TestCreateValidation(t *testing.T) {
	store, _ := openTestStore(t)

	_, err := store.Create(context.Background(), Draft{Name: "no category"})
	require.Error(t, err)

	_, err = store.Create(context.Background(), Draft{
		Category: "c", Name: "n", Description: "d",
	})
	require.Error(t, err, "a draft without steps must be rejected")
}

func TestBulkCreatePreservesOrder(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	_, err := store.Create(ctx, draft("existing"))
	require.NoError(t, err)

	created, err := store.BulkCreate(ctx, []Draft{draft("a"), draft("b"), draft("c")})
	require.NoError(t, err)
	assert.Equal(t, 3, created)

	features, total, err := store.List(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	require.Len(t, features, 4)
	assert.Equal(t, "existing", features[0].Name)
	assert.Equal(t, "a", features[1].Name)
	assert.Equal(t, "c", features[3].Name)
}

func TestNextReturnsLowestPriorityPending(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	a, err := store.Create(ctx, draft("a"))
	require.NoError(t, err)
	_, err = store.Create(ctx, draft("b"))
	require.NoError(t, err)

	next, err := store.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, a.ID, next.ID)

	_, err = store.SetPasses(ctx, a.ID, true)
	require.NoError(t, err)

	next, err = store.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b", next.Name)
}

func TestNextWhenAllPassing(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	f, err := store.Create(ctx, draft("only"))
	require.NoError(t, err)
	_, err = store.SetPasses(ctx, f.ID, true)
	require.NoError(t, err)

	_, err = store.Next(ctx)
	assert.ErrorIs(t, err, ErrNoPending)
}

func TestListClampsLimit(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		_, err := store.Create(ctx, draft(string(rune('a'+i))))
		require.NoError(t, err)
	}

	features, total, err := store.List(ctx, ListFilter{Limit: 100})
	require.NoError(t, err)
	assert.Equal(t, 8, total)
	assert.Len(t, features, MaxListLimit)

	features, _, err = store.List(ctx, ListFilter{Limit: 2, Offset: 6})
	require.NoError(t, err)
	assert.Len(t, features, 2)
}

func TestListRandomIgnoresOffset(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := store.Create(ctx, draft(string(rune('a'+i))))
		require.NoError(t, err)
	}

	// Random sampling draws from the whole matching set; an offset
	// past the end must not produce an empty page.
	features, total, err := store.List(ctx, ListFilter{Limit: 5, Offset: 5, Random: true})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, features, 3)
}

func TestListFilters(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	a, err := store.Create(ctx, Draft{Category: "ui", Name: "button", Description: "d", Steps: []string{"s"}})
	require.NoError(t, err)
	_, err = store.Create(ctx, Draft{Category: "api", Name: "endpoint", Description: "d", Steps: []string{"s"}})
	require.NoError(t, err)
	_, err = store.SetPasses(ctx, a.ID, true)
	require.NoError(t, err)

	passing := true
	features, total, err := store.List(ctx, ListFilter{Passes: &passing})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, features, 1)
	assert.Equal(t, "button", features[0].Name)

	features, total, err = store.List(ctx, ListFilter{Category: "api"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "endpoint", features[0].Name)
}

func TestSetPassesUnknownID(t *testing.T) {
	store, _ := openTestStore(t)
	_, err := store.SetPasses(context.Background(), 12345, true)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSkipMovesToEndOfQueue(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	a, err := store.Create(ctx, draft("a"))
	require.NoError(t, err)
	_, err = store.Create(ctx, draft("b"))
	require.NoError(t, err)

	skipped, oldPriority, err := store.Skip(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), oldPriority)
	assert.Equal(t, int64(3), skipped.Priority)

	next, err := store.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b", next.Name)
}

func TestSkipPassingFeatureRejected(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	f, err := store.Create(ctx, draft("done"))
	require.NoError(t, err)
	_, err = store.SetPasses(ctx, f.ID, true)
	require.NoError(t, err)

	_, _, err = store.Skip(ctx, f.ID)
	assert.ErrorIs(t, err, ErrAlreadyPassing)
}

func TestDelete(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	f, err := store.Create(ctx, draft("gone"))
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, f.ID))

	_, err = store.Get(ctx, f.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, store.Delete(ctx, f.ID), ErrNotFound)
}

func TestStats(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	st, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, st, "empty table yields zero stats")

	for i := 0; i < 3; i++ {
		f, err := store.Create(ctx, draft(string(rune('a'+i))))
		require.NoError(t, err)
		if i == 0 {
			_, err = store.SetPasses(ctx, f.ID, true)
			require.NoError(t, err)
		}
	}

	st, err = store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Passing)
	assert.Equal(t, 3, st.Total)
	assert.InDelta(t, 33.3, st.Percentage, 0.001)
}

func TestAllPassing(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	a, err := store.Create(ctx, draft("a"))
	require.NoError(t, err)
	_, err = store.Create(ctx, draft("b"))
	require.NoError(t, err)
	_, err = store.SetPasses(ctx, a.ID, true)
	require.NoError(t, err)

	passing, err := store.AllPassing(ctx)
	require.NoError(t, err)
	require.Len(t, passing, 1)
	assert.Equal(t, a.ID, passing[0].ID)
	assert.Equal(t, "a", passing[0].Name)
}

func TestHasFeatures(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, HasFeatures(dir), "empty directory has no features")

	store, err := Open(dir)
	require.NoError(t, err)
	defer store.Close()

	assert.False(t, HasFeatures(dir), "empty database has no features")

	_, err = store.Create(context.Background(), draft("one"))
	require.NoError(t, err)
	assert.True(t, HasFeatures(dir))
}

func TestHasFeaturesLegacyJSON(t *testing.T) {
	dir := t.TempDir()
	list, err := json.Marshal([]map[string]string{{"name": "legacy"}})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, LegacyListFile), list, 0o644))

	assert.True(t, HasFeatures(dir), "legacy feature_list.json counts as features")
}

func TestOpenCreatesDatabaseFile(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	require.NoError(t, err)
	defer store.Close()

	// The schema is applied eagerly, so the file exists after Open.
	_, err = os.Stat(filepath.Join(dir, DBFileName))
	assert.NoError(t, err)
}
