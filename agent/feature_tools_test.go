package agent

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evanfuller/autoloop/feature"
	"github.com/evanfuller/autoloop/featureapi"
)

func featureToolEnv(t *testing.T) (*Registry, *featureapi.Client) {
	t.Helper()

	store, err := feature.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	srv := httptest.NewServer(featureapi.NewServer(store, nil).Handler())
	t.Cleanup(srv.Close)

	client := featureapi.NewClient(srv.URL)
	reg := NewRegistry()
	RegisterFeatureTools(reg, client)
	return reg, client
}

func runFeatureTool(t *testing.T, reg *Registry, name, args string) (string, error) {
	t.Helper()
	tool := reg.Get(name)
	require.NotNil(t, tool, "tool %s not registered", name)
	return tool.Run(context.Background(), json.RawMessage(args), nil)
}

func TestFeatureToolsRegistered(t *testing.T) {
	reg, _ := featureToolEnv(t)
	for _, name := range []string{
		"feature_next", "feature_list", "feature_mark_passing",
		"feature_skip", "feature_bulk_create", "feature_stats",
	} {
		assert.NotNil(t, reg.Get(name), "missing tool %s", name)
	}
}

func TestFeatureBulkCreateAndNext(t *testing.T) {
	reg, _ := featureToolEnv(t)

	out, err := runFeatureTool(t, reg, "feature_bulk_create", `{
		"features": [
			{"category": "core", "name": "first", "description": "d", "steps": ["s"]},
			{"category": "core", "name": "second", "description": "d", "steps": ["s"]}
		]
	}`)
	require.NoError(t, err)
	assert.Equal(t, "Created 2 features.", out)

	out, err = runFeatureTool(t, reg, "feature_next", `{}`)
	require.NoError(t, err)
	assert.Contains(t, out, `"name": "first"`)
}

func TestFeatureBulkCreateEmpty(t *testing.T) {
	reg, _ := featureToolEnv(t)
	_, err := runFeatureTool(t, reg, "feature_bulk_create", `{"features": []}`)
	assert.ErrorContains(t, err, "at least one feature")
}

func TestFeatureMarkPassingAndExhaustion(t *testing.T) {
	reg, client := featureToolEnv(t)
	ctx := context.Background()

	f, err := client.Create(ctx, feature.Draft{
		Category: "core", Name: "only", Description: "d", Steps: []string{"s"},
	})
	require.NoError(t, err)

	out, err := runFeatureTool(t, reg, "feature_mark_passing", `{"feature_id": 1}`)
	require.NoError(t, err)
	assert.Contains(t, out, "marked as passing")

	got, err := client.Get(ctx, f.ID)
	require.NoError(t, err)
	assert.True(t, got.Passes)

	out, err = runFeatureTool(t, reg, "feature_next", `{}`)
	require.NoError(t, err)
	assert.Equal(t, "All features are passing! No more work to do.", out)
}

func TestFeatureMarkPassingUnknownID(t *testing.T) {
	reg, _ := featureToolEnv(t)
	_, err := runFeatureTool(t, reg, "feature_mark_passing", `{"feature_id": 42}`)
	assert.ErrorContains(t, err, "not found")
}

func TestFeatureSkip(t *testing.T) {
	reg, client := featureToolEnv(t)
	ctx := context.Background()

	_, err := client.Create(ctx, feature.Draft{Category: "core", Name: "a", Description: "d", Steps: []string{"s"}})
	require.NoError(t, err)
	_, err = client.Create(ctx, feature.Draft{Category: "core", Name: "b", Description: "d", Steps: []string{"s"}})
	require.NoError(t, err)

	out, err := runFeatureTool(t, reg, "feature_skip", `{"feature_id": 1}`)
	require.NoError(t, err)
	assert.Contains(t, out, "moved to end of queue")
	assert.Contains(t, out, "priority 1 -> 3")
}

func TestFeatureSkipPassing(t *testing.T) {
	reg, client := featureToolEnv(t)
	ctx := context.Background()

	f, err := client.Create(ctx, feature.Draft{Category: "core", Name: "done", Description: "d", Steps: []string{"s"}})
	require.NoError(t, err)
	_, err = client.SetPasses(ctx, f.ID, true)
	require.NoError(t, err)

	_, err = runFeatureTool(t, reg, "feature_skip", `{"feature_id": 1}`)
	assert.ErrorContains(t, err, "already passing")
}

func TestFeatureList(t *testing.T) {
	reg, client := featureToolEnv(t)
	ctx := context.Background()

	for _, name := range []string{"a", "b", "c"} {
		_, err := client.Create(ctx, feature.Draft{Category: "core", Name: name, Description: "d", Steps: []string{"s"}})
		require.NoError(t, err)
	}

	out, err := runFeatureTool(t, reg, "feature_list", `{"limit": 2}`)
	require.NoError(t, err)
	assert.Contains(t, out, `"total": 3`)
	assert.Contains(t, out, `"name": "a"`)
	assert.NotContains(t, out, `"name": "c"`)
}

func TestFeatureStats(t *testing.T) {
	reg, client := featureToolEnv(t)
	ctx := context.Background()

	f, err := client.Create(ctx, feature.Draft{Category: "core", Name: "a", Description: "d", Steps: []string{"s"}})
	require.NoError(t, err)
	_, err = client.Create(ctx, feature.Draft{Category: "core", Name: "b", Description: "d", Steps: []string{"s"}})
	require.NoError(t, err)
	_, err = client.SetPasses(ctx, f.ID, true)
	require.NoError(t, err)

	out, err := runFeatureTool(t, reg, "feature_stats", `{}`)
	require.NoError(t, err)
	assert.Equal(t, "1 of 2 features passing (50.0%).", out)
}
