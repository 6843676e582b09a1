package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evanfuller/autoloop/feature"
	"github.com/evanfuller/autoloop/featureapi"
)

type webhookRecorder struct {
	payloads [][]webhookPayload
}

func (r *webhookRecorder) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		body, _ := io.ReadAll(req.Body)
		var batch []webhookPayload
		if err := json.Unmarshal(body, &batch); err == nil {
			r.payloads = append(r.payloads, batch)
		}
		w.WriteHeader(http.StatusOK)
	}
}

func trackerFixture(t *testing.T, webhookURL string) (*Tracker, *featureapi.Client, string, *bytes.Buffer) {
	t.Helper()

	dir := t.TempDir()
	store, err := feature.Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	srv := httptest.NewServer(featureapi.NewServer(store, nil).Handler())
	t.Cleanup(srv.Close)

	client := featureapi.NewClient(srv.URL)
	out := &bytes.Buffer{}
	return NewTracker(client, dir, webhookURL, out), client, dir, out
}

func seedFeature(t *testing.T, client *featureapi.Client, name string) *feature.Feature {
	t.Helper()
	f, err := client.Create(context.Background(), feature.Draft{
		Category: "core", Name: name, Description: "d", Steps: []string{"s"},
	})
	require.NoError(t, err)
	return f
}

func readCache(t *testing.T, dir string) progressCache {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, ProgressCacheFile))
	require.NoError(t, err)
	var cache progressCache
	require.NoError(t, json.Unmarshal(data, &cache))
	return cache
}

func TestSummaryNoFeatures(t *testing.T) {
	tracker, _, _, out := trackerFixture(t, "")

	passing, total, err := tracker.Summary(context.Background())
	require.NoError(t, err)
	assert.Zero(t, passing)
	assert.Zero(t, total)
	assert.Contains(t, out.String(), "No features in database yet")
}

func TestSummaryPrintsProgressLine(t *testing.T) {
	tracker, client, _, out := trackerFixture(t, "")
	ctx := context.Background()

	f := seedFeature(t, client, "a")
	seedFeature(t, client, "b")
	_, err := client.SetPasses(ctx, f.ID, true)
	require.NoError(t, err)

	passing, total, err := tracker.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, passing)
	assert.Equal(t, 2, total)
	assert.Contains(t, out.String(), "Progress: 1/2 tests passing (50.0%)")
}

func TestWebhookFiresOnIncrease(t *testing.T) {
	recorder := &webhookRecorder{}
	hook := httptest.NewServer(recorder.handler())
	defer hook.Close()

	tracker, client, dir, _ := trackerFixture(t, hook.URL)
	ctx := context.Background()

	f := seedFeature(t, client, "login")
	seedFeature(t, client, "logout")

	// First summary seeds the cache without firing.
	_, _, err := tracker.Summary(ctx)
	require.NoError(t, err)
	assert.Empty(t, recorder.payloads)
	assert.Equal(t, 0, readCache(t, dir).Count)

	// A feature passes; the next summary fires one webhook.
	_, err = client.SetPasses(ctx, f.ID, true)
	require.NoError(t, err)
	_, _, err = tracker.Summary(ctx)
	require.NoError(t, err)

	require.Len(t, recorder.payloads, 1)
	batch := recorder.payloads[0]
	require.Len(t, batch, 1, "payload must be an array with one event")

	event := batch[0]
	assert.Equal(t, "test_progress", event.Event)
	assert.Equal(t, 1, event.Passing)
	assert.Equal(t, 2, event.Total)
	assert.InDelta(t, 50.0, event.Percentage, 0.001)
	assert.Equal(t, 0, event.PreviousPassing)
	assert.Equal(t, 1, event.CompletedCount)
	assert.Equal(t, []string{"core login"}, event.CompletedTests)
	assert.Equal(t, filepath.Base(dir), event.Project)

	cache := readCache(t, dir)
	assert.Equal(t, 1, cache.Count)
	assert.Equal(t, []int64{f.ID}, cache.PassingIDs)
}

func TestWebhookSkippedWhenNoIncrease(t *testing.T) {
	recorder := &webhookRecorder{}
	hook := httptest.NewServer(recorder.handler())
	defer hook.Close()

	tracker, client, _, _ := trackerFixture(t, hook.URL)
	ctx := context.Background()

	f := seedFeature(t, client, "a")
	_, err := client.SetPasses(ctx, f.ID, true)
	require.NoError(t, err)

	_, _, err = tracker.Summary(ctx)
	require.NoError(t, err)
	require.Len(t, recorder.payloads, 1)

	// Same pass count again: no second webhook.
	_, _, err = tracker.Summary(ctx)
	require.NoError(t, err)
	assert.Len(t, recorder.payloads, 1)
}

func TestWebhookOldCacheFormatOmitsCompletedTests(t *testing.T) {
	recorder := &webhookRecorder{}
	hook := httptest.NewServer(recorder.handler())
	defer hook.Close()

	tracker, client, dir, _ := trackerFixture(t, hook.URL)
	ctx := context.Background()

	// Cache from a version that tracked only the count.
	require.NoError(t, os.WriteFile(filepath.Join(dir, ProgressCacheFile), []byte(`{"count": 1}`), 0o644))

	a := seedFeature(t, client, "a")
	b := seedFeature(t, client, "b")
	_, err := client.SetPasses(ctx, a.ID, true)
	require.NoError(t, err)
	_, err = client.SetPasses(ctx, b.ID, true)
	require.NoError(t, err)

	_, _, err = tracker.Summary(ctx)
	require.NoError(t, err)

	require.Len(t, recorder.payloads, 1)
	event := recorder.payloads[0][0]
	assert.Equal(t, 1, event.PreviousPassing)
	assert.Empty(t, event.CompletedTests, "individual features cannot be attributed without previous IDs")

	// The cache is upgraded to the ID-tracking format.
	cache := readCache(t, dir)
	assert.Equal(t, 2, cache.Count)
	assert.Len(t, cache.PassingIDs, 2)
}

func TestWebhookDisabledWithoutURL(t *testing.T) {
	tracker, client, dir, _ := trackerFixture(t, "")
	ctx := context.Background()

	f := seedFeature(t, client, "a")
	_, err := client.SetPasses(ctx, f.ID, true)
	require.NoError(t, err)

	_, _, err = tracker.Summary(ctx)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, ProgressCacheFile))
	assert.True(t, os.IsNotExist(err), "no cache is written when the webhook is not configured")
}

func TestPrintSessionHeader(t *testing.T) {
	tracker, _, _, out := trackerFixture(t, "")

	tracker.PrintSessionHeader(1, true)
	assert.Contains(t, out.String(), "SESSION 1: INITIALIZER")

	out.Reset()
	tracker.PrintSessionHeader(3, false)
	assert.Contains(t, out.String(), "SESSION 3: CODING AGENT")
}
