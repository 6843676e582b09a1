package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/evanfuller/autoloop/featureapi"
)

// ProgressCacheFile stores the pass count and passing feature IDs from the
// previous summary, so webhooks fire only on increases and can name the
// newly passing features.
const ProgressCacheFile = ".progress_cache"

type progressCache struct {
	Count      int     `json:"count"`
	PassingIDs []int64 `json:"passing_ids"`
}

type webhookPayload struct {
	Event           string   `json:"event"`
	Passing         int      `json:"passing"`
	Total           int      `json:"total"`
	Percentage      float64  `json:"percentage"`
	PreviousPassing int      `json:"previous_passing"`
	CompletedCount  int      `json:"tests_completed_this_session"`
	CompletedTests  []string `json:"completed_tests"`
	Project         string   `json:"project"`
	Timestamp       string   `json:"timestamp"`
}

// Tracker reports progress between agent sessions.
type Tracker struct {
	client     *featureapi.Client
	projectDir string
	webhookURL string
	http       *http.Client
	out        io.Writer
}

// NewTracker creates a progress tracker writing human output to out.
func NewTracker(client *featureapi.Client, projectDir, webhookURL string, out io.Writer) *Tracker {
	if out == nil {
		out = os.Stdout
	}
	return &Tracker{
		client:     client,
		projectDir: projectDir,
		webhookURL: webhookURL,
		http:       &http.Client{Timeout: 5 * time.Second},
		out:        out,
	}
}

// PrintSessionHeader prints the banner that opens each agent session.
func (t *Tracker) PrintSessionHeader(sessionNum int, isInitializer bool) {
	sessionType := "CODING AGENT"
	if isInitializer {
		sessionType = "INITIALIZER"
	}
	bar := strings.Repeat("=", 70)
	fmt.Fprintf(t.out, "\n%s\n  SESSION %d: %s\n%s\n\n", bar, sessionNum, sessionType, bar)
}

// Summary prints the current pass counts and sends the progress webhook.
// It returns the stats so the caller can decide whether to stop early.
func (t *Tracker) Summary(ctx context.Context) (passing, total int, err error) {
	stats, err := t.client.Stats(ctx)
	if err != nil {
		return 0, 0, err
	}

	if stats.Total > 0 {
		fmt.Fprintf(t.out, "\nProgress: %d/%d tests passing (%.1f%%)\n", stats.Passing, stats.Total, stats.Percentage)
		t.notify(ctx, stats.Passing, stats.Total)
	} else {
		fmt.Fprintln(t.out, "\nProgress: No features in database yet")
	}
	return stats.Passing, stats.Total, nil
}

// notify sends the webhook when the pass count increased since the last
// summary, and keeps the cache file current either way.
func (t *Tracker) notify(ctx context.Context, passing, total int) {
	if t.webhookURL == "" {
		return
	}

	cachePath := filepath.Join(t.projectDir, ProgressCacheFile)
	var previous progressCache
	cacheExists := false
	if data, err := os.ReadFile(cachePath); err == nil {
		cacheExists = true
		if err := json.Unmarshal(data, &previous); err != nil {
			previous = progressCache{}
		}
	}

	if passing <= previous.Count {
		// Seed the cache on first run so later increases have a baseline.
		if !cacheExists {
			ids, err := t.passingIDs(ctx)
			if err != nil {
				ids = nil
			}
			t.writeCache(cachePath, progressCache{Count: passing, PassingIDs: ids})
		}
		return
	}

	previousIDs := make(map[int64]bool, len(previous.PassingIDs))
	for _, id := range previous.PassingIDs {
		previousIDs[id] = true
	}
	// An old cache that recorded a count but no IDs cannot attribute
	// individual features, so leave completed_tests empty.
	oldCacheFormat := len(previous.PassingIDs) == 0 && previous.Count > 0

	var completedTests []string
	var currentIDs []int64
	features, err := t.client.AllPassing(ctx)
	if err != nil {
		fmt.Fprintf(t.out, "[API error getting features: %v]\n", err)
	}
	for _, f := range features {
		currentIDs = append(currentIDs, f.ID)
		if oldCacheFormat || previousIDs[f.ID] {
			continue
		}
		if f.Category != "" {
			completedTests = append(completedTests, f.Category+" "+f.Name)
		} else {
			completedTests = append(completedTests, f.Name)
		}
	}

	percentage := 0.0
	if total > 0 {
		percentage = math.Round(float64(passing)/float64(total)*1000) / 10
	}
	payload := webhookPayload{
		Event:           "test_progress",
		Passing:         passing,
		Total:           total,
		Percentage:      percentage,
		PreviousPassing: previous.Count,
		CompletedCount:  passing - previous.Count,
		CompletedTests:  completedTests,
		Project:         filepath.Base(t.projectDir),
		Timestamp:       time.Now().UTC().Format("2006-01-02T15:04:05.000000") + "Z",
	}
	if payload.CompletedTests == nil {
		payload.CompletedTests = []string{}
	}

	// The receiving workflow expects an array of events.
	if err := t.post(ctx, []webhookPayload{payload}); err != nil {
		fmt.Fprintf(t.out, "[Webhook notification failed: %v]\n", err)
	}

	t.writeCache(cachePath, progressCache{Count: passing, PassingIDs: currentIDs})
}

func (t *Tracker) passingIDs(ctx context.Context) ([]int64, error) {
	features, err := t.client.AllPassing(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(features))
	for _, f := range features {
		ids = append(ids, f.ID)
	}
	return ids, nil
}

func (t *Tracker) writeCache(path string, cache progressCache) {
	if cache.PassingIDs == nil {
		cache.PassingIDs = []int64{}
	}
	data, err := json.Marshal(cache)
	if err != nil {
		return
	}
	_ = os.WriteFile(path, data, 0o644)
}

func (t *Tracker) post(ctx context.Context, payload []webhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}
