package featureapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/evanfuller/autoloop/feature"
)

// Client is a typed HTTP client for the feature API. Agent tools and the
// progress tracker both go through it rather than touching the store, so
// every consumer sees the same semantics the prompts document.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient targets the API at baseURL, e.g. "http://127.0.0.1:8765".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// APIError carries a non-2xx response.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("feature API: %d: %s", e.StatusCode, e.Detail)
}

// ListOptions mirror the query parameters of GET /features.
type ListOptions struct {
	Limit    int
	Offset   int
	Passes   *bool
	Category string
	Random   bool
}

// ListResult is one page of features plus the unpaginated total.
type ListResult struct {
	Features []feature.Feature `json:"features"`
	Total    int               `json:"total"`
	Limit    int               `json:"limit"`
	Offset   int               `json:"offset"`
}

// SkipResult describes a requeued feature.
type SkipResult struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	OldPriority int64  `json:"old_priority"`
	NewPriority int64  `json:"new_priority"`
	Message     string `json:"message"`
}

// Health reports whether the API can reach its database.
func (c *Client) Health(ctx context.Context) error {
	var resp healthResponse
	if err := c.do(ctx, http.MethodGet, "/health", nil, &resp); err != nil {
		return err
	}
	if resp.Status != "healthy" {
		return fmt.Errorf("feature API unhealthy: %s", resp.Database)
	}
	return nil
}

// List fetches a page of features.
func (c *Client) List(ctx context.Context, opts ListOptions) (*ListResult, error) {
	q := url.Values{}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		q.Set("offset", strconv.Itoa(opts.Offset))
	}
	if opts.Passes != nil {
		q.Set("passes", strconv.FormatBool(*opts.Passes))
	}
	if opts.Category != "" {
		q.Set("category", opts.Category)
	}
	if opts.Random {
		q.Set("random", "true")
	}

	path := "/features"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out ListResult
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Next returns the highest-priority pending feature. When everything
// passes, it returns feature.ErrNoPending.
func (c *Client) Next(ctx context.Context) (*feature.Feature, error) {
	var f feature.Feature
	err := c.do(ctx, http.MethodGet, "/features/next", nil, &f)
	if apiErr, ok := err.(*APIError); ok && apiErr.StatusCode == http.StatusNotFound {
		return nil, feature.ErrNoPending
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// Stats fetches completion statistics.
func (c *Client) Stats(ctx context.Context) (feature.Stats, error) {
	var st feature.Stats
	err := c.do(ctx, http.MethodGet, "/features/stats", nil, &st)
	return st, err
}

// AllPassing returns summaries of every passing feature, uncapped.
func (c *Client) AllPassing(ctx context.Context) ([]feature.Summary, error) {
	var resp allPassingResponse
	if err := c.do(ctx, http.MethodGet, "/features/all-passing", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Features, nil
}

// Get fetches one feature by ID.
func (c *Client) Get(ctx context.Context, id int64) (*feature.Feature, error) {
	var f feature.Feature
	err := c.do(ctx, http.MethodGet, c.featurePath(id), nil, &f)
	if apiErr, ok := err.(*APIError); ok && apiErr.StatusCode == http.StatusNotFound {
		return nil, feature.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// Create adds a single feature to the end of the queue.
func (c *Client) Create(ctx context.Context, d feature.Draft) (*feature.Feature, error) {
	var f feature.Feature
	if err := c.do(ctx, http.MethodPost, "/features", d, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// BulkCreate adds features in order and returns how many were created.
func (c *Client) BulkCreate(ctx context.Context, drafts []feature.Draft) (int, error) {
	var resp bulkCreateResponse
	if err := c.do(ctx, http.MethodPost, "/features/bulk", bulkCreateRequest{Features: drafts}, &resp); err != nil {
		return 0, err
	}
	return resp.Created, nil
}

// SetPasses updates a feature's pass status.
func (c *Client) SetPasses(ctx context.Context, id int64, passes bool) (*feature.Feature, error) {
	var f feature.Feature
	err := c.do(ctx, http.MethodPatch, c.featurePath(id), updateRequest{Passes: &passes}, &f)
	if apiErr, ok := err.(*APIError); ok && apiErr.StatusCode == http.StatusNotFound {
		return nil, feature.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// Skip moves a pending feature to the end of the queue.
func (c *Client) Skip(ctx context.Context, id int64) (*SkipResult, error) {
	var resp SkipResult
	err := c.do(ctx, http.MethodPost, c.featurePath(id)+"/skip", nil, &resp)
	if apiErr, ok := err.(*APIError); ok {
		switch apiErr.StatusCode {
		case http.StatusNotFound:
			return nil, feature.ErrNotFound
		case http.StatusBadRequest:
			return nil, feature.ErrAlreadyPassing
		}
	}
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Delete removes a feature.
func (c *Client) Delete(ctx context.Context, id int64) error {
	err := c.do(ctx, http.MethodDelete, c.featurePath(id), nil, nil)
	if apiErr, ok := err.(*APIError); ok && apiErr.StatusCode == http.StatusNotFound {
		return feature.ErrNotFound
	}
	return err
}

func (c *Client) featurePath(id int64) string {
	return "/features/" + strconv.FormatInt(id, 10)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("feature API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := struct {
			Detail string `json:"detail"`
		}{}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		if err := json.Unmarshal(raw, &detail); err != nil || detail.Detail == "" {
			detail.Detail = string(raw)
		}
		return &APIError{StatusCode: resp.StatusCode, Detail: detail.Detail}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
