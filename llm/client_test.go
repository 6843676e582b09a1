package llm

import (
	"context"
	"testing"
)

// mockAdapter is a test double for ProviderAdapter.
type mockAdapter struct {
	name     string
	response *Response
	err      error
	calls    int
}

func (m *mockAdapter) Name() string { return m.name }

func (m *mockAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.response, nil
}

func newMockAdapter(name, text string) *mockAdapter {
	return &mockAdapter{
		name: name,
		response: &Response{
			ID:       "test_resp",
			Model:    "test-model",
			Provider: name,
			Message: Message{
				Role:    RoleAssistant,
				Content: []ContentPart{TextPart(text)},
			},
			FinishReason: FinishReason{Reason: "stop"},
			Usage:        Usage{InputTokens: 10, OutputTokens: 20, TotalTokens: 30},
		},
	}
}

func TestClientComplete(t *testing.T) {
	mock := newMockAdapter("test-provider", "Hello!")
	client := NewClient(
		WithProvider("test-provider", mock),
		WithDefaultProvider("test-provider"),
	)

	resp, err := client.Complete(context.Background(), Request{
		Model:    "test-model",
		Messages: []Message{UserMessage("Hi")},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text() != "Hello!" {
		t.Errorf("expected %q, got %q", "Hello!", resp.Text())
	}
	if resp.Provider != "test-provider" {
		t.Errorf("expected provider set on response, got %q", resp.Provider)
	}
}

func TestClientSingleProviderIsDefault(t *testing.T) {
	mock := newMockAdapter("only", "one")
	client := NewClient(WithProvider("only", mock))

	resp, err := client.Complete(context.Background(), Request{Model: "whatever"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text() != "one" {
		t.Errorf("expected %q, got %q", "one", resp.Text())
	}
}

func TestClientRoutesByProviderField(t *testing.T) {
	a := newMockAdapter("a", "from a")
	b := newMockAdapter("b", "from b")
	client := NewClient(
		WithProvider("a", a),
		WithProvider("b", b),
		WithDefaultProvider("a"),
	)

	resp, err := client.Complete(context.Background(), Request{Provider: "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text() != "from b" {
		t.Errorf("expected routing to provider b, got %q", resp.Text())
	}
	if a.calls != 0 || b.calls != 1 {
		t.Errorf("expected a=0 b=1 calls, got a=%d b=%d", a.calls, b.calls)
	}
}

func TestClientInfersProviderFromCatalog(t *testing.T) {
	mock := newMockAdapter("anthropic", "routed")
	other := newMockAdapter("openai", "wrong")
	client := NewClient(
		WithProvider("anthropic", mock),
		WithProvider("openai", other),
	)

	// No default, no explicit provider: route by model catalog entry.
	resp, err := client.Complete(context.Background(), Request{Model: DefaultModel})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text() != "routed" {
		t.Errorf("expected catalog routing to anthropic, got %q", resp.Text())
	}
}

func TestClientUnknownProvider(t *testing.T) {
	client := NewClient()
	_, err := client.Complete(context.Background(), Request{Provider: "nope"})
	if err == nil {
		t.Fatal("expected configuration error")
	}
	if _, ok := err.(*ConfigurationError); !ok {
		t.Errorf("expected *ConfigurationError, got %T", err)
	}
}

func TestClientMiddlewareOrder(t *testing.T) {
	mock := newMockAdapter("p", "done")
	var order []string

	first := func(ctx context.Context, req Request, next func(context.Context, Request) (*Response, error)) (*Response, error) {
		order = append(order, "first")
		return next(ctx, req)
	}
	second := func(ctx context.Context, req Request, next func(context.Context, Request) (*Response, error)) (*Response, error) {
		order = append(order, "second")
		return next(ctx, req)
	}

	client := NewClient(
		WithProvider("p", mock),
		WithMiddleware(first, second),
	)

	if _, err := client.Complete(context.Background(), Request{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("middleware ran out of order: %v", order)
	}
}
