// Package llm provides the provider-agnostic LLM client used by the
// autoloop agent. It wraps the gollm library (github.com/teilomillet/gollm)
// behind a small adapter interface so the agent loop is insulated from
// provider-specific request and error shapes.
//
// # Architecture
//
//   - ProviderAdapter: the contract every provider backend implements.
//   - Client: provider routing plus a middleware chain around Complete.
//   - GollmAdapter: the gollm-backed adapter for anthropic and openai.
//   - Retry: exponential backoff with jitter, wired as client middleware.
//   - Catalog: known model identifiers and their capabilities.
//
// # Quick Start
//
//	adapter, _ := llm.NewGollmAdapter("anthropic", os.Getenv("ANTHROPIC_API_KEY"))
//	client := llm.NewClient(
//	    llm.WithProvider("anthropic", adapter),
//	    llm.WithMiddleware(llm.RetryMiddleware(llm.DefaultRetryPolicy())),
//	)
//
//	resp, err := client.Complete(ctx, llm.Request{
//	    Model:    "claude-sonnet-4-5-20250929",
//	    Messages: []llm.Message{llm.UserMessage("Hello")},
//	})
package llm
