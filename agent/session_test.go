package agent

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evanfuller/autoloop/llm"
)

// scriptedAdapter returns canned responses in order, repeating the last
// one when the script runs out.
type scriptedAdapter struct {
	responses []llm.Response
	calls     int
	requests  []llm.Request
}

func (a *scriptedAdapter) Name() string { return "anthropic" }

func (a *scriptedAdapter) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	a.requests = append(a.requests, req)
	idx := a.calls
	if idx >= len(a.responses) {
		idx = len(a.responses) - 1
	}
	a.calls++
	resp := a.responses[idx]
	return &resp, nil
}

func textResponse(text string) llm.Response {
	return llm.Response{
		Message:      llm.AssistantMessage(text),
		FinishReason: llm.FinishReason{Reason: "stop"},
		Usage:        llm.Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15},
	}
}

func toolCallResponse(id, name, args string) llm.Response {
	msg := llm.AssistantMessage("")
	msg.Content = append(msg.Content, llm.ToolCallPart(id, name, json.RawMessage(args)))
	return llm.Response{
		Message:      msg,
		FinishReason: llm.FinishReason{Reason: "tool_calls"},
		Usage:        llm.Usage{InputTokens: 20, OutputTokens: 10, TotalTokens: 30},
	}
}

func newTestSession(t *testing.T, adapter *scriptedAdapter, config *SessionConfig) (*Session, *LocalEnvironment) {
	t.Helper()
	client := llm.NewClient(llm.WithProvider("anthropic", adapter))
	profile := NewAnthropicProfile("claude-sonnet-4-5-20250929")
	env := NewLocalEnvironment(t.TempDir())
	session := NewSession(profile, env, client, config)
	t.Cleanup(session.Close)
	return session, env
}

func TestSubmitPlainResponse(t *testing.T) {
	adapter := &scriptedAdapter{responses: []llm.Response{textResponse("all done")}}
	session, _ := newTestSession(t, adapter, nil)

	require.NoError(t, session.Submit(context.Background(), "do the thing"))

	history := session.History()
	require.Len(t, history, 2)
	assert.Equal(t, TurnUser, history[0].Kind)
	assert.Equal(t, TurnAssistant, history[1].Kind)
	assert.Equal(t, "all done", history[1].Assistant.Content)
	assert.Equal(t, StateIdle, session.State())
}

func TestSubmitExecutesToolCalls(t *testing.T) {
	adapter := &scriptedAdapter{responses: []llm.Response{
		toolCallResponse("call-1", "write_file", `{"file_path":"out.txt","content":"hello"}`),
		textResponse("wrote the file"),
	}}
	session, env := newTestSession(t, adapter, nil)

	require.NoError(t, session.Submit(context.Background(), "create out.txt"))

	content, err := env.ReadFileRaw("out.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", content)

	// user, assistant(tool call), tool results, assistant(text)
	history := session.History()
	require.Len(t, history, 4)
	assert.Equal(t, TurnToolResults, history[2].Kind)
	result := history[2].ToolResults.Results[0]
	assert.Equal(t, "call-1", result.ToolCallID)
	assert.False(t, result.IsError)

	assert.Equal(t, 2, adapter.calls)
	assert.Equal(t, llm.Usage{InputTokens: 30, OutputTokens: 15, TotalTokens: 45}, session.TotalUsage())
}

func TestSubmitUnknownToolReturnsErrorResult(t *testing.T) {
	adapter := &scriptedAdapter{responses: []llm.Response{
		toolCallResponse("call-1", "no_such_tool", `{}`),
		textResponse("giving up"),
	}}
	session, _ := newTestSession(t, adapter, nil)

	require.NoError(t, session.Submit(context.Background(), "try it"))

	history := session.History()
	result := history[2].ToolResults.Results[0]
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content.(string), "Unknown tool")
}

func TestSubmitStopsAtToolRoundLimit(t *testing.T) {
	adapter := &scriptedAdapter{responses: []llm.Response{
		toolCallResponse("call-1", "shell", `{"command":"true"}`),
	}}
	cfg := DefaultSessionConfig()
	cfg.MaxToolRounds = 2
	cfg.EnableLoopDetection = false
	session, _ := newTestSession(t, adapter, &cfg)

	require.NoError(t, session.Submit(context.Background(), "loop forever"))
	assert.Equal(t, 2, adapter.calls)

	var sawLimit bool
	session.Close()
	for event := range session.Events() {
		if event.Kind == EventTurnLimit {
			sawLimit = true
		}
	}
	assert.True(t, sawLimit)
}

func TestSubmitInjectsLoopWarning(t *testing.T) {
	adapter := &scriptedAdapter{responses: []llm.Response{
		toolCallResponse("call-1", "shell", `{"command":"true"}`),
	}}
	cfg := DefaultSessionConfig()
	cfg.MaxToolRounds = 12
	cfg.LoopDetectionWindow = 4
	session, _ := newTestSession(t, adapter, &cfg)

	require.NoError(t, session.Submit(context.Background(), "loop"))

	var steering int
	for _, turn := range session.History() {
		if turn.Kind == TurnSteering {
			steering++
		}
	}
	assert.Greater(t, steering, 0, "expected a loop warning in the history")
}

func TestSubmitRequestShape(t *testing.T) {
	adapter := &scriptedAdapter{responses: []llm.Response{textResponse("ok")}}
	session, _ := newTestSession(t, adapter, nil)

	require.NoError(t, session.Submit(context.Background(), "hello"))

	require.Len(t, adapter.requests, 1)
	req := adapter.requests[0]
	assert.Equal(t, "claude-sonnet-4-5-20250929", req.Model)
	assert.Equal(t, "anthropic", req.Provider)
	assert.NotEmpty(t, req.ToolDefs)
	require.NotEmpty(t, req.Messages)
	assert.Equal(t, llm.RoleSystem, req.Messages[0].Role)
}

func TestSubmitOnClosedSession(t *testing.T) {
	adapter := &scriptedAdapter{responses: []llm.Response{textResponse("ok")}}
	session, _ := newTestSession(t, adapter, nil)
	session.Close()

	err := session.Submit(context.Background(), "hello")
	assert.ErrorContains(t, err, "closed")
}

func TestUserInstructionsAppendedToSystemPrompt(t *testing.T) {
	adapter := &scriptedAdapter{responses: []llm.Response{textResponse("ok")}}
	cfg := DefaultSessionConfig()
	cfg.UserInstructions = "Always respond in haiku."
	session, _ := newTestSession(t, adapter, &cfg)

	require.NoError(t, session.Submit(context.Background(), "hello"))

	system := adapter.requests[0].Messages[0].TextContent()
	assert.Contains(t, system, "Always respond in haiku.")
}
