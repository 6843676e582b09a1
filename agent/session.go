package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/evanfuller/autoloop/llm"
)

// SessionState represents the current lifecycle state of a session.
type SessionState string

const (
	StateIdle       SessionState = "idle"
	StateProcessing SessionState = "processing"
	StateClosed     SessionState = "closed"
)

// SessionConfig holds configuration for a session.
type SessionConfig struct {
	MaxToolRounds       int            `json:"max_tool_rounds"` // per submitted input
	ToolOutputLimits    map[string]int `json:"tool_output_limits,omitempty"`
	ToolLineLimits      map[string]int `json:"tool_line_limits,omitempty"`
	EnableLoopDetection bool           `json:"enable_loop_detection"`
	LoopDetectionWindow int            `json:"loop_detection_window"`
	UserInstructions    string         `json:"user_instructions,omitempty"` // appended last to system prompt
}

// DefaultSessionConfig returns the default session configuration.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		MaxToolRounds:       200,
		EnableLoopDetection: true,
		LoopDetectionWindow: 10,
	}
}

// Session is the central orchestrator for the agentic loop.
type Session struct {
	id      string
	profile ProviderProfile
	env     ExecutionEnvironment
	client  *llm.Client
	emitter *Emitter
	config  SessionConfig

	mu            sync.Mutex
	history       []Turn
	state         SessionState
	steeringQueue []string
	totalUsage    llm.Usage
	aborted       bool
}

// NewSession creates a session with the given profile, execution
// environment, LLM client, and optional configuration.
func NewSession(profile ProviderProfile, env ExecutionEnvironment, client *llm.Client, config *SessionConfig) *Session {
	cfg := DefaultSessionConfig()
	if config != nil {
		cfg = *config
	}

	sessionID := uuid.New().String()
	return &Session{
		id:      sessionID,
		profile: profile,
		env:     env,
		client:  client,
		emitter: NewEmitter(sessionID, 256),
		config:  cfg,
		state:   StateIdle,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns the current session state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// History returns a copy of the conversation history.
func (s *Session) History() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := make([]Turn, len(s.history))
	copy(h, s.history)
	return h
}

// TotalUsage returns the accumulated token usage across all LLM calls.
func (s *Session) TotalUsage() llm.Usage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalUsage
}

// Events returns the event channel for the harness.
func (s *Session) Events() <-chan SessionEvent {
	return s.emitter.Events()
}

// Steer queues a message to be injected after the current tool round.
func (s *Session) Steer(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steeringQueue = append(s.steeringQueue, message)
}

// Abort signals the session to stop after the current tool round.
func (s *Session) Abort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aborted = true
}

// Close terminates the session and releases its event channel.
func (s *Session) Close() {
	s.mu.Lock()
	s.state = StateClosed
	s.mu.Unlock()

	s.emitter.Emit(EventSessionEnd, map[string]interface{}{
		"state": string(StateClosed),
	})
	s.emitter.Close()
}

// Submit processes one input through the agentic loop: call the model,
// run its tool calls, feed results back, repeat until the model answers
// without tool calls or a limit is reached.
func (s *Session) Submit(ctx context.Context, input string) error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return fmt.Errorf("session is closed")
	}
	s.state = StateProcessing
	s.aborted = false
	s.history = append(s.history, newUserTurn(input))
	s.mu.Unlock()

	s.emitter.Emit(EventUserInput, map[string]interface{}{"content": input})
	s.drainSteering()

	roundCount := 0
	for {
		// 1. Check limits and abort/cancellation signals.
		s.mu.Lock()
		aborted := s.aborted
		s.mu.Unlock()

		if roundCount >= s.config.MaxToolRounds {
			s.emitter.Emit(EventTurnLimit, map[string]interface{}{"round": roundCount})
			break
		}
		if aborted {
			break
		}
		select {
		case <-ctx.Done():
			s.emitter.Emit(EventError, map[string]interface{}{"error": "context cancelled"})
			s.setState(StateIdle)
			return ctx.Err()
		default:
		}

		// 2. Build the request from the profile and conversation history.
		response, err := s.client.Complete(ctx, s.buildRequest())
		if err != nil {
			s.emitter.Emit(EventError, map[string]interface{}{"error": err.Error()})
			s.setState(StateIdle)
			if !llm.IsRetryable(err) {
				return fmt.Errorf("unrecoverable LLM error: %w", err)
			}
			return fmt.Errorf("LLM error after retries: %w", err)
		}

		// 3. Record the assistant turn.
		turn := newAssistantTurn(*response)
		s.mu.Lock()
		s.history = append(s.history, turn)
		s.totalUsage = s.totalUsage.Add(response.Usage)
		s.mu.Unlock()

		s.emitter.Emit(EventAssistantMessage, map[string]interface{}{
			"text":      response.Text(),
			"reasoning": response.Reasoning(),
		})

		s.checkContextUsage()

		// 4. No tool calls means the model is done with this input.
		toolCalls := turn.Assistant.ToolCalls
		if len(toolCalls) == 0 {
			break
		}

		// 5. Execute the tool calls and record results.
		roundCount++
		results := s.executeToolCalls(ctx, toolCalls)
		s.mu.Lock()
		s.history = append(s.history, newToolResultsTurn(results))
		s.mu.Unlock()

		// 6. Inject steering queued during tool execution.
		s.drainSteering()

		// 7. Warn the model when it is stuck repeating itself.
		if s.config.EnableLoopDetection && DetectLoop(s.History(), s.config.LoopDetectionWindow) {
			warning := fmt.Sprintf("Loop detected: the last %d tool calls follow a repeating pattern. Try a different approach.",
				s.config.LoopDetectionWindow)
			s.mu.Lock()
			s.history = append(s.history, newSteeringTurn(warning))
			s.mu.Unlock()
			s.emitter.Emit(EventLoopDetection, map[string]interface{}{"message": warning})
		}
	}

	s.setState(StateIdle)
	return nil
}

func (s *Session) setState(state SessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateClosed {
		s.state = state
	}
}

func (s *Session) buildRequest() llm.Request {
	projectDocs := DiscoverProjectDocs(s.env.WorkingDirectory(), s.profile.ID())
	systemPrompt := s.profile.BuildSystemPrompt(s.env, projectDocs)
	if s.config.UserInstructions != "" {
		systemPrompt += "\n\n# User Instructions\n\n" + s.config.UserInstructions
	}

	messages := append([]llm.Message{llm.SystemMessage(systemPrompt)}, historyToMessages(s.History())...)

	return llm.Request{
		Model:           s.profile.ModelID(),
		Messages:        messages,
		ToolDefs:        s.profile.ToolRegistry().Definitions(),
		ToolChoice:      &llm.ToolChoice{Mode: "auto"},
		Provider:        s.profile.ID(),
		ProviderOptions: s.profile.ProviderOptions(),
	}
}

// drainSteering injects all queued steering messages into the history.
func (s *Session) drainSteering() {
	s.mu.Lock()
	messages := s.steeringQueue
	s.steeringQueue = nil
	s.mu.Unlock()

	for _, msg := range messages {
		s.mu.Lock()
		s.history = append(s.history, newSteeringTurn(msg))
		s.mu.Unlock()
		s.emitter.Emit(EventSteeringInjected, map[string]interface{}{"content": msg})
	}
}

// executeToolCalls dispatches tool calls, in parallel when the provider
// supports issuing them that way.
func (s *Session) executeToolCalls(ctx context.Context, toolCalls []llm.ToolCall) []llm.ToolResult {
	results := make([]llm.ToolResult, len(toolCalls))

	if s.profile.SupportsParallelToolCalls() && len(toolCalls) > 1 {
		var wg sync.WaitGroup
		for i, tc := range toolCalls {
			wg.Add(1)
			go func(idx int, call llm.ToolCall) {
				defer wg.Done()
				results[idx] = s.executeSingleTool(ctx, call)
			}(i, tc)
		}
		wg.Wait()
		return results
	}

	for i, tc := range toolCalls {
		results[i] = s.executeSingleTool(ctx, tc)
	}
	return results
}

// executeSingleTool runs the tool pipeline: lookup, execute, truncate,
// emit, return.
func (s *Session) executeSingleTool(ctx context.Context, toolCall llm.ToolCall) llm.ToolResult {
	s.emitter.Emit(EventToolCallStart, map[string]interface{}{
		"tool_name": toolCall.Name,
		"call_id":   toolCall.ID,
	})

	tool := s.profile.ToolRegistry().Get(toolCall.Name)
	if tool == nil {
		return s.toolError(toolCall, fmt.Sprintf("Unknown tool: %s", toolCall.Name))
	}

	rawOutput, err := tool.Run(ctx, toolCall.Arguments, s.env)
	if err != nil {
		return s.toolError(toolCall, fmt.Sprintf("Tool error (%s): %v", toolCall.Name, err))
	}

	truncated := TruncateToolOutput(rawOutput, toolCall.Name, s.config.ToolOutputLimits, s.config.ToolLineLimits)

	// The event stream carries the full output; only the model sees the
	// truncated version.
	s.emitter.Emit(EventToolCallEnd, map[string]interface{}{
		"call_id": toolCall.ID,
		"output":  rawOutput,
	})

	return llm.ToolResult{
		ToolCallID: toolCall.ID,
		Content:    truncated,
		IsError:    false,
	}
}

func (s *Session) toolError(toolCall llm.ToolCall, msg string) llm.ToolResult {
	s.emitter.Emit(EventToolCallEnd, map[string]interface{}{
		"call_id": toolCall.ID,
		"error":   msg,
	})
	return llm.ToolResult{
		ToolCallID: toolCall.ID,
		Content:    msg,
		IsError:    true,
	}
}

// checkContextUsage emits a warning when approximate context usage
// exceeds 80% of the profile's window.
func (s *Session) checkContextUsage() {
	history := s.History()

	totalChars := 0
	for _, turn := range history {
		totalChars += len(turn.TextContent())
		if turn.Kind == TurnToolResults && turn.ToolResults != nil {
			for _, r := range turn.ToolResults.Results {
				if str, ok := r.Content.(string); ok {
					totalChars += len(str)
				}
			}
		}
	}

	contextWindow := s.profile.ContextWindowSize()
	approxTokens := totalChars / 4
	if approxTokens > int(float64(contextWindow)*0.8) {
		pct := int(float64(approxTokens) / float64(contextWindow) * 100)
		s.emitter.Emit(EventWarning, map[string]interface{}{
			"message": fmt.Sprintf("Context usage at ~%d%% of context window", pct),
		})
	}
}
