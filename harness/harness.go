package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/evanfuller/autoloop/agent"
	"github.com/evanfuller/autoloop/feature"
	"github.com/evanfuller/autoloop/featureapi"
	"github.com/evanfuller/autoloop/llm"
)

// Harness owns one run of the autonomous coding loop.
type Harness struct {
	cfg    Config
	logger *slog.Logger
	out    io.Writer

	// newLLMClient is swappable for tests.
	newLLMClient func() *llm.Client
}

// New creates a harness. A nil logger discards log output.
func New(cfg Config, logger *slog.Logger) *Harness {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Harness{
		cfg:          cfg,
		logger:       logger,
		out:          os.Stdout,
		newLLMClient: llm.NewClientFromEnv,
	}
}

// Run executes up to MaxIterations agent sessions against the project,
// stopping early once every feature passes.
func (h *Harness) Run(ctx context.Context) error {
	store, err := feature.Open(h.cfg.ProjectDir)
	if err != nil {
		return err
	}
	defer store.Close()

	// The feature API runs in-process for the lifetime of the run.
	apiCtx, stopAPI := context.WithCancel(ctx)
	defer stopAPI()

	server := featureapi.NewServer(store, h.logger)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe(apiCtx, h.cfg.APIAddr)
	}()

	client := featureapi.NewClient(h.cfg.APIBaseURL())
	if err := h.waitForAPI(ctx, client); err != nil {
		return err
	}

	llmClient := h.newLLMClient()
	defer llmClient.Close()

	tracker := NewTracker(client, h.cfg.ProjectDir, h.cfg.WebhookURL, h.out)

	for i := 1; i <= h.cfg.MaxIterations; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-serverErr:
			return fmt.Errorf("feature API stopped: %w", err)
		default:
		}

		isInitializer := !feature.HasFeatures(h.cfg.ProjectDir)
		tracker.PrintSessionHeader(i, isInitializer)

		if err := h.runSession(ctx, llmClient, client, isInitializer); err != nil {
			return fmt.Errorf("session %d: %w", i, err)
		}

		passing, total, err := tracker.Summary(ctx)
		if err != nil {
			h.logger.Warn("progress summary failed", "error", err)
			continue
		}
		if total > 0 && passing == total {
			h.logger.Info("all features passing, stopping early",
				"iteration", i, "passing", passing, "total", total)
			return nil
		}
	}

	h.logger.Info("iteration budget exhausted", "max_iterations", h.cfg.MaxIterations)
	return nil
}

// runSession runs one agent session to completion.
func (h *Harness) runSession(ctx context.Context, llmClient *llm.Client, apiClient *featureapi.Client, isInitializer bool) error {
	profile := h.profileForModel(h.cfg.Model)
	agent.RegisterFeatureTools(profile.ToolRegistry(), apiClient)

	env := agent.NewLocalEnvironment(h.cfg.ProjectDir)
	session := agent.NewSession(profile, env, llmClient, nil)
	defer session.Close()

	done := make(chan struct{})
	go h.logEvents(session, done)

	prompt := codingPrompt
	if isInitializer {
		prompt = initializerPrompt
	}

	err := session.Submit(ctx, prompt)
	session.Close()
	<-done

	usage := session.TotalUsage()
	h.logger.Info("session finished",
		"session_id", session.ID(),
		"initializer", isInitializer,
		"input_tokens", usage.InputTokens,
		"output_tokens", usage.OutputTokens)
	return err
}

// profileForModel picks the provider profile from the model catalog,
// defaulting to Anthropic for unknown models.
func (h *Harness) profileForModel(model string) agent.ProviderProfile {
	if info := llm.GetModelInfo(model); info != nil && info.Provider == "openai" {
		return agent.NewOpenAIProfile(model)
	}
	return agent.NewAnthropicProfile(model)
}

// logEvents drains a session's event stream into the structured log.
func (h *Harness) logEvents(session *agent.Session, done chan<- struct{}) {
	defer close(done)
	for event := range session.Events() {
		switch event.Kind {
		case agent.EventToolCallStart:
			h.logger.Info("tool call", "tool", event.Data["tool_name"], "session_id", event.SessionID)
		case agent.EventAssistantMessage:
			if text, _ := event.Data["text"].(string); text != "" {
				fmt.Fprintln(h.out, text)
			}
		case agent.EventLoopDetection, agent.EventTurnLimit, agent.EventWarning:
			h.logger.Warn(string(event.Kind), "data", event.Data, "session_id", event.SessionID)
		case agent.EventError:
			h.logger.Error("session error", "data", event.Data, "session_id", event.SessionID)
		}
	}
}

// waitForAPI polls the health endpoint until the in-process server is up.
func (h *Harness) waitForAPI(ctx context.Context, client *featureapi.Client) error {
	deadline := time.Now().Add(5 * time.Second)
	for {
		if err := client.Health(ctx); err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("feature API did not become healthy at %s", h.cfg.APIBaseURL())
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}
