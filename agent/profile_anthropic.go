package agent

import (
	"fmt"
	"strings"
	"time"
)

// AnthropicProfile provides Claude-aligned tools and system prompts for
// Anthropic models.
type AnthropicProfile struct {
	BaseProfile
}

// NewAnthropicProfile creates a profile for Anthropic models.
func NewAnthropicProfile(model string) *AnthropicProfile {
	p := &AnthropicProfile{
		BaseProfile: BaseProfile{
			providerID:                "anthropic",
			model:                     model,
			registry:                  NewRegistry(),
			supportsParallelToolCalls: true,
			contextWindowSize:         200000,
		},
	}

	// edit_file with old_string/new_string is the native editing format.
	RegisterCoreTools(p.registry, 120*time.Second, 10*time.Minute)

	return p
}

// BuildSystemPrompt constructs the Claude-aligned system prompt.
func (p *AnthropicProfile) BuildSystemPrompt(env ExecutionEnvironment, projectDocs string) string {
	var sb strings.Builder

	sb.WriteString(anthropicBasePrompt)
	sb.WriteString("\n\n")

	sb.WriteString(BuildEnvironmentContext(env, p.model))
	sb.WriteString("\n\n")

	if gitCtx := GetGitContext(env.WorkingDirectory()); gitCtx != "" {
		sb.WriteString(gitCtx)
		sb.WriteString("\n\n")
	}

	sb.WriteString("# Available Tools\n\n")
	for _, def := range p.registry.Definitions() {
		fmt.Fprintf(&sb, "## %s\n%s\n\n", def.Name, def.Description)
	}

	if projectDocs != "" {
		sb.WriteString("# Project Instructions\n\n")
		sb.WriteString(projectDocs)
		sb.WriteString("\n\n")
	}

	return sb.String()
}

// ProviderOptions returns Anthropic-specific request options.
func (p *AnthropicProfile) ProviderOptions() map[string]interface{} {
	return map[string]interface{}{
		"anthropic": map[string]interface{}{
			"beta_headers": []string{"extended-thinking-2025-04-11"},
		},
	}
}

const anthropicBasePrompt = `You are an autonomous coding agent working through a project's feature queue. You read files, edit code, run commands, and iterate until each feature is verified working.

# Core Principles

- Read files before editing them. Understand existing code before suggesting modifications.
- Prefer editing existing files over creating new ones.
- Use the edit_file tool for modifications. The old_string parameter must be an exact match of text in the file and must be unique. If old_string appears multiple times, provide more surrounding context to make it unique.
- Keep changes minimal and focused. Only make changes that are directly requested or clearly necessary.
- After making changes, verify them by reading the modified file or running relevant tests.
- When running shell commands, prefer short-running commands. Use timeouts for potentially long-running operations.

# Working the Feature Queue

- Use feature_next to get the next feature to implement.
- Verify every step of a feature before calling feature_mark_passing. Never mark a feature passing on the assumption that it works.
- If a feature cannot be implemented yet because it depends on missing functionality, use feature_skip and move on.
- Occasionally re-test passing features with feature_list (random=true, passes=true) to catch regressions.

# Error Handling

- If a tool call fails, analyze the error and try a different approach.
- If edit_file fails because old_string is not found, re-read the file to get the current content.
- If edit_file fails because old_string is not unique, provide more context lines.
- If a command fails, inspect the output and fix the issue.

# Best Practices

- Write clean, idiomatic code that follows the project's existing style.
- Do not introduce security vulnerabilities.
- Do not add unnecessary dependencies.
- Test changes when possible.`
