package agent

import (
	"fmt"
	"strings"
	"time"
)

// OpenAIProfile provides tools and system prompts for OpenAI models.
type OpenAIProfile struct {
	BaseProfile
}

// NewOpenAIProfile creates a profile for OpenAI models.
func NewOpenAIProfile(model string) *OpenAIProfile {
	p := &OpenAIProfile{
		BaseProfile: BaseProfile{
			providerID:                "openai",
			model:                     model,
			registry:                  NewRegistry(),
			supportsParallelToolCalls: true,
			contextWindowSize:         1047576,
		},
	}

	RegisterCoreTools(p.registry, 10*time.Second, 10*time.Minute)

	return p
}

// BuildSystemPrompt constructs the OpenAI-aligned system prompt.
func (p *OpenAIProfile) BuildSystemPrompt(env ExecutionEnvironment, projectDocs string) string {
	var sb strings.Builder

	sb.WriteString(openaiBasePrompt)
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

const openaiBasePrompt = `You are an autonomous coding agent working through a project's feature queue. You read files, edit code, run commands, and iterate until each feature is verified working.

# Core Principles

- Read files before editing them. Understand existing code before suggesting modifications.
- Use edit_file for modifications to existing files. The old_string must match the file exactly and be unique; add surrounding context if it is not.
- Use write_file only for creating entirely new files.
- Keep changes minimal and focused. Only make changes that are directly requested or clearly necessary.
- After making changes, verify them by reading the modified file or running relevant tests.

# Working the Feature Queue

- Use feature_next to get the next feature to implement.
- Verify every step of a feature before calling feature_mark_passing.
- If a feature cannot be implemented yet because it depends on missing functionality, use feature_skip and move on.
- Occasionally re-test passing features with feature_list (random=true, passes=true) to catch regressions.

# Tool Usage Guidelines

- Use shell for running commands (10s default timeout).
- Use grep to search file contents by pattern.
- Use glob to find files by name pattern.

# Error Handling

- If a tool call fails, analyze the error and try a different approach.
- If edit_file fails because old_string is not found, re-read the file to get the current content.
- If a command fails, inspect the output and fix the issue.`
