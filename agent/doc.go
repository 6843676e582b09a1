// Package agent implements the autonomous coding sessions that drive a
// project toward a passing feature list.
//
// A Session pairs a model with developer tools and runs the turn loop:
// call the model, execute the tool calls it makes, feed the results back,
// repeat until the model stops calling tools or a limit is hit. On top of
// the core file and shell tools, sessions get feature tools backed by the
// local feature API, so the model can pull its next work item and record
// what passes.
//
// The package is organized around these concepts:
//
//   - Session: conversation state, tool dispatch, events, and limits.
//   - ProviderProfile: provider-aligned tool and prompt configuration.
//   - ExecutionEnvironment: where tools run (the project directory).
//   - Registry: registration and dispatch of tool definitions.
//   - Emitter: typed event stream for the harness.
//
// Quick start:
//
//	profile := agent.NewAnthropicProfile(llm.DefaultModel)
//	agent.RegisterFeatureTools(profile.ToolRegistry(), apiClient)
//	env := agent.NewLocalEnvironment("/path/to/project")
//	session := agent.NewSession(profile, env, llmClient, nil)
//	defer session.Close()
//
//	if err := session.Submit(ctx, codingPrompt); err != nil {
//	    log.Fatal(err)
//	}
package agent
