package agent

// ProviderProfile defines the provider-aligned tool and prompt
// configuration. Each profile mirrors a model family's native agent
// conventions.
type ProviderProfile interface {
	// ID returns the provider identifier (e.g., "anthropic", "openai").
	ID() string

	// ModelID returns the model identifier.
	ModelID() string

	// ToolRegistry returns the tool registry for this profile.
	ToolRegistry() *Registry

	// BuildSystemPrompt constructs the full system prompt from environment
	// context and project documentation.
	BuildSystemPrompt(env ExecutionEnvironment, projectDocs string) string

	// ProviderOptions returns provider-specific request options.
	ProviderOptions() map[string]interface{}

	SupportsParallelToolCalls() bool
	ContextWindowSize() int
}

// BaseProfile provides common profile fields and default implementations.
type BaseProfile struct {
	providerID                string
	model                     string
	registry                  *Registry
	supportsParallelToolCalls bool
	contextWindowSize         int
}

func (p *BaseProfile) ID() string              { return p.providerID }
func (p *BaseProfile) ModelID() string         { return p.model }
func (p *BaseProfile) ToolRegistry() *Registry { return p.registry }

func (p *BaseProfile) ProviderOptions() map[string]interface{} {
	return nil
}

func (p *BaseProfile) SupportsParallelToolCalls() bool { return p.supportsParallelToolCalls }
func (p *BaseProfile) ContextWindowSize() int          { return p.contextWindowSize }
