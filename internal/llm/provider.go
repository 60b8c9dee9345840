// Package llm abstracts the chat model providers used for claim extraction,
// verification and narrative refinement.
package llm

import "context"

// ChunkType distinguishes the two token streams a model can emit
type ChunkType string

const (
	// ChunkText is regular response content
	ChunkText ChunkType = "text"
	// ChunkThought is raw reasoning emitted alongside the response,
	// where the provider exposes it
	ChunkThought ChunkType = "thought"
)

// Chunk is one streamed fragment of a model response
type Chunk struct {
	Type ChunkType
	Text string
}

// ChatRequest is one prompt against a provider
type ChatRequest struct {
	// System is the system/instruction message (optional)
	System string

	// Prompt is the user message
	Prompt string

	// Model overrides the configured model when set
	Model string

	// MaxTokens limits the response length (0 = provider default)
	MaxTokens int

	// Temperature controls sampling (0 uses the configured default)
	Temperature float64

	// JSONResponse asks for a JSON-typed response where supported
	JSONResponse bool
}

// StreamFunc receives chunks as they arrive. Returning an error aborts the
// stream and is propagated to the Stream caller.
type StreamFunc func(Chunk) error

// Provider defines the interface for chat model providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Complete runs the request to completion and returns the full text
	Complete(ctx context.Context, req ChatRequest) (string, error)

	// Stream runs the request, delivering chunks as they arrive
	Stream(ctx context.Context, req ChatRequest, fn StreamFunc) error

	// IsAvailable checks if the provider is configured and reachable
	IsAvailable(ctx context.Context) bool
}

// Config holds provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama", ""
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI/Anthropic
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama, proxies)
	BaseURL string

	// Timeout for API requests, in seconds
	Timeout int

	// MaxTokens for response generation
	MaxTokens int

	// Temperature default for requests that leave it zero
	Temperature float64
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:    "",
		Model:       "",
		Timeout:     120,
		MaxTokens:   2048,
		Temperature: 0.1,
	}
}
