// Package llmprovider wraps the three language-model backends the
// pipeline can call through one small interface: OpenAI, Anthropic,
// and a local Ollama server. Every engine that needs an LLM call
// (topic extraction, claim selection, query optimization,
// verification) goes through Complete and gets back raw text, stripping
// and parsing any JSON itself.
package llmprovider

import (
	"context"
	"time"
)

// Request is one completion call.
type Request struct {
	Prompt      string
	System      string
	Temperature float64
	MaxTokens   int
	Model       string
	Timeout     time.Duration
}

// Provider is the abstract LLM capability consumed by the engines. It
// must tolerate and have its callers strip markdown code fences from
// JSON-shaped responses, and must surface transport failures as typed
// errors distinct from parse failures.
type Provider interface {
	// Name returns the provider's identifier (openai, anthropic, ollama).
	Name() string

	// Complete sends req and returns the model's raw text response.
	Complete(ctx context.Context, req Request) (string, error)

	// IsAvailable performs a lightweight reachability/credentials check.
	IsAvailable(ctx context.Context) bool
}

// Config configures a Provider, shared across all three backends so a
// single internal/config.LLMConfig can build any of them.
type Config struct {
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	HTTPProxy   string
	HTTPSProxy  string
	NoProxy     string
}

// DefaultConfig returns a baseline Config (temperature 0.2, 500 max
// tokens, 30s timeout). The providers do not read it: each applies its
// own fallback when a Config field is left zero.
func DefaultConfig() Config {
	return Config{
		Temperature: 0.2,
		MaxTokens:   500,
		Timeout:     30 * time.Second,
	}
}
