package llmprovider

import (
	"fmt"
	"os"
	"strings"

	"github.com/ppiankov/convoengine/internal/config"
)

// NewProvider builds a Provider from config. An empty Provider name
// returns (nil, nil): the LLM is disabled and callers must treat that
// as "no provider configured" rather than an error.
func NewProvider(config Config) (Provider, error) {
	switch strings.ToLower(config.Provider) {
	case "openai":
		return NewOpenAIProvider(config)
	case "anthropic", "claude":
		return NewAnthropicProvider(config)
	case "ollama":
		return NewOllamaProvider(config)
	case "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai, anthropic, ollama)", config.Provider)
	}
}

// FromAppConfig builds a llmprovider.Config from the application's LLM
// and HTTP configuration sections, resolving the API key from the
// provider-appropriate environment variable.
func FromAppConfig(llm config.LLMConfig, http config.HTTPConfig) Config {
	apiKey := llm.APIKey
	if apiKey == "" {
		switch strings.ToLower(llm.Provider) {
		case "openai":
			apiKey = os.Getenv("OPENAI_API_KEY")
		case "anthropic", "claude":
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	}

	baseURL := llm.BaseURL
	if baseURL == "" && strings.ToLower(llm.Provider) == "ollama" {
		baseURL = os.Getenv("OLLAMA_BASE_URL")
	}

	return Config{
		Provider:    llm.Provider,
		Model:       llm.Model,
		APIKey:      apiKey,
		BaseURL:     baseURL,
		Temperature: llm.Temperature,
		MaxTokens:   llm.MaxTokens,
		Timeout:     http.Timeout,
		HTTPProxy:   http.HTTPProxy,
		HTTPSProxy:  http.HTTPSProxy,
		NoProxy:     http.NoProxy,
	}
}
