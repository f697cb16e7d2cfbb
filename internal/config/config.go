// Package config holds the pipeline's configuration tree and its
// defaults, loaded the way the teacher repo loads configuration: a
// nested struct with a Default constructor, overlaid by viper
// from a YAML file and CONVO_-prefixed environment variables, with
// CLI flags bound on top in cmd/conversation.
package config

import "time"

// Config is the root configuration for the pipeline.
type Config struct {
	Topic  TopicConfig  `yaml:"topic" mapstructure:"topic"`
	Fact   FactConfig   `yaml:"fact" mapstructure:"fact"`
	Search SearchConfig `yaml:"search" mapstructure:"search"`
	LLM    LLMConfig    `yaml:"llm" mapstructure:"llm"`
	HTTP   HTTPConfig   `yaml:"http" mapstructure:"http"`

	// TranscriptBufferSize bounds the rolling transcript buffer (most
	// recent N segments retained).
	TranscriptBufferSize int `yaml:"transcript_buffer_size" mapstructure:"transcript_buffer_size"`

	// Debug enables fail-fast behavior: an InvariantError panics
	// instead of only being logged and surfaced as a notification.
	Debug bool `yaml:"debug" mapstructure:"debug"`
}

// TopicConfig configures the Topic Engine.
type TopicConfig struct {
	UpdateThreshold    int     `yaml:"update_threshold" mapstructure:"update_threshold"`
	SimilarityThreshold float64 `yaml:"similarity_threshold" mapstructure:"similarity_threshold"`
	SimilarityKind     string  `yaml:"similarity_kind" mapstructure:"similarity_kind"` // "embedding" | "jaccard"
	ImageKeywordLimit  int     `yaml:"image_keyword_limit" mapstructure:"image_keyword_limit"`
}

// FactConfig configures claim selection and the verification worker.
type FactConfig struct {
	SelectionBatchSize  int           `yaml:"selection_batch_size" mapstructure:"selection_batch_size"`
	MaxClaimsPerBatch   int           `yaml:"max_claims_per_batch" mapstructure:"max_claims_per_batch"`
	RateLimit           time.Duration `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// SearchConfig configures the web search adapter.
type SearchConfig struct {
	MaxResults   int      `yaml:"max_results" mapstructure:"max_results"`
	SafeSearch   string   `yaml:"safesearch" mapstructure:"safesearch"` // off|moderate|strict
	Region       string   `yaml:"region" mapstructure:"region"`
	URLBlocklist []string `yaml:"url_blocklist" mapstructure:"url_blocklist"`
	APIKey       string   `yaml:"-" mapstructure:"-"`

	// HostRequestsPerSecond and HostBurst pace evidence-retrieval calls
	// into the search provider, one token bucket shared across hosts.
	HostRequestsPerSecond float64 `yaml:"host_requests_per_second" mapstructure:"host_requests_per_second"`
	HostBurst             int     `yaml:"host_burst" mapstructure:"host_burst"`
}

// LLMConfig configures the language-model adapter.
type LLMConfig struct {
	Provider    string  `yaml:"provider" mapstructure:"provider"` // openai|anthropic|ollama
	Model       string  `yaml:"model" mapstructure:"model"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	APIKey      string  `yaml:"-" mapstructure:"-"`
}

// HTTPConfig configures outbound HTTP clients shared by the adapters.
type HTTPConfig struct {
	Timeout    time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent  string        `yaml:"user_agent" mapstructure:"user_agent"`
	HTTPProxy  string        `yaml:"http_proxy" mapstructure:"http_proxy"`
	HTTPSProxy string        `yaml:"https_proxy" mapstructure:"https_proxy"`
	NoProxy    string        `yaml:"no_proxy" mapstructure:"no_proxy"`
}

// Default returns the configuration with every default named in the
// specification.
func Default() Config {
	return Config{
		Topic: TopicConfig{
			UpdateThreshold:     5,
			SimilarityThreshold: 0.7,
			SimilarityKind:      "embedding",
			ImageKeywordLimit:   3,
		},
		Fact: FactConfig{
			SelectionBatchSize: 10,
			MaxClaimsPerBatch:  2,
			RateLimit:          10 * time.Second,
		},
		Search: SearchConfig{
			MaxResults: 5,
			SafeSearch: "strict",
			Region:     "wt-wt",
			URLBlocklist: []string{
				"porn", "xxx", "sex", "adult", "xvideos", "pornhub",
				"xhamster", "redtube", "youporn", "tube8", "spankbang",
				"xnxx", "onlyfans", "escort", "casino", "gambling",
			},
			HostRequestsPerSecond: 2,
			HostBurst:             3,
		},
		LLM: LLMConfig{
			Provider:    "",
			Temperature: 0.2,
			MaxTokens:   500,
		},
		HTTP: HTTPConfig{
			Timeout:   30 * time.Second,
			UserAgent: "convoengine/0.1 (+https://github.com/ppiankov/convoengine)",
		},
		TranscriptBufferSize: 100,
		Debug:                false,
	}
}
