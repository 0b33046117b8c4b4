// Package config loads application configuration with multi-source priority.
//
// Sources, highest to lowest:
//  1. Environment variables (SLABBOT_* overrides, secrets)
//  2. Config file (~/.slabbot/config.yaml or ./config.yaml)
//  3. Defaults
//
// Categories:
//   - KB: location of the knowledge-base document
//   - Search: retrieval mode, result caps, similarity threshold
//   - Vector: similarity-search RPC and embedding endpoints
//   - Chat: answer-generation endpoint, system prompt, temperature
//   - Server: listen address, rate limiting, proxy trust
//   - Tracing: optional OTLP export to a local agent
//
// Sensitive values (API keys) are masked in MarshalJSON and String.
// Validation is fail-fast with sentinel errors usable via errors.Is.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Retrieval modes accepted in Config.Search.Mode.
const (
	ModeLexical = "lexical"
	ModeVector  = "vector"
)

// Sentinel errors for configuration validation.
var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingKBURL indicates no knowledge-base document URL is set.
	ErrMissingKBURL = errors.New("missing kb url")

	// ErrInvalidMode indicates an unknown retrieval mode.
	ErrInvalidMode = errors.New("invalid retrieval mode")

	// ErrInvalidMaxResults indicates the result cap is out of range.
	ErrInvalidMaxResults = errors.New("invalid max results")

	// ErrInvalidThreshold indicates the similarity threshold is out of [0,1].
	ErrInvalidThreshold = errors.New("invalid match threshold")

	// ErrMissingVectorRPC indicates vector mode is selected without an RPC URL.
	ErrMissingVectorRPC = errors.New("missing vector rpc url")

	// ErrMissingEmbedURL indicates vector mode is selected without an
	// embedding endpoint.
	ErrMissingEmbedURL = errors.New("missing embed url")

	// ErrMissingChatEndpoint indicates no answer-generation endpoint is set.
	ErrMissingChatEndpoint = errors.New("missing chat endpoint")

	// ErrInvalidTemperature indicates the sampling temperature is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidRateLimit indicates a non-positive server rate limit.
	ErrInvalidRateLimit = errors.New("invalid rate limit")
)

// Defaults that callers may also reference directly.
const (
	// DefaultMaxResults caps ranked retrieval output.
	DefaultMaxResults = 10

	// DefaultMatchThreshold is deliberately low to cast a wide net; the
	// engine re-truncates locally after ranking.
	DefaultMatchThreshold = 0.1

	// DefaultTemperature keeps answers grounded in the provided context.
	DefaultTemperature = 0.0

	// DefaultAddr is the default HTTP listen address.
	DefaultAddr = "127.0.0.1:8480"
)

// DefaultSystemPrompt is product copy, not engineering: it is shipped as a
// plain configuration string and carries no contract with the retrieval or
// streaming code.
const DefaultSystemPrompt = `You are the support assistant for CounterGo, Systemize, and Inventory.

CORE RULES:
- Use ONLY the KB articles provided in the user message
- 2-4 sentences maximum unless complexity requires more
- If the KB doesn't cover it, say so and point the user at support
- Compressed prose only, no tutorial format`

// SearchConfig selects and tunes the retrieval engine.
type SearchConfig struct {
	Mode            string   `mapstructure:"mode" json:"mode"`
	MaxResults      int      `mapstructure:"max_results" json:"max_results"`
	MatchThreshold  float64  `mapstructure:"match_threshold" json:"match_threshold"`
	ProductKeywords []string `mapstructure:"product_keywords" json:"product_keywords"`

	// LexicalFallback retries a failed vector retrieval with the lexical
	// scorer. This is caller policy, not engine behavior; the engine itself
	// always surfaces retrieval failures.
	LexicalFallback bool `mapstructure:"lexical_fallback" json:"lexical_fallback"`
}

// VectorConfig points at the similarity-search RPC and the embedding
// endpoint. Both paths must use the same embedding model as whatever
// populated the index; a mismatch silently degrades every similarity score.
type VectorConfig struct {
	RPCURL   string `mapstructure:"rpc_url" json:"rpc_url"`
	APIKey   string `mapstructure:"api_key" json:"api_key"` // SENSITIVE: masked in MarshalJSON
	EmbedURL string `mapstructure:"embed_url" json:"embed_url"`
}

// ChatConfig points at the answer-generation endpoint.
type ChatConfig struct {
	Endpoint     string  `mapstructure:"endpoint" json:"endpoint"`
	SystemPrompt string  `mapstructure:"system_prompt" json:"system_prompt"`
	Temperature  float64 `mapstructure:"temperature" json:"temperature"`
}

// ServerConfig tunes the HTTP surface.
type ServerConfig struct {
	Addr       string  `mapstructure:"addr" json:"addr"`
	RateLimit  float64 `mapstructure:"rate_limit" json:"rate_limit"` // tokens per second, per IP
	RateBurst  int     `mapstructure:"rate_burst" json:"rate_burst"`
	TrustProxy bool    `mapstructure:"trust_proxy" json:"trust_proxy"`
}

// TracingConfig enables OTLP trace export to a local agent.
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled" json:"enabled"`
	AgentHost   string `mapstructure:"agent_host" json:"agent_host"`
	Environment string `mapstructure:"environment" json:"environment"`
	ServiceName string `mapstructure:"service_name" json:"service_name"`
}

// Config is the root application configuration.
type Config struct {
	KBURL string `mapstructure:"kb_url" json:"kb_url"`

	Search  SearchConfig  `mapstructure:"search" json:"search"`
	Vector  VectorConfig  `mapstructure:"vector" json:"vector"`
	Chat    ChatConfig    `mapstructure:"chat" json:"chat"`
	Server  ServerConfig  `mapstructure:"server" json:"server"`
	Tracing TracingConfig `mapstructure:"tracing" json:"tracing"`

	LogLevel string `mapstructure:"log_level" json:"log_level"`
	LogJSON  bool   `mapstructure:"log_json" json:"log_json"`
}

// Load reads configuration with priority env > file > defaults and
// validates it before returning.
func Load() (*Config, error) {
	v := viper.New()

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}
	configDir := filepath.Join(home, ".slabbot")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine; fall back to defaults and env.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("search.mode", ModeLexical)
	v.SetDefault("search.max_results", DefaultMaxResults)
	v.SetDefault("search.match_threshold", DefaultMatchThreshold)
	v.SetDefault("search.product_keywords", []string{"systemize", "inventory", "countergo"})
	v.SetDefault("search.lexical_fallback", false)

	v.SetDefault("chat.endpoint", "/api/chat")
	v.SetDefault("chat.system_prompt", DefaultSystemPrompt)
	v.SetDefault("chat.temperature", DefaultTemperature)

	v.SetDefault("server.addr", DefaultAddr)
	v.SetDefault("server.rate_limit", 2.0)
	v.SetDefault("server.rate_burst", 5)
	v.SetDefault("server.trust_proxy", false)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.agent_host", "localhost:4318")
	v.SetDefault("tracing.environment", "dev")
	v.SetDefault("tracing.service_name", "slabbot")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)
}

// bindEnvVariables binds explicit environment overrides. Secrets only come
// from the environment, never from the config file search path in CI.
func bindEnvVariables(v *viper.Viper) {
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("kb_url", "SLABBOT_KB_URL")
	mustBind("search.mode", "SLABBOT_SEARCH_MODE")
	mustBind("vector.rpc_url", "SLABBOT_VECTOR_RPC_URL")
	mustBind("vector.api_key", "SLABBOT_VECTOR_API_KEY")
	mustBind("vector.embed_url", "SLABBOT_EMBED_URL")
	mustBind("chat.endpoint", "SLABBOT_CHAT_ENDPOINT")
	mustBind("server.addr", "SLABBOT_ADDR")
	mustBind("server.trust_proxy", "SLABBOT_TRUST_PROXY")
}

// maskedValue replaces secret material in serialized output.
const maskedValue = "████████"

// maskSecret masks a secret for safe logging. Short secrets are fully
// masked; longer ones keep two characters on each end for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON masks sensitive fields. Add new secrets here.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.Vector.APIKey = maskSecret(a.Vector.APIKey)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer so accidental printing never leaks secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
