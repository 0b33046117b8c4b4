package config

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

// validConfig returns a minimal passing configuration for tests to mutate.
func validConfig() *Config {
	return &Config{
		KBURL: "https://help.example.com/kb-data.json",
		Search: SearchConfig{
			Mode:            ModeLexical,
			MaxResults:      DefaultMaxResults,
			MatchThreshold:  DefaultMatchThreshold,
			ProductKeywords: []string{"systemize", "inventory", "countergo"},
		},
		Chat: ChatConfig{
			Endpoint:     "https://api.example.com/chat",
			SystemPrompt: DefaultSystemPrompt,
			Temperature:  0,
		},
		Server: ServerConfig{
			Addr:      DefaultAddr,
			RateLimit: 2,
			RateBurst: 5,
		},
	}
}

func TestValidate_OK(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:    "missing kb url",
			mutate:  func(c *Config) { c.KBURL = "" },
			wantErr: ErrMissingKBURL,
		},
		{
			name:    "unknown mode",
			mutate:  func(c *Config) { c.Search.Mode = "hybrid" },
			wantErr: ErrInvalidMode,
		},
		{
			name:    "zero max results",
			mutate:  func(c *Config) { c.Search.MaxResults = 0 },
			wantErr: ErrInvalidMaxResults,
		},
		{
			name:    "threshold above one",
			mutate:  func(c *Config) { c.Search.MatchThreshold = 1.5 },
			wantErr: ErrInvalidThreshold,
		},
		{
			name: "vector mode without rpc url",
			mutate: func(c *Config) {
				c.Search.Mode = ModeVector
				c.Vector.EmbedURL = "https://api.example.com/embed"
			},
			wantErr: ErrMissingVectorRPC,
		},
		{
			name: "vector mode without embed url",
			mutate: func(c *Config) {
				c.Search.Mode = ModeVector
				c.Vector.RPCURL = "https://api.example.com/rest/v1/rpc/search_articles"
			},
			wantErr: ErrMissingEmbedURL,
		},
		{
			name:    "missing chat endpoint",
			mutate:  func(c *Config) { c.Chat.Endpoint = "" },
			wantErr: ErrMissingChatEndpoint,
		},
		{
			name:    "temperature out of range",
			mutate:  func(c *Config) { c.Chat.Temperature = 3 },
			wantErr: ErrInvalidTemperature,
		},
		{
			name:    "non-positive rate limit",
			mutate:  func(c *Config) { c.Server.RateLimit = 0 },
			wantErr: ErrInvalidRateLimit,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want errors.Is(%v)", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_NilConfig(t *testing.T) {
	var c *Config
	if err := c.Validate(); !errors.Is(err, ErrConfigNil) {
		t.Errorf("error = %v, want ErrConfigNil", err)
	}
}

func TestVectorModeRequiresNothingInLexicalMode(t *testing.T) {
	cfg := validConfig()
	cfg.Search.Mode = ModeLexical
	cfg.Vector = VectorConfig{} // entirely empty is fine
	if err := cfg.Validate(); err != nil {
		t.Fatalf("lexical mode should not require vector config: %v", err)
	}
}

func TestMarshalJSON_MasksAPIKey(t *testing.T) {
	cfg := validConfig()
	cfg.Vector.APIKey = "sb-secret-key-1234567890"

	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(data), "secret-key") {
		t.Errorf("serialized config leaks API key: %s", data)
	}
	if !strings.Contains(string(data), maskedValue) {
		t.Errorf("masked placeholder missing: %s", data)
	}
}

func TestString_MasksAPIKey(t *testing.T) {
	cfg := validConfig()
	cfg.Vector.APIKey = "another-long-secret-value"

	if s := cfg.String(); strings.Contains(s, "another-long-secret-value") {
		t.Errorf("String() leaks API key: %s", s)
	}
}

func TestMaskSecret(t *testing.T) {
	tests := []struct {
		in        string
		wantEmpty bool
		wantFull  bool // fully masked, no cleartext chars
	}{
		{in: "", wantEmpty: true},
		{in: "short", wantFull: true},
		{in: "12345678", wantFull: true},
		{in: "a-much-longer-secret"},
	}

	for _, tt := range tests {
		got := maskSecret(tt.in)
		switch {
		case tt.wantEmpty:
			if got != "" {
				t.Errorf("maskSecret(%q) = %q, want empty", tt.in, got)
			}
		case tt.wantFull:
			if got != maskedValue {
				t.Errorf("maskSecret(%q) = %q, want full mask", tt.in, got)
			}
		default:
			if !strings.Contains(got, maskedValue) {
				t.Errorf("maskSecret(%q) = %q, missing mask", tt.in, got)
			}
			if strings.Contains(got, tt.in) {
				t.Errorf("maskSecret(%q) contains original", tt.in)
			}
		}
	}
}
