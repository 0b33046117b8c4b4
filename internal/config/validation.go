package config

import "fmt"

// Validate checks the configuration for internal consistency. It is called
// by Load but exported so tests and callers constructing Config directly can
// run the same checks.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	if c.KBURL == "" {
		return fmt.Errorf("%w: set kb_url or SLABBOT_KB_URL", ErrMissingKBURL)
	}

	switch c.Search.Mode {
	case ModeLexical, ModeVector:
	default:
		return fmt.Errorf("%w: %q (want %q or %q)",
			ErrInvalidMode, c.Search.Mode, ModeLexical, ModeVector)
	}

	if c.Search.MaxResults < 1 || c.Search.MaxResults > 100 {
		return fmt.Errorf("%w: %d (want 1-100)", ErrInvalidMaxResults, c.Search.MaxResults)
	}

	if c.Search.MatchThreshold < 0 || c.Search.MatchThreshold > 1 {
		return fmt.Errorf("%w: %v (want 0.0-1.0)", ErrInvalidThreshold, c.Search.MatchThreshold)
	}

	// Vector collaborators are only required when vector mode can be used:
	// either as the primary mode, or never (lexical fallback implies vector
	// was primary, so no extra case).
	if c.Search.Mode == ModeVector {
		if c.Vector.RPCURL == "" {
			return fmt.Errorf("%w: set vector.rpc_url or SLABBOT_VECTOR_RPC_URL", ErrMissingVectorRPC)
		}
		if c.Vector.EmbedURL == "" {
			return fmt.Errorf("%w: set vector.embed_url or SLABBOT_EMBED_URL", ErrMissingEmbedURL)
		}
	}

	if c.Chat.Endpoint == "" {
		return fmt.Errorf("%w: set chat.endpoint or SLABBOT_CHAT_ENDPOINT", ErrMissingChatEndpoint)
	}

	if c.Chat.Temperature < 0 || c.Chat.Temperature > 2 {
		return fmt.Errorf("%w: %v (want 0.0-2.0)", ErrInvalidTemperature, c.Chat.Temperature)
	}

	if c.Server.RateLimit <= 0 || c.Server.RateBurst < 1 {
		return fmt.Errorf("%w: rate_limit=%v rate_burst=%d",
			ErrInvalidRateLimit, c.Server.RateLimit, c.Server.RateBurst)
	}

	return nil
}
