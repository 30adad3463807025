// Package ai talks to the language model behind the reading assistant.
//
// A Completer sends one prompt and returns the raw reply; Assistant builds
// the prompts for explain, summarize and source suggestions and decodes the
// replies into typed results.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
)

const (
	ProviderClaude = "claude"
	ProviderGemini = "gemini"
)

// ErrUnavailable is returned by every call when no API key is configured.
var ErrUnavailable = errors.New("ai provider not configured")

// Prompt is a single request to the model.
type Prompt struct {
	System string
	User   string
	// JSON asks the provider for a JSON object reply where it supports it.
	JSON bool
}

// Completer sends a prompt and returns the model's text reply.
type Completer interface {
	Complete(ctx context.Context, p Prompt) (string, error)
}

// Config selects and tunes the provider.
type Config struct {
	Provider    string
	Model       string
	APIKey      string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// NewCompleter returns the completer for cfg.Provider. Without an API key
// the server still starts; a warning is logged and every AI call fails.
func NewCompleter(ctx context.Context, cfg Config, logger arbor.ILogger) (Completer, error) {
	provider := strings.ToLower(cfg.Provider)
	if cfg.APIKey == "" {
		logger.Warn().Str("provider", provider).Msg("No AI API key configured, AI features are disabled")
		return unavailable{provider: provider}, nil
	}

	switch provider {
	case ProviderClaude, "anthropic", "":
		return newClaude(cfg, logger), nil
	case ProviderGemini:
		return newGemini(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unknown ai provider: %s", cfg.Provider)
	}
}

type unavailable struct {
	provider string
}

func (u unavailable) Complete(ctx context.Context, p Prompt) (string, error) {
	return "", fmt.Errorf("%s: %w", u.provider, ErrUnavailable)
}
