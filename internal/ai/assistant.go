package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pbaille/readai/internal/domain"
	"github.com/ternarybob/arbor"
)

const (
	DefaultTimeout       = 60 * time.Second
	DefaultMaxInputChars = 12000

	// SummaryUnavailable is returned when the model replies with nothing.
	SummaryUnavailable = "Summary not available."
)

const (
	explainSystem = "You are a helpful assistant that explains complex concepts clearly and concisely. " +
		"Format your response as JSON with the following structure: " +
		`{"explanation": string, "key_points": array of strings, "additional_resources"?: array of objects with "title" and "description"}.`

	summarizeSystem = "You are a helpful assistant that summarizes text concisely while preserving key information and main points. " +
		"Provide clear, well-structured summaries."

	sourcesSystem = "You are a helpful research assistant. When given a topic or text, suggest related academic sources, " +
		"articles, or books that would help the user learn more. Format your response as JSON with the structure: " +
		`{"sources": array of objects with "title", "author", "year" and "description"}.`
)

// Assistant explains passages, summarizes text and suggests further
// reading. It implements the client the service layer depends on.
type Assistant struct {
	completer     Completer
	logger        arbor.ILogger
	timeout       time.Duration
	maxInputChars int
	validate      *validator.Validate
}

// Options tunes an Assistant. Zero values select the defaults.
type Options struct {
	Timeout       time.Duration
	MaxInputChars int
}

// NewAssistant creates an Assistant backed by c.
func NewAssistant(c Completer, opts Options, logger arbor.ILogger) *Assistant {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxInputChars <= 0 {
		opts.MaxInputChars = DefaultMaxInputChars
	}
	return &Assistant{
		completer:     c,
		logger:        logger,
		timeout:       opts.Timeout,
		maxInputChars: opts.MaxInputChars,
		validate:      validator.New(),
	}
}

// Explain returns a structured explanation of text.
func (a *Assistant) Explain(ctx context.Context, text string) (*domain.Explanation, error) {
	reply, err := a.complete(ctx, "explain", Prompt{
		System: explainSystem,
		User:   "Please explain the following text in a clear, educational manner:\n\n" + text,
		JSON:   true,
	})
	if err != nil {
		return nil, err
	}

	var result domain.Explanation
	if err := a.decode(reply, &result); err != nil {
		return nil, &domain.RemoteServiceError{Op: "explain", Err: err}
	}
	return &result, nil
}

// Summarize returns a prose summary of text. Input longer than the
// configured limit is cut and marked with "...".
func (a *Assistant) Summarize(ctx context.Context, text string) (string, error) {
	reply, err := a.complete(ctx, "summarize", Prompt{
		System: summarizeSystem,
		User:   "Please summarize the following text:\n\n" + Truncate(text, a.maxInputChars),
	})
	if err != nil {
		return "", err
	}

	reply = strings.TrimSpace(reply)
	if reply == "" {
		return SummaryUnavailable, nil
	}
	return reply, nil
}

// FindSources suggests related reading for text.
func (a *Assistant) FindSources(ctx context.Context, text string) (*domain.SourceList, error) {
	reply, err := a.complete(ctx, "sources", Prompt{
		System: sourcesSystem,
		User:   "Please suggest related sources for further reading on this topic:\n\n" + text,
		JSON:   true,
	})
	if err != nil {
		return nil, err
	}

	var result domain.SourceList
	if err := a.decode(reply, &result); err != nil {
		return nil, &domain.RemoteServiceError{Op: "sources", Err: err}
	}
	return &result, nil
}

func (a *Assistant) complete(ctx context.Context, op string, p Prompt) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	reply, err := a.completer.Complete(ctx, p)
	if err != nil {
		a.logger.Error().Err(err).Str("op", op).Dur("duration", time.Since(start)).Msg("AI call failed")
		return "", &domain.RemoteServiceError{Op: op, Err: err}
	}

	a.logger.Debug().
		Str("op", op).
		Int("prompt_length", len(p.User)).
		Int("reply_length", len(reply)).
		Dur("duration", time.Since(start)).
		Msg("AI call completed")

	return reply, nil
}

// decode parses a JSON reply into v and validates it.
func (a *Assistant) decode(reply string, v any) error {
	cleaned := StripFences(reply)
	if err := json.Unmarshal([]byte(cleaned), v); err != nil {
		return fmt.Errorf("parse json: %w (response: %s)", err, preview(cleaned))
	}
	if err := a.validate.Struct(v); err != nil {
		return fmt.Errorf("unexpected reply shape: %w", err)
	}
	return nil
}

// StripFences removes a surrounding markdown code fence, if any.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// Truncate cuts s to at most max characters and appends "..." when it
// was cut.
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}

func preview(s string) string {
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
