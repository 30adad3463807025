package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.5-flash"

type gemini struct {
	client      *genai.Client
	model       string
	temperature float64
}

func newGemini(ctx context.Context, cfg Config, logger arbor.ILogger) (*gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("init genai client: %w", err)
	}

	model := cfg.Model
	if model == "" || strings.HasPrefix(model, "claude") {
		model = defaultGeminiModel
	}

	logger.Debug().Str("model", model).Msg("Gemini completer initialized")

	return &gemini{
		client:      client,
		model:       model,
		temperature: cfg.Temperature,
	}, nil
}

func (g *gemini) Complete(ctx context.Context, p Prompt) (string, error) {
	config := &genai.GenerateContentConfig{}
	if g.temperature > 0 {
		config.Temperature = genai.Ptr(float32(g.temperature))
	}
	if p.System != "" {
		config.SystemInstruction = genai.NewContentFromText(p.System, genai.RoleUser)
	}
	if p.JSON {
		config.ResponseMIMEType = "application/json"
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(p.User), config)
	if err != nil {
		return "", fmt.Errorf("gemini api call: %w", err)
	}

	var sb strings.Builder
	if resp != nil {
		for _, candidate := range resp.Candidates {
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				sb.WriteString(part.Text)
			}
			if sb.Len() > 0 {
				break
			}
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("gemini returned no text")
	}
	return sb.String(), nil
}
