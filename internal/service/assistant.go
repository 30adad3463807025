package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pbaille/readai/internal/domain"
	"github.com/pbaille/readai/internal/extractor"
	"github.com/pbaille/readai/internal/store"
	"github.com/ternarybob/arbor"
)

// AI is the language model client.
type AI interface {
	Explain(ctx context.Context, text string) (*domain.Explanation, error)
	Summarize(ctx context.Context, text string) (string, error)
	FindSources(ctx context.Context, text string) (*domain.SourceList, error)
}

// ExplainRequest asks for an explanation of Text, optionally saving it
// on a highlight of document DocumentID.
type ExplainRequest struct {
	Text       string `json:"text" validate:"notblank"`
	DocumentID *int64 `json:"documentId" validate:"omitnil,gt=0"`
}

// ExplainResult carries the explanation and, when a document id was
// given, the highlight it was saved on.
type ExplainResult struct {
	Explanation *domain.Explanation `json:"explanation" yaml:"explanation"`
	Highlight   *domain.Highlight   `json:"-" yaml:"-"`
}

// SummarizeRequest names either a stored document or raw text. The
// document wins when both are set.
type SummarizeRequest struct {
	DocumentID *int64 `json:"documentId" validate:"omitnil,gt=0"`
	Text       string `json:"text"`
}

// SummarizeResult is the summary text.
type SummarizeResult struct {
	Summary string `json:"summary" yaml:"summary"`
}

// SourcesRequest asks for further reading on Text.
type SourcesRequest struct {
	Text string `json:"text" validate:"notblank"`
}

// AssistantService runs the AI operations over documents and text.
type AssistantService struct {
	store    store.Store
	ai       AI
	logger   arbor.ILogger
	validate *validator.Validate
}

// NewAssistantService creates an AssistantService.
func NewAssistantService(s store.Store, ai AI, logger arbor.ILogger) *AssistantService {
	return &AssistantService{store: s, ai: ai, logger: logger, validate: newValidator()}
}

// Explain asks the model to explain req.Text. With a document id the
// explanation is also saved as a highlight of that document.
func (s *AssistantService) Explain(ctx context.Context, req ExplainRequest) (ExplainResult, error) {
	if err := check(s.validate, req); err != nil {
		return ExplainResult{}, err
	}

	explanation, err := s.ai.Explain(ctx, req.Text)
	if err != nil {
		return ExplainResult{}, err
	}
	result := ExplainResult{Explanation: explanation}

	if req.DocumentID != nil {
		h, err := s.store.InsertHighlight(ctx, domain.NewHighlight{
			DocumentID:  *req.DocumentID,
			Text:        req.Text,
			Explanation: explanation,
		})
		if err != nil {
			return ExplainResult{}, fmt.Errorf("save explained highlight: %w", err)
		}
		result.Highlight = &h

		s.logger.Debug().
			Int64("highlight_id", h.ID).
			Int64("document_id", h.DocumentID).
			Msg("Explanation saved as highlight")
	}

	return result, nil
}

// Summarize summarizes a stored document or the given text. Document HTML
// is converted to Markdown before it is sent.
func (s *AssistantService) Summarize(ctx context.Context, req SummarizeRequest) (SummarizeResult, error) {
	if err := check(s.validate, req); err != nil {
		return SummarizeResult{}, err
	}

	var input string
	switch {
	case req.DocumentID != nil:
		doc, err := s.store.GetDocument(ctx, *req.DocumentID)
		if err != nil {
			return SummarizeResult{}, err
		}
		if doc.Content == nil || strings.TrimSpace(*doc.Content) == "" {
			return SummarizeResult{}, domain.Invalid("documentId", "document has no text content to summarize")
		}
		base := ""
		if doc.URL != nil {
			base = *doc.URL
		}
		input = extractor.ToMarkdown(*doc.Content, base)
	case strings.TrimSpace(req.Text) != "":
		input = req.Text
	default:
		return SummarizeResult{}, domain.Invalid("", "either documentId or text must be provided")
	}

	summary, err := s.ai.Summarize(ctx, input)
	if err != nil {
		return SummarizeResult{}, err
	}
	return SummarizeResult{Summary: summary}, nil
}

// FindSources suggests further reading on req.Text.
func (s *AssistantService) FindSources(ctx context.Context, req SourcesRequest) (*domain.SourceList, error) {
	if err := check(s.validate, req); err != nil {
		return nil, err
	}
	return s.ai.FindSources(ctx, req.Text)
}
