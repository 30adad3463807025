package service

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/pbaille/readai/internal/domain"
	"github.com/pbaille/readai/internal/store"
	"github.com/ternarybob/arbor"
)

// HighlightRequest adds a highlight. DocumentID is not checked against
// stored documents.
type HighlightRequest struct {
	DocumentID  int64               `json:"documentId" validate:"required,gt=0"`
	Text        string              `json:"text" validate:"notblank"`
	Note        *string             `json:"note"`
	Explanation *domain.Explanation `json:"explanation" validate:"-"`
	StartOffset *int                `json:"startOffset" validate:"omitnil,gte=0"`
	EndOffset   *int                `json:"endOffset" validate:"omitnil,gte=0"`
	UserID      int64               `json:"-"`
}

// HighlightService adds and lists highlights.
type HighlightService struct {
	store    store.Store
	logger   arbor.ILogger
	validate *validator.Validate
}

// NewHighlightService creates a HighlightService.
func NewHighlightService(s store.Store, logger arbor.ILogger) *HighlightService {
	return &HighlightService{store: s, logger: logger, validate: newValidator()}
}

// Add stores a highlight. The explanation is kept exactly as given.
func (s *HighlightService) Add(ctx context.Context, req HighlightRequest) (domain.Highlight, error) {
	if err := check(s.validate, req); err != nil {
		return domain.Highlight{}, err
	}

	h, err := s.store.InsertHighlight(ctx, domain.NewHighlight{
		DocumentID:  req.DocumentID,
		UserID:      req.UserID,
		Text:        req.Text,
		Note:        req.Note,
		Explanation: req.Explanation,
		StartOffset: req.StartOffset,
		EndOffset:   req.EndOffset,
	})
	if err != nil {
		return domain.Highlight{}, fmt.Errorf("insert highlight: %w", err)
	}

	s.logger.Debug().
		Int64("highlight_id", h.ID).
		Int64("document_id", h.DocumentID).
		Bool("explained", h.Explanation != nil).
		Msg("Highlight added")

	return h, nil
}

// ListForDocument returns the document's highlights, newest first.
func (s *HighlightService) ListForDocument(ctx context.Context, documentID int64) ([]domain.Highlight, error) {
	return s.store.ListHighlightsByDocument(ctx, documentID)
}
