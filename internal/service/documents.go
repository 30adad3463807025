package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pbaille/readai/internal/domain"
	"github.com/pbaille/readai/internal/extractor"
	"github.com/pbaille/readai/internal/pdfdoc"
	"github.com/pbaille/readai/internal/store"
	"github.com/ternarybob/arbor"
)

const (
	// MaxPDFBytes is the largest accepted upload, 10 MiB.
	MaxPDFBytes = 10 << 20

	// PDFMimeType is the only accepted upload content type.
	PDFMimeType = "application/pdf"
)

// Extractor turns a URL into a readable article.
type Extractor interface {
	Extract(ctx context.Context, url string) (*extractor.Article, error)
}

// URLRequest adds a web page. A non-blank Title replaces the extracted one.
type URLRequest struct {
	URL    string `json:"url" validate:"required,http_url"`
	Title  string `json:"title"`
	UserID int64  `json:"-"`
}

// PDFUpload adds an uploaded PDF file.
type PDFUpload struct {
	Title    string `json:"title" validate:"notblank"`
	Data     []byte `json:"file" validate:"required,min=1,max=10485760"`
	MimeType string `json:"mimeType" validate:"eq=application/pdf"`
	Filename string `json:"filename"`
	UserID   int64  `json:"-"`
}

// DocumentService creates and reads documents.
type DocumentService struct {
	store     store.Store
	extractor Extractor
	logger    arbor.ILogger
	validate  *validator.Validate
}

// NewDocumentService creates a DocumentService.
func NewDocumentService(s store.Store, ex Extractor, logger arbor.ILogger) *DocumentService {
	return &DocumentService{
		store:     s,
		extractor: ex,
		logger:    logger,
		validate:  newValidator(),
	}
}

// CreateFromURL extracts the article at req.URL and stores it.
func (s *DocumentService) CreateFromURL(ctx context.Context, req URLRequest) (domain.Document, error) {
	req.URL = strings.TrimSpace(req.URL)
	if err := check(s.validate, req); err != nil {
		return domain.Document{}, err
	}

	article, err := s.extractor.Extract(ctx, req.URL)
	if err != nil {
		return domain.Document{}, err
	}

	title := article.Title
	if t := strings.TrimSpace(req.Title); t != "" {
		title = t
	}
	content := article.Content
	readingTime := article.EstimatedReadTime
	url := req.URL

	doc, err := s.store.InsertDocument(ctx, domain.NewDocument{
		UserID:      req.UserID,
		Title:       title,
		URL:         &url,
		Type:        domain.DocumentURL,
		Content:     &content,
		ReadingTime: &readingTime,
	})
	if err != nil {
		return domain.Document{}, fmt.Errorf("insert document: %w", err)
	}

	s.logger.Info().
		Int64("document_id", doc.ID).
		Str("url", url).
		Str("title", title).
		Int("reading_minutes", readingTime).
		Msg("Document added from URL")

	return doc, nil
}

// CreateFromPDF stores an uploaded PDF base64-encoded. The bytes must parse
// as a PDF, and every check runs before the store is written.
func (s *DocumentService) CreateFromPDF(ctx context.Context, up PDFUpload) (domain.Document, error) {
	if err := check(s.validate, up); err != nil {
		return domain.Document{}, err
	}

	info, err := pdfdoc.Inspect(up.Data)
	if err != nil {
		s.logger.Warn().Err(err).Str("filename", up.Filename).Msg("Rejected upload that is not a PDF")
		return domain.Document{}, domain.Invalid("file", "is not a valid PDF")
	}

	data := base64.StdEncoding.EncodeToString(up.Data)
	doc, err := s.store.InsertDocument(ctx, domain.NewDocument{
		UserID:  up.UserID,
		Title:   strings.TrimSpace(up.Title),
		Type:    domain.DocumentPDF,
		PDFData: &data,
	})
	if err != nil {
		return domain.Document{}, fmt.Errorf("insert document: %w", err)
	}

	s.logger.Info().
		Int64("document_id", doc.ID).
		Str("title", doc.Title).
		Int("size_bytes", len(up.Data)).
		Int("pages", info.Pages).
		Msg("Document added from PDF")

	return doc, nil
}

// Get returns the document with the given id.
func (s *DocumentService) Get(ctx context.Context, id int64) (domain.Document, error) {
	return s.store.GetDocument(ctx, id)
}

// ListForUser returns the user's documents, newest first. A zero id means
// the default user.
func (s *DocumentService) ListForUser(ctx context.Context, userID int64) ([]domain.Document, error) {
	if userID == 0 {
		userID = s.store.DefaultUserID()
	}
	return s.store.ListDocumentsByUser(ctx, userID)
}
