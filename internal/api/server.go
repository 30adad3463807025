package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pbaille/readai/internal/domain"
	"github.com/pbaille/readai/internal/service"
	"github.com/ternarybob/arbor"
)

// maxJSONBody bounds JSON request bodies. Multipart uploads get the PDF
// limit plus room for the form envelope.
const (
	maxJSONBody      = 1 << 20
	maxUploadRequest = service.MaxPDFBytes + 1<<20
)

// Services are the operations the HTTP surface exposes.
type Services struct {
	Documents  *service.DocumentService
	Highlights *service.HighlightService
	Assistant  *service.AssistantService
}

// Config holds listener settings.
type Config struct {
	Addr            string
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
}

// Server handles HTTP requests for the reading assistant API
type Server struct {
	svc    Services
	cfg    Config
	logger arbor.ILogger
}

// New creates a new API server
func New(svc Services, cfg Config, logger arbor.ILogger) *Server {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	return &Server{svc: svc, cfg: cfg, logger: logger}
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Documents
	mux.HandleFunc("POST /api/documents/url", s.addURLDocument)
	mux.HandleFunc("POST /api/documents/pdf", s.addPDFDocument)
	mux.HandleFunc("GET /api/documents", s.listDocuments)
	mux.HandleFunc("GET /api/documents/{id}", s.getDocument)
	mux.HandleFunc("GET /api/documents/{id}/highlights", s.listHighlights)

	// Highlights
	mux.HandleFunc("POST /api/highlights", s.addHighlight)

	// AI
	mux.HandleFunc("POST /api/ai/explain", s.explain)
	mux.HandleFunc("POST /api/ai/summarize", s.summarize)
	mux.HandleFunc("POST /api/ai/sources", s.sources)

	// Health check
	mux.HandleFunc("GET /health", s.health)

	var h http.Handler = mux
	h = s.withRecover(h)
	h = s.withRequestLog(h)
	h = withRequestID(h)
	h = withCORS(s.cfg.AllowedOrigins, h)
	return h
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.cfg.Addr).Msg("Starting server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	case <-ctx.Done():
		s.logger.Info().Dur("timeout", s.cfg.ShutdownTimeout).Msg("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) addURLDocument(w http.ResponseWriter, r *http.Request) {
	var req service.URLRequest
	if !s.decode(w, r, &req) {
		return
	}

	doc, err := s.svc.Documents.CreateFromURL(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) addPDFDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadRequest)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeServiceError(w, r, domain.Invalid("file", "PDF file is too large (max 10MB)"))
			return
		}
		s.writeServiceError(w, r, domain.Invalid("", "invalid multipart form"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeServiceError(w, r, domain.Invalid("file", "no PDF file uploaded"))
		return
	}
	defer file.Close()

	// One byte past the limit is enough for the size check to fail.
	data, err := io.ReadAll(io.LimitReader(file, service.MaxPDFBytes+1))
	if err != nil {
		s.writeServiceError(w, r, fmt.Errorf("read upload: %w", err))
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mt, _, err := mime.ParseMediaType(mimeType); err == nil {
		mimeType = mt
	}

	doc, err := s.svc.Documents.CreateFromPDF(r.Context(), service.PDFUpload{
		Title:    r.FormValue("title"),
		Data:     data,
		MimeType: mimeType,
		Filename: header.Filename,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) listDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.svc.Documents.ListForUser(r.Context(), 0)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

func (s *Server) getDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	doc, err := s.svc.Documents.Get(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) listHighlights(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	highlights, err := s.svc.Highlights.ListForDocument(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, highlights)
}

func (s *Server) addHighlight(w http.ResponseWriter, r *http.Request) {
	var req service.HighlightRequest
	if !s.decode(w, r, &req) {
		return
	}

	h, err := s.svc.Highlights.Add(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) explain(w http.ResponseWriter, r *http.Request) {
	var req service.ExplainRequest
	if !s.decode(w, r, &req) {
		return
	}

	res, err := s.svc.Assistant.Explain(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) summarize(w http.ResponseWriter, r *http.Request) {
	var req service.SummarizeRequest
	if !s.decode(w, r, &req) {
		return
	}

	res, err := s.svc.Assistant.Summarize(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) sources(w http.ResponseWriter, r *http.Request) {
	var req service.SourcesRequest
	if !s.decode(w, r, &req) {
		return
	}

	res, err := s.svc.Assistant.FindSources(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		s.writeServiceError(w, r, &domain.ValidationError{
			Message: "invalid request body",
			Fields:  bodyErrorFields(err),
		})
		return false
	}
	return true
}

// bodyErrorFields names the offending field for JSON type mismatches.
func bodyErrorFields(err error) map[string]string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return map[string]string{typeErr.Field: "must be a " + typeErr.Type.String()}
	}
	return nil
}

func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := strings.TrimSpace(r.PathValue("id"))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		s.writeServiceError(w, r, domain.Invalid("id", "must be a positive integer"))
		return 0, false
	}
	return id, true
}

// errorResponse is the body of every non-2xx reply.
type errorResponse struct {
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// writeServiceError maps the domain error taxonomy to status codes.
// Remote and internal failures are logged with their cause but reported
// to the client with a generic message.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validation *domain.ValidationError
		extraction *domain.ExtractionError
		remote     *domain.RemoteServiceError
	)

	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: validation.Message, Details: validation.Fields})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Message: err.Error()})
	case errors.As(err, &remote):
		s.logger.Error().Err(err).Str("op", remote.Op).Str("request_id", requestIDFrom(r.Context())).Msg("Remote service failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Message: remoteMessage(remote.Op)})
	case errors.As(err, &extraction):
		s.logger.Warn().Err(err).Str("url", extraction.URL).Str("request_id", requestIDFrom(r.Context())).Msg("Extraction failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "Failed to extract content from URL. Check the address and try again."})
	default:
		s.logger.Error().Err(err).Str("request_id", requestIDFrom(r.Context())).Msg("Internal error")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "Internal server error"})
	}
}

func remoteMessage(op string) string {
	switch op {
	case "explain":
		return "Failed to explain text. Please try again later."
	case "summarize":
		return "Failed to summarize text. Please try again later."
	case "sources":
		return "Failed to find related sources. Please try again later."
	case "extract":
		return "Timed out fetching the URL. Please try again later."
	default:
		return "Remote service unavailable. Please try again later."
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
