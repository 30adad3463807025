package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/pbaille/readai/internal/domain"
	"github.com/pbaille/readai/internal/extractor"
	"github.com/pbaille/readai/internal/pdfdoc/pdftest"
	"github.com/pbaille/readai/internal/service"
	"github.com/pbaille/readai/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

type stubExtractor struct {
	article *extractor.Article
	err     error
}

func (s *stubExtractor) Extract(_ context.Context, url string) (*extractor.Article, error) {
	if s.err != nil {
		return nil, s.err
	}
	a := *s.article
	return &a, nil
}

type stubAI struct {
	explanation *domain.Explanation
	summary     string
	sources     *domain.SourceList
	err         error
}

func (s *stubAI) Explain(context.Context, string) (*domain.Explanation, error) {
	return s.explanation, s.err
}

func (s *stubAI) Summarize(context.Context, string) (string, error) {
	return s.summary, s.err
}

func (s *stubAI) FindSources(context.Context, string) (*domain.SourceList, error) {
	return s.sources, s.err
}

type testEnv struct {
	handler   http.Handler
	store     store.Store
	extractor *stubExtractor
	ai        *stubAI
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := arbor.NewLogger()

	st, err := store.Open(context.Background(), store.BackendMemory, domain.NewUser{Username: "default", Password: "password"})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ex := &stubExtractor{article: &extractor.Article{Content: "<p>hi</p>", Title: "A", EstimatedReadTime: 1}}
	ai := &stubAI{
		explanation: &domain.Explanation{Explanation: "e", KeyPoints: []string{"k"}},
		summary:     "a summary",
		sources:     &domain.SourceList{Sources: []domain.Source{{Title: "Book", Author: "Someone", Year: "1999"}}},
	}

	srv := New(Services{
		Documents:  service.NewDocumentService(st, ex, logger),
		Highlights: service.NewHighlightService(st, logger),
		Assistant:  service.NewAssistantService(st, ai, logger),
	}, Config{AllowedOrigins: []string{"*"}}, logger)

	return &testEnv{handler: srv.Handler(), store: st, extractor: ex, ai: ai}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, r)
	return w
}

func (e *testEnv) upload(t *testing.T, title string, data []byte, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if title != "" {
		require.NoError(t, mw.WriteField("title", title))
	}
	if data != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="file"; filename="doc.pdf"`)
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	r := httptest.NewRequest(http.MethodPost, "/api/documents/pdf", &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, r)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestAddURLDocument(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/documents/url", `{"url": "https://example.com/a"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	doc := decodeBody(t, w)
	assert.Equal(t, float64(1), doc["id"])
	assert.Equal(t, "url", doc["type"])
	assert.Equal(t, "<p>hi</p>", doc["content"])
	assert.Equal(t, "A", doc["title"])
	assert.Equal(t, float64(1), doc["readingTime"])
	assert.Contains(t, doc, "pdfData")
	assert.Nil(t, doc["pdfData"])
	assert.Equal(t, "https://example.com/a", doc["url"])
	assert.NotEmpty(t, doc["addedAt"])
}

func TestAddURLDocumentErrors(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/documents/url", `{"url": "nope"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "validation error", body["message"])
	assert.Contains(t, body["details"], "url")

	w = env.do(t, http.MethodPost, "/api/documents/url", `{"url": `)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid request body", decodeBody(t, w)["message"])

	env.extractor.err = &domain.ExtractionError{URL: "https://example.com/a", Err: errors.New("status 404")}
	w = env.do(t, http.MethodPost, "/api/documents/url", `{"url": "https://example.com/a"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "status 404")

	env.extractor.err = &domain.RemoteServiceError{Op: "extract", Target: "https://example.com/a", Err: context.DeadlineExceeded}
	w = env.do(t, http.MethodPost, "/api/documents/url", `{"url": "https://example.com/a"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "deadline")
}

func TestUploadPDF(t *testing.T) {
	env := newTestEnv(t)
	exact := pdftest.Build(1, service.MaxPDFBytes)

	w := env.upload(t, "Paper", exact, "application/pdf")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	doc := decodeBody(t, w)
	assert.Equal(t, "pdf", doc["type"])
	assert.Equal(t, "Paper", doc["title"])
	assert.Nil(t, doc["content"])
	assert.Nil(t, doc["readingTime"])
	assert.NotEmpty(t, doc["pdfData"])

	tests := []struct {
		name        string
		title       string
		data        []byte
		contentType string
		field       string
	}{
		{"one byte too large", "Paper", append(exact, '\n'), "application/pdf", "file"},
		{"wrong type", "Paper", []byte("hello"), "text/plain", ""},
		{"missing title", "", pdftest.Build(1, 0), "application/pdf", "title"},
		{"missing file", "Paper", nil, "", ""},
		{"empty file", "Empty", []byte{}, "application/pdf", "file"},
		{"not a pdf", "Fake", []byte("plain text with a pdf label"), "application/pdf", "file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.upload(t, tt.title, tt.data, tt.contentType)
			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			if tt.field != "" {
				details, _ := decodeBody(t, w)["details"].(map[string]any)
				assert.Contains(t, details, tt.field)
			}
		})
	}

	list := env.do(t, http.MethodGet, "/api/documents", "")
	var docs []map[string]any
	require.NoError(t, json.Unmarshal(list.Body.Bytes(), &docs))
	assert.Len(t, docs, 1)
}

func TestUploadRejectsNonMultipart(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/api/documents/pdf", `{"title": "x"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListAndGetDocuments(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/documents", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())

	for i := 0; i < 3; i++ {
		w = env.do(t, http.MethodPost, "/api/documents/url", fmt.Sprintf(`{"url": "https://example.com/%d"}`, i))
		require.Equal(t, http.StatusOK, w.Code)
	}

	w = env.do(t, http.MethodGet, "/api/documents", "")
	var docs []domain.Document
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &docs))
	require.Len(t, docs, 3)
	assert.Equal(t, int64(3), docs[0].ID)
	assert.Equal(t, int64(1), docs[2].ID)

	w = env.do(t, http.MethodGet, "/api/documents/2", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decodeBody(t, w)["id"])

	w = env.do(t, http.MethodGet, "/api/documents/99", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "document 99 not found", decodeBody(t, w)["message"])

	w = env.do(t, http.MethodGet, "/api/documents/abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHighlights(t *testing.T) {
	env := newTestEnv(t)

	// Document 1 does not exist; the highlight is still accepted.
	w := env.do(t, http.MethodPost, "/api/highlights", `{"documentId": 1, "text": "hi"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	h := decodeBody(t, w)
	assert.Equal(t, float64(1), h["documentId"])
	assert.Nil(t, h["explanation"])

	w = env.do(t, http.MethodPost, "/api/highlights", `{"documentId": 1, "text": "later", "startOffset": 4, "endOffset": 9}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, "/api/highlights", `{"documentId": 1, "text": ""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeBody(t, w)["details"], "text")

	w = env.do(t, http.MethodPost, "/api/highlights", `{"documentId": "one", "text": "x"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/api/documents/1/highlights", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list []domain.Highlight
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, "later", list[0].Text)
	assert.Equal(t, 4, *list[0].StartOffset)
}

func TestExplain(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/ai/explain", `{"text": "entropy", "documentId": 5}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"explanation": {"explanation": "e", "key_points": ["k"]}}`, w.Body.String())

	w = env.do(t, http.MethodGet, "/api/documents/5/highlights", "")
	var list []domain.Highlight
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "e", list[0].Explanation.Explanation)

	w = env.do(t, http.MethodPost, "/api/ai/explain", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	env.ai.err = &domain.RemoteServiceError{Op: "explain", Err: errors.New("401 invalid x-api-key")}
	w = env.do(t, http.MethodPost, "/api/ai/explain", `{"text": "entropy"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Failed to explain text. Please try again later.", decodeBody(t, w)["message"])
}

func TestSummarize(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/api/documents/url", `{"url": "https://example.com/a"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, "/api/ai/summarize", `{"documentId": 1}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"summary": "a summary"}`, w.Body.String())

	w = env.do(t, http.MethodPost, "/api/ai/summarize", `{"text": "some text"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, "/api/ai/summarize", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/ai/summarize", `{"documentId": 42}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.upload(t, "Paper", pdftest.Build(1, 0), "application/pdf")
	require.Equal(t, http.StatusOK, w.Code)
	w = env.do(t, http.MethodPost, "/api/ai/summarize", `{"documentId": 2}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSources(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/ai/sources", `{"text": "graphs"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"sources": [{"title": "Book", "author": "Someone", "year": "1999", "description": ""}]}`, w.Body.String())

	w = env.do(t, http.MethodPost, "/api/ai/sources", `{"text": " "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMiddleware(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.Header.Set("X-Request-Id", "req-123")
	w = httptest.NewRecorder()
	env.handler.ServeHTTP(w, r)
	assert.Equal(t, "req-123", w.Header().Get("X-Request-Id"))

	w = env.do(t, http.MethodOptions, "/api/documents/url", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestCORSAllowList(t *testing.T) {
	h := withCORS([]string{"http://localhost:5173"}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))

	r.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecoverReturns500(t *testing.T) {
	s := New(Services{}, Config{}, arbor.NewLogger())
	h := s.withRecover(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"message": "Internal server error"}`, w.Body.String())
}

func TestRunShutsDownOnCancel(t *testing.T) {
	s := New(Services{}, Config{Addr: "127.0.0.1:0"}, arbor.NewLogger())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()
	assert.NoError(t, <-done)
}
