package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pbaille/readai/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

// Store is the process-lifetime entity store for users, documents and
// highlights. Records are write-once: there is no update or delete.
// Lookups of unknown ids return an error matching domain.ErrNotFound.
type Store interface {
	// Seed creates the default user. Records inserted with a zero user id
	// are owned by it.
	Seed(ctx context.Context, u domain.NewUser) (domain.User, error)
	DefaultUserID() int64

	CreateUser(ctx context.Context, u domain.NewUser) (domain.User, error)
	GetUser(ctx context.Context, id int64) (domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)

	InsertDocument(ctx context.Context, d domain.NewDocument) (domain.Document, error)
	GetDocument(ctx context.Context, id int64) (domain.Document, error)
	// ListDocumentsByUser returns the user's documents, newest first.
	ListDocumentsByUser(ctx context.Context, userID int64) ([]domain.Document, error)

	InsertHighlight(ctx context.Context, h domain.NewHighlight) (domain.Highlight, error)
	GetHighlight(ctx context.Context, id int64) (domain.Highlight, error)
	// ListHighlightsByDocument returns the document's highlights, newest first.
	ListHighlightsByDocument(ctx context.Context, documentID int64) ([]domain.Highlight, error)

	Close() error
}

// Storage backends accepted by New.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// Clock stamps creation times.
type Clock func() time.Time

type options struct {
	now Clock
}

// Option configures a store backend.
type Option func(*options)

// WithClock replaces time.Now for creation timestamps.
func WithClock(c Clock) Option {
	return func(o *options) { o.now = c }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// New builds an empty store for backend. Call Seed before inserting
// records owned by the default user.
func New(backend string, opts ...Option) (Store, error) {
	switch strings.ToLower(backend) {
	case "", BackendMemory:
		return NewMemoryStore(opts...), nil
	case BackendSQLite:
		s, err := NewSQLiteStore(opts...)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", backend)
	}
}

// Open builds the store for backend and seeds the default user.
func Open(ctx context.Context, backend string, seed domain.NewUser, opts ...Option) (Store, error) {
	s, err := New(backend, opts...)
	if err != nil {
		return nil, err
	}
	if _, err := s.Seed(ctx, seed); err != nil {
		s.Close()
		return nil, fmt.Errorf("seed default user: %w", err)
	}
	return s, nil
}

// CheckPassword reports whether plain matches the user's stored hash.
func CheckPassword(u domain.User, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(plain)) == nil
}

func hashPassword(plain string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

func validateNewUser(u domain.NewUser) error {
	if strings.TrimSpace(u.Username) == "" {
		return domain.Invalid("username", "is required")
	}
	if u.Password == "" {
		return domain.Invalid("password", "is required")
	}
	return nil
}

// documentDefaults is the single place insert defaults are filled for
// documents: a zero owner becomes the default user. Nullable fields are
// left as given.
func documentDefaults(d domain.NewDocument, defaultUser int64) domain.NewDocument {
	if d.UserID == 0 {
		d.UserID = defaultUser
	}
	d.URL = cloneString(d.URL)
	d.Content = cloneString(d.Content)
	d.PDFData = cloneString(d.PDFData)
	d.ReadingTime = cloneInt(d.ReadingTime)
	return d
}

// highlightDefaults mirrors documentDefaults for highlights.
func highlightDefaults(h domain.NewHighlight, defaultUser int64) domain.NewHighlight {
	if h.UserID == 0 {
		h.UserID = defaultUser
	}
	h.Note = cloneString(h.Note)
	h.Explanation = h.Explanation.Clone()
	h.StartOffset = cloneInt(h.StartOffset)
	h.EndOffset = cloneInt(h.EndOffset)
	return h
}

func cloneDocument(d domain.Document) domain.Document {
	d.URL = cloneString(d.URL)
	d.Content = cloneString(d.Content)
	d.PDFData = cloneString(d.PDFData)
	d.ReadingTime = cloneInt(d.ReadingTime)
	return d
}

func cloneHighlight(h domain.Highlight) domain.Highlight {
	h.Note = cloneString(h.Note)
	h.Explanation = h.Explanation.Clone()
	h.StartOffset = cloneInt(h.StartOffset)
	h.EndOffset = cloneInt(h.EndOffset)
	return h
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
