package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/pbaille/readai/internal/domain"
)

//go:embed schema.sql
var schema string

// SQLiteStore keeps entities in a private in-memory SQLite database. The
// database lives as long as the store; nothing is written to disk.
// AUTOINCREMENT gives each table its own never-reused id sequence.
type SQLiteStore struct {
	db  *sql.DB
	now Clock

	mu          sync.RWMutex
	defaultUser int64
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens a fresh in-memory database and creates the schema.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	o := buildOptions(opts)

	// Each store gets its own named memory database; one connection keeps
	// it alive and serializes writers.
	dsn := fmt.Sprintf("file:readai-%s?mode=memory&cache=shared", uuid.NewString())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &SQLiteStore{db: db, now: o.now}, nil
}

// Close closes the database, discarding its contents.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Seed creates the default user and records its id.
func (s *SQLiteStore) Seed(ctx context.Context, u domain.NewUser) (domain.User, error) {
	user, err := s.CreateUser(ctx, u)
	if err != nil {
		return domain.User{}, err
	}
	s.mu.Lock()
	s.defaultUser = user.ID
	s.mu.Unlock()
	return user, nil
}

// DefaultUserID returns the id of the seeded user.
func (s *SQLiteStore) DefaultUserID() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaultUser
}

// CreateUser stores a user with a bcrypt-hashed password.
func (s *SQLiteStore) CreateUser(ctx context.Context, u domain.NewUser) (domain.User, error) {
	if err := validateNewUser(u); err != nil {
		return domain.User{}, err
	}
	hash, err := hashPassword(u.Password)
	if err != nil {
		return domain.User{}, err
	}

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO users (username, password) VALUES (?, ?)",
		u.Username, hash,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return domain.User{}, domain.Invalid("username", "is already taken")
		}
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}

	return domain.User{ID: id, Username: u.Username, Password: hash}, nil
}

// GetUser returns the user with the given id.
func (s *SQLiteStore) GetUser(ctx context.Context, id int64) (domain.User, error) {
	var u domain.User
	err := s.db.QueryRowContext(ctx,
		"SELECT id, username, password FROM users WHERE id = ?",
		id,
	).Scan(&u.ID, &u.Username, &u.Password)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, &domain.NotFoundError{Kind: domain.KindUser, ID: id}
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// GetUserByUsername returns the user with the given name.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	var u domain.User
	err := s.db.QueryRowContext(ctx,
		"SELECT id, username, password FROM users WHERE username = ?",
		username,
	).Scan(&u.ID, &u.Username, &u.Password)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, &domain.NotFoundError{Kind: domain.KindUser}
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

const documentColumns = "id, user_id, title, url, type, content, pdf_data, added_at, reading_time"

// InsertDocument stores a document and returns a copy.
func (s *SQLiteStore) InsertDocument(ctx context.Context, in domain.NewDocument) (domain.Document, error) {
	in = documentDefaults(in, s.DefaultUserID())
	now := s.now().UTC()

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO documents (user_id, title, url, type, content, pdf_data, added_at, reading_time) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		in.UserID, in.Title, in.URL, string(in.Type), in.Content, in.PDFData, now.UnixNano(), in.ReadingTime,
	)
	if err != nil {
		return domain.Document{}, fmt.Errorf("insert document: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Document{}, fmt.Errorf("insert document: %w", err)
	}

	return domain.Document{
		ID:          id,
		UserID:      in.UserID,
		Title:       in.Title,
		URL:         in.URL,
		Type:        in.Type,
		Content:     in.Content,
		PDFData:     in.PDFData,
		AddedAt:     time.Unix(0, now.UnixNano()).UTC(),
		ReadingTime: in.ReadingTime,
	}, nil
}

// GetDocument returns the document with the given id.
func (s *SQLiteStore) GetDocument(ctx context.Context, id int64) (domain.Document, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE id = ?",
		id,
	)
	d, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Document{}, &domain.NotFoundError{Kind: domain.KindDocument, ID: id}
	}
	if err != nil {
		return domain.Document{}, fmt.Errorf("get document: %w", err)
	}
	return d, nil
}

// ListDocumentsByUser returns the user's documents, newest first.
func (s *SQLiteStore) ListDocumentsByUser(ctx context.Context, userID int64) ([]domain.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE user_id = ? ORDER BY added_at DESC, id DESC",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	docs := make([]domain.Document, 0)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

const highlightColumns = "id, document_id, user_id, text, note, explanation, start_offset, end_offset, created_at"

// InsertHighlight stores a highlight and returns a copy.
func (s *SQLiteStore) InsertHighlight(ctx context.Context, in domain.NewHighlight) (domain.Highlight, error) {
	in = highlightDefaults(in, s.DefaultUserID())
	now := s.now().UTC()

	var explanation *string
	if in.Explanation != nil {
		raw, err := json.Marshal(in.Explanation)
		if err != nil {
			return domain.Highlight{}, fmt.Errorf("marshal explanation: %w", err)
		}
		text := string(raw)
		explanation = &text
	}

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO highlights (document_id, user_id, text, note, explanation, start_offset, end_offset, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		in.DocumentID, in.UserID, in.Text, in.Note, explanation, in.StartOffset, in.EndOffset, now.UnixNano(),
	)
	if err != nil {
		return domain.Highlight{}, fmt.Errorf("insert highlight: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Highlight{}, fmt.Errorf("insert highlight: %w", err)
	}

	return domain.Highlight{
		ID:          id,
		DocumentID:  in.DocumentID,
		UserID:      in.UserID,
		Text:        in.Text,
		Note:        in.Note,
		Explanation: in.Explanation,
		StartOffset: in.StartOffset,
		EndOffset:   in.EndOffset,
		CreatedAt:   time.Unix(0, now.UnixNano()).UTC(),
	}, nil
}

// GetHighlight returns the highlight with the given id.
func (s *SQLiteStore) GetHighlight(ctx context.Context, id int64) (domain.Highlight, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+highlightColumns+" FROM highlights WHERE id = ?",
		id,
	)
	h, err := scanHighlight(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Highlight{}, &domain.NotFoundError{Kind: domain.KindHighlight, ID: id}
	}
	if err != nil {
		return domain.Highlight{}, fmt.Errorf("get highlight: %w", err)
	}
	return h, nil
}

// ListHighlightsByDocument returns the document's highlights, newest first.
func (s *SQLiteStore) ListHighlightsByDocument(ctx context.Context, documentID int64) ([]domain.Highlight, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+highlightColumns+" FROM highlights WHERE document_id = ? ORDER BY created_at DESC, id DESC",
		documentID,
	)
	if err != nil {
		return nil, fmt.Errorf("list highlights: %w", err)
	}
	defer rows.Close()

	highlights := make([]domain.Highlight, 0)
	for rows.Next() {
		h, err := scanHighlight(rows)
		if err != nil {
			return nil, fmt.Errorf("scan highlight: %w", err)
		}
		highlights = append(highlights, h)
	}
	return highlights, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (domain.Document, error) {
	var (
		d       domain.Document
		docType string
		addedAt int64
	)
	if err := row.Scan(&d.ID, &d.UserID, &d.Title, &d.URL, &docType, &d.Content, &d.PDFData, &addedAt, &d.ReadingTime); err != nil {
		return domain.Document{}, err
	}
	d.Type = domain.DocumentType(docType)
	d.AddedAt = time.Unix(0, addedAt).UTC()
	return d, nil
}

func scanHighlight(row scanner) (domain.Highlight, error) {
	var (
		h           domain.Highlight
		explanation *string
		createdAt   int64
	)
	if err := row.Scan(&h.ID, &h.DocumentID, &h.UserID, &h.Text, &h.Note, &explanation, &h.StartOffset, &h.EndOffset, &createdAt); err != nil {
		return domain.Highlight{}, err
	}
	if explanation != nil {
		h.Explanation = &domain.Explanation{}
		if err := json.Unmarshal([]byte(*explanation), h.Explanation); err != nil {
			return domain.Highlight{}, fmt.Errorf("decode explanation: %w", err)
		}
	}
	h.CreatedAt = time.Unix(0, createdAt).UTC()
	return h, nil
}
