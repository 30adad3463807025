package store

import (
	"context"
	"sort"
	"sync"

	"github.com/pbaille/readai/internal/domain"
)

// MemoryStore keeps every entity in maps guarded by one lock. Id
// allocation happens under the write lock, so allocate-and-store is a
// single step.
type MemoryStore struct {
	mu          sync.RWMutex
	seq         *Sequence
	now         Clock
	defaultUser int64

	users      map[int64]domain.User
	usernames  map[string]int64
	documents  map[int64]domain.Document
	highlights map[int64]domain.Highlight
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store. Call Seed before inserting
// records that rely on the default user.
func NewMemoryStore(opts ...Option) *MemoryStore {
	o := buildOptions(opts)
	return &MemoryStore{
		seq:        NewSequence(),
		now:        o.now,
		users:      make(map[int64]domain.User),
		usernames:  make(map[string]int64),
		documents:  make(map[int64]domain.Document),
		highlights: make(map[int64]domain.Highlight),
	}
}

// Seed creates the default user and records its id.
func (m *MemoryStore) Seed(ctx context.Context, u domain.NewUser) (domain.User, error) {
	user, err := m.CreateUser(ctx, u)
	if err != nil {
		return domain.User{}, err
	}
	m.mu.Lock()
	m.defaultUser = user.ID
	m.mu.Unlock()
	return user, nil
}

// DefaultUserID returns the id of the seeded user.
func (m *MemoryStore) DefaultUserID() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultUser
}

// CreateUser stores a user with a bcrypt-hashed password.
func (m *MemoryStore) CreateUser(_ context.Context, u domain.NewUser) (domain.User, error) {
	if err := validateNewUser(u); err != nil {
		return domain.User{}, err
	}
	hash, err := hashPassword(u.Password)
	if err != nil {
		return domain.User{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.usernames[u.Username]; taken {
		return domain.User{}, domain.Invalid("username", "is already taken")
	}
	user := domain.User{
		ID:       m.seq.Next(domain.KindUser),
		Username: u.Username,
		Password: hash,
	}
	m.users[user.ID] = user
	m.usernames[user.Username] = user.ID
	return user, nil
}

// GetUser returns the user with the given id.
func (m *MemoryStore) GetUser(_ context.Context, id int64) (domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return domain.User{}, &domain.NotFoundError{Kind: domain.KindUser, ID: id}
	}
	return u, nil
}

// GetUserByUsername returns the user with the given name.
func (m *MemoryStore) GetUserByUsername(_ context.Context, username string) (domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.usernames[username]
	if !ok {
		return domain.User{}, &domain.NotFoundError{Kind: domain.KindUser}
	}
	return m.users[id], nil
}

// InsertDocument stores a document and returns a copy.
func (m *MemoryStore) InsertDocument(_ context.Context, in domain.NewDocument) (domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	in = documentDefaults(in, m.defaultUser)
	doc := domain.Document{
		ID:          m.seq.Next(domain.KindDocument),
		UserID:      in.UserID,
		Title:       in.Title,
		URL:         in.URL,
		Type:        in.Type,
		Content:     in.Content,
		PDFData:     in.PDFData,
		AddedAt:     m.now().UTC(),
		ReadingTime: in.ReadingTime,
	}
	m.documents[doc.ID] = doc
	return cloneDocument(doc), nil
}

// GetDocument returns the document with the given id.
func (m *MemoryStore) GetDocument(_ context.Context, id int64) (domain.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.documents[id]
	if !ok {
		return domain.Document{}, &domain.NotFoundError{Kind: domain.KindDocument, ID: id}
	}
	return cloneDocument(d), nil
}

// ListDocumentsByUser returns the user's documents, newest first.
func (m *MemoryStore) ListDocumentsByUser(_ context.Context, userID int64) ([]domain.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Document, 0)
	for _, d := range m.documents {
		if d.UserID == userID {
			res = append(res, cloneDocument(d))
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if !res[i].AddedAt.Equal(res[j].AddedAt) {
			return res[i].AddedAt.After(res[j].AddedAt)
		}
		return res[i].ID > res[j].ID
	})
	return res, nil
}

// InsertHighlight stores a highlight and returns a copy.
func (m *MemoryStore) InsertHighlight(_ context.Context, in domain.NewHighlight) (domain.Highlight, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	in = highlightDefaults(in, m.defaultUser)
	h := domain.Highlight{
		ID:          m.seq.Next(domain.KindHighlight),
		DocumentID:  in.DocumentID,
		UserID:      in.UserID,
		Text:        in.Text,
		Note:        in.Note,
		Explanation: in.Explanation,
		StartOffset: in.StartOffset,
		EndOffset:   in.EndOffset,
		CreatedAt:   m.now().UTC(),
	}
	m.highlights[h.ID] = h
	return cloneHighlight(h), nil
}

// GetHighlight returns the highlight with the given id.
func (m *MemoryStore) GetHighlight(_ context.Context, id int64) (domain.Highlight, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.highlights[id]
	if !ok {
		return domain.Highlight{}, &domain.NotFoundError{Kind: domain.KindHighlight, ID: id}
	}
	return cloneHighlight(h), nil
}

// ListHighlightsByDocument returns the document's highlights, newest first.
func (m *MemoryStore) ListHighlightsByDocument(_ context.Context, documentID int64) ([]domain.Highlight, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Highlight, 0)
	for _, h := range m.highlights {
		if h.DocumentID == documentID {
			res = append(res, cloneHighlight(h))
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if !res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].CreatedAt.After(res[j].CreatedAt)
		}
		return res[i].ID > res[j].ID
	})
	return res, nil
}

// Close is a no-op; memory is released with the store.
func (m *MemoryStore) Close() error { return nil }
