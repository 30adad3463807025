package domain

import (
	"bytes"
	"encoding/json"
	"time"
)

// Kind names an entity collection. Each kind has its own id sequence.
type Kind string

const (
	KindUser      Kind = "user"
	KindDocument  Kind = "document"
	KindHighlight Kind = "highlight"
)

// DocumentType tells where a document's body came from.
type DocumentType string

const (
	DocumentURL DocumentType = "url"
	DocumentPDF DocumentType = "pdf"
)

// User owns documents and highlights. Password holds a bcrypt hash.
type User struct {
	ID       int64  `json:"id" yaml:"id"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"-" yaml:"-"`
}

// NewUser is the input for creating a user. Password is plain text.
type NewUser struct {
	Username string
	Password string
}

// Document is a stored unit of readable content. Exactly one of Content
// and PDFData is set, matching Type.
type Document struct {
	ID          int64        `json:"id" yaml:"id"`
	UserID      int64        `json:"userId" yaml:"userId"`
	Title       string       `json:"title" yaml:"title"`
	URL         *string      `json:"url" yaml:"url"`
	Type        DocumentType `json:"type" yaml:"type"`
	Content     *string      `json:"content" yaml:"content"`
	PDFData     *string      `json:"pdfData" yaml:"pdfData"`
	AddedAt     time.Time    `json:"addedAt" yaml:"addedAt"`
	ReadingTime *int         `json:"readingTime" yaml:"readingTime"`
}

// NewDocument is the insert payload for a document. A zero UserID is
// replaced by the store's default user.
type NewDocument struct {
	UserID      int64
	Title       string
	URL         *string
	Type        DocumentType
	Content     *string
	PDFData     *string
	ReadingTime *int
}

// Highlight is a user-selected span of a document, optionally carrying an
// AI explanation. DocumentID is not checked against existing documents.
type Highlight struct {
	ID          int64        `json:"id" yaml:"id"`
	DocumentID  int64        `json:"documentId" yaml:"documentId"`
	UserID      int64        `json:"userId" yaml:"userId"`
	Text        string       `json:"text" yaml:"text"`
	Note        *string      `json:"note" yaml:"note"`
	Explanation *Explanation `json:"explanation" yaml:"explanation"`
	StartOffset *int         `json:"startOffset" yaml:"startOffset"`
	EndOffset   *int         `json:"endOffset" yaml:"endOffset"`
	CreatedAt   time.Time    `json:"createdAt" yaml:"createdAt"`
}

// NewHighlight is the insert payload for a highlight.
type NewHighlight struct {
	DocumentID  int64
	UserID      int64
	Text        string
	Note        *string
	Explanation *Explanation
	StartOffset *int
	EndOffset   *int
}

// Explanation is the structured reply for an explain request.
type Explanation struct {
	Explanation         string     `json:"explanation" yaml:"explanation" validate:"required"`
	KeyPoints           []string   `json:"key_points" yaml:"key_points" validate:"required"`
	AdditionalResources []Resource `json:"additional_resources,omitempty" yaml:"additional_resources,omitempty" validate:"omitempty,dive"`
}

// Resource is a further-reading pointer attached to an explanation.
type Resource struct {
	Title       string `json:"title" yaml:"title" validate:"required"`
	Description string `json:"description" yaml:"description"`
}

// Clone returns a deep copy so stored explanations cannot be mutated
// through returned records.
func (e *Explanation) Clone() *Explanation {
	if e == nil {
		return nil
	}
	out := &Explanation{Explanation: e.Explanation}
	if e.KeyPoints != nil {
		out.KeyPoints = append([]string{}, e.KeyPoints...)
	}
	if e.AdditionalResources != nil {
		out.AdditionalResources = append([]Resource{}, e.AdditionalResources...)
	}
	return out
}

// SourceList is the structured reply for a related-sources request.
type SourceList struct {
	Sources []Source `json:"sources" yaml:"sources" validate:"required,dive"`
}

// Source is a suggested book, article or paper.
type Source struct {
	Title       string `json:"title" yaml:"title" validate:"required"`
	Author      string `json:"author" yaml:"author"`
	Year        Year   `json:"year" yaml:"year"`
	Description string `json:"description" yaml:"description"`
}

// Year accepts both JSON numbers and strings; models return either.
type Year string

// UnmarshalJSON accepts a quoted or bare year. null leaves y empty.
func (y *Year) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*y = Year(s)
		return nil
	}
	if bytes.Equal(data, []byte("null")) {
		*y = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*y = Year(n.String())
	return nil
}
