package store

import (
	"sync"

	"github.com/pbaille/readai/internal/domain"
)

// Sequence hands out ids per entity kind. Each kind counts from 1 on its
// own and an id is never handed out twice.
type Sequence struct {
	mu   sync.Mutex
	last map[domain.Kind]int64
}

// NewSequence returns a sequence with every kind at zero.
func NewSequence() *Sequence {
	return &Sequence{last: make(map[domain.Kind]int64)}
}

// Next returns the next id for kind.
func (s *Sequence) Next(kind domain.Kind) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last[kind]++
	return s.last[kind]
}
