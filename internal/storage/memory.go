package storage

import (
	"context"
	"sync"

	"github.com/jkh-code/nhl-win-factors-analysis/internal/types"
)

type pageKey struct{ season, page int }

// MemoryArchive keeps rendered pages in memory. Used for dry runs.
type MemoryArchive struct {
	mu   sync.Mutex
	docs map[pageKey]*types.RenderedPage
}

// NewMemoryArchive creates an empty in-memory archive.
func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{docs: make(map[pageKey]*types.RenderedPage)}
}

func (s *MemoryArchive) Name() string { return "memory" }

func (s *MemoryArchive) Insert(_ context.Context, doc *types.RenderedPage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := pageKey{doc.Season, doc.Page}
	if _, ok := s.docs[k]; ok {
		return types.ErrAlreadyArchived
	}
	s.docs[k] = doc
	return nil
}

// Get returns the archived page for a key.
func (s *MemoryArchive) Get(season, page int) (*types.RenderedPage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[pageKey{season, page}]
	return doc, ok
}

// Len returns the number of archived pages.
func (s *MemoryArchive) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}

func (s *MemoryArchive) Close() error { return nil }

// MemoryRows keeps appended rows in memory, in append order.
type MemoryRows struct {
	mu      sync.Mutex
	rows    []*types.Row
	batches int
}

// NewMemoryRows creates an empty in-memory row sink.
func NewMemoryRows() *MemoryRows {
	return &MemoryRows{}
}

func (s *MemoryRows) Name() string { return "memory" }

func (s *MemoryRows) Append(_ context.Context, rows []*types.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, rows...)
	s.batches++
	return nil
}

// Rows returns a copy of everything appended so far.
func (s *MemoryRows) Rows() []*types.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*types.Row(nil), s.rows...)
}

// Batches returns how many Append calls were made.
func (s *MemoryRows) Batches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.batches
}

func (s *MemoryRows) Close() error { return nil }
