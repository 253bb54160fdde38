package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"finca/internal/sheets"
)

var _ sheets.Mirror = (*Store)(nil)

// Store is an in-process mirror used when no spreadsheet is configured.
type Store struct {
	mu       sync.Mutex
	rows     []sheets.Row
	refs     map[string]string
	appended int
}

func New() *Store {
	return &Store{refs: make(map[string]string)}
}

// AppendRow stores the row and returns a synthetic row reference.
func (s *Store) AppendRow(_ context.Context, r sheets.Row) (string, error) {
	if r.ID == "" {
		return "", fmt.Errorf("append row: missing id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index(r.ID) >= 0 {
		return s.refs[r.ID], nil
	}
	s.rows = append(s.rows, r)
	s.appended++
	ref := fmt.Sprintf("mem:%d", s.appended)
	s.refs[r.ID] = ref
	return ref, nil
}

func (s *Store) DeleteRow(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.index(id); i >= 0 {
		s.rows = slices.Delete(s.rows, i, i+1)
		delete(s.refs, id)
	}
	return nil
}

func (s *Store) AddAttachment(_ context.Context, id, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(id)
	if i < 0 {
		return fmt.Errorf("add attachment to %s: %w", id, sheets.ErrRowNotFound)
	}
	if s.rows[i].HasAttachment(url) {
		return nil
	}
	s.rows[i].Attachments = strings.TrimSpace(s.rows[i].Attachments + " " + url)
	return nil
}

func (s *Store) ReadRows(_ context.Context) ([]sheets.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.rows), nil
}

func (s *Store) index(id string) int {
	return slices.IndexFunc(s.rows, func(r sheets.Row) bool { return r.ID == id })
}
