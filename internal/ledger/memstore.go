package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MemStore is an in-process Store with the same conditional-update semantics
// as the remote one. Used by tests and local development.
type MemStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]*Document
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{collections: make(map[string]map[string]*Document)}
}

func (s *MemStore) Get(_ context.Context, collection, id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.collections[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

func (s *MemStore) Create(_ context.Context, collection, id string, data any) (*Document, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.collections[collection] == nil {
		s.collections[collection] = make(map[string]*Document)
	}
	if _, exists := s.collections[collection][id]; exists {
		return nil, fmt.Errorf("document %s/%s already exists", collection, id)
	}
	doc := &Document{ID: id, Rev: 1, Data: raw}
	s.collections[collection][id] = doc
	cp := *doc
	return &cp, nil
}

func (s *MemStore) Update(_ context.Context, collection, id string, expectedRev int64, data any) (*Document, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.collections[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	if doc.Rev != expectedRev {
		return nil, ErrConflict
	}
	doc.Rev++
	doc.Data = raw
	cp := *doc
	return &cp, nil
}

func (s *MemStore) Query(_ context.Context, collection string, filters []Filter, limit int) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Document
	for _, doc := range s.collections[collection] {
		if matchesFilters(doc.Data, filters) {
			out = append(out, *doc)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// matchesFilters applies equality filters against top-level string fields.
func matchesFilters(raw json.RawMessage, filters []Filter) bool {
	if len(filters) == 0 {
		return true
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return false
	}
	for _, f := range filters {
		v, ok := fields[f.Field]
		if !ok {
			return false
		}
		str, ok := v.(string)
		if !ok || str != f.Value {
			return false
		}
	}
	return true
}
