package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/serroba/doclinks/internal/link"
)

// MemoryStore is an in-memory implementation of link.Repository.
type MemoryStore struct {
	mu       sync.RWMutex
	records  map[string]link.Record
	maxBatch int
}

// NewMemoryStore creates a new in-memory link store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]link.Record),
	}
}

// WithMaxBatch caps how many ids one DeleteBatch call accepts, mimicking a
// backend that stops early on a resource limit. Zero means no cap.
func (m *MemoryStore) WithMaxBatch(n int) *MemoryStore {
	m.maxBatch = n

	return m
}

func (m *MemoryStore) Save(_ context.Context, record *link.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[record.ID]; ok {
		return nil
	}

	m.records[record.ID] = *record

	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*link.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	record, ok := m.records[id]
	if !ok {
		return nil, link.ErrNotFound
	}

	return &record, nil
}

func (m *MemoryStore) QueryExpired(_ context.Context, before time.Time, limit int) ([]*link.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	expired := make([]*link.Record, 0)

	for _, r := range m.records {
		if r.ExpiresAt.Before(before) {
			record := r
			expired = append(expired, &record)
		}
	}

	sort.Slice(expired, func(i, j int) bool {
		if expired[i].ExpiresAt.Equal(expired[j].ExpiresAt) {
			return expired[i].ID < expired[j].ID
		}

		return expired[i].ExpiresAt.Before(expired[j].ExpiresAt)
	})

	if limit > 0 && len(expired) > limit {
		expired = expired[:limit]
	}

	return expired, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.records, id)

	return nil
}

func (m *MemoryStore) DeleteBatch(_ context.Context, ids []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.maxBatch > 0 && len(ids) > m.maxBatch {
		ids = ids[:m.maxBatch]
	}

	for _, id := range ids {
		delete(m.records, id)
	}

	return len(ids), nil
}

// Len returns the number of stored records, expired or not.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.records)
}

// MemoryDocumentStore is an in-memory implementation of link.DocumentStore.
type MemoryDocumentStore struct {
	mu   sync.RWMutex
	docs map[string]link.Document
}

// NewMemoryDocumentStore creates a document store seeded with docs.
func NewMemoryDocumentStore(docs ...link.Document) *MemoryDocumentStore {
	s := &MemoryDocumentStore{docs: make(map[string]link.Document, len(docs))}

	for _, d := range docs {
		s.docs[d.ID] = d
	}

	return s
}

// Put adds or replaces a document.
func (s *MemoryDocumentStore) Put(doc link.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.docs[doc.ID] = doc
}

func (s *MemoryDocumentStore) Get(_ context.Context, id string) (*link.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[id]
	if !ok {
		return nil, link.ErrDocumentNotFound
	}

	return &doc, nil
}

var (
	_ link.Repository    = (*MemoryStore)(nil)
	_ link.BatchDeleter  = (*MemoryStore)(nil)
	_ link.DocumentStore = (*MemoryDocumentStore)(nil)
)
