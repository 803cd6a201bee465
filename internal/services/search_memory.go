// internal/services/search_memory.go
package services

import (
	"context"
	"sync"
)

// InMemoryIndexer is a SearchIndexer backed by a map. Tests and local
// development use it in place of a running search engine.
type InMemoryIndexer struct {
	mu        sync.RWMutex
	documents map[string]map[string]interface{}
}

var _ SearchIndexer = (*InMemoryIndexer)(nil)

func NewInMemoryIndexer() *InMemoryIndexer {
	return &InMemoryIndexer{
		documents: make(map[string]map[string]interface{}),
	}
}

func (m *InMemoryIndexer) UpsertListing(_ context.Context, document map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, _ := document["id"].(string)
	m.documents[id] = document
	return nil
}

func (m *InMemoryIndexer) DeleteListing(_ context.Context, listingID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.documents, listingID)
	return nil
}

func (m *InMemoryIndexer) HealthCheck(_ context.Context) error {
	return nil
}

// Document returns the stored document for assertions.
func (m *InMemoryIndexer) Document(listingID string) (map[string]interface{}, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.documents[listingID]
	return doc, ok
}

func (m *InMemoryIndexer) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.documents)
}
