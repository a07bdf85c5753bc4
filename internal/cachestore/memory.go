package cachestore

import (
	"context"
	"sync"
)

// MemoryProvider is an in-process Provider backed by maps.
// Suitable for single-instance deployments and tests.
type MemoryProvider struct {
	mu     sync.RWMutex
	stores map[string]map[string]*Response
}

// NewMemoryProvider creates a new in-memory store provider.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		stores: make(map[string]map[string]*Response),
	}
}

// Open returns the named store, creating it if it doesn't exist.
func (p *MemoryProvider) Open(_ context.Context, name string) (Store, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.stores[name]; !ok {
		p.stores[name] = make(map[string]*Response)
	}
	return &memoryStore{name: name, provider: p}, nil
}

// Names returns the names of all existing stores.
func (p *MemoryProvider) Names(_ context.Context) ([]string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	names := make([]string, 0, len(p.stores))
	for name := range p.stores {
		names = append(names, name)
	}
	return names, nil
}

// Delete removes a whole store and all its entries.
// Deleting a store that doesn't exist is not an error.
func (p *MemoryProvider) Delete(_ context.Context, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.stores, name)
	return nil
}

// memoryStore is a handle onto one named generation in the provider.
type memoryStore struct {
	name     string
	provider *MemoryProvider
}

// Name returns the generation name this store was opened under.
func (s *memoryStore) Name() string {
	return s.name
}

// Match returns the stored response for the key, or ErrNotFound.
// The caller gets a copy; stored entries are never aliased out.
func (s *memoryStore) Match(_ context.Context, key string) (*Response, error) {
	s.provider.mu.RLock()
	defer s.provider.mu.RUnlock()

	entries, ok := s.provider.stores[s.name]
	if !ok {
		// Store was purged after this handle was opened
		return nil, ErrNotFound
	}
	resp, ok := entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	return resp.Clone(), nil
}

// Put stores a copy of the response under the key, replacing any previous
// entry. Writing into a purged store recreates it.
func (s *memoryStore) Put(_ context.Context, key string, resp *Response) error {
	s.provider.mu.Lock()
	defer s.provider.mu.Unlock()

	entries, ok := s.provider.stores[s.name]
	if !ok {
		entries = make(map[string]*Response)
		s.provider.stores[s.name] = entries
	}
	entries[key] = resp.Clone()
	return nil
}
