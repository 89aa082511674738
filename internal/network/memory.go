package network

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

type memoryEntry struct {
	network   *Network
	updatedAt time.Time
}

// InMemoryStore implements NetworkStore for testing and one-shot CLI runs.
type InMemoryStore struct {
	mu       sync.RWMutex
	networks map[string]memoryEntry
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{networks: make(map[string]memoryEntry)}
}

// SaveNetwork stores a deep copy of n.
func (s *InMemoryStore) SaveNetwork(ctx context.Context, n *Network) error {
	if n == nil || n.Name == "" {
		return fmt.Errorf("network name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.networks[n.Name] = memoryEntry{network: n.Clone(), updatedAt: time.Now().UTC()}
	return nil
}

// LoadNetwork returns a deep copy of the named network.
func (s *InMemoryStore) LoadNetwork(ctx context.Context, name string) (*Network, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.networks[name]
	if !ok {
		return nil, fmt.Errorf("load %q: %w", name, ErrNotFound)
	}
	return e.network.Clone(), nil
}

// ListNetworks returns summaries sorted by name.
func (s *InMemoryStore) ListNetworks(ctx context.Context) ([]Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Summary, 0, len(s.networks))
	for name, e := range s.networks {
		out = append(out, Summary{
			Name:          name,
			NodeCount:     len(e.network.nodes),
			RelationCount: len(e.network.relations),
			UpdatedAt:     e.updatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// DeleteNetwork removes the named network.
func (s *InMemoryStore) DeleteNetwork(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.networks[name]; !ok {
		return fmt.Errorf("delete %q: %w", name, ErrNotFound)
	}
	delete(s.networks, name)
	return nil
}

// Close is a no-op.
func (s *InMemoryStore) Close() error {
	return nil
}
