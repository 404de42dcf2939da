package messaging

import (
	"context"
	"sync"

	"github.com/omnivault/omnivault/internal/domain"
)

// MemStore is an in-memory domain.MessageStore for the sim mode and tests.
// Production deployments use the Postgres-backed store.
type MemStore struct {
	mu        sync.Mutex
	processed map[string]bool
	nonces    map[uint32]uint64
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		processed: make(map[string]bool),
		nonces:    make(map[uint32]uint64),
	}
}

// MarkProcessed implements domain.MessageStore.
func (s *MemStore) MarkProcessed(_ context.Context, messageID string, _ domain.MessageType, _ uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.processed[messageID] {
		return domain.ErrAlreadyExists
	}
	s.processed[messageID] = true
	return nil
}

// IsProcessed implements domain.MessageStore.
func (s *MemStore) IsProcessed(_ context.Context, messageID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processed[messageID], nil
}

// NextNonce implements domain.MessageStore.
func (s *MemStore) NextNonce(_ context.Context, chainID uint32) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nonces[chainID]++
	return s.nonces[chainID], nil
}

// Compile-time interface check.
var _ domain.MessageStore = (*MemStore)(nil)
