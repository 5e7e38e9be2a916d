package store

import (
	"context"
	"fmt"
	"sync"

	"cas/internal/identity/models"
	"cas/pkg/platform/sentinel"
)

// Error Contract:
// - Return ErrNotFound when no identity matches
// - Return nil for successful operations
// - Return wrapped errors for infrastructure failures

// InMemoryIdentityStore keeps identities in memory for tests and single-node deployments.
// Readers get copies so a concurrent Save is visible to the next lookup and never
// mutates a record a caller already holds.
type InMemoryIdentityStore struct {
	mu         sync.RWMutex
	byUsername map[string]*models.Identity
	byAPIToken map[string]string
}

// NewInMemory constructs an empty in-memory identity store.
func NewInMemory() *InMemoryIdentityStore {
	return &InMemoryIdentityStore{
		byUsername: make(map[string]*models.Identity),
		byAPIToken: make(map[string]string),
	}
}

// Save inserts or replaces an identity keyed by username.
func (s *InMemoryIdentityStore) Save(_ context.Context, identity *models.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.byUsername[identity.Username]; ok && prev.APIToken != "" {
		delete(s.byAPIToken, prev.APIToken)
	}
	if identity.APIToken != "" {
		if owner, ok := s.byAPIToken[identity.APIToken]; ok && owner != identity.Username {
			return fmt.Errorf("api token already assigned: %w", sentinel.ErrInvalidState)
		}
		s.byAPIToken[identity.APIToken] = identity.Username
	}
	s.byUsername[identity.Username] = clone(identity)
	return nil
}

func (s *InMemoryIdentityStore) FindByUsername(_ context.Context, username string) (*models.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if identity, ok := s.byUsername[username]; ok {
		return clone(identity), nil
	}
	return nil, fmt.Errorf("identity not found: %w", sentinel.ErrNotFound)
}

func (s *InMemoryIdentityStore) FindByAPIToken(_ context.Context, token string) (*models.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if username, ok := s.byAPIToken[token]; ok {
		return clone(s.byUsername[username]), nil
	}
	return nil, fmt.Errorf("identity not found: %w", sentinel.ErrNotFound)
}

func clone(identity *models.Identity) *models.Identity {
	c := *identity
	c.Roles = append([]string(nil), identity.Roles...)
	return &c
}
