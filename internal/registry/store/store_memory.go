package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"cas/internal/registry/models"
	"cas/pkg/platform/sentinel"
)

// Error Contract:
// - Return ErrNotFound when the requested service does not exist
// - Return nil for successful operations

// InMemoryServiceStore keeps service registrations in memory.
type InMemoryServiceStore struct {
	mu       sync.RWMutex
	services map[int64]*models.Service
	nextID   int64
}

// NewInMemory constructs an empty in-memory service store.
func NewInMemory() *InMemoryServiceStore {
	return &InMemoryServiceStore{services: make(map[int64]*models.Service)}
}

// Create assigns the next id and stores the service.
func (s *InMemoryServiceStore) Create(_ context.Context, svc *models.Service) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	svc.ID = s.nextID
	s.services[svc.ID] = clone(svc)
	return nil
}

// Update replaces an existing service.
func (s *InMemoryServiceStore) Update(_ context.Context, svc *models.Service) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.services[svc.ID]; !ok {
		return fmt.Errorf("service not found: %w", sentinel.ErrNotFound)
	}
	s.services[svc.ID] = clone(svc)
	return nil
}

func (s *InMemoryServiceStore) FindByID(_ context.Context, id int64) (*models.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if svc, ok := s.services[id]; ok {
		return clone(svc), nil
	}
	return nil, fmt.Errorf("service not found: %w", sentinel.ErrNotFound)
}

// ListEnabled returns enabled services ordered by id.
func (s *InMemoryServiceStore) ListEnabled(_ context.Context) ([]*models.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Service, 0, len(s.services))
	for _, svc := range s.services {
		if svc.Enabled {
			out = append(out, clone(svc))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func clone(svc *models.Service) *models.Service {
	c := *svc
	c.AllowedURLs = append([]string(nil), svc.AllowedURLs...)
	c.RequiredRoles = append([]string(nil), svc.RequiredRoles...)
	return &c
}
