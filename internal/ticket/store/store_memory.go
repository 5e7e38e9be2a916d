package store

import (
	"context"
	"sync"
	"time"

	"cas/internal/ticket/models"
)

// InMemoryTicketStore keeps tickets in memory for tests and single-node deployments.
// Consume holds the write lock across lookup, validation and transition.
type InMemoryTicketStore struct {
	mu      sync.Mutex
	tickets map[string]*models.Ticket
}

// NewInMemory constructs an empty in-memory ticket store.
func NewInMemory() *InMemoryTicketStore {
	return &InMemoryTicketStore{tickets: make(map[string]*models.Ticket)}
}

func (s *InMemoryTicketStore) Create(_ context.Context, ticket *models.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *ticket
	s.tickets[ticket.Token] = &c
	return nil
}

// Consume validates and marks the ticket consumed in one critical section.
// A refused redemption leaves the ticket unchanged.
func (s *InMemoryTicketStore) Consume(_ context.Context, token, service string, typ models.Type, now time.Time) (*models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ticket, ok := s.tickets[token]
	if !ok || ticket.Type != typ {
		return nil, notFound()
	}
	if err := ticket.ValidateForConsume(service, now); err != nil {
		return nil, translateConsumeError(err)
	}
	ticket.MarkConsumed()
	c := *ticket
	return &c, nil
}

// DeleteExpired removes tickets whose expiry is not after now.
// The time parameter is injected for testability.
func (s *InMemoryTicketStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for token, ticket := range s.tickets {
		if ticket.IsExpired(now) {
			delete(s.tickets, token)
			deleted++
		}
	}
	return deleted, nil
}

// Len is the number of stored tickets, consumed ones included.
func (s *InMemoryTicketStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tickets)
}
