package service

import (
	"context"

	"cas/internal/cas/protocol"
)

// Validate redeems ticket for serviceURL. Every refusal produces the same
// INVALID_TICKET response; only storage failures return an error.
func (s *Service) Validate(ctx context.Context, ticket, serviceURL string) (resp protocol.Response, err error) {
	ctx, span := s.startSpan(ctx, "cas.Validate")
	defer func() { endSpan(span, err) }()

	if ticket == "" || serviceURL == "" {
		return protocol.InvalidRequest(), nil
	}
	identity, err := s.tickets.GetTicketData(ctx, ticket, serviceURL)
	if err != nil {
		return protocol.Response{}, err
	}
	if identity == nil {
		return protocol.InvalidTicket(ticket), nil
	}
	return protocol.NewSuccess(identity), nil
}
