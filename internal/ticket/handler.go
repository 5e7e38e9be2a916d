// Package ticket issues and redeems single-use CAS service tickets.
package ticket

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	identitymodels "cas/internal/identity/models"
	"cas/internal/platform/metrics"
	"cas/internal/ticket/models"
	"cas/pkg/platform/sentinel"
	"cas/pkg/requestcontext"
)

// tokenBytes of randomness back every ticket, giving 256 bits of entropy.
const tokenBytes = 32

// Store persists tickets. Consume must validate and transition atomically.
type Store interface {
	Create(ctx context.Context, ticket *models.Ticket) error
	Consume(ctx context.Context, token, service string, typ models.Type, now time.Time) (*models.Ticket, error)
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// IdentityFinder loads the identity a ticket was issued to.
type IdentityFinder interface {
	FindByUsername(ctx context.Context, username string) (*identitymodels.Identity, error)
}

// Handler implements the ticket lifecycle on top of a Store.
type Handler struct {
	store      Store
	identities IdentityFinder
	ttl        time.Duration
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// Option configures a Handler.
type Option func(*Handler)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

// New builds a Handler issuing tickets valid for ttl.
func New(store Store, identities IdentityFinder, ttl time.Duration, opts ...Option) *Handler {
	h := &Handler{
		store:      store,
		identities: identities,
		ttl:        ttl,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// GenerateTicketFor creates a ticket of typ bound to serviceURL and returns its token.
func (h *Handler) GenerateTicketFor(ctx context.Context, typ models.Type, serviceURL string, identity *identitymodels.Identity) (string, error) {
	if identity == nil {
		return "", errors.New("generate ticket: identity is required")
	}
	token, err := newToken(typ)
	if err != nil {
		return "", err
	}
	now := requestcontext.Now(ctx)
	ticket := &models.Ticket{
		Token:     token,
		Type:      typ,
		Username:  identity.Username,
		Service:   serviceURL,
		CreatedAt: now,
		ExpiresAt: now.Add(h.ttl),
	}
	if err := h.store.Create(ctx, ticket); err != nil {
		return "", fmt.Errorf("generate ticket: %w", err)
	}
	h.metrics.IncTicketIssued(string(typ))
	h.logger.InfoContext(ctx, "ticket issued",
		"event", "ticket_issued",
		"request_id", requestcontext.RequestID(ctx),
		"ticket", models.Redacted(token),
		"username", identity.Username,
		"service", serviceURL,
	)
	return token, nil
}

// GetTicketData redeems a service ticket for serviceURL and returns the
// identity it was issued to. A nil identity with a nil error means the ticket
// is not recognized: unknown, expired, already used, bound elsewhere, or a
// proxy ticket. Errors are reserved for storage failures.
func (h *Handler) GetTicketData(ctx context.Context, token, serviceURL string) (*identitymodels.Identity, error) {
	start := time.Now()
	defer h.metrics.ObserveRedeem(start)

	if typ, ok := models.TypeOf(token); !ok || typ != models.TypeServiceTicket {
		h.reject(ctx, token, "unsupported ticket type")
		return nil, nil
	}

	ticket, err := h.store.Consume(ctx, token, serviceURL, models.TypeServiceTicket, requestcontext.Now(ctx))
	if err != nil {
		if reason, refused := refusal(err); refused {
			h.reject(ctx, token, reason)
			return nil, nil
		}
		h.metrics.IncValidation(metrics.ResultError)
		return nil, fmt.Errorf("redeem ticket: %w", err)
	}

	identity, err := h.identities.FindByUsername(ctx, ticket.Username)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			h.reject(ctx, token, "identity no longer exists")
			return nil, nil
		}
		h.metrics.IncValidation(metrics.ResultError)
		return nil, fmt.Errorf("load ticket identity: %w", err)
	}
	h.metrics.IncValidation(metrics.ResultSuccess)
	return identity, nil
}

func (h *Handler) reject(ctx context.Context, token, reason string) {
	h.metrics.IncValidation(metrics.ResultInvalid)
	h.logger.InfoContext(ctx, "ticket rejected",
		"event", "ticket_rejected",
		"request_id", requestcontext.RequestID(ctx),
		"ticket", models.Redacted(token),
		"reason", reason,
	)
}

func refusal(err error) (string, bool) {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return "not found", true
	case errors.Is(err, sentinel.ErrExpired):
		return "expired", true
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return "already used", true
	case errors.Is(err, sentinel.ErrMismatch):
		return "service mismatch", true
	}
	return "", false
}

func newToken(typ models.Type) (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate ticket token: %w", err)
	}
	return typ.Prefix() + base64.RawURLEncoding.EncodeToString(buf), nil
}
