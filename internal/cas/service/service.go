// Package service orchestrates the CAS login, validate, logout and
// forward-auth flows over the registry, policy, ticket and session components.
package service

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	identitymodels "cas/internal/identity/models"
	"cas/internal/platform/metrics"
	registrymodels "cas/internal/registry/models"
	ticketmodels "cas/internal/ticket/models"
	dErrors "cas/pkg/domain-errors"
)

const tracerName = "cas/internal/cas/service"

// Login failures the transport maps to protocol responses.
var (
	ErrUnknownService = dErrors.New(dErrors.CodeNotFound, "MISSING_SERVICE")
	ErrBadCredentials = dErrors.New(dErrors.CodeForbidden, "username or password does not match")
	// ErrSecondFactor is answered with 409 Conflict, kept for client compatibility.
	ErrSecondFactor = dErrors.New(dErrors.CodeConflict, "second factor required or invalid")
)

// ServiceResolver maps a URL to a registered service, or nil.
type ServiceResolver interface {
	Resolve(ctx context.Context, rawURL string) (*registrymodels.Service, error)
}

// IdentityFinder loads identities by username.
type IdentityFinder interface {
	FindByUsername(ctx context.Context, username string) (*identitymodels.Identity, error)
}

// TicketHandler issues and redeems tickets.
type TicketHandler interface {
	GenerateTicketFor(ctx context.Context, typ ticketmodels.Type, serviceURL string, identity *identitymodels.Identity) (string, error)
	GetTicketData(ctx context.Context, token, serviceURL string) (*identitymodels.Identity, error)
}

// SessionIssuer signs session tokens.
type SessionIssuer interface {
	Issue(identity *identitymodels.Identity, service *registrymodels.Service) (string, error)
}

// OTPValidator checks one-time codes.
type OTPValidator interface {
	IsValid(secret, code string) bool
}

// Service implements the CAS flows.
type Service struct {
	services     ServiceResolver
	identities   IdentityFinder
	tickets      TicketHandler
	sessions     SessionIssuer
	otp          OTPValidator
	systemDomain string
	metrics      *metrics.Metrics
	logger       *slog.Logger
	tracer       trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTracer overrides the global tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// New builds the CAS service. systemDomain is the public base URL of the
// login UI, without a trailing slash.
func New(
	services ServiceResolver,
	identities IdentityFinder,
	tickets TicketHandler,
	sessions SessionIssuer,
	otp OTPValidator,
	systemDomain string,
	opts ...Option,
) *Service {
	s := &Service{
		services:     services,
		identities:   identities,
		tickets:      tickets,
		sessions:     sessions,
		otp:          otp,
		systemDomain: systemDomain,
		logger:       slog.Default(),
		tracer:       otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name)
}

// endSpan records unexpected failures. Protocol refusals are not span errors.
func endSpan(span trace.Span, err error) {
	if err != nil && dErrors.CodeOf(err) == dErrors.CodeInternal {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
