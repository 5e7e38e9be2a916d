package service

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"cas/internal/cas/protocol"
	identitymodels "cas/internal/identity/models"
	"cas/internal/platform/metrics"
	"cas/internal/policy"
	registrymodels "cas/internal/registry/models"
	"cas/internal/securecontext"
	ticketmodels "cas/internal/ticket/models"
	"cas/pkg/platform/sentinel"
	"cas/pkg/requestcontext"
)

// LoginRequest is the interactive login form.
type LoginRequest struct {
	Username         string `json:"username"`
	Password         string `json:"password"`
	SecurityPassword string `json:"securityPassword,omitempty"`
	CAS              bool   `json:"cas"`
}

// LoginResult tells the browser where to go next and carries the new session token.
type LoginResult struct {
	Location     string
	SessionToken string
}

// RequestLogin handles a browser arriving at the login endpoint for serviceURL.
// sc is the caller's resolved context and may be nil. It returns the redirect
// location: the service with a fresh ticket when the existing session is
// allowed, the interactive login page when there is no session, or an error
// page for an unknown service or a denied identity.
func (s *Service) RequestLogin(ctx context.Context, sc *securecontext.SecureContext, serviceURL string) (location string, err error) {
	ctx, span := s.startSpan(ctx, "cas.RequestLogin")
	defer func() { endSpan(span, err) }()

	svc, err := s.services.Resolve(ctx, serviceURL)
	if err != nil {
		return "", fmt.Errorf("resolve service: %w", err)
	}
	if svc == nil {
		return s.errorPage(serviceURL, protocol.CodeMissingService), nil
	}
	span.SetAttributes(attribute.Int64("cas.service_id", svc.ID))

	if sc == nil || sc.Identity == nil {
		return s.loginPage(serviceURL), nil
	}
	if !policy.IsAllowed(sc.Identity, svc) {
		s.logger.InfoContext(ctx, "session not allowed for service",
			"event", "login_denied",
			"request_id", requestcontext.RequestID(ctx),
			"username", sc.Identity.Username,
			"service_id", svc.ID,
		)
		return s.errorPage(serviceURL, protocol.CodeDenied), nil
	}

	token, err := s.tickets.GenerateTicketFor(ctx, ticketmodels.TypeServiceTicket, serviceURL, sc.Identity)
	if err != nil {
		return "", err
	}
	return withTicket(serviceURL, token), nil
}

// Authenticate verifies credentials for serviceURL and opens an SSO session.
//
// Unknown usernames and wrong passwords both return ErrBadCredentials. An
// identity with an OTP secret must also present a valid code, otherwise
// ErrSecondFactor. With req.CAS set, the location carries a service ticket
// when the identity is allowed and points at the DENIED error page when not.
// The session token is issued either way.
func (s *Service) Authenticate(ctx context.Context, serviceURL string, req LoginRequest) (result *LoginResult, err error) {
	ctx, span := s.startSpan(ctx, "cas.Authenticate")
	defer func() { endSpan(span, err) }()

	svc, err := s.services.Resolve(ctx, serviceURL)
	if err != nil {
		return nil, fmt.Errorf("resolve service: %w", err)
	}
	if svc == nil {
		s.metrics.IncLogin(metrics.LoginUnknownService)
		return nil, ErrUnknownService
	}

	identity, err := s.checkCredentials(ctx, req.Username, req.Password)
	if err != nil {
		return nil, err
	}

	if identity.RequiresSecondFactor() && !s.otp.IsValid(identity.OTPSecret, req.SecurityPassword) {
		s.metrics.IncLogin(metrics.LoginSecondFactor)
		s.logger.InfoContext(ctx, "second factor rejected",
			"event", "login_failed",
			"reason", "second_factor",
			"request_id", requestcontext.RequestID(ctx),
			"username", identity.Username,
		)
		return nil, ErrSecondFactor
	}

	sessionToken, err := s.sessions.Issue(identity, svc)
	if err != nil {
		return nil, fmt.Errorf("issue session: %w", err)
	}

	location := serviceURL
	if req.CAS {
		location, err = s.casLocation(ctx, identity, svc, serviceURL)
		if err != nil {
			return nil, err
		}
	}

	s.metrics.IncLogin(metrics.LoginSucceeded)
	s.logger.InfoContext(ctx, "login succeeded",
		"event", "login_succeeded",
		"request_id", requestcontext.RequestID(ctx),
		"username", identity.Username,
		"service_id", svc.ID,
		"cas", req.CAS,
	)
	return &LoginResult{Location: location, SessionToken: sessionToken}, nil
}

func (s *Service) casLocation(ctx context.Context, identity *identitymodels.Identity, svc *registrymodels.Service, serviceURL string) (string, error) {
	if !policy.IsAllowed(identity, svc) {
		return s.errorPage(serviceURL, protocol.CodeDenied), nil
	}
	token, err := s.tickets.GenerateTicketFor(ctx, ticketmodels.TypeServiceTicket, serviceURL, identity)
	if err != nil {
		return "", err
	}
	return withTicket(serviceURL, token), nil
}

// checkCredentials spends one bcrypt comparison whether or not the username exists.
func (s *Service) checkCredentials(ctx context.Context, username, password string) (*identitymodels.Identity, error) {
	identity, err := s.identities.FindByUsername(ctx, username)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, fmt.Errorf("load identity: %w", err)
	}
	if !identity.CheckPassword(password) {
		s.metrics.IncLogin(metrics.LoginBadCredentials)
		s.logger.InfoContext(ctx, "credentials rejected",
			"event", "login_failed",
			"reason", "bad_credentials",
			"request_id", requestcontext.RequestID(ctx),
			"username", username,
		)
		return nil, ErrBadCredentials
	}
	return identity, nil
}
