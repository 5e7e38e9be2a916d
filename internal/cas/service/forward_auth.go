package service

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"cas/internal/cas/protocol"
	"cas/internal/platform/metrics"
	"cas/internal/policy"
	"cas/internal/securecontext"
	"cas/pkg/requestcontext"
)

// ForwardedRequest is the original request as reported by a reverse proxy.
type ForwardedRequest struct {
	Proto string
	Host  string
	URI   string
}

// URL reassembles the target URL exactly as forwarded.
func (f ForwardedRequest) URL() string {
	return f.Proto + "://" + f.Host + f.URI
}

// Decision is the forward-auth verdict. Location is set when Allowed is false.
type Decision struct {
	Allowed  bool
	Location string
}

// ForwardAuth decides whether the caller may reach the forwarded URL.
func (s *Service) ForwardAuth(ctx context.Context, sc *securecontext.SecureContext, fwd ForwardedRequest) (decision Decision, err error) {
	ctx, span := s.startSpan(ctx, "cas.ForwardAuth")
	defer func() { endSpan(span, err) }()

	target := fwd.URL()
	span.SetAttributes(attribute.String("cas.forward_host", fwd.Host))

	if sc == nil {
		s.metrics.IncForwardAuth(metrics.ForwardAuthNoSession)
		return Decision{Location: s.forwardLoginPage(target)}, nil
	}

	svc, err := s.services.Resolve(ctx, target)
	if err != nil {
		return Decision{}, fmt.Errorf("resolve service: %w", err)
	}
	if svc == nil {
		s.metrics.IncForwardAuth(metrics.ForwardAuthNoService)
		s.denied(ctx, sc, target, protocol.CodeMissingService)
		return Decision{Location: s.errorPage(target, protocol.CodeMissingService)}, nil
	}
	if !policy.IsAllowed(sc.Identity, svc) {
		s.metrics.IncForwardAuth(metrics.ForwardAuthDenied)
		s.denied(ctx, sc, target, protocol.CodeDenied)
		return Decision{Location: s.errorPage(target, protocol.CodeDenied)}, nil
	}

	s.metrics.IncForwardAuth(metrics.ForwardAuthAllowed)
	return Decision{Allowed: true}, nil
}

func (s *Service) denied(ctx context.Context, sc *securecontext.SecureContext, target, code string) {
	username := ""
	if sc.Identity != nil {
		username = sc.Identity.Username
	}
	s.logger.InfoContext(ctx, "forward auth denied",
		"event", "forward_auth_denied",
		"request_id", requestcontext.RequestID(ctx),
		"username", username,
		"source", string(sc.Source),
		"target", target,
		"code", code,
	)
}
