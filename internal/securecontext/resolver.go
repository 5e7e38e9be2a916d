package securecontext

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	identitymodels "cas/internal/identity/models"
	registrymodels "cas/internal/registry/models"
	"cas/internal/session"
	"cas/pkg/platform/httputil"
	"cas/pkg/platform/sentinel"
	"cas/pkg/requestcontext"
)

// Resolver builds a SecureContext from a request. (nil, nil) means the
// resolver's credential is absent or invalid; an error means a dependency
// failed and the request cannot be served.
type Resolver func(r *http.Request) (*SecureContext, error)

// Chain tries resolvers in order. The first to produce a context wins.
type Chain []Resolver

// Resolve runs the chain. It returns (nil, nil) when no resolver succeeds.
func (c Chain) Resolve(r *http.Request) (*SecureContext, error) {
	for _, resolve := range c {
		sc, err := resolve(r)
		if err != nil {
			return nil, err
		}
		if sc != nil {
			return sc, nil
		}
	}
	return nil, nil
}

// Middleware attaches the chain's result to the request context. A context
// already attached upstream is left alone and the chain does not run.
func Middleware(chain Chain, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := FromContext(r.Context()); ok {
				next.ServeHTTP(w, r)
				return
			}
			sc, err := chain.Resolve(r)
			if err != nil {
				logger.ErrorContext(r.Context(), "secure context resolution failed",
					"request_id", requestcontext.RequestID(r.Context()),
					"error", err,
				)
				httputil.WriteError(w, err)
				return
			}
			if sc != nil {
				r = r.WithContext(WithSecureContext(r.Context(), sc))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// TokenVerifier verifies session tokens.
type TokenVerifier interface {
	Verify(token string) (*session.Claims, error)
}

// IdentityFinder looks identities up by username or API token.
type IdentityFinder interface {
	FindByUsername(ctx context.Context, username string) (*identitymodels.Identity, error)
	FindByAPIToken(ctx context.Context, token string) (*identitymodels.Identity, error)
}

// ServiceResolver maps a URL to a registered service.
type ServiceResolver interface {
	Resolve(ctx context.Context, rawURL string) (*registrymodels.Service, error)
}

// ServiceParam is the query parameter naming the target service.
const ServiceParam = "service"

// SessionTokenResolver reads the session cookie and verifies it. Invalid
// tokens are treated as absent.
func SessionTokenResolver(cookieName string, verifier TokenVerifier, identities IdentityFinder, services ServiceResolver, logger *slog.Logger) Resolver {
	return func(r *http.Request) (*SecureContext, error) {
		cookie, err := r.Cookie(cookieName)
		if err != nil || cookie.Value == "" {
			return nil, nil
		}
		ctx := r.Context()
		claims, err := verifier.Verify(cookie.Value)
		if err != nil {
			logger.DebugContext(ctx, "ignoring session cookie",
				"request_id", requestcontext.RequestID(ctx),
				"reason", err.Error(),
			)
			return nil, nil
		}
		identity, err := lookup(identities.FindByUsername(ctx, claims.Username()))
		if err != nil || identity == nil {
			return nil, err
		}
		return build(r, identity, SourceSessionToken, services)
	}
}

// APITokenResolver accepts "Authorization: Bearer <token>" or the dedicated header.
func APITokenResolver(header string, identities IdentityFinder, services ServiceResolver) Resolver {
	return func(r *http.Request) (*SecureContext, error) {
		token := apiToken(r, header)
		if token == "" {
			return nil, nil
		}
		identity, err := lookup(identities.FindByAPIToken(r.Context(), token))
		if err != nil || identity == nil {
			return nil, err
		}
		return build(r, identity, SourceAPIToken, services)
	}
}

func apiToken(r *http.Request, header string) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		const prefix = "Bearer "
		if len(auth) > len(prefix) && strings.EqualFold(auth[:len(prefix)], prefix) {
			return strings.TrimSpace(auth[len(prefix):])
		}
	}
	if header == "" {
		return ""
	}
	return strings.TrimSpace(r.Header.Get(header))
}

func lookup(identity *identitymodels.Identity, err error) (*identitymodels.Identity, error) {
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load identity: %w", err)
	}
	return identity, nil
}

// build resolves the optional service query parameter into the context.
func build(r *http.Request, identity *identitymodels.Identity, source Source, services ServiceResolver) (*SecureContext, error) {
	sc := &SecureContext{Identity: identity, Source: source}
	if target := r.URL.Query().Get(ServiceParam); target != "" && services != nil {
		svc, err := services.Resolve(r.Context(), target)
		if err != nil {
			return nil, fmt.Errorf("resolve service: %w", err)
		}
		sc.Service = svc
	}
	return sc, nil
}
