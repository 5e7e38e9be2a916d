// Package securecontext determines who is calling, and for which service,
// from credentials on the inbound request.
package securecontext

import (
	"context"

	identitymodels "cas/internal/identity/models"
	registrymodels "cas/internal/registry/models"
)

// Source names the credential a SecureContext was built from.
type Source string

const (
	SourceSessionToken Source = "SESSION_TOKEN"
	SourceAPIToken     Source = "API_TOKEN"
	// SourceForwarded is reserved for contexts asserted by a trusted proxy.
	// No resolver produces it yet.
	SourceForwarded Source = "FORWARDED"
)

// SecureContext is the request-scoped caller view. Identity and Service may be nil.
type SecureContext struct {
	Identity *identitymodels.Identity
	Service  *registrymodels.Service
	Source   Source
}

type secureContextKey struct{}

// WithSecureContext attaches sc to ctx.
func WithSecureContext(ctx context.Context, sc *SecureContext) context.Context {
	return context.WithValue(ctx, secureContextKey{}, sc)
}

// FromContext returns the attached context, if any. Handlers read it once and
// pass it explicitly to the services they call.
func FromContext(ctx context.Context) (*SecureContext, bool) {
	sc, ok := ctx.Value(secureContextKey{}).(*SecureContext)
	return sc, ok && sc != nil
}
