// Package policy decides whether an identity may use a service.
package policy

import (
	identitymodels "cas/internal/identity/models"
	registrymodels "cas/internal/registry/models"
	platformstrings "cas/pkg/platform/strings"
)

// IsAllowed evaluates the service's mode against the identity. identity may be
// nil for an anonymous caller. A nil service or an unknown mode denies.
func IsAllowed(identity *identitymodels.Identity, service *registrymodels.Service) bool {
	if service == nil {
		return false
	}
	switch service.Mode {
	case registrymodels.ModeAnonymous:
		return true
	case registrymodels.ModeAdmin:
		return identity != nil && identity.Admin && !identity.Locked
	case registrymodels.ModePublic:
		return identity != nil && !identity.Locked
	case registrymodels.ModeAuthorized:
		return identity != nil && !identity.Locked &&
			platformstrings.Intersects(identity.Roles, service.RequiredRoles)
	default:
		return false
	}
}
