package service

import (
	"context"
	"fmt"
)

// Logout returns where to send the browser after its session cookie is
// cleared: serviceURL when it belongs to a registered service, otherwise home.
// Sessions are stateless, so nothing is invalidated server side.
func (s *Service) Logout(ctx context.Context, serviceURL string) (string, error) {
	if serviceURL == "" {
		return s.home(), nil
	}
	svc, err := s.services.Resolve(ctx, serviceURL)
	if err != nil {
		return "", fmt.Errorf("resolve service: %w", err)
	}
	if svc == nil {
		return s.home(), nil
	}
	return serviceURL, nil
}
