package store

import (
	"errors"
	"fmt"

	"cas/internal/ticket/models"
	"cas/pkg/platform/sentinel"
)

// Error Contract:
// All store methods follow this error pattern:
// - Return ErrNotFound when the ticket does not exist or has another type
// - Return ErrExpired, ErrAlreadyUsed or ErrMismatch when redemption is refused
// - Return wrapped errors with context for infrastructure failures

// translateConsumeError converts model validation failures to sentinel errors.
func translateConsumeError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, models.ErrExpired):
		return fmt.Errorf("%s: %w", err, sentinel.ErrExpired)
	case errors.Is(err, models.ErrConsumed):
		return fmt.Errorf("%s: %w", err, sentinel.ErrAlreadyUsed)
	case errors.Is(err, models.ErrServiceMismatch):
		return fmt.Errorf("%s: %w", err, sentinel.ErrMismatch)
	default:
		return fmt.Errorf("%s: %w", err, sentinel.ErrInvalidState)
	}
}

func notFound() error {
	return fmt.Errorf("ticket not found: %w", sentinel.ErrNotFound)
}
