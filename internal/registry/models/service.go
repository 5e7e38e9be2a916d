package models

import (
	"fmt"
	"strings"

	dErrors "cas/pkg/domain-errors"
)

// Mode selects how a service authorizes identities.
type Mode string

const (
	ModeAnonymous  Mode = "ANONYMOUS"
	ModePublic     Mode = "PUBLIC"
	ModeAdmin      Mode = "ADMIN"
	ModeAuthorized Mode = "AUTHORIZED"
)

// IsValid reports whether m is one of the known modes.
func (m Mode) IsValid() bool {
	switch m {
	case ModeAnonymous, ModePublic, ModeAdmin, ModeAuthorized:
		return true
	}
	return false
}

// ParseMode accepts a mode name in any case.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToUpper(strings.TrimSpace(s)))
	if !m.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unknown service mode %q", s))
	}
	return m, nil
}

// Service is a downstream application registered for single sign-on.
//
// Invariants:
//   - AllowedURLs keeps registration order; the first matching pattern wins
//   - A disabled service never matches any URL
type Service struct {
	ID            int64    `json:"id"`
	Name          string   `json:"name"`
	Enabled       bool     `json:"enabled"`
	AllowedURLs   []string `json:"allowedUrls"`
	RequiredRoles []string `json:"requiredRoles"`
	Mode          Mode     `json:"mode"`
}

// NewService builds an enabled service in AUTHORIZED mode, the default for new registrations.
func NewService(name string, allowedURLs ...string) *Service {
	return &Service{
		Name:          name,
		Enabled:       true,
		AllowedURLs:   allowedURLs,
		RequiredRoles: []string{},
		Mode:          ModeAuthorized,
	}
}
