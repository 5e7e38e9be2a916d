package models

import (
	"errors"
	"strings"
	"time"
)

// Type discriminates CAS ticket kinds. The token prefix carries the type.
type Type string

const (
	TypeServiceTicket Type = "ST"
	TypeProxyTicket   Type = "PT"
)

// Prefix returns the token prefix for the type, e.g. "ST-".
func (t Type) Prefix() string {
	return string(t) + "-"
}

// TypeOf reads the type from a token prefix. ok is false for unknown prefixes.
func TypeOf(token string) (Type, bool) {
	switch {
	case strings.HasPrefix(token, TypeServiceTicket.Prefix()):
		return TypeServiceTicket, true
	case strings.HasPrefix(token, TypeProxyTicket.Prefix()):
		return TypeProxyTicket, true
	}
	return "", false
}

// Consume failures reported by ValidateForConsume. Stores translate them to
// sentinel errors at their boundary.
var (
	ErrConsumed        = errors.New("ticket already used")
	ErrExpired         = errors.New("ticket expired")
	ErrServiceMismatch = errors.New("ticket bound to another service")
)

// Ticket is a single-use proof of login bound to one service URL.
//
// Lifecycle: CREATED -> CONSUMED on the one successful redemption, or
// CREATED -> EXPIRED once ExpiresAt passes. Both are terminal.
type Ticket struct {
	Token     string
	Type      Type
	Username  string
	Service   string
	CreatedAt time.Time
	ExpiresAt time.Time
	Consumed  bool
}

// IsExpired reports whether the ticket can no longer be redeemed at now.
func (t *Ticket) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// ValidateForConsume checks a redemption attempt without changing state.
// Expiry is checked first so an expired ticket fails regardless of consumption.
func (t *Ticket) ValidateForConsume(service string, now time.Time) error {
	if t.IsExpired(now) {
		return ErrExpired
	}
	if t.Consumed {
		return ErrConsumed
	}
	if t.Service != service {
		return ErrServiceMismatch
	}
	return nil
}

// MarkConsumed records the successful redemption.
func (t *Ticket) MarkConsumed() {
	t.Consumed = true
}

// Redacted shortens a token for logs: type prefix and last four characters.
func Redacted(token string) string {
	if len(token) <= 8 {
		return "***"
	}
	prefix := ""
	if typ, ok := TypeOf(token); ok {
		prefix = typ.Prefix()
	}
	return prefix + "..." + token[len(token)-4:]
}
