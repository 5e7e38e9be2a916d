// Package otp verifies time-based one-time passwords (RFC 6238).
package otp

import (
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// Validator checks submitted codes against a shared base32 secret, accepting
// Skew periods either side of the current step.
type Validator struct {
	opts  totp.ValidateOpts
	clock func() time.Time
}

// Option configures a Validator.
type Option func(*Validator)

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(v *Validator) {
		if clock != nil {
			v.clock = clock
		}
	}
}

// New builds a six-digit SHA1 validator, the form authenticator apps expect.
func New(period time.Duration, skew uint, opts ...Option) *Validator {
	seconds := uint(period / time.Second)
	if seconds == 0 {
		seconds = 30
	}
	v := &Validator{
		opts: totp.ValidateOpts{
			Period:    seconds,
			Skew:      skew,
			Digits:    otp.DigitsSix,
			Algorithm: otp.AlgorithmSHA1,
		},
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// IsValid reports whether code is acceptable for secret right now. A malformed
// secret or code is simply invalid. Comparison is constant time.
func (v *Validator) IsValid(secret, code string) bool {
	secret = strings.TrimSpace(secret)
	code = strings.TrimSpace(code)
	if secret == "" || code == "" {
		return false
	}
	ok, err := totp.ValidateCustom(code, strings.ToUpper(secret), v.clock().UTC(), v.opts)
	return err == nil && ok
}
