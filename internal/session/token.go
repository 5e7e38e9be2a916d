// Package session issues and verifies the signed SSO session credential.
// Tokens are stateless: signature and expiry are the only checks.
package session

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	identitymodels "cas/internal/identity/models"
	registrymodels "cas/internal/registry/models"
	dErrors "cas/pkg/domain-errors"
)

// ErrInvalid is the single failure reported by Verify. The wrapped message
// carries the reason for debug logging only.
var ErrInvalid = dErrors.New(dErrors.CodeUnauthorized, "invalid session token")

// Claims is the session token payload. Subject holds the username.
type Claims struct {
	ServiceID string `json:"svc,omitempty"`
	jwt.RegisteredClaims
}

// Username returns the subject claim.
func (c *Claims) Username() string {
	return c.Subject
}

// Issuer signs session tokens with HS256.
type Issuer struct {
	signingKey []byte
	issuer     string
	ttl        time.Duration
	clock      func() time.Time
}

// Option configures an Issuer.
type Option func(*Issuer)

// WithClock overrides the time source for both issuing and verifying.
func WithClock(clock func() time.Time) Option {
	return func(i *Issuer) {
		if clock != nil {
			i.clock = clock
		}
	}
}

// NewIssuer builds an Issuer. ttl is the validity window of every token.
func NewIssuer(signingKey, issuer string, ttl time.Duration, opts ...Option) *Issuer {
	i := &Issuer{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		ttl:        ttl,
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Issue signs a token for identity. service may be nil.
func (i *Issuer) Issue(identity *identitymodels.Identity, service *registrymodels.Service) (string, error) {
	if identity == nil || identity.Username == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "identity is required")
	}
	now := i.clock()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.Username,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			ID:        uuid.NewString(),
		},
	}
	if service != nil {
		claims.ServiceID = strconv.FormatInt(service.ID, 10)
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, issuer and expiry. Every failure wraps ErrInvalid.
func (i *Issuer) Verify(token string) (*Claims, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalid)
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		return i.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.clock),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalid, reason(err))
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalid)
	}
	return claims, nil
}

func reason(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "expired"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "bad signature"
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "malformed"
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return "wrong issuer"
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return "not valid yet"
	default:
		return err.Error()
	}
}
