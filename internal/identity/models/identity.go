package models

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	dErrors "cas/pkg/domain-errors"
	platformstrings "cas/pkg/platform/strings"
)

// Identity is a user known to the authentication server. Identities are
// created and mutated by the identity-management collaborator; the protocol
// core only reads them.
//
// Invariants:
//   - Username is unique and non-empty
//   - PasswordHash is a bcrypt hash; the plaintext is never retrievable
//   - A locked identity is denied by every service mode except ANONYMOUS
type Identity struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	OTPSecret    string    `json:"-"`
	Admin        bool      `json:"admin"`
	Locked       bool      `json:"locked"`
	Roles        []string  `json:"roles"`
	APIToken     string    `json:"-"`
}

// NewIdentity builds an identity with a bcrypt-hashed password.
func NewIdentity(username, password string, roles ...string) (*Identity, error) {
	if username == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "username is required")
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	return &Identity{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: hash,
		Roles:        platformstrings.DedupeAndTrim(roles),
	}, nil
}

// HashPassword hashes a plaintext password for storage.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "password cannot be empty")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", dErrors.New(dErrors.CodeInvalidInput, "password is too long")
		}
		return "", fmt.Errorf("could not hash password: %w", err)
	}
	return string(hashed), nil
}

// dummyHash is compared against when the username is unknown so both paths
// cost one bcrypt comparison.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("cas-timing-equalizer"), bcrypt.DefaultCost)

// CheckPassword reports whether password matches the stored hash.
// A nil identity still spends a comparison.
func (i *Identity) CheckPassword(password string) bool {
	if i == nil || i.PasswordHash == "" {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(i.PasswordHash), []byte(password)) == nil
}

// RequiresSecondFactor reports whether a one-time code must accompany the password.
func (i *Identity) RequiresSecondFactor() bool {
	return i.OTPSecret != ""
}
