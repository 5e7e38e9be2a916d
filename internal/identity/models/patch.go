package models

import (
	"fmt"

	dErrors "cas/pkg/domain-errors"
	platformstrings "cas/pkg/platform/strings"
)

// Updatable identity fields. Anything else in a patch is rejected.
const (
	FieldAdmin    = "admin"
	FieldLocked   = "locked"
	FieldRoles    = "roles"
	FieldPassword = "password"
)

// ApplyIdentityPatch applies a partial update decoded from JSON. The patch is
// validated completely before any field is written, so a rejected patch
// leaves the identity untouched.
func ApplyIdentityPatch(identity *Identity, patch map[string]any) error {
	next := *identity
	for field, value := range patch {
		switch field {
		case FieldAdmin:
			b, ok := value.(bool)
			if !ok {
				return invalidField(field, "boolean")
			}
			next.Admin = b
		case FieldLocked:
			b, ok := value.(bool)
			if !ok {
				return invalidField(field, "boolean")
			}
			next.Locked = b
		case FieldRoles:
			roles, err := stringList(value)
			if err != nil {
				return invalidField(field, "list of strings")
			}
			next.Roles = platformstrings.DedupeAndTrim(roles)
		case FieldPassword:
			s, ok := value.(string)
			if !ok {
				return invalidField(field, "string")
			}
			hash, err := HashPassword(s)
			if err != nil {
				return err
			}
			next.PasswordHash = hash
		default:
			return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("field %q cannot be updated", field))
		}
	}
	*identity = next
	return nil
}

func invalidField(field, want string) error {
	return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("field %q must be a %s", field, want))
}

// stringList accepts both []string and the []any produced by encoding/json.
func stringList(value any) ([]string, error) {
	switch v := value.(type) {
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("element %v is not a string", item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported type %T", value)
	}
}
