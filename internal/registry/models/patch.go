package models

import (
	"fmt"

	dErrors "cas/pkg/domain-errors"
	platformstrings "cas/pkg/platform/strings"
)

// Updatable service fields. The id is never patchable.
const (
	FieldName          = "name"
	FieldEnabled       = "enabled"
	FieldAllowedURLs   = "allowedUrls"
	FieldRequiredRoles = "requiredRoles"
	FieldMode          = "mode"
)

// ApplyServicePatch applies a partial update decoded from JSON. Unknown fields
// and wrong types are rejected with CodeInvalidInput and nothing is written.
func ApplyServicePatch(svc *Service, patch map[string]any) error {
	next := *svc
	for field, value := range patch {
		switch field {
		case FieldName:
			s, ok := value.(string)
			if !ok || s == "" {
				return invalidField(field, "non-empty string")
			}
			next.Name = s
		case FieldEnabled:
			b, ok := value.(bool)
			if !ok {
				return invalidField(field, "boolean")
			}
			next.Enabled = b
		case FieldAllowedURLs:
			urls, err := stringList(value)
			if err != nil {
				return invalidField(field, "list of strings")
			}
			// Order matters for matching; only drop blanks and duplicates.
			next.AllowedURLs = platformstrings.DedupeAndTrim(urls)
		case FieldRequiredRoles:
			roles, err := stringList(value)
			if err != nil {
				return invalidField(field, "list of strings")
			}
			next.RequiredRoles = platformstrings.DedupeAndTrim(roles)
		case FieldMode:
			s, ok := value.(string)
			if !ok {
				return invalidField(field, "string")
			}
			mode, err := ParseMode(s)
			if err != nil {
				return err
			}
			next.Mode = mode
		default:
			return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("field %q cannot be updated", field))
		}
	}
	*svc = next
	return nil
}

func invalidField(field, want string) error {
	return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("field %q must be a %s", field, want))
}

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
