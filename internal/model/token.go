package model

import (
	"fmt"
	"strings"
)

// MinTokenIDLength is the shortest token id accepted from the source.
const MinTokenIDLength = 10

// ValidateTokenID rejects token ids that cannot be real CLOB token ids:
// shorter than MinTokenIDLength, or containing characters outside [A-Za-z0-9_-].
func ValidateTokenID(id string) error {
	id = strings.TrimSpace(id)
	if len(id) < MinTokenIDLength {
		return fmt.Errorf("%w: %q too short", ErrInvalidTokenID, id)
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return fmt.Errorf("%w: %q contains %q", ErrInvalidTokenID, id, r)
		}
	}
	return nil
}
