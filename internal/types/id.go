// README: Shared identifier type used across modules.
package types

import "github.com/google/uuid"

type ID string

// NewID returns a random UUID-based identifier.
func NewID() ID {
	return ID(uuid.NewString())
}

// ValidID reports whether v is a well-formed UUID string.
func ValidID(v string) bool {
	_, err := uuid.Parse(v)
	return err == nil
}
