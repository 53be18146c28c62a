package hierarchy

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound indicates that an id did not resolve in the target collection.
var ErrNotFound = errors.New("unit does not exist")

// ErrUserNotFound indicates a missing user document on a single-user
// operation. Batch personnel operations never return it; they record a
// per-id outcome instead.
var ErrUserNotFound = errors.New("user does not exist")

// InvalidUnitTypeError is returned when a unit type falls outside the
// configured enumeration.
type InvalidUnitTypeError struct {
	Type    string
	Allowed []string
}

func (e InvalidUnitTypeError) Error() string {
	return fmt.Sprintf("unit type %q is not a valid type, select from: %s",
		e.Type, strings.Join(e.Allowed, ", "))
}

// ProtectedFieldError is returned when a generic update names a field that
// only the consistency-preserving operations may touch.
type ProtectedFieldError struct {
	Field string
}

func (e ProtectedFieldError) Error() string {
	return fmt.Sprintf("field %q cannot be changed through a generic update", e.Field)
}
