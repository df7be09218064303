package session

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrNotFound     = errors.New("session not found")
	ErrAlreadyRated = errors.New("feedback has already been left for this session")
	ErrNotAllowed   = errors.New("operation not allowed for this user")
)

// ConflictError indicates the requested time falls within ConflictWindow of an
// existing scheduled session for either party. No mutation occurred.
type ConflictError struct {
	With Session // the session that blocks the slot
}

func (e *ConflictError) Error() string {
	return "scheduling conflict: the instructor or student already has a session within an hour of this time"
}

// InvalidStateError indicates an operation was attempted against a session in a
// status that does not permit it. No mutation occurred.
type InvalidStateError struct {
	Op     string
	Status Status
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s a %s session", e.Op, e.Status)
}
