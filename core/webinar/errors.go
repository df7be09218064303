package webinar

import "github.com/pkg/errors"

var (
	ErrNotFound          = errors.New("webinar not found")
	ErrAlreadyRegistered = errors.New("you are already registered for this webinar")
	ErrAlreadyRated      = errors.New("feedback has already been left for this webinar")
	ErrNotAllowed        = errors.New("operation not allowed for this user")
)
