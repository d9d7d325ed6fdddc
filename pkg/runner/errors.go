package runner

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownOperation is returned by ParseOperation for unrecognized names
	ErrUnknownOperation = errors.New("unknown operation")
	// ErrNoManifest is returned when an operation needs a manifest and the
	// project directory has none
	ErrNoManifest = errors.New("no compose manifest found")
	// ErrNoCommand is returned when run is given nothing to execute
	ErrNoCommand = errors.New("no command given")
)

// UserError is a mistake the user can fix. It aborts before any cache or
// registry state is touched and maps to exit status 1.
type UserError struct {
	Err  error
	Hint string
}

func (e *UserError) Error() string {
	if e.Hint == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v\n%s", e.Err, e.Hint)
}

func (e *UserError) Unwrap() error {
	return e.Err
}

func userError(err error, hint string) *UserError {
	return &UserError{Err: err, Hint: hint}
}

// IsUserError reports whether err is or wraps a UserError
func IsUserError(err error) bool {
	var ue *UserError
	return errors.As(err, &ue)
}
