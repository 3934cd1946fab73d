package model

import (
	"errors"
	"fmt"
)

// SourceError reports a failed call to the external market source.
// It matches ErrSourceUnavailable and the underlying cause under errors.Is.
type SourceError struct {
	Op        string
	Transient bool // retrying later may succeed
	Err       error
}

func (e *SourceError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("%s: %s (%s): %v", ErrSourceUnavailable, e.Op, kind, e.Err)
}

func (e *SourceError) Unwrap() []error {
	return []error{ErrSourceUnavailable, e.Err}
}

// IsTransient reports whether err carries a SourceError marked transient.
func IsTransient(err error) bool {
	var se *SourceError
	return errors.As(err, &se) && se.Transient
}
