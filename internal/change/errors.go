package change

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a change directory or state file is absent.
var ErrNotFound = errors.New("change not found")

// ErrExists is returned when creating a change whose id is already taken.
var ErrExists = errors.New("change already exists")

// TransitionError reports a phase transition the table does not allow.
type TransitionError struct {
	From Phase
	To   Phase
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal phase transition %s -> %s", e.From, e.To)
}
