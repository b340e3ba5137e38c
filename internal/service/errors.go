package service

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrForbidden = errors.New("forbidden: insufficient permissions")

	// ErrFutureTimestamp rejects admission, discharge and shift times
	// later than "now".
	ErrFutureTimestamp = errors.New("timestamp cannot be in the future")

	// ErrAllocationFailed means the sequence allocator could not read the
	// existing ledger. It never guesses a number in that case.
	ErrAllocationFailed = errors.New("could not derive next admission number")
)

type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Fields, "; ")
}

// PartialWriteError reports a multi-step operation that failed after an
// earlier step had already committed. There is no automatic rollback; the
// error names the failed step so operators can reconcile.
type PartialWriteError struct {
	Operation string
	Step      string
	Err       error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("%s: step %q failed after earlier writes committed: %v", e.Operation, e.Step, e.Err)
}

func (e *PartialWriteError) Unwrap() error {
	return e.Err
}
