package kernel

import (
	"errors"
	"fmt"
)

// panicError marks an error produced by a recovered panic so callers can
// escalate it differently from ordinary handler failures.
type panicError struct {
	scope string
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("%s: panic recovered: %v", e.scope, e.value)
}

// isPanic reports whether err originated from a recovered panic.
func isPanic(err error) bool {
	var recovered *panicError
	return errors.As(err, &recovered)
}

// runSafely executes fn and converts panics into returned errors tagged with scope.
// It is used at goroutine and lifecycle boundaries to prevent process-wide crashes.
func runSafely(scope string, fn func() error) (err error) {
	defer func() {
		recovered := recover()
		if recovered == nil {
			return
		}
		err = &panicError{scope: scope, value: recovered}
	}()

	if err := fn(); err != nil {
		return fmt.Errorf("%s: %w", scope, err)
	}

	return nil
}
