package browser

import (
	"fmt"
	"time"
)

// TimeoutError is returned when a bounded wait expires before its condition holds.
type TimeoutError struct {
	Op      string
	Timeout time.Duration
	Cause   error
}

func (e *TimeoutError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("timeout after %s waiting for %s: %v", e.Timeout, e.Op, e.Cause)
	}
	return fmt.Sprintf("timeout after %s waiting for %s", e.Timeout, e.Op)
}

func (e *TimeoutError) Unwrap() error {
	return e.Cause
}

// ElementNotFoundError is returned when a selector does not address an element.
type ElementNotFoundError struct {
	Selector Selector
}

func (e *ElementNotFoundError) Error() string {
	return fmt.Sprintf("element not found: %s[%d]", e.Selector.Query, e.Selector.Index)
}
