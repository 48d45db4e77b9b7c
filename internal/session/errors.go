// Package session runs searches and listings against the portals within one
// browser session, enforcing the apply budget and the applied-listing index.
package session

import (
	"errors"
	"fmt"

	"github.com/jonathan/autoapply/internal/types"
)

// ErrBudgetExhausted is returned when a successful apply would exceed the limit.
var ErrBudgetExhausted = errors.New("apply budget exhausted")

// LoginError represents a failed portal login. It aborts the run.
type LoginError struct {
	Portal  types.Portal
	Message string
	Cause   error
}

func (e *LoginError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("login error (%s): %s: %v", e.Portal, e.Message, e.Cause)
	}
	return fmt.Sprintf("login error (%s): %s", e.Portal, e.Message)
}

func (e *LoginError) Unwrap() error {
	return e.Cause
}
