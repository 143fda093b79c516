package menu

import (
	"errors"
	"fmt"
)

var (
	ErrValidation      = errors.New("invalid input")
	ErrUnrecognized    = errors.New("unrecognized input")
	ErrLookup          = errors.New("lookup failed")
	ErrPaymentRejected = errors.New("payment rejected")
)

// ValidationError carries the lines shown to the user in place of the normal reply.
type ValidationError struct {
	Reason string
	Lines  []string
}

func (e *ValidationError) Error() string {
	return "invalid input: " + e.Reason
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

type LookupError struct {
	Op  string
	Err error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("lookup %s failed: %s", e.Op, e.Err)
}

func (e *LookupError) Unwrap() error {
	return e.Err
}

func (e *LookupError) Is(target error) bool {
	return target == ErrLookup
}

func unrecognized(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnrecognized, fmt.Sprintf(format, args...))
}
