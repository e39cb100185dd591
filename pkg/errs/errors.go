// Package errs defines the engine's typed error kinds, following the
// teacher's install.StrategyError idiom: a single concrete error type
// carrying a Kind and Message rather than a hierarchy of error types.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is one of the error kinds enumerated in spec §7.
type Kind string

const (
	NotFound           Kind = "NotFound"
	Ambiguous          Kind = "Ambiguous"
	Unresolvable       Kind = "Unresolvable"
	IO                 Kind = "IO"
	ModuleOperation    Kind = "ModuleOperation"
	InvariantViolation Kind = "InvariantViolation"
)

// EngineError is the engine's single concrete error type.
type EngineError struct {
	Kind    Kind
	Message string
}

var _ error = EngineError{}

func (e EngineError) Error() string {
	return e.Message
}

// New constructs an EngineError of the given kind.
func New(kind Kind, message string) EngineError {
	return EngineError{Kind: kind, Message: message}
}

// Newf constructs an EngineError of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) EngineError {
	return EngineError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the Kind of err if it is (or wraps) an EngineError, or
// the zero Kind otherwise.
func KindOf(err error) Kind {
	var ee EngineError
	if errors.As(err, &ee) {
		return ee.Kind
	}
	return ""
}

// MultiError aggregates independent failures that should be reported
// together rather than aborting the surrounding batch — used for the
// start-phase failures of spec §4.5 step 9 and §8 scenario 6.
type MultiError struct {
	Errors []error
}

var _ error = (*MultiError)(nil)

func (m *MultiError) Error() string {
	if len(m.Errors) == 0 {
		return "no errors"
	}
	parts := make([]string, len(m.Errors))
	for i, e := range m.Errors {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "; ")
}

// Add appends err to the aggregate if it is non-nil.
func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

// Unwrap exposes the aggregated errors to errors.Is/errors.As.
func (m *MultiError) Unwrap() []error {
	return m.Errors
}

// ErrOrNil returns m as an error if it collected anything, or nil.
func (m *MultiError) ErrOrNil() error {
	if m == nil || len(m.Errors) == 0 {
		return nil
	}
	return m
}
