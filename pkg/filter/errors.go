package filter

import (
	"errors"
	"fmt"
)

var (
	ErrParseFailure         = errors.New("filter: parse failure")
	ErrUnknownOperatorKind  = errors.New("filter: unknown operator")
	ErrEmptyFilterSpec      = errors.New("filter: empty filter spec")
	ErrMissingRequiredField = errors.New("filter: missing required field")
	ErrUnsupportedGeometry  = errors.New("filter: unsupported geometry")
	ErrUnsupportedVersion   = errors.New("filter: unsupported wfs version")
)

// ParseError reports malformed filter input. It matches ErrParseFailure.
type ParseError struct {
	What string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return "parse " + e.What
	}
	return fmt.Sprintf("parse %s: %v", e.What, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrParseFailure }

// OperatorError reports a symbol missing from the operator tables. It matches
// ErrUnknownOperatorKind.
type OperatorError struct {
	Kind   OperatorKind
	Symbol string
}

func (e *OperatorError) Error() string {
	return fmt.Sprintf("unknown %s operator %q", e.Kind, e.Symbol)
}

func (e *OperatorError) Is(target error) bool { return target == ErrUnknownOperatorKind }

func parseErr(what string, err error) error {
	return &ParseError{What: what, Err: err}
}
