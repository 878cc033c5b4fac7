package ir

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes lookup errors.
type ErrorCode string

const (
	// CodeParse indicates a malformed formula, weight-set line or source file.
	CodeParse ErrorCode = "PARSE_ERROR"

	// CodeShapeMismatch indicates a payload that does not match its axes.
	CodeShapeMismatch ErrorCode = "SHAPE_MISMATCH"

	// CodeDimensionMismatch indicates a query with the wrong coordinate arity
	// or ragged inputs that do not share one structure.
	CodeDimensionMismatch ErrorCode = "DIMENSION_MISMATCH"

	// CodeDuplicateKey indicates two sources producing the same registry key.
	CodeDuplicateKey ErrorCode = "DUPLICATE_KEY"

	// CodeAlreadySealed indicates a mutation after Finalize.
	CodeAlreadySealed ErrorCode = "ALREADY_SEALED"

	// CodeUnknownKey indicates a key (or source object) that does not exist.
	CodeUnknownKey ErrorCode = "UNKNOWN_KEY"

	// CodeNotSealed indicates a query issued before Finalize.
	CodeNotSealed ErrorCode = "NOT_SEALED"
)

// Error is the structured error returned by every corrlookup package.
//
// Key names the registry key or source object involved, Source the file or
// weight-set the error came from. Err carries the underlying cause, if any.
type Error struct {
	Code    ErrorCode
	Message string
	Key     string
	Source  string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Key != "" {
		msg += fmt.Sprintf(" (key=%s)", e.Key)
	}
	if e.Source != "" {
		msg += fmt.Sprintf(" (source=%s)", e.Source)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf creates an Error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithKey returns a copy of e naming the key involved.
func (e *Error) WithKey(key string) *Error {
	c := *e
	c.Key = key
	return &c
}

// WithSource returns a copy of e naming the source involved.
func (e *Error) WithSource(source string) *Error {
	c := *e
	c.Source = source
	return &c
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCode reports whether err (or anything it wraps) is an *Error with code.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// IsParseError reports whether err is a PARSE_ERROR.
func IsParseError(err error) bool { return IsCode(err, CodeParse) }

// IsDuplicateKey reports whether err is a DUPLICATE_KEY error.
func IsDuplicateKey(err error) bool { return IsCode(err, CodeDuplicateKey) }

// IsUnknownKey reports whether err is an UNKNOWN_KEY error.
func IsUnknownKey(err error) bool { return IsCode(err, CodeUnknownKey) }
