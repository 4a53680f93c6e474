// Package errors wraps go-errors so that errors raised on caller contract
// violations carry the stack trace of the offending call.
package errors

import (
	"fmt"

	goerrors "github.com/go-errors/errors"
)

// WithStackTrace wraps err in an Error that records the stack trace. If err
// already has a stack trace it is used directly. A nil err returns nil.
func WithStackTrace(err error) error {
	if err == nil {
		return nil
	}

	return goerrors.Wrap(err, 1)
}

// WithStackTraceAndPrefix is WithStackTrace with the formatted message
// prepended to the error text.
func WithStackTraceAndPrefix(err error, message string, args ...any) error {
	if err == nil {
		return nil
	}

	return goerrors.WrapPrefix(err, fmt.Sprintf(message, args...), 1)
}

// PrintErrorWithStackTrace renders err including its stack trace when it has one.
func PrintErrorWithStackTrace(err error) string {
	if err == nil {
		return ""
	}

	switch underlyingErr := err.(type) {
	case *goerrors.Error:
		return underlyingErr.ErrorStack()
	default:
		return err.Error()
	}
}
