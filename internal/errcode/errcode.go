// Copyright 2026 The BigFin Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

// Package errcode defines the error taxonomy surfaced to callers of the
// financial core. Every error leaving an engine boundary carries one of
// these codes so transports can map them without string matching.
package errcode

import (
	"errors"
	"fmt"
)

type Code string

const (
	Unauthorized       Code = "UNAUTHORIZED"
	Forbidden          Code = "FORBIDDEN"
	StepUpRequired     Code = "STEP_UP_REQUIRED"
	InvalidRequest     Code = "INVALID_REQUEST"
	InvalidParameter   Code = "INVALID_PARAMETER"
	TermsOutOfPolicy   Code = "TERMS_OUT_OF_POLICY"
	InvalidState       Code = "INVALID_STATE"
	AlreadyExists      Code = "ALREADY_EXISTS"
	NotFound           Code = "NOT_FOUND"
	InsufficientFunds  Code = "INSUFFICIENT_FUNDS"
	InstrumentInvalid  Code = "INSTRUMENT_INVALID"
	PaymentFailed      Code = "PAYMENT_FAILED"
	PaymentReturned    Code = "PAYMENT_RETURNED"
	LimitExceeded      Code = "LIMIT_EXCEEDED"
	RateLimited        Code = "RATE_LIMITED"
	InternalError      Code = "INTERNAL_ERROR"
	ServiceUnavailable Code = "SERVICE_UNAVAILABLE"
	ProviderError      Code = "PROVIDER_ERROR"
)

// Error pairs a taxonomy Code with a human readable message and an
// optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error with a formatted message.
func New(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(code Code, err error, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// CodeOf extracts the taxonomy code from err, defaulting to INTERNAL_ERROR
// for errors created outside the taxonomy.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return InternalError
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}
