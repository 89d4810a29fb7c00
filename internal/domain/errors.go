package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a payment failure for the caller: validation errors
// must not be retried, network errors are safe to retry with a fresh intent,
// processor errors are surfaced verbatim when actionable, auth errors require
// re-authentication first.
type ErrorKind string

const (
	ErrKindValidation ErrorKind = "validation"
	ErrKindNetwork    ErrorKind = "network"
	ErrKindProcessor  ErrorKind = "processor"
	ErrKindAuth       ErrorKind = "auth"
)

// PaymentError is the only error shape that crosses package boundaries in the
// payment core. Kind is always one of the four taxonomy values.
type PaymentError struct {
	Kind    ErrorKind
	Code    string // processor decline code or internal reason, optional
	Message string // human readable, safe to show to the user
	Err     error  // wrapped cause, never shown to the user
}

func (e *PaymentError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s): %s", e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *PaymentError) Unwrap() error {
	return e.Err
}

// Retryable reports whether a whole new orchestrated attempt may be retried
// automatically. Only network failures qualify.
func (e *PaymentError) Retryable() bool {
	return e.Kind == ErrKindNetwork
}

func ValidationError(message string) *PaymentError {
	return &PaymentError{Kind: ErrKindValidation, Message: message}
}

func NetworkError(message string, err error) *PaymentError {
	return &PaymentError{Kind: ErrKindNetwork, Message: message, Err: err}
}

func ProcessorError(code, message string, err error) *PaymentError {
	return &PaymentError{Kind: ErrKindProcessor, Code: code, Message: message, Err: err}
}

func AuthError(message string) *PaymentError {
	return &PaymentError{Kind: ErrKindAuth, Message: message}
}

// AsPaymentError normalizes any error into a PaymentError. Errors that do not
// already carry a kind are treated as network failures, the retry-safe default
// for problems we could not classify.
func AsPaymentError(err error) *PaymentError {
	if err == nil {
		return nil
	}
	var pe *PaymentError
	if errors.As(err, &pe) {
		return pe
	}
	return NetworkError("payment request failed", err)
}
