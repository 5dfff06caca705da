package common

import (
	"errors"
	"fmt"
)

// NetworkError indicates a transport-level failure talking to the exchange.
// Never fatal: callers treat the operation as failed and may retry at a
// higher layer.
type NetworkError struct {
	Op  string // e.g. "place order"
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("exchange %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// APIError is a structured rejection returned by the exchange (bad params,
// insufficient margin, ...). Code carries the exchange's result code, Msg its
// human-readable message.
type APIError struct {
	Op   string
	Code string
	Msg  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("exchange %s rejected (code %s): %s", e.Op, e.Code, e.Msg)
}

// IsNetwork reports whether err is (or wraps) a transport failure.
func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// IsRejection reports whether err is (or wraps) an exchange rejection.
func IsRejection(err error) bool {
	var ae *APIError
	return errors.As(err, &ae)
}
