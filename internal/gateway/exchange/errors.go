package exchange

import (
	"errors"
	"fmt"
)

// TransientError marks venue failures worth retrying: rate limits, network
// hiccups, 5xx responses.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return fmt.Sprintf("exchange (transient): %v", e.Err) }
func (e *TransientError) Unwrap() error { return e.Err }

// RejectedError marks permanent venue rejections: bad parameters, filters,
// insufficient funds. Retrying cannot help.
type RejectedError struct {
	Err error
}

func (e *RejectedError) Error() string { return fmt.Sprintf("exchange rejected: %v", e.Err) }
func (e *RejectedError) Unwrap() error { return e.Err }

func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

func Rejected(err error) error {
	if err == nil {
		return nil
	}
	return &RejectedError{Err: err}
}

func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

func IsRejected(err error) bool {
	var re *RejectedError
	return errors.As(err, &re)
}
