package queue

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyImage     = errors.New("image data is empty")
	ErrNotImage       = errors.New("payload is not an image")
	ErrNegativeDelay  = errors.New("delay must be non-negative")
	ErrUnknownSetting = errors.New("unknown setting")
	ErrSchemaMismatch = errors.New("schema version mismatch")
	ErrNotPending     = errors.New("job is not pending")
)

// StoreError reports a failed persistence operation.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("queue %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var existing *StoreError
	if errors.As(err, &existing) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}
