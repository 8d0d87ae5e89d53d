package ingest

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedReading marks a vehicle reading that was skipped.
	ErrMalformedReading = errors.New("malformed reading")
	// ErrStore marks a cycle aborted by the entity store.
	ErrStore = errors.New("entity store failure")
)

// MalformedReadingError names the first field of a reading that could not be used.
type MalformedReadingError struct {
	Field  string
	Reason error
}

func (e *MalformedReadingError) Error() string {
	return fmt.Sprintf("malformed reading: field %s: %v", e.Field, e.Reason)
}

func (e *MalformedReadingError) Unwrap() error { return e.Reason }

func (e *MalformedReadingError) Is(target error) bool { return target == ErrMalformedReading }

// StoreError wraps a failed store operation together with the step that failed.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool { return target == ErrStore }

func storeErr(op string, err error) error {
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}
