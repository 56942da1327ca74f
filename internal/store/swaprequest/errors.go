package swaprequest

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("swap request not found")
	ErrStaleStatus       = errors.New("swap request status changed concurrently")
	ErrInvalidTransition = errors.New("swap request status transition not allowed")
)

// StorageError wraps a failure of the backing database.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("swap request store: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}
