package cruncher

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRange is returned when a range starts after it ends.
	ErrInvalidRange = errors.New("invalid range: from is after until")

	// ErrStorageUnavailable matches every StorageError.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// Store names used in StorageError.
const (
	RecordStore = "record"
	CacheStore  = "cache"
)

// StorageError reports a failing record or cache store.
type StorageError struct {
	Store string
	Op    string
	Err   error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s store %s: %v", e.Store, e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool {
	return target == ErrStorageUnavailable
}

func storageError(store, op string, err error) error {
	return &StorageError{Store: store, Op: op, Err: err}
}
