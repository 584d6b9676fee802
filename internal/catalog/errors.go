package catalog

import (
	"errors"
	"fmt"
)

// Common errors
var (
	ErrNotFound        = errors.New("record not found")
	ErrEpisodeNotFound = errors.New("episode not found")
	ErrJobNotFound     = errors.New("job not found")
	ErrTargetNotFound  = errors.New("crawl target not found")
	ErrNoJobsAvailable = errors.New("no jobs available")
	ErrStorage         = errors.New("catalog storage error")
)

// NotFoundError reports a missing record with its identifier.
type NotFoundError struct {
	Resource string
	ID       interface{}
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s with identifier %v not found", e.Resource, e.ID)
}

func (e NotFoundError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return true
	case ErrEpisodeNotFound:
		return e.Resource == "episode"
	case ErrJobNotFound:
		return e.Resource == "job"
	case ErrTargetNotFound:
		return e.Resource == "crawl target"
	}
	return false
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resource string, id interface{}) error {
	return NotFoundError{Resource: resource, ID: id}
}

// StorageError wraps a database failure with the operation that hit it.
// Storage failures are fatal for the operation but never crash the daemon.
type StorageError struct {
	Operation string
	Err       error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("catalog %s: %v", e.Operation, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

// NewStorageError creates a new StorageError.
func NewStorageError(operation string, err error) error {
	return &StorageError{Operation: operation, Err: err}
}

// IsNotFound checks if an error is any of the not-found variants.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var notFoundErr NotFoundError
	return errors.As(err, &notFoundErr) || errors.Is(err, ErrNotFound)
}
