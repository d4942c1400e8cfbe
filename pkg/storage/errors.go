package storage

import (
	"errors"
	"fmt"
)

// ErrorKind classifies storage failures.
type ErrorKind uint8

const (
	// KindInvalidOperation wraps store-call and index-logic failures.
	KindInvalidOperation ErrorKind = iota + 1
	// KindSerialization wraps encode/decode failures.
	KindSerialization
	// KindNotFound is returned only by operations that require the record to
	// exist, such as updates. Plain getters report absence as a nil value.
	KindNotFound
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidOperation:
		return "invalid operation"
	case KindSerialization:
		return "serialization"
	case KindNotFound:
		return "not found"
	default:
		return "unknown"
	}
}

// Common errors
var (
	ErrInvalidOperation = errors.New("storage: invalid operation")
	ErrSerialization    = errors.New("storage: serialization error")
	ErrNotFound         = errors.New("storage: not found")
	ErrInvalidID        = errors.New("storage: empty id")
	ErrStorageClosed    = errors.New("storage: closed")
)

// DbError is the error type returned by StorageManager.
type DbError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *DbError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("storage: %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("storage: %s: %s", e.Kind, e.Message)
}

func (e *DbError) Unwrap() error { return e.Err }

// Is matches the sentinel of e's kind.
func (e *DbError) Is(target error) bool {
	switch e.Kind {
	case KindInvalidOperation:
		return target == ErrInvalidOperation
	case KindSerialization:
		return target == ErrSerialization
	case KindNotFound:
		return target == ErrNotFound
	}
	return false
}

func invalidOp(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &DbError{Kind: KindInvalidOperation, Message: fmt.Sprintf(format, args...), Err: err}
}

func serialization(err error, format string, args ...any) error {
	return &DbError{Kind: KindSerialization, Message: fmt.Sprintf(format, args...), Err: err}
}

// NotFound returns a KindNotFound error for id.
func NotFound(id string) error {
	return &DbError{Kind: KindNotFound, Message: id}
}
