package zerocopy

import (
	"errors"
	"fmt"
)

// Kind classifies codec failures.
type Kind uint8

const (
	// KindStore means the underlying badger call failed.
	KindStore Kind = iota + 1
	// KindInvalid means malformed input or a corrupted header/length field.
	KindInvalid
	// KindCrcMismatch means the payload checksum did not match the header.
	KindCrcMismatch
	// KindAlignment means the payload address violates the archive's alignment.
	KindAlignment
	// KindAccess means the payload passed header checks but the archive layout
	// inside it is malformed.
	KindAccess
	// KindSerialization means encoding a value into an archive failed.
	KindSerialization
)

func (k Kind) String() string {
	switch k {
	case KindStore:
		return "store"
	case KindInvalid:
		return "invalid"
	case KindCrcMismatch:
		return "crc mismatch"
	case KindAlignment:
		return "alignment"
	case KindAccess:
		return "access"
	case KindSerialization:
		return "serialization"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is matching by kind.
var (
	ErrStore         = errors.New("zerocopy: store error")
	ErrInvalid       = errors.New("zerocopy: invalid")
	ErrCrcMismatch   = errors.New("zerocopy: crc mismatch")
	ErrAlignment     = errors.New("zerocopy: misaligned payload")
	ErrAccess        = errors.New("zerocopy: access error")
	ErrSerialization = errors.New("zerocopy: serialization error")
)

// Error is the codec error type. Only the fields relevant to Kind are set.
type Error struct {
	Kind   Kind
	Reason string

	// Alignment
	Required uintptr
	Modulo   uintptr

	// CrcMismatch
	Expected uint32
	Actual   uint32

	Err error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindCrcMismatch:
		return fmt.Sprintf("zerocopy: crc mismatch: expected %#08x, actual %#08x", e.Expected, e.Actual)
	case KindAlignment:
		return fmt.Sprintf("zerocopy: alignment: required %d, modulo %d", e.Required, e.Modulo)
	case KindStore:
		return fmt.Sprintf("zerocopy: store: %v", e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("zerocopy: %s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("zerocopy: %s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	return target == e.sentinel()
}

func (e *Error) sentinel() error {
	switch e.Kind {
	case KindStore:
		return ErrStore
	case KindInvalid:
		return ErrInvalid
	case KindCrcMismatch:
		return ErrCrcMismatch
	case KindAlignment:
		return ErrAlignment
	case KindAccess:
		return ErrAccess
	case KindSerialization:
		return ErrSerialization
	}
	return nil
}

func invalid(reason string) error {
	return &Error{Kind: KindInvalid, Reason: reason}
}

func accessErr(reason string) error {
	return &Error{Kind: KindAccess, Reason: reason}
}

func storeErr(err error) error {
	return &Error{Kind: KindStore, Err: err}
}

func serializationErr(reason string, err error) error {
	return &Error{Kind: KindSerialization, Reason: reason, Err: err}
}
