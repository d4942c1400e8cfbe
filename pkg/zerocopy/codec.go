// Package zerocopy stores checksummed, aligned records in badger and reads
// them back without deserializing.
//
// Every value written through PutAligned carries a 16-byte header (magic,
// version, padding length, payload length, CRC32C) followed by zero padding
// and the payload. The padding places the payload on an 8-byte boundary
// relative to the reservation buffer, so archive views built over it may
// reinterpret the bytes in place.
//
// Reads come in three flavors:
//
//   - View borrows the payload inside badger's value callback. The slice is
//     only valid for the duration of the callback; this is the one truly
//     zero-copy path.
//   - Access validates a value the caller already holds (for example a pooled
//     copy owned by an index guard) and builds a typed archive view over it.
//   - GetRaw returns an owned copy of the payload after header and CRC checks,
//     with no alignment requirement.
//
// Validation order on read: length, magic/version, payload bounds, alignment,
// CRC. A CRC failure is always reported before any view is handed out, so a
// corrupted record is never returned as data.
package zerocopy

import (
	"errors"
	"math"
	"unsafe"

	"github.com/dgraph-io/badger/v4"
)

// Archive describes an on-disk payload layout and builds views over it.
// Access must not copy the payload; the returned view aliases it.
type Archive[T any] interface {
	Align() int
	Access(payload []byte) (T, error)
}

// Encode lays payload out in a fresh reservation buffer and returns the
// value to store. The buffer is freshly allocated because badger retains it
// until the transaction commits.
func Encode(payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, invalid("empty payload")
	}
	if uint64(len(payload)) > math.MaxUint32 {
		return nil, invalid("payload too large")
	}
	buf := make([]byte, ReserveSize(len(payload)))
	if _, err := layout(buf, payload, DefaultAlign); err != nil {
		return nil, err
	}
	return buf, nil
}

// layout writes header, zero padding and payload into buf, computing the
// padding from buf's real address. It returns the padding used.
func layout(buf, payload []byte, align int) (int, error) {
	base := uintptr(unsafe.Pointer(unsafe.SliceData(buf)))
	pad := padFor(base, align)
	if pad > maxPad {
		return 0, invalid("pad overflow")
	}
	if HeaderSize+pad+len(payload) > len(buf) {
		return 0, invalid("reservation too small")
	}

	clear(buf[HeaderSize : HeaderSize+pad])
	copy(buf[HeaderSize+pad:], payload)
	clear(buf[HeaderSize+pad+len(payload):])

	Header{
		Magic:      Magic,
		Version:    Version,
		PadLen:     uint8(pad),
		PayloadLen: uint32(len(payload)),
		CRC32:      Checksum(payload),
	}.put(buf[:HeaderSize])
	return pad, nil
}

// PutAligned encodes payload and stages it under key in txn.
func PutAligned(txn *badger.Txn, key, payload []byte) error {
	value, err := Encode(payload)
	if err != nil {
		return err
	}
	if err := txn.Set(key, value); err != nil {
		return storeErr(err)
	}
	return nil
}

// Delete stages removal of key. Deleting a missing key succeeds.
func Delete(txn *badger.Txn, key []byte) error {
	if err := txn.Delete(key); err != nil {
		return storeErr(err)
	}
	return nil
}

// Decode validates value and returns the payload subslice. align <= 1
// disables the alignment check.
func Decode(value []byte, align int) ([]byte, error) {
	h, err := ParseHeader(value)
	if err != nil {
		return nil, err
	}

	start := HeaderSize + int(h.PadLen)
	end := start + int(h.PayloadLen)
	if end > len(value) {
		return nil, invalid("payload exceeds value length")
	}
	payload := value[start:end:end]

	if align > 1 {
		addr := uintptr(unsafe.Pointer(unsafe.SliceData(payload)))
		if mod := addr % uintptr(align); mod != 0 {
			return nil, &Error{Kind: KindAlignment, Required: uintptr(align), Modulo: mod}
		}
	}

	if actual := Checksum(payload); actual != h.CRC32 {
		return nil, &Error{Kind: KindCrcMismatch, Expected: h.CRC32, Actual: actual}
	}
	return payload, nil
}

// Access validates value against a's alignment and builds a view over it.
func Access[T any](value []byte, a Archive[T]) (T, error) {
	payload, err := Decode(value, a.Align())
	if err != nil {
		var zero T
		return zero, err
	}
	return a.Access(payload)
}

// View calls fn with the validated payload stored under key, borrowed
// directly from badger. fn must not retain the slice. found is false when
// the key does not exist, in which case fn is not called.
func View(txn *badger.Txn, key []byte, align int, fn func(payload []byte) error) (found bool, err error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, storeErr(err)
	}

	err = item.Value(func(val []byte) error {
		payload, err := Decode(val, align)
		if err != nil {
			return err
		}
		return fn(payload)
	})
	return true, err
}

// ViewArchive is View with a typed archive view handed to fn.
func ViewArchive[T any](txn *badger.Txn, key []byte, a Archive[T], fn func(view T) error) (bool, error) {
	return View(txn, key, a.Align(), func(payload []byte) error {
		view, err := a.Access(payload)
		if err != nil {
			return err
		}
		return fn(view)
	})
}

// GetRaw returns an owned copy of the payload under key, or nil when the
// key is absent. No alignment is required.
func GetRaw(txn *badger.Txn, key []byte) ([]byte, error) {
	var out []byte
	_, err := View(txn, key, 1, func(payload []byte) error {
		out = make([]byte, len(payload))
		copy(out, payload)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CopyValue copies the raw stored value for key into a buffer obtained from
// alloc (nil means make) without validating it; pair with Access. alloc is
// called with the value's approximate size and should return a buffer of at
// least that length. found is false when the key does not exist.
func CopyValue(txn *badger.Txn, key []byte, alloc func(n int) []byte) (value []byte, found bool, err error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, storeErr(err)
	}

	n := int(item.ValueSize())
	var dst []byte
	if alloc != nil {
		dst = alloc(n)
	} else {
		dst = make([]byte, n)
	}
	value, err = item.ValueCopy(dst[:0])
	if err != nil {
		return nil, true, storeErr(err)
	}
	return value, true, nil
}
