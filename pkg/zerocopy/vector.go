package zerocopy

import (
	"encoding/binary"
	"errors"
	"math"
	"unsafe"

	"github.com/dgraph-io/badger/v4"
)

// Float32 vector archive layout, little-endian:
//
//	dim      u32
//	reserved u32 = 0
//	values   dim x f32
//
// With the payload on an 8-byte boundary the values start 4-aligned, so on
// little-endian hosts the view reinterprets them in place.

// Float32s is the archive for embedding vectors.
type Float32s struct{}

// Align implements Archive.
func (Float32s) Align() int { return 4 }

// Access implements Archive.
func (Float32s) Access(payload []byte) ([]float32, error) {
	dim, values, err := splitVector(payload)
	if err != nil {
		return nil, err
	}
	if dim == 0 {
		return []float32{}, nil
	}
	if !littleEndianHost {
		return decodeFloats(values, dim), nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(unsafe.SliceData(values))), dim), nil
}

func splitVector(payload []byte) (int, []byte, error) {
	if len(payload) < 8 {
		return 0, nil, accessErr("vector shorter than header")
	}
	dim := int(binary.LittleEndian.Uint32(payload))
	values := payload[8:]
	if len(values) != 4*dim {
		return 0, nil, accessErr("vector length does not match dimension")
	}
	return dim, values, nil
}

func decodeFloats(values []byte, dim int) []float32 {
	out := make([]float32, dim)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(values[4*i:]))
	}
	return out
}

// EncodeFloat32s encodes v as a vector archive payload.
func EncodeFloat32s(v []float32) []byte {
	buf := make([]byte, 8+4*len(v))
	binary.LittleEndian.PutUint32(buf, uint32(len(v)))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[8+4*i:], math.Float32bits(f))
	}
	return buf
}

// ReadFloat32s returns an owned copy of the vector stored under key. It
// tries the in-place view first and falls back to decoding when the badger
// slice is not 4-aligned. nil, nil means the key is absent.
func ReadFloat32s(txn *badger.Txn, key []byte) ([]float32, error) {
	var out []float32
	_, err := ViewArchive(txn, key, Float32s{}, func(view []float32) error {
		out = make([]float32, len(view))
		copy(out, view)
		return nil
	})
	var zerr *Error
	if errors.As(err, &zerr) && zerr.Kind == KindAlignment {
		_, err = View(txn, key, 1, func(payload []byte) error {
			dim, values, err := splitVector(payload)
			if err != nil {
				return err
			}
			out = decodeFloats(values, dim)
			return nil
		})
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

var littleEndianHost = func() bool {
	x := uint16(1)
	return *(*byte)(unsafe.Pointer(&x)) == 1
}()
