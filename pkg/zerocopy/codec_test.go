package zerocopy

import (
	"bytes"
	"errors"
	"testing"
	"unsafe"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// rawArchive exposes the payload bytes with a chosen alignment.
type rawArchive struct{ align int }

func (a rawArchive) Align() int { return a.align }

func (a rawArchive) Access(payload []byte) ([]byte, error) { return payload, nil }

func addrMod(b []byte, align uintptr) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(b))) % align
}

func TestEncodeDecode(t *testing.T) {
	sizes := []int{1, 7, 8, 9, 255, 4096}
	for _, n := range sizes {
		payload := bytes.Repeat([]byte{0xAB}, n)
		payload[0] = byte(n)

		enc, err := Encode(payload)
		require.NoError(t, err)
		assert.Len(t, enc, ReserveSize(n))

		got, err := Decode(enc, DefaultAlign)
		require.NoError(t, err)
		assert.Equal(t, payload, got)
		assert.Zero(t, addrMod(got, DefaultAlign))
	}
}

func TestEncodeHeaderFields(t *testing.T) {
	payload := []byte("hello world")
	enc, err := Encode(payload)
	require.NoError(t, err)

	h, err := ParseHeader(enc)
	require.NoError(t, err)
	assert.Equal(t, Magic, h.Magic)
	assert.Equal(t, Version, h.Version)
	assert.Equal(t, uint16(0), h.Reserved)
	assert.Equal(t, uint32(len(payload)), h.PayloadLen)
	assert.Equal(t, Checksum(payload), h.CRC32)

	// Little-endian magic on the wire.
	assert.Equal(t, []byte{0x55, 0xAA, 0x5A, 0x5A}, enc[:4])
}

func TestEncodeRejectsEmptyPayload(t *testing.T) {
	_, err := Encode(nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalid))
}

func TestLayoutPadding(t *testing.T) {
	t.Run("misaligned_base_gets_padding", func(t *testing.T) {
		backing := make([]byte, 128)
		require.Zero(t, addrMod(backing, 8))
		buf := backing[1:]

		pad, err := layout(buf, []byte("payload"), DefaultAlign)
		require.NoError(t, err)
		assert.Equal(t, 7, pad)
		assert.Equal(t, make([]byte, 7), buf[HeaderSize:HeaderSize+pad], "padding is zeroed")

		got, err := Decode(buf, DefaultAlign)
		require.NoError(t, err)
		assert.Equal(t, []byte("payload"), got)
		assert.Zero(t, addrMod(got, DefaultAlign))
	})

	t.Run("pad_overflow", func(t *testing.T) {
		backing := make([]byte, 4096)
		base := uintptr(unsafe.Pointer(&backing[0]))
		// Choose an offset whose header end sits one byte past a 512 boundary.
		k := int((1 + 512 - (base+HeaderSize)%512) % 512)
		assert.Equal(t, 511, padFor(base+uintptr(k), 512))

		_, err := layout(backing[k:], []byte("x"), 512)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalid))
		assert.Contains(t, err.Error(), "pad overflow")
	})

	t.Run("pad_for_formula", func(t *testing.T) {
		assert.Equal(t, 0, padFor(0, 8))
		assert.Equal(t, 7, padFor(1, 8))
		assert.Equal(t, 0, padFor(8, 8))
		assert.Equal(t, 0, padFor(3, 1))
	})
}

func TestDecodeValidation(t *testing.T) {
	good, err := Encode([]byte("abcdefgh"))
	require.NoError(t, err)

	mutate := func(f func(b []byte) []byte) []byte {
		b := make([]byte, len(good))
		copy(b, good)
		return f(b)
	}

	tests := []struct {
		name  string
		value []byte
		want  error
	}{
		{"short_value", good[:HeaderSize-1], ErrInvalid},
		{"bad_magic", mutate(func(b []byte) []byte { b[0] ^= 0xFF; return b }), ErrInvalid},
		{"bad_version", mutate(func(b []byte) []byte { b[4] = 2; return b }), ErrInvalid},
		{"length_overflow", mutate(func(b []byte) []byte { b[8] = 0xFF; b[9] = 0xFF; return b }), ErrInvalid},
		{"pad_past_end", mutate(func(b []byte) []byte { b[5] = 0xFF; return b }), ErrInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.value, 1)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestDecodeDetectsEveryBitFlip(t *testing.T) {
	payload := []byte("the quick brown fox")
	enc, err := Encode(payload)
	require.NoError(t, err)

	h, err := ParseHeader(enc)
	require.NoError(t, err)
	start := HeaderSize + int(h.PadLen)

	for i := 0; i < len(payload); i++ {
		for bit := 0; bit < 8; bit++ {
			corrupt := make([]byte, len(enc))
			copy(corrupt, enc)
			corrupt[start+i] ^= 1 << bit

			_, err := Decode(corrupt, 1)
			var zerr *Error
			require.True(t, errors.As(err, &zerr), "byte %d bit %d", i, bit)
			assert.Equal(t, KindCrcMismatch, zerr.Kind)
			assert.Equal(t, h.CRC32, zerr.Expected)
			assert.NotEqual(t, zerr.Expected, zerr.Actual)
		}
	}
}

func TestDecodeAlignment(t *testing.T) {
	enc, err := Encode([]byte("aligned?"))
	require.NoError(t, err)

	shifted := make([]byte, len(enc)+1)[1:]
	copy(shifted, enc)

	_, err = Decode(shifted, DefaultAlign)
	var zerr *Error
	require.True(t, errors.As(err, &zerr))
	assert.Equal(t, KindAlignment, zerr.Kind)
	assert.Equal(t, uintptr(8), zerr.Required)
	assert.Equal(t, uintptr(1), zerr.Modulo)
	assert.True(t, errors.Is(err, ErrAlignment))

	got, err := Decode(shifted, 1)
	require.NoError(t, err, "raw reads skip alignment")
	assert.Equal(t, []byte("aligned?"), got)
}

func TestBadgerRoundTrip(t *testing.T) {
	db := openTestDB(t)
	key := []byte("rec:1")
	payload := []byte("zero-copy payload")

	require.NoError(t, db.Update(func(txn *badger.Txn) error {
		return PutAligned(txn, key, payload)
	}))

	t.Run("view_borrows_payload", func(t *testing.T) {
		require.NoError(t, db.View(func(txn *badger.Txn) error {
			found, err := View(txn, key, 1, func(p []byte) error {
				assert.Equal(t, payload, p)
				return nil
			})
			assert.True(t, found)
			return err
		}))
	})

	t.Run("copied_value_is_aligned", func(t *testing.T) {
		require.NoError(t, db.View(func(txn *badger.Txn) error {
			value, found, err := CopyValue(txn, key, nil)
			require.NoError(t, err)
			require.True(t, found)

			got, err := Access[[]byte](value, rawArchive{align: DefaultAlign})
			require.NoError(t, err)
			assert.Equal(t, payload, got)
			assert.Zero(t, addrMod(got, DefaultAlign))
			return nil
		}))
	})

	t.Run("get_raw_and_missing", func(t *testing.T) {
		require.NoError(t, db.View(func(txn *badger.Txn) error {
			got, err := GetRaw(txn, key)
			require.NoError(t, err)
			assert.Equal(t, payload, got)

			missing, err := GetRaw(txn, []byte("rec:none"))
			require.NoError(t, err)
			assert.Nil(t, missing)

			found, err := View(txn, []byte("rec:none"), 1, func([]byte) error {
				t.Fatal("callback must not run for missing keys")
				return nil
			})
			assert.NoError(t, err)
			assert.False(t, found)
			return nil
		}))
	})

	t.Run("corruption_in_store", func(t *testing.T) {
		enc, err := Encode(payload)
		require.NoError(t, err)
		enc[HeaderSize] ^= 0x01
		require.NoError(t, db.Update(func(txn *badger.Txn) error {
			return txn.Set([]byte("rec:bad"), enc)
		}))

		err = db.View(func(txn *badger.Txn) error {
			_, err := GetRaw(txn, []byte("rec:bad"))
			return err
		})
		assert.True(t, errors.Is(err, ErrCrcMismatch))
	})

	t.Run("delete_is_idempotent", func(t *testing.T) {
		require.NoError(t, db.Update(func(txn *badger.Txn) error {
			require.NoError(t, Delete(txn, key))
			return Delete(txn, []byte("rec:never"))
		}))
		require.NoError(t, db.View(func(txn *badger.Txn) error {
			got, err := GetRaw(txn, key)
			assert.Nil(t, got)
			return err
		}))
	})
}

func TestErrorStrings(t *testing.T) {
	assert.Contains(t, (&Error{Kind: KindCrcMismatch, Expected: 1, Actual: 2}).Error(), "crc mismatch")
	assert.Contains(t, (&Error{Kind: KindAlignment, Required: 8, Modulo: 3}).Error(), "required 8, modulo 3")
	storeFail := storeErr(badger.ErrConflict)
	assert.True(t, errors.Is(storeFail, ErrStore))
	assert.True(t, errors.Is(storeFail, badger.ErrConflict))
	assert.Equal(t, "serialization", KindSerialization.String())
}
