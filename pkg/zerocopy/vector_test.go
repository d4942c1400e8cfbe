package zerocopy

import (
	"errors"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFloat32sAccess(t *testing.T) {
	vec := []float32{0.1, -0.2, 3.5, 0}
	enc, err := Encode(EncodeFloat32s(vec))
	require.NoError(t, err)

	view, err := Access[[]float32](enc, Float32s{})
	require.NoError(t, err)
	assert.Equal(t, vec, view)

	t.Run("empty_vector", func(t *testing.T) {
		enc, err := Encode(EncodeFloat32s(nil))
		require.NoError(t, err)
		view, err := Access[[]float32](enc, Float32s{})
		require.NoError(t, err)
		assert.Empty(t, view)
	})

	t.Run("dimension_mismatch", func(t *testing.T) {
		payload := EncodeFloat32s(vec)
		payload[0] = 9
		_, err := Float32s{}.Access(payload)
		assert.True(t, errors.Is(err, ErrAccess))
	})

	t.Run("misaligned_copy_rejected", func(t *testing.T) {
		shifted := make([]byte, len(enc)+2)[2:]
		copy(shifted, enc)
		_, err := Access[[]float32](shifted, Float32s{})
		assert.True(t, errors.Is(err, ErrAlignment))
	})
}

func TestReadFloat32s(t *testing.T) {
	db := openTestDB(t)
	vec := make([]float32, 384)
	for i := range vec {
		vec[i] = float32(i) / 384
	}

	require.NoError(t, db.Update(func(txn *badger.Txn) error {
		return PutAligned(txn, []byte("emb:1"), EncodeFloat32s(vec))
	}))

	require.NoError(t, db.View(func(txn *badger.Txn) error {
		got, err := ReadFloat32s(txn, []byte("emb:1"))
		require.NoError(t, err)
		assert.Equal(t, vec, got)

		missing, err := ReadFloat32s(txn, []byte("emb:2"))
		require.NoError(t, err)
		assert.Nil(t, missing)
		return nil
	}))
}
