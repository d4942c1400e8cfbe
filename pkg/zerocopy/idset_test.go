package zerocopy

import (
	"errors"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustIDSet(t *testing.T, ids ...string) IDSetView {
	t.Helper()
	enc, err := EncodeIDSet(ids)
	require.NoError(t, err)
	v, err := IDSet{}.Access(enc)
	require.NoError(t, err)
	return v
}

func TestEncodeIDSet(t *testing.T) {
	t.Run("sorts_and_dedups", func(t *testing.T) {
		v := mustIDSet(t, "msg_3", "msg_1", "msg_2", "msg_1")
		assert.Equal(t, 3, v.Len())
		assert.Equal(t, []string{"msg_1", "msg_2", "msg_3"}, v.ToOwned())
	})

	t.Run("empty_set", func(t *testing.T) {
		v := mustIDSet(t)
		assert.Equal(t, 0, v.Len())
		assert.Empty(t, v.ToOwned())
		assert.False(t, v.Contains("x"))
	})

	t.Run("empty_string_member", func(t *testing.T) {
		v := mustIDSet(t, "", "a")
		assert.Equal(t, []string{"", "a"}, v.ToOwned())
		assert.True(t, v.Contains(""))
	})

	t.Run("input_not_modified", func(t *testing.T) {
		in := []string{"b", "a"}
		_, err := EncodeIDSet(in)
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "a"}, in)
	})
}

func TestIDSetView(t *testing.T) {
	v := mustIDSet(t, "edge_a", "edge_c", "edge_e")

	t.Run("search", func(t *testing.T) {
		i, ok := v.Search("edge_c")
		assert.True(t, ok)
		assert.Equal(t, 1, i)

		i, ok = v.Search("edge_d")
		assert.False(t, ok)
		assert.Equal(t, 2, i)
	})

	t.Run("all_with_early_stop", func(t *testing.T) {
		var seen []string
		for id := range v.All() {
			seen = append(seen, id)
			if len(seen) == 2 {
				break
			}
		}
		assert.Equal(t, []string{"edge_a", "edge_c"}, seen)
	})

	t.Run("insert", func(t *testing.T) {
		enc, changed, err := v.WithInsert("edge_b")
		require.NoError(t, err)
		require.True(t, changed)
		next, err := IDSet{}.Access(enc)
		require.NoError(t, err)
		assert.Equal(t, []string{"edge_a", "edge_b", "edge_c", "edge_e"}, next.ToOwned())

		enc, changed, err = v.WithInsert("edge_a")
		require.NoError(t, err)
		assert.False(t, changed)
		assert.Nil(t, enc)
	})

	t.Run("remove", func(t *testing.T) {
		enc, changed, empty, err := v.WithRemove("edge_c")
		require.NoError(t, err)
		require.True(t, changed)
		assert.False(t, empty)
		next, err := IDSet{}.Access(enc)
		require.NoError(t, err)
		assert.Equal(t, []string{"edge_a", "edge_e"}, next.ToOwned())

		_, changed, empty, err = v.WithRemove("edge_z")
		require.NoError(t, err)
		assert.False(t, changed)
		assert.False(t, empty)
	})

	t.Run("remove_last_reports_empty", func(t *testing.T) {
		single := mustIDSet(t, "only")
		enc, changed, empty, err := single.WithRemove("only")
		require.NoError(t, err)
		assert.True(t, changed)
		assert.True(t, empty)
		assert.Nil(t, enc)
	})
}

func TestIDSetAccessRejectsMalformed(t *testing.T) {
	good, err := EncodeIDSet([]string{"a", "bb"})
	require.NoError(t, err)

	cases := map[string][]byte{
		"too_short":     {1, 0},
		"count_too_big": {0xFF, 0xFF, 0, 0, 0, 0, 0, 0},
		"offset_beyond": func() []byte {
			b := append([]byte(nil), good...)
			b[12] = 0x7F
			return b
		}(),
		"non_monotonic": func() []byte {
			b := append([]byte(nil), good...)
			b[12] = 0 // offset[2] < offset[1]
			return b
		}(),
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := IDSet{}.Access(payload)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrAccess))
		})
	}
}

func TestIDSetThroughBadger(t *testing.T) {
	db := openTestDB(t)
	key := []byte("prop:chat_id:chat_123")

	enc, err := EncodeIDSet([]string{"msg_2", "msg_1"})
	require.NoError(t, err)
	require.NoError(t, db.Update(func(txn *badger.Txn) error {
		return PutAligned(txn, key, enc)
	}))

	require.NoError(t, db.View(func(txn *badger.Txn) error {
		found, err := ViewArchive(txn, key, IDSet{}, func(v IDSetView) error {
			assert.Equal(t, 2, v.Len())
			assert.True(t, v.Contains("msg_1"))
			return nil
		})
		assert.True(t, found)
		return err
	}))
}
