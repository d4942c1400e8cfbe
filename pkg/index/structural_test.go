package index

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/orneryd/tierdb/pkg/kv"
)

func openStore(t *testing.T) *kv.Store {
	t.Helper()
	s, err := kv.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStructuralIndex(t *testing.T) {
	t.Run("idempotent_add", func(t *testing.T) {
		idx := NewStructuralIndex(openStore(t))
		require.NoError(t, idx.Add("chat_id", "chat_123", "msg_1"))
		require.NoError(t, idx.Add("chat_id", "chat_123", "msg_1"))

		n, err := idx.Count("chat_id", "chat_123")
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		g, err := idx.Get("chat_id", "chat_123")
		require.NoError(t, err)
		defer g.Close()
		assert.Equal(t, []string{"msg_1"}, g.ToOwned())
	})

	t.Run("sorted_iteration", func(t *testing.T) {
		idx := NewStructuralIndex(openStore(t))
		for _, id := range []string{"msg_3", "msg_1", "msg_2"} {
			require.NoError(t, idx.Add("sender", "user", id))
		}

		g, err := idx.Get("sender", "user")
		require.NoError(t, err)
		defer g.Close()

		assert.True(t, g.Found())
		assert.Equal(t, 3, g.Len())
		assert.Equal(t, "msg_2", g.At(1))
		var seen []string
		for id := range g.All() {
			seen = append(seen, id)
		}
		assert.Equal(t, []string{"msg_1", "msg_2", "msg_3"}, seen)
		assert.True(t, g.Contains("msg_3"))
		assert.False(t, g.Contains("msg_4"))
		assert.Len(t, g.NodeIDs(), 3)
	})

	t.Run("removing_last_member_deletes_key", func(t *testing.T) {
		s := openStore(t)
		idx := NewStructuralIndex(s)
		require.NoError(t, idx.Add("chat_id", "chat_1", "msg_1"))
		require.NoError(t, idx.Add("chat_id", "chat_1", "msg_2"))
		require.NoError(t, idx.Remove("chat_id", "chat_1", "msg_1"))

		n, err := idx.Count("chat_id", "chat_1")
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		require.NoError(t, idx.Remove("chat_id", "chat_1", "msg_2"))
		keys, err := s.Keys(PropertyKey("chat_id", "chat_1"))
		require.NoError(t, err)
		assert.Empty(t, keys)

		g, err := idx.Get("chat_id", "chat_1")
		require.NoError(t, err)
		defer g.Close()
		assert.False(t, g.Found())
		assert.True(t, g.IsEmpty())
		assert.Empty(t, g.ToOwned())
	})

	t.Run("remove_absent_is_ok", func(t *testing.T) {
		idx := NewStructuralIndex(openStore(t))
		assert.NoError(t, idx.Remove("chat_id", "none", "msg_1"))
		require.NoError(t, idx.Add("chat_id", "c", "msg_1"))
		assert.NoError(t, idx.Remove("chat_id", "c", "msg_9"))
		ok, err := idx.Contains("chat_id", "c", "msg_1")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("empty_id_rejected", func(t *testing.T) {
		idx := NewStructuralIndex(openStore(t))
		err := idx.Add("chat_id", "c", "")
		assert.True(t, errors.Is(err, ErrEmptyID))
	})

	t.Run("values_properties_and_clear", func(t *testing.T) {
		idx := NewStructuralIndex(openStore(t))
		require.NoError(t, idx.Add("chat_id", "b", "m1"))
		require.NoError(t, idx.Add("chat_id", "a", "m2"))
		require.NoError(t, idx.Add("sender", "user", "m1"))

		values, err := idx.Values("chat_id")
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, values)

		props, err := idx.Properties()
		require.NoError(t, err)
		assert.Equal(t, []string{"chat_id", "sender"}, props)

		n, err := idx.ClearProperty("chat_id")
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		props, err = idx.Properties()
		require.NoError(t, err)
		assert.Equal(t, []string{"sender"}, props)
	})
}

func TestGuard(t *testing.T) {
	t.Run("pooled_txn_returns_to_pool", func(t *testing.T) {
		s := openStore(t)
		idx := NewStructuralIndex(s)
		require.NoError(t, idx.Add("p", "v", "n1"))

		g, err := idx.Get("p", "v")
		require.NoError(t, err)
		assert.Equal(t, 1, s.Readers().Stats().InUse)
		assert.NotNil(t, g.Txn())

		g.Close()
		assert.Equal(t, 0, s.Readers().Stats().InUse)
		g.Close()
	})

	t.Run("local_txn", func(t *testing.T) {
		s := openStore(t)
		idx := NewStructuralIndex(s, WithLocalTxns())
		require.NoError(t, idx.Add("p", "v", "n1"))

		g, err := idx.Get("p", "v")
		require.NoError(t, err)
		assert.Equal(t, 0, s.Readers().Stats().InUse)
		assert.Equal(t, []string{"n1"}, g.ToOwned())
		g.Close()
	})

	t.Run("closed_guard_is_empty", func(t *testing.T) {
		idx := NewStructuralIndex(openStore(t))
		require.NoError(t, idx.Add("p", "v", "n1"))
		g, err := idx.Get("p", "v")
		require.NoError(t, err)
		owned := g.ToOwned()
		g.Close()

		assert.Equal(t, 0, g.Len())
		assert.False(t, g.Found())
		assert.False(t, g.Contains("n1"))
		assert.Nil(t, g.ToOwned())
		assert.Nil(t, g.Txn())
		for range g.All() {
			t.Fatal("closed guard must not yield")
		}
		assert.Equal(t, []string{"n1"}, owned, "owned copy survives close")
	})

	t.Run("snapshot_isolation", func(t *testing.T) {
		idx := NewStructuralIndex(openStore(t))
		require.NoError(t, idx.Add("p", "v", "n1"))
		g, err := idx.Get("p", "v")
		require.NoError(t, err)
		defer g.Close()

		require.NoError(t, idx.Add("p", "v", "n2"))
		assert.Equal(t, 1, g.Len())

		n, err := idx.Count("p", "v")
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("closed_store", func(t *testing.T) {
		s, err := kv.OpenInMemory()
		require.NoError(t, err)
		idx := NewStructuralIndex(s)
		require.NoError(t, s.Close())
		_, err = idx.Get("p", "v")
		assert.True(t, errors.Is(err, kv.ErrClosed))
	})
}

func TestStructuralIndexConcurrentWriters(t *testing.T) {
	idx := NewStructuralIndex(openStore(t))
	const workers, per = 32, 50
	member := func(w, i int) string { return fmt.Sprintf("m_%d_%d", w, i) }

	var g errgroup.Group
	for w := range workers {
		g.Go(func() error {
			for i := range per {
				if err := idx.Add("chat_id", "shared", member(w, i)); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	n, err := idx.Count("chat_id", "shared")
	require.NoError(t, err)
	assert.Equal(t, workers*per, n)

	t.Run("concurrent_removes", func(t *testing.T) {
		var g errgroup.Group
		for w := range workers {
			g.Go(func() error {
				for i := 0; i < per; i += 2 {
					if err := idx.Remove("chat_id", "shared", member(w, i)); err != nil {
						return err
					}
				}
				return nil
			})
		}
		require.NoError(t, g.Wait())

		guard, err := idx.Get("chat_id", "shared")
		require.NoError(t, err)
		defer guard.Close()
		assert.Equal(t, workers*per/2, guard.Len())
		assert.False(t, guard.Contains(member(5, 0)))
		assert.True(t, guard.Contains(member(5, 1)))
	})
}

func TestHashStructuralIndex(t *testing.T) {
	s := openStore(t)
	idx := NewHashStructuralIndex(s)

	require.NoError(t, idx.Add("chat_id", "chat_123", "msg_2"))
	require.NoError(t, idx.Add("chat_id", "chat_123", "msg_1"))
	require.NoError(t, idx.Add("chat_id", "chat_123", "msg_1"))

	members, err := idx.Get("chat_id", "chat_123")
	require.NoError(t, err)
	assert.Equal(t, []string{"msg_1", "msg_2"}, members)

	ok, err := idx.Contains("chat_id", "chat_123", "msg_2")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, idx.Remove("chat_id", "chat_123", "msg_1"))
	require.NoError(t, idx.Remove("chat_id", "chat_123", "msg_2"))
	n, err := idx.Count("chat_id", "chat_123")
	require.NoError(t, err)
	assert.Zero(t, n)

	keys, err := s.Keys(PropertyKey("chat_id", "chat_123"))
	require.NoError(t, err)
	assert.Empty(t, keys)

	assert.True(t, errors.Is(idx.Add("p", "v", ""), ErrEmptyID))
}
