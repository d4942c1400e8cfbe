package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewLRU(t *testing.T) {
	t.Run("valid_parameters", func(t *testing.T) {
		c := NewLRU[int](100, 5*time.Minute)
		assert.Equal(t, 100, c.maxSize)
		assert.Equal(t, 5*time.Minute, c.ttl)
		assert.True(t, c.enabled)
	})

	t.Run("non_positive_size_uses_default", func(t *testing.T) {
		assert.Equal(t, DefaultMaxSize, NewLRU[int](0, 0).maxSize)
		assert.Equal(t, DefaultMaxSize, NewLRU[int](-10, 0).maxSize)
	})
}

func TestLRUGetPut(t *testing.T) {
	c := NewLRU[string](3, 0)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Put("a", "active")
	c.Put("b", "recent")
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "active", v)

	c.Put("a", "archive/2024-Q1")
	v, _ = c.Get("a")
	assert.Equal(t, "archive/2024-Q1", v)
	assert.Equal(t, 2, c.Len())

	c.Remove("a")
	_, ok = c.Get("a")
	assert.False(t, ok)

	s := c.Stats()
	assert.Equal(t, uint64(2), s.Hits)
	assert.Equal(t, uint64(2), s.Misses)
	assert.InDelta(t, 50.0, s.HitRate, 0.001)
}

func TestLRUEviction(t *testing.T) {
	c := NewLRU[int](2, 0)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Get("a") // b is now least recently used
	c.Put("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok, "least recently used entry evicted")
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())
}

func TestLRUExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := newLRU[int](10, time.Minute, func() time.Time { return now })

	c.Put("a", 1)
	_, ok := c.Get("a")
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get("a")
	assert.False(t, ok)
	assert.Zero(t, c.Len(), "expired entry removed on access")

	c.Put("a", 2)
	now = now.Add(30 * time.Second)
	c.Put("a", 3) // restarts the TTL
	now = now.Add(45 * time.Second)
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 3, v)
}

func TestLRUDisabled(t *testing.T) {
	c := NewLRU[int](10, 0)
	c.Put("a", 1)
	c.SetEnabled(false)
	assert.Zero(t, c.Len())

	c.Put("b", 2)
	_, ok := c.Get("b")
	assert.False(t, ok)

	c.SetEnabled(true)
	c.Put("b", 2)
	_, ok = c.Get("b")
	assert.True(t, ok)

	c.Clear()
	assert.Zero(t, c.Len())
}

func TestLRUConcurrent(t *testing.T) {
	c := NewLRU[int](100, 0)
	var wg sync.WaitGroup
	for w := range 8 {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := range 500 {
				key := fmt.Sprintf("k%d", (w*500+i)%250)
				c.Put(key, i)
				c.Get(key)
			}
		}(w)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 100)
	s := c.Stats()
	assert.Equal(t, uint64(8*500), s.Hits+s.Misses)
}
