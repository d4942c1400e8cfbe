package concurrency

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/tierdb/pkg/lockfree"
)

type fakeClock struct{ ns atomic.Int64 }

func newFakeClock() *fakeClock {
	c := &fakeClock{}
	c.ns.Store(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixNano())
	return c
}

func (c *fakeClock) Now() time.Time          { return time.Unix(0, c.ns.Load()) }
func (c *fakeClock) Advance(d time.Duration) { c.ns.Add(int64(d)) }

func testConfig() Config {
	return Config{
		LockFreeThreshold:    50,
		TraditionalThreshold: 20,
		MinSwitchInterval:    time.Minute,
		CheckEvery:           10,
		Window:               time.Hour,
	}
}

func TestLoadMeter(t *testing.T) {
	clock := newFakeClock()
	m := newLoadMeter(time.Second, clock.Now)

	m.Record(30)
	assert.Equal(t, int64(30), m.Rate())

	clock.Advance(time.Second)
	m.Record(5)
	assert.Equal(t, int64(30), m.Rate(), "last full window dominates")

	clock.Advance(4 * time.Second)
	assert.Equal(t, int64(1), m.Rate(), "5 ops over 4s")

	m.Record(1)
	assert.Equal(t, int64(1), m.Rate())
}

func TestController(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		c := NewController(DefaultConfig())
		assert.Equal(t, Traditional, c.Mode())
		assert.True(t, c.Adaptive())
		assert.Equal(t, uint64(1000), c.Config().CheckEvery)
		assert.Equal(t, "lock_free", LockFree.String())
		assert.Equal(t, "traditional", Traditional.String())
	})

	t.Run("switch_up_after_interval_and_back_down", func(t *testing.T) {
		clock := newFakeClock()
		c := newController(testConfig(), clock.Now)

		for range 60 {
			_, switched := c.RecordOp()
			assert.False(t, switched, "min interval not elapsed")
		}

		clock.Advance(2 * time.Minute)
		var switched bool
		var mode Mode
		for range 10 {
			mode, switched = c.RecordOp()
		}
		require.True(t, switched)
		assert.Equal(t, LockFree, mode)
		assert.Equal(t, LockFree, c.Mode())
		assert.Equal(t, clock.Now(), c.LastSwitch())

		clock.Advance(48 * time.Hour)
		for range 10 {
			mode, switched = c.RecordOp()
		}
		require.True(t, switched)
		assert.Equal(t, Traditional, mode)
		assert.Equal(t, uint64(2), c.Switches())
	})

	t.Run("threshold_must_be_exceeded", func(t *testing.T) {
		clock := newFakeClock()
		c := newController(testConfig(), clock.Now)
		clock.Advance(2 * time.Minute)
		for range 50 {
			_, switched := c.RecordOp()
			require.False(t, switched)
		}
		assert.Equal(t, int64(50), c.Load())
		assert.Equal(t, Traditional, c.Mode(), "a rate equal to the threshold stays traditional")

		var switched bool
		for range 10 {
			_, switched = c.RecordOp()
		}
		assert.True(t, switched)
		assert.Equal(t, LockFree, c.Mode())
	})

	t.Run("manual_mode_restarts_interval", func(t *testing.T) {
		clock := newFakeClock()
		c := newController(testConfig(), clock.Now)
		clock.Advance(time.Hour)
		c.SetMode(LockFree)
		assert.Equal(t, clock.Now(), c.LastSwitch())

		_, switched := c.Check()
		assert.False(t, switched)
	})

	t.Run("disabled_adaptive_never_switches", func(t *testing.T) {
		clock := newFakeClock()
		c := newController(testConfig(), clock.Now)
		c.SetAdaptive(false)
		clock.Advance(time.Hour)
		for range 100 {
			_, switched := c.RecordOp()
			assert.False(t, switched)
		}
		assert.Equal(t, Traditional, c.Mode())
		assert.Equal(t, uint64(100), c.Ops())
	})
}

func TestTraditionalVector(t *testing.T) {
	v, err := NewTraditionalVector()
	require.NoError(t, err)

	res, err := v.Search([]float32{1, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, res, "empty collection")

	require.NoError(t, v.Add("a", []float32{1, 0}))
	require.NoError(t, v.Add("b", []float32{0, 1}))
	require.NoError(t, v.Add("z", []float32{0, 0}))
	require.NoError(t, v.Add("a", []float32{1, 0.1}))
	assert.Equal(t, 3, v.Len())

	res, err = v.Search([]float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, res, 2, "k clamps to collection size, zero vector excluded")
	assert.Equal(t, "a", res[0].ID)
	assert.InDelta(t, 0.995, res[0].Score, 0.01)

	got, ok := v.Get("a")
	require.True(t, ok)
	assert.Equal(t, []float32{1, 0.1}, got)

	assert.True(t, v.Remove("b"))
	assert.False(t, v.Remove("b"))
	assert.True(t, v.Remove("z"))
	res, err = v.Search([]float32{0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "a", res[0].ID)

	v.Clear()
	assert.Zero(t, v.Len())
	assert.Error(t, v.Add("", []float32{1}))
}

func TestAdaptiveVectorMigration(t *testing.T) {
	clock := newFakeClock()
	idx, err := newAdaptiveVector(newController(testConfig(), clock.Now), nil)
	require.NoError(t, err)
	clock.Advance(2 * time.Minute)

	for i := range 60 {
		require.NoError(t, idx.Add(fmt.Sprintf("v%02d", i), []float32{float32(i + 1), 1}))
	}
	assert.Equal(t, LockFree, idx.Mode(), "load crossed the lock-free threshold")
	assert.Equal(t, 60, idx.Len())
	assert.Zero(t, idx.traditional.Len())

	res, err := idx.Search([]float32{60, 1}, 1)
	require.NoError(t, err)
	require.Len(t, res, 1)

	idx.SetMode(Traditional)
	assert.Equal(t, Traditional, idx.Mode())
	assert.Equal(t, 60, idx.Len())
	assert.Zero(t, idx.lockFree.Len())

	vec, ok := idx.Get("v10")
	require.True(t, ok)
	assert.InDelta(t, 11, vec[0], 0.1)

	assert.True(t, idx.Remove("v10"))
	assert.Equal(t, 59, idx.Len())
	assert.False(t, idx.IsEmpty())
}

func TestAdaptiveGraphMigration(t *testing.T) {
	g := NewAdaptiveGraph(DefaultConfig(), nil)
	require.NoError(t, g.AddNode("a", "meta-a"))
	require.NoError(t, g.AddWeightedEdge("a", "b", 2))
	require.NoError(t, g.AddEdge("b", "c"))

	for _, mode := range []Mode{LockFree, Traditional, LockFree} {
		g.SetMode(mode)
		assert.Equal(t, mode, g.Mode())
		assert.Equal(t, 3, g.NodeCount(), mode.String())
		assert.Equal(t, 2, g.EdgeCount(), mode.String())
		assert.Equal(t, []string{"b"}, g.Outgoing("a"))
		assert.Equal(t, []string{"b"}, g.Incoming("c"))
		w, ok := g.EdgeWeight("a", "b")
		require.True(t, ok)
		assert.Equal(t, float32(2), w)
		meta, _ := g.Metadata("a")
		assert.Equal(t, "meta-a", meta)
	}
	assert.Zero(t, g.traditional.NodeCount())

	assert.True(t, g.RemoveEdge("b", "c"))
	assert.True(t, g.RemoveNode("a"))
	assert.False(t, g.HasNode("a"))
	assert.Equal(t, []string{"b", "c"}, g.Nodes())
	assert.Zero(t, g.EdgeCount())
	assert.Equal(t, 2, g.HotStats().NodeCount)
}

func TestTraditionalGraph(t *testing.T) {
	g := NewTraditionalGraph()
	require.NoError(t, g.AddNode("a", "x"))
	require.NoError(t, g.AddEdge("a", "b"))
	require.NoError(t, g.AddNode("a", ""))
	require.NoError(t, g.AddEdge("a", "a"))
	require.NoError(t, g.AddEdge("c", "a"))

	meta, _ := g.Metadata("a")
	assert.Equal(t, "x", meta)
	assert.Equal(t, []string{"a", "b"}, g.Outgoing("a"))
	assert.Len(t, g.Edges(), 3)

	assert.True(t, g.RemoveNode("a"))
	assert.Zero(t, g.EdgeCount())
	assert.Empty(t, g.Incoming("b"))
	assert.Empty(t, g.Outgoing("c"))
	assert.ErrorIs(t, g.AddEdge("", "b"), lockfree.ErrEmptyID)
}

func TestAdaptiveGraphConcurrent(t *testing.T) {
	cfg := testConfig()
	cfg.MinSwitchInterval = 0
	g := NewAdaptiveGraph(cfg, nil)

	var wg sync.WaitGroup
	for w := range 4 {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := range 100 {
				assert.NoError(t, g.AddEdge(fmt.Sprintf("w%d", w), fmt.Sprintf("n%d-%d", w, i)))
			}
		}(w)
	}
	wg.Wait()
	assert.Equal(t, 400, g.EdgeCount())
	assert.Equal(t, 404, g.NodeCount())
}

func TestAdaptiveModeFollowsController(t *testing.T) {
	cfg := Config{
		LockFreeThreshold:    5,
		TraditionalThreshold: 0,
		CheckEvery:           1,
		Window:               time.Hour,
	}
	clock := newFakeClock()
	idx, err := newAdaptiveVector(newController(cfg, clock.Now), nil)
	require.NoError(t, err)
	g := newAdaptiveGraph(newController(cfg, clock.Now), nil)

	const writers, per = 8, 100
	var wg sync.WaitGroup
	for w := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range per {
				id := fmt.Sprintf("v_%d_%d", w, i)
				assert.NoError(t, idx.Add(id, []float32{float32(i + 1), 1}))
				assert.NoError(t, g.AddNode(id, ""))
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := range 200 {
			mode := Mode(i % 2)
			idx.SetMode(mode)
			g.SetMode(mode)
		}
	}()
	wg.Wait()

	assert.Equal(t, idx.Controller().Mode(), idx.Mode())
	assert.Equal(t, g.Controller().Mode(), g.Mode())
	assert.Equal(t, writers*per, idx.Len())
	assert.Equal(t, writers*per, g.NodeCount())

	for _, mode := range []Mode{Traditional, LockFree} {
		idx.SetMode(mode)
		assert.Equal(t, mode, idx.Controller().Mode())
		assert.Equal(t, mode, idx.Mode())
		assert.Equal(t, writers*per, idx.Len(), mode.String())
	}
}
