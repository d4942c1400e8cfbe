package lockfree

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/tierdb/pkg/decay"
)

func TestHotGraph(t *testing.T) {
	t.Run("edges_and_weights", func(t *testing.T) {
		g := NewHotGraph(nil, "")
		require.NoError(t, g.AddEdge("a", "b"))
		require.NoError(t, g.AddWeightedEdge("a", "c", 0.5))
		require.NoError(t, g.AddEdge("c", "a"))

		assert.Equal(t, []string{"b", "c"}, g.Outgoing("a"))
		assert.Equal(t, []string{"c"}, g.Incoming("a"))
		w, ok := g.EdgeWeight("a", "c")
		require.True(t, ok)
		assert.Equal(t, float32(0.5), w)
		assert.Equal(t, 3, g.NodeCount())
		assert.Equal(t, 3, g.EdgeCount())
		assert.Equal(t, []string{"a", "b", "c"}, g.Nodes())
	})

	t.Run("re_adding_node_keeps_edges", func(t *testing.T) {
		g := NewHotGraph(nil, "")
		require.NoError(t, g.AddNode("a", "first"))
		require.NoError(t, g.AddEdge("a", "b"))
		require.NoError(t, g.AddNode("a", "second"))

		assert.Equal(t, []string{"b"}, g.Outgoing("a"))
		meta, ok := g.Metadata("a")
		require.True(t, ok)
		assert.Equal(t, "second", meta)

		require.NoError(t, g.AddNode("a", ""))
		meta, _ = g.Metadata("a")
		assert.Equal(t, "second", meta)
		assert.Equal(t, 2, g.Stats().NodeCount)
	})

	t.Run("reweight_does_not_double_count", func(t *testing.T) {
		g := NewHotGraph(nil, "")
		require.NoError(t, g.AddEdge("a", "b"))
		require.NoError(t, g.AddWeightedEdge("a", "b", 3))
		assert.Equal(t, 1, g.EdgeCount())
		w, _ := g.EdgeWeight("a", "b")
		assert.Equal(t, float32(3), w)
	})

	t.Run("remove_edge", func(t *testing.T) {
		g := NewHotGraph(nil, "")
		require.NoError(t, g.AddEdge("a", "b"))
		assert.True(t, g.RemoveEdge("a", "b"))
		assert.False(t, g.RemoveEdge("a", "b"))
		assert.Empty(t, g.Outgoing("a"))
		assert.Empty(t, g.Incoming("b"))
		assert.Zero(t, g.EdgeCount())
	})

	t.Run("remove_node_drops_touching_edges", func(t *testing.T) {
		g := NewHotGraph(nil, "")
		require.NoError(t, g.AddEdge("a", "b"))
		require.NoError(t, g.AddEdge("c", "a"))
		require.NoError(t, g.AddEdge("a", "a"))
		require.NoError(t, g.AddEdge("b", "c"))

		assert.True(t, g.RemoveNode("a"))
		assert.False(t, g.RemoveNode("a"))
		assert.False(t, g.HasNode("a"))
		assert.Empty(t, g.Incoming("b"))
		assert.Empty(t, g.Outgoing("c"))
		assert.Equal(t, 1, g.EdgeCount())
		assert.Equal(t, 2, g.NodeCount())
	})

	t.Run("empty_ids_rejected", func(t *testing.T) {
		g := NewHotGraph(nil, "")
		assert.ErrorIs(t, g.AddNode("", ""), ErrEmptyID)
		assert.ErrorIs(t, g.AddEdge("a", ""), ErrEmptyID)
	})

	t.Run("temperature_and_tiering_counters", func(t *testing.T) {
		now := time.Now()
		scorer := decay.NewScorer(decay.DefaultConfig()).WithClock(func() time.Time { return now })
		g := NewHotGraph(scorer, decay.ClassEpisodic)
		require.NoError(t, g.AddNode("a", ""))

		temp, ok := g.Temperature("a")
		require.True(t, ok)
		assert.Equal(t, decay.Warm, temp)

		for range 100 {
			g.Outgoing("a")
		}
		tr, _ := g.AccessTracker("a")
		assert.Equal(t, uint64(100), tr.AccessCount())
		temp, _ = g.Temperature("a")
		assert.Equal(t, decay.Hot, temp)

		_, ok = g.Temperature("missing")
		assert.False(t, ok)

		assert.True(t, g.Promote("a"))
		assert.True(t, g.Demote("a"))
		assert.False(t, g.Promote("missing"))
		st := g.Stats()
		assert.Equal(t, uint64(1), st.Promotions)
		assert.Equal(t, uint64(1), st.Demotions)
		assert.Equal(t, uint64(100), st.Queries)
	})

	t.Run("neighbor_sets_reused", func(t *testing.T) {
		g := NewHotGraph(nil, "")
		require.NoError(t, g.AddEdge("a", "b"))
		out, ok := g.outgoing.Get("a")
		require.True(t, ok)
		in, ok := g.incoming.Get("b")
		require.True(t, ok)
		node, ok := g.nodes.Get("a")
		require.True(t, ok)

		require.NoError(t, g.AddWeightedEdge("a", "b", 3))
		require.NoError(t, g.AddNode("a", ""))
		again, _ := g.outgoing.Get("a")
		assert.Same(t, out, again)
		againIn, _ := g.incoming.Get("b")
		assert.Same(t, in, againIn)
		againNode, _ := g.nodes.Get("a")
		assert.Same(t, node, againNode, "empty metadata keeps the node")
		assert.Equal(t, 1, g.EdgeCount())
	})

	t.Run("concurrent_edges", func(t *testing.T) {
		g := NewHotGraph(nil, "")
		var wg sync.WaitGroup
		for w := range 8 {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				for i := range 50 {
					assert.NoError(t, g.AddEdge("hub", string(rune('A'+w))+string(rune('a'+i%26))+string(rune('0'+i/26))))
				}
			}(w)
		}
		wg.Wait()
		assert.Equal(t, 400, g.EdgeCount())
		assert.Len(t, g.Outgoing("hub"), 400)
		assert.Equal(t, 401, g.NodeCount())
	})
}

func TestHotVector(t *testing.T) {
	t.Run("search_ranks_by_cosine", func(t *testing.T) {
		h := NewHotVector(nil, "")
		require.NoError(t, h.Add("x", []float32{1, 0, 0}))
		require.NoError(t, h.Add("y", []float32{0, 1, 0}))
		require.NoError(t, h.Add("xy", []float32{0.7, 0.7, 0}))

		res, err := h.Search([]float32{1, 0.1, 0}, 2)
		require.NoError(t, err)
		require.Len(t, res, 2)
		assert.Equal(t, "x", res[0].ID)
		assert.Equal(t, "xy", res[1].ID)

		st := h.Stats()
		assert.Equal(t, 3, st.VectorCount)
		assert.Equal(t, uint64(3), st.SimilarityComputations)
		assert.Equal(t, uint64(1), st.Queries)
	})

	t.Run("replace_and_remove", func(t *testing.T) {
		h := NewHotVector(nil, "")
		require.NoError(t, h.Add("a", []float32{1, 2}))
		require.NoError(t, h.Add("a", []float32{2, 1}))
		assert.Equal(t, 1, h.Len())
		assert.Equal(t, int64(1), h.Counters().Snapshot().Items)

		vec, ok := h.Get("a")
		require.True(t, ok)
		assert.InDelta(t, 2, vec[0], 0.01)

		assert.True(t, h.Remove("a"))
		assert.False(t, h.Remove("a"))
		assert.Zero(t, h.Len())
		assert.ErrorIs(t, h.Add("", nil), ErrEmptyID)
	})

	t.Run("search_records_access", func(t *testing.T) {
		h := NewHotVector(nil, decay.ClassEpisodic)
		require.NoError(t, h.Add("a", []float32{1, 0}))
		for range 100 {
			_, err := h.Search([]float32{1, 0}, 1)
			require.NoError(t, err)
		}
		temp, ok := h.Temperature("a")
		require.True(t, ok)
		assert.Equal(t, decay.Hot, temp)
		assert.True(t, h.Promote("a"))
		assert.False(t, h.Demote("b"))
	})

	t.Run("empty_index", func(t *testing.T) {
		res, err := NewHotVector(nil, "").Search([]float32{1}, 5)
		require.NoError(t, err)
		assert.Empty(t, res)
	})
}

func TestBatchProcessors(t *testing.T) {
	vecs := NewHotVector(nil, "")
	graph := NewHotGraph(nil, "")
	p := NewCombinedBatchProcessor(vecs, graph)

	nv, ng := p.Process(
		[]VectorOp{
			AddVector("v1", []float32{1, 0}),
			AddVector("v2", []float32{0, 1}),
			AddVector("", []float32{1}),
			RemoveVector("v2"),
		},
		[]GraphOp{
			{Kind: OpAddNode, From: "a", Metadata: "m"},
			{Kind: OpAddEdge, From: "a", To: "b", Weight: 2},
			{Kind: OpAddEdge, From: "b", To: "c"},
			{Kind: OpRemoveEdge, From: "b", To: "c"},
			{Kind: OpRemoveNode, From: "zzz"},
			{Kind: OpAddNode},
			{Kind: 99, From: "a"},
		},
	)
	assert.Equal(t, 3, nv)
	assert.Equal(t, 5, ng)
	assert.Equal(t, 1, vecs.Len())
	assert.Equal(t, 1, graph.EdgeCount())
	w, _ := graph.EdgeWeight("a", "b")
	assert.Equal(t, float32(2), w)

	vp := NewVectorBatchProcessor(vecs)
	assert.Equal(t, 2, vp.AddAll(map[string][]float32{"v3": {1, 1}, "v4": {2, 2}}))
	assert.Equal(t, 2, vp.RemoveAll([]string{"v3", "v4", "v9"}))
}

func TestAccessTracker(t *testing.T) {
	tr := NewAccessTracker()
	before := tr.LastAccess()
	assert.Zero(t, tr.AccessCount())

	time.Sleep(2 * time.Millisecond)
	tr.RecordAccess()
	tr.RecordAccess()
	assert.Equal(t, uint64(2), tr.AccessCount())
	assert.True(t, tr.LastAccess().After(before))

	a := tr.Access(decay.ClassSemantic)
	assert.Equal(t, decay.ClassSemantic, a.Class)
	assert.Equal(t, uint64(2), a.AccessCount)
}

func TestStatsSnapshot(t *testing.T) {
	var s Stats
	s.ObserveQuery(10 * time.Microsecond)
	s.ObserveQuery(30 * time.Microsecond)
	s.IncItems()
	s.IncItems()
	s.DecItems()
	snap := s.Snapshot()
	assert.Equal(t, int64(1), snap.Items)
	assert.Equal(t, uint64(2), snap.Queries)
	assert.Equal(t, 20*time.Microsecond, snap.AvgQueryTime())
	assert.Zero(t, StatsSnapshot{}.AvgQueryTime())
}
