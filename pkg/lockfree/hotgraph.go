package lockfree

import (
	"errors"
	"slices"
	"sync/atomic"
	"time"

	"github.com/orneryd/tierdb/pkg/decay"
)

// ErrEmptyID is returned when a node or vector ID is empty.
var ErrEmptyID = errors.New("lockfree: empty id")

const neighborBuckets = 8

type hotNode struct {
	metadata string
	tracker  *AccessTracker
}

// HotGraph is a weighted directed graph whose node table and adjacency
// sets are all HashMaps.
//
// Adding an existing node keeps its edges; only its metadata is replaced
// when new metadata is given. Removing a node removes every edge that
// touches it.
type HotGraph struct {
	nodes    *HashMap[string, *hotNode]
	outgoing *HashMap[string, *HashMap[string, float32]]
	incoming *HashMap[string, *HashMap[string, struct{}]]
	edges    atomic.Int64
	stats    Stats
	scorer   *decay.Scorer
	class    decay.Class
}

// HotGraphStats is a snapshot of a HotGraph.
type HotGraphStats struct {
	NodeCount      int
	EdgeCount      int
	Queries        uint64
	TotalQueryTime time.Duration
	Promotions     uint64
	Demotions      uint64
}

// NewHotGraph returns an empty graph. Node temperature is scored as class
// by scorer; nil uses the default scorer.
func NewHotGraph(scorer *decay.Scorer, class decay.Class) *HotGraph {
	if scorer == nil {
		scorer = decay.NewScorer(decay.DefaultConfig())
	}
	if class == "" {
		class = decay.ClassEpisodic
	}
	return &HotGraph{
		nodes:    NewHashMap[string, *hotNode](0),
		outgoing: NewHashMap[string, *HashMap[string, float32]](0),
		incoming: NewHashMap[string, *HashMap[string, struct{}]](0),
		scorer:   scorer,
		class:    class,
	}
}

// AddNode ensures id exists. Empty metadata leaves existing metadata alone.
func (g *HotGraph) AddNode(id, metadata string) error {
	if id == "" {
		return ErrEmptyID
	}
	g.ensureNode(id, metadata)
	return nil
}

func (g *HotGraph) ensureNode(id, metadata string) {
	cur, loaded := g.nodes.LoadOrCreate(id, func() *hotNode {
		return &hotNode{metadata: metadata, tracker: NewAccessTracker()}
	})
	if !loaded {
		g.stats.IncItems()
	} else if metadata != "" && metadata != cur.metadata {
		g.nodes.Insert(id, &hotNode{metadata: metadata, tracker: cur.tracker})
	}
	g.outgoingOf(id)
	g.incomingOf(id)
}

func (g *HotGraph) outgoingOf(id string) *HashMap[string, float32] {
	out, _ := g.outgoing.LoadOrCreate(id, func() *HashMap[string, float32] {
		return NewHashMap[string, float32](neighborBuckets)
	})
	return out
}

func (g *HotGraph) incomingOf(id string) *HashMap[string, struct{}] {
	in, _ := g.incoming.LoadOrCreate(id, func() *HashMap[string, struct{}] {
		return NewHashMap[string, struct{}](neighborBuckets)
	})
	return in
}

// RemoveNode deletes id and every edge touching it. It reports whether the
// node existed.
func (g *HotGraph) RemoveNode(id string) bool {
	if _, ok := g.nodes.Remove(id); !ok {
		return false
	}
	g.stats.DecItems()

	if out, ok := g.outgoing.Remove(id); ok {
		for to := range out.All() {
			if in, ok := g.incoming.Get(to); ok {
				in.Remove(id)
			}
			g.edges.Add(-1)
		}
	}
	if in, ok := g.incoming.Remove(id); ok {
		for from := range in.All() {
			if from == id {
				continue // self-loop already counted above
			}
			if out, ok := g.outgoing.Get(from); ok {
				if _, removed := out.Remove(id); removed {
					g.edges.Add(-1)
				}
			}
		}
	}
	return true
}

// AddEdge adds from -> to with weight 1.
func (g *HotGraph) AddEdge(from, to string) error {
	return g.AddWeightedEdge(from, to, 1)
}

// AddWeightedEdge adds or reweights from -> to, creating missing endpoints.
func (g *HotGraph) AddWeightedEdge(from, to string, weight float32) error {
	if from == "" || to == "" {
		return ErrEmptyID
	}
	g.ensureNode(from, "")
	g.ensureNode(to, "")

	if _, existed := g.outgoingOf(from).Insert(to, weight); !existed {
		g.edges.Add(1)
	}
	g.incomingOf(to).Insert(from, struct{}{})
	return nil
}

// RemoveEdge deletes from -> to and reports whether it existed.
func (g *HotGraph) RemoveEdge(from, to string) bool {
	removed := false
	if out, ok := g.outgoing.Get(from); ok {
		if _, removed = out.Remove(to); removed {
			g.edges.Add(-1)
		}
	}
	if in, ok := g.incoming.Get(to); ok {
		in.Remove(from)
	}
	return removed
}

// Outgoing returns the sorted successors of id and records an access.
func (g *HotGraph) Outgoing(id string) []string {
	start := time.Now()
	defer func() { g.stats.ObserveQuery(time.Since(start)) }()
	g.touch(id)
	out, ok := g.outgoing.Get(id)
	if !ok {
		return nil
	}
	return sortedKeys(out)
}

// Incoming returns the sorted predecessors of id and records an access.
func (g *HotGraph) Incoming(id string) []string {
	start := time.Now()
	defer func() { g.stats.ObserveQuery(time.Since(start)) }()
	g.touch(id)
	in, ok := g.incoming.Get(id)
	if !ok {
		return nil
	}
	return sortedKeys(in)
}

func sortedKeys[V any](m *HashMap[string, V]) []string {
	keys := m.Keys()
	slices.Sort(keys)
	return keys
}

// EdgeWeight returns the weight of from -> to.
func (g *HotGraph) EdgeWeight(from, to string) (float32, bool) {
	out, ok := g.outgoing.Get(from)
	if !ok {
		return 0, false
	}
	return out.Get(to)
}

// Metadata returns the metadata of id.
func (g *HotGraph) Metadata(id string) (string, bool) {
	n, ok := g.nodes.Get(id)
	if !ok {
		return "", false
	}
	return n.metadata, true
}

// HasNode reports whether id exists.
func (g *HotGraph) HasNode(id string) bool { return g.nodes.Contains(id) }

func (g *HotGraph) touch(id string) {
	if n, ok := g.nodes.Get(id); ok {
		n.tracker.RecordAccess()
	}
}

// Temperature scores the access history of id.
func (g *HotGraph) Temperature(id string) (decay.Temperature, bool) {
	n, ok := g.nodes.Get(id)
	if !ok {
		return "", false
	}
	return g.scorer.Temperature(n.tracker.Access(g.class)), true
}

// AccessTracker returns the tracker of id.
func (g *HotGraph) AccessTracker(id string) (*AccessTracker, bool) {
	n, ok := g.nodes.Get(id)
	if !ok {
		return nil, false
	}
	return n.tracker, true
}

// Promote counts a promotion of id to a hotter tier.
func (g *HotGraph) Promote(id string) bool {
	if !g.nodes.Contains(id) {
		return false
	}
	g.stats.IncPromotions()
	return true
}

// Demote counts a demotion of id to a colder tier.
func (g *HotGraph) Demote(id string) bool {
	if !g.nodes.Contains(id) {
		return false
	}
	g.stats.IncDemotions()
	return true
}

// WeightedEdge is one directed edge with its weight.
type WeightedEdge struct {
	From   string
	To     string
	Weight float32
}

// Edges returns every edge without recording accesses.
func (g *HotGraph) Edges() []WeightedEdge {
	out := make([]WeightedEdge, 0, g.EdgeCount())
	for from, targets := range g.outgoing.All() {
		for to, w := range targets.All() {
			out = append(out, WeightedEdge{From: from, To: to, Weight: w})
		}
	}
	return out
}

// Clear removes every node and edge.
func (g *HotGraph) Clear() {
	for _, id := range g.nodes.Keys() {
		g.RemoveNode(id)
	}
}

// Nodes returns the sorted node IDs.
func (g *HotGraph) Nodes() []string { return sortedKeys(g.nodes) }

// NodeCount returns the number of nodes.
func (g *HotGraph) NodeCount() int { return g.nodes.Len() }

// EdgeCount returns the number of edges.
func (g *HotGraph) EdgeCount() int { return int(max(g.edges.Load(), 0)) }

// Counters exposes the raw counters for metrics export.
func (g *HotGraph) Counters() *Stats { return &g.stats }

// Stats returns a snapshot of the graph.
func (g *HotGraph) Stats() HotGraphStats {
	s := g.stats.Snapshot()
	return HotGraphStats{
		NodeCount:      g.NodeCount(),
		EdgeCount:      g.EdgeCount(),
		Queries:        s.Queries,
		TotalQueryTime: s.TotalQueryTime,
		Promotions:     s.Promotions,
		Demotions:      s.Demotions,
	}
}
