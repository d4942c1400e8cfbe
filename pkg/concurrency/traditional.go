package concurrency

import (
	"context"
	"fmt"
	"iter"
	"maps"
	"slices"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/orneryd/tierdb/pkg/lockfree"
	"github.com/orneryd/tierdb/pkg/math/vector"
)

// TraditionalVector is the lock-based vector backend. Similarity search is
// delegated to an in-memory chromem-go collection; the raw vectors are
// also kept so they can be migrated without loss.
//
// All vectors in one index must share a dimension. Zero vectors are stored
// but never returned by Search.
type TraditionalVector struct {
	mu         sync.RWMutex
	collection *chromem.Collection
	vectors    map[string][]float32
}

// NewTraditionalVector returns an empty backend.
func NewTraditionalVector() (*TraditionalVector, error) {
	col, err := chromem.NewDB().CreateCollection("hot_vectors", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("concurrency: create collection: %w", err)
	}
	return &TraditionalVector{collection: col, vectors: make(map[string][]float32)}, nil
}

// Add stores vec under id, replacing any previous vector.
func (t *TraditionalVector) Add(id string, vec []float32) error {
	if id == "" {
		return lockfree.ErrEmptyID
	}
	owned := slices.Clone(vec)

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.vectors[id]; ok {
		if err := t.collection.Delete(context.Background(), nil, nil, id); err != nil {
			return fmt.Errorf("concurrency: replace %s: %w", id, err)
		}
	}
	if !isZero(owned) {
		doc := chromem.Document{ID: id, Embedding: slices.Clone(owned)}
		if err := t.collection.AddDocument(context.Background(), doc); err != nil {
			return fmt.Errorf("concurrency: add %s: %w", id, err)
		}
	}
	t.vectors[id] = owned
	return nil
}

// Remove deletes id and reports whether it existed.
func (t *TraditionalVector) Remove(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.vectors[id]; !ok {
		return false
	}
	delete(t.vectors, id)
	// The document may be absent for zero vectors; Delete tolerates that.
	_ = t.collection.Delete(context.Background(), nil, nil, id)
	return true
}

// Get returns a copy of the vector stored under id.
func (t *TraditionalVector) Get(id string) ([]float32, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.vectors[id]
	return slices.Clone(v), ok
}

// Search returns up to k vectors by cosine similarity, best first.
func (t *TraditionalVector) Search(query []float32, k int) ([]vector.Scored, error) {
	if k <= 0 || isZero(query) {
		return nil, nil
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := min(k, t.collection.Count())
	if n == 0 {
		return nil, nil
	}
	res, err := t.collection.QueryEmbedding(context.Background(), slices.Clone(query), n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("concurrency: search: %w", err)
	}
	out := make([]vector.Scored, len(res))
	for i, r := range res {
		out[i] = vector.Scored{ID: r.ID, Score: float64(r.Similarity)}
	}
	return out, nil
}

// Len returns the number of stored vectors.
func (t *TraditionalVector) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.vectors)
}

// Vectors yields a snapshot of every stored vector.
func (t *TraditionalVector) Vectors() iter.Seq2[string, []float32] {
	t.mu.RLock()
	snap := maps.Clone(t.vectors)
	t.mu.RUnlock()
	return maps.All(snap)
}

// Clear removes every vector.
func (t *TraditionalVector) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.vectors) > 0 {
		_ = t.collection.Delete(context.Background(), nil, nil, slices.Collect(maps.Keys(t.vectors))...)
	}
	clear(t.vectors)
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// TraditionalGraph is the lock-based graph backend: plain maps behind one
// RWMutex, with the same contract as lockfree.HotGraph.
type TraditionalGraph struct {
	mu       sync.RWMutex
	meta     map[string]string
	outgoing map[string]map[string]float32
	incoming map[string]map[string]struct{}
	edges    int
}

// NewTraditionalGraph returns an empty graph.
func NewTraditionalGraph() *TraditionalGraph {
	return &TraditionalGraph{
		meta:     make(map[string]string),
		outgoing: make(map[string]map[string]float32),
		incoming: make(map[string]map[string]struct{}),
	}
}

// AddNode ensures id exists. Empty metadata leaves existing metadata alone.
func (g *TraditionalGraph) AddNode(id, metadata string) error {
	if id == "" {
		return lockfree.ErrEmptyID
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ensure(id, metadata)
	return nil
}

func (g *TraditionalGraph) ensure(id, metadata string) {
	if cur, ok := g.meta[id]; !ok || (metadata != "" && metadata != cur) {
		g.meta[id] = metadata
	}
	if _, ok := g.outgoing[id]; !ok {
		g.outgoing[id] = make(map[string]float32)
		g.incoming[id] = make(map[string]struct{})
	}
}

// RemoveNode deletes id and every edge touching it.
func (g *TraditionalGraph) RemoveNode(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.meta[id]; !ok {
		return false
	}
	for to := range g.outgoing[id] {
		delete(g.incoming[to], id)
		g.edges--
	}
	for from := range g.incoming[id] {
		if _, ok := g.outgoing[from][id]; ok && from != id {
			delete(g.outgoing[from], id)
			g.edges--
		}
	}
	delete(g.meta, id)
	delete(g.outgoing, id)
	delete(g.incoming, id)
	return true
}

// AddEdge adds from -> to with weight 1.
func (g *TraditionalGraph) AddEdge(from, to string) error {
	return g.AddWeightedEdge(from, to, 1)
}

// AddWeightedEdge adds or reweights from -> to, creating missing endpoints.
func (g *TraditionalGraph) AddWeightedEdge(from, to string, weight float32) error {
	if from == "" || to == "" {
		return lockfree.ErrEmptyID
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ensure(from, "")
	g.ensure(to, "")
	if _, ok := g.outgoing[from][to]; !ok {
		g.edges++
	}
	g.outgoing[from][to] = weight
	g.incoming[to][from] = struct{}{}
	return nil
}

// RemoveEdge deletes from -> to and reports whether it existed.
func (g *TraditionalGraph) RemoveEdge(from, to string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.outgoing[from][to]; !ok {
		return false
	}
	delete(g.outgoing[from], to)
	delete(g.incoming[to], from)
	g.edges--
	return true
}

// Outgoing returns the sorted successors of id.
func (g *TraditionalGraph) Outgoing(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return slices.Sorted(maps.Keys(g.outgoing[id]))
}

// Incoming returns the sorted predecessors of id.
func (g *TraditionalGraph) Incoming(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return slices.Sorted(maps.Keys(g.incoming[id]))
}

// EdgeWeight returns the weight of from -> to.
func (g *TraditionalGraph) EdgeWeight(from, to string) (float32, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	w, ok := g.outgoing[from][to]
	return w, ok
}

// Metadata returns the metadata of id.
func (g *TraditionalGraph) Metadata(id string) (string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	m, ok := g.meta[id]
	return m, ok
}

// HasNode reports whether id exists.
func (g *TraditionalGraph) HasNode(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.meta[id]
	return ok
}

// Edges returns every edge.
func (g *TraditionalGraph) Edges() []lockfree.WeightedEdge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]lockfree.WeightedEdge, 0, g.edges)
	for from, targets := range g.outgoing {
		for to, w := range targets {
			out = append(out, lockfree.WeightedEdge{From: from, To: to, Weight: w})
		}
	}
	return out
}

// Clear removes every node and edge.
func (g *TraditionalGraph) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	clear(g.meta)
	clear(g.outgoing)
	clear(g.incoming)
	g.edges = 0
}

// Nodes returns the sorted node IDs.
func (g *TraditionalGraph) Nodes() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return slices.Sorted(maps.Keys(g.meta))
}

// NodeCount returns the number of nodes.
func (g *TraditionalGraph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.meta)
}

// EdgeCount returns the number of edges.
func (g *TraditionalGraph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.edges
}
