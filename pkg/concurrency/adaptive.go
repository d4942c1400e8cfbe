package concurrency

import (
	"iter"
	"sync"

	"go.uber.org/zap"

	"github.com/orneryd/tierdb/pkg/decay"
	"github.com/orneryd/tierdb/pkg/lockfree"
	"github.com/orneryd/tierdb/pkg/logging"
	"github.com/orneryd/tierdb/pkg/math/vector"
)

type vectorBackend interface {
	Add(id string, vec []float32) error
	Remove(id string) bool
	Get(id string) ([]float32, bool)
	Search(query []float32, k int) ([]vector.Scored, error)
	Len() int
	Vectors() iter.Seq2[string, []float32]
	Clear()
}

// AdaptiveVector routes vector operations to a TraditionalVector or a
// lockfree.HotVector. Vectors moved from the lock-free backend carry its
// 8-bit precision.
type AdaptiveVector struct {
	ctrl        *Controller
	traditional *TraditionalVector
	lockFree    *lockfree.HotVector
	log         *zap.Logger

	// mu is held shared by every operation and exclusively while the
	// controller is checked or overridden and while migrating, so no
	// operation observes a half-moved index and active always matches the
	// controller's mode once mu is released.
	mu     sync.RWMutex
	active Mode
}

// NewAdaptiveVector returns an index in Traditional mode.
func NewAdaptiveVector(cfg Config, log *zap.Logger) (*AdaptiveVector, error) {
	return newAdaptiveVector(NewController(cfg), log)
}

func newAdaptiveVector(ctrl *Controller, log *zap.Logger) (*AdaptiveVector, error) {
	trad, err := NewTraditionalVector()
	if err != nil {
		return nil, err
	}
	return &AdaptiveVector{
		ctrl:        ctrl,
		traditional: trad,
		lockFree:    lockfree.NewHotVector(nil, decay.ClassSemantic),
		log:         logging.OrNop(log).Named("adaptive_vector"),
		active:      ctrl.Mode(),
	}, nil
}

func (a *AdaptiveVector) backend() vectorBackend {
	if a.active == LockFree {
		return a.lockFree
	}
	return a.traditional
}

// tick counts an operation. A due check runs under the exclusive lock and
// the backend follows whatever mode the controller ends up in.
func (a *AdaptiveVector) tick() {
	if !a.ctrl.recordOp() {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ctrl.Check()
	a.syncLocked()
}

// syncLocked migrates to the controller's mode. a.mu must be held
// exclusively.
func (a *AdaptiveVector) syncLocked() {
	to := a.ctrl.Mode()
	if a.active == to {
		return
	}
	from := a.backend()
	a.active = to
	dst := a.backend()

	moved := 0
	for id, vec := range from.Vectors() {
		if err := dst.Add(id, vec); err != nil {
			a.log.Warn("vector migration skipped entry", zap.String("id", id), zap.Error(err))
			continue
		}
		moved++
	}
	from.Clear()
	a.log.Info("concurrency mode switched",
		zap.Stringer("mode", to),
		zap.Int("migrated", moved),
		zap.Int64("load", a.ctrl.Load()))
}

// Add stores vec under id.
func (a *AdaptiveVector) Add(id string, vec []float32) error {
	a.tick()
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.backend().Add(id, vec)
}

// Remove deletes id and reports whether it existed.
func (a *AdaptiveVector) Remove(id string) bool {
	a.tick()
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.backend().Remove(id)
}

// Get returns the vector stored under id.
func (a *AdaptiveVector) Get(id string) ([]float32, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.backend().Get(id)
}

// Search returns the k most similar vectors, best first.
func (a *AdaptiveVector) Search(query []float32, k int) ([]vector.Scored, error) {
	a.tick()
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.backend().Search(query, k)
}

// Len returns the number of vectors in the active backend.
func (a *AdaptiveVector) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.backend().Len()
}

// IsEmpty reports whether Len is zero.
func (a *AdaptiveVector) IsEmpty() bool { return a.Len() == 0 }

// Mode returns the active backend.
func (a *AdaptiveVector) Mode() Mode {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.active
}

// SetMode forces mode, migrating data if it changes.
func (a *AdaptiveVector) SetMode(mode Mode) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ctrl.SetMode(mode)
	a.syncLocked()
}

// Controller returns the controller driving the index.
func (a *AdaptiveVector) Controller() *Controller { return a.ctrl }

// HotStats returns the lock-free backend's counters.
func (a *AdaptiveVector) HotStats() lockfree.HotVectorStats { return a.lockFree.Stats() }

type graphBackend interface {
	AddNode(id, metadata string) error
	RemoveNode(id string) bool
	AddWeightedEdge(from, to string, weight float32) error
	RemoveEdge(from, to string) bool
	Outgoing(id string) []string
	Incoming(id string) []string
	EdgeWeight(from, to string) (float32, bool)
	Metadata(id string) (string, bool)
	HasNode(id string) bool
	Edges() []lockfree.WeightedEdge
	Nodes() []string
	NodeCount() int
	EdgeCount() int
	Clear()
}

// AdaptiveGraph routes graph operations to a TraditionalGraph or a
// lockfree.HotGraph.
type AdaptiveGraph struct {
	ctrl        *Controller
	traditional *TraditionalGraph
	lockFree    *lockfree.HotGraph
	log         *zap.Logger

	mu     sync.RWMutex
	active Mode
}

// NewAdaptiveGraph returns a graph in Traditional mode.
func NewAdaptiveGraph(cfg Config, log *zap.Logger) *AdaptiveGraph {
	return newAdaptiveGraph(NewController(cfg), log)
}

func newAdaptiveGraph(ctrl *Controller, log *zap.Logger) *AdaptiveGraph {
	return &AdaptiveGraph{
		ctrl:        ctrl,
		traditional: NewTraditionalGraph(),
		lockFree:    lockfree.NewHotGraph(nil, decay.ClassEpisodic),
		log:         logging.OrNop(log).Named("adaptive_graph"),
		active:      ctrl.Mode(),
	}
}

func (a *AdaptiveGraph) backend() graphBackend {
	if a.active == LockFree {
		return a.lockFree
	}
	return a.traditional
}

func (a *AdaptiveGraph) tick() {
	if !a.ctrl.recordOp() {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ctrl.Check()
	a.syncLocked()
}

func (a *AdaptiveGraph) syncLocked() {
	to := a.ctrl.Mode()
	if a.active == to {
		return
	}
	from := a.backend()
	a.active = to
	dst := a.backend()

	for _, id := range from.Nodes() {
		meta, _ := from.Metadata(id)
		_ = dst.AddNode(id, meta)
	}
	edges := from.Edges()
	for _, e := range edges {
		_ = dst.AddWeightedEdge(e.From, e.To, e.Weight)
	}
	from.Clear()
	a.log.Info("concurrency mode switched",
		zap.Stringer("mode", to),
		zap.Int("nodes", dst.NodeCount()),
		zap.Int("edges", len(edges)))
}

// AddNode ensures id exists with metadata.
func (a *AdaptiveGraph) AddNode(id, metadata string) error {
	a.tick()
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.backend().AddNode(id, metadata)
}

// RemoveNode deletes id and its edges.
func (a *AdaptiveGraph) RemoveNode(id string) bool {
	a.tick()
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.backend().RemoveNode(id)
}

// AddEdge adds from -> to with weight 1.
func (a *AdaptiveGraph) AddEdge(from, to string) error {
	return a.AddWeightedEdge(from, to, 1)
}

// AddWeightedEdge adds or reweights from -> to.
func (a *AdaptiveGraph) AddWeightedEdge(from, to string, weight float32) error {
	a.tick()
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.backend().AddWeightedEdge(from, to, weight)
}

// RemoveEdge deletes from -> to.
func (a *AdaptiveGraph) RemoveEdge(from, to string) bool {
	a.tick()
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.backend().RemoveEdge(from, to)
}

// Outgoing returns the sorted successors of id.
func (a *AdaptiveGraph) Outgoing(id string) []string {
	a.tick()
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.backend().Outgoing(id)
}

// Incoming returns the sorted predecessors of id.
func (a *AdaptiveGraph) Incoming(id string) []string {
	a.tick()
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.backend().Incoming(id)
}

// EdgeWeight returns the weight of from -> to.
func (a *AdaptiveGraph) EdgeWeight(from, to string) (float32, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.backend().EdgeWeight(from, to)
}

// Metadata returns the metadata of id.
func (a *AdaptiveGraph) Metadata(id string) (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.backend().Metadata(id)
}

// HasNode reports whether id exists.
func (a *AdaptiveGraph) HasNode(id string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.backend().HasNode(id)
}

// Nodes returns the sorted node IDs.
func (a *AdaptiveGraph) Nodes() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.backend().Nodes()
}

// NodeCount returns the number of nodes.
func (a *AdaptiveGraph) NodeCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.backend().NodeCount()
}

// EdgeCount returns the number of edges.
func (a *AdaptiveGraph) EdgeCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.backend().EdgeCount()
}

// Mode returns the active backend.
func (a *AdaptiveGraph) Mode() Mode {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.active
}

// SetMode forces mode, migrating data if it changes.
func (a *AdaptiveGraph) SetMode(mode Mode) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ctrl.SetMode(mode)
	a.syncLocked()
}

// Controller returns the controller driving the graph.
func (a *AdaptiveGraph) Controller() *Controller { return a.ctrl }

// HotStats returns the lock-free backend's counters.
func (a *AdaptiveGraph) HotStats() lockfree.HotGraphStats { return a.lockFree.Stats() }
