package lockfree

import (
	"iter"
	"time"

	"github.com/orneryd/tierdb/pkg/decay"
	"github.com/orneryd/tierdb/pkg/math/vector"
)

type hotVector struct {
	q       vector.Quantized
	tracker *AccessTracker
}

// HotVector keeps 8-bit quantized vectors in a HashMap and answers top-k
// cosine queries by brute force over every stored vector.
type HotVector struct {
	vectors *HashMap[string, *hotVector]
	stats   Stats
	scorer  *decay.Scorer
	class   decay.Class
}

// HotVectorStats is a snapshot of a HotVector.
type HotVectorStats struct {
	VectorCount            int
	Queries                uint64
	AvgQueryTime           time.Duration
	SimilarityComputations uint64
	Promotions             uint64
	Demotions              uint64
}

// NewHotVector returns an empty index. scorer may be nil.
func NewHotVector(scorer *decay.Scorer, class decay.Class) *HotVector {
	if scorer == nil {
		scorer = decay.NewScorer(decay.DefaultConfig())
	}
	if class == "" {
		class = decay.ClassSemantic
	}
	return &HotVector{
		vectors: NewHashMap[string, *hotVector](0),
		scorer:  scorer,
		class:   class,
	}
}

// Add quantizes vec and stores it under id, replacing any previous vector.
func (h *HotVector) Add(id string, vec []float32) error {
	if id == "" {
		return ErrEmptyID
	}
	tracker := NewAccessTracker()
	if old, ok := h.vectors.Get(id); ok {
		tracker = old.tracker
	}
	if _, replaced := h.vectors.Insert(id, &hotVector{q: vector.Quantize(vec), tracker: tracker}); !replaced {
		h.stats.IncItems()
	}
	return nil
}

// Remove deletes id and reports whether it existed.
func (h *HotVector) Remove(id string) bool {
	if _, ok := h.vectors.Remove(id); ok {
		h.stats.DecItems()
		return true
	}
	return false
}

// Get returns the dequantized vector of id.
func (h *HotVector) Get(id string) ([]float32, bool) {
	v, ok := h.vectors.Get(id)
	if !ok {
		return nil, false
	}
	return v.q.Dequantize(), true
}

// Search returns the k vectors closest to query by quantized cosine,
// best first. Every hit records an access on its tracker.
func (h *HotVector) Search(query []float32, k int) ([]vector.Scored, error) {
	start := time.Now()
	q := vector.Quantize(query)
	top := vector.NewTopK(k)
	computed := 0
	for id, v := range h.vectors.All() {
		top.Push(id, v.q.Cosine(q))
		computed++
	}
	h.stats.AddSimilarityComputations(computed)

	results := top.Results()
	for _, r := range results {
		if v, ok := h.vectors.Get(r.ID); ok {
			v.tracker.RecordAccess()
		}
	}
	h.stats.ObserveQuery(time.Since(start))
	return results, nil
}

// Vectors yields every stored vector, dequantized.
func (h *HotVector) Vectors() iter.Seq2[string, []float32] {
	return func(yield func(string, []float32) bool) {
		for id, v := range h.vectors.All() {
			if !yield(id, v.q.Dequantize()) {
				return
			}
		}
	}
}

// Clear removes every vector.
func (h *HotVector) Clear() {
	for _, id := range h.vectors.Keys() {
		h.Remove(id)
	}
}

// Len returns the number of stored vectors.
func (h *HotVector) Len() int { return h.vectors.Len() }

// IDs returns the stored IDs in no particular order.
func (h *HotVector) IDs() []string { return h.vectors.Keys() }

// Temperature scores the access history of id.
func (h *HotVector) Temperature(id string) (decay.Temperature, bool) {
	v, ok := h.vectors.Get(id)
	if !ok {
		return "", false
	}
	return h.scorer.Temperature(v.tracker.Access(h.class)), true
}

// Promote counts a promotion of id.
func (h *HotVector) Promote(id string) bool {
	if !h.vectors.Contains(id) {
		return false
	}
	h.stats.IncPromotions()
	return true
}

// Demote counts a demotion of id.
func (h *HotVector) Demote(id string) bool {
	if !h.vectors.Contains(id) {
		return false
	}
	h.stats.IncDemotions()
	return true
}

// Counters exposes the raw counters for metrics export.
func (h *HotVector) Counters() *Stats { return &h.stats }

// Stats returns a snapshot of the index.
func (h *HotVector) Stats() HotVectorStats {
	s := h.stats.Snapshot()
	return HotVectorStats{
		VectorCount:            h.Len(),
		Queries:                s.Queries,
		AvgQueryTime:           s.AvgQueryTime(),
		SimilarityComputations: s.SimilarityComputations,
		Promotions:             s.Promotions,
		Demotions:              s.Demotions,
	}
}
