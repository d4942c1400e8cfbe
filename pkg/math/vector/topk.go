package vector

import (
	"container/heap"
	"sort"
)

// Scored pairs an ID with a similarity score.
type Scored struct {
	ID    string
	Score float64
}

// TopK keeps the k highest-scoring entries pushed into it.
type TopK struct {
	k int
	h minHeap
}

// NewTopK returns a collector for the best k entries. k <= 0 keeps nothing.
func NewTopK(k int) *TopK {
	if k < 0 {
		k = 0
	}
	return &TopK{k: k, h: make(minHeap, 0, k)}
}

// Push offers an entry.
func (t *TopK) Push(id string, score float64) {
	if t.k == 0 {
		return
	}
	if len(t.h) < t.k {
		heap.Push(&t.h, Scored{ID: id, Score: score})
		return
	}
	if score > t.h[0].Score {
		t.h[0] = Scored{ID: id, Score: score}
		heap.Fix(&t.h, 0)
	}
}

// Results returns the kept entries, best first. Ties order by ID.
func (t *TopK) Results() []Scored {
	out := make([]Scored, len(t.h))
	copy(out, t.h)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	return out
}

type minHeap []Scored

func (h minHeap) Len() int           { return len(h) }
func (h minHeap) Less(i, j int) bool { return h[i].Score < h[j].Score }
func (h minHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x any)        { *h = append(*h, x.(Scored)) }
func (h *minHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
