// Package lockfree provides the concurrent structures behind the hot-tier
// indexes: a CAS-based hash map, per-record access trackers, atomic
// statistics, and the hot graph and vector indexes built from them.
//
// No operation in this package takes a mutex. Writers retry on CAS failure;
// readers never block. Unlinked entries are reclaimed by the garbage
// collector once no goroutine still holds them, so readers need no pin.
package lockfree

import (
	"iter"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
)

// DefaultBuckets is the bucket count used when NewHashMap is given zero.
const DefaultBuckets = 64

// link is an immutable (next, marked) pair. Entries swap whole links so
// that the mark and the successor change in one CAS.
type link[K ~string, V any] struct {
	next   *entry[K, V]
	marked bool
}

type entry[K ~string, V any] struct {
	hash  uint64
	key   K
	value atomic.Pointer[V]
	succ  atomic.Pointer[link[K, V]]
}

// HashMap is a fixed-bucket concurrent hash map. Each bucket is a sentinel
// followed by a singly linked list; inserts prepend, removals mark the
// entry and then unlink it. The zero value is not usable; call NewHashMap.
//
// Len is tracked separately and is only eventually consistent with the
// contents under concurrent mutation.
type HashMap[K ~string, V any] struct {
	buckets []atomic.Pointer[entry[K, V]]
	mask    uint64
	size    atomic.Int64
}

// NewHashMap returns a map with buckets rounded up to a power of two.
func NewHashMap[K ~string, V any](buckets int) *HashMap[K, V] {
	if buckets <= 0 {
		buckets = DefaultBuckets
	}
	n := 1
	for n < buckets {
		n <<= 1
	}
	return &HashMap[K, V]{
		buckets: make([]atomic.Pointer[entry[K, V]], n),
		mask:    uint64(n - 1),
	}
}

func hashKey[K ~string](key K) uint64 {
	return xxhash.Sum64String(string(key))
}

// head returns the bucket sentinel for h, installing it on first use.
func (m *HashMap[K, V]) head(h uint64) *entry[K, V] {
	slot := &m.buckets[h&m.mask]
	if s := slot.Load(); s != nil {
		return s
	}
	s := &entry[K, V]{}
	s.succ.Store(&link[K, V]{})
	if slot.CompareAndSwap(nil, s) {
		return s
	}
	return slot.Load()
}

// scan returns the first unmarked entry for key starting at e.
func scan[K ~string, V any](e *entry[K, V], h uint64, key K) *entry[K, V] {
	for e != nil {
		l := e.succ.Load()
		if !l.marked && e.hash == h && e.key == key {
			return e
		}
		e = l.next
	}
	return nil
}

// Insert stores value under key. It returns the previous value and true
// when the key was already present; the value is replaced atomically.
func (m *HashMap[K, V]) Insert(key K, value V) (V, bool) {
	return m.insert(key, value, true)
}

// LoadOrStore returns the existing value for key if present. Otherwise it
// stores value and returns it with loaded false.
func (m *HashMap[K, V]) LoadOrStore(key K, value V) (actual V, loaded bool) {
	actual, loaded = m.insert(key, value, false)
	if !loaded {
		return value, false
	}
	return actual, true
}

// LoadOrCreate is LoadOrStore with a lazily built value: create runs only
// when key is missing, and may still lose to a concurrent store, in which
// case its result is dropped.
func (m *HashMap[K, V]) LoadOrCreate(key K, create func() V) (actual V, loaded bool) {
	if v, ok := m.Get(key); ok {
		return v, true
	}
	return m.LoadOrStore(key, create())
}

func (m *HashMap[K, V]) insert(key K, value V, replace bool) (V, bool) {
	h := hashKey(key)
	head := m.head(h)
	v := &value
	for {
		first := head.succ.Load()
		if e := scan(first.next, h, key); e != nil {
			if !replace {
				if cur := e.value.Load(); !e.succ.Load().marked {
					return *cur, true
				}
				continue
			}
			prev := e.value.Swap(v)
			if !e.succ.Load().marked {
				return *prev, true
			}
			// Removed underneath us; the value went with the dead entry.
			continue
		}

		n := &entry[K, V]{hash: h, key: key}
		n.value.Store(v)
		n.succ.Store(&link[K, V]{next: first.next})
		if head.succ.CompareAndSwap(first, &link[K, V]{next: n}) {
			m.size.Add(1)
			var zero V
			return zero, false
		}
	}
}

// Get returns the value stored under key.
func (m *HashMap[K, V]) Get(key K) (V, bool) {
	h := hashKey(key)
	if e := scan(m.head(h).succ.Load().next, h, key); e != nil {
		return *e.value.Load(), true
	}
	var zero V
	return zero, false
}

// Contains reports whether key is present.
func (m *HashMap[K, V]) Contains(key K) bool {
	_, ok := m.Get(key)
	return ok
}

// Remove deletes key and returns the value it held.
func (m *HashMap[K, V]) Remove(key K) (V, bool) {
	h := hashKey(key)
	head := m.head(h)
	for {
		pred, cur := m.find(head, h, key)
		if cur == nil {
			var zero V
			return zero, false
		}
		succ := cur.succ.Load()
		if succ.marked {
			continue
		}
		if !cur.succ.CompareAndSwap(succ, &link[K, V]{next: succ.next, marked: true}) {
			continue
		}
		m.size.Add(-1)
		v := *cur.value.Load()

		// Physical unlink; a later find finishes it if this CAS loses.
		if ps := pred.succ.Load(); !ps.marked && ps.next == cur {
			pred.succ.CompareAndSwap(ps, &link[K, V]{next: succ.next})
		}
		return v, true
	}
}

// find returns the live entry for key and its predecessor, unlinking any
// marked entries it passes. cur is nil when the key is absent.
func (m *HashMap[K, V]) find(head *entry[K, V], h uint64, key K) (pred, cur *entry[K, V]) {
retry:
	for {
		pred = head
		predSucc := pred.succ.Load()
		cur = predSucc.next
		for cur != nil {
			curSucc := cur.succ.Load()
			if curSucc.marked {
				unlinked := &link[K, V]{next: curSucc.next}
				if !pred.succ.CompareAndSwap(predSucc, unlinked) {
					continue retry
				}
				predSucc = unlinked
				cur = curSucc.next
				continue
			}
			if cur.hash == h && cur.key == key {
				return pred, cur
			}
			pred, predSucc, cur = cur, curSucc, curSucc.next
		}
		return pred, nil
	}
}

// Len returns the number of live entries.
func (m *HashMap[K, V]) Len() int {
	return int(max(m.size.Load(), 0))
}

// IsEmpty reports whether Len is zero.
func (m *HashMap[K, V]) IsEmpty() bool { return m.Len() == 0 }

// All yields every live entry. Entries inserted or removed during the walk
// may or may not be seen.
func (m *HashMap[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for i := range m.buckets {
			s := m.buckets[i].Load()
			if s == nil {
				continue
			}
			for e := s.succ.Load().next; e != nil; {
				l := e.succ.Load()
				if !l.marked {
					if !yield(e.key, *e.value.Load()) {
						return
					}
				}
				e = l.next
			}
		}
	}
}

// Keys returns a snapshot of the live keys.
func (m *HashMap[K, V]) Keys() []K {
	out := make([]K, 0, m.Len())
	for k := range m.All() {
		out = append(out, k)
	}
	return out
}
