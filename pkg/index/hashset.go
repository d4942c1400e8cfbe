package index

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"

	"github.com/orneryd/tierdb/pkg/kv"
)

// HashStructuralIndex is a structural index that stores each set as a plain
// JSON array. Reads deserialize the whole set, so it suits small or rarely
// read sets and stores shared with tools that cannot parse the archive
// format. It uses the same keys as StructuralIndex; do not mix the two over
// one store.
type HashStructuralIndex struct {
	store *kv.Store
}

// NewHashStructuralIndex creates a JSON set index over store.
func NewHashStructuralIndex(store *kv.Store) *HashStructuralIndex {
	return &HashStructuralIndex{store: store}
}

func (h *HashStructuralIndex) load(txn *badger.Txn, key []byte) (map[string]struct{}, error) {
	set := make(map[string]struct{})
	item, err := txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return set, nil
	}
	if err != nil {
		return nil, err
	}
	var members []string
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &members)
	}); err != nil {
		return nil, fmt.Errorf("index: decoding set %q: %w", key, err)
	}
	for _, m := range members {
		set[m] = struct{}{}
	}
	return set, nil
}

func (h *HashStructuralIndex) save(txn *badger.Txn, key []byte, set map[string]struct{}) error {
	if len(set) == 0 {
		return txn.Delete(key)
	}
	data, err := json.Marshal(sortedMembers(set))
	if err != nil {
		return err
	}
	return txn.Set(key, data)
}

func sortedMembers(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for m := range set {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Add inserts nodeID under (property, value).
func (h *HashStructuralIndex) Add(property, value, nodeID string) error {
	if nodeID == "" {
		return ErrEmptyID
	}
	key := PropertyKey(property, value)
	return h.store.Update(func(txn *badger.Txn) error {
		set, err := h.load(txn, key)
		if err != nil {
			return err
		}
		if _, ok := set[nodeID]; ok {
			return nil
		}
		set[nodeID] = struct{}{}
		return h.save(txn, key, set)
	})
}

// Remove deletes nodeID from (property, value), dropping the key when the
// set empties.
func (h *HashStructuralIndex) Remove(property, value, nodeID string) error {
	key := PropertyKey(property, value)
	return h.store.Update(func(txn *badger.Txn) error {
		set, err := h.load(txn, key)
		if err != nil {
			return err
		}
		if _, ok := set[nodeID]; !ok {
			return nil
		}
		delete(set, nodeID)
		return h.save(txn, key, set)
	})
}

// Get returns the members under (property, value) in ascending order.
func (h *HashStructuralIndex) Get(property, value string) ([]string, error) {
	var out []string
	err := h.store.View(func(txn *badger.Txn) error {
		set, err := h.load(txn, PropertyKey(property, value))
		if err != nil {
			return err
		}
		out = sortedMembers(set)
		return nil
	})
	return out, err
}

// Count returns the member count under (property, value).
func (h *HashStructuralIndex) Count(property, value string) (int, error) {
	members, err := h.Get(property, value)
	return len(members), err
}

// Contains reports whether nodeID is a member under (property, value).
func (h *HashStructuralIndex) Contains(property, value, nodeID string) (bool, error) {
	var ok bool
	err := h.store.View(func(txn *badger.Txn) error {
		set, err := h.load(txn, PropertyKey(property, value))
		if err != nil {
			return err
		}
		_, ok = set[nodeID]
		return nil
	})
	return ok, err
}
