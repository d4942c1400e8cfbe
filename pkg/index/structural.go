package index

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"

	"github.com/orneryd/tierdb/pkg/kv"
)

// Option configures an index.
type Option func(*reader)

// WithLocalTxns makes guards open and discard their own read transactions
// instead of borrowing from the store's pool.
func WithLocalTxns() Option {
	return func(r *reader) { r.usePool = false }
}

func newReader(store *kv.Store, opts []Option) reader {
	r := reader{store: store, usePool: true}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// StructuralIndex maps (property, value) to the sorted set of node IDs
// carrying that value.
//
// Every mutation is a read-modify-write inside one badger transaction. The
// *Txn variants join a caller's transaction, so a node record and its index
// entries commit together.
type StructuralIndex struct {
	store *kv.Store
	r     reader
}

// NewStructuralIndex creates a structural index over store.
func NewStructuralIndex(store *kv.Store, opts ...Option) *StructuralIndex {
	return &StructuralIndex{store: store, r: newReader(store, opts)}
}

// Add inserts nodeID under (property, value). Adding an existing member is
// a no-op.
func (s *StructuralIndex) Add(property, value, nodeID string) error {
	return s.store.Update(func(txn *badger.Txn) error {
		return s.AddTxn(txn, property, value, nodeID)
	})
}

// AddTxn is Add within txn.
func (s *StructuralIndex) AddTxn(txn *badger.Txn, property, value, nodeID string) error {
	if nodeID == "" {
		return ErrEmptyID
	}
	if _, err := addToSet(txn, PropertyKey(property, value), nodeID); err != nil {
		return fmt.Errorf("index: add %s=%s: %w", property, value, err)
	}
	return nil
}

// Remove deletes nodeID from (property, value). Removing the last member
// deletes the key. Removing an absent member succeeds.
func (s *StructuralIndex) Remove(property, value, nodeID string) error {
	return s.store.Update(func(txn *badger.Txn) error {
		return s.RemoveTxn(txn, property, value, nodeID)
	})
}

// RemoveTxn is Remove within txn.
func (s *StructuralIndex) RemoveTxn(txn *badger.Txn, property, value, nodeID string) error {
	if _, err := removeFromSet(txn, PropertyKey(property, value), nodeID); err != nil {
		return fmt.Errorf("index: remove %s=%s: %w", property, value, err)
	}
	return nil
}

// Get returns a guard over the node IDs under (property, value). The guard
// is empty when nothing is indexed there. The caller must Close it.
func (s *StructuralIndex) Get(property, value string) (*Guard, error) {
	return s.r.open(PropertyKey(property, value))
}

// Count returns the number of node IDs under (property, value) without
// copying the set.
func (s *StructuralIndex) Count(property, value string) (int, error) {
	return s.r.count(PropertyKey(property, value))
}

// Contains reports whether nodeID is indexed under (property, value).
func (s *StructuralIndex) Contains(property, value, nodeID string) (bool, error) {
	return s.r.contains(PropertyKey(property, value), nodeID)
}

// Values lists the distinct indexed values of property in key order.
func (s *StructuralIndex) Values(property string) ([]string, error) {
	prefix := propertyPrefix(property)
	keys, err := s.store.Keys(prefix)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = string(k[len(prefix):])
	}
	return out, nil
}

// Properties lists the distinct property names that have at least one
// indexed value.
func (s *StructuralIndex) Properties() ([]string, error) {
	keys, err := s.store.Keys([]byte(StructuralPrefix))
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	for _, k := range keys {
		rest := k[len(StructuralPrefix):]
		if i := bytes.IndexByte(rest, ':'); i >= 0 {
			seen[string(rest[:i])] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}

// ClearProperty deletes every value indexed under property and returns the
// number of keys removed.
func (s *StructuralIndex) ClearProperty(property string) (int, error) {
	return s.store.DropPrefix(propertyPrefix(property))
}
