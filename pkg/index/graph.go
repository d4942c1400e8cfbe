package index

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/orneryd/tierdb/pkg/kv"
	"github.com/orneryd/tierdb/pkg/models"
)

// GraphIndex keeps bidirectional adjacency: out:{node} holds the edges that
// leave node, in:{node} the edges that enter it.
//
// Both sides of an edge are written in the same badger transaction, so a
// failed add or remove never leaves the edge in only one set.
type GraphIndex struct {
	store *kv.Store
	r     reader
}

// NewGraphIndex creates a graph index over store.
func NewGraphIndex(store *kv.Store, opts ...Option) *GraphIndex {
	return &GraphIndex{store: store, r: newReader(store, opts)}
}

// AddEdge records e under out:{e.FromNode} and in:{e.ToNode}.
func (g *GraphIndex) AddEdge(e *models.Edge) error {
	return g.store.Update(func(txn *badger.Txn) error {
		return g.AddEdgeTxn(txn, e)
	})
}

// AddEdgeTxn is AddEdge within txn.
func (g *GraphIndex) AddEdgeTxn(txn *badger.Txn, e *models.Edge) error {
	if e == nil || e.ID == "" {
		return ErrEmptyID
	}
	id := string(e.ID)
	if _, err := addToSet(txn, OutgoingKey(string(e.FromNode)), id); err != nil {
		return fmt.Errorf("index: add outgoing %s: %w", e.ID, err)
	}
	if _, err := addToSet(txn, IncomingKey(string(e.ToNode)), id); err != nil {
		return fmt.Errorf("index: add incoming %s: %w", e.ID, err)
	}
	return nil
}

// RemoveEdge removes e from both of its sets. Empty sets are deleted.
func (g *GraphIndex) RemoveEdge(e *models.Edge) error {
	return g.store.Update(func(txn *badger.Txn) error {
		return g.RemoveEdgeTxn(txn, e)
	})
}

// RemoveEdgeTxn is RemoveEdge within txn.
func (g *GraphIndex) RemoveEdgeTxn(txn *badger.Txn, e *models.Edge) error {
	if e == nil {
		return nil
	}
	id := string(e.ID)
	if _, err := removeFromSet(txn, OutgoingKey(string(e.FromNode)), id); err != nil {
		return fmt.Errorf("index: remove outgoing %s: %w", e.ID, err)
	}
	if _, err := removeFromSet(txn, IncomingKey(string(e.ToNode)), id); err != nil {
		return fmt.Errorf("index: remove incoming %s: %w", e.ID, err)
	}
	return nil
}

// GetOutgoing returns a guard over the edges leaving node.
func (g *GraphIndex) GetOutgoing(node models.NodeID) (*Guard, error) {
	return g.r.open(OutgoingKey(string(node)))
}

// GetIncoming returns a guard over the edges entering node.
func (g *GraphIndex) GetIncoming(node models.NodeID) (*Guard, error) {
	return g.r.open(IncomingKey(string(node)))
}

// CountOutgoing returns the out-degree of node.
func (g *GraphIndex) CountOutgoing(node models.NodeID) (int, error) {
	return g.r.count(OutgoingKey(string(node)))
}

// CountIncoming returns the in-degree of node.
func (g *GraphIndex) CountIncoming(node models.NodeID) (int, error) {
	return g.r.count(IncomingKey(string(node)))
}

// HasOutgoing reports whether edge is recorded as leaving node.
func (g *GraphIndex) HasOutgoing(node models.NodeID, edge models.EdgeID) (bool, error) {
	return g.r.contains(OutgoingKey(string(node)), string(edge))
}

// HasIncoming reports whether edge is recorded as entering node.
func (g *GraphIndex) HasIncoming(node models.NodeID, edge models.EdgeID) (bool, error) {
	return g.r.contains(IncomingKey(string(node)), string(edge))
}

// RemoveAllEdges deletes both adjacency keys of node and returns how many of
// the two existed. The opposite endpoints' sets are left alone; use
// Manager.DetachNode to clean both sides.
func (g *GraphIndex) RemoveAllEdges(node models.NodeID) (int, error) {
	removed := 0
	err := g.store.Update(func(txn *badger.Txn) error {
		n, err := g.RemoveAllEdgesTxn(txn, node)
		removed = n
		return err
	})
	return removed, err
}

// RemoveAllEdgesTxn is RemoveAllEdges within txn.
func (g *GraphIndex) RemoveAllEdgesTxn(txn *badger.Txn, node models.NodeID) (int, error) {
	removed := 0
	for _, key := range [][]byte{OutgoingKey(string(node)), IncomingKey(string(node))} {
		ok, err := keyExists(txn, key)
		if err != nil {
			return removed, err
		}
		if !ok {
			continue
		}
		if err := txn.Delete(key); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
