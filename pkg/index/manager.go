package index

import (
	"errors"
	"fmt"
	"iter"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/orneryd/tierdb/pkg/kv"
	"github.com/orneryd/tierdb/pkg/logging"
	"github.com/orneryd/tierdb/pkg/math/vector"
	"github.com/orneryd/tierdb/pkg/models"
	"github.com/orneryd/tierdb/pkg/zerocopy"
)

// ErrNoVectorIndex is returned by vector operations on a manager built
// without a vector index.
var ErrNoVectorIndex = errors.New("index: no vector index configured")

// VectorIndex is the in-memory similarity index a Manager feeds.
type VectorIndex interface {
	Add(id string, vec []float32) error
	Remove(id string) bool
	Search(query []float32, k int) ([]vector.Scored, error)
	Len() int
}

// TxnEdgeResolver loads an edge record inside an open transaction.
type TxnEdgeResolver func(txn *badger.Txn, id models.EdgeID) (*models.Edge, error)

// Manager owns the structural and graph indexes of one store and an
// optional vector index.
type Manager struct {
	structural *StructuralIndex
	graph      *GraphIndex
	vectors    VectorIndex
	log        *zap.Logger
}

// NewManager builds a manager over store. vectors may be nil.
func NewManager(store *kv.Store, vectors VectorIndex, log *zap.Logger, opts ...Option) *Manager {
	return &Manager{
		structural: NewStructuralIndex(store, opts...),
		graph:      NewGraphIndex(store, opts...),
		vectors:    vectors,
		log:        logging.OrNop(log),
	}
}

// Structural returns the structural index.
func (m *Manager) Structural() *StructuralIndex { return m.structural }

// Graph returns the graph index.
func (m *Manager) Graph() *GraphIndex { return m.graph }

// Vectors returns the vector index, or nil.
func (m *Manager) Vectors() VectorIndex { return m.vectors }

// IndexNodeTxn adds structural entries for every indexed field of n.
func (m *Manager) IndexNodeTxn(txn *badger.Txn, n models.Node) error {
	id := string(n.ID())
	for _, f := range n.IndexedFields() {
		if err := m.structural.AddTxn(txn, f.Property, f.Value, id); err != nil {
			return err
		}
	}
	return nil
}

// UnindexNodeTxn removes the structural entries of n.
func (m *Manager) UnindexNodeTxn(txn *badger.Txn, n models.Node) error {
	id := string(n.ID())
	for _, f := range n.IndexedFields() {
		if err := m.structural.RemoveTxn(txn, f.Property, f.Value, id); err != nil {
			return err
		}
	}
	return nil
}

// IndexEdgeTxn records e in the graph index.
func (m *Manager) IndexEdgeTxn(txn *badger.Txn, e *models.Edge) error {
	return m.graph.AddEdgeTxn(txn, e)
}

// UnindexEdgeTxn removes e from the graph index.
func (m *Manager) UnindexEdgeTxn(txn *badger.Txn, e *models.Edge) error {
	return m.graph.RemoveEdgeTxn(txn, e)
}

// IndexEmbedding adds e to the vector index. It is a no-op without one.
func (m *Manager) IndexEmbedding(e *models.Embedding) error {
	if m.vectors == nil {
		return nil
	}
	return m.vectors.Add(string(e.ID), e.Vector)
}

// UnindexEmbedding removes id from the vector index.
func (m *Manager) UnindexEmbedding(id models.EmbeddingID) {
	if m.vectors != nil {
		m.vectors.Remove(string(id))
	}
}

// SearchVectors returns the k embeddings most similar to query.
func (m *Manager) SearchVectors(query []float32, k int) ([]vector.Scored, error) {
	if m.vectors == nil {
		return nil, ErrNoVectorIndex
	}
	return m.vectors.Search(query, k)
}

// NodesByProperty is StructuralIndex.Get.
func (m *Manager) NodesByProperty(property, value string) (*Guard, error) {
	return m.structural.Get(property, value)
}

// NodesByPropertyTxn returns an owned copy of the IDs indexed under
// (property, value) as seen by txn, including its uncommitted writes.
func (m *Manager) NodesByPropertyTxn(txn *badger.Txn, property, value string) ([]string, error) {
	return readSet(txn, PropertyKey(property, value))
}

// OutgoingEdges is GraphIndex.GetOutgoing.
func (m *Manager) OutgoingEdges(node models.NodeID) (*Guard, error) {
	return m.graph.GetOutgoing(node)
}

// IncomingEdges is GraphIndex.GetIncoming.
func (m *Manager) IncomingEdges(node models.NodeID) (*Guard, error) {
	return m.graph.GetIncoming(node)
}

// DetachNodeTxn removes node from the graph index on both sides: its own
// out:/in: keys, and its edge IDs from every neighbor's opposite set. It
// returns the IDs of all edges that touched node so the caller can delete
// the edge records in the same transaction.
func (m *Manager) DetachNodeTxn(txn *badger.Txn, node models.NodeID, resolve TxnEdgeResolver) ([]models.EdgeID, error) {
	out, err := readSet(txn, OutgoingKey(string(node)))
	if err != nil {
		return nil, err
	}
	in, err := readSet(txn, IncomingKey(string(node)))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(out)+len(in))
	touched := make([]models.EdgeID, 0, len(out)+len(in))
	detach := func(ids []string, far func(*models.Edge) []byte) error {
		for _, id := range ids {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			touched = append(touched, models.EdgeID(id))

			e, err := resolve(txn, models.EdgeID(id))
			if err != nil {
				return err
			}
			if e == nil {
				continue
			}
			if _, err := removeFromSet(txn, far(e), id); err != nil {
				return err
			}
		}
		return nil
	}
	if err := detach(out, func(e *models.Edge) []byte { return IncomingKey(string(e.ToNode)) }); err != nil {
		return nil, fmt.Errorf("index: detach %s: %w", node, err)
	}
	if err := detach(in, func(e *models.Edge) []byte { return OutgoingKey(string(e.FromNode)) }); err != nil {
		return nil, fmt.Errorf("index: detach %s: %w", node, err)
	}
	if _, err := m.graph.RemoveAllEdgesTxn(txn, node); err != nil {
		return nil, err
	}
	return touched, nil
}

// RebuildVectors loads every embedding from seq into the vector index and
// returns how many were added.
func (m *Manager) RebuildVectors(seq iter.Seq2[*models.Embedding, error]) (int, error) {
	if m.vectors == nil {
		return 0, ErrNoVectorIndex
	}
	n := 0
	for e, err := range seq {
		if err != nil {
			return n, err
		}
		if err := m.vectors.Add(string(e.ID), e.Vector); err != nil {
			return n, err
		}
		n++
	}
	m.log.Debug("vector index rebuilt", zap.Int("embeddings", n))
	return n, nil
}

// readSet returns an owned copy of the set under key, nil when absent.
func readSet(txn *badger.Txn, key []byte) ([]string, error) {
	var out []string
	_, err := zerocopy.ViewArchive(txn, key, zerocopy.IDSet{}, func(v zerocopy.IDSetView) error {
		out = v.ToOwned()
		return nil
	})
	return out, err
}
