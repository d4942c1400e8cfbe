package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/ristretto/v2"
	"go.uber.org/zap"

	"github.com/orneryd/tierdb/pkg/concurrency"
	"github.com/orneryd/tierdb/pkg/index"
	"github.com/orneryd/tierdb/pkg/kv"
	"github.com/orneryd/tierdb/pkg/logging"
	"github.com/orneryd/tierdb/pkg/math/vector"
	"github.com/orneryd/tierdb/pkg/models"
	"github.com/orneryd/tierdb/pkg/pool"
	"github.com/orneryd/tierdb/pkg/zerocopy"
)

// Key prefixes for records. Index keys (prop:, out:, in:) share the store.
const (
	NodePrefix      = "node:"
	EdgePrefix      = "edge:"
	EmbeddingPrefix = "emb:"
	VectorPrefix    = "vec:"
)

// CacheOptions sizes the node read cache.
type CacheOptions struct {
	// NumCounters is the number of keys tracked for admission, roughly ten
	// times the expected number of cached nodes.
	NumCounters int64
	// MaxCost bounds the cached bytes.
	MaxCost int64
	// TTL bounds how long an entry is served. Zero means no expiry.
	TTL time.Duration
}

// DefaultCacheOptions caches up to 32MB of encoded nodes for 30 seconds.
func DefaultCacheOptions() *CacheOptions {
	return &CacheOptions{NumCounters: 100_000, MaxCost: 32 << 20, TTL: 30 * time.Second}
}

// Options configures a StorageManager.
type Options struct {
	// Type and Tier are recorded for introspection. Open does not derive the
	// path from them; OpenTyped does.
	Type DatabaseType
	Tier TemperatureTier

	// Store configures the underlying badger instance. Store.Dir is set by
	// Open.
	Store kv.Options

	// Indexing enables the structural, graph and vector indexes.
	Indexing bool

	// Vectors replaces the default adaptive vector index. Only used with
	// Indexing.
	Vectors index.VectorIndex

	// Adaptive tunes the default vector index.
	Adaptive concurrency.Config

	// Cache enables the node read cache. nil disables it.
	Cache *CacheOptions

	// Schema is checked on every node insert. nil accepts any node.
	Schema *Schema

	Logger *zap.Logger
}

// StorageManager stores the nodes, edges and embeddings of one
// (DatabaseType, TemperatureTier) pair.
//
// With indexing enabled, every node write updates the structural index and
// every edge write updates the graph index in the same badger transaction
// as the record itself, so a record and its index entries always commit
// together. Embeddings feed the in-memory vector index after commit; the
// vector index is rebuilt from stored embeddings on open.
//
// Getters return (nil, nil) when the record does not exist. Deleting a
// missing record returns (nil, nil) as well.
//
// The node read cache holds encoded nodes. Writes through the manager evict
// the entry, and a read only fills the cache when no write committed while
// it ran. A read racing a delete in another goroutine can still leave a
// stale entry, bounded by CacheOptions.TTL.
//
// Thread Safety:
//
//	StorageManager is safe for concurrent use.
type StorageManager struct {
	store   *kv.Store
	indexes *index.Manager
	cache   *ristretto.Cache[string, []byte]
	ttl     time.Duration
	schema  *Schema
	dbType  DatabaseType
	tier    TemperatureTier
	log     *zap.Logger
}

// Open opens or creates a manager at path.
func Open(path string, opts Options) (*StorageManager, error) {
	log := logging.OrNop(opts.Logger).With(
		zap.String("db", opts.Type.Name()),
		zap.Stringer("tier", opts.Tier))

	if !opts.Store.InMemory {
		if path == "" {
			return nil, invalidOp(errors.New("empty path"), "open")
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, invalidOp(err, "create %s", path)
		}
	}
	kvOpts := opts.Store
	kvOpts.Dir = path
	kvOpts.Logger = log
	store, err := kv.Open(kvOpts)
	if err != nil {
		return nil, invalidOp(err, "open %s", path)
	}

	m := &StorageManager{store: store, dbType: opts.Type, tier: opts.Tier, schema: opts.Schema, log: log}

	if opts.Cache != nil {
		m.cache, err = ristretto.NewCache(&ristretto.Config[string, []byte]{
			NumCounters: opts.Cache.NumCounters,
			MaxCost:     opts.Cache.MaxCost,
			BufferItems: 64,
			Metrics:     true,
		})
		if err != nil {
			_ = store.Close()
			return nil, invalidOp(err, "node cache")
		}
		m.ttl = opts.Cache.TTL
	}

	if opts.Indexing {
		vectors := opts.Vectors
		if vectors == nil {
			adaptive, err := concurrency.NewAdaptiveVector(withAdaptiveDefaults(opts.Adaptive), log)
			if err != nil {
				_ = m.Close()
				return nil, invalidOp(err, "vector index")
			}
			vectors = adaptive
		}
		m.indexes = index.NewManager(store, vectors, log)
		n, err := m.indexes.RebuildVectors(m.Embeddings())
		if err != nil {
			_ = m.Close()
			return nil, invalidOp(err, "rebuild vector index")
		}
		if n > 0 {
			log.Info("vector index warmed", zap.Int("embeddings", n))
		}
	}

	log.Debug("storage manager opened", zap.String("path", store.Path()), zap.Bool("indexing", opts.Indexing))
	return m, nil
}

func withAdaptiveDefaults(cfg concurrency.Config) concurrency.Config {
	if cfg == (concurrency.Config{}) {
		return concurrency.DefaultConfig()
	}
	return cfg
}

// OpenTyped opens the manager of (dbType, tier) under base.
func OpenTyped(dbType DatabaseType, tier TemperatureTier, base string, opts Options) (*StorageManager, error) {
	opts.Type = dbType
	opts.Tier = tier
	return Open(dbType.Path(base, tier), opts)
}

// OpenTypedWithIndexing is OpenTyped with indexing enabled.
func OpenTypedWithIndexing(dbType DatabaseType, tier TemperatureTier, base string, opts Options) (*StorageManager, error) {
	opts.Indexing = true
	return OpenTyped(dbType, tier, base, opts)
}

// DbType returns the manager's database type.
func (m *StorageManager) DbType() DatabaseType { return m.dbType }

// Tier returns the manager's tier, NoTier for single-tier types.
func (m *StorageManager) Tier() TemperatureTier { return m.tier }

// Path returns the store directory, empty for in-memory managers.
func (m *StorageManager) Path() string { return m.store.Path() }

// Store exposes the underlying store for bulk operations.
func (m *StorageManager) Store() *kv.Store { return m.store }

// Schema returns the constraints checked on insert, or nil.
func (m *StorageManager) Schema() *Schema { return m.schema }

// Indexes returns the index manager, or nil without indexing.
func (m *StorageManager) Indexes() *index.Manager { return m.indexes }

// HasIndexing reports whether indexes are maintained.
func (m *StorageManager) HasIndexing() bool { return m.indexes != nil }

func recordKey(prefix, id string) []byte {
	kb := pool.GetKeyBuilder()
	defer pool.PutKeyBuilder(kb)
	return kb.WriteString(prefix).WriteString(id).Bytes()
}

func (m *StorageManager) checkOpen() error {
	if m.store.IsClosed() {
		return ErrStorageClosed
	}
	return nil
}

// =============================================================================
// Nodes
// =============================================================================

// InsertNode stores n, replacing any node with the same ID. A node that
// breaks a schema constraint is rejected with an error matching
// ErrConstraintViolation.
func (m *StorageManager) InsertNode(n models.Node) error {
	if n == nil {
		return invalidOp(errors.New("nil node"), "insert node")
	}
	id := string(n.ID())
	if id == "" {
		return invalidOp(ErrInvalidID, "insert node")
	}
	if err := m.checkOpen(); err != nil {
		return err
	}
	payload, err := models.MarshalNode(n)
	if err != nil {
		return serialization(err, "encode node %s", id)
	}
	key := recordKey(NodePrefix, id)
	err = m.store.Update(func(txn *badger.Txn) error {
		if m.schema != nil {
			if err := m.schema.validateTxn(txn, m.indexes, n); err != nil {
				return err
			}
		}
		if m.indexes != nil {
			old, err := nodeTxn(txn, key)
			if err != nil {
				return err
			}
			if old != nil {
				if err := m.indexes.UnindexNodeTxn(txn, old); err != nil {
					return err
				}
			}
		}
		if err := zerocopy.PutAligned(txn, key, payload); err != nil {
			return err
		}
		if m.indexes != nil {
			return m.indexes.IndexNodeTxn(txn, n)
		}
		return nil
	})
	m.evict(id)
	return invalidOp(err, "insert node %s", id)
}

// GetNode returns the node stored under id, or nil.
func (m *StorageManager) GetNode(id models.NodeID) (models.Node, error) {
	if id == "" {
		return nil, invalidOp(ErrInvalidID, "get node")
	}
	if m.cache != nil {
		if payload, ok := m.cache.Get(string(id)); ok {
			return decodeNode(payload)
		}
	}
	gen := m.store.Generation()
	var payload []byte
	err := m.store.View(func(txn *badger.Txn) error {
		var err error
		payload, err = zerocopy.GetRaw(txn, recordKey(NodePrefix, string(id)))
		return err
	})
	if err != nil {
		return nil, invalidOp(err, "get node %s", id)
	}
	if payload == nil {
		return nil, nil
	}
	if m.cache != nil && m.store.Generation() == gen {
		m.cache.SetWithTTL(string(id), payload, int64(len(payload)), m.ttl)
	}
	return decodeNode(payload)
}

// HasNode reports whether a node is stored under id.
func (m *StorageManager) HasNode(id models.NodeID) (bool, error) {
	n, err := m.GetNode(id)
	return n != nil, err
}

// DeleteNode removes the node stored under id and returns it, or nil when
// absent. With indexing, the node's structural entries go with it, and so
// does every edge touching it, including the edge IDs held by neighbors.
func (m *StorageManager) DeleteNode(id models.NodeID) (models.Node, error) {
	if id == "" {
		return nil, invalidOp(ErrInvalidID, "delete node")
	}
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	key := recordKey(NodePrefix, string(id))
	var removed models.Node
	var edges int
	err := m.store.Update(func(txn *badger.Txn) error {
		removed, edges = nil, 0
		old, err := nodeTxn(txn, key)
		if err != nil || old == nil {
			return err
		}
		if m.indexes != nil {
			if err := m.indexes.UnindexNodeTxn(txn, old); err != nil {
				return err
			}
			touched, err := m.indexes.DetachNodeTxn(txn, id, edgeTxn)
			if err != nil {
				return err
			}
			for _, eid := range touched {
				if err := zerocopy.Delete(txn, recordKey(EdgePrefix, string(eid))); err != nil {
					return err
				}
			}
			edges = len(touched)
		}
		removed = old
		return zerocopy.Delete(txn, key)
	})
	m.evict(string(id))
	if err != nil {
		return nil, invalidOp(err, "delete node %s", id)
	}
	if edges > 0 {
		m.log.Debug("node deleted with edges", zap.String("id", string(id)), zap.Int("edges", edges))
	}
	return removed, nil
}

// evict drops id from the cache and waits for buffered sets to drain, so a
// fill queued before the write cannot land after the delete.
func (m *StorageManager) evict(id string) {
	if m.cache != nil {
		m.cache.Del(id)
		m.cache.Wait()
	}
}

func nodeTxn(txn *badger.Txn, key []byte) (models.Node, error) {
	var n models.Node
	_, err := zerocopy.View(txn, key, 1, func(payload []byte) error {
		var err error
		n, err = decodeNode(payload)
		return err
	})
	return n, err
}

func decodeNode(payload []byte) (models.Node, error) {
	n, err := models.UnmarshalNode(payload)
	if err != nil {
		return nil, serialization(err, "decode node")
	}
	return n, nil
}

// NodesByProperty returns the IDs of nodes whose indexed property equals
// value, in ID order.
func (m *StorageManager) NodesByProperty(property, value string) ([]models.NodeID, error) {
	if m.indexes == nil {
		return nil, invalidOp(errors.New("indexing disabled"), "nodes by property")
	}
	g, err := m.indexes.NodesByProperty(property, value)
	if err != nil {
		return nil, invalidOp(err, "nodes by %s=%s", property, value)
	}
	defer g.Close()
	return g.NodeIDs(), nil
}

// Nodes yields every stored node in ID order.
func (m *StorageManager) Nodes() iter.Seq2[models.Node, error] {
	return scanDecoded(m, NodePrefix, decodeNode)
}

// =============================================================================
// Edges
// =============================================================================

// InsertEdge stores e, replacing any edge with the same ID.
func (m *StorageManager) InsertEdge(e *models.Edge) error {
	if e == nil || e.ID == "" {
		return invalidOp(ErrInvalidID, "insert edge")
	}
	if e.FromNode == "" || e.ToNode == "" {
		return invalidOp(ErrInvalidID, "insert edge %s: missing endpoint", e.ID)
	}
	if err := m.checkOpen(); err != nil {
		return err
	}
	payload, err := models.MarshalEdge(e)
	if err != nil {
		return serialization(err, "encode edge %s", e.ID)
	}
	key := recordKey(EdgePrefix, string(e.ID))
	err = m.store.Update(func(txn *badger.Txn) error {
		if m.indexes != nil {
			old, err := edgeTxn(txn, e.ID)
			if err != nil {
				return err
			}
			if old != nil {
				if err := m.indexes.UnindexEdgeTxn(txn, old); err != nil {
					return err
				}
			}
		}
		if err := zerocopy.PutAligned(txn, key, payload); err != nil {
			return err
		}
		if m.indexes != nil {
			return m.indexes.IndexEdgeTxn(txn, e)
		}
		return nil
	})
	return invalidOp(err, "insert edge %s", e.ID)
}

// GetEdge returns the edge stored under id, or nil.
func (m *StorageManager) GetEdge(id models.EdgeID) (*models.Edge, error) {
	if id == "" {
		return nil, invalidOp(ErrInvalidID, "get edge")
	}
	var e *models.Edge
	err := m.store.View(func(txn *badger.Txn) error {
		var err error
		e, err = edgeTxn(txn, id)
		return err
	})
	if err != nil {
		return nil, invalidOp(err, "get edge %s", id)
	}
	return e, nil
}

// DeleteEdge removes the edge stored under id and returns it, or nil.
func (m *StorageManager) DeleteEdge(id models.EdgeID) (*models.Edge, error) {
	if id == "" {
		return nil, invalidOp(ErrInvalidID, "delete edge")
	}
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	var removed *models.Edge
	err := m.store.Update(func(txn *badger.Txn) error {
		old, err := edgeTxn(txn, id)
		removed = old
		if err != nil || old == nil {
			return err
		}
		if m.indexes != nil {
			if err := m.indexes.UnindexEdgeTxn(txn, old); err != nil {
				return err
			}
		}
		return zerocopy.Delete(txn, recordKey(EdgePrefix, string(id)))
	})
	if err != nil {
		return nil, invalidOp(err, "delete edge %s", id)
	}
	return removed, nil
}

func edgeTxn(txn *badger.Txn, id models.EdgeID) (*models.Edge, error) {
	var e *models.Edge
	_, err := zerocopy.View(txn, recordKey(EdgePrefix, string(id)), 1, func(payload []byte) error {
		var err error
		e, err = decodeEdge(payload)
		return err
	})
	return e, err
}

func decodeEdge(payload []byte) (*models.Edge, error) {
	e, err := models.UnmarshalEdge(payload)
	if err != nil {
		return nil, serialization(err, "decode edge")
	}
	return e, nil
}

// OutgoingEdges returns the IDs of edges leaving node.
func (m *StorageManager) OutgoingEdges(node models.NodeID) ([]models.EdgeID, error) {
	return m.adjacent(node, index.Outgoing)
}

// IncomingEdges returns the IDs of edges entering node.
func (m *StorageManager) IncomingEdges(node models.NodeID) ([]models.EdgeID, error) {
	return m.adjacent(node, index.Incoming)
}

func (m *StorageManager) adjacent(node models.NodeID, dir index.Direction) ([]models.EdgeID, error) {
	if m.indexes == nil {
		return nil, invalidOp(errors.New("indexing disabled"), "adjacent edges")
	}
	var (
		g   *index.Guard
		err error
	)
	if dir == index.Outgoing {
		g, err = m.indexes.OutgoingEdges(node)
	} else {
		g, err = m.indexes.IncomingEdges(node)
	}
	if err != nil {
		return nil, invalidOp(err, "adjacent edges of %s", node)
	}
	defer g.Close()
	return g.EdgeIDs(), nil
}

// Traverse returns a traversal over the graph index resolving edges from
// this manager. maxDepth zero means unlimited.
func (m *StorageManager) Traverse(dir index.Direction, maxDepth int) (index.Traversal, error) {
	if m.indexes == nil {
		return index.Traversal{}, invalidOp(errors.New("indexing disabled"), "traverse")
	}
	return index.Traversal{
		Graph:     m.indexes.Graph(),
		Resolver:  index.EdgeResolverFunc(m.GetEdge),
		Direction: dir,
		MaxDepth:  maxDepth,
	}, nil
}

// Edges yields every stored edge in ID order.
func (m *StorageManager) Edges() iter.Seq2[*models.Edge, error] {
	return scanDecoded(m, EdgePrefix, decodeEdge)
}

// =============================================================================
// Embeddings
// =============================================================================

// embeddingRecord is stored under emb:{id}; the vector itself lives under
// vec:{id} as a float32 archive so it can be read in place.
type embeddingRecord struct {
	ID    models.EmbeddingID `json:"id"`
	Model string             `json:"model"`
	Dim   int                `json:"dim"`
}

// InsertEmbedding stores e, replacing any embedding with the same ID, and
// adds it to the vector index.
func (m *StorageManager) InsertEmbedding(e *models.Embedding) error {
	if e == nil || e.ID == "" {
		return invalidOp(ErrInvalidID, "insert embedding")
	}
	if len(e.Vector) == 0 {
		return invalidOp(errors.New("empty vector"), "insert embedding %s", e.ID)
	}
	if err := m.checkOpen(); err != nil {
		return err
	}
	meta, err := json.Marshal(embeddingRecord{ID: e.ID, Model: e.Model, Dim: len(e.Vector)})
	if err != nil {
		return serialization(err, "encode embedding %s", e.ID)
	}
	err = m.store.Update(func(txn *badger.Txn) error {
		if err := zerocopy.PutAligned(txn, recordKey(EmbeddingPrefix, string(e.ID)), meta); err != nil {
			return err
		}
		return zerocopy.PutAligned(txn, recordKey(VectorPrefix, string(e.ID)), zerocopy.EncodeFloat32s(e.Vector))
	})
	if err != nil {
		return invalidOp(err, "insert embedding %s", e.ID)
	}
	if m.indexes != nil {
		// The record is committed; a failed index add is repaired by the
		// rebuild on next open.
		return invalidOp(m.indexes.IndexEmbedding(e), "index embedding %s", e.ID)
	}
	return nil
}

// GetEmbedding returns the embedding stored under id, or nil.
func (m *StorageManager) GetEmbedding(id models.EmbeddingID) (*models.Embedding, error) {
	if id == "" {
		return nil, invalidOp(ErrInvalidID, "get embedding")
	}
	var e *models.Embedding
	err := m.store.View(func(txn *badger.Txn) error {
		var err error
		e, err = embeddingTxn(txn, id)
		return err
	})
	if err != nil {
		return nil, invalidOp(err, "get embedding %s", id)
	}
	return e, nil
}

// GetEmbeddingByNode returns the embedding referenced by node, or nil when
// the node is absent or carries none.
func (m *StorageManager) GetEmbeddingByNode(node models.NodeID) (*models.Embedding, error) {
	n, err := m.GetNode(node)
	if err != nil || n == nil {
		return nil, err
	}
	ref, ok := n.EmbeddingRef()
	if !ok {
		return nil, nil
	}
	return m.GetEmbedding(ref)
}

// DeleteEmbedding removes the embedding stored under id and returns it, or
// nil.
func (m *StorageManager) DeleteEmbedding(id models.EmbeddingID) (*models.Embedding, error) {
	if id == "" {
		return nil, invalidOp(ErrInvalidID, "delete embedding")
	}
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	var removed *models.Embedding
	err := m.store.Update(func(txn *badger.Txn) error {
		old, err := embeddingTxn(txn, id)
		removed = old
		if err != nil || old == nil {
			return err
		}
		if err := zerocopy.Delete(txn, recordKey(EmbeddingPrefix, string(id))); err != nil {
			return err
		}
		return zerocopy.Delete(txn, recordKey(VectorPrefix, string(id)))
	})
	if err != nil {
		return nil, invalidOp(err, "delete embedding %s", id)
	}
	if removed != nil && m.indexes != nil {
		m.indexes.UnindexEmbedding(id)
	}
	return removed, nil
}

func embeddingTxn(txn *badger.Txn, id models.EmbeddingID) (*models.Embedding, error) {
	raw, err := zerocopy.GetRaw(txn, recordKey(EmbeddingPrefix, string(id)))
	if err != nil || raw == nil {
		return nil, err
	}
	var rec embeddingRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, serialization(err, "decode embedding %s", id)
	}
	vec, err := zerocopy.ReadFloat32s(txn, recordKey(VectorPrefix, string(id)))
	if err != nil {
		return nil, err
	}
	if len(vec) != rec.Dim {
		return nil, serialization(fmt.Errorf("dimension %d, record says %d", len(vec), rec.Dim), "decode embedding %s", id)
	}
	return &models.Embedding{ID: rec.ID, Vector: vec, Model: rec.Model}, nil
}

// Embeddings yields every stored embedding in ID order.
func (m *StorageManager) Embeddings() iter.Seq2[*models.Embedding, error] {
	return func(yield func(*models.Embedding, error) bool) {
		err := m.store.View(func(txn *badger.Txn) error {
			prefix := []byte(EmbeddingPrefix)
			opts := badger.DefaultIteratorOptions
			opts.PrefetchValues = false
			opts.Prefix = prefix
			it := txn.NewIterator(opts)
			defer it.Close()
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				id := models.EmbeddingID(it.Item().Key()[len(prefix):])
				e, err := embeddingTxn(txn, id)
				if err != nil {
					return err
				}
				if e != nil && !yield(e, nil) {
					return errStop
				}
			}
			return nil
		})
		if err != nil && !errors.Is(err, errStop) {
			yield(nil, invalidOp(err, "scan embeddings"))
		}
	}
}

// SearchEmbeddings returns the k stored embeddings most similar to query.
func (m *StorageManager) SearchEmbeddings(query []float32, k int) ([]vector.Scored, error) {
	if m.indexes == nil {
		return nil, invalidOp(index.ErrNoVectorIndex, "search embeddings")
	}
	res, err := m.indexes.SearchVectors(query, k)
	return res, invalidOp(err, "search embeddings")
}

// =============================================================================
// Scans and lifecycle
// =============================================================================

var errStop = errors.New("storage: iteration stopped")

// ScanPrefix calls fn with the key and validated payload of every record
// whose key starts with prefix. The payload is only valid during the call.
func (m *StorageManager) ScanPrefix(prefix []byte, fn func(key, payload []byte) error) error {
	err := m.store.Scan(prefix, func(key, value []byte) error {
		payload, err := zerocopy.Decode(value, 1)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		return fn(key, payload)
	})
	return invalidOp(err, "scan %q", prefix)
}

// Iter yields every record key and an owned copy of its payload.
func (m *StorageManager) Iter() iter.Seq2[[]byte, []byte] {
	return func(yield func([]byte, []byte) bool) {
		err := m.ScanPrefix(nil, func(key, payload []byte) error {
			if !yield(key, append([]byte(nil), payload...)) {
				return errStop
			}
			return nil
		})
		if err != nil && !errors.Is(err, errStop) {
			m.log.Warn("iteration aborted", zap.Error(err))
		}
	}
}

func scanDecoded[T any](m *StorageManager, prefix string, decode func([]byte) (T, error)) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		err := m.ScanPrefix([]byte(prefix), func(_, payload []byte) error {
			v, err := decode(payload)
			if err != nil {
				return err
			}
			if !yield(v, nil) {
				return errStop
			}
			return nil
		})
		if err != nil && !errors.Is(err, errStop) {
			yield(zero, err)
		}
	}
}

// Stats summarizes a manager.
type Stats struct {
	Type        DatabaseType
	Tier        TemperatureTier
	Nodes       int
	Edges       int
	Embeddings  int
	Vectors     int // entries in the vector index
	CacheHits   uint64
	CacheMisses uint64
}

// Stats counts the stored records.
func (m *StorageManager) Stats() (Stats, error) {
	s := Stats{Type: m.dbType, Tier: m.tier}
	for _, c := range []struct {
		prefix string
		dst    *int
	}{
		{NodePrefix, &s.Nodes},
		{EdgePrefix, &s.Edges},
		{EmbeddingPrefix, &s.Embeddings},
	} {
		keys, err := m.store.Keys([]byte(c.prefix))
		if err != nil {
			return s, invalidOp(err, "stats")
		}
		*c.dst = len(keys)
	}
	if m.indexes != nil && m.indexes.Vectors() != nil {
		s.Vectors = m.indexes.Vectors().Len()
	}
	if m.cache != nil && m.cache.Metrics != nil {
		s.CacheHits = m.cache.Metrics.Hits()
		s.CacheMisses = m.cache.Metrics.Misses()
	}
	return s, nil
}

// Close closes the cache and the store. Safe to call twice.
func (m *StorageManager) Close() error {
	if m.cache != nil {
		m.cache.Close()
	}
	if err := m.store.Close(); err != nil {
		return invalidOp(err, "close")
	}
	return nil
}
