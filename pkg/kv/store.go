// Package kv owns the badger instances behind every tierdb storage manager.
//
// A Store wraps one badger.DB with three additions:
//
//   - a write generation counter, bumped after every committed write, which
//     the read transaction pool uses to retire stale snapshots;
//   - a bounded ReadTxnPool that caps concurrent read transactions;
//   - a writer lock that serializes Update, so read-modify-write updates
//     of shared index keys never lose to badger.ErrConflict.
//
// Example:
//
//	store, err := kv.Open(kv.Options{Dir: "/var/lib/tierdb/meta"})
//	if err != nil {
//		return err
//	}
//	defer store.Close()
//
//	err = store.Update(func(txn *badger.Txn) error {
//		return txn.Set([]byte("k"), []byte("v"))
//	})
//
// Thread Safety:
//
//	Store is safe for concurrent use. Individual badger transactions are not;
//	a transaction handed out by the pool belongs to one goroutine until
//	released.
package kv

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/orneryd/tierdb/pkg/logging"
)

// Errors returned by Store.
var (
	ErrClosed = errors.New("kv: store closed")
)

// maxConflictRetries bounds retries of Update after badger.ErrConflict.
// Updates are serialized by the writer lock, so a conflict only comes from
// a transaction opened directly on DB().
const maxConflictRetries = 16

// conflictBackoff is the base delay between conflict retries.
const conflictBackoff = 100 * time.Microsecond

// Options configures a Store.
type Options struct {
	// Dir is the badger directory. Created if missing. Ignored when InMemory.
	Dir string

	// InMemory keeps all data in RAM (tests).
	InMemory bool

	// SyncWrites fsyncs every commit.
	SyncWrites bool

	// LowMemory shrinks memtables and caches for constrained hosts.
	LowMemory bool

	// EncryptionKey enables badger at-rest encryption. Must be 16, 24 or 32
	// bytes. See DeriveEncryptionKey.
	EncryptionKey []byte

	// MaxReaders caps concurrently open pooled read transactions.
	// Zero selects DefaultMaxReaders.
	MaxReaders int

	// MaxIdleReaders caps idle read transactions kept for reuse.
	// Zero selects DefaultMaxIdleReaders; negative disables reuse.
	MaxIdleReaders int

	Logger *zap.Logger
}

// Store is a badger database with generation tracking and a read pool.
type Store struct {
	db      *badger.DB
	writeMu sync.Mutex
	path    string
	gen     atomic.Uint64
	closed  atomic.Bool
	readers *ReadTxnPool
	log     *zap.Logger
}

// Open opens or creates the badger database described by opts.
func Open(opts Options) (*Store, error) {
	log := logging.OrNop(opts.Logger)

	if !opts.InMemory {
		if opts.Dir == "" {
			return nil, fmt.Errorf("kv: directory required for on-disk store")
		}
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("kv: create %s: %w", opts.Dir, err)
		}
	}

	dir := opts.Dir
	if opts.InMemory {
		dir = ""
	}
	badgerOpts := badger.DefaultOptions(dir).
		WithInMemory(opts.InMemory).
		WithSyncWrites(opts.SyncWrites).
		WithLogger(logging.NewBadgerAdapter(log))

	// Every tier is its own badger instance, so the per-instance footprint
	// is kept small.
	badgerOpts = badgerOpts.
		WithMemTableSize(16 << 20).     // 16MB instead of 64MB
		WithValueLogFileSize(64 << 20). // 64MB instead of 1GB
		WithNumMemtables(2).            // 2 instead of 5
		WithNumLevelZeroTables(2).      // 2 instead of 5
		WithNumLevelZeroTablesStall(4). // 4 instead of 15
		WithValueThreshold(1024).       // Store values > 1KB in value log
		WithBlockCacheSize(32 << 20).   // 32MB block cache
		WithIndexCacheSize(16 << 20)    // 16MB index cache

	if opts.LowMemory {
		badgerOpts = badgerOpts.
			WithMemTableSize(8 << 20).
			WithBlockCacheSize(8 << 20).
			WithIndexCacheSize(4 << 20).
			WithNumCompactors(2)
	}

	if len(opts.EncryptionKey) > 0 {
		badgerOpts = badgerOpts.WithEncryptionKey(opts.EncryptionKey)
	}

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("kv: failed to open badger at %q: %w", opts.Dir, err)
	}

	s := &Store{
		db:   db,
		path: dir,
		log:  log,
	}
	s.readers = newReadTxnPool(s, opts.MaxReaders, opts.MaxIdleReaders)

	log.Debug("store opened",
		zap.String("path", dir),
		zap.Bool("in_memory", opts.InMemory),
		zap.Bool("encrypted", len(opts.EncryptionKey) > 0))
	return s, nil
}

// OpenInMemory is a convenience for tests.
func OpenInMemory() (*Store, error) {
	return Open(Options{InMemory: true})
}

// DB exposes the underlying badger handle.
func (s *Store) DB() *badger.DB {
	return s.db
}

// Path returns the on-disk directory, empty for in-memory stores.
func (s *Store) Path() string {
	return s.path
}

// Generation returns the number of committed writes so far.
func (s *Store) Generation() uint64 {
	return s.gen.Load()
}

// Readers returns the read transaction pool.
func (s *Store) Readers() *ReadTxnPool {
	return s.readers
}

// Update runs fn in a read-write transaction. Updates on one store run one
// at a time: each transaction begins after the previous one committed, so
// two updates touching the same keys cannot conflict. fn may still run more
// than once if a transaction opened on DB() conflicts with it, and must not
// have side effects outside txn. fn must not call Update on the same store.
func (s *Store) Update(fn func(txn *badger.Txn) error) error {
	if s.closed.Load() {
		return ErrClosed
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed.Load() {
		return ErrClosed
	}

	var err error
	for attempt := range maxConflictRetries {
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
		s.log.Debug("update conflict, retrying", zap.String("path", s.path), zap.Int("attempt", attempt+1))
		time.Sleep(conflictBackoff<<min(attempt, 6) + rand.N(conflictBackoff))
	}
	if err == nil {
		s.gen.Add(1)
	}
	return err
}

// View runs fn in a fresh read-only transaction.
func (s *Store) View(fn func(txn *badger.Txn) error) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return s.db.View(fn)
}

// Scan calls fn for every key with prefix, in key order. The value slice is
// borrowed from badger and only valid during the call.
func (s *Store) Scan(prefix []byte, fn func(key, value []byte) error) error {
	return s.View(func(txn *badger.Txn) error {
		return ScanTxn(txn, prefix, fn)
	})
}

// ScanTxn is Scan within an existing transaction.
func ScanTxn(txn *badger.Txn, prefix []byte, fn func(key, value []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		key := item.KeyCopy(nil)
		if err := item.Value(func(val []byte) error {
			return fn(key, val)
		}); err != nil {
			return err
		}
	}
	return nil
}

// Keys returns every key with prefix.
func (s *Store) Keys(prefix []byte) ([][]byte, error) {
	var keys [][]byte
	err := s.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	return keys, err
}

// deleteChunk bounds the number of deletes staged per transaction.
const deleteChunk = 1000

// DropPrefix deletes every key with prefix and returns how many were
// removed. Keys are deleted in chunks, so a failure part way through leaves
// the earlier chunks deleted.
func (s *Store) DropPrefix(prefix []byte) (int, error) {
	keys, err := s.Keys(prefix)
	if err != nil {
		return 0, err
	}
	removed := 0
	for len(keys) > 0 {
		n := min(deleteChunk, len(keys))
		chunk := keys[:n]
		err := s.Update(func(txn *badger.Txn) error {
			for _, k := range chunk {
				if err := txn.Delete(k); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return removed, err
		}
		removed += n
		keys = keys[n:]
	}
	return removed, nil
}

// Close drains the read pool and closes badger. Safe to call twice.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	// Let an in-flight update commit before badger goes away.
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.readers.close()
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("kv: close %q: %w", s.path, err)
	}
	s.log.Debug("store closed", zap.String("path", s.path))
	return nil
}

// IsClosed reports whether Close has been called.
func (s *Store) IsClosed() bool {
	return s.closed.Load()
}
