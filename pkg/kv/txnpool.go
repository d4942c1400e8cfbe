package kv

import (
	"context"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
)

// Pool sizing defaults.
const (
	DefaultMaxReaders     = 126
	DefaultMaxIdleReaders = 16
)

// ReadTxnPool hands out read-only badger transactions and bounds how many
// are open at once. Released transactions are kept for reuse only while no
// write has committed since they were opened, so a reused transaction never
// serves a snapshot older than the latest commit it could have seen.
//
// Every Acquire must be paired with exactly one ReadTxn.Release.
type ReadTxnPool struct {
	store *Store
	slots chan struct{}
	idle  chan pooledTxn

	closed atomic.Bool

	hits   atomic.Uint64
	misses atomic.Uint64
	stale  atomic.Uint64
}

type pooledTxn struct {
	txn *badger.Txn
	gen uint64
}

// PoolStats is a snapshot of pool counters.
type PoolStats struct {
	Hits   uint64
	Misses uint64
	Stale  uint64
	InUse  int
	Idle   int
	Limit  int
}

func newReadTxnPool(s *Store, maxReaders, maxIdle int) *ReadTxnPool {
	if maxReaders <= 0 {
		maxReaders = DefaultMaxReaders
	}
	switch {
	case maxIdle == 0:
		maxIdle = DefaultMaxIdleReaders
	case maxIdle < 0:
		maxIdle = 0
	}
	if maxIdle > maxReaders {
		maxIdle = maxReaders
	}
	return &ReadTxnPool{
		store: s,
		slots: make(chan struct{}, maxReaders),
		idle:  make(chan pooledTxn, maxIdle),
	}
}

// ReadTxn is a pooled read transaction. It must not be shared between
// goroutines while held.
type ReadTxn struct {
	txn      *badger.Txn
	gen      uint64
	pool     *ReadTxnPool
	released bool
}

// Txn returns the underlying badger transaction.
func (r *ReadTxn) Txn() *badger.Txn {
	return r.txn
}

// Generation returns the store generation the snapshot was taken at.
func (r *ReadTxn) Generation() uint64 {
	return r.gen
}

// Release returns the transaction to its pool. Calling it twice is a no-op.
func (r *ReadTxn) Release() {
	if r == nil || r.released {
		return
	}
	r.released = true
	r.pool.put(pooledTxn{txn: r.txn, gen: r.gen})
	r.txn = nil
}

// Get acquires a read transaction, blocking while the reader limit is reached.
func (p *ReadTxnPool) Get() (*ReadTxn, error) {
	return p.Acquire(context.Background())
}

// Acquire is Get with cancellation.
func (p *ReadTxnPool) Acquire(ctx context.Context) (*ReadTxn, error) {
	if p.closed.Load() {
		return nil, ErrClosed
	}
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if p.closed.Load() {
		<-p.slots
		return nil, ErrClosed
	}

	cur := p.store.Generation()
	for {
		select {
		case it := <-p.idle:
			if it.gen == cur {
				p.hits.Add(1)
				return &ReadTxn{txn: it.txn, gen: it.gen, pool: p}, nil
			}
			it.txn.Discard()
			p.stale.Add(1)
			continue
		default:
		}
		break
	}

	p.misses.Add(1)
	// Read the generation before opening so a concurrent commit marks this
	// snapshot stale rather than current.
	return &ReadTxn{txn: p.store.db.NewTransaction(false), gen: cur, pool: p}, nil
}

func (p *ReadTxnPool) put(it pooledTxn) {
	defer func() { <-p.slots }()

	if p.closed.Load() || it.gen != p.store.Generation() {
		it.txn.Discard()
		return
	}
	select {
	case p.idle <- it:
	default:
		it.txn.Discard()
	}
}

// Stats returns current counters.
func (p *ReadTxnPool) Stats() PoolStats {
	return PoolStats{
		Hits:   p.hits.Load(),
		Misses: p.misses.Load(),
		Stale:  p.stale.Load(),
		InUse:  len(p.slots),
		Idle:   len(p.idle),
		Limit:  cap(p.slots),
	}
}

// close discards idle transactions. Outstanding ones are discarded on
// release.
func (p *ReadTxnPool) close() {
	p.closed.Store(true)
	for {
		select {
		case it := <-p.idle:
			it.txn.Discard()
		default:
			return
		}
	}
}
