package index

import (
	"iter"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/orneryd/tierdb/pkg/kv"
	"github.com/orneryd/tierdb/pkg/models"
	"github.com/orneryd/tierdb/pkg/pool"
	"github.com/orneryd/tierdb/pkg/zerocopy"
)

// Guard is a read handle over one archived ID set. It keeps its read
// transaction open until Close, so follow-up reads through Txn see the same
// snapshot the set was read from.
//
// Strings yielded by At and All alias the guard's buffer and are invalid
// after Close; use ToOwned to keep them. A Guard belongs to one goroutine.
type Guard struct {
	view  zerocopy.IDSetView
	buf   []byte
	found bool

	// Exactly one of pooled and local is set while the guard is open.
	pooled *kv.ReadTxn
	local  *badger.Txn

	closed bool
}

// reader opens guards against a store, through its read pool unless local
// transactions were requested.
type reader struct {
	store   *kv.Store
	usePool bool
}

func (r reader) begin() (*kv.ReadTxn, *badger.Txn, error) {
	if r.usePool {
		rt, err := r.store.Readers().Get()
		if err != nil {
			return nil, nil, err
		}
		return rt, nil, nil
	}
	if r.store.IsClosed() {
		return nil, nil, kv.ErrClosed
	}
	return nil, r.store.DB().NewTransaction(false), nil
}

// open reads key into a new guard. A missing key yields an empty guard.
func (r reader) open(key []byte) (*Guard, error) {
	pooled, local, err := r.begin()
	if err != nil {
		return nil, err
	}
	g := &Guard{pooled: pooled, local: local}

	value, found, err := zerocopy.CopyValue(g.Txn(), key, pool.GetByteBuffer)
	if err != nil {
		g.Close()
		return nil, err
	}
	if !found {
		return g, nil
	}
	view, err := zerocopy.Access[zerocopy.IDSetView](value, zerocopy.IDSet{})
	if err != nil {
		pool.PutByteBuffer(value)
		g.Close()
		return nil, err
	}
	g.view, g.buf, g.found = view, value, true
	return g, nil
}

// count reads only the set length.
func (r reader) count(key []byte) (int, error) {
	n := 0
	err := r.view(func(txn *badger.Txn) error {
		_, err := zerocopy.ViewArchive(txn, key, zerocopy.IDSet{}, func(v zerocopy.IDSetView) error {
			n = v.Len()
			return nil
		})
		return err
	})
	return n, err
}

// contains checks membership without copying the set.
func (r reader) contains(key []byte, id string) (bool, error) {
	ok := false
	err := r.view(func(txn *badger.Txn) error {
		_, err := zerocopy.ViewArchive(txn, key, zerocopy.IDSet{}, func(v zerocopy.IDSetView) error {
			ok = v.Contains(id)
			return nil
		})
		return err
	})
	return ok, err
}

func (r reader) view(fn func(txn *badger.Txn) error) error {
	pooled, local, err := r.begin()
	if err != nil {
		return err
	}
	if pooled != nil {
		defer pooled.Release()
		return fn(pooled.Txn())
	}
	defer local.Discard()
	return fn(local)
}

// Found reports whether the key existed.
func (g *Guard) Found() bool {
	return g.found && !g.closed
}

// Len returns the member count in O(1).
func (g *Guard) Len() int {
	if g.closed {
		return 0
	}
	return g.view.Len()
}

// IsEmpty reports whether the set has no members.
func (g *Guard) IsEmpty() bool {
	return g.Len() == 0
}

// At returns member i.
func (g *Guard) At(i int) string {
	return g.view.At(i)
}

// All iterates members in ascending order without allocating.
func (g *Guard) All() iter.Seq[string] {
	if g.closed {
		return func(func(string) bool) {}
	}
	return g.view.All()
}

// Contains reports membership by binary search.
func (g *Guard) Contains(id string) bool {
	if g.closed {
		return false
	}
	return g.view.Contains(id)
}

// ToOwned copies the members out of the guard.
func (g *Guard) ToOwned() []string {
	if g.closed {
		return nil
	}
	return g.view.ToOwned()
}

// NodeIDs copies the members out as node IDs.
func (g *Guard) NodeIDs() []models.NodeID {
	out := make([]models.NodeID, 0, g.Len())
	for id := range g.All() {
		out = append(out, models.NodeID(strings.Clone(id)))
	}
	return out
}

// EdgeIDs copies the members out as edge IDs.
func (g *Guard) EdgeIDs() []models.EdgeID {
	out := make([]models.EdgeID, 0, g.Len())
	for id := range g.All() {
		out = append(out, models.EdgeID(strings.Clone(id)))
	}
	return out
}

// Txn returns the transaction the guard holds, for snapshot-consistent
// follow-up reads. It is nil after Close.
func (g *Guard) Txn() *badger.Txn {
	switch {
	case g.pooled != nil:
		return g.pooled.Txn()
	case g.local != nil:
		return g.local
	}
	return nil
}

// Close releases the transaction and buffer. Pool-owned transactions go back
// to the pool; locally opened ones are discarded. Safe to call twice.
func (g *Guard) Close() {
	if g == nil || g.closed {
		return
	}
	g.closed = true
	g.view = zerocopy.IDSetView{}
	if g.buf != nil {
		pool.PutByteBuffer(g.buf)
		g.buf = nil
	}
	if g.pooled != nil {
		g.pooled.Release()
		g.pooled = nil
	}
	if g.local != nil {
		g.local.Discard()
		g.local = nil
	}
}
