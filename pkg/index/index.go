// Package index provides the secondary indexes of a tierdb storage manager.
//
// Three index kinds live side by side in the manager's badger store:
//
//   - Structural: "prop:{property}:{value}" → sorted set of node IDs, for
//     property filters such as every message of a chat.
//   - Graph: "out:{node}" and "in:{node}" → sorted sets of edge IDs, kept as
//     a bidirectional pair for neighbor lookups in both directions.
//   - Vector: an in-memory similarity index behind the VectorIndex
//     interface, warmed from stored embeddings.
//
// Set values use the zerocopy ID set archive. Reads return a Guard that
// holds a pooled read transaction and a pooled copy of the archived set, so
// iteration does not deserialize or allocate per member.
//
// Example:
//
//	structural := index.NewStructuralIndex(store)
//	_ = structural.Add("chat_id", "chat_123", "msg_1")
//
//	g, err := structural.Get("chat_id", "chat_123")
//	if err != nil {
//		return err
//	}
//	defer g.Close()
//	for id := range g.All() {
//		fmt.Println(id) // valid until g.Close
//	}
//
// Invariants:
//
//   - Sets are deduplicated; adding a member twice is a no-op.
//   - Removing the last member deletes the key; empty sets are never stored.
//   - An edge is in both out:{from} and in:{to}, or in neither.
package index

import (
	"errors"

	"github.com/orneryd/tierdb/pkg/pool"
)

// Key prefixes. These are part of the on-disk format.
const (
	StructuralPrefix = "prop:"
	OutgoingPrefix   = "out:"
	IncomingPrefix   = "in:"
)

// ErrEmptyID is returned when a member ID is empty.
var ErrEmptyID = errors.New("index: empty id")

// PropertyKey returns the structural key for (property, value).
func PropertyKey(property, value string) []byte {
	kb := pool.GetKeyBuilder()
	defer pool.PutKeyBuilder(kb)
	return kb.WriteString(StructuralPrefix).WriteString(property).WriteByte(':').WriteString(value).Bytes()
}

// propertyPrefix returns the scan prefix for every value of property.
func propertyPrefix(property string) []byte {
	kb := pool.GetKeyBuilder()
	defer pool.PutKeyBuilder(kb)
	return kb.WriteString(StructuralPrefix).WriteString(property).WriteByte(':').Bytes()
}

// OutgoingKey returns the graph key holding edges leaving node.
func OutgoingKey(node string) []byte {
	kb := pool.GetKeyBuilder()
	defer pool.PutKeyBuilder(kb)
	return kb.WriteString(OutgoingPrefix).WriteString(node).Bytes()
}

// IncomingKey returns the graph key holding edges entering node.
func IncomingKey(node string) []byte {
	kb := pool.GetKeyBuilder()
	defer pool.PutKeyBuilder(kb)
	return kb.WriteString(IncomingPrefix).WriteString(node).Bytes()
}
