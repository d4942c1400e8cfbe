// Package models defines the record types stored by tierdb: the closed set
// of graph node variants, edges between them, embeddings, and the identifier
// types that key all three.
//
// Nodes follow a hybrid schema. Each variant has a handful of typed fields
// that structural indexes consult (see Node.IndexedFields), plus one
// free-form Metadata map that is stored but never indexed.
package models

import (
	"github.com/google/uuid"
)

// NodeID identifies a node. Ordering is byte-wise on the wrapped string.
type NodeID string

// EdgeID identifies an edge.
type EdgeID string

// EmbeddingID identifies an embedding.
type EmbeddingID string

func (id NodeID) String() string      { return string(id) }
func (id EdgeID) String() string      { return string(id) }
func (id EmbeddingID) String() string { return string(id) }

// NewNodeID returns a random node ID with the given prefix, e.g. "msg_<uuid>".
func NewNodeID(prefix string) NodeID {
	return NodeID(withPrefix(prefix))
}

// NewEdgeID returns a random edge ID.
func NewEdgeID(prefix string) EdgeID {
	return EdgeID(withPrefix(prefix))
}

// NewEmbeddingID returns a random embedding ID.
func NewEmbeddingID(prefix string) EmbeddingID {
	return EmbeddingID(withPrefix(prefix))
}

func withPrefix(prefix string) string {
	if prefix == "" {
		return uuid.NewString()
	}
	return prefix + "_" + uuid.NewString()
}
