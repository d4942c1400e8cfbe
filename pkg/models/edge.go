package models

// Edge is a directed, typed relationship between two nodes.
type Edge struct {
	ID        EdgeID   `json:"id"`
	FromNode  NodeID   `json:"from_node"`
	ToNode    NodeID   `json:"to_node"`
	EdgeType  string   `json:"edge_type"`
	CreatedAt int64    `json:"created_at"`
	Metadata  Metadata `json:"metadata,omitempty"`
}

// Embedding is a vector produced by a model. The storage layer does not
// check dimensions; callers keep them consistent per model.
type Embedding struct {
	ID     EmbeddingID `json:"id"`
	Vector []float32   `json:"vector"`
	Model  string      `json:"model"`
}

// Metadata is the unindexed sidecar carried by nodes and edges.
type Metadata map[string]any
