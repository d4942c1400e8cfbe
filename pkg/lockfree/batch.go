package lockfree

// VectorOp is one vector batch operation. Vector nil means remove.
type VectorOp struct {
	ID     string
	Vector []float32
}

// AddVector returns an add operation.
func AddVector(id string, vec []float32) VectorOp { return VectorOp{ID: id, Vector: vec} }

// RemoveVector returns a remove operation.
func RemoveVector(id string) VectorOp { return VectorOp{ID: id} }

// GraphOpKind selects what a GraphOp does.
type GraphOpKind uint8

const (
	OpAddNode GraphOpKind = iota + 1
	OpRemoveNode
	OpAddEdge
	OpRemoveEdge
)

// GraphOp is one graph batch operation. Node operations use From as the
// node ID. Weight applies to OpAddEdge; zero means 1.
type GraphOp struct {
	Kind     GraphOpKind
	From     string
	To       string
	Weight   float32
	Metadata string
}

// VectorBatchProcessor applies vector operations to a HotVector in order.
type VectorBatchProcessor struct {
	index *HotVector
}

// NewVectorBatchProcessor wraps index.
func NewVectorBatchProcessor(index *HotVector) *VectorBatchProcessor {
	return &VectorBatchProcessor{index: index}
}

// Process applies ops in order and returns how many succeeded. Removing an
// absent ID succeeds.
func (p *VectorBatchProcessor) Process(ops []VectorOp) int {
	ok := 0
	for _, op := range ops {
		if op.Vector == nil {
			p.index.Remove(op.ID)
			ok++
			continue
		}
		if p.index.Add(op.ID, op.Vector) == nil {
			ok++
		}
	}
	return ok
}

// AddAll adds every vector in vectors.
func (p *VectorBatchProcessor) AddAll(vectors map[string][]float32) int {
	ok := 0
	for id, vec := range vectors {
		if p.index.Add(id, vec) == nil {
			ok++
		}
	}
	return ok
}

// RemoveAll removes ids and returns how many were present.
func (p *VectorBatchProcessor) RemoveAll(ids []string) int {
	n := 0
	for _, id := range ids {
		if p.index.Remove(id) {
			n++
		}
	}
	return n
}

// GraphBatchProcessor applies graph operations to a HotGraph in order.
type GraphBatchProcessor struct {
	graph *HotGraph
}

// NewGraphBatchProcessor wraps graph.
func NewGraphBatchProcessor(graph *HotGraph) *GraphBatchProcessor {
	return &GraphBatchProcessor{graph: graph}
}

// Process applies ops in order and returns how many succeeded. Removals of
// absent nodes or edges succeed; unknown kinds fail.
func (p *GraphBatchProcessor) Process(ops []GraphOp) int {
	ok := 0
	for _, op := range ops {
		var err error
		switch op.Kind {
		case OpAddNode:
			err = p.graph.AddNode(op.From, op.Metadata)
		case OpRemoveNode:
			p.graph.RemoveNode(op.From)
		case OpAddEdge:
			w := op.Weight
			if w == 0 {
				w = 1
			}
			err = p.graph.AddWeightedEdge(op.From, op.To, w)
		case OpRemoveEdge:
			p.graph.RemoveEdge(op.From, op.To)
		default:
			continue
		}
		if err == nil {
			ok++
		}
	}
	return ok
}

// CombinedBatchProcessor runs a vector batch and then a graph batch.
type CombinedBatchProcessor struct {
	vectors *VectorBatchProcessor
	graph   *GraphBatchProcessor
}

// NewCombinedBatchProcessor wraps both indexes.
func NewCombinedBatchProcessor(vectors *HotVector, graph *HotGraph) *CombinedBatchProcessor {
	return &CombinedBatchProcessor{
		vectors: NewVectorBatchProcessor(vectors),
		graph:   NewGraphBatchProcessor(graph),
	}
}

// Process returns the success counts of each batch.
func (p *CombinedBatchProcessor) Process(vectorOps []VectorOp, graphOps []GraphOp) (vectors, graph int) {
	return p.vectors.Process(vectorOps), p.graph.Process(graphOps)
}
