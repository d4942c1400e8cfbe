package index

import (
	"iter"

	"github.com/orneryd/tierdb/pkg/models"
)

// Direction selects which adjacency set a traversal follows.
type Direction int

const (
	Outgoing Direction = iota
	Incoming
)

// Opposite returns the reverse direction.
func (d Direction) Opposite() Direction {
	if d == Outgoing {
		return Incoming
	}
	return Outgoing
}

// EdgeResolver loads edge records so a traversal can find the node at the
// other end. It returns nil for an edge that no longer exists.
type EdgeResolver interface {
	ResolveEdge(id models.EdgeID) (*models.Edge, error)
}

// EdgeResolverFunc adapts a function to EdgeResolver.
type EdgeResolverFunc func(id models.EdgeID) (*models.Edge, error)

// ResolveEdge implements EdgeResolver.
func (f EdgeResolverFunc) ResolveEdge(id models.EdgeID) (*models.Edge, error) {
	return f(id)
}

// Step is one node reached by a traversal. Via is empty for the start node.
type Step struct {
	Node  models.NodeID
	Depth int
	Via   models.EdgeID
}

// Traversal walks the graph index from a start node. Each node is visited
// at most once and neighbors are expanded in edge ID order.
type Traversal struct {
	Graph     *GraphIndex
	Resolver  EdgeResolver
	Direction Direction

	// MaxDepth stops expansion past this depth. Zero means unlimited.
	MaxDepth int
}

func (t Traversal) expand(depth int) bool {
	return t.MaxDepth == 0 || depth < t.MaxDepth
}

// neighbors resolves the edges of node to their far endpoints, skipping
// edges that no longer exist.
func (t Traversal) neighbors(node models.NodeID, depth int) ([]Step, error) {
	var (
		g   *Guard
		err error
	)
	if t.Direction == Outgoing {
		g, err = t.Graph.GetOutgoing(node)
	} else {
		g, err = t.Graph.GetIncoming(node)
	}
	if err != nil {
		return nil, err
	}
	edges := g.EdgeIDs()
	g.Close()

	out := make([]Step, 0, len(edges))
	for _, id := range edges {
		e, err := t.Resolver.ResolveEdge(id)
		if err != nil {
			return nil, err
		}
		if e == nil {
			continue
		}
		next := e.ToNode
		if t.Direction == Incoming {
			next = e.FromNode
		}
		out = append(out, Step{Node: next, Depth: depth + 1, Via: id})
	}
	return out, nil
}

// BFS yields nodes in breadth-first order, start first.
func (t Traversal) BFS(start models.NodeID) iter.Seq2[Step, error] {
	return func(yield func(Step, error) bool) {
		seen := map[models.NodeID]struct{}{start: {}}
		queue := []Step{{Node: start}}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			if !yield(cur, nil) {
				return
			}
			if !t.expand(cur.Depth) {
				continue
			}
			next, err := t.neighbors(cur.Node, cur.Depth)
			if err != nil {
				yield(Step{}, err)
				return
			}
			for _, s := range next {
				if _, ok := seen[s.Node]; ok {
					continue
				}
				seen[s.Node] = struct{}{}
				queue = append(queue, s)
			}
		}
	}
}

// DFS yields nodes in depth-first pre-order, start first.
func (t Traversal) DFS(start models.NodeID) iter.Seq2[Step, error] {
	return func(yield func(Step, error) bool) {
		seen := make(map[models.NodeID]struct{})
		stack := []Step{{Node: start}}
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if _, ok := seen[cur.Node]; ok {
				continue
			}
			seen[cur.Node] = struct{}{}
			if !yield(cur, nil) {
				return
			}
			if !t.expand(cur.Depth) {
				continue
			}
			next, err := t.neighbors(cur.Node, cur.Depth)
			if err != nil {
				yield(Step{}, err)
				return
			}
			for i := len(next) - 1; i >= 0; i-- {
				if _, ok := seen[next[i].Node]; !ok {
					stack = append(stack, next[i])
				}
			}
		}
	}
}

// PostOrder yields nodes in depth-first post-order: every node after all
// nodes first discovered through it. The start node comes last.
func (t Traversal) PostOrder(start models.NodeID) iter.Seq2[Step, error] {
	return func(yield func(Step, error) bool) {
		seen := map[models.NodeID]struct{}{start: {}}
		var walk func(cur Step) bool
		walk = func(cur Step) bool {
			if t.expand(cur.Depth) {
				next, err := t.neighbors(cur.Node, cur.Depth)
				if err != nil {
					yield(Step{}, err)
					return false
				}
				for _, s := range next {
					if _, ok := seen[s.Node]; ok {
						continue
					}
					seen[s.Node] = struct{}{}
					if !walk(s) {
						return false
					}
				}
			}
			return yield(cur, nil)
		}
		walk(Step{Node: start})
	}
}

// Filter passes through the steps keep accepts. Errors always pass.
func Filter(seq iter.Seq2[Step, error], keep func(Step) bool) iter.Seq2[Step, error] {
	return func(yield func(Step, error) bool) {
		for s, err := range seq {
			if err != nil {
				yield(s, err)
				return
			}
			if keep(s) && !yield(s, nil) {
				return
			}
		}
	}
}

// Collect drains seq into a slice, stopping at the first error.
func Collect(seq iter.Seq2[Step, error]) ([]Step, error) {
	var out []Step
	for s, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, s)
	}
	return out, nil
}
