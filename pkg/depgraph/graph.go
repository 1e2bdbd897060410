package depgraph

import (
	"errors"
	"maps"
	"slices"

	"github.com/matzehuels/depscout/pkg/component"
)

// ErrUnknownNode is returned by [Graph.AddEdge] when an index does not refer
// to a node of the graph.
var ErrUnknownNode = errors.New("unknown node index")

// Graph is an arena of nodes keyed by identity. Edges point from a child to
// its parents and are stored as index sets, so cycles are representable and
// never cause recursion through node pointers.
//
// The zero value is not usable; call [New]. Graph is not safe for concurrent
// use.
type Graph struct {
	nodes    []*Node
	index    map[component.Identity]int
	parents  []map[int]struct{}
	children []map[int]struct{}
	edges    int
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{index: make(map[component.Identity]int)}
}

// Ensure returns the index of the node for id, creating an unobserved node
// if it does not exist yet.
func (g *Graph) Ensure(id component.Identity) (int, *Node) {
	if i, ok := g.index[id]; ok {
		return i, g.nodes[i]
	}
	n := newNode(id)
	i := len(g.nodes)
	g.nodes = append(g.nodes, n)
	g.parents = append(g.parents, nil)
	g.children = append(g.children, nil)
	g.index[id] = i
	return i, n
}

// Lookup returns the index of id.
func (g *Graph) Lookup(id component.Identity) (int, bool) {
	i, ok := g.index[id]
	return i, ok
}

// Node returns the node at index i, or nil when out of range.
func (g *Graph) Node(i int) *Node {
	if i < 0 || i >= len(g.nodes) {
		return nil
	}
	return g.nodes[i]
}

// NodeByID returns the node for id.
func (g *Graph) NodeByID(id component.Identity) (*Node, bool) {
	i, ok := g.index[id]
	if !ok {
		return nil, false
	}
	return g.nodes[i], true
}

// AddEdge records that parent depends on child. Self edges are kept. It
// reports whether the edge is new.
func (g *Graph) AddEdge(child, parent int) (bool, error) {
	if g.Node(child) == nil || g.Node(parent) == nil {
		return false, ErrUnknownNode
	}
	if _, ok := g.parents[child][parent]; ok {
		return false, nil
	}
	if g.parents[child] == nil {
		g.parents[child] = make(map[int]struct{})
	}
	if g.children[parent] == nil {
		g.children[parent] = make(map[int]struct{})
	}
	g.parents[child][parent] = struct{}{}
	g.children[parent][child] = struct{}{}
	g.edges++
	return true, nil
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// EdgeCount returns the number of distinct parent edges.
func (g *Graph) EdgeCount() int { return g.edges }

// Indices returns every node index ordered by identity.
func (g *Graph) Indices() []int {
	out := make([]int, len(g.nodes))
	for i := range out {
		out[i] = i
	}
	g.sortIndices(out)
	return out
}

// Parents returns the parent indices of i ordered by identity.
func (g *Graph) Parents(i int) []int {
	if g.Node(i) == nil {
		return nil
	}
	return g.sorted(g.parents[i])
}

// Children returns the child indices of i ordered by identity.
func (g *Graph) Children(i int) []int {
	if g.Node(i) == nil {
		return nil
	}
	return g.sorted(g.children[i])
}

// Sources returns nodes without parents ordered by identity.
func (g *Graph) Sources() []int {
	var out []int
	for i := range g.nodes {
		if len(g.parents[i]) == 0 {
			out = append(out, i)
		}
	}
	g.sortIndices(out)
	return out
}

// Merge absorbs every node and edge of o into g.
func (g *Graph) Merge(o *Graph) {
	remap := make([]int, len(o.nodes))
	for i, n := range o.nodes {
		j, dst := g.Ensure(n.Identity)
		dst.Absorb(n)
		remap[i] = j
	}
	for child, ps := range o.parents {
		for p := range ps {
			_, _ = g.AddEdge(remap[child], remap[p])
		}
	}
}

// Equal reports whether g and o hold the same nodes with the same
// observations and the same edges, regardless of insertion order.
func (g *Graph) Equal(o *Graph) bool {
	if g.Len() != o.Len() || g.edges != o.edges {
		return false
	}
	for i, n := range g.nodes {
		j, ok := o.index[n.Identity]
		if !ok || !n.equal(o.nodes[j]) {
			return false
		}
		if len(g.parents[i]) != len(o.parents[j]) {
			return false
		}
		for p := range g.parents[i] {
			q, ok := o.index[g.nodes[p].Identity]
			if !ok {
				return false
			}
			if _, ok := o.parents[j][q]; !ok {
				return false
			}
		}
	}
	return true
}

func (g *Graph) sorted(set map[int]struct{}) []int {
	if len(set) == 0 {
		return nil
	}
	out := slices.Collect(maps.Keys(set))
	g.sortIndices(out)
	return out
}

func (g *Graph) sortIndices(idx []int) {
	slices.SortFunc(idx, func(a, b int) int {
		return component.Compare(g.nodes[a].Identity, g.nodes[b].Identity)
	})
}
