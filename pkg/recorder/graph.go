package recorder

import (
	"fmt"

	"github.com/matzehuels/depscout/pkg/component"
	"github.com/matzehuels/depscout/pkg/depgraph"
)

// Component is a resolved node of a [Graph].
type Component struct {
	component.Detected

	Explicit    bool
	Development bool

	// Observed is false for components that were only referenced as a parent
	// and never registered themselves. Their provenance is unknown.
	Observed bool
}

// Graph is a read-only view over a dependency graph with a fixed root set.
type Graph struct {
	g     *depgraph.Graph
	roots []component.Identity
}

func newGraph(g *depgraph.Graph) *Graph {
	return &Graph{g: g, roots: identities(g, g.Sources())}
}

// Components returns every component sorted by identity.
func (v *Graph) Components() []Component {
	out := make([]Component, 0, v.g.Len())
	for _, i := range v.g.Indices() {
		out = append(out, toComponent(v.g.Node(i)))
	}
	return out
}

// Node returns the component for id.
func (v *Graph) Node(id component.Identity) (Component, bool) {
	n, ok := v.g.NodeByID(id)
	if !ok {
		return Component{}, false
	}
	return toComponent(n), true
}

// Roots returns the components without parents, sorted.
func (v *Graph) Roots() []component.Identity { return v.roots }

// Parents returns the components that depend on id, sorted.
func (v *Graph) Parents(id component.Identity) []component.Identity {
	i, ok := v.g.Lookup(id)
	if !ok {
		return nil
	}
	return identities(v.g, v.g.Parents(i))
}

// Children returns the components id depends on, sorted.
func (v *Graph) Children(id component.Identity) []component.Identity {
	i, ok := v.g.Lookup(id)
	if !ok {
		return nil
	}
	return identities(v.g, v.g.Children(i))
}

// Cycles returns dependency cycles, see [depgraph.Graph.Cycles].
func (v *Graph) Cycles() [][]component.Identity { return v.g.Cycles() }

// Len returns the number of components.
func (v *Graph) Len() int { return v.g.Len() }

// EdgeCount returns the number of distinct dependency edges.
func (v *Graph) EdgeCount() int { return v.g.EdgeCount() }

// Equal reports whether both views describe the same graph.
func (v *Graph) Equal(o *Graph) bool {
	if v == nil || o == nil {
		return v == o
	}
	return v.g.Equal(o.g)
}

func toComponent(n *depgraph.Node) Component {
	return Component{
		Detected:    n.Detected(),
		Explicit:    n.Explicit,
		Development: n.Development(),
		Observed:    n.Observed(),
	}
}

func identities(g *depgraph.Graph, idx []int) []component.Identity {
	if len(idx) == 0 {
		return nil
	}
	out := make([]component.Identity, len(idx))
	for k, i := range idx {
		out[k] = g.Node(i).Identity
	}
	return out
}

// Edge is a dependency from Parent on Child.
type Edge struct {
	Parent component.Identity
	Child  component.Identity
}

// Edges returns every edge, ordered by parent and then child.
func (v *Graph) Edges() []Edge {
	out := make([]Edge, 0, v.g.EdgeCount())
	for _, i := range v.g.Indices() {
		parent := v.g.Node(i).Identity
		for _, child := range identities(v.g, v.g.Children(i)) {
			out = append(out, Edge{Parent: parent, Child: child})
		}
	}
	return out
}

// Assemble rebuilds a graph from resolved components and edges, as read
// back from an export. A component marked development is restored as seen
// only in development; the view it yields matches the exported one.
// Edge endpoints missing from components become placeholders.
func Assemble(components []Component, edges []Edge) (*Graph, error) {
	g := depgraph.New()
	for _, c := range components {
		if err := c.Identity.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidComponent, err)
		}
		_, n := g.Ensure(c.Identity)
		if c.Observed {
			n.Observe(c.Explicit, c.Development)
		}
		for _, loc := range c.Locations {
			n.AddLocation(loc)
		}
		n.AddDetector(c.DetectorID)
		n.SetFileHash(c.FileHash)
	}
	for _, e := range edges {
		if err := e.Parent.Validate(); err != nil {
			return nil, fmt.Errorf("%w: parent: %v", ErrInvalidComponent, err)
		}
		if err := e.Child.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidComponent, err)
		}
		p, _ := g.Ensure(e.Parent)
		c, _ := g.Ensure(e.Child)
		if _, err := g.AddEdge(c, p); err != nil {
			return nil, err
		}
	}
	return newGraph(g), nil
}
