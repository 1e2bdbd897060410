package depgraph

import (
	"slices"

	"github.com/matzehuels/depscout/pkg/component"
)

// Cycles returns the strongly connected components that form a cycle: those
// with more than one member, and single nodes with a self edge. Members are
// sorted by identity and the cycles by their first member.
func (g *Graph) Cycles() [][]component.Identity {
	t := tarjan{
		g:       g,
		index:   make([]int, len(g.nodes)),
		low:     make([]int, len(g.nodes)),
		onStack: make([]bool, len(g.nodes)),
	}
	for i := range t.index {
		t.index[i] = -1
	}
	for _, i := range g.Indices() {
		if t.index[i] < 0 {
			t.visit(i)
		}
	}

	var out [][]component.Identity
	for _, scc := range t.sccs {
		if len(scc) == 1 {
			if _, self := g.parents[scc[0]][scc[0]]; !self {
				continue
			}
		}
		ids := make([]component.Identity, len(scc))
		for k, i := range scc {
			ids[k] = g.nodes[i].Identity
		}
		slices.SortFunc(ids, component.Compare)
		out = append(out, ids)
	}
	slices.SortFunc(out, func(a, b []component.Identity) int {
		return component.Compare(a[0], b[0])
	})
	return out
}

type tarjan struct {
	g       *Graph
	counter int
	index   []int
	low     []int
	onStack []bool
	stack   []int
	sccs    [][]int
}

func (t *tarjan) visit(v int) {
	t.index[v] = t.counter
	t.low[v] = t.counter
	t.counter++
	t.stack = append(t.stack, v)
	t.onStack[v] = true

	for w := range t.g.children[v] {
		switch {
		case t.index[w] < 0:
			t.visit(w)
			t.low[v] = min(t.low[v], t.low[w])
		case t.onStack[w]:
			t.low[v] = min(t.low[v], t.index[w])
		}
	}

	if t.low[v] != t.index[v] {
		return
	}
	var scc []int
	for {
		w := t.stack[len(t.stack)-1]
		t.stack = t.stack[:len(t.stack)-1]
		t.onStack[w] = false
		scc = append(scc, w)
		if w == v {
			break
		}
	}
	t.sccs = append(t.sccs, scc)
}
