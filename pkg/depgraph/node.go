package depgraph

import (
	"maps"
	"slices"

	"github.com/matzehuels/depscout/pkg/component"
)

// Node is a vertex of a [Graph]. A node belongs to exactly one graph and is
// only mutated through the observation methods below, all of which are
// order-independent.
type Node struct {
	Identity component.Identity

	// Explicit is true when any observation declared the component a direct
	// dependency.
	Explicit bool

	// DevelopmentSeen and ProductionSeen record whether at least one
	// observation classified the component that way. A node with neither set
	// was only referenced as a parent and never registered itself.
	DevelopmentSeen bool
	ProductionSeen  bool

	// FileHash is the lexically smallest non-empty hash observed.
	FileHash string

	detectors map[string]struct{}
	locations map[string]struct{}
}

func newNode(id component.Identity) *Node {
	return &Node{Identity: id}
}

// Development reports the merged classification: development only when some
// observation said development and none said production.
func (n *Node) Development() bool {
	return n.DevelopmentSeen && !n.ProductionSeen
}

// Observed reports whether the node was registered at least once, as opposed
// to existing only as a placeholder parent.
func (n *Node) Observed() bool {
	return n.DevelopmentSeen || n.ProductionSeen
}

// Observe applies one registration.
func (n *Node) Observe(explicit, development bool) {
	n.Explicit = n.Explicit || explicit
	if development {
		n.DevelopmentSeen = true
	} else {
		n.ProductionSeen = true
	}
}

// AddLocation records a file the component was seen in.
func (n *Node) AddLocation(loc string) {
	if loc == "" {
		return
	}
	if n.locations == nil {
		n.locations = make(map[string]struct{})
	}
	n.locations[loc] = struct{}{}
}

// AddDetector records a detector that reported the component.
func (n *Node) AddDetector(id string) {
	if id == "" {
		return
	}
	if n.detectors == nil {
		n.detectors = make(map[string]struct{})
	}
	n.detectors[id] = struct{}{}
}

// SetFileHash keeps the smallest non-empty hash so that the outcome does not
// depend on the order hashes arrive in.
func (n *Node) SetFileHash(h string) {
	if h != "" && (n.FileHash == "" || h < n.FileHash) {
		n.FileHash = h
	}
}

// Absorb merges every observation carried by o into n. Identities are not
// compared; the caller pairs nodes.
func (n *Node) Absorb(o *Node) {
	n.Explicit = n.Explicit || o.Explicit
	n.DevelopmentSeen = n.DevelopmentSeen || o.DevelopmentSeen
	n.ProductionSeen = n.ProductionSeen || o.ProductionSeen
	n.SetFileHash(o.FileHash)
	for loc := range o.locations {
		n.AddLocation(loc)
	}
	for d := range o.detectors {
		n.AddDetector(d)
	}
}

// Locations returns the sorted file locations.
func (n *Node) Locations() []string {
	return slices.Sorted(maps.Keys(n.locations))
}

// Detectors returns the sorted ids of reporting detectors.
func (n *Node) Detectors() []string {
	return slices.Sorted(maps.Keys(n.detectors))
}

// Detected converts the node into its exported component form. DetectorID
// is the first reporting detector in sort order.
func (n *Node) Detected() component.Detected {
	d := component.Detected{
		Identity:  n.Identity,
		FileHash:  n.FileHash,
		Locations: n.Locations(),
	}
	if ids := n.Detectors(); len(ids) > 0 {
		d.DetectorID = ids[0]
	}
	return d
}

func (n *Node) equal(o *Node) bool {
	return n.Identity == o.Identity &&
		n.Explicit == o.Explicit &&
		n.DevelopmentSeen == o.DevelopmentSeen &&
		n.ProductionSeen == o.ProductionSeen &&
		n.FileHash == o.FileHash &&
		maps.Equal(n.locations, o.locations) &&
		maps.Equal(n.detectors, o.detectors)
}
