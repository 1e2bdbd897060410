package recorder

import (
	"errors"
	"sync"

	"github.com/matzehuels/depscout/pkg/depgraph"
)

// ErrFinalized is returned by [ComponentRecorder.Fold] after
// [ComponentRecorder.Finalize].
var ErrFinalized = errors.New("component recorder already finalized")

// ComponentRecorder merges single-file recordings into one scan-wide graph.
// Fold may be called from many goroutines; the merge is commutative, so the
// result does not depend on the order units complete in.
type ComponentRecorder struct {
	mu     sync.Mutex
	graph  *depgraph.Graph
	folded int
	final  *Graph
}

// New returns an empty recorder.
func New() *ComponentRecorder {
	return &ComponentRecorder{graph: depgraph.New()}
}

// Fold merges sf into the scan graph. A nil recorder is ignored.
func (r *ComponentRecorder) Fold(sf *SingleFileRecorder) error {
	if sf == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.final != nil {
		return ErrFinalized
	}
	r.graph.Merge(sf.graph)
	r.folded++
	return nil
}

// Folded returns how many recordings were merged.
func (r *ComponentRecorder) Folded() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.folded
}

// Finalize freezes the recorder and computes the root set. Calling it again
// returns the same graph.
func (r *ComponentRecorder) Finalize() *Graph {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.final == nil {
		r.final = newGraph(r.graph)
	}
	return r.final
}
