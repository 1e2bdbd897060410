// Package detectortest runs detectors against in-memory files.
package detectortest

import (
	"context"
	"strings"
	"testing"

	"github.com/matzehuels/depscout/pkg/component"
	"github.com/matzehuels/depscout/pkg/detector"
	"github.com/matzehuels/depscout/pkg/recorder"
)

// Run feeds content to d as the file at location and returns what it
// recorded. The stream's pattern is the base name of location. Like a scan,
// it hands d only the arguments prefixed with its id, prefix removed.
func Run(t testing.TB, d detector.Detector, location, content string, args detector.Args) *recorder.Graph {
	t.Helper()
	rec := recorder.NewSingleFile(location, d.ID())
	pattern := location
	if i := strings.LastIndexByte(location, '/'); i >= 0 {
		pattern = location[i+1:]
	}
	stream := detector.NewStream(strings.NewReader(content), location, pattern)
	if err := d.OnFileFound(context.Background(), stream, rec, args.For(d.ID())); err != nil {
		t.Fatalf("%s: OnFileFound(%s): %v", d.ID(), location, err)
	}
	return rec.Graph()
}

// Must returns the component for id or fails the test.
func Must(t testing.TB, g *recorder.Graph, id component.Identity) recorder.Component {
	t.Helper()
	c, ok := g.Node(id)
	if !ok {
		var have []string
		for _, c := range g.Components() {
			have = append(have, c.Identity.ID())
		}
		t.Fatalf("component %s not recorded; have %v", id, have)
	}
	return c
}

// IDs returns the sorted identity strings of every recorded component.
func IDs(g *recorder.Graph) []string {
	out := make([]string, 0, g.Len())
	for _, c := range g.Components() {
		out = append(out, c.Identity.ID())
	}
	return out
}

// HasEdge reports whether parent depends on child in g.
func HasEdge(g *recorder.Graph, child, parent component.Identity) bool {
	for _, p := range g.Parents(child) {
		if p == parent {
			return true
		}
	}
	return false
}
