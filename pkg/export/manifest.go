package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/matzehuels/depscout/pkg/component"
	"github.com/matzehuels/depscout/pkg/recorder"
	"github.com/matzehuels/depscout/pkg/scan"
)

// SchemaVersion is the manifest format version written by [WriteJSON].
const SchemaVersion = 1

// Manifest is the serialized form of a scan.
type Manifest struct {
	SchemaVersion int                `json:"schemaVersion"`
	ScanID        string             `json:"scanId,omitempty"`
	Root          string             `json:"root,omitempty"`
	StartedAt     time.Time          `json:"startedAt,omitzero"`
	Duration      time.Duration      `json:"duration,omitempty"`
	Components    []Component        `json:"components"`
	Edges         []Edge             `json:"edges"`
	Roots         []string           `json:"roots"`
	Cycles        [][]string         `json:"cycles,omitempty"`
	Detectors     []scan.DetectorRun `json:"detectors,omitempty"`
	Failures      []scan.FileRun     `json:"failures,omitempty"`
}

// Component is one graph node with its resolved flags.
type Component struct {
	ID          string             `json:"id"`
	PURL        string             `json:"purl,omitempty"`
	Identity    component.Identity `json:"identity"`
	Explicit    bool               `json:"explicit"`
	Development bool               `json:"development"`
	Observed    bool               `json:"observed"`
	FileHash    string             `json:"fileHash,omitempty"`
	DetectorID  string             `json:"detector,omitempty"`
	Locations   []string           `json:"locations,omitempty"`
}

// Edge records that From depends on To. Both are component ids.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// FromResult builds the manifest of a finished scan.
func FromResult(res *scan.Result) *Manifest {
	m := FromGraph(res.Graph)
	m.ScanID = res.ID
	m.Root = res.Root
	m.StartedAt = res.StartedAt
	m.Duration = res.Duration
	m.Detectors = res.Detectors
	m.Failures = res.Failed()
	return m
}

// FromGraph builds a manifest holding only the graph.
func FromGraph(g *recorder.Graph) *Manifest {
	m := &Manifest{
		SchemaVersion: SchemaVersion,
		Components:    []Component{},
		Edges:         []Edge{},
		Roots:         []string{},
	}
	if g == nil {
		return m
	}
	for _, c := range g.Components() {
		m.Components = append(m.Components, Component{
			ID:          c.Identity.ID(),
			PURL:        c.Identity.PURL(),
			Identity:    c.Identity,
			Explicit:    c.Explicit,
			Development: c.Development,
			Observed:    c.Observed,
			FileHash:    c.FileHash,
			DetectorID:  c.DetectorID,
			Locations:   c.Locations,
		})
	}
	for _, e := range g.Edges() {
		m.Edges = append(m.Edges, Edge{From: e.Parent.ID(), To: e.Child.ID()})
	}
	for _, r := range g.Roots() {
		m.Roots = append(m.Roots, r.ID())
	}
	for _, cycle := range g.Cycles() {
		ids := make([]string, len(cycle))
		for i, id := range cycle {
			ids[i] = id.ID()
		}
		m.Cycles = append(m.Cycles, ids)
	}
	return m
}

// Graph rebuilds the dependency graph the manifest describes.
func (m *Manifest) Graph() (*recorder.Graph, error) {
	byID := make(map[string]component.Identity, len(m.Components))
	comps := make([]recorder.Component, 0, len(m.Components))
	for _, c := range m.Components {
		if _, dup := byID[c.ID]; dup {
			return nil, fmt.Errorf("duplicate component %s", c.ID)
		}
		byID[c.ID] = c.Identity
		comps = append(comps, recorder.Component{
			Detected: component.Detected{
				Identity:   c.Identity,
				FileHash:   c.FileHash,
				DetectorID: c.DetectorID,
				Locations:  c.Locations,
			},
			Explicit:    c.Explicit,
			Development: c.Development,
			Observed:    c.Observed,
		})
	}
	edges := make([]recorder.Edge, 0, len(m.Edges))
	for _, e := range m.Edges {
		parent, ok := byID[e.From]
		if !ok {
			return nil, fmt.Errorf("edge %s->%s: unknown component %s", e.From, e.To, e.From)
		}
		child, ok := byID[e.To]
		if !ok {
			return nil, fmt.Errorf("edge %s->%s: unknown component %s", e.From, e.To, e.To)
		}
		edges = append(edges, recorder.Edge{Parent: parent, Child: child})
	}
	return recorder.Assemble(comps, edges)
}

// WriteJSON encodes m as indented JSON.
func WriteJSON(m *Manifest, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// ReadJSON decodes a manifest. Newer schema versions are rejected.
func ReadJSON(r io.Reader) (*Manifest, error) {
	var m Manifest
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if m.SchemaVersion > SchemaVersion {
		return nil, fmt.Errorf("unsupported manifest schema version %d", m.SchemaVersion)
	}
	return &m, nil
}

// ExportJSON writes m to a file at path.
func ExportJSON(m *Manifest, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteJSON(m, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ImportJSON reads a manifest from the file at path.
func ImportJSON(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadJSON(f)
}
