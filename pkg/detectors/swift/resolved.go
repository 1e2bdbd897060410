// Package swift detects Swift packages from Package.resolved files.
package swift

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/depscout/pkg/component"
	"github.com/matzehuels/depscout/pkg/detector"
)

// ID is the detector id.
const ID = "swift"

// Resolved reads the pins of a Package.resolved file, format 1 and later.
// The file holds the resolved closure without structure, so pins are
// recorded as transitive packages without edges.
type Resolved struct {
	detector.Base
	log *log.Logger
}

// New returns the Package.resolved detector.
func New(env detector.Env) detector.Detector {
	return &Resolved{
		Base: detector.Base{
			Name:     ID,
			Types:    []component.Type{component.TypeSwift},
			Patterns: []string{"Package.resolved"},
			Cats:     []string{"swift"},
			Rev:      1,
		},
		log: env.Log(),
	}
}

type resolvedFile struct {
	Version int   `json:"version"`
	Pins    []pin `json:"pins"`
	Object  struct {
		Pins []pin `json:"pins"`
	} `json:"object"`
}

type pin struct {
	// Format 2 and later.
	Identity string `json:"identity"`
	Location string `json:"location"`
	// Format 1.
	Package       string `json:"package"`
	RepositoryURL string `json:"repositoryURL"`

	State struct {
		Version  string `json:"version"`
		Revision string `json:"revision"`
		Branch   string `json:"branch"`
	} `json:"state"`
}

func (p pin) identity() (component.Identity, bool) {
	name := p.Identity
	if name == "" {
		name = strings.ToLower(p.Package)
	}
	url := p.Location
	if url == "" {
		url = p.RepositoryURL
	}
	version := p.State.Version
	if version == "" {
		version = p.State.Revision
	}
	if name == "" || version == "" {
		return component.Identity{}, false
	}
	return component.Swift(name, version, url), true
}

func (r *Resolved) OnFileFound(ctx context.Context, s detector.ComponentStream, rec detector.Recorder, _ detector.Args) error {
	var f resolvedFile
	if err := json.NewDecoder(s.Reader()).Decode(&f); err != nil {
		r.log.Warn("unparsable Package.resolved", "detector", ID, "file", s.Location(), "err", err)
		return nil
	}
	pins := f.Pins
	if f.Version <= 1 {
		pins = f.Object.Pins
	}
	for _, p := range pins {
		id, ok := p.identity()
		if !ok {
			continue
		}
		if err := rec.RegisterUsage(component.New(id)); err != nil {
			return err
		}
	}
	return nil
}
