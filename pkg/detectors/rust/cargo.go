// Package rust detects crates from Cargo.lock files.
package rust

import (
	"context"
	"io"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"

	"github.com/matzehuels/depscout/pkg/component"
	"github.com/matzehuels/depscout/pkg/detector"
	"github.com/matzehuels/depscout/pkg/recorder"
)

// ID is the detector id.
const ID = "cargo"

// CargoLock reads Cargo.lock. Packages without a source are workspace
// members; they are not recorded, and what they depend on is explicit.
type CargoLock struct {
	detector.Base
	log *log.Logger
}

// New returns the Cargo.lock detector.
func New(env detector.Env) detector.Detector {
	return &CargoLock{
		Base: detector.Base{
			Name:     ID,
			Types:    []component.Type{component.TypeCargo},
			Patterns: []string{"Cargo.lock"},
			Cats:     []string{"rust", "cargo"},
			Rev:      1,
		},
		log: env.Log(),
	}
}

type lockFile struct {
	Version  int           `toml:"version"`
	Packages []lockPackage `toml:"package"`
}

type lockPackage struct {
	Name         string   `toml:"name"`
	Version      string   `toml:"version"`
	Source       string   `toml:"source"`
	Dependencies []string `toml:"dependencies"`
}

func (p lockPackage) local() bool { return p.Source == "" }

func (c *CargoLock) OnFileFound(ctx context.Context, s detector.ComponentStream, rec detector.Recorder, _ detector.Args) error {
	data, err := io.ReadAll(s.Reader())
	if err != nil {
		return err
	}
	var lock lockFile
	if err := toml.Unmarshal(data, &lock); err != nil {
		c.log.Warn("unparsable lock file", "detector", ID, "file", s.Location(), "err", err)
		return nil
	}

	byName := make(map[string][]lockPackage)
	for _, p := range lock.Packages {
		byName[p.Name] = append(byName[p.Name], p)
	}

	for _, p := range lock.Packages {
		if p.local() || p.Name == "" || p.Version == "" {
			continue
		}
		if err := rec.RegisterUsage(component.New(component.Cargo(p.Name, p.Version))); err != nil {
			return err
		}
	}

	for _, p := range lock.Packages {
		if p.Name == "" {
			continue
		}
		parent := component.Cargo(p.Name, p.Version)
		for _, ref := range p.Dependencies {
			dep, ok := lookup(byName, ref)
			if !ok {
				c.log.Debug("unresolved dependency", "detector", ID, "file", s.Location(), "package", p.Name, "ref", ref)
				continue
			}
			if dep.local() {
				continue
			}
			child := component.New(component.Cargo(dep.Name, dep.Version))
			if p.local() {
				err = rec.RegisterUsage(child, recorder.Explicit())
			} else {
				err = rec.RegisterUsage(child, recorder.WithParent(parent))
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// lookup resolves a dependency reference of the form "name",
// "name version" or "name version (source)". The bare name is only used
// when a single version of the crate is locked.
func lookup(byName map[string][]lockPackage, ref string) (lockPackage, bool) {
	fields := strings.Fields(ref)
	if len(fields) == 0 {
		return lockPackage{}, false
	}
	candidates := byName[fields[0]]
	if len(fields) == 1 {
		if len(candidates) == 1 {
			return candidates[0], true
		}
		return lockPackage{}, false
	}
	source := ""
	if len(fields) > 2 {
		source = strings.Trim(strings.Join(fields[2:], " "), "()")
	}
	for _, c := range candidates {
		if c.Version == fields[1] && (source == "" || c.Source == source) {
			return c, true
		}
	}
	return lockPackage{}, false
}
