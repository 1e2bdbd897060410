package python

import (
	"context"
	"io"
	"slices"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"

	"github.com/matzehuels/depscout/pkg/component"
	"github.com/matzehuels/depscout/pkg/detector"
	"github.com/matzehuels/depscout/pkg/recorder"
)

// PoetryID is the poetry detector id.
const PoetryID = "poetry"

// Poetry reads poetry.lock. The lock holds the full closure, so packages
// nothing else in the lock depends on are taken as the project's direct
// dependencies.
type Poetry struct {
	detector.Base
	log *log.Logger
}

// NewPoetry returns the poetry.lock detector.
func NewPoetry(env detector.Env) detector.Detector {
	return &Poetry{
		Base: detector.Base{
			Name:     PoetryID,
			Types:    []component.Type{component.TypePip},
			Patterns: []string{"poetry.lock"},
			Cats:     []string{"python", "poetry"},
			Rev:      1,
		},
		log: env.Log(),
	}
}

type lockFile struct {
	Packages []lockPackage `toml:"package"`
}

type lockPackage struct {
	Name         string         `toml:"name"`
	Version      string         `toml:"version"`
	Category     string         `toml:"category"`
	Groups       []string       `toml:"groups"`
	Dependencies map[string]any `toml:"dependencies"`
}

// dev reports whether the package belongs only to non-main groups. Older
// locks say so with category, newer ones with groups.
func (p lockPackage) dev() bool {
	if len(p.Groups) > 0 {
		return !slices.Contains(p.Groups, "main")
	}
	return p.Category == "dev"
}

func (p *Poetry) OnFileFound(ctx context.Context, s detector.ComponentStream, rec detector.Recorder, _ detector.Args) error {
	data, err := io.ReadAll(s.Reader())
	if err != nil {
		return err
	}
	var lock lockFile
	if err := toml.Unmarshal(data, &lock); err != nil {
		p.log.Warn("unparsable lock file", "detector", PoetryID, "file", s.Location(), "err", err)
		return nil
	}

	byName := make(map[string]lockPackage, len(lock.Packages))
	for _, pkg := range lock.Packages {
		byName[normalize(pkg.Name)] = pkg
	}
	ident := func(pkg lockPackage) component.Identity {
		return component.Pip(normalize(pkg.Name), pkg.Version)
	}

	incoming := make(map[string]bool)
	for _, pkg := range lock.Packages {
		for dep := range pkg.Dependencies {
			if n := normalize(dep); n != normalize(pkg.Name) {
				incoming[n] = true
			}
		}
	}

	for _, pkg := range lock.Packages {
		if pkg.Name == "" || pkg.Version == "" {
			continue
		}
		root := !incoming[normalize(pkg.Name)]
		err := rec.RegisterUsage(component.New(ident(pkg)),
			recorder.If(root, recorder.Explicit()), recorder.If(pkg.dev(), recorder.Development()))
		if err != nil {
			return err
		}
	}

	for _, pkg := range lock.Packages {
		if pkg.Name == "" || pkg.Version == "" {
			continue
		}
		deps := make([]string, 0, len(pkg.Dependencies))
		for dep := range pkg.Dependencies {
			deps = append(deps, normalize(dep))
		}
		slices.Sort(deps)
		for _, dep := range deps {
			child, ok := byName[dep]
			if !ok || child.Version == "" {
				continue
			}
			err := rec.RegisterUsage(component.New(ident(child)),
				recorder.If(child.dev(), recorder.Development()), recorder.WithParent(ident(pkg)))
			if err != nil {
				return err
			}
		}
	}
	return nil
}
