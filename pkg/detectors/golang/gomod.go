// Package golang detects Go modules from go.mod files.
package golang

import (
	"context"
	"io"

	"github.com/charmbracelet/log"
	"golang.org/x/mod/modfile"
	"golang.org/x/mod/module"

	"github.com/matzehuels/depscout/pkg/component"
	"github.com/matzehuels/depscout/pkg/detector"
	"github.com/matzehuels/depscout/pkg/recorder"
)

// ID is the detector id.
const ID = "gomod"

// GoMod reads go.mod require blocks. Requirements marked "// indirect" are
// transitive; the rest are explicit. Module replacements pointing at
// another module version are applied; directory replacements are not.
type GoMod struct {
	detector.Base
	log *log.Logger
}

// New returns the go.mod detector.
func New(env detector.Env) detector.Detector {
	return &GoMod{
		Base: detector.Base{
			Name:     ID,
			Types:    []component.Type{component.TypeGo},
			Patterns: []string{"go.mod"},
			Cats:     []string{"go"},
			Rev:      1,
		},
		log: env.Log(),
	}
}

func (g *GoMod) OnFileFound(ctx context.Context, s detector.ComponentStream, rec detector.Recorder, _ detector.Args) error {
	data, err := io.ReadAll(s.Reader())
	if err != nil {
		return err
	}
	f, err := modfile.ParseLax(s.Location(), data, nil)
	if err != nil {
		g.log.Warn("unparsable go.mod", "detector", ID, "file", s.Location(), "err", err)
		return nil
	}

	replaced := make(map[module.Version]module.Version)
	for _, r := range f.Replace {
		if r.New.Version == "" {
			continue
		}
		replaced[r.Old] = r.New
	}
	replace := func(m module.Version) module.Version {
		if n, ok := replaced[m]; ok {
			return n
		}
		if n, ok := replaced[module.Version{Path: m.Path}]; ok {
			return n
		}
		return m
	}

	for _, r := range f.Require {
		m := replace(r.Mod)
		err := rec.RegisterUsage(component.New(component.Go(m.Path, m.Version)), recorder.If(!r.Indirect, recorder.Explicit()))
		if err != nil {
			return err
		}
	}
	return nil
}
