// Package linux detects operating system packages from the dpkg status
// database and the apk installed database found in a root filesystem.
package linux

import (
	"context"
	"iter"
	"path"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/depscout/pkg/component"
	"github.com/matzehuels/depscout/pkg/detector"
	"github.com/matzehuels/depscout/pkg/detectors/internal/control"
	"github.com/matzehuels/depscout/pkg/recorder"
)

// ID is the detector id.
const ID = "linux"

// Detector records installed packages. The distribution and release
// cannot be read from the database itself; they come from the
// linux.distribution and linux.release arguments, with the package
// manager's usual distribution as fallback.
//
// It listens for container build context signals and notes package
// databases found inside a build context, which usually belong to an
// unpacked image rather than the host.
type Detector struct {
	detector.Base
	log *log.Logger

	mu       sync.Mutex
	contexts map[string]string // build context dir -> base image
	watching chan struct{}     // closed when the signal channel completes
}

// New returns the linux detector.
func New(env detector.Env) detector.Detector {
	d := &Detector{
		Base: detector.Base{
			Name:     ID,
			Types:    []component.Type{component.TypeLinux},
			Patterns: []string{"**/var/lib/dpkg/status", "**/lib/apk/db/installed"},
			Cats:     []string{"linux"},
			Rev:      1,
			Gating:   detector.Experimental,
		},
		log:      env.Log(),
		contexts: map[string]string{},
		watching: make(chan struct{}),
	}
	if env.Signals != nil {
		go d.watch(env.Signals.Subscribe())
	} else {
		close(d.watching)
	}
	return d
}

func (d *Detector) watch(signals iter.Seq[detector.Signal]) {
	defer close(d.watching)
	for sig := range signals {
		if sig.Kind != detector.SignalContainerBuildContext {
			continue
		}
		d.mu.Lock()
		d.contexts[sig.Dir] = sig.Ref
		d.mu.Unlock()
	}
}

// buildContext returns the innermost build context announced so far that
// contains loc. Signals arrive concurrently with detection, so a context
// announced after loc was parsed is missed.
func (d *Detector) buildContext(loc string) (dir, ref string, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for c, r := range d.contexts {
		if c != "." && !strings.HasPrefix(loc, c+"/") {
			continue
		}
		if !ok || len(c) > len(dir) {
			dir, ref, ok = c, r, true
		}
	}
	return dir, ref, ok
}

type pkg struct {
	name, version string
	depends       []string
}

// OnFileFound implements [detector.Detector].
func (d *Detector) OnFileFound(ctx context.Context, s detector.ComponentStream, rec detector.Recorder, args detector.Args) error {
	apk := path.Base(s.Location()) == "installed"
	distribution := "debian"
	if apk {
		distribution = "alpine"
	}
	distribution = args.String("distribution", distribution)
	release := args.String("release", "")
	if dir, ref, ok := d.buildContext(s.Location()); ok {
		d.log.Debug("package database inside container build context",
			"detector", ID, "file", s.Location(), "context", dir, "image", ref)
	}

	paragraphs, errf := control.Paragraphs(s.Reader())
	var pkgs []pkg
	for p := range paragraphs {
		var next pkg
		var ok bool
		if apk {
			next, ok = fromAPK(p)
		} else {
			next, ok = fromDpkg(p)
		}
		if ok {
			pkgs = append(pkgs, next)
		}
	}
	if err := errf(); err != nil {
		d.log.Warn("unreadable package database", "detector", ID, "file", s.Location(), "err", err)
		return nil
	}

	ids := make(map[string]component.Identity, len(pkgs))
	for _, p := range pkgs {
		id := component.Linux(distribution, release, p.name, p.version)
		ids[p.name] = id
		if err := rec.RegisterUsage(component.New(id)); err != nil {
			return err
		}
	}
	for _, p := range pkgs {
		for _, dep := range p.depends {
			child, ok := ids[dep]
			if !ok || dep == p.name {
				continue
			}
			if err := rec.RegisterUsage(component.New(child), recorder.WithParent(ids[p.name])); err != nil {
				return err
			}
		}
	}
	return nil
}

func fromDpkg(p control.Paragraph) (pkg, bool) {
	f := strings.Fields(p["Status"])
	if p["Package"] == "" || p["Version"] == "" || len(f) != 3 || f[2] != "installed" {
		return pkg{}, false
	}
	var deps []string
	for _, field := range []string{p["Pre-Depends"], p["Depends"]} {
		for _, dep := range control.List(field) {
			name, _, _ := strings.Cut(dep, ":")
			deps = append(deps, name)
		}
	}
	return pkg{name: p["Package"], version: p["Version"], depends: deps}, true
}

// fromAPK reads an apk database entry. Dependencies on shared objects or
// commands ("so:", "cmd:") name no package and are skipped.
func fromAPK(p control.Paragraph) (pkg, bool) {
	if p["P"] == "" || p["V"] == "" {
		return pkg{}, false
	}
	var deps []string
	for _, dep := range strings.Fields(p["D"]) {
		if strings.Contains(dep, ":") || strings.HasPrefix(dep, "!") {
			continue
		}
		if i := strings.IndexAny(dep, "<>=~"); i >= 0 {
			dep = dep[:i]
		}
		deps = append(deps, dep)
	}
	return pkg{name: p["P"], version: p["V"], depends: deps}, true
}
