// Package npm detects npm packages from package.json manifests and
// package-lock.json lock files.
package npm

import (
	"context"
	"encoding/json"
	"io"
	"path"
	"regexp"
	"slices"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/depscout/pkg/component"
	"github.com/matzehuels/depscout/pkg/detector"
	"github.com/matzehuels/depscout/pkg/recorder"
)

// ID is the detector id.
const ID = "npm"

// exactVersion accepts plain semver pins. Ranges in package.json are left
// for the lock file.
var exactVersion = regexp.MustCompile(`^v?=?\d+\.\d+\.\d+(?:[-+][0-9A-Za-z.\-+]*)?$`)

// Detector reads package.json manifests and npm lock files. The
// includeDev argument, true by default, controls whether development
// dependencies are recorded.
type Detector struct {
	detector.Base
	log *log.Logger
}

// New returns the npm detector.
func New(env detector.Env) detector.Detector {
	return &Detector{
		Base: detector.Base{
			Name:     ID,
			Types:    []component.Type{component.TypeNpm},
			Patterns: []string{"package.json", "package-lock.json"},
			Cats:     []string{"javascript", "npm"},
			Rev:      2,
		},
		log: env.Log(),
	}
}

func (d *Detector) OnFileFound(ctx context.Context, s detector.ComponentStream, rec detector.Recorder, args detector.Args) error {
	data, err := io.ReadAll(s.Reader())
	if err != nil {
		return err
	}
	includeDev := args.Bool("includeDev", true)

	switch path.Base(s.Location()) {
	case "package-lock.json":
		var lock lockFile
		if err := json.Unmarshal(data, &lock); err != nil {
			d.log.Warn("unparsable lock file", "detector", ID, "file", s.Location(), "err", err)
			return nil
		}
		if len(lock.Packages) > 0 {
			return recordPackages(rec, lock.Packages, includeDev)
		}
		return recordLegacy(rec, lock.Dependencies, includeDev)
	default:
		var pkg manifest
		if err := json.Unmarshal(data, &pkg); err != nil {
			d.log.Warn("unparsable manifest", "detector", ID, "file", s.Location(), "err", err)
			return nil
		}
		return d.recordManifest(rec, s.Location(), pkg, includeDev)
	}
}

type manifest struct {
	Name                 string            `json:"name"`
	Version              string            `json:"version"`
	Dependencies         map[string]string `json:"dependencies"`
	DevDependencies      map[string]string `json:"devDependencies"`
	OptionalDependencies map[string]string `json:"optionalDependencies"`
}

func (d *Detector) recordManifest(rec detector.Recorder, loc string, m manifest, includeDev bool) error {
	register := func(deps map[string]string, dev bool) error {
		for _, name := range sortedKeys(deps) {
			v := strings.TrimLeft(deps[name], "v=")
			if !exactVersion.MatchString(deps[name]) {
				d.log.Debug("skipping version range", "detector", ID, "file", loc, "package", name, "range", deps[name])
				continue
			}
			err := rec.RegisterUsage(component.New(component.Npm(name, v)),
				recorder.Explicit(), recorder.If(dev, recorder.Development()))
			if err != nil {
				return err
			}
		}
		return nil
	}
	if err := register(m.Dependencies, false); err != nil {
		return err
	}
	if err := register(m.OptionalDependencies, false); err != nil {
		return err
	}
	if !includeDev {
		return nil
	}
	return register(m.DevDependencies, true)
}

// lockFile covers lockfileVersion 1 (dependencies tree) and 2/3 (flat
// packages map keyed by install path).
type lockFile struct {
	LockfileVersion int                    `json:"lockfileVersion"`
	Packages        map[string]lockPackage `json:"packages"`
	Dependencies    map[string]legacyEntry `json:"dependencies"`
}

type lockPackage struct {
	Name                 string            `json:"name"`
	Version              string            `json:"version"`
	Dev                  bool              `json:"dev"`
	DevOptional          bool              `json:"devOptional"`
	Link                 bool              `json:"link"`
	Dependencies         map[string]string `json:"dependencies"`
	DevDependencies      map[string]string `json:"devDependencies"`
	OptionalDependencies map[string]string `json:"optionalDependencies"`
}

func (p lockPackage) dev() bool { return p.Dev || p.DevOptional }

func recordPackages(rec detector.Recorder, pkgs map[string]lockPackage, includeDev bool) error {
	ids := make(map[string]component.Identity, len(pkgs))
	for key, p := range pkgs {
		if key == "" || p.Link || p.Version == "" {
			continue
		}
		name := p.Name
		if name == "" {
			name = nameFromPath(key)
		}
		ids[key] = component.Npm(name, p.Version)
	}

	keys := sortedKeys(pkgs)
	for _, key := range keys {
		id, ok := ids[key]
		if !ok {
			continue
		}
		p := pkgs[key]
		if p.dev() && !includeDev {
			continue
		}
		if err := rec.RegisterUsage(component.New(id), recorder.If(p.dev(), recorder.Development())); err != nil {
			return err
		}
	}

	root := pkgs[""]
	direct := func(deps map[string]string, dev bool) error {
		for _, name := range sortedKeys(deps) {
			id, ok := ids[resolve(ids, "", name)]
			if !ok || (dev && !includeDev) {
				continue
			}
			if err := rec.RegisterUsage(component.New(id), recorder.Explicit(), recorder.If(dev, recorder.Development())); err != nil {
				return err
			}
		}
		return nil
	}
	if err := direct(root.Dependencies, false); err != nil {
		return err
	}
	if err := direct(root.OptionalDependencies, false); err != nil {
		return err
	}
	if err := direct(root.DevDependencies, true); err != nil {
		return err
	}

	for _, key := range keys {
		parent, ok := ids[key]
		if !ok {
			continue
		}
		p := pkgs[key]
		if p.dev() && !includeDev {
			continue
		}
		for _, deps := range []map[string]string{p.Dependencies, p.OptionalDependencies} {
			for _, name := range sortedKeys(deps) {
				childKey := resolve(ids, key, name)
				child, ok := ids[childKey]
				if !ok {
					continue
				}
				cdev := pkgs[childKey].dev()
				if cdev && !includeDev {
					continue
				}
				err := rec.RegisterUsage(component.New(child),
					recorder.If(cdev, recorder.Development()), recorder.WithParent(parent))
				if err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// resolve finds the install path node's module resolution would pick for
// name when required from the package installed at from.
func resolve(ids map[string]component.Identity, from, name string) string {
	dir := from
	for {
		candidate := "node_modules/" + name
		if dir != "" {
			candidate = dir + "/" + candidate
		}
		if _, ok := ids[candidate]; ok {
			return candidate
		}
		if dir == "" {
			return ""
		}
		i := strings.LastIndex(dir, "node_modules/")
		if i <= 0 {
			dir = ""
			continue
		}
		dir = strings.TrimSuffix(dir[:i], "/")
	}
}

// nameFromPath turns "node_modules/a/node_modules/@s/b" into "@s/b".
func nameFromPath(key string) string {
	i := strings.LastIndex(key, "node_modules/")
	if i < 0 {
		return key
	}
	return key[i+len("node_modules/"):]
}

type legacyEntry struct {
	Version      string                 `json:"version"`
	Dev          bool                   `json:"dev"`
	Requires     map[string]string      `json:"requires"`
	Dependencies map[string]legacyEntry `json:"dependencies"`
}

// recordLegacy walks a lockfileVersion 1 tree. Requirements resolve to the
// nearest enclosing scope that declares the package.
func recordLegacy(rec detector.Recorder, deps map[string]legacyEntry, includeDev bool) error {
	type scope struct {
		deps   map[string]legacyEntry
		parent *scope
	}
	lookup := func(s *scope, name string) (legacyEntry, bool) {
		for ; s != nil; s = s.parent {
			if e, ok := s.deps[name]; ok {
				return e, true
			}
		}
		return legacyEntry{}, false
	}

	var walk func(s *scope) error
	walk = func(s *scope) error {
		for _, name := range sortedKeys(s.deps) {
			e := s.deps[name]
			if e.Version == "" || (e.Dev && !includeDev) {
				continue
			}
			id := component.Npm(name, e.Version)
			if err := rec.RegisterUsage(component.New(id), recorder.If(e.Dev, recorder.Development())); err != nil {
				return err
			}
			inner := &scope{deps: e.Dependencies, parent: s}
			for _, req := range sortedKeys(e.Requires) {
				child, ok := lookup(inner, req)
				if !ok || child.Version == "" || (child.Dev && !includeDev) {
					continue
				}
				err := rec.RegisterUsage(component.New(component.Npm(req, child.Version)),
					recorder.If(child.Dev, recorder.Development()), recorder.WithParent(id))
				if err != nil {
					return err
				}
			}
			if len(e.Dependencies) > 0 {
				if err := walk(inner); err != nil {
					return err
				}
			}
		}
		return nil
	}
	return walk(&scope{deps: deps})
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
