// Package pnpm detects npm packages from pnpm-lock.yaml files.
package pnpm

import (
	"context"
	"io"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"github.com/matzehuels/depscout/pkg/component"
	"github.com/matzehuels/depscout/pkg/detector"
	"github.com/matzehuels/depscout/pkg/recorder"
)

// ID is the detector id.
const ID = "pnpm"

// Lock reads pnpm lock files of format 5, 6 and 9. Importer dependencies
// are explicit. Whether a package is development-only comes from the
// package's dev flag when the lock has one, and otherwise from which
// importer dependency kind reaches it.
type Lock struct {
	detector.Base
	log *log.Logger
}

// New returns the pnpm lock file detector.
func New(env detector.Env) detector.Detector {
	return &Lock{
		Base: detector.Base{
			Name:     ID,
			Types:    []component.Type{component.TypeNpm},
			Patterns: []string{"pnpm-lock.yaml"},
			Cats:     []string{"javascript", "pnpm"},
			Rev:      1,
		},
		log: env.Log(),
	}
}

type lockFile struct {
	Importers map[string]importer  `yaml:"importers"`
	Packages  map[string]lockEntry `yaml:"packages"`
	Snapshots map[string]lockEntry `yaml:"snapshots"`

	// Single-project locks before format 9 keep the importer at the top.
	Root importer `yaml:",inline"`
}

type importer struct {
	Dependencies         map[string]depRef `yaml:"dependencies"`
	DevDependencies      map[string]depRef `yaml:"devDependencies"`
	OptionalDependencies map[string]depRef `yaml:"optionalDependencies"`
}

// depRef is an importer dependency: a bare version in format 5, a
// specifier/version mapping from format 6 on.
type depRef struct {
	Version string
}

func (r *depRef) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		r.Version = n.Value
		return nil
	}
	var v struct {
		Version string `yaml:"version"`
	}
	if err := n.Decode(&v); err != nil {
		return err
	}
	r.Version = v.Version
	return nil
}

type lockEntry struct {
	Dev                  *bool             `yaml:"dev"`
	Dependencies         map[string]string `yaml:"dependencies"`
	OptionalDependencies map[string]string `yaml:"optionalDependencies"`
}

type pkg struct {
	id   component.Identity
	dev  *bool
	deps []component.Identity
}

func (l *Lock) OnFileFound(ctx context.Context, s detector.ComponentStream, rec detector.Recorder, _ detector.Args) error {
	data, err := io.ReadAll(s.Reader())
	if err != nil {
		return err
	}
	var lock lockFile
	if err := yaml.Unmarshal(data, &lock); err != nil {
		l.log.Warn("unparsable lock file", "detector", ID, "file", s.Location(), "err", err)
		return nil
	}

	pkgs := make(map[component.Identity]*pkg)
	collect := func(entries map[string]lockEntry) {
		for key, e := range entries {
			id, ok := parseKey(key)
			if !ok {
				continue
			}
			p := pkgs[id]
			if p == nil {
				p = &pkg{id: id}
				pkgs[id] = p
			}
			if e.Dev != nil {
				p.dev = e.Dev
			}
			for _, deps := range []map[string]string{e.Dependencies, e.OptionalDependencies} {
				for name, ver := range deps {
					if dep, ok := reference(name, ver); ok {
						p.deps = append(p.deps, dep)
					}
				}
			}
		}
	}
	collect(lock.Packages)
	collect(lock.Snapshots)
	for _, p := range pkgs {
		slices.SortFunc(p.deps, component.Compare)
		p.deps = slices.Compact(p.deps)
	}

	importers := lock.Importers
	if len(importers) == 0 {
		importers = map[string]importer{".": lock.Root}
	}

	// Reachability from production roots first, so that the dev walk can
	// skip what production already covers.
	prod := make(map[component.Identity]bool)
	dev := make(map[component.Identity]bool)
	var walk func(id component.Identity, seen map[component.Identity]bool)
	walk = func(id component.Identity, seen map[component.Identity]bool) {
		if seen[id] {
			return
		}
		seen[id] = true
		if p := pkgs[id]; p != nil {
			for _, d := range p.deps {
				walk(d, seen)
			}
		}
	}
	for _, name := range sortedKeys(importers) {
		imp := importers[name]
		for _, ref := range directRefs(imp.Dependencies, imp.OptionalDependencies) {
			walk(ref, prod)
		}
		for _, ref := range directRefs(imp.DevDependencies) {
			walk(ref, dev)
		}
	}
	isDev := func(id component.Identity) bool {
		if p := pkgs[id]; p != nil && p.dev != nil {
			return *p.dev
		}
		return dev[id] && !prod[id]
	}

	ids := make([]component.Identity, 0, len(pkgs))
	for id := range pkgs {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, component.Compare)

	for _, id := range ids {
		if err := rec.RegisterUsage(component.New(id), recorder.If(isDev(id), recorder.Development())); err != nil {
			return err
		}
	}
	for _, name := range sortedKeys(importers) {
		imp := importers[name]
		for _, ref := range directRefs(imp.Dependencies, imp.OptionalDependencies) {
			if err := rec.RegisterUsage(component.New(ref), recorder.Explicit(), recorder.If(isDev(ref), recorder.Development())); err != nil {
				return err
			}
		}
		for _, ref := range directRefs(imp.DevDependencies) {
			if err := rec.RegisterUsage(component.New(ref), recorder.Explicit(), recorder.Development()); err != nil {
				return err
			}
		}
	}
	for _, id := range ids {
		for _, d := range pkgs[id].deps {
			if err := rec.RegisterUsage(component.New(d), recorder.If(isDev(d), recorder.Development()), recorder.WithParent(id)); err != nil {
				return err
			}
		}
	}
	return nil
}

func directRefs(groups ...map[string]depRef) []component.Identity {
	var out []component.Identity
	for _, deps := range groups {
		for name, ref := range deps {
			if id, ok := reference(name, ref.Version); ok {
				out = append(out, id)
			}
		}
	}
	slices.SortFunc(out, component.Compare)
	return slices.Compact(out)
}

// reference resolves a dependency entry to a package identity. Local
// links and workspace references name no registry package.
func reference(name, version string) (component.Identity, bool) {
	// Aliased or path-style versions, such as "/@scope/x/1.0.0" or
	// "npm:x@1.0.0", carry their own package name.
	if strings.HasPrefix(version, "/") || strings.HasPrefix(version, "npm:") {
		return parseKey(strings.TrimPrefix(version, "npm:"))
	}
	version = stripPeers(version)
	if version == "" || strings.Contains(version, ":") {
		return component.Identity{}, false
	}
	return component.Npm(name, version), true
}

// parseKey parses a packages or snapshots key. Format 5 uses
// "/name/version", format 6 "/name@version" and format 9 "name@version",
// each optionally followed by a peer dependency suffix.
func parseKey(key string) (component.Identity, bool) {
	key = strings.TrimPrefix(key, "/")
	start := 0
	if strings.HasPrefix(key, "@") {
		slash := strings.IndexByte(key, '/')
		if slash < 0 {
			return component.Identity{}, false
		}
		start = slash + 1
	}
	sep := strings.IndexAny(key[start:], "@/")
	if sep < 0 {
		return component.Identity{}, false
	}
	name, version := key[:start+sep], stripPeers(key[start+sep+1:])
	if name == "" || version == "" {
		return component.Identity{}, false
	}
	return component.Npm(name, version), true
}

// stripPeers removes "(peer@1.0.0)" suffixes and the older "_peer@1.0.0"
// form from a version.
func stripPeers(v string) string {
	if i := strings.IndexAny(v, "(_"); i >= 0 {
		v = v[:i]
	}
	return strings.TrimSpace(v)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
