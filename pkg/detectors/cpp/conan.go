// Package cpp detects C and C++ packages from Conan lock files and vcpkg
// manifests and install databases.
package cpp

import (
	"context"
	"encoding/json"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/depscout/pkg/component"
	"github.com/matzehuels/depscout/pkg/detector"
	"github.com/matzehuels/depscout/pkg/recorder"
)

// ConanID is the conan detector id.
const ConanID = "conan"

// Conan reads conan.lock. Conan 1 locks carry a node graph whose root's
// requirements are explicit; Conan 2 locks are flat reference lists. In
// both, build requirements are development-only.
type Conan struct {
	detector.Base
	log *log.Logger
}

// NewConan returns the conan.lock detector.
func NewConan(env detector.Env) detector.Detector {
	return &Conan{
		Base: detector.Base{
			Name:     ConanID,
			Types:    []component.Type{component.TypeConan},
			Patterns: []string{"conan.lock"},
			Cats:     []string{"cpp", "conan"},
			Rev:      1,
		},
		log: env.Log(),
	}
}

type conanLock struct {
	GraphLock *struct {
		Nodes map[string]conanNode `json:"nodes"`
	} `json:"graph_lock"`
	Requires       []string `json:"requires"`
	BuildRequires  []string `json:"build_requires"`
	PythonRequires []string `json:"python_requires"`
}

type conanNode struct {
	Ref           string   `json:"ref"`
	Pref          string   `json:"pref"`
	Requires      []string `json:"requires"`
	BuildRequires []string `json:"build_requires"`
	Context       string   `json:"context"`
}

func (n conanNode) ref() string {
	if n.Ref != "" {
		return n.Ref
	}
	return n.Pref
}

func (c *Conan) OnFileFound(ctx context.Context, s detector.ComponentStream, rec detector.Recorder, _ detector.Args) error {
	var lock conanLock
	if err := json.NewDecoder(s.Reader()).Decode(&lock); err != nil {
		c.log.Warn("unparsable lock file", "detector", ConanID, "file", s.Location(), "err", err)
		return nil
	}
	if lock.GraphLock != nil {
		return recordGraphLock(rec, lock.GraphLock.Nodes)
	}
	for _, group := range []struct {
		refs []string
		dev  bool
	}{{lock.Requires, false}, {lock.BuildRequires, true}, {lock.PythonRequires, true}} {
		for _, ref := range group.refs {
			id, ok := parseConanRef(ref)
			if !ok {
				continue
			}
			if err := rec.RegisterUsage(component.New(id), recorder.If(group.dev, recorder.Development())); err != nil {
				return err
			}
		}
	}
	return nil
}

func recordGraphLock(rec detector.Recorder, nodes map[string]conanNode) error {
	keys := make([]string, 0, len(nodes))
	for k := range nodes {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b string) int {
		x, errA := strconv.Atoi(a)
		y, errB := strconv.Atoi(b)
		if errA == nil && errB == nil {
			return x - y
		}
		return strings.Compare(a, b)
	})

	// Nodes reached only through build requirements are development-only.
	build := make(map[string]bool)
	host := make(map[string]bool)
	var mark func(key string, seen map[string]bool)
	mark = func(key string, seen map[string]bool) {
		if seen[key] {
			return
		}
		seen[key] = true
		for _, k := range nodes[key].Requires {
			mark(k, seen)
		}
		for _, k := range nodes[key].BuildRequires {
			mark(k, build)
		}
	}
	// Node "0" is the consumer project. A node without a parsable
	// reference is a conanfile and acts as a root too.
	root := make(map[string]bool)
	for _, k := range keys {
		if _, ok := parseConanRef(nodes[k].ref()); k == "0" || !ok {
			root[k] = true
			mark(k, host)
		}
	}
	dev := func(k string) bool {
		return nodes[k].Context == "build" || (build[k] && !host[k])
	}

	ids := make(map[string]component.Identity, len(nodes))
	for _, k := range keys {
		if root[k] {
			continue
		}
		id, _ := parseConanRef(nodes[k].ref())
		ids[k] = id
		if err := rec.RegisterUsage(component.New(id), recorder.If(dev(k), recorder.Development())); err != nil {
			return err
		}
	}

	for _, k := range keys {
		n := nodes[k]
		parent, hasParent := ids[k]
		for _, dep := range append(slices.Clone(n.Requires), n.BuildRequires...) {
			child, ok := ids[dep]
			if !ok {
				continue
			}
			opts := []recorder.UsageOption{recorder.If(dev(dep), recorder.Development())}
			if hasParent {
				opts = append(opts, recorder.WithParent(parent))
			} else {
				opts = append(opts, recorder.Explicit())
			}
			if err := rec.RegisterUsage(component.New(child), opts...); err != nil {
				return err
			}
		}
	}
	return nil
}

// parseConanRef parses "name/version@user/channel#revision:package_id".
// Everything after the recipe reference is ignored.
func parseConanRef(ref string) (component.Identity, bool) {
	if i := strings.IndexAny(ref, "#:%"); i >= 0 {
		ref = ref[:i]
	}
	ref, userChannel, _ := strings.Cut(strings.TrimSpace(ref), "@")
	name, version, ok := strings.Cut(ref, "/")
	if !ok || name == "" || version == "" {
		return component.Identity{}, false
	}
	if userChannel == "_/_" {
		userChannel = ""
	}
	return component.Conan(name, version, userChannel), true
}
