package cpp

import (
	"context"
	"encoding/json"
	"path"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/depscout/pkg/component"
	"github.com/matzehuels/depscout/pkg/detector"
	"github.com/matzehuels/depscout/pkg/detectors/internal/control"
	"github.com/matzehuels/depscout/pkg/recorder"
)

// VcpkgID is the vcpkg detector id.
const VcpkgID = "vcpkg"

// Vcpkg reads vcpkg.json manifests and the status database vcpkg keeps in
// its installed tree. Manifest dependencies are explicit; host tools are
// development-only. Installed ports carry their triplet and port version.
type Vcpkg struct {
	detector.Base
	log *log.Logger
}

// NewVcpkg returns the vcpkg detector.
func NewVcpkg(env detector.Env) detector.Detector {
	return &Vcpkg{
		Base: detector.Base{
			Name:     VcpkgID,
			Types:    []component.Type{component.TypeVcpkg},
			Patterns: []string{"vcpkg.json", "**/vcpkg/status"},
			Cats:     []string{"cpp", "vcpkg"},
			Rev:      1,
		},
		log: env.Log(),
	}
}

func (v *Vcpkg) OnFileFound(ctx context.Context, s detector.ComponentStream, rec detector.Recorder, _ detector.Args) error {
	if path.Base(s.Location()) == "status" {
		return v.status(s, rec)
	}
	return v.manifest(s, rec)
}

type vcpkgManifest struct {
	Dependencies []vcpkgDependency `json:"dependencies"`
	Overrides    []struct {
		Name        string `json:"name"`
		Version     string `json:"version"`
		PortVersion int    `json:"port-version"`
	} `json:"overrides"`
}

// vcpkgDependency is either a bare port name or an object.
type vcpkgDependency struct {
	Name       string `json:"name"`
	MinVersion string `json:"version>="`
	Host       bool   `json:"host"`
}

func (d *vcpkgDependency) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		return json.Unmarshal(b, &d.Name)
	}
	type plain vcpkgDependency
	return json.Unmarshal(b, (*plain)(d))
}

func (v *Vcpkg) manifest(s detector.ComponentStream, rec detector.Recorder) error {
	var m vcpkgManifest
	if err := json.NewDecoder(s.Reader()).Decode(&m); err != nil {
		v.log.Warn("unparsable manifest", "detector", VcpkgID, "file", s.Location(), "err", err)
		return nil
	}
	pinned := make(map[string]string, len(m.Overrides))
	ports := make(map[string]string, len(m.Overrides))
	for _, o := range m.Overrides {
		pinned[o.Name] = o.Version
		if o.PortVersion > 0 {
			ports[o.Name] = strconv.Itoa(o.PortVersion)
		}
	}
	for _, dep := range m.Dependencies {
		if dep.Name == "" {
			continue
		}
		version := dep.MinVersion
		if p, ok := pinned[dep.Name]; ok {
			version = p
		}
		err := rec.RegisterUsage(component.New(component.Vcpkg(dep.Name, version, "", ports[dep.Name])),
			recorder.Explicit(), recorder.If(dep.Host, recorder.Development()))
		if err != nil {
			return err
		}
	}
	return nil
}

type installedPort struct {
	id      component.Identity
	triplet string
	depends []string
}

func (v *Vcpkg) status(s detector.ComponentStream, rec detector.Recorder) error {
	paragraphs, errf := control.Paragraphs(s.Reader())

	var ports []installedPort
	byKey := make(map[string]component.Identity)
	for p := range paragraphs {
		// Feature paragraphs repeat the package name; only the core
		// paragraph identifies the port.
		if p["Feature"] != "" || p["Package"] == "" || !installed(p["Status"]) {
			continue
		}
		triplet := p["Architecture"]
		id := component.Vcpkg(p["Package"], p["Version"], triplet, p["Port-Version"])
		ports = append(ports, installedPort{id: id, triplet: triplet, depends: control.List(p["Depends"])})
		byKey[p["Package"]+":"+triplet] = id
	}
	if err := errf(); err != nil {
		v.log.Warn("unreadable status file", "detector", VcpkgID, "file", s.Location(), "err", err)
		return nil
	}

	for _, port := range ports {
		if err := rec.RegisterUsage(component.New(port.id)); err != nil {
			return err
		}
	}
	for _, port := range ports {
		for _, dep := range port.depends {
			name, triplet, ok := strings.Cut(dep, ":")
			if !ok {
				triplet = port.triplet
			}
			child, ok := byKey[name+":"+triplet]
			if !ok {
				continue
			}
			if err := rec.RegisterUsage(component.New(child), recorder.WithParent(port.id)); err != nil {
				return err
			}
		}
	}
	return nil
}

// installed reports whether a dpkg-style Status field says the package is
// present.
func installed(status string) bool {
	f := strings.Fields(status)
	return len(f) == 3 && f[0] == "install" && f[2] == "installed"
}
