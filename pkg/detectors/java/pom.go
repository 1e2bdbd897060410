// Package java detects Maven artifacts from pom.xml files.
package java

import (
	"context"
	"encoding/xml"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/depscout/pkg/component"
	"github.com/matzehuels/depscout/pkg/detector"
	"github.com/matzehuels/depscout/pkg/recorder"
)

// ID is the detector id.
const ID = "maven"

var propertyRE = regexp.MustCompile(`\$\{([^}]+)\}`)

// POM reads the dependencies declared in a pom.xml. Every declared
// dependency is explicit; test and provided scopes are development-only.
// Versions are resolved against the POM's own properties. Dependencies
// whose coordinates stay unresolved are skipped.
type POM struct {
	detector.Base
	log *log.Logger
}

// New returns the Maven POM detector.
func New(env detector.Env) detector.Detector {
	return &POM{
		Base: detector.Base{
			Name:     ID,
			Types:    []component.Type{component.TypeMaven},
			Patterns: []string{"pom.xml"},
			Cats:     []string{"java", "maven"},
			Rev:      1,
		},
		log: env.Log(),
	}
}

type pomProject struct {
	GroupID      string          `xml:"groupId"`
	ArtifactID   string          `xml:"artifactId"`
	Version      string          `xml:"version"`
	Parent       *pomParent      `xml:"parent"`
	Properties   pomProperties   `xml:"properties"`
	Dependencies []pomDependency `xml:"dependencies>dependency"`
	Managed      []pomDependency `xml:"dependencyManagement>dependencies>dependency"`
}

type pomParent struct {
	GroupID    string `xml:"groupId"`
	ArtifactID string `xml:"artifactId"`
	Version    string `xml:"version"`
}

type pomProperties struct {
	Entries []struct {
		XMLName xml.Name
		Value   string `xml:",chardata"`
	} `xml:",any"`
}

type pomDependency struct {
	GroupID    string `xml:"groupId"`
	ArtifactID string `xml:"artifactId"`
	Version    string `xml:"version"`
	Scope      string `xml:"scope"`
	Optional   string `xml:"optional"`
}

func (d pomDependency) dev() bool {
	return d.Scope == "test" || d.Scope == "provided"
}

func (p *POM) OnFileFound(ctx context.Context, s detector.ComponentStream, rec detector.Recorder, _ detector.Args) error {
	var pom pomProject
	if err := xml.NewDecoder(s.Reader()).Decode(&pom); err != nil {
		p.log.Warn("unparsable pom", "detector", ID, "file", s.Location(), "err", err)
		return nil
	}

	props := pom.properties()
	managed := make(map[string]string, len(pom.Managed))
	for _, m := range pom.Managed {
		managed[expand(m.GroupID, props)+":"+expand(m.ArtifactID, props)] = expand(m.Version, props)
	}

	for _, dep := range pom.Dependencies {
		group, artifact := expand(dep.GroupID, props), expand(dep.ArtifactID, props)
		version := expand(dep.Version, props)
		if version == "" {
			version = managed[group+":"+artifact]
		}
		if unresolved(group) || unresolved(artifact) || unresolved(version) {
			p.log.Debug("skipping unresolved dependency", "detector", ID, "file", s.Location(),
				"group", group, "artifact", artifact, "version", version)
			continue
		}
		err := rec.RegisterUsage(component.New(component.Maven(group, artifact, version)),
			recorder.Explicit(), recorder.If(dep.dev(), recorder.Development()))
		if err != nil {
			return err
		}
	}
	return nil
}

// properties collects the values ${...} references may use: declared
// properties plus the project coordinates, which default to the parent's.
func (p pomProject) properties() map[string]string {
	props := make(map[string]string, len(p.Properties.Entries)+6)
	for _, e := range p.Properties.Entries {
		props[e.XMLName.Local] = strings.TrimSpace(e.Value)
	}
	group, version := p.GroupID, p.Version
	if p.Parent != nil {
		props["project.parent.groupId"] = p.Parent.GroupID
		props["project.parent.version"] = p.Parent.Version
		if group == "" {
			group = p.Parent.GroupID
		}
		if version == "" {
			version = p.Parent.Version
		}
	}
	props["project.groupId"] = group
	props["project.artifactId"] = p.ArtifactID
	props["project.version"] = version
	props["pom.version"] = version
	return props
}

// expand substitutes property references, following chains a few levels
// deep. Unknown references are left in place.
func expand(s string, props map[string]string) string {
	s = strings.TrimSpace(s)
	for range 5 {
		if !strings.Contains(s, "${") {
			break
		}
		s = propertyRE.ReplaceAllStringFunc(s, func(ref string) string {
			if v, ok := props[ref[2:len(ref)-1]]; ok {
				return v
			}
			return ref
		})
	}
	return s
}

func unresolved(s string) bool {
	return s == "" || strings.Contains(s, "${")
}
