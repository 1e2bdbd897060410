// Package dockerfile detects the base images a Dockerfile builds from.
package dockerfile

import (
	"bufio"
	"context"
	"path"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/depscout/pkg/component"
	"github.com/matzehuels/depscout/pkg/detector"
	"github.com/matzehuels/depscout/pkg/recorder"
)

// ID is the detector id.
const ID = "dockerfile"

var varRE = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::?-([^}]*))?\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// Detector records the images named in FROM and COPY --from instructions.
// Build stage names are not images. Every Dockerfile found is announced
// as a container build context on the scan's signal channel.
type Detector struct {
	detector.Base
	env detector.Env
	log *log.Logger
}

// New returns the Dockerfile detector.
func New(env detector.Env) detector.Detector {
	return &Detector{
		Base: detector.Base{
			Name:     ID,
			Types:    []component.Type{component.TypeDockerReference},
			Patterns: []string{"Dockerfile", "*.Dockerfile"},
			Cats:     []string{"docker"},
			Rev:      1,
			Gating:   detector.Experimental,
		},
		env: env,
		log: env.Log(),
	}
}

type instruction struct {
	cmd  string
	args []string
}

func (d *Detector) OnFileFound(ctx context.Context, s detector.ComponentStream, rec detector.Recorder, _ detector.Args) error {
	instructions, err := parse(s)
	if err != nil {
		d.log.Warn("unreadable Dockerfile", "detector", ID, "file", s.Location(), "err", err)
		return nil
	}

	vars := map[string]string{}
	stages := map[string]bool{}
	var first string
	for _, in := range instructions {
		var ref, stage string
		switch in.cmd {
		case "ARG":
			for _, a := range in.args {
				k, v, _ := strings.Cut(a, "=")
				if _, ok := vars[k]; !ok || v != "" {
					vars[k] = strings.Trim(v, `"'`)
				}
			}
			continue
		case "FROM":
			args := withoutFlags(in.args)
			if len(args) == 0 {
				continue
			}
			ref = args[0]
			if len(args) >= 3 && strings.EqualFold(args[1], "AS") {
				stage = strings.ToLower(args[2])
			}
		case "COPY":
			for _, a := range in.args {
				if v, ok := strings.CutPrefix(a, "--from="); ok {
					ref = v
				}
			}
		}
		if err := d.record(rec, s.Location(), expand(ref, vars), stages, &first); err != nil {
			return err
		}
		if stage != "" {
			stages[stage] = true
		}
	}

	return d.env.Publish(ctx, detector.Signal{
		Kind:     detector.SignalContainerBuildContext,
		Dir:      path.Dir(s.Location()),
		Detector: ID,
		Ref:      first,
	})
}

func (d *Detector) record(rec detector.Recorder, loc, ref string, stages map[string]bool, first *string) error {
	if ref == "" || ref == "scratch" || stages[strings.ToLower(ref)] {
		return nil
	}
	if strings.Contains(ref, "$") {
		d.log.Debug("unresolved image reference", "detector", ID, "file", loc, "ref", ref)
		return nil
	}
	id, ok := ParseReference(ref)
	if !ok {
		return nil
	}
	if *first == "" {
		*first = ref
	}
	return rec.RegisterUsage(component.New(id), recorder.Explicit())
}

// parse splits the file into instructions, joining continuation lines and
// dropping comments.
func parse(s detector.ComponentStream) ([]instruction, error) {
	var out []instruction
	var pending strings.Builder
	flush := func() {
		fields := strings.Fields(pending.String())
		pending.Reset()
		if len(fields) > 0 {
			out = append(out, instruction{cmd: strings.ToUpper(fields[0]), args: fields[1:]})
		}
	}

	sc := bufio.NewScanner(s.Reader())
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "#") {
			continue
		}
		if cont, ok := strings.CutSuffix(line, `\`); ok {
			pending.WriteString(cont)
			pending.WriteByte(' ')
			continue
		}
		pending.WriteString(line)
		flush()
	}
	flush()
	return out, sc.Err()
}

func withoutFlags(args []string) []string {
	out := args[:0:0]
	for _, a := range args {
		if !strings.HasPrefix(a, "--") {
			out = append(out, a)
		}
	}
	return out
}

// expand substitutes $VAR, ${VAR} and ${VAR:-default}. Unknown variables
// without a default are left in place.
func expand(s string, vars map[string]string) string {
	return varRE.ReplaceAllStringFunc(s, func(m string) string {
		sub := varRE.FindStringSubmatch(m)
		name, def := sub[1], sub[2]
		if name == "" {
			name = sub[3]
		}
		if v, ok := vars[name]; ok && v != "" {
			return v
		}
		if strings.Contains(m, "-") {
			return def
		}
		return m
	})
}

// ParseReference splits an image reference such as
// "registry:5000/team/app:1.2@sha256:..." into repository, tag and digest.
func ParseReference(ref string) (component.Identity, bool) {
	ref = strings.TrimSpace(ref)
	repo, digest, _ := strings.Cut(ref, "@")
	tag := ""
	if i := strings.LastIndexByte(repo, ':'); i > strings.LastIndexByte(repo, '/') {
		repo, tag = repo[:i], repo[i+1:]
	}
	if repo == "" || strings.ContainsAny(repo, " \t") {
		return component.Identity{}, false
	}
	if tag == "" && digest == "" {
		tag = "latest"
	}
	return component.DockerReference(repo, tag, digest), true
}
