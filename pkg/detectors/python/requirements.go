package python

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

// PipID is the pip detector id.
const PipID = "pip"

var (
	depNameRE = regexp.MustCompile(`^([a-zA-Z0-9][-a-zA-Z0-9._]*)(\[[^\]]*\])?\s*(.*)$`)
	pinRE     = regexp.MustCompile(`^===?\s*([^\s,;]+)$`)
)

// Requirements reads pip requirements files. Only exact pins identify a
// version; ranges are skipped.
type Requirements struct {
	detector.Base
	log *log.Logger
}

// NewRequirements returns the requirements file detector.
func NewRequirements(env detector.Env) detector.Detector {
	return &Requirements{
		Base: detector.Base{
			Name:     PipID,
			Types:    []component.Type{component.TypePip},
			Patterns: []string{"requirements*.txt"},
			Cats:     []string{"python", "pip"},
			Rev:      1,
		},
		log: env.Log(),
	}
}

func (r *Requirements) OnFileFound(ctx context.Context, s detector.ComponentStream, rec detector.Recorder, _ detector.Args) error {
	dev := isDevFile(path.Base(s.Location()))

	scanner := bufio.NewScanner(s.Reader())
	for scanner.Scan() {
		name, version, ok := parseRequirement(scanner.Text())
		if !ok {
			continue
		}
		if version == "" {
			r.log.Debug("skipping unpinned requirement", "detector", PipID, "file", s.Location(), "package", name)
			continue
		}
		err := rec.RegisterUsage(component.New(component.Pip(name, version)),
			recorder.Explicit(), recorder.If(dev, recorder.Development()))
		if err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		r.log.Warn("unreadable requirements file", "detector", PipID, "file", s.Location(), "err", err)
	}
	return nil
}

// parseRequirement returns the normalized name and pinned version of one
// requirements line. Options, URLs and VCS references are not packages.
func parseRequirement(line string) (name, version string, ok bool) {
	if i := strings.Index(line, " #"); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSpace(line)
	if line == "" || line[0] == '#' || line[0] == '-' {
		return "", "", false
	}
	if strings.Contains(line, "://") || strings.HasPrefix(line, "git+") {
		return "", "", false
	}
	if i := strings.IndexByte(line, ';'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	m := depNameRE.FindStringSubmatch(line)
	if m == nil {
		return "", "", false
	}
	name = normalize(m[1])
	if pin := pinRE.FindStringSubmatch(strings.TrimSpace(m[3])); pin != nil {
		version = pin[1]
	}
	return name, version, true
}

// isDevFile recognizes the usual names of development requirement sets,
// such as requirements-dev.txt and requirements_test.txt.
func isDevFile(base string) bool {
	stem := strings.TrimSuffix(strings.TrimPrefix(base, "requirements"), ".txt")
	stem = strings.TrimLeft(stem, "-_.")
	switch stem {
	case "dev", "devel", "development", "test", "tests", "testing", "lint", "docs":
		return true
	}
	return false
}
