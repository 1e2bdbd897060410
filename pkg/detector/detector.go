// Package detector defines the contract every ecosystem detector implements
// and the registry the scan builds detectors from.
//
// A detector is a stateless parser. The scan hands it one matched file at a
// time through [ComponentStream] together with a fresh [Recorder]; the
// detector decodes the file and registers what it finds. Parse problems are
// logged and answered with an empty contribution, not an error.
package detector

import (
	"context"
	"io"

	"github.com/matzehuels/depscout/pkg/component"
	"github.com/matzehuels/depscout/pkg/recorder"
)

// Gate controls whether a detector runs without being asked for.
type Gate int

const (
	// DefaultOn detectors run unless disabled.
	DefaultOn Gate = iota
	// DefaultOff detectors run only when enabled by id.
	DefaultOff
	// Experimental detectors run when experimental detectors are enabled or
	// when enabled by id.
	Experimental
)

func (g Gate) String() string {
	switch g {
	case DefaultOn:
		return "on"
	case DefaultOff:
		return "off"
	case Experimental:
		return "experimental"
	}
	return "unknown"
}

// Detector parses one ecosystem's manifests or lock files.
type Detector interface {
	// ID is the unique, stable detector name used in filters and reports.
	ID() string
	SupportedComponentTypes() []component.Type
	// SearchPatterns are doublestar globs. A pattern without a slash is
	// matched against the file's base name.
	SearchPatterns() []string
	Categories() []string
	// Version changes whenever the detector's output for a given input may
	// change. It is part of the result cache key.
	Version() int
	Gate() Gate
	OnFileFound(ctx context.Context, stream ComponentStream, rec Recorder, args Args) error
}

// ComponentStream is one matched file.
type ComponentStream interface {
	// Reader returns the file content. It can be read once.
	Reader() io.Reader
	// Location is the slash-separated path relative to the scan root.
	Location() string
	// Pattern is the search pattern that matched.
	Pattern() string
}

// Recorder is the part of [recorder.SingleFileRecorder] a detector may use.
type Recorder interface {
	RegisterUsage(c component.Detected, opts ...recorder.UsageOption) error
	RegisterUsageWith(c component.Detected, u recorder.Usage) error
	Location() string
	DetectorID() string
}

var _ Recorder = (*recorder.SingleFileRecorder)(nil)

type stream struct {
	r        io.Reader
	location string
	pattern  string
}

// NewStream wraps r as a [ComponentStream].
func NewStream(r io.Reader, location, pattern string) ComponentStream {
	return &stream{r: r, location: location, pattern: pattern}
}

func (s *stream) Reader() io.Reader { return s.r }
func (s *stream) Location() string  { return s.location }
func (s *stream) Pattern() string   { return s.pattern }

// Base carries the static description of a detector. Detectors embed it
// and add OnFileFound.
type Base struct {
	Name     string
	Types    []component.Type
	Patterns []string
	Cats     []string
	Rev      int
	Gating   Gate
}

func (b Base) ID() string                                { return b.Name }
func (b Base) SupportedComponentTypes() []component.Type { return b.Types }
func (b Base) SearchPatterns() []string                  { return b.Patterns }
func (b Base) Categories() []string                      { return b.Cats }
func (b Base) Version() int                              { return b.Rev }
func (b Base) Gate() Gate                                { return b.Gating }

// Info is a serializable description of a detector.
type Info struct {
	ID         string   `json:"id"`
	Version    int      `json:"version"`
	Gate       string   `json:"gate"`
	Categories []string `json:"categories"`
	Patterns   []string `json:"patterns"`
	Types      []string `json:"types"`
}

// Describe returns the [Info] for d.
func Describe(d Detector) Info {
	types := make([]string, 0, len(d.SupportedComponentTypes()))
	for _, t := range d.SupportedComponentTypes() {
		types = append(types, t.String())
	}
	return Info{
		ID:         d.ID(),
		Version:    d.Version(),
		Gate:       d.Gate().String(),
		Categories: d.Categories(),
		Patterns:   d.SearchPatterns(),
		Types:      types,
	}
}
