package scan

import (
	"slices"
	"strings"
	"time"

	"github.com/matzehuels/depscout/pkg/detector"
	"github.com/matzehuels/depscout/pkg/recorder"
)

// Status is the outcome of one (detector, file) unit.
type Status string

const (
	StatusOK       Status = "ok"
	StatusCached   Status = "cached"
	StatusFailed   Status = "failed"
	StatusTimeout  Status = "timeout"
	StatusCanceled Status = "canceled"
)

// Contributed reports whether units with this status were merged into the
// graph.
func (s Status) Contributed() bool {
	return s == StatusOK || s == StatusCached
}

// FileRun reports one detector run on one file.
type FileRun struct {
	DetectorID     string        `json:"detector"`
	Location       string        `json:"location"`
	Pattern        string        `json:"pattern"`
	Duration       time.Duration `json:"duration"`
	ComponentCount int           `json:"components"`
	Status         Status        `json:"status"`
	Err            string        `json:"error,omitempty"`
}

// DetectorRun aggregates the units of one detector.
type DetectorRun struct {
	ID         string        `json:"id"`
	Version    int           `json:"version"`
	Files      int           `json:"files"`
	Components int           `json:"components"`
	CacheHits  int           `json:"cacheHits"`
	Failures   int           `json:"failures"`
	Timeouts   int           `json:"timeouts"`
	Duration   time.Duration `json:"duration"`
}

// Result is the outcome of a scan. Components and failed units are reported
// separately: a failed unit contributes nothing to Graph.
type Result struct {
	ID        string            `json:"id"`
	Root      string            `json:"root"`
	StartedAt time.Time         `json:"startedAt"`
	Duration  time.Duration     `json:"duration"`
	Graph     *recorder.Graph   `json:"-"`
	Detectors []DetectorRun     `json:"detectors"`
	Files     []FileRun         `json:"files"`
	Signals   []detector.Signal `json:"signals,omitempty"`
}

// Failed returns the units that did not contribute, in report order.
func (r *Result) Failed() []FileRun {
	var out []FileRun
	for _, f := range r.Files {
		if !f.Status.Contributed() {
			out = append(out, f)
		}
	}
	return out
}

func summarize(active []detector.Detector, files []FileRun) []DetectorRun {
	byID := make(map[string]*DetectorRun, len(active))
	out := make([]DetectorRun, len(active))
	for i, d := range active {
		out[i] = DetectorRun{ID: d.ID(), Version: d.Version()}
		byID[d.ID()] = &out[i]
	}
	for _, f := range files {
		run := byID[f.DetectorID]
		if run == nil {
			continue
		}
		run.Files++
		run.Duration += f.Duration
		switch f.Status {
		case StatusOK:
			run.Components += f.ComponentCount
		case StatusCached:
			run.Components += f.ComponentCount
			run.CacheHits++
		case StatusTimeout:
			run.Timeouts++
		case StatusFailed, StatusCanceled:
			run.Failures++
		}
	}
	return out
}

func sortFiles(files []FileRun) {
	slices.SortFunc(files, func(a, b FileRun) int {
		if c := strings.Compare(a.Location, b.Location); c != 0 {
			return c
		}
		return strings.Compare(a.DetectorID, b.DetectorID)
	})
}

func sortSignals(sigs []detector.Signal) {
	slices.SortFunc(sigs, func(a, b detector.Signal) int {
		if c := strings.Compare(a.Dir, b.Dir); c != 0 {
			return c
		}
		if c := strings.Compare(string(a.Kind), string(b.Kind)); c != 0 {
			return c
		}
		if c := strings.Compare(a.Ref, b.Ref); c != 0 {
			return c
		}
		return strings.Compare(a.Detector, b.Detector)
	})
}
