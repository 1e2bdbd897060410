package recorder

import (
	"fmt"
	"slices"

	"github.com/matzehuels/depscout/pkg/component"
	"github.com/matzehuels/depscout/pkg/depgraph"
	"github.com/matzehuels/depscout/pkg/errors"
)

// ErrInvalidComponent is returned when a registration carries an identity
// without a name. The recorder is left unchanged.
var ErrInvalidComponent = errors.New(errors.ErrCodeInvalidComponent, "invalid component identity")

// SingleFileRecorder collects what one detector found in one file. It owns a
// private graph and is never shared between units, so it has no locking.
type SingleFileRecorder struct {
	location   string
	detectorID string
	graph      *depgraph.Graph
	log        []Registration
}

// NewSingleFile creates a recorder for the file at location, as seen by the
// detector with the given id.
func NewSingleFile(location, detectorID string) *SingleFileRecorder {
	return &SingleFileRecorder{
		location:   location,
		detectorID: detectorID,
		graph:      depgraph.New(),
	}
}

// Location returns the path of the recorded file relative to the scan root.
func (r *SingleFileRecorder) Location() string { return r.location }

// DetectorID returns the id of the detector writing to this recorder.
func (r *SingleFileRecorder) DetectorID() string { return r.detectorID }

// RegisterUsage records c with the given options. Registering the same tuple
// twice has no further effect.
func (r *SingleFileRecorder) RegisterUsage(c component.Detected, opts ...UsageOption) error {
	var u Usage
	for _, opt := range opts {
		opt(&u)
	}
	return r.RegisterUsageWith(c, u)
}

// RegisterUsageWith is [SingleFileRecorder.RegisterUsage] taking a struct.
func (r *SingleFileRecorder) RegisterUsageWith(c component.Detected, u Usage) error {
	if err := c.Identity.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidComponent, err)
	}
	if u.HasParent() {
		if err := u.Parent.Validate(); err != nil {
			return fmt.Errorf("%w: parent: %v", ErrInvalidComponent, err)
		}
	}

	i, n := r.graph.Ensure(c.Identity)
	n.Observe(u.Explicit, u.Development)
	n.AddLocation(r.location)
	for _, loc := range c.Locations {
		n.AddLocation(loc)
	}
	n.SetFileHash(c.FileHash)
	if r.detectorID != "" {
		n.AddDetector(r.detectorID)
	} else {
		n.AddDetector(c.DetectorID)
	}

	if u.HasParent() {
		p, pn := r.graph.Ensure(u.Parent)
		pn.AddLocation(r.location)
		if _, err := r.graph.AddEdge(i, p); err != nil {
			return err
		}
	}

	r.log = append(r.log, Registration{Component: c, Usage: u})
	return nil
}

// Replay re-applies a registration log, stopping at the first invalid
// entry.
func (r *SingleFileRecorder) Replay(regs []Registration) error {
	for _, reg := range regs {
		if err := r.RegisterUsageWith(reg.Component, reg.Usage); err != nil {
			return err
		}
	}
	return nil
}

// Registrations returns a copy of every successful registration in call
// order.
func (r *SingleFileRecorder) Registrations() []Registration {
	return slices.Clone(r.log)
}

// Graph returns a read-only view of the file's graph. The view reflects
// later registrations only for node data, not for its root set.
func (r *SingleFileRecorder) Graph() *Graph {
	return newGraph(r.graph)
}

// Components returns the recorded components sorted by identity.
func (r *SingleFileRecorder) Components() []Component {
	return r.Graph().Components()
}

// Len returns the number of distinct components, placeholders included.
func (r *SingleFileRecorder) Len() int { return r.graph.Len() }
