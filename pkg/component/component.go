package component

import "slices"

// Detected is an identity as reported by a detector, plus the metadata that
// travels with it into the merged graph.
type Detected struct {
	Identity Identity `json:"identity"`

	// FileHash is a content hash for artifact-like components, such as the
	// SHA-1 of an SPDX document. Empty for ordinary packages.
	FileHash string `json:"fileHash,omitempty"`

	// DetectorID names the detector that first reported the component.
	DetectorID string `json:"detectorId,omitempty"`

	// Locations holds the files the component was found in, sorted and
	// deduplicated.
	Locations []string `json:"locations,omitempty"`
}

// New wraps id with no metadata.
func New(id Identity) Detected {
	return Detected{Identity: id}
}

// WithLocations returns a copy of d with locs merged into its location set.
func (d Detected) WithLocations(locs ...string) Detected {
	d.Locations = MergeLocations(d.Locations, locs)
	return d
}

// MergeLocations returns the sorted union of a and b without empty entries.
// Neither input is modified.
func MergeLocations(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	for _, s := range a {
		if s != "" {
			out = append(out, s)
		}
	}
	for _, s := range b {
		if s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	slices.Sort(out)
	return slices.Compact(out)
}
