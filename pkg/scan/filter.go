package scan

import (
	"slices"

	"github.com/matzehuels/depscout/pkg/detector"
	"github.com/matzehuels/depscout/pkg/errors"
)

// Select applies the detector filters of opts to ds. Unknown categories or
// ids and contradictory filters are rejected with INVALID_FILTER.
func Select(ds []detector.Detector, opts Options) ([]detector.Detector, error) {
	ids := make(map[string]bool, len(ds))
	cats := make(map[string]bool)
	for _, d := range ds {
		ids[d.ID()] = true
		for _, c := range d.Categories() {
			cats[c] = true
		}
	}

	for _, c := range append(slices.Clone(opts.Categories), opts.ExcludeCategories...) {
		if !cats[c] {
			return nil, errors.New(errors.ErrCodeInvalidFilter, "unknown detector category %q", c)
		}
	}
	for _, id := range append(slices.Clone(opts.DetectorIDs), opts.DisabledDetectorIDs...) {
		if !ids[id] {
			return nil, errors.New(errors.ErrCodeInvalidFilter, "unknown detector %q", id)
		}
	}
	for _, c := range opts.Categories {
		if slices.Contains(opts.ExcludeCategories, c) {
			return nil, errors.New(errors.ErrCodeInvalidFilter, "category %q is both included and excluded", c)
		}
	}
	for _, id := range opts.DetectorIDs {
		if slices.Contains(opts.DisabledDetectorIDs, id) {
			return nil, errors.New(errors.ErrCodeInvalidFilter, "detector %q is both enabled and disabled", id)
		}
	}

	var out []detector.Detector
	for _, d := range ds {
		if active(d, opts) {
			out = append(out, d)
		}
	}
	return out, nil
}

func active(d detector.Detector, opts Options) bool {
	if slices.Contains(opts.DisabledDetectorIDs, d.ID()) {
		return false
	}
	if len(opts.DetectorIDs) > 0 {
		if !slices.Contains(opts.DetectorIDs, d.ID()) {
			return false
		}
	} else {
		switch d.Gate() {
		case detector.DefaultOff:
			return false
		case detector.Experimental:
			if !opts.EnableExperimental {
				return false
			}
		}
	}
	if len(opts.Categories) > 0 && !overlaps(d.Categories(), opts.Categories) {
		return false
	}
	return !overlaps(d.Categories(), opts.ExcludeCategories)
}

func overlaps(a, b []string) bool {
	for _, x := range a {
		if slices.Contains(b, x) {
			return true
		}
	}
	return false
}
