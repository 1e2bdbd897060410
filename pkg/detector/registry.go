package detector

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/matzehuels/depscout/pkg/errors"
)

// Factory builds a detector from an [Env].
type Factory func(Env) Detector

// Registry is the explicit list of detector factories a scan can use.
type Registry struct {
	mu        sync.RWMutex
	factories []Factory
}

// NewRegistry returns a registry holding the given factories.
func NewRegistry(factories ...Factory) *Registry {
	r := &Registry{}
	for _, f := range factories {
		r.Register(f)
	}
	return r
}

// Register adds a factory.
func (r *Registry) Register(f Factory) {
	if f == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories = append(r.factories, f)
}

// Len returns the number of registered factories.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.factories)
}

// Build constructs every registered detector with env, sorted by id.
// Duplicate ids are rejected.
func (r *Registry) Build(env Env) ([]Detector, error) {
	r.mu.RLock()
	factories := slices.Clone(r.factories)
	r.mu.RUnlock()

	seen := make(map[string]bool, len(factories))
	out := make([]Detector, 0, len(factories))
	for _, f := range factories {
		d := f(env)
		if d == nil {
			continue
		}
		id := d.ID()
		if id == "" {
			return nil, errors.New(errors.ErrCodeInvalidConfig, "detector with empty id registered")
		}
		if seen[id] {
			return nil, errors.New(errors.ErrCodeInvalidConfig, "duplicate detector id %q", id)
		}
		for _, p := range d.SearchPatterns() {
			if err := errors.ValidatePattern(p); err != nil {
				return nil, fmt.Errorf("detector %s: %w", id, err)
			}
		}
		seen[id] = true
		out = append(out, d)
	}
	slices.SortFunc(out, func(a, b Detector) int { return strings.Compare(a.ID(), b.ID()) })
	return out, nil
}

// Infos describes every detector the registry builds with a zero [Env].
func (r *Registry) Infos() ([]Info, error) {
	ds, err := r.Build(Env{})
	if err != nil {
		return nil, err
	}
	out := make([]Info, len(ds))
	for i, d := range ds {
		out[i] = Describe(d)
	}
	return out, nil
}
