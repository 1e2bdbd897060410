package recorder

import "github.com/matzehuels/depscout/pkg/component"

// Usage describes how a component is used by the file being recorded.
// The zero value is a transitive production dependency with no parent.
type Usage struct {
	Explicit    bool               `json:"explicit,omitempty"`
	Development bool               `json:"development,omitempty"`
	Parent      component.Identity `json:"parent,omitzero"`
}

// HasParent reports whether u names a parent component.
func (u Usage) HasParent() bool { return !u.Parent.IsZero() }

// UsageOption adjusts a [Usage].
type UsageOption func(*Usage)

// Explicit marks the component as a direct dependency of the file.
func Explicit() UsageOption {
	return func(u *Usage) { u.Explicit = true }
}

// Development marks the component as needed only for development.
func Development() UsageOption {
	return func(u *Usage) { u.Development = true }
}

// WithParent records that parent depends on the component.
func WithParent(parent component.Identity) UsageOption {
	return func(u *Usage) { u.Parent = parent }
}

// If applies opt only when cond holds. Detectors use it for flags read
// from the file.
func If(cond bool, opt UsageOption) UsageOption {
	if !cond {
		return func(*Usage) {}
	}
	return opt
}

// Registration is one recorded RegisterUsage call. The log of registrations
// is what the result cache stores and replays.
type Registration struct {
	Component component.Detected `json:"component"`
	Usage     Usage              `json:"usage"`
}
