package fswalk

// Hit is a (target, pattern) pair selected by a [Matcher].
type Hit[T any] struct {
	Target  T
	Pattern string
}

// Matcher pairs paths with every target whose patterns match. Each target
// is returned at most once per path, with the first matching pattern.
type Matcher[T any] struct {
	entries []matcherEntry[T]
}

type matcherEntry[T any] struct {
	target   T
	patterns []string
}

// Add registers target under patterns.
func (m *Matcher[T]) Add(target T, patterns ...string) {
	m.entries = append(m.entries, matcherEntry[T]{target: target, patterns: patterns})
}

// Len returns the number of registered targets.
func (m *Matcher[T]) Len() int { return len(m.entries) }

// Match returns the hits for rel in registration order.
func (m *Matcher[T]) Match(rel string) []Hit[T] {
	var hits []Hit[T]
	for _, e := range m.entries {
		for _, p := range e.patterns {
			if Match(p, rel) {
				hits = append(hits, Hit[T]{Target: e.target, Pattern: p})
				break
			}
		}
	}
	return hits
}
