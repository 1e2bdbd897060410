package component

import (
	"cmp"
	"maps"
	"slices"
	"strings"

	"github.com/package-url/packageurl-go"

	"github.com/matzehuels/depscout/pkg/errors"
)

// Qualifiers is the canonical, sorted "k=v&k=v" encoding of an identity's
// qualifier pairs. Keeping it a string keeps [Identity] comparable so it can
// key maps directly.
type Qualifiers string

// NewQualifiers builds qualifiers from alternating key/value arguments.
// Pairs with an empty value are dropped. A trailing key without a value is
// ignored.
func NewQualifiers(kv ...string) Qualifiers {
	m := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		m[kv[i]] = kv[i+1]
	}
	return QualifiersFromMap(m)
}

// QualifiersFromMap builds qualifiers from a map.
func QualifiersFromMap(m map[string]string) Qualifiers {
	keys := slices.Sorted(maps.Keys(m))
	var b strings.Builder
	for _, k := range keys {
		v := m[k]
		if k == "" || v == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(v)
	}
	return Qualifiers(b.String())
}

// Get returns the value for key, or "" when absent.
func (q Qualifiers) Get(key string) string {
	for pair := range strings.SplitSeq(string(q), "&") {
		k, v, ok := strings.Cut(pair, "=")
		if ok && k == key {
			return v
		}
	}
	return ""
}

// Map decodes the qualifiers. It returns nil when there are none.
func (q Qualifiers) Map() map[string]string {
	if q == "" {
		return nil
	}
	m := make(map[string]string)
	for pair := range strings.SplitSeq(string(q), "&") {
		if k, v, ok := strings.Cut(pair, "="); ok {
			m[k] = v
		}
	}
	return m
}

// Identity is the canonical identity of a component within its ecosystem.
// Two identities are equal iff every field is equal, so Identity is used
// directly as a map key.
type Identity struct {
	Type       Type       `json:"type"`
	Namespace  string     `json:"namespace,omitempty"`
	Name       string     `json:"name"`
	Version    string     `json:"version,omitempty"`
	Qualifiers Qualifiers `json:"qualifiers,omitempty"`
	Hash       string     `json:"hash,omitempty"`
}

// ID renders the canonical string form
// "type:namespace/name@version?k=v&k=v#hash". It is also the sort key.
func (id Identity) ID() string {
	var b strings.Builder
	b.WriteString(id.Type.String())
	b.WriteByte(':')
	if id.Namespace != "" {
		b.WriteString(id.Namespace)
		b.WriteByte('/')
	}
	b.WriteString(id.Name)
	if id.Version != "" {
		b.WriteByte('@')
		b.WriteString(id.Version)
	}
	if id.Qualifiers != "" {
		b.WriteByte('?')
		b.WriteString(string(id.Qualifiers))
	}
	if id.Hash != "" {
		b.WriteByte('#')
		b.WriteString(id.Hash)
	}
	return b.String()
}

// String implements fmt.Stringer.
func (id Identity) String() string { return id.ID() }

// IsZero reports whether id carries no name.
func (id Identity) IsZero() bool {
	return strings.TrimSpace(id.Name) == ""
}

// Validate rejects identities that cannot be recorded.
func (id Identity) Validate() error {
	if id.IsZero() {
		return errors.New(errors.ErrCodeInvalidComponent, "component identity has no name (type %s)", id.Type)
	}
	return errors.ValidateComponentName(id.Name)
}

// Compare orders identities field by field. The order is total and agrees
// with equality.
func Compare(a, b Identity) int {
	if c := cmp.Compare(a.Type.String(), b.Type.String()); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Namespace, b.Namespace); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Name, b.Name); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Version, b.Version); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Qualifiers, b.Qualifiers); c != 0 {
		return c
	}
	return cmp.Compare(a.Hash, b.Hash)
}

// Less reports whether a sorts before b.
func Less(a, b Identity) bool { return Compare(a, b) < 0 }

// PURL renders id as a package URL. Linux packages map to deb or apk by
// their distribution qualifier; SPDX documents have no package URL and
// return "".
func (id Identity) PURL() string {
	typ, ok := purlTypes[id.Type]
	quals := id.Qualifiers.Map()
	switch id.Type {
	case TypeLinux:
		ok = true
		typ = "deb"
		if d := strings.ToLower(quals["distribution"]); d == "alpine" || d == "wolfi" {
			typ = "apk"
		}
	case TypeVcpkg, TypeGit, TypeOther:
		if quals == nil {
			quals = map[string]string{}
		}
		quals["ecosystem"] = id.Type.String()
	}
	if !ok || id.IsZero() {
		return ""
	}
	p := packageurl.NewPackageURL(typ, id.Namespace, id.Name, id.Version,
		packageurl.QualifiersFromMap(quals), "")
	return p.ToString()
}
