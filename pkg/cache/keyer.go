package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strconv"
	"strings"
)

// Hash returns the hex SHA-256 of data. Scans use it as the content part of
// detector keys, and the file cache to name entries.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Unit describes one detector invocation on one file: everything that can
// change what the detector registers.
type Unit struct {
	DetectorID string
	Version    int
	// Name is the base name of the file. Detectors may branch on it, as
	// pip does for requirements-dev.txt.
	Name string
	// Pattern is the glob that matched the file.
	Pattern string
	// Args are the arguments handed to the detector, prefix removed.
	Args        map[string]string
	ContentHash string
}

// Keyer builds cache keys.
type Keyer interface {
	// DetectorKey identifies the output of one detector invocation.
	DetectorKey(u Unit) string
}

// DefaultKeyer produces keys of the form "det:<id>:v<version>:<digest>",
// where digest hashes the file name, the pattern, the sorted arguments and
// the content hash.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default key scheme.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// DetectorKey implements [Keyer].
func (DefaultKeyer) DetectorKey(u Unit) string {
	var b strings.Builder
	b.WriteString(u.Name)
	b.WriteByte(0)
	b.WriteString(u.Pattern)
	b.WriteByte(0)
	keys := make([]string, 0, len(u.Args))
	for k := range u.Args {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte(0)
		b.WriteString(u.Args[k])
		b.WriteByte(0)
	}
	b.WriteString(u.ContentHash)
	return "det:" + u.DetectorID + ":v" + strconv.Itoa(u.Version) + ":" + Hash([]byte(b.String()))
}

// ScopedKeyer prefixes every key of an inner keyer, giving separate
// namespaces to caches shared between projects.
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer wraps inner, or the default keyer when inner is nil.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

// DetectorKey implements [Keyer].
func (k *ScopedKeyer) DetectorKey(u Unit) string {
	return k.prefix + k.inner.DetectorKey(u)
}
