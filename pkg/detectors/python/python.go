// Package python detects PyPI packages from poetry.lock files and pip
// requirements files.
package python

import (
	"regexp"
	"strings"
)

var separators = regexp.MustCompile(`[-_.]+`)

// normalize applies PEP 503 name normalization.
func normalize(name string) string {
	return separators.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
}
