package errors

import (
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/bmatcuk/doublestar/v4"
)

// ValidateScanRoot checks that root names an existing directory and returns
// its absolute, cleaned form.
func ValidateScanRoot(root string) (string, error) {
	if strings.TrimSpace(root) == "" {
		return "", New(ErrCodeInvalidPath, "scan root cannot be empty")
	}
	for _, r := range root {
		if r == '\x00' || unicode.IsControl(r) {
			return "", New(ErrCodeInvalidPath, "scan root contains invalid characters")
		}
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", Wrap(ErrCodeInvalidPath, err, "resolve %q", root)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", Wrap(ErrCodeInvalidPath, err, "scan root %q", root)
	}
	if !info.IsDir() {
		return "", New(ErrCodeInvalidPath, "scan root %q is not a directory", root)
	}
	return abs, nil
}

// ValidatePattern checks a doublestar glob used for exclusions or detector
// search patterns.
func ValidatePattern(pattern string) error {
	if pattern == "" {
		return New(ErrCodeInvalidConfig, "glob pattern cannot be empty")
	}
	if strings.Contains(pattern, "\\") {
		return New(ErrCodeInvalidConfig, "glob pattern %q must use forward slashes", pattern)
	}
	if !doublestar.ValidatePattern(pattern) {
		return New(ErrCodeInvalidConfig, "invalid glob pattern %q", pattern)
	}
	return nil
}

// ValidateArgKey checks a detector argument key of the form "detector.name".
func ValidateArgKey(key string) error {
	if key == "" {
		return New(ErrCodeInvalidConfig, "argument key cannot be empty")
	}
	if len(key) > 128 {
		return New(ErrCodeInvalidConfig, "argument key too long (max 128 characters)")
	}
	for _, r := range key {
		if unicode.IsSpace(r) || unicode.IsControl(r) || r == '=' {
			return New(ErrCodeInvalidConfig, "argument key %q contains invalid characters", key)
		}
	}
	return nil
}

// ValidateComponentName rejects names no ecosystem would produce: empty,
// overlong, or carrying control characters.
func ValidateComponentName(name string) error {
	if strings.TrimSpace(name) == "" {
		return New(ErrCodeInvalidComponent, "component name cannot be empty")
	}
	if len(name) > 512 {
		return New(ErrCodeInvalidComponent, "component name too long (max 512 characters)")
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidComponent, "component name contains invalid control characters")
		}
	}
	return nil
}
