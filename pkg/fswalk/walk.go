// Package fswalk performs the single filesystem traversal a scan shares
// between all detectors.
package fswalk

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/matzehuels/depscout/pkg/errors"
)

// DefaultExcludedDirs are directory names never descended into. They hold
// VCS metadata, installed dependencies or build output.
var DefaultExcludedDirs = []string{
	".git",
	"node_modules",
	"bin",
	"obj",
	"target",
	"build",
	"dist",
	".venv",
	"__pycache__",
	"vendor",
}

// Config configures a [Walker].
type Config struct {
	// Root is the directory to walk.
	Root string

	// ExcludedDirs are directory base names to skip. nil means
	// DefaultExcludedDirs; an empty non-nil slice disables the defaults.
	ExcludedDirs []string

	// Exclude are doublestar globs over slash-separated paths relative to
	// Root. A matching directory is skipped with its whole subtree.
	Exclude []string

	// MaxFileSize skips larger files. Zero means no limit.
	MaxFileSize int64
}

// File is a regular file found by the walk.
type File struct {
	Path string // absolute path
	Rel  string // slash-separated path relative to the root
	Size int64
}

// Walker walks one directory tree.
type Walker struct {
	root     string
	dirs     map[string]bool
	excludes []string
	maxSize  int64
}

// New validates cfg and returns a walker.
func New(cfg Config) (*Walker, error) {
	root, err := errors.ValidateScanRoot(cfg.Root)
	if err != nil {
		return nil, err
	}
	for _, p := range cfg.Exclude {
		if err := errors.ValidatePattern(p); err != nil {
			return nil, err
		}
	}
	names := cfg.ExcludedDirs
	if names == nil {
		names = DefaultExcludedDirs
	}
	dirs := make(map[string]bool, len(names))
	for _, n := range names {
		dirs[n] = true
	}
	return &Walker{
		root:     root,
		dirs:     dirs,
		excludes: slices.Clone(cfg.Exclude),
		maxSize:  cfg.MaxFileSize,
	}, nil
}

// Root returns the absolute root directory.
func (w *Walker) Root() string { return w.root }

// Excluded reports whether the relative path rel is skipped.
func (w *Walker) Excluded(rel string, isDir bool) bool {
	if isDir && w.dirs[path.Base(rel)] {
		return true
	}
	for _, p := range w.excludes {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// Walk calls fn for every regular, non-excluded file in lexical order. It
// stops at the first error returned by fn and when ctx is done. Unreadable
// directories are skipped.
func (w *Walker) Walk(ctx context.Context, fn func(File) error) error {
	return filepath.WalkDir(w.root, func(p string, d fs.DirEntry, err error) error {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if err != nil {
			if d != nil && d.IsDir() && p != w.root {
				return fs.SkipDir
			}
			if p == w.root {
				return fmt.Errorf("walk %s: %w", w.root, err)
			}
			return nil
		}
		if p == w.root {
			return nil
		}
		rel, err := filepath.Rel(w.root, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if w.Excluded(rel, true) {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || w.Excluded(rel, false) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if w.maxSize > 0 && info.Size() > w.maxSize {
			return nil
		}
		return fn(File{Path: p, Rel: rel, Size: info.Size()})
	})
}

// Match reports whether pattern matches the relative path rel. Patterns
// without a slash are matched against the base name only.
func Match(pattern, rel string) bool {
	target := rel
	if !strings.Contains(pattern, "/") {
		target = path.Base(rel)
	}
	ok, _ := doublestar.Match(pattern, target)
	return ok
}
