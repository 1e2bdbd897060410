package cli

import (
	"context"
	"os"

	"github.com/matzehuels/depscout/pkg/buildinfo"
)

// SetVersion overrides the build information shown by --version. Empty
// values keep what was linked in.
func SetVersion(v, c, d string) {
	if v != "" {
		buildinfo.Version = v
	}
	if c != "" {
		buildinfo.Commit = c
	}
	if d != "" {
		buildinfo.Date = d
	}
}

// Execute runs the depscout CLI with ctx, logging to stderr.
//
// Logging:
//   - Default: info level
//   - With --verbose (-v): debug level
//
// The logger is attached to the command context and reachable through
// loggerFromContext.
func Execute(ctx context.Context) error {
	c := New(os.Stderr, LogInfo)
	return c.RootCommand().ExecuteContext(ctx)
}
