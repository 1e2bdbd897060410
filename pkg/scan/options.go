package scan

import (
	"runtime"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/depscout/pkg/cache"
	"github.com/matzehuels/depscout/pkg/detector"
	"github.com/matzehuels/depscout/pkg/observability"
)

const (
	DefaultDetectorTimeout = 2 * time.Minute  // Per (detector, file) unit
	DefaultMaxFileSize     = 64 << 20         // Larger files are not parsed
	DefaultCacheTTL        = cache.DefaultTTL // Lifetime of cached unit output
)

// Options configures a scan.
type Options struct {
	// Categories restricts the scan to detectors in any of these categories.
	Categories []string
	// ExcludeCategories drops detectors in any of these categories.
	ExcludeCategories []string
	// DetectorIDs restricts the scan to exactly these detectors and enables
	// them regardless of their gate.
	DetectorIDs []string
	// DisabledDetectorIDs drops these detectors.
	DisabledDetectorIDs []string
	// EnableExperimental enables detectors gated as experimental.
	EnableExperimental bool
	// RequireDetectors turns "no detector would run" into an error.
	RequireDetectors bool

	Parallelism     int           // Concurrent units (default: NumCPU)
	DetectorTimeout time.Duration // Per-unit timeout (default: 2m)

	// Exclude are doublestar globs over root-relative paths to skip.
	Exclude []string
	// ExcludedDirs overrides the default excluded directory names.
	ExcludedDirs []string
	MaxFileSize  int64 // Skip larger files (default: 64 MiB)

	// Args are passed to detectors, see [detector.Args.For].
	Args detector.Args

	Cache    cache.Cache   // Unit output cache (optional)
	Keyer    cache.Keyer   // Cache key scheme (default: cache.DefaultKeyer)
	CacheTTL time.Duration // default: DefaultCacheTTL

	Logger *log.Logger
	Hooks  observability.Hooks
}

// WithDefaults returns a copy of Options with zero values replaced by defaults.
func (o Options) WithDefaults() Options {
	opts := o
	if opts.Parallelism <= 0 {
		opts.Parallelism = runtime.NumCPU()
	}
	if opts.DetectorTimeout <= 0 {
		opts.DetectorTimeout = DefaultDetectorTimeout
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	if opts.Cache == nil {
		opts.Cache = cache.NewNullCache()
	}
	if opts.Keyer == nil {
		opts.Keyer = cache.NewDefaultKeyer()
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Args == nil {
		opts.Args = detector.Args{}
	}
	opts.Hooks = opts.Hooks.WithDefaults()
	return opts
}
