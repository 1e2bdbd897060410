package cli

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/matzehuels/depscout/internal/config"
	"github.com/matzehuels/depscout/internal/watch"
	"github.com/matzehuels/depscout/pkg/detector"
	"github.com/matzehuels/depscout/pkg/errors"
	"github.com/matzehuels/depscout/pkg/export"
	"github.com/matzehuels/depscout/pkg/scan"
	"github.com/matzehuels/depscout/pkg/store"
)

// Output formats.
const (
	formatJSON = "json"
	formatDOT  = "dot"
	formatSVG  = "svg"
)

// scanOpts holds the flags of "depscout scan".
type scanOpts struct {
	output      string
	format      string
	detailed    bool
	noCache     bool
	store       string
	watch       bool
	interactive bool

	parallelism       int
	timeout           time.Duration
	detectorTimeout   time.Duration
	categories        []string
	excludeCategories []string
	detectors         []string
	disableDetectors  []string
	experimental      bool
	exclude           []string
	requireDetectors  bool
	args              []string
}

func (c *CLI) scanCommand() *cobra.Command {
	var o scanOpts

	cmd := &cobra.Command{
		Use:   "scan [dir]",
		Short: "Detect the dependencies of a source tree",
		Long: `Detect the dependencies of a source tree.

Every file is offered to the detectors whose search patterns match it. Their
findings are merged into one graph: a component is explicit if any manifest
declares it directly, and development-only if no manifest needs it at
runtime. Unchanged files are served from the detector cache.

Examples:
  depscout scan .
  depscout scan ./service -o deps.json
  depscout scan . --format svg -o deps.svg
  depscout scan . --categories javascript --arg npm.includeDev=false
  depscout scan . --watch`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			if err := validateFormat(o.format); err != nil {
				return err
			}
			settings := o.merge(cmd.Flags(), c.config().Scan)
			return c.runScan(cmd.Context(), root, settings, &o)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&o.output, "output", "o", "", "output file (default: stdout)")
	f.StringVarP(&o.format, "format", "f", formatJSON, "output format: json, dot, svg")
	f.BoolVar(&o.detailed, "detailed", false, "include locations and detector in dot/svg labels")
	f.BoolVar(&o.noCache, "no-cache", false, "disable the detector cache")
	f.StringVar(&o.store, "store", "", "save the scan to this store (sqlite path or mongodb:// URI)")
	f.BoolVarP(&o.watch, "watch", "w", false, "rescan when manifests change")
	f.BoolVarP(&o.interactive, "interactive", "i", false, "browse the components after scanning")

	f.IntVarP(&o.parallelism, "parallelism", "p", 0, "concurrent detector runs (default: number of CPUs)")
	f.DurationVar(&o.timeout, "timeout", 0, "abort the whole scan after this long (0: no limit)")
	f.DurationVar(&o.detectorTimeout, "detector-timeout", scan.DefaultDetectorTimeout, "time limit per detector and file")
	f.StringSliceVar(&o.categories, "categories", nil, "only run detectors in these categories")
	f.StringSliceVar(&o.excludeCategories, "exclude-categories", nil, "skip detectors in these categories")
	f.StringSliceVar(&o.detectors, "detectors", nil, "only run these detectors, including ones that are off by default")
	f.StringSliceVar(&o.disableDetectors, "disable-detectors", nil, "skip these detectors")
	f.BoolVar(&o.experimental, "experimental", false, "enable experimental detectors")
	f.StringArrayVar(&o.exclude, "exclude", nil, "skip paths matching this glob (repeatable)")
	f.BoolVar(&o.requireDetectors, "require-detectors", false, "fail when no detector is enabled")
	f.StringArrayVar(&o.args, "arg", nil, "detector argument key=value, e.g. npm.includeDev=false (repeatable)")

	c.registerScanCompletions(cmd)
	return cmd
}

// merge applies the flags the user set on top of the configured settings.
func (o *scanOpts) merge(flags *pflag.FlagSet, s config.Scan) config.Scan {
	set := flags.Changed
	if set("parallelism") {
		s.Parallelism = o.parallelism
	}
	if set("timeout") {
		s.Timeout = o.timeout
	}
	if set("detector-timeout") {
		s.DetectorTimeout = o.detectorTimeout
	}
	if set("categories") {
		s.Categories = o.categories
	}
	if set("exclude-categories") {
		s.ExcludeCategories = o.excludeCategories
	}
	if set("detectors") {
		s.Detectors = o.detectors
	}
	if set("disable-detectors") {
		s.DisableDetectors = append(slices.Clone(s.DisableDetectors), o.disableDetectors...)
	}
	if set("experimental") {
		s.Experimental = o.experimental
	}
	if set("exclude") {
		s.Exclude = append(slices.Clone(s.Exclude), o.exclude...)
	}
	if set("require-detectors") {
		s.RequireDetectors = o.requireDetectors
	}
	if set("arg") {
		s.Args = append(slices.Clone(s.Args), o.args...)
	}
	return s
}

func validateFormat(format string) error {
	switch format {
	case formatJSON, formatDOT, formatSVG:
		return nil
	}
	return errors.New(errors.ErrCodeInvalidFormat, "unknown output format %q (want json, dot or svg)", format)
}

func (c *CLI) runScan(ctx context.Context, root string, settings config.Scan, o *scanOpts) error {
	logger := loggerFromContext(ctx)
	opts, err := settings.Options()
	if err != nil {
		return err
	}
	opts.Logger = logger
	opts.Cache = c.newCache(ctx, o.noCache)
	opts.CacheTTL = c.config().Cache.TTL
	defer opts.Cache.Close()

	dsn := o.store
	if dsn == "" {
		dsn = c.config().Store.DSN
	}
	var st store.Store
	if dsn != "" {
		st, err = store.Open(ctx, dsn)
		if err != nil {
			return err
		}
		defer st.Close()
	}

	scanner := scan.New(c.Registry, opts)
	run := func(ctx context.Context) (*scan.Result, error) {
		return c.scanOnce(ctx, scanner, root, settings.Timeout, o, st)
	}

	res, err := run(ctx)
	if !o.watch {
		if err != nil {
			return err
		}
		if o.interactive {
			return browse(res.Graph)
		}
		return nil
	}
	if err != nil {
		if errors.Fatal(err) && !errors.Is(err, errors.ErrCodeCanceled) {
			return err
		}
		printError("%s", errors.UserMessage(err))
	}
	return c.watchScan(ctx, scanner, root, run)
}

// scanOnce runs one scan, reports it and writes its output.
func (c *CLI) scanOnce(ctx context.Context, scanner *scan.Scanner, root string, timeout time.Duration, o *scanOpts, st store.Store) (*scan.Result, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Scanning %s...", root))
	spinner.Start()
	prog := newProgress(loggerFromContext(ctx))
	res, err := scanner.Run(ctx, root)
	if err != nil {
		spinner.StopWithError("Scan failed")
		return nil, err
	}
	spinner.Stop()
	prog.done(fmt.Sprintf("Scanned %d files", len(res.Files)))
	printScanSummary(res)

	if !(o.interactive && o.output == "") {
		if err := writeResult(ctx, res, o); err != nil {
			return nil, err
		}
	}
	if st != nil {
		if err := st.Save(ctx, export.FromResult(res)); err != nil {
			return nil, err
		}
		printDetail("Saved as %s", res.ID)
	}
	return res, nil
}

// writeResult renders res in the requested format to the output.
func writeResult(ctx context.Context, res *scan.Result, o *scanOpts) error {
	var data []byte
	switch o.format {
	case formatJSON:
		var buf bytes.Buffer
		if err := export.WriteJSON(export.FromResult(res), &buf); err != nil {
			return err
		}
		data = buf.Bytes()
	case formatDOT:
		data = []byte(export.ToDOT(res.Graph, export.Options{Detailed: o.detailed}))
	case formatSVG:
		svg, err := export.RenderSVG(ctx, export.ToDOT(res.Graph, export.Options{Detailed: o.detailed}))
		if err != nil {
			return fmt.Errorf("render svg: %w", err)
		}
		data = svg
	}

	out, err := openOutput(o.output)
	if err != nil {
		return err
	}
	if _, err := out.Write(data); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	if o.output != "" {
		printFile(o.output)
	}
	return nil
}

// watchScan reruns the scan whenever a file an enabled detector would read
// changes, until ctx is done.
func (c *CLI) watchScan(ctx context.Context, scanner *scan.Scanner, root string, run func(context.Context) (*scan.Result, error)) error {
	opts := scanner.Options()
	patterns, err := watchPatterns(c.Registry, opts)
	if err != nil {
		return err
	}
	w, err := watch.New(watch.Config{
		Root:         root,
		Patterns:     patterns,
		ExcludedDirs: opts.ExcludedDirs,
		Exclude:      opts.Exclude,
		Logger:       opts.Logger,
		OnChange: func(ctx context.Context, changed []string) error {
			printInfo("%d file(s) changed: %s", len(changed), strings.Join(changed, ", "))
			_, err := run(ctx)
			return err
		},
	})
	if err != nil {
		return err
	}
	printInfo("Watching %s for manifest changes (ctrl+c to stop)", w.Root())
	return w.Run(ctx)
}

// watchPatterns collects the search patterns of the detectors opts enables.
func watchPatterns(reg *detector.Registry, opts scan.Options) ([]string, error) {
	all, err := reg.Build(detector.Env{})
	if err != nil {
		return nil, err
	}
	active, err := scan.Select(all, opts)
	if err != nil {
		return nil, err
	}
	var patterns []string
	for _, d := range active {
		for _, p := range d.SearchPatterns() {
			if !slices.Contains(patterns, p) {
				patterns = append(patterns, p)
			}
		}
	}
	return patterns, nil
}
