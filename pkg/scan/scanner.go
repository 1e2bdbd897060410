// Package scan runs detectors over a source tree and merges their findings
// into one dependency graph.
//
// A run moves through fixed phases (see [State]): detectors are built from
// the registry, filtered, and then a single filesystem walk feeds every
// (detector, matching file) pair to a bounded worker pool. Each unit records
// into its own [recorder.SingleFileRecorder]; successful units are folded
// into the scan's [recorder.ComponentRecorder] as soon as they finish.
//
// A unit that fails, panics or times out is reported in [Result.Files] and
// contributes nothing. Only invalid input and cancellation of the scan
// context abort a run.
package scan

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path"
	"runtime/debug"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/depscout/pkg/broadcast"
	"github.com/matzehuels/depscout/pkg/cache"
	"github.com/matzehuels/depscout/pkg/detector"
	"github.com/matzehuels/depscout/pkg/errors"
	"github.com/matzehuels/depscout/pkg/fswalk"
	"github.com/matzehuels/depscout/pkg/recorder"
)

// Scanner runs scans with a fixed registry and options. A Scanner may run
// several scans, also concurrently; State reflects the most recent
// transition of any of them.
type Scanner struct {
	registry *detector.Registry
	opts     Options
	state    atomic.Int32
}

// New returns a scanner. Options are completed with defaults.
func New(registry *detector.Registry, opts Options) *Scanner {
	return &Scanner{registry: registry, opts: opts.WithDefaults()}
}

// Run is shorthand for New(registry, opts).Run(ctx, root).
func Run(ctx context.Context, root string, registry *detector.Registry, opts Options) (*Result, error) {
	return New(registry, opts).Run(ctx, root)
}

// State returns the current phase.
func (s *Scanner) State() State { return State(s.state.Load()) }

// Options returns the effective options.
func (s *Scanner) Options() Options { return s.opts }

func (s *Scanner) setState(ctx context.Context, st State) {
	s.state.Store(int32(st))
	s.opts.Logger.Debug("scan phase", "state", st)
	s.opts.Hooks.Scan.OnStateChange(ctx, st.String())
}

// Detectors builds and filters the detectors a scan would run.
func (s *Scanner) Detectors(env detector.Env) ([]detector.Detector, error) {
	all, err := s.registry.Build(env)
	if err != nil {
		return nil, err
	}
	return Select(all, s.opts)
}

// Run scans root.
func (s *Scanner) Run(ctx context.Context, root string) (res *Result, err error) {
	started := time.Now()
	s.opts.Hooks.Scan.OnScanStart(ctx, root)
	defer func() {
		n := 0
		if res != nil && res.Graph != nil {
			n = res.Graph.Len()
		}
		s.opts.Hooks.Scan.OnScanComplete(ctx, root, n, time.Since(started), err)
	}()

	walker, err := fswalk.New(fswalk.Config{
		Root:         root,
		ExcludedDirs: s.opts.ExcludedDirs,
		Exclude:      s.opts.Exclude,
		MaxFileSize:  s.opts.MaxFileSize,
	})
	if err != nil {
		return nil, err
	}

	s.setState(ctx, StateDiscovering)
	signals := broadcast.New[detector.Signal]()
	defer signals.Complete()
	env := detector.Env{Logger: s.opts.Logger, Signals: signals}
	all, err := s.registry.Build(env)
	if err != nil {
		return nil, err
	}

	s.setState(ctx, StateFiltering)
	active, err := Select(all, s.opts)
	if err != nil {
		return nil, err
	}
	if len(active) == 0 && s.opts.RequireDetectors {
		return nil, errors.New(errors.ErrCodeNoDetectors, "no detector is enabled for this scan")
	}
	if len(active) == 0 {
		s.opts.Logger.Info("no detectors enabled", "root", walker.Root())
	}

	var matcher fswalk.Matcher[detector.Detector]
	for _, d := range active {
		matcher.Add(d, d.SearchPatterns()...)
	}

	_, noCache := s.opts.Cache.(*cache.NullCache)
	run := &run{
		scanner: s,
		merged:  recorder.New(),
		signals: signals,
		caching: !noCache,
	}
	collected := broadcast.Collect(signals)

	s.setState(ctx, StateWalking)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Parallelism)
	dispatching := false
	walkErr := walker.Walk(gctx, func(f fswalk.File) error {
		for _, hit := range matcher.Match(f.Rel) {
			if !dispatching {
				dispatching = true
				s.setState(ctx, StateDispatching)
			}
			d, pattern := hit.Target, hit.Pattern
			g.Go(func() error {
				run.add(run.unit(gctx, d, f, pattern))
				return nil
			})
		}
		return nil
	})

	s.setState(ctx, StateAwaiting)
	_ = g.Wait()
	signals.Complete()
	sigs := collected()

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeCanceled, err, "scan of %s canceled", walker.Root())
	}
	if walkErr != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, walkErr, "walk %s", walker.Root())
	}

	s.setState(ctx, StateAggregating)
	files := run.files
	sortFiles(files)
	sortSignals(sigs)
	res = &Result{
		ID:        uuid.NewString(),
		Root:      walker.Root(),
		StartedAt: started,
		Duration:  time.Since(started),
		Graph:     run.merged.Finalize(),
		Detectors: summarize(active, files),
		Files:     files,
		Signals:   sigs,
	}
	s.setState(ctx, StateDone)
	s.opts.Logger.Info("scan complete",
		"root", res.Root,
		"components", res.Graph.Len(),
		"files", len(files),
		"failed", len(res.Failed()),
		"duration", res.Duration.Round(time.Millisecond))
	return res, nil
}

// run is the mutable state of one scan.
type run struct {
	scanner *Scanner
	merged  *recorder.ComponentRecorder
	signals *broadcast.Channel[detector.Signal]
	caching bool

	mu    sync.Mutex
	files []FileRun
}

func (r *run) add(f FileRun) {
	r.mu.Lock()
	r.files = append(r.files, f)
	r.mu.Unlock()
}

// unit runs detector d on file f.
func (r *run) unit(ctx context.Context, d detector.Detector, f fswalk.File, pattern string) FileRun {
	opts := r.scanner.opts
	logger := opts.Logger.With("detector", d.ID(), "file", f.Rel)
	start := time.Now()
	fr := FileRun{DetectorID: d.ID(), Location: f.Rel, Pattern: pattern}

	finish := func(status Status, err error) FileRun {
		fr.Status = status
		fr.Duration = time.Since(start)
		if err != nil {
			fr.Err = err.Error()
		}
		opts.Hooks.Scan.OnUnitComplete(ctx, d.ID(), string(status), fr.ComponentCount, fr.Duration)
		return fr
	}

	if ctx.Err() != nil {
		return finish(StatusCanceled, ctx.Err())
	}

	data, err := os.ReadFile(f.Path)
	if err != nil {
		logger.Warn("read failed", "err", err)
		return finish(StatusFailed, errors.Wrap(errors.ErrCodeDetectorFailed, err, "read %s", f.Rel))
	}

	args := opts.Args.For(d.ID())
	sf := recorder.NewSingleFile(f.Rel, d.ID())
	key := opts.Keyer.DetectorKey(cache.Unit{
		DetectorID:  d.ID(),
		Version:     d.Version(),
		Name:        path.Base(f.Rel),
		Pattern:     pattern,
		Args:        args,
		ContentHash: cache.Hash(data),
	})
	if e, ok := r.cached(ctx, logger, d.ID(), key); ok {
		if err := sf.Replay(e.Registrations); err == nil {
			if err := r.merged.Fold(sf); err != nil {
				return finish(StatusFailed, err)
			}
			r.republish(ctx, logger, e.Signals)
			fr.ComponentCount = sf.Len()
			return finish(StatusCached, nil)
		}
		sf = recorder.NewSingleFile(f.Rel, d.ID())
	}

	var (
		sigMu sync.Mutex
		sigs  []detector.Signal
	)
	uctx, cancel := context.WithTimeout(ctx, opts.DetectorTimeout)
	defer cancel()
	uctx = detector.WithSignalTap(uctx, func(sig detector.Signal) {
		sigMu.Lock()
		sigs = append(sigs, sig)
		sigMu.Unlock()
	})
	stream := detector.NewStream(bytes.NewReader(data), f.Rel, pattern)
	err = invoke(uctx, d, stream, sf, args)

	switch {
	case ctx.Err() != nil:
		return finish(StatusCanceled, ctx.Err())
	case stderrors.Is(uctx.Err(), context.DeadlineExceeded) && err != nil:
		logger.Warn("detector timed out", "timeout", opts.DetectorTimeout)
		return finish(StatusTimeout, errors.Wrap(errors.ErrCodeDetectorTimeout, err, "%s on %s", d.ID(), f.Rel))
	case err != nil:
		logger.Error("detector failed", "err", err)
		return finish(StatusFailed, errors.Wrap(errors.ErrCodeDetectorFailed, err, "%s on %s", d.ID(), f.Rel))
	}

	if err := r.merged.Fold(sf); err != nil {
		return finish(StatusFailed, err)
	}
	fr.ComponentCount = sf.Len()
	sigMu.Lock()
	e := entry{Registrations: sf.Registrations(), Signals: slices.Clone(sigs)}
	sigMu.Unlock()
	r.store(ctx, logger, d.ID(), key, e)
	logger.Debug("unit done", "components", fr.ComponentCount)
	return finish(StatusOK, nil)
}

// invoke calls the detector in its own goroutine so that a detector that
// ignores its context still cannot hold the unit past the deadline. A
// panicking detector is reported as an error.
func invoke(ctx context.Context, d detector.Detector, stream detector.ComponentStream, rec detector.Recorder, args detector.Args) error {
	done := make(chan error, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- fmt.Errorf("detector panicked: %v\n%s", p, debug.Stack())
			}
		}()
		done <- d.OnFileFound(ctx, stream, rec, args)
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// entry is the cached output of one unit: what the detector registered and
// the signals it published while doing so.
type entry struct {
	Registrations []recorder.Registration `json:"registrations"`
	Signals       []detector.Signal       `json:"signals,omitempty"`
}

func (r *run) cached(ctx context.Context, logger *log.Logger, detectorID, key string) (entry, bool) {
	var e entry
	if !r.caching {
		return e, false
	}
	opts := r.scanner.opts
	data, hit, err := opts.Cache.Get(ctx, key)
	if err != nil {
		logger.Debug("cache read failed", "err", err)
		return e, false
	}
	if !hit {
		opts.Hooks.Cache.OnCacheMiss(ctx, detectorID)
		return e, false
	}
	if err := json.Unmarshal(data, &e); err != nil || e.Registrations == nil {
		logger.Debug("cache entry unreadable", "err", err)
		_ = opts.Cache.Delete(ctx, key)
		return entry{}, false
	}
	opts.Hooks.Cache.OnCacheHit(ctx, detectorID)
	return e, true
}

func (r *run) store(ctx context.Context, logger *log.Logger, detectorID, key string, e entry) {
	if !r.caching {
		return
	}
	opts := r.scanner.opts
	if e.Registrations == nil {
		e.Registrations = []recorder.Registration{}
	}
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	if err := opts.Cache.Set(ctx, key, data, opts.CacheTTL); err != nil {
		logger.Debug("cache write failed", "err", err)
		return
	}
	opts.Hooks.Cache.OnCacheSet(ctx, detectorID, len(data))
}

// republish replays the signals of a cached unit so that subscribers see
// the same signals as on an uncached scan.
func (r *run) republish(ctx context.Context, logger *log.Logger, sigs []detector.Signal) {
	for _, sig := range sigs {
		if err := r.signals.Publish(ctx, sig); err != nil {
			logger.Debug("signal replay failed", "kind", sig.Kind, "err", err)
			return
		}
	}
}
