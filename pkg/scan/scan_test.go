package scan

import (
	"bufio"
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/depscout/pkg/cache"
	"github.com/matzehuels/depscout/pkg/component"
	"github.com/matzehuels/depscout/pkg/detector"
	"github.com/matzehuels/depscout/pkg/errors"
	"github.com/matzehuels/depscout/pkg/recorder"
)

// lines is a test detector for a tiny manifest format, one component per
// line: "name@version [explicit] [dev] [parent=name@version]". A line
// "panic" panics, a line "sleep" blocks until the context ends and a line
// "signal" publishes a build context signal for the file's directory.
//
// Every component of a file named "*-dev.*" is a dev dependency. The
// argument skipDev drops dev dependencies.
type lines struct {
	detector.Base
	calls *atomic.Int32
	env   detector.Env
}

func parseRef(s string) component.Identity {
	name, version, _ := strings.Cut(s, "@")
	return component.Npm(name, version)
}

func (l lines) OnFileFound(ctx context.Context, s detector.ComponentStream, rec detector.Recorder, args detector.Args) error {
	if l.calls != nil {
		l.calls.Add(1)
	}
	skipDev := args.Bool("skipDev", false)
	devFile := strings.Contains(path.Base(s.Location()), "-dev.")
	sc := bufio.NewScanner(s.Reader())
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "panic":
			panic("malformed input")
		case "sleep":
			<-ctx.Done()
			return ctx.Err()
		case "signal":
			if err := l.env.Publish(ctx, detector.Signal{Kind: detector.SignalContainerBuildContext, Dir: filepath.Dir(s.Location()), Detector: l.ID()}); err != nil {
				return err
			}
			continue
		}
		var opts []recorder.UsageOption
		dev := devFile
		for _, f := range fields[1:] {
			switch {
			case f == "explicit":
				opts = append(opts, recorder.Explicit())
			case f == "dev":
				dev = true
			case strings.HasPrefix(f, "parent="):
				opts = append(opts, recorder.WithParent(parseRef(strings.TrimPrefix(f, "parent="))))
			}
		}
		if dev && skipDev {
			continue
		}
		if dev {
			opts = append(opts, recorder.Development())
		}
		if err := rec.RegisterUsage(component.New(parseRef(fields[0])), opts...); err != nil {
			return err
		}
	}
	return sc.Err()
}

func linesFactory(id, pattern string, gate detector.Gate, calls *atomic.Int32, cats ...string) detector.Factory {
	if len(cats) == 0 {
		cats = []string{"test"}
	}
	return func(env detector.Env) detector.Detector {
		return lines{
			Base: detector.Base{
				Name:     id,
				Types:    []component.Type{component.TypeNpm},
				Patterns: []string{pattern},
				Cats:     cats,
				Rev:      1,
				Gating:   gate,
			},
			calls: calls,
			env:   env,
		}
	}
}

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return root
}

func quietOptions() Options {
	return Options{Logger: log.New(io.Discard), Parallelism: 4}
}

func TestEndToEndMerge(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"f1/deps.a": "lodash@4.17.21 explicit\n",
		"f2/deps.b": "lodash@4.17.21 dev parent=left-pad@1.0.0\nleft-pad@1.0.0 explicit dev\n",
	})
	reg := detector.NewRegistry(
		linesFactory("d1", "*.a", detector.DefaultOn, nil),
		linesFactory("d2", "*.b", detector.DefaultOn, nil),
	)

	res, err := Run(context.Background(), root, reg, quietOptions())
	require.NoError(t, err)

	g := res.Graph
	require.Equal(t, 2, g.Len())
	lodash, _ := g.Node(component.Npm("lodash", "4.17.21"))
	assert.True(t, lodash.Explicit)
	assert.False(t, lodash.Development)
	assert.Equal(t, []component.Identity{component.Npm("left-pad", "1.0.0")}, g.Parents(lodash.Identity))

	leftPad, _ := g.Node(component.Npm("left-pad", "1.0.0"))
	assert.True(t, leftPad.Explicit)
	assert.True(t, leftPad.Development)
	assert.Equal(t, []component.Identity{leftPad.Identity}, g.Roots())

	require.Len(t, res.Files, 2)
	assert.Equal(t, "f1/deps.a", res.Files[0].Location)
	assert.Equal(t, StatusOK, res.Files[0].Status)
	assert.NotEmpty(t, res.ID)
}

func TestPartialFailureIsolation(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"good/deps.a": "lodash@1.0.0 explicit\n",
		"bad/deps.a":  "left-pad@1.0.0\npanic\n",
		"other/x.b":   "react@18.0.0 explicit\n",
	})
	reg := detector.NewRegistry(
		linesFactory("d1", "*.a", detector.DefaultOn, nil),
		linesFactory("d2", "*.b", detector.DefaultOn, nil),
	)

	res, err := Run(context.Background(), root, reg, quietOptions())
	require.NoError(t, err)

	_, ok := res.Graph.Node(component.Npm("lodash", "1.0.0"))
	assert.True(t, ok, "same detector, other file")
	_, ok = res.Graph.Node(component.Npm("react", "18.0.0"))
	assert.True(t, ok, "other detector")
	_, ok = res.Graph.Node(component.Npm("left-pad", "1.0.0"))
	assert.False(t, ok, "partial output of a crashed unit must be dropped")

	failed := res.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "bad/deps.a", failed[0].Location)
	assert.Equal(t, StatusFailed, failed[0].Status)
	assert.Contains(t, failed[0].Err, "panicked")

	var d1 DetectorRun
	for _, d := range res.Detectors {
		if d.ID == "d1" {
			d1 = d
		}
	}
	assert.Equal(t, 2, d1.Files)
	assert.Equal(t, 1, d1.Failures)
}

func TestDetectorTimeout(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"slow/deps.a": "sleep\n",
		"fast/deps.a": "lodash@1.0.0\n",
	})
	reg := detector.NewRegistry(linesFactory("d1", "*.a", detector.DefaultOn, nil))
	opts := quietOptions()
	opts.DetectorTimeout = 50 * time.Millisecond

	res, err := Run(context.Background(), root, reg, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Graph.Len())

	failed := res.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, StatusTimeout, failed[0].Status)
	assert.Equal(t, 1, res.Detectors[0].Timeouts)
}

func TestCanceledScanIsFatal(t *testing.T) {
	root := writeFiles(t, map[string]string{"deps.a": "lodash@1.0.0\n"})
	reg := detector.NewRegistry(linesFactory("d1", "*.a", detector.DefaultOn, nil))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, root, reg, quietOptions())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeCanceled), "got %v", err)
}

func TestFilters(t *testing.T) {
	reg := detector.NewRegistry(
		linesFactory("on", "*.a", detector.DefaultOn, nil, "alpha"),
		linesFactory("off", "*.b", detector.DefaultOff, nil, "beta"),
		linesFactory("exp", "*.c", detector.Experimental, nil, "beta"),
	)
	all, err := reg.Build(detector.Env{})
	require.NoError(t, err)

	ids := func(ds []detector.Detector) []string {
		var out []string
		for _, d := range ds {
			out = append(out, d.ID())
		}
		return out
	}

	tests := []struct {
		name     string
		opts     Options
		want     []string
		wantCode errors.Code
	}{
		{"defaults", Options{}, []string{"on"}, ""},
		{"experimental", Options{EnableExperimental: true}, []string{"exp", "on"}, ""},
		{"explicit ids bypass gates", Options{DetectorIDs: []string{"off"}}, []string{"off"}, ""},
		{"category allow", Options{Categories: []string{"beta"}, EnableExperimental: true}, []string{"exp"}, ""},
		{"category deny", Options{ExcludeCategories: []string{"alpha"}, EnableExperimental: true}, []string{"exp"}, ""},
		{"disabled", Options{DisabledDetectorIDs: []string{"on"}}, nil, ""},
		{"unknown category", Options{Categories: []string{"cobol"}}, nil, errors.ErrCodeInvalidFilter},
		{"unknown id", Options{DetectorIDs: []string{"nope"}}, nil, errors.ErrCodeInvalidFilter},
		{"category conflict", Options{Categories: []string{"beta"}, ExcludeCategories: []string{"beta"}}, nil, errors.ErrCodeInvalidFilter},
		{"id conflict", Options{DetectorIDs: []string{"on"}, DisabledDetectorIDs: []string{"on"}}, nil, errors.ErrCodeInvalidFilter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Select(all, tt.opts)
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, errors.GetCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestRequireDetectors(t *testing.T) {
	root := writeFiles(t, map[string]string{"deps.a": "x@1\n"})
	reg := detector.NewRegistry(linesFactory("d1", "*.a", detector.DefaultOff, nil))

	res, err := Run(context.Background(), root, reg, quietOptions())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Graph.Len())

	opts := quietOptions()
	opts.RequireDetectors = true
	_, err = Run(context.Background(), root, reg, opts)
	assert.True(t, errors.Is(err, errors.ErrCodeNoDetectors), "got %v", err)
}

func TestInvalidRoot(t *testing.T) {
	reg := detector.NewRegistry()
	_, err := Run(context.Background(), filepath.Join(t.TempDir(), "missing"), reg, quietOptions())
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidPath), "got %v", err)
}

func TestExcludedDirectories(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"deps.a":                  "app@1.0.0\n",
		"node_modules/dep/deps.a": "hidden@1.0.0\n",
		"fixtures/deps.a":         "fixture@1.0.0\n",
	})
	reg := detector.NewRegistry(linesFactory("d1", "*.a", detector.DefaultOn, nil))
	opts := quietOptions()
	opts.Exclude = []string{"fixtures/**"}

	res, err := Run(context.Background(), root, reg, opts)
	require.NoError(t, err)
	require.Equal(t, 1, res.Graph.Len())
	assert.Equal(t, "app", res.Graph.Components()[0].Identity.Name)
}

func TestCacheReplay(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"deps.a": "lodash@4.17.21 explicit\nleft-pad@1.0.0 parent=lodash@4.17.21\n",
	})
	var calls atomic.Int32
	reg := detector.NewRegistry(linesFactory("d1", "*.a", detector.DefaultOn, &calls))
	opts := quietOptions()
	opts.Cache = cache.NewMemoryCache(16, time.Hour)

	first, err := Run(context.Background(), root, reg, opts)
	require.NoError(t, err)
	second, err := Run(context.Background(), root, reg, opts)
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load(), "second scan should be served from cache")
	assert.Equal(t, StatusCached, second.Files[0].Status)
	assert.Equal(t, 1, second.Detectors[0].CacheHits)
	assert.True(t, first.Graph.Equal(second.Graph))

	require.NoError(t, os.WriteFile(filepath.Join(root, "deps.a"), []byte("lodash@4.17.21 explicit\n"), 0o644))
	third, err := Run(context.Background(), root, reg, opts)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load(), "changed content must miss")
	assert.Equal(t, 1, third.Graph.Len())
}

func TestSignalsAreCollected(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"svc/deps.a": "signal\nbase@1\n",
		"web/deps.a": "signal\n",
	})
	reg := detector.NewRegistry(linesFactory("d1", "*.a", detector.DefaultOn, nil))

	res, err := Run(context.Background(), root, reg, quietOptions())
	require.NoError(t, err)
	require.Len(t, res.Signals, 2)
	assert.Equal(t, "svc", res.Signals[0].Dir)
	assert.Equal(t, "web", res.Signals[1].Dir)
	assert.Equal(t, detector.SignalContainerBuildContext, res.Signals[0].Kind)
}

func TestCachedScanKeepsSignals(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"svc/deps.a": "signal\nbase@1\n",
	})
	var calls atomic.Int32
	reg := detector.NewRegistry(linesFactory("d1", "*.a", detector.DefaultOn, &calls))
	opts := quietOptions()
	opts.Cache = cache.NewMemoryCache(16, time.Hour)

	first, err := Run(context.Background(), root, reg, opts)
	require.NoError(t, err)
	second, err := Run(context.Background(), root, reg, opts)
	require.NoError(t, err)

	require.Equal(t, int32(1), calls.Load())
	assert.Equal(t, StatusCached, second.Files[0].Status)
	require.Len(t, first.Signals, 1)
	assert.Equal(t, first.Signals, second.Signals)
}

func TestArgsReachDetector(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"deps.a": "lodash@4.17.21 explicit\njest@29.0.0 explicit dev\n",
		"deps.b": "lodash@4.17.21 explicit\njest@29.0.0 explicit dev\n",
	})
	reg := detector.NewRegistry(
		linesFactory("d1", "*.a", detector.DefaultOn, nil),
		linesFactory("d2", "*.b", detector.DefaultOn, nil),
	)
	opts := quietOptions()
	opts.Args = detector.Args{"d1.skipDev": "true"}

	res, err := Run(context.Background(), root, reg, opts)
	require.NoError(t, err)

	counts := map[string]int{}
	for _, f := range res.Files {
		counts[f.DetectorID] = f.ComponentCount
	}
	assert.Equal(t, 1, counts["d1"], "d1 should see skipDev")
	assert.Equal(t, 2, counts["d2"], "arguments for d1 must not reach d2")
}

func TestCacheKeyCoversFileName(t *testing.T) {
	content := "pytest@8.0.0 explicit\n"
	prod := writeFiles(t, map[string]string{"requirements.a": content})
	dev := writeFiles(t, map[string]string{"requirements-dev.a": content})
	var calls atomic.Int32
	reg := detector.NewRegistry(linesFactory("d1", "*.a", detector.DefaultOn, &calls))
	opts := quietOptions()
	opts.Cache = cache.NewMemoryCache(16, time.Hour)

	_, err := Run(context.Background(), prod, reg, opts)
	require.NoError(t, err)
	res, err := Run(context.Background(), dev, reg, opts)
	require.NoError(t, err)

	assert.Equal(t, int32(2), calls.Load(), "same content under another name must miss")
	assert.Equal(t, StatusOK, res.Files[0].Status)
	pytest, ok := res.Graph.Node(component.Npm("pytest", "8.0.0"))
	require.True(t, ok)
	assert.True(t, pytest.Development)
}

func TestCacheKeyCoversArgs(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"deps.a": "lodash@4.17.21 explicit\njest@29.0.0 explicit dev\n",
	})
	var calls atomic.Int32
	reg := detector.NewRegistry(linesFactory("d1", "*.a", detector.DefaultOn, &calls))
	opts := quietOptions()
	opts.Cache = cache.NewMemoryCache(16, time.Hour)

	all, err := Run(context.Background(), root, reg, opts)
	require.NoError(t, err)
	assert.Equal(t, 2, all.Graph.Len())

	skipping := opts
	skipping.Args = detector.Args{"d1.skipDev": "true"}
	prod, err := Run(context.Background(), root, reg, skipping)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load(), "changed arguments must miss")
	assert.Equal(t, 1, prod.Graph.Len())

	// Arguments for other detectors do not invalidate d1's entry.
	other := opts
	other.Args = detector.Args{"d2.skipDev": "true"}
	again, err := Run(context.Background(), root, reg, other)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, StatusCached, again.Files[0].Status)
	assert.Equal(t, 2, again.Graph.Len())
}

func TestDeterministicAcrossParallelism(t *testing.T) {
	files := map[string]string{}
	for i := range 30 {
		var b strings.Builder
		for j := range 5 {
			b.WriteString("pkg")
			b.WriteString(string(rune('a' + (i+j)%12)))
			b.WriteString("@1.0.0")
			if j%2 == 0 {
				b.WriteString(" dev")
			}
			if j > 0 {
				b.WriteString(" parent=pkg")
				b.WriteString(string(rune('a' + (i+j-1)%12)))
				b.WriteString("@1.0.0")
			}
			b.WriteString("\n")
		}
		files[filepath.Join("p", string(rune('a'+i%26)), strings.Repeat("x", i/26+1), "deps.a")] = b.String()
	}
	root := writeFiles(t, files)
	reg := detector.NewRegistry(linesFactory("d1", "*.a", detector.DefaultOn, nil))

	var results []*Result
	for _, par := range []int{1, 3, 16} {
		opts := quietOptions()
		opts.Parallelism = par
		res, err := Run(context.Background(), root, reg, opts)
		require.NoError(t, err)
		results = append(results, res)
	}
	for _, res := range results[1:] {
		assert.True(t, results[0].Graph.Equal(res.Graph))
		assert.Equal(t, results[0].Graph.Roots(), res.Graph.Roots())
		assert.True(t, slices.EqualFunc(results[0].Files, res.Files, func(a, b FileRun) bool {
			return a.Location == b.Location && a.ComponentCount == b.ComponentCount
		}))
	}
}

func TestScannerState(t *testing.T) {
	root := writeFiles(t, map[string]string{"deps.a": "x@1\n"})
	s := New(detector.NewRegistry(linesFactory("d1", "*.a", detector.DefaultOn, nil)), quietOptions())
	assert.Equal(t, StateIdle, s.State())
	_, err := s.Run(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, StateDone, s.State())

	ds, err := s.Detectors(detector.Env{})
	require.NoError(t, err)
	assert.Len(t, ds, 1)
}
