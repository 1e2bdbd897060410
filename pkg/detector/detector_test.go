package detector

import (
	"context"
	"slices"
	"strings"
	"testing"

	"github.com/matzehuels/depscout/pkg/broadcast"
	"github.com/matzehuels/depscout/pkg/component"
	"github.com/matzehuels/depscout/pkg/errors"
)

type fake struct {
	Base
}

func (fake) OnFileFound(context.Context, ComponentStream, Recorder, Args) error { return nil }

func factory(id string, patterns ...string) Factory {
	return func(Env) Detector {
		return fake{Base{Name: id, Patterns: patterns, Types: []component.Type{component.TypeNpm}, Cats: []string{"test"}, Rev: 2, Gating: Experimental}}
	}
}

func TestRegistryBuildSortsByID(t *testing.T) {
	r := NewRegistry(factory("zeta", "z.txt"), factory("alpha", "a.txt"))
	r.Register(nil)
	ds, err := r.Build(Env{})
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, d := range ds {
		got = append(got, d.ID())
	}
	if !slices.Equal(got, []string{"alpha", "zeta"}) {
		t.Errorf("ids = %v", got)
	}
	if r.Len() != 2 {
		t.Errorf("Len() = %d", r.Len())
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry(factory("npm"), factory("npm"))
	_, err := r.Build(Env{})
	if !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("Build() err = %v, want INVALID_CONFIG", err)
	}
}

func TestRegistryRejectsBadPattern(t *testing.T) {
	r := NewRegistry(factory("bad", "foo["))
	if _, err := r.Build(Env{}); err == nil {
		t.Error("Build() accepted an invalid glob")
	}
}

func TestFactoryReceivesEnv(t *testing.T) {
	ch := broadcast.New[Signal]()
	var got *broadcast.Channel[Signal]
	r := NewRegistry(func(env Env) Detector {
		got = env.Signals
		return fake{Base{Name: "x"}}
	})
	if _, err := r.Build(Env{Signals: ch}); err != nil {
		t.Fatal(err)
	}
	if got != ch {
		t.Error("factory did not receive the signal channel")
	}
}

func TestDescribe(t *testing.T) {
	infos, err := NewRegistry(factory("npm", "package.json")).Infos()
	if err != nil {
		t.Fatal(err)
	}
	want := Info{ID: "npm", Version: 2, Gate: "experimental", Categories: []string{"test"}, Patterns: []string{"package.json"}, Types: []string{"npm"}}
	if len(infos) != 1 || infos[0].ID != want.ID || infos[0].Gate != want.Gate ||
		!slices.Equal(infos[0].Types, want.Types) || infos[0].Version != want.Version {
		t.Errorf("Infos() = %+v, want %+v", infos, want)
	}
}

func TestArgs(t *testing.T) {
	args, err := ParseArgs([]string{"npm.includeDev=false", "linux.distribution = debian", "npm.depth=3"})
	if err != nil {
		t.Fatal(err)
	}
	npm := args.For("npm")
	if npm.Bool("includeDev", true) {
		t.Error("includeDev should be false")
	}
	if npm.Int("depth", 0) != 3 {
		t.Errorf("depth = %d", npm.Int("depth", 0))
	}
	if npm.Int("missing", 7) != 7 || npm.Bool("missing", true) != true {
		t.Error("defaults not applied")
	}
	if got := args.For("linux").String("distribution", ""); got != "debian" {
		t.Errorf("distribution = %q", got)
	}
	if _, err := ParseArgs([]string{"novalue"}); err == nil {
		t.Error("ParseArgs accepted a pair without =")
	}
}

func TestEnvPublish(t *testing.T) {
	if err := (Env{}).Publish(context.Background(), Signal{}); err != nil {
		t.Errorf("Publish without channel = %v", err)
	}
	ch := broadcast.New[Signal]()
	env := Env{Signals: ch}
	got := broadcast.Collect(ch)
	sig := Signal{Kind: SignalContainerBuildContext, Dir: "svc"}
	if err := env.Publish(context.Background(), sig); err != nil {
		t.Fatal(err)
	}
	ch.Complete()
	if err := env.Publish(context.Background(), sig); err != nil {
		t.Errorf("Publish after complete = %v, want nil", err)
	}
	if msgs := got(); len(msgs) != 1 || msgs[0] != sig {
		t.Errorf("received %v", msgs)
	}
	if env.Log() == nil {
		t.Error("Log() returned nil")
	}
}

func TestSignalTap(t *testing.T) {
	var tapped []Signal
	ctx := WithSignalTap(context.Background(), func(sig Signal) { tapped = append(tapped, sig) })
	sig := Signal{Kind: SignalContainerBuildContext, Dir: "svc", Ref: "alpine:3.20"}

	if err := (Env{}).Publish(ctx, sig); err != nil {
		t.Fatal(err)
	}
	ch := broadcast.New[Signal]()
	got := broadcast.Collect(ch)
	if err := (Env{Signals: ch}).Publish(ctx, sig); err != nil {
		t.Fatal(err)
	}
	ch.Complete()

	if len(tapped) != 2 {
		t.Errorf("tap saw %d signals, want 2", len(tapped))
	}
	if msgs := got(); len(msgs) != 1 || msgs[0] != sig {
		t.Errorf("channel received %v", msgs)
	}
}

func TestStream(t *testing.T) {
	s := NewStream(strings.NewReader("x"), "a/package.json", "package.json")
	if s.Location() != "a/package.json" || s.Pattern() != "package.json" || s.Reader() == nil {
		t.Errorf("stream accessors wrong")
	}
}
