package export

import (
	"bytes"
	"errors"
	"io/fs"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/matzehuels/depscout/pkg/component"
	"github.com/matzehuels/depscout/pkg/recorder"
)

var (
	lodash  = component.Npm("lodash", "4.17.21")
	leftPad = component.Npm("left-pad", "1.3.0")
	jest    = component.Npm("jest", "29.7.0")
	ghost   = component.Npm("ghost", "0.0.1")
)

func sampleGraph(t *testing.T) *recorder.Graph {
	t.Helper()
	sf := recorder.NewSingleFile("web/package-lock.json", "npm")
	regs := []struct {
		id   component.Identity
		opts []recorder.UsageOption
	}{
		{lodash, []recorder.UsageOption{recorder.Explicit()}},
		{leftPad, []recorder.UsageOption{recorder.WithParent(lodash)}},
		{jest, []recorder.UsageOption{recorder.Explicit(), recorder.Development()}},
		{jest, []recorder.UsageOption{recorder.Development(), recorder.WithParent(ghost)}},
	}
	for _, r := range regs {
		if err := sf.RegisterUsage(component.New(r.id), r.opts...); err != nil {
			t.Fatal(err)
		}
	}
	cr := recorder.New()
	if err := cr.Fold(sf); err != nil {
		t.Fatal(err)
	}
	return cr.Finalize()
}

func TestManifestFromGraph(t *testing.T) {
	m := FromGraph(sampleGraph(t))

	var ids []string
	for _, c := range m.Components {
		ids = append(ids, c.ID)
	}
	want := []string{"npm:ghost@0.0.1", "npm:jest@29.7.0", "npm:left-pad@1.3.0", "npm:lodash@4.17.21"}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("components = %v, want %v", ids, want)
	}
	if m.Components[3].PURL != "pkg:npm/lodash@4.17.21" {
		t.Errorf("purl = %q", m.Components[3].PURL)
	}
	if m.Components[0].Observed {
		t.Error("ghost is a placeholder")
	}
	wantEdges := []Edge{
		{From: "npm:ghost@0.0.1", To: "npm:jest@29.7.0"},
		{From: "npm:lodash@4.17.21", To: "npm:left-pad@1.3.0"},
	}
	if !reflect.DeepEqual(m.Edges, wantEdges) {
		t.Errorf("edges = %v, want %v", m.Edges, wantEdges)
	}
	if !reflect.DeepEqual(m.Roots, []string{"npm:ghost@0.0.1", "npm:lodash@4.17.21"}) {
		t.Errorf("roots = %v", m.Roots)
	}
}

func TestManifestRoundTrip(t *testing.T) {
	g := sampleGraph(t)

	var buf bytes.Buffer
	if err := WriteJSON(FromGraph(g), &buf); err != nil {
		t.Fatal(err)
	}
	first := buf.String()

	m, err := ReadJSON(strings.NewReader(first))
	if err != nil {
		t.Fatal(err)
	}
	back, err := m.Graph()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(back.Components(), g.Components()) {
		t.Errorf("components differ after round trip")
	}

	buf.Reset()
	if err := WriteJSON(FromGraph(back), &buf); err != nil {
		t.Fatal(err)
	}
	if buf.String() != first {
		t.Errorf("second export differs:\n%s\nvs\n%s", buf.String(), first)
	}
}

func TestReadJSONErrors(t *testing.T) {
	tests := []struct {
		name, in string
	}{
		{"malformed", "{"},
		{"future schema", `{"schemaVersion": 99}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ReadJSON(strings.NewReader(tt.in)); err == nil {
				t.Error("expected error")
			}
		})
	}

	m := &Manifest{Edges: []Edge{{From: "npm:a@1", To: "npm:b@1"}}}
	if _, err := m.Graph(); err == nil {
		t.Error("edge with unknown endpoints should fail")
	}
}

func TestExportImportFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.json")
	if err := ExportJSON(FromGraph(sampleGraph(t)), path); err != nil {
		t.Fatal(err)
	}
	m, err := ImportJSON(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Components) != 4 {
		t.Errorf("components = %d", len(m.Components))
	}
	if _, err := ImportJSON(filepath.Join(t.TempDir(), "missing.json")); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("ImportJSON(missing) = %v", err)
	}
}

func TestToDOT(t *testing.T) {
	dot := ToDOT(sampleGraph(t), Options{})

	for _, want := range []string{
		"digraph G {",
		`"npm:lodash@4.17.21" -> "npm:left-pad@1.3.0";`,
		`"npm:ghost@0.0.1" [label="npm:ghost@0.0.1", style="rounded,filled,dashed", fillcolor=lightgrey`,
		`"npm:jest@29.7.0" [label="npm:jest@29.7.0", style="rounded,filled,dashed,bold"]`,
		`"npm:lodash@4.17.21" [label="npm:lodash@4.17.21", style="rounded,filled,bold"]`,
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT missing %q:\n%s", want, dot)
		}
	}

	detailed := ToDOT(sampleGraph(t), Options{Detailed: true})
	if !strings.Contains(detailed, `detector: npm\nweb/package-lock.json`) {
		t.Errorf("detailed label missing provenance:\n%s", detailed)
	}
}

func TestNormalizeViewBox(t *testing.T) {
	in := []byte(`<svg width="100pt" height="50pt" viewBox="0.00 0.00 100.00 50.00" xmlns="http://www.w3.org/2000/svg"><g/></svg>`)
	out := string(normalizeViewBox(in))
	if !strings.HasPrefix(out, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100.00 50.00" width="100" height="50">`) {
		t.Errorf("normalizeViewBox = %s", out)
	}
	if got := normalizeViewBox([]byte("<svg>")); string(got) != "<svg>" {
		t.Errorf("without viewBox = %s", got)
	}
}
