package cli

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matzehuels/depscout/pkg/errors"
	"github.com/matzehuels/depscout/pkg/export"
	"github.com/matzehuels/depscout/pkg/store"
)

func writeProject(t *testing.T, dir string) string {
	t.Helper()
	root := filepath.Join(dir, "proj")
	files := map[string]string{
		"package.json":     `{"dependencies": {"lodash": "4.17.21"}}`,
		"requirements.txt": "requests==2.31.0\n",
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatal(err)
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(root, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func componentIDs(m *export.Manifest) []string {
	ids := make([]string, 0, len(m.Components))
	for _, c := range m.Components {
		ids = append(ids, c.ID)
	}
	return ids
}

func TestScanCommandJSON(t *testing.T) {
	dir := isolate(t)
	root := writeProject(t, dir)
	out := filepath.Join(dir, "deps.json")

	if _, err := execute(t, "scan", root, "--no-cache", "-o", out); err != nil {
		t.Fatalf("scan: %v", err)
	}
	m, err := export.ImportJSON(out)
	if err != nil {
		t.Fatal(err)
	}
	got := strings.Join(componentIDs(m), " ")
	if got != "npm:lodash@4.17.21 pip:requests@2.31.0" {
		t.Errorf("components = %s", got)
	}
	for _, c := range m.Components {
		if !c.Explicit || c.Development {
			t.Errorf("%s: explicit=%v development=%v", c.ID, c.Explicit, c.Development)
		}
	}
}

func TestScanCommandFilters(t *testing.T) {
	dir := isolate(t)
	root := writeProject(t, dir)

	out, err := execute(t, "scan", root, "--no-cache", "--categories", "python")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !strings.Contains(out, "pip:requests@2.31.0") || strings.Contains(out, "lodash") {
		t.Errorf("python-only scan wrote:\n%s", out)
	}
}

func TestScanCommandDOT(t *testing.T) {
	dir := isolate(t)
	root := writeProject(t, dir)

	out, err := execute(t, "scan", root, "--no-cache", "--format", "dot")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !strings.HasPrefix(out, "digraph") || !strings.Contains(out, "lodash") {
		t.Errorf("dot output:\n%s", out)
	}
}

func TestScanCommandStore(t *testing.T) {
	dir := isolate(t)
	root := writeProject(t, dir)
	db := filepath.Join(dir, "history.db")

	if _, err := execute(t, "scan", root, "--no-cache", "--store", db, "-o", filepath.Join(dir, "out.json")); err != nil {
		t.Fatalf("scan: %v", err)
	}

	ctx := context.Background()
	st, err := store.Open(ctx, db)
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	list, err := st.List(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Components != 2 {
		t.Errorf("stored scans = %+v", list)
	}
}

func TestScanCommandErrors(t *testing.T) {
	dir := isolate(t)
	root := writeProject(t, dir)

	tests := []struct {
		name string
		args []string
		code errors.Code
	}{
		{"bad format", []string{"--format", "pdf"}, errors.ErrCodeInvalidFormat},
		{"unknown category", []string{"--categories", "cobol"}, errors.ErrCodeInvalidFilter},
		{"bad arg", []string{"--arg", "novalue"}, errors.ErrCodeInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"scan", root, "--no-cache"}, tt.args...)
			_, err := execute(t, args...)
			if !errors.Is(err, tt.code) {
				t.Errorf("err = %v, want %s", err, tt.code)
			}
		})
	}

	if _, err := execute(t, "scan", filepath.Join(dir, "missing"), "--no-cache"); !errors.Is(err, errors.ErrCodeInvalidPath) {
		t.Errorf("missing root: %v", err)
	}
}
