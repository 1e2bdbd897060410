package cli

import (
	"io"
	"slices"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestFilterList(t *testing.T) {
	values := []string{"javascript", "java", "python"}
	tests := []struct {
		in   string
		want []string
	}{
		{"", values},
		{"ja", []string{"javascript", "java"}},
		{"python,ja", []string{"python,javascript", "python,java"}},
		{"go", nil},
	}
	for _, tt := range tests {
		if got := filterList(values, tt.in); !slices.Equal(got, tt.want) {
			t.Errorf("filterList(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestCategories(t *testing.T) {
	cats := New(io.Discard, log.InfoLevel).categories()
	for _, want := range []string{"javascript", "python", "rust"} {
		if !slices.Contains(cats, want) {
			t.Errorf("categories missing %q: %v", want, cats)
		}
	}
	if !slices.IsSorted(cats) || len(slices.Compact(slices.Clone(cats))) != len(cats) {
		t.Errorf("categories not sorted and unique: %v", cats)
	}
}

func TestCompletionScripts(t *testing.T) {
	isolate(t)
	for _, shell := range []string{"bash", "zsh", "fish", "powershell"} {
		out, err := execute(t, "completion", shell)
		if err != nil {
			t.Fatalf("%s: %v", shell, err)
		}
		if !strings.Contains(out, appName) {
			t.Errorf("%s script does not mention %s", shell, appName)
		}
	}
	if _, err := execute(t, "completion", "tcsh"); err == nil {
		t.Error("expected error for unsupported shell")
	}
}

func TestScanFlagCompletion(t *testing.T) {
	isolate(t)
	out, err := execute(t, "__complete", "scan", "--detectors", "np")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "npm\ton") {
		t.Errorf("completion output:\n%s", out)
	}
}
