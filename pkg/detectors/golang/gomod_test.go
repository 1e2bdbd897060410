package golang

import (
	"slices"
	"testing"

	"github.com/matzehuels/depscout/pkg/component"
	"github.com/matzehuels/depscout/pkg/detector"
	"github.com/matzehuels/depscout/pkg/detector/detectortest"
)

func TestGoMod(t *testing.T) {
	content := `module example.com/app

go 1.24

require (
	github.com/spf13/cobra v1.10.1
	golang.org/x/sync v0.18.0
	github.com/inconshreveable/mousetrap v1.1.0 // indirect
	example.com/forked v1.0.0
	example.com/local v0.0.0
)

replace example.com/forked => example.com/fork v1.2.0

replace example.com/local => ../local
`
	g := detectortest.Run(t, New(detector.Env{}), "go.mod", content, nil)

	want := []string{
		"go:example.com/fork@v1.2.0",
		"go:example.com/local@v0.0.0",
		"go:github.com/inconshreveable/mousetrap@v1.1.0",
		"go:github.com/spf13/cobra@v1.10.1",
		"go:golang.org/x/sync@v0.18.0",
	}
	if got := detectortest.IDs(g); !slices.Equal(got, want) {
		t.Fatalf("components = %v, want %v", got, want)
	}

	tests := []struct {
		id       component.Identity
		explicit bool
	}{
		{component.Go("github.com/spf13/cobra", "v1.10.1"), true},
		{component.Go("github.com/inconshreveable/mousetrap", "v1.1.0"), false},
	}
	for _, tt := range tests {
		if c := detectortest.Must(t, g, tt.id); c.Explicit != tt.explicit {
			t.Errorf("%s: explicit = %v, want %v", tt.id, c.Explicit, tt.explicit)
		}
	}
}

func TestGoModMalformed(t *testing.T) {
	g := detectortest.Run(t, New(detector.Env{}), "go.mod", "require (\n\tbroken\n", nil)
	if g.Len() != 0 {
		t.Errorf("recorded %d components", g.Len())
	}
}
