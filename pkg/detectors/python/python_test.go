package python

import (
	"slices"
	"testing"

	"github.com/matzehuels/depscout/pkg/component"
	"github.com/matzehuels/depscout/pkg/detector"
	"github.com/matzehuels/depscout/pkg/detector/detectortest"
)

func TestNormalize(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Django", "django"},
		{"zope.interface", "zope-interface"},
		{"typing_extensions", "typing-extensions"},
		{"A__B--C", "a-b-c"},
	}
	for _, tt := range tests {
		if got := normalize(tt.in); got != tt.want {
			t.Errorf("normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPoetry(t *testing.T) {
	content := `
[[package]]
name = "requests"
version = "2.31.0"
category = "main"

[package.dependencies]
urllib3 = ">=1.21.1,<3"
charset_normalizer = ">=2,<4"

[[package]]
name = "urllib3"
version = "2.0.7"
category = "main"

[[package]]
name = "charset-normalizer"
version = "3.3.2"
category = "main"

[[package]]
name = "pytest"
version = "7.4.3"
category = "dev"

[package.dependencies]
urllib3 = "*"
`
	g := detectortest.Run(t, NewPoetry(detector.Env{}), "poetry.lock", content, nil)

	requests := component.Pip("requests", "2.31.0")
	urllib3 := component.Pip("urllib3", "2.0.7")
	pytest := component.Pip("pytest", "7.4.3")

	tests := []struct {
		id            component.Identity
		explicit, dev bool
	}{
		{requests, true, false},
		{urllib3, false, false},
		{component.Pip("charset-normalizer", "3.3.2"), false, false},
		{pytest, true, true},
	}
	for _, tt := range tests {
		c := detectortest.Must(t, g, tt.id)
		if c.Explicit != tt.explicit || c.Development != tt.dev {
			t.Errorf("%s: explicit=%v dev=%v, want %v %v", tt.id, c.Explicit, c.Development, tt.explicit, tt.dev)
		}
	}
	if !detectortest.HasEdge(g, urllib3, requests) || !detectortest.HasEdge(g, urllib3, pytest) {
		t.Errorf("urllib3 parents = %v", g.Parents(urllib3))
	}
	if got := g.Roots(); !slices.Equal(got, []component.Identity{pytest, requests}) {
		t.Errorf("roots = %v", got)
	}
}

func TestPoetryGroups(t *testing.T) {
	content := `
[[package]]
name = "black"
version = "23.11.0"
groups = ["dev", "lint"]

[[package]]
name = "attrs"
version = "23.1.0"
groups = ["main", "dev"]
`
	g := detectortest.Run(t, NewPoetry(detector.Env{}), "poetry.lock", content, nil)
	if c := detectortest.Must(t, g, component.Pip("black", "23.11.0")); !c.Development {
		t.Error("black should be development")
	}
	if c := detectortest.Must(t, g, component.Pip("attrs", "23.1.0")); c.Development {
		t.Error("attrs is in main and must not be development")
	}
}

func TestPoetryMalformed(t *testing.T) {
	g := detectortest.Run(t, NewPoetry(detector.Env{}), "poetry.lock", "[[package]\nname =", nil)
	if g.Len() != 0 {
		t.Errorf("recorded %d components", g.Len())
	}
}

func TestParseRequirement(t *testing.T) {
	tests := []struct {
		line          string
		name, version string
		ok            bool
	}{
		{"requests==2.31.0", "requests", "2.31.0", true},
		{"Flask == 3.0.0  # web", "flask", "3.0.0", true},
		{"uvicorn[standard]==0.24.0", "uvicorn", "0.24.0", true},
		{"numpy>=1.26", "numpy", "", true},
		{"pkg===1.0 ; python_version < '3.12'", "pkg", "1.0", true},
		{"# comment", "", "", false},
		{"-r base.txt", "", "", false},
		{"git+https://github.com/x/y.git", "", "", false},
		{"", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			name, version, ok := parseRequirement(tt.line)
			if name != tt.name || version != tt.version || ok != tt.ok {
				t.Errorf("parseRequirement(%q) = %q, %q, %v; want %q, %q, %v",
					tt.line, name, version, ok, tt.name, tt.version, tt.ok)
			}
		})
	}
}

func TestRequirements(t *testing.T) {
	content := "requests==2.31.0\nnumpy>=1.26\n-e .\nFlask==3.0.0\n"

	g := detectortest.Run(t, NewRequirements(detector.Env{}), "requirements.txt", content, nil)
	want := []string{"pip:flask@3.0.0", "pip:requests@2.31.0"}
	if got := detectortest.IDs(g); !slices.Equal(got, want) {
		t.Fatalf("components = %v, want %v", got, want)
	}
	for _, c := range g.Components() {
		if !c.Explicit || c.Development {
			t.Errorf("%s: explicit=%v dev=%v", c.Identity, c.Explicit, c.Development)
		}
	}

	g = detectortest.Run(t, NewRequirements(detector.Env{}), "svc/requirements-dev.txt", "pytest==7.4.3\n", nil)
	if c := detectortest.Must(t, g, component.Pip("pytest", "7.4.3")); !c.Development {
		t.Error("requirements-dev.txt entries should be development")
	}
}
