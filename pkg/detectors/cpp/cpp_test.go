package cpp

import (
	"slices"
	"testing"

	"github.com/matzehuels/depscout/pkg/component"
	"github.com/matzehuels/depscout/pkg/detector"
	"github.com/matzehuels/depscout/pkg/detector/detectortest"
)

func TestParseConanRef(t *testing.T) {
	tests := []struct {
		ref  string
		want component.Identity
		ok   bool
	}{
		{"zlib/1.2.13", component.Conan("zlib", "1.2.13", ""), true},
		{"zlib/1.2.13#4e74ebf1361fe6fb60326f473f276eb5%1698314637.342", component.Conan("zlib", "1.2.13", ""), true},
		{"boost/1.83.0@corp/stable#rev:pkgid", component.Conan("boost", "1.83.0", "corp/stable"), true},
		{"fmt/10.1.1@_/_", component.Conan("fmt", "10.1.1", ""), true},
		{"conanfile.py", component.Identity{}, false},
		{"", component.Identity{}, false},
	}
	for _, tt := range tests {
		got, ok := parseConanRef(tt.ref)
		if ok != tt.ok || got != tt.want {
			t.Errorf("parseConanRef(%q) = %v, %v; want %v, %v", tt.ref, got, ok, tt.want, tt.ok)
		}
	}
}

func TestConanV1(t *testing.T) {
	content := `{
 "graph_lock": {
  "nodes": {
   "0": {"path": "conanfile.txt", "requires": ["1"], "build_requires": ["3"]},
   "1": {"ref": "openssl/3.1.3", "requires": ["2"], "context": "host"},
   "2": {"ref": "zlib/1.3", "context": "host"},
   "3": {"ref": "cmake/3.27.7", "context": "build"}
  },
  "revisions_enabled": false
 },
 "version": "0.4"
}`
	g := detectortest.Run(t, NewConan(detector.Env{}), "conan.lock", content, nil)

	openssl := component.Conan("openssl", "3.1.3", "")
	zlib := component.Conan("zlib", "1.3", "")
	cmake := component.Conan("cmake", "3.27.7", "")
	tests := []struct {
		id            component.Identity
		explicit, dev bool
	}{
		{openssl, true, false},
		{zlib, false, false},
		{cmake, true, true},
	}
	for _, tt := range tests {
		c := detectortest.Must(t, g, tt.id)
		if c.Explicit != tt.explicit || c.Development != tt.dev {
			t.Errorf("%s: explicit=%v dev=%v, want %v %v", tt.id, c.Explicit, c.Development, tt.explicit, tt.dev)
		}
	}
	if !detectortest.HasEdge(g, zlib, openssl) {
		t.Error("missing openssl -> zlib")
	}
	if g.Len() != 3 {
		t.Errorf("components = %v", detectortest.IDs(g))
	}
}

func TestConanV2(t *testing.T) {
	content := `{
    "version": "0.5",
    "requires": ["zlib/1.3#b3b71bfe8dd07abc7b82ff2bd0eac021%1697134400.045"],
    "build_requires": ["cmake/3.27.7#abc%1697134400.1"],
    "python_requires": []
}`
	g := detectortest.Run(t, NewConan(detector.Env{}), "conan.lock", content, nil)
	if c := detectortest.Must(t, g, component.Conan("zlib", "1.3", "")); c.Development {
		t.Error("zlib is a host requirement")
	}
	if c := detectortest.Must(t, g, component.Conan("cmake", "3.27.7", "")); !c.Development {
		t.Error("cmake is a build requirement")
	}
}

func TestVcpkgManifest(t *testing.T) {
	content := `{
  "name": "app",
  "dependencies": [
    "fmt",
    {"name": "zlib", "version>=": "1.2.13"},
    {"name": "vcpkg-cmake", "host": true}
  ],
  "overrides": [{"name": "fmt", "version": "10.1.1", "port-version": 2}]
}`
	g := detectortest.Run(t, NewVcpkg(detector.Env{}), "vcpkg.json", content, nil)
	want := []string{
		"vcpkg:fmt@10.1.1?port_version=2",
		"vcpkg:vcpkg-cmake",
		"vcpkg:zlib@1.2.13",
	}
	if got := detectortest.IDs(g); !slices.Equal(got, want) {
		t.Fatalf("components = %v, want %v", got, want)
	}
	if c := detectortest.Must(t, g, component.Vcpkg("vcpkg-cmake", "", "", "")); !c.Development || !c.Explicit {
		t.Errorf("vcpkg-cmake: explicit=%v dev=%v", c.Explicit, c.Development)
	}
}

func TestVcpkgStatus(t *testing.T) {
	content := `Package: vcpkg-cmake
Version: 2023-05-04
Architecture: x64-linux
Multi-Arch: same
Status: install ok installed

Package: fmt
Version: 10.1.1
Port-Version: 1
Depends: vcpkg-cmake:x64-linux
Architecture: x64-linux
Multi-Arch: same
Status: install ok installed

Package: fmt
Feature: extra
Architecture: x64-linux
Status: install ok installed

Package: zlib
Version: 1.3
Architecture: x64-linux
Status: purge ok not-installed
`
	g := detectortest.Run(t, NewVcpkg(detector.Env{}), "build/vcpkg_installed/vcpkg/status", content, nil)

	fmtID := component.Vcpkg("fmt", "10.1.1", "x64-linux", "1")
	cmake := component.Vcpkg("vcpkg-cmake", "2023-05-04", "x64-linux", "")
	want := []string{fmtID.ID(), cmake.ID()}
	if got := detectortest.IDs(g); !slices.Equal(got, want) {
		t.Fatalf("components = %v, want %v", got, want)
	}
	if !detectortest.HasEdge(g, cmake, fmtID) {
		t.Error("missing fmt -> vcpkg-cmake")
	}
}
