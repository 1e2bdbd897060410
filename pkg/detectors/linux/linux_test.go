package linux

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/depscout/pkg/broadcast"
	"github.com/matzehuels/depscout/pkg/component"
	"github.com/matzehuels/depscout/pkg/detector"
	"github.com/matzehuels/depscout/pkg/detector/detectortest"
)

const dpkgStatus = `Package: libc6
Status: install ok installed
Architecture: amd64
Version: 2.36-9+deb12u3
Description: GNU C Library: Shared libraries
 Contains the standard libraries.

Package: zlib1g
Status: install ok installed
Architecture: amd64
Version: 1:1.2.13.dfsg-1
Pre-Depends: libc6 (>= 2.14)

Package: removed
Status: deinstall ok config-files
Version: 1.0
`

const apkInstalled = `C:Q1abc=
P:musl
V:1.2.4-r2
A:x86_64

C:Q1def=
P:busybox
V:1.36.1-r15
D:so:libc.musl-x86_64.so.1 musl>=1.2
`

func TestDpkg(t *testing.T) {
	g := detectortest.Run(t, New(detector.Env{}), "rootfs/var/lib/dpkg/status", dpkgStatus,
		detector.Args{"linux.release": "12"})

	libc := component.Linux("debian", "12", "libc6", "2.36-9+deb12u3")
	zlib := component.Linux("debian", "12", "zlib1g", "1:1.2.13.dfsg-1")
	if g.Len() != 2 {
		t.Fatalf("components = %v", detectortest.IDs(g))
	}
	detectortest.Must(t, g, libc)
	detectortest.Must(t, g, zlib)
	if !detectortest.HasEdge(g, libc, zlib) {
		t.Error("missing zlib1g -> libc6")
	}
}

func TestAPK(t *testing.T) {
	tests := []struct {
		name string
		args detector.Args
		dist string
	}{
		{"default distribution", nil, "alpine"},
		{"wolfi", detector.Args{"linux.distribution": "wolfi"}, "wolfi"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := detectortest.Run(t, New(detector.Env{}), "lib/apk/db/installed", apkInstalled, tt.args)
			musl := component.Linux(tt.dist, "", "musl", "1.2.4-r2")
			busybox := component.Linux(tt.dist, "", "busybox", "1.36.1-r15")
			detectortest.Must(t, g, musl)
			detectortest.Must(t, g, busybox)
			if !detectortest.HasEdge(g, musl, busybox) {
				t.Error("missing busybox -> musl")
			}
		})
	}
}

func TestGate(t *testing.T) {
	if New(detector.Env{}).Gate() != detector.Experimental {
		t.Error("linux detector should be experimental")
	}
}

func TestBuildContextSignal(t *testing.T) {
	ch := broadcast.New[detector.Signal]()
	var buf bytes.Buffer
	logger := log.New(&buf)
	logger.SetLevel(log.DebugLevel)
	d := New(detector.Env{Logger: logger, Signals: ch}).(*Detector)

	if err := ch.Publish(context.Background(), detector.Signal{
		Kind: detector.SignalContainerBuildContext,
		Dir:  "images/web",
		Ref:  "debian:12",
	}); err != nil {
		t.Fatal(err)
	}
	ch.Complete()
	<-d.watching

	g := detectortest.Run(t, d, "images/web/rootfs/var/lib/dpkg/status", dpkgStatus, nil)
	if g.Len() != 2 {
		t.Errorf("components = %v", detectortest.IDs(g))
	}
	if out := buf.String(); !strings.Contains(out, "build context") || !strings.Contains(out, "debian:12") {
		t.Errorf("log = %q, want a note about the build context", out)
	}

	buf.Reset()
	detectortest.Run(t, d, "images/webapp/var/lib/dpkg/status", dpkgStatus, nil)
	if strings.Contains(buf.String(), "build context") {
		t.Errorf("sibling directory matched the build context: %q", buf.String())
	}
}

func TestNoSignalChannel(t *testing.T) {
	d := New(detector.Env{}).(*Detector)
	select {
	case <-d.watching:
	default:
		t.Error("detector without a signal channel should not watch")
	}
}
