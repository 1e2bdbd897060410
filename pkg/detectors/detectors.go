// Package detectors assembles the built-in ecosystem detectors.
package detectors

import (
	"github.com/matzehuels/depscout/pkg/detector"
	"github.com/matzehuels/depscout/pkg/detectors/cpp"
	"github.com/matzehuels/depscout/pkg/detectors/dockerfile"
	"github.com/matzehuels/depscout/pkg/detectors/golang"
	"github.com/matzehuels/depscout/pkg/detectors/java"
	"github.com/matzehuels/depscout/pkg/detectors/linux"
	"github.com/matzehuels/depscout/pkg/detectors/npm"
	"github.com/matzehuels/depscout/pkg/detectors/pnpm"
	"github.com/matzehuels/depscout/pkg/detectors/python"
	"github.com/matzehuels/depscout/pkg/detectors/rust"
	"github.com/matzehuels/depscout/pkg/detectors/spdx"
	"github.com/matzehuels/depscout/pkg/detectors/swift"
)

// Factories returns a factory for every built-in detector.
func Factories() []detector.Factory {
	return []detector.Factory{
		npm.New,
		pnpm.New,
		java.New,
		python.NewPoetry,
		python.NewRequirements,
		rust.New,
		golang.New,
		cpp.NewConan,
		cpp.NewVcpkg,
		linux.New,
		spdx.New,
		swift.New,
		dockerfile.New,
	}
}

// NewRegistry returns a registry holding every built-in detector.
func NewRegistry() *detector.Registry {
	return detector.NewRegistry(Factories()...)
}
