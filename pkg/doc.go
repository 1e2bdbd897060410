// Package pkg provides the core libraries for depscout dependency detection.
//
// # Overview
//
// depscout walks a source tree, hands every package manifest and lock file it
// recognises to a detector, and merges what the detectors report into one
// dependency graph. The pkg directory is organized into four main areas:
//
//  1. [component], [depgraph], [recorder] - Identities and the dependency graph
//  2. [detector], [detectors] - The detector contract and built-in detectors
//  3. [scan], [fswalk], [broadcast] - Orchestration of a scan
//  4. [cache], [store], [export], [observability] - Infrastructure
//
// # Architecture
//
// The data flow of a scan:
//
//	Source tree
//	     ↓
//	[fswalk] (find files matching each detector's patterns)
//	     ↓
//	[detector] (parse one file into a recorder.SingleFileRecorder)
//	     ↓
//	[recorder] (fold per-file graphs into one, production wins)
//	     ↓
//	[export] (JSON manifest, DOT, SVG)
//
// # Quick Start
//
//	import (
//	    "context"
//	    "github.com/matzehuels/depscout/pkg/detectors"
//	    "github.com/matzehuels/depscout/pkg/scan"
//	)
//
//	res, err := scan.New(detectors.NewRegistry(), scan.Options{}).Run(context.Background(), ".")
//	if err != nil {
//	    return err
//	}
//	for _, c := range res.Graph.Components() {
//	    fmt.Println(c.Identity, c.Explicit, c.Development)
//	}
//
// # Caching
//
// Detector output is cached per file content in a [cache.Cache]. The cache
// stores the registration log of a file, and a hit replays it into a fresh
// recorder, so cached and uncached scans produce identical graphs.
package pkg
