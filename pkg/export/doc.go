// Package export writes scan results as a JSON manifest, Graphviz DOT, or
// SVG, and reads manifests back.
//
// # Manifest
//
// The manifest is deterministic: two scans of the same tree produce the
// same bytes apart from the scan id, start time, and durations.
// Components appear in identity order and edges in (parent, child) order:
//
//	{
//	  "schemaVersion": 1,
//	  "components": [
//	    {"id": "npm:left-pad@1.3.0", "purl": "pkg:npm/left-pad@1.3.0", ...},
//	    {"id": "npm:lodash@4.17.21", "purl": "pkg:npm/lodash@4.17.21", "explicit": true, ...}
//	  ],
//	  "edges": [{"from": "npm:lodash@4.17.21", "to": "npm:left-pad@1.3.0"}],
//	  "roots": ["npm:lodash@4.17.21"]
//	}
//
// Edges point from the dependent to the dependency. Components with
// "observed": false were only ever named as a parent.
//
// Use [WriteJSON] and [ReadJSON] for streams and [ExportJSON] and
// [ImportJSON] for files. [Manifest.Graph] rebuilds the graph for further
// processing.
//
// # Diagrams
//
// [ToDOT] renders the graph as DOT source; [RenderSVG] lays it out in
// process with [github.com/goccy/go-graphviz]. Development-only components
// are drawn dashed, explicit ones bold, and placeholders grey.
package export
