package export

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/depscout/pkg/recorder"
)

// Options configures diagram generation.
type Options struct {
	// Detailed adds locations and detector to node labels.
	Detailed bool
}

// ToDOT converts g to Graphviz DOT source. Edges point from the dependent
// to the dependency.
func ToDOT(g *recorder.Graph, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	for _, c := range g.Components() {
		fmt.Fprintf(&buf, "  %q [%s];\n", c.Identity.ID(), strings.Join(fmtAttrs(c, fmtLabel(c, opts.Detailed)), ", "))
	}

	buf.WriteString("\n")
	for _, e := range g.Edges() {
		fmt.Fprintf(&buf, "  %q -> %q;\n", e.Parent.ID(), e.Child.ID())
	}

	buf.WriteString("}\n")
	return buf.String()
}

func fmtLabel(c recorder.Component, detailed bool) string {
	if !detailed {
		return c.Identity.ID()
	}
	parts := []string{c.Identity.ID()}
	if c.DetectorID != "" {
		parts = append(parts, "detector: "+c.DetectorID)
	}
	for _, loc := range c.Locations {
		parts = append(parts, loc)
	}
	return strings.Join(parts, "\n")
}

func fmtAttrs(c recorder.Component, label string) []string {
	attrs := []string{fmt.Sprintf("label=%q", label)}
	switch {
	case !c.Observed:
		attrs = append(attrs, "style=\"rounded,filled,dashed\"", "fillcolor=lightgrey", "fontcolor=grey30")
	case c.Development && c.Explicit:
		attrs = append(attrs, "style=\"rounded,filled,dashed,bold\"")
	case c.Development:
		attrs = append(attrs, "style=\"rounded,filled,dashed\"")
	case c.Explicit:
		attrs = append(attrs, "style=\"rounded,filled,bold\"")
	}
	return attrs
}

// RenderSVG lays out DOT source and renders it to SVG.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox replaces Graphviz's point-based svg header with one
// whose width and height match the view box.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}
	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}
	header := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`, w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(header))
}
