package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/depscout/pkg/scan"
)

// =============================================================================
// Color Palette
// =============================================================================

var (
	colorCyan   = lipgloss.Color("36")  // Teal - primary actions
	colorGreen  = lipgloss.Color("35")  // Green - success
	colorYellow = lipgloss.Color("220") // Amber - warnings
	colorRed    = lipgloss.Color("167") // Soft red - errors
	colorWhite  = lipgloss.Color("255") // Bright white - values
	colorGray   = lipgloss.Color("245") // Gray - secondary text
	colorDim    = lipgloss.Color("240") // Dim gray - muted text
)

// =============================================================================
// Styles
// =============================================================================

var (
	// StyleTitle for main headings.
	StyleTitle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)

	// StyleDim for secondary/muted text.
	StyleDim = lipgloss.NewStyle().Foreground(colorDim)

	// StyleValue for data values.
	StyleValue = lipgloss.NewStyle().Foreground(colorWhite)

	// StyleSuccess for success messages.
	StyleSuccess = lipgloss.NewStyle().Foreground(colorGreen)

	// StyleWarning for warning messages.
	StyleWarning = lipgloss.NewStyle().Foreground(colorYellow)

	styleIconSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleIconError   = lipgloss.NewStyle().Foreground(colorRed)
	styleIconWarning = lipgloss.NewStyle().Foreground(colorYellow)
	styleIconInfo    = lipgloss.NewStyle().Foreground(colorGray)
	styleIconSpinner = lipgloss.NewStyle().Foreground(colorCyan)

	styleCached = lipgloss.NewStyle().Foreground(colorGreen)
	styleHeader = lipgloss.NewStyle().Foreground(colorGray).Bold(true)
)

const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconWarning = "!"
	iconInfo    = "›"
	iconArrow   = "→"
)

// statusOut receives human-oriented status lines. It is stderr so that
// results written to stdout stay machine-readable.
var statusOut io.Writer = os.Stderr

// =============================================================================
// Status Output
// =============================================================================

func printSuccess(format string, args ...any) {
	fmt.Fprintln(statusOut, styleIconSuccess.Render(iconSuccess)+" "+fmt.Sprintf(format, args...))
}

func printError(format string, args ...any) {
	fmt.Fprintln(statusOut, styleIconError.Render(iconError)+" "+fmt.Sprintf(format, args...))
}

func printWarning(format string, args ...any) {
	fmt.Fprintln(statusOut, styleIconWarning.Render(iconWarning)+" "+StyleWarning.Render(fmt.Sprintf(format, args...)))
}

func printInfo(format string, args ...any) {
	fmt.Fprintln(statusOut, styleIconInfo.Render(iconInfo)+" "+fmt.Sprintf(format, args...))
}

// printDetail prints an indented, dimmed line.
func printDetail(format string, args ...any) {
	fmt.Fprintln(statusOut, "  "+StyleDim.Render(fmt.Sprintf(format, args...)))
}

func printFile(path string) {
	fmt.Fprintln(statusOut, "  "+StyleDim.Render(iconArrow)+" "+StyleValue.Render(path))
}

// =============================================================================
// Scan Summary
// =============================================================================

// printScanSummary prints counts for res and one line per unit that did not
// contribute.
func printScanSummary(res *scan.Result) {
	var explicit, dev int
	for _, comp := range res.Graph.Components() {
		if comp.Explicit {
			explicit++
		}
		if comp.Development {
			dev++
		}
	}
	printSuccess("Found %d components in %s", res.Graph.Len(), res.Duration.Round(time.Millisecond))
	printStats(res, explicit, dev)

	for _, f := range res.Failed() {
		printWarning("%s on %s: %s", f.DetectorID, f.Location, f.Status)
		if f.Err != "" {
			printDetail("%s", f.Err)
		}
	}
	if n := len(res.Graph.Cycles()); n > 0 {
		printWarning("%d dependency cycle(s)", n)
	}
}

// printStats prints graph statistics on a single line.
func printStats(res *scan.Result, explicit, dev int) {
	parts := []string{
		fmt.Sprintf("%d explicit", explicit),
		fmt.Sprintf("%d dev", dev),
		fmt.Sprintf("%d edges", res.Graph.EdgeCount()),
		fmt.Sprintf("%d files", len(res.Files)),
	}
	var cached int
	for _, d := range res.Detectors {
		cached += d.CacheHits
	}
	line := make([]string, 0, len(parts)+1)
	for _, p := range parts {
		line = append(line, StyleDim.Render(p))
	}
	if cached > 0 {
		line = append(line, styleCached.Render(fmt.Sprintf("%d cached", cached)))
	}
	fmt.Fprintln(statusOut, "  "+strings.Join(line, StyleDim.Render(" · ")))
}
