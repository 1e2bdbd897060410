package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/depscout/pkg/detector"
)

func (c *CLI) detectorsCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "detectors",
		Short: "List the available detectors",
		Long: `List the available detectors with their search patterns and categories.

Detectors gated "off" run only when named with --detectors; "experimental"
detectors also run with --experimental.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			infos, err := c.Registry.Infos()
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(infos)
			}
			return renderDetectors(cmd.OutOrStdout(), infos)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func renderDetectors(w io.Writer, infos []detector.Info) error {
	rows := make([][]string, 0, len(infos))
	for _, in := range infos {
		rows = append(rows, []string{
			in.ID,
			fmt.Sprintf("v%d", in.Version),
			in.Gate,
			strings.Join(in.Categories, ", "),
			strings.Join(in.Patterns, " "),
		})
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Detector", "Version", "Gate", "Categories", "Patterns").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			base := lipgloss.NewStyle().Padding(0, 1)
			if row == -1 {
				return base.Inherit(styleHeader)
			}
			if row < 0 || row >= len(infos) {
				return base
			}
			switch {
			case col == 0:
				return base.Foreground(colorCyan)
			case col == 2 && infos[row].Gate != detector.DefaultOn.String():
				return base.Foreground(colorYellow)
			case col == 4:
				return base.Foreground(colorGray)
			}
			return base
		})
	_, err := fmt.Fprintln(w, t.Render())
	return err
}
