package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/depscout/pkg/component"
	"github.com/matzehuels/depscout/pkg/recorder"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// =============================================================================
// ComponentListModel - Interactive component browser
// =============================================================================

// ComponentListModel is the bubbletea model for browsing a scan's components.
// Enter opens the selected component's parents and children; e and d toggle
// the explicit-only and hide-development filters.
type ComponentListModel struct {
	Graph *recorder.Graph

	Components []recorder.Component
	Cursor     int
	Offset     int
	Height     int

	// Detail is the component whose edges are shown, if any.
	Detail *recorder.Component

	ExplicitOnly bool
	HideDev      bool

	all []recorder.Component
}

// NewComponentListModel creates a browser over g.
func NewComponentListModel(g *recorder.Graph) ComponentListModel {
	m := ComponentListModel{
		Graph:  g,
		Height: 15,
		all:    g.Components(),
	}
	m.applyFilter()
	return m
}

func (m *ComponentListModel) applyFilter() {
	m.Components = nil
	for _, c := range m.all {
		if m.ExplicitOnly && !c.Explicit {
			continue
		}
		if m.HideDev && c.Development {
			continue
		}
		m.Components = append(m.Components, c)
	}
	m.Cursor, m.Offset = 0, 0
}

func (m ComponentListModel) Init() tea.Cmd {
	return nil
}

func (m ComponentListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.Detail != nil {
			switch msg.String() {
			case "ctrl+c", "q":
				return m, tea.Quit
			case "esc", "enter", "backspace":
				m.Detail = nil
			}
			return m, nil
		}
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.Components)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case "e":
			m.ExplicitOnly = !m.ExplicitOnly
			m.applyFilter()
		case "d":
			m.HideDev = !m.HideDev
			m.applyFilter()
		case "enter":
			if len(m.Components) == 0 {
				return m, nil
			}
			c := m.Components[m.Cursor]
			m.Detail = &c
		}
	case tea.WindowSizeMsg:
		m.Height = msg.Height - 8
		if m.Height < 5 {
			m.Height = 5
		}
	}
	return m, nil
}

func (m ComponentListModel) View() string {
	if m.Detail != nil {
		return m.detailView()
	}

	var b strings.Builder
	b.WriteString(StyleTitle.Render("Components"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ details  e explicit only  d hide dev  q quit"))
	b.WriteString("\n\n")

	end := min(m.Offset+m.Height, len(m.Components))
	rows := [][]string{}
	for i := m.Offset; i < end; i++ {
		c := m.Components[i]
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		rows = append(rows, []string{
			cursor,
			c.Identity.Type.String(),
			displayName(c.Identity),
			dash(c.Identity.Version),
			flags(c),
			dash(strings.Join(c.Locations, ", ")),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Type", "Name", "Version", "Flags", "Found in").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return styleHeader
			}
			idx := m.Offset + row
			if idx >= len(m.Components) {
				return lipgloss.NewStyle()
			}
			c := m.Components[idx]
			base := lipgloss.NewStyle()
			if col == 5 {
				base = base.Foreground(colorDim)
			}
			switch {
			case idx == m.Cursor:
				return base.Foreground(colorCyan).Bold(true)
			case c.Development:
				return base.Foreground(colorDim)
			case c.Explicit && col != 5:
				return base.Foreground(colorGreen)
			}
			return base
		})

	b.WriteString(t.Render())
	b.WriteString("\n\n")
	pos := 0
	if len(m.Components) > 0 {
		pos = m.Cursor + 1
	}
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", pos, len(m.Components))))
	if m.ExplicitOnly || m.HideDev {
		b.WriteString(listDimStyle.Render(fmt.Sprintf("  of %d", len(m.all))))
	}
	return b.String()
}

func (m ComponentListModel) detailView() string {
	c := m.Detail
	var b strings.Builder
	b.WriteString(StyleTitle.Render(c.Identity.ID()))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("esc back  q quit"))
	b.WriteString("\n\n")

	field := func(k, v string) {
		fmt.Fprintf(&b, "  %s %s\n", StyleDim.Render(fmt.Sprintf("%-10s", k)), StyleValue.Render(v))
	}
	field("type", c.Identity.Type.String())
	field("flags", flags(*c))
	if purl := c.Identity.PURL(); purl != "" {
		field("purl", purl)
	}
	if c.DetectorID != "" {
		field("detector", c.DetectorID)
	}
	if c.FileHash != "" {
		field("hash", c.FileHash)
	}
	for _, loc := range c.Locations {
		field("found in", loc)
	}

	section := func(title string, ids []component.Identity) {
		b.WriteString("\n")
		b.WriteString(styleHeader.Render(fmt.Sprintf("%s (%d)", title, len(ids))))
		b.WriteString("\n")
		if len(ids) == 0 {
			b.WriteString(listDimStyle.Render("  none"))
			b.WriteString("\n")
		}
		for _, id := range ids {
			b.WriteString("  ")
			b.WriteString(listSelectedStyle.Render(id.ID()))
			b.WriteString("\n")
		}
	}
	section("Parents", m.Graph.Parents(c.Identity))
	section("Children", m.Graph.Children(c.Identity))
	return b.String()
}

// browse runs the component browser until the user quits.
func browse(g *recorder.Graph) error {
	if g == nil || g.Len() == 0 {
		printInfo("No components to browse")
		return nil
	}
	_, err := tea.NewProgram(NewComponentListModel(g), tea.WithAltScreen()).Run()
	return err
}

// =============================================================================
// Helpers
// =============================================================================

func displayName(id component.Identity) string {
	if id.Namespace == "" {
		return id.Name
	}
	return id.Namespace + "/" + id.Name
}

func flags(c recorder.Component) string {
	var out []string
	if c.Explicit {
		out = append(out, "explicit")
	}
	if c.Development {
		out = append(out, "dev")
	}
	if !c.Observed {
		out = append(out, "unobserved")
	}
	return dash(strings.Join(out, ","))
}

func dash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}
