package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	sankeyio "github.com/matzehuels/stripesankey/pkg/io"
	"github.com/matzehuels/stripesankey/pkg/render/sankey/sink"
	"github.com/matzehuels/stripesankey/pkg/sankey"
	"github.com/matzehuels/stripesankey/pkg/sankey/selection"
	"github.com/matzehuels/stripesankey/pkg/widget"
)

// exploreCommand creates the explore command: a terminal browser over the
// significant flows of a dataset.
func (c *CLI) exploreCommand() *cobra.Command {
	var (
		output   string
		mode     string
		width    int
		height   int
		selected string
	)

	cmd := &cobra.Command{
		Use:   "explore [data.json]",
		Short: "Browse flows and trace their samples in the terminal",
		Long: `Browse the drawn flows of a dataset, largest first.

Moving the cursor hovers a flow; enter selects it and traces its samples,
pressing it again clears the selection. The current diagram can be saved as
SVG at any time.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			props, err := c.props(cmd, mode, width, height)
			if err != nil {
				return err
			}
			if output == "" {
				output = basePath("", args[0]) + ".svg"
			}
			return c.runExplore(cmd.Context(), args[0], props, selected, output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "SVG path written by the save key (default: <input>.svg)")
	cmd.Flags().StringVarP(&selected, "select", "s", "", `initially selected flow, as "SOURCE->TARGET"`)
	cmd.Flags().StringVar(&mode, "mode", "", "colour mode: default, metric")
	cmd.Flags().IntVar(&width, "width", 0, "canvas width of saved SVGs")
	cmd.Flags().IntVar(&height, "height", 0, "canvas height of saved SVGs")

	return cmd
}

func (c *CLI) runExplore(ctx context.Context, input string, props widget.Props, ref, output string) error {
	raw, err := sankeyio.Import(input)
	if err != nil && !errors.Is(err, sankeyio.ErrEmptyDataset) {
		return fmt.Errorf("load %s: %w", input, err)
	}
	props.Data = raw

	w := widget.New(props, widget.WithLogger(c.Logger))
	if ref != "" {
		ds := w.Dataset()
		if ds == nil {
			return fmt.Errorf("cannot select %q: dataset is empty", ref)
		}
		snap, err := selection.Resolve(ds, ref)
		if err != nil {
			return err
		}
		w.SetSelection(snap)
	}
	unsubscribe := w.Subscribe(func(s selection.Snapshot) {
		c.Logger.Debug("selection committed", "flow", s.String())
	})
	defer unsubscribe()

	m, err := tea.NewProgram(newExploreModel(w, output), tea.WithContext(ctx), tea.WithAltScreen()).Run()
	if err != nil {
		return err
	}
	if em, ok := m.(exploreModel); ok && em.saved != "" {
		printFile(em.saved)
	}
	return nil
}

// =============================================================================
// Key Bindings
// =============================================================================

type exploreKeys struct {
	Up     key.Binding
	Down   key.Binding
	Select key.Binding
	Clear  key.Binding
	Mode   key.Binding
	Save   key.Binding
	Help   key.Binding
	Quit   key.Binding
}

var defaultExploreKeys = exploreKeys{
	Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Select: key.NewBinding(key.WithKeys("enter", " "), key.WithHelp("⏎", "select flow")),
	Clear:  key.NewBinding(key.WithKeys("esc", "backspace"), key.WithHelp("esc", "clear")),
	Mode:   key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "metric mode")),
	Save:   key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "save svg")),
	Help:   key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more")),
	Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

func (k exploreKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Select, k.Clear, k.Mode, k.Help, k.Quit}
}

func (k exploreKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down},
		{k.Select, k.Clear},
		{k.Mode, k.Save},
		{k.Help, k.Quit},
	}
}

// =============================================================================
// Model
// =============================================================================

// exploreModel is the bubbletea model of the explore command.
type exploreModel struct {
	w      *widget.Widget
	frame  *widget.Frame
	flows  []*sankey.Flow // drawn flows, largest first
	cursor int
	offset int
	height int

	keys   exploreKeys
	help   help.Model
	output string
	saved  string
	status string
}

func newExploreModel(w *widget.Widget, output string) exploreModel {
	m := exploreModel{
		w:      w,
		frame:  w.Frame(),
		height: 12,
		keys:   defaultExploreKeys,
		help:   help.New(),
		output: output,
	}
	for _, fv := range m.frame.Flows {
		m.flows = append(m.flows, fv.Path.Flow)
	}
	slices.SortStableFunc(m.flows, func(a, b *sankey.Flow) int { return b.SampleCount - a.SampleCount })
	if len(m.flows) > 0 {
		m.frame = m.hover()
	}
	return m
}

func (m exploreModel) Init() tea.Cmd {
	return nil
}

func (m exploreModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Up):
			if m.cursor > 0 {
				m.cursor--
				if m.cursor < m.offset {
					m.offset = m.cursor
				}
				m.frame = m.hover()
			}
		case key.Matches(msg, m.keys.Down):
			if m.cursor < len(m.flows)-1 {
				m.cursor++
				if m.cursor >= m.offset+m.height {
					m.offset = m.cursor - m.height + 1
				}
				m.frame = m.hover()
			}
		case key.Matches(msg, m.keys.Select):
			if len(m.flows) == 0 {
				return m, nil
			}
			tr, f := m.w.Dispatch(selection.FlowClicked{Flow: m.flows[m.cursor]})
			m.frame = f
			m.status = selectionStatus(tr.State)
		case key.Matches(msg, m.keys.Clear):
			tr, f := m.w.Dispatch(selection.BackgroundClicked{})
			m.frame = f
			if tr.Changed {
				m.status = selectionStatus(tr.State)
			}
		case key.Matches(msg, m.keys.Mode):
			m.frame = m.w.SetMetricMode(!m.w.Props().MetricMode)
			m.status = "Mode: " + m.w.Props().Mode()
		case key.Matches(msg, m.keys.Save):
			if err := os.WriteFile(m.output, sink.RenderSVG(m.frame, sink.WithoutTooltip()), 0o644); err != nil {
				m.status = "Save failed: " + err.Error()
			} else {
				m.saved = m.output
				m.status = "Saved " + m.output
			}
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		}
	case tea.WindowSizeMsg:
		m.height = max(msg.Height-16, 5)
		m.help.Width = msg.Width
	}
	return m, nil
}

// hover dispatches a hover on the flow under the cursor.
func (m exploreModel) hover() *widget.Frame {
	_, f := m.w.Dispatch(selection.FlowHovered{Flow: m.flows[m.cursor]})
	return f
}

func selectionStatus(s selection.Snapshot) string {
	if s.IsEmpty() {
		return "Selection cleared"
	}
	return "Selected " + s.String()
}

var (
	exploreSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ff6b35"))
	explorePanelStyle    = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(colorDim).
				Padding(0, 1).
				MarginLeft(2)
)

func (m exploreModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("StripeSankey"))
	b.WriteString("  ")
	b.WriteString(StyleDim.Render(fmt.Sprintf("%s mode · %d nodes · %d drawn flows",
		m.w.Props().Mode(), m.frame.Stats.Nodes, len(m.flows))))
	b.WriteString("\n\n")

	if m.frame.Status != widget.StatusReady {
		b.WriteString(StyleWarning.Render(m.frame.Message))
		b.WriteString("\n\n")
		b.WriteString(m.help.View(m.keys))
		return b.String()
	}

	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, m.flowList(), explorePanelStyle.Render(m.panel())))
	b.WriteString("\n")
	if m.status != "" {
		b.WriteString(StyleDim.Render(m.status))
		b.WriteString("\n")
	}
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m exploreModel) flowList() string {
	var b strings.Builder
	end := min(m.offset+m.height, len(m.flows))
	for i := m.offset; i < end; i++ {
		f := m.flows[i]
		cursor := "  "
		if i == m.cursor {
			cursor = "▸ "
		}
		line := fmt.Sprintf("%s%-16s → %-16s %4d", cursor, f.Source, f.Target, f.SampleCount)
		switch {
		case m.frame.Selection.Matches(f):
			line = exploreSelectedStyle.Render(line + " ●")
		case i == m.cursor:
			line = listSelectedStyle.Render(line)
		default:
			line = listNormalStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.cursor+1, len(m.flows))))
	return b.String()
}

// panel shows the hover tooltip, the selection and the legend.
func (m exploreModel) panel() string {
	var lines []string
	if t := m.frame.Tooltip; t != nil {
		lines = append(lines, StyleHighlight.Render(t.Lines[0]))
		for _, l := range t.Lines[1:] {
			lines = append(lines, StyleValue.Render(l))
		}
		lines = append(lines, "")
	}
	if info := m.frame.Info; info != nil {
		lines = append(lines, exploreSelectedStyle.Render(info.Title), StyleValue.Render(info.Flow))
		if tr := m.frame.Trace; tr != nil {
			for _, b := range tr.Badges {
				lines = append(lines, StyleDim.Render(fmt.Sprintf("  %-18s %3d", b.Segment, b.Count)))
			}
		}
		lines = append(lines, StyleDim.Render(info.Hint), "")
	}
	for _, item := range m.frame.Legend {
		style := StyleDim
		if item.Bold {
			style = StyleValue.Bold(true)
		}
		lines = append(lines, style.Render(item.Text))
	}
	return strings.Join(lines, "\n")
}
