package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	sankeyio "github.com/matzehuels/stripesankey/pkg/io"
	"github.com/matzehuels/stripesankey/pkg/pipeline"
	"github.com/matzehuels/stripesankey/pkg/widget"
)

// layoutCommand creates the layout command, which prints the barycenter
// column order of a dataset.
func (c *CLI) layoutCommand() *cobra.Command {
	var (
		height  int
		asJSON  bool
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "layout [data.json]",
		Short: "Print the barycenter column order and crossing counts",
		Long: `Print the order of nodes in every K column.

The first column keeps dataset order. Every later column is sorted by the
sample-weighted average position of its incoming flows' source nodes. The
table shows both orders and the number of flow crossings each produces.

Reports are cached by dataset content and chart height.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runLayout(cmd.Context(), cmd.OutOrStdout(), args[0], height, asJSON, noCache)
		},
	}

	cmd.Flags().IntVar(&height, "height", 0, "canvas height (default from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")

	return cmd
}

func (c *CLI) runLayout(ctx context.Context, w io.Writer, input string, height int, asJSON, noCache bool) error {
	runner, err := c.newRunner(noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	raw, err := runner.Load(ctx, input)
	if err != nil && !errors.Is(err, sankeyio.ErrEmptyDataset) {
		return err
	}

	if height <= 0 {
		height = c.config.Height
	}
	chart := float64(height) - widget.DefaultMargin.Top - widget.DefaultMargin.Bottom
	rep, hit, err := runner.Layout(ctx, raw, chart)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
	fmt.Fprintln(w, layoutTable(rep))
	printStats(len(raw.Nodes), len(raw.Flows), hit)
	printKeyValue("Crossings", fmt.Sprintf("%d → %d", rep.InputCrossings, rep.Crossings))
	return nil
}

// layoutTable renders one row per column: the dataset order, the
// barycenter order and each node's barycenter.
func layoutTable(rep *pipeline.LayoutReport) string {
	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)

	rows := make([][]string, 0, len(rep.Columns))
	for i, col := range rep.Columns {
		var input []string
		if i < len(rep.InputColumns) {
			input = rep.InputColumns[i].Order
		}
		bary := make([]string, 0, len(col.Order))
		for _, id := range col.Order {
			if v, ok := col.Barycenters[id]; ok {
				bary = append(bary, fmt.Sprintf("%.1f", v))
			} else {
				bary = append(bary, "·")
			}
		}
		rows = append(rows, []string{
			fmt.Sprintf("K=%d", col.K),
			strings.Join(input, " "),
			strings.Join(col.Order, " "),
			strings.Join(bary, " "),
		})
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Column", "Input order", "Barycenter order", "Barycenters").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == -1:
				return headerStyle
			case col == 0:
				return StyleHighlight
			case col == 2:
				return StyleValue
			}
			return StyleDim
		}).
		Render()
}
