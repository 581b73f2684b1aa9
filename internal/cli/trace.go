package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	sserrors "github.com/matzehuels/stripesankey/pkg/errors"
	"github.com/matzehuels/stripesankey/pkg/sankey"
	"github.com/matzehuels/stripesankey/pkg/sankey/selection"
	"github.com/matzehuels/stripesankey/pkg/sankey/trace"
	"github.com/matzehuels/stripesankey/pkg/widget"
)

// traceCommand creates the trace command, which lists the segment every
// sample of a flow occupies at each K.
func (c *CLI) traceCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "trace [data.json] [SOURCE->TARGET]",
		Short: "Trace the samples of one flow across every K",
		Long: `Trace the samples of one flow.

Every flow in the dataset is scanned, drawn or not, and each sample of the
selected flow is placed in the segment it occupies at every K. The summary
counts traced samples per segment.`,
		Example: `  stripesankey trace topics.json "K2_MC0_high->K3_MC1_high"`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runTrace(cmd.Context(), cmd.OutOrStdout(), args[0], args[1], asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print assignments as JSON")
	return cmd
}

// traceReport is the JSON form of a trace.
type traceReport struct {
	Flow          string             `json:"flow"`
	SampleCount   int                `json:"sample_count"`
	KValues       []int              `json:"k_values"`
	Samples       []sampleTrajectory `json:"samples"`
	SegmentCounts map[string]int     `json:"segment_counts"`

	segments []string                     // first-reached order
	byK      map[sankey.SampleID][]string // segment per column, "" where absent
}

type sampleTrajectory struct {
	Sample    sankey.SampleID    `json:"sample"`
	Positions []trace.Assignment `json:"positions"`
}

func (c *CLI) runTrace(ctx context.Context, w io.Writer, input, ref string, asJSON bool) error {
	runner, err := c.newRunner(true)
	if err != nil {
		return err
	}
	defer runner.Close()

	raw, err := runner.Load(ctx, input)
	if err != nil {
		return err
	}
	ds := sankey.Normalize(raw)
	sel, err := selection.Resolve(ds, ref)
	if err != nil {
		return sserrors.Wrap(sserrors.ErrCodeInvalidSelection, err, "%v", err)
	}
	rep := buildTraceReport(ds, sel)

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}

	// The frame applies the same tracer the diagram draws.
	props := c.config.Props()
	props.SelectedFlow = sel
	f := widget.BuildDataset(props, ds, nil)

	title := fmt.Sprintf("Selected: %d Samples", rep.SampleCount)
	if f.Info != nil {
		title = f.Info.Title
	}
	fmt.Fprintln(w, StyleTitle.Render(title)+"  "+StyleDim.Render(rep.Flow))
	fmt.Fprintln(w, trajectoryTable(rep))
	fmt.Fprintln(w, segmentTable(rep))
	if f.Trace != nil && len(f.Trace.Lines) == 0 && rep.SampleCount > 0 {
		printWarning("No trajectory is drawn: no sample spans adjacent columns with laid-out nodes")
	}
	return nil
}

func buildTraceReport(ds *sankey.Dataset, sel selection.Snapshot) traceReport {
	ids := sel.SampleIDs()
	a := trace.Assign(ids, ds.Flows)
	order, counts := a.SegmentCounts()

	rep := traceReport{
		Flow:          sel.String(),
		SampleCount:   len(ids),
		KValues:       ds.KValues,
		SegmentCounts: counts,
		segments:      order,
		byK:           make(map[sankey.SampleID][]string, len(ids)),
	}
	for _, id := range a.Samples {
		st := sampleTrajectory{Sample: id}
		row := make([]string, len(ds.KValues))
		for _, k := range a.Ks(id) {
			as := a.ByK[id][k]
			st.Positions = append(st.Positions, as)
			if i, ok := ds.ColumnIndex(k); ok {
				row[i] = as.Segment()
			}
		}
		rep.Samples = append(rep.Samples, st)
		rep.byK[id] = row
	}
	return rep
}

func trajectoryTable(rep traceReport) string {
	headers := []string{"Sample"}
	for _, k := range rep.KValues {
		headers = append(headers, fmt.Sprintf("K=%d", k))
	}
	rows := make([][]string, 0, len(rep.Samples))
	for _, s := range rep.Samples {
		row := []string{string(s.Sample)}
		for _, seg := range rep.byK[s.Sample] {
			if seg == "" {
				seg = "·"
			}
			row = append(row, seg)
		}
		rows = append(rows, row)
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == -1:
				return headerStyle
			case col == 0:
				return StyleHighlight
			}
			return StyleValue
		}).
		Render()
}

func segmentTable(rep traceReport) string {
	rows := make([][]string, 0, len(rep.segments))
	for _, seg := range rep.segments {
		rows = append(rows, []string{seg, fmt.Sprint(rep.SegmentCounts[seg])})
	}
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Segment", "Traced").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return lipgloss.NewStyle().Foreground(colorGray).Bold(true)
			}
			if col == 1 {
				return StyleNumber
			}
			return StyleValue
		}).
		Render()
}
