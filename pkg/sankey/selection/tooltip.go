package selection

import (
	"fmt"
	"unicode/utf8"

	"github.com/matzehuels/stripesankey/pkg/sankey"
)

// Tooltip sizing, in pixels.
const (
	FlowTooltipWidth  = 160.0
	FlowTooltipHeight = 35.0
	TooltipLineHeight = 12.0

	segmentTooltipMinWidth = 140.0
	tooltipPadding         = 10.0
	tooltipCharWidth       = 6.0
	tooltipCursorOffset    = 20.0
	tooltipRightMargin     = 10.0
	flowTooltipRaise       = 40.0
	segmentTooltipMargin   = 10.0
)

// Level labels shown in segment tooltips and the legend.
const (
	HighLabel   = "High (≥0.67)"
	MediumLabel = "Medium (0.33-0.66)"
)

// LevelLabel returns the legend text of a level.
func LevelLabel(l sankey.Level) string {
	if l == sankey.LevelHigh {
		return HighLabel
	}
	return MediumLabel
}

// Tooltip is a placed hover box in chart coordinates.
type Tooltip struct {
	Lines  []string
	X, Y   float64
	Width  float64
	Height float64
}

// FlowTooltip builds the tooltip of a flow hovered at (x, y). It is placed
// above the cursor, pulled left to stay inside chartWidth and moved below
// the cursor when it would leave the top.
func FlowTooltip(f *sankey.Flow, x, y, chartWidth float64) Tooltip {
	t := Tooltip{
		Lines: []string{
			fmt.Sprintf("%d samples", f.SampleCount),
			f.String(),
		},
		Width:  FlowTooltipWidth,
		Height: FlowTooltipHeight,
	}
	t.place(x, y, y-flowTooltipRaise, chartWidth)
	return t
}

// SegmentTooltip builds the tooltip of a node segment. In metric mode it
// also lists the node's perplexity and coherence.
func SegmentTooltip(n *sankey.Node, level sankey.Level, metricMode bool, x, y, chartWidth float64) Tooltip {
	lines := []string{
		n.ID,
		LevelLabel(level),
		fmt.Sprintf("%d samples", n.Count(level)),
	}
	if metricMode {
		if n.Perplexity != nil {
			lines = append(lines, fmt.Sprintf("Perplexity: %.3f", *n.Perplexity))
		}
		if n.Coherence != nil {
			lines = append(lines, fmt.Sprintf("Coherence: %.3f", *n.Coherence))
		}
	}

	w := segmentTooltipMinWidth
	for _, l := range lines {
		w = max(w, float64(utf8.RuneCountInString(l))*tooltipCharWidth+tooltipPadding)
	}
	t := Tooltip{
		Lines:  lines,
		Width:  w,
		Height: float64(len(lines))*TooltipLineHeight + tooltipPadding,
	}
	t.place(x, y, y-t.Height-segmentTooltipMargin, chartWidth)
	return t
}

func (t *Tooltip) place(x, y, above, chartWidth float64) {
	t.X, t.Y = x, above
	if t.X+t.Width > chartWidth {
		t.X = chartWidth - t.Width - tooltipRightMargin
	}
	if t.Y < 0 {
		t.Y = y + tooltipCursorOffset
	}
}

// ForHover builds the tooltip of a hover event. It returns false for
// events that show no tooltip.
func ForHover(ev Event, metricMode bool, chartWidth float64) (Tooltip, bool) {
	switch e := ev.(type) {
	case FlowHovered:
		if e.Flow == nil {
			return Tooltip{}, false
		}
		return FlowTooltip(e.Flow, e.X, e.Y, chartWidth), true
	case SegmentHovered:
		if e.Node == nil {
			return Tooltip{}, false
		}
		return SegmentTooltip(e.Node, e.Level, metricMode, e.X, e.Y, chartWidth), true
	}
	return Tooltip{}, false
}
