package widget

import (
	"fmt"

	"github.com/matzehuels/stripesankey/pkg/sankey"
	"github.com/matzehuels/stripesankey/pkg/sankey/color"
	"github.com/matzehuels/stripesankey/pkg/sankey/geometry"
	"github.com/matzehuels/stripesankey/pkg/sankey/layout"
	"github.com/matzehuels/stripesankey/pkg/sankey/selection"
	"github.com/matzehuels/stripesankey/pkg/sankey/trace"
)

// Status tells whether a frame holds a diagram or a placeholder.
type Status int

const (
	StatusReady Status = iota
	StatusNoData
	StatusNoNodes
)

// String returns "ready", "no_data" or "no_nodes".
func (s Status) String() string {
	switch s {
	case StatusNoData:
		return "no_data"
	case StatusNoNodes:
		return "no_nodes"
	}
	return "ready"
}

// Placeholder messages.
const (
	NoDataMessage  = "No data available. Please load your processed data first."
	NoNodesMessage = "No nodes to display"
)

// Flow and segment styling.
const (
	FlowColor            = "#888"
	FlowOpacity          = 0.6
	FlowHoverOpacity     = 0.8
	SelectedFlowOpacity  = 1.0
	SelectedWidthBoost   = 3.0
	SegmentStroke        = "white"
	SegmentStrokeWidth   = 1.0
	HighlightStrokeWidth = 3.0
)

// InfoHint is the last line of the selection info panel.
const InfoHint = "Click flow again or background to clear"

// Frame is the complete output of one render pass.
type Frame struct {
	Width, Height           float64
	Margin                  Margin
	ChartWidth, ChartHeight float64

	Status     Status
	Message    string
	MetricMode bool

	Dataset *sankey.Dataset
	Columns []layout.Column
	Diagram *geometry.Diagram

	Nodes  []NodeView
	Flows  []FlowView
	Labels []Label
	Legend []LegendItem

	Selection selection.Snapshot
	Trace     *trace.Result
	Info      *InfoPanel
	Tooltip   *selection.Tooltip

	Stats Stats
}

// NodeView is a positioned node with its colours and highlight state.
type NodeView struct {
	Box   *geometry.NodeBox
	Fill  color.Fill
	Label string // "MC<mc>"

	HighTraced   bool
	MediumTraced bool
}

// Traced reports whether traced samples pass through a segment.
func (n *NodeView) Traced(level sankey.Level) bool {
	if level == sankey.LevelHigh {
		return n.HighTraced
	}
	return n.MediumTraced
}

// FlowView is a drawn flow with its style.
type FlowView struct {
	Path     *geometry.FlowPath
	Stroke   string
	Width    float64
	Opacity  float64
	Selected bool
}

// Label is a "K=<k>" column header.
type Label struct {
	K     int
	X     float64
	Text  string
	Color string
}

// LegendItem is one line of the legend. Y is relative to the legend
// origin; Swatch is a fill colour for a small box before the text.
type LegendItem struct {
	Text     string
	Y        float64
	Color    string
	Swatch   string
	FontSize float64
	Bold     bool
}

// InfoPanel summarises the selection.
type InfoPanel struct {
	Title string
	Flow  string
	Hint  string
}

// Stats describes the rendered diagram.
type Stats struct {
	Nodes          int `json:"nodes"`
	Flows          int `json:"flows"`
	Significant    int `json:"significant"`
	Drawn          int `json:"drawn"`
	Crossings      int `json:"crossings"`
	InputCrossings int `json:"input_crossings"`
	TracedSamples  int `json:"traced_samples"`
}

// LegendOrigin returns the legend position in chart coordinates.
func (f *Frame) LegendOrigin() (x, y float64) {
	return 20, f.ChartHeight - 120
}

// Build renders props into a frame. hover is the active hover event or nil.
func Build(p Props, hover selection.Event) *Frame {
	var ds *sankey.Dataset
	if !p.Data.IsEmpty() {
		ds = sankey.Normalize(p.Data)
	}
	return BuildDataset(p, ds, hover)
}

// BuildDataset renders props against an already normalised dataset. A nil
// dataset yields the no-data placeholder.
func BuildDataset(p Props, ds *sankey.Dataset, hover selection.Event) *Frame {
	w, h := p.Width, p.Height
	if w <= 0 {
		w = DefaultWidth
	}
	if h <= 0 {
		h = DefaultHeight
	}
	f := &Frame{
		Width:       float64(w),
		Height:      float64(h),
		Margin:      DefaultMargin,
		ChartWidth:  float64(w) - DefaultMargin.Left - DefaultMargin.Right,
		ChartHeight: float64(h) - DefaultMargin.Top - DefaultMargin.Bottom,
		MetricMode:  p.MetricMode,
		Dataset:     ds,
		Selection:   p.SelectedFlow,
	}

	if ds == nil {
		f.Status, f.Message = StatusNoData, NoDataMessage
		return f
	}
	if len(ds.Nodes) == 0 {
		f.Status, f.Message = StatusNoNodes, NoNodesMessage
		return f
	}

	schemes := p.ColorSchemes
	if schemes == nil {
		schemes = color.DefaultSchemes()
	}

	f.Columns = layout.Barycentric{}.OrderColumns(ds, f.ChartHeight)
	f.Diagram = geometry.Build(ds, layout.Positions(f.Columns), f.ChartWidth, f.ChartHeight, p.Geometry)

	if !p.SelectedFlow.IsEmpty() {
		res := trace.Trace(p.SelectedFlow, ds.Flows, f.Diagram)
		f.Trace = &res
		f.Info = &InfoPanel{
			Title: fmt.Sprintf("Selected: %d Samples", res.SampleCount),
			Flow:  p.SelectedFlow.String(),
			Hint:  InfoHint,
		}
	}

	painter := color.NewPainter(ds.Nodes, p.MetricMode, p.MetricConfig, schemes)
	f.Nodes = make([]NodeView, len(f.Diagram.Nodes))
	for i := range f.Diagram.Nodes {
		box := &f.Diagram.Nodes[i]
		nv := NodeView{
			Box:   box,
			Fill:  painter.NodeFill(box.Node),
			Label: fmt.Sprintf("MC%d", box.Node.MC),
		}
		if f.Trace != nil {
			nv.HighTraced = f.Trace.Highlighted(box.Node.SegmentName(sankey.LevelHigh))
			nv.MediumTraced = f.Trace.Highlighted(box.Node.SegmentName(sankey.LevelMedium))
		}
		f.Nodes[i] = nv
	}

	f.Flows = make([]FlowView, len(f.Diagram.Flows))
	for i := range f.Diagram.Flows {
		fp := &f.Diagram.Flows[i]
		fv := FlowView{Path: fp, Stroke: FlowColor, Width: fp.Width, Opacity: FlowOpacity}
		if p.SelectedFlow.Matches(fp.Flow) {
			fv.Selected = true
			fv.Stroke = trace.Color
			fv.Width += SelectedWidthBoost
			fv.Opacity = SelectedFlowOpacity
		}
		f.Flows[i] = fv
	}

	for _, col := range f.Diagram.Columns {
		f.Labels = append(f.Labels, Label{
			K:     col.K,
			X:     col.X,
			Text:  fmt.Sprintf("K=%d", col.K),
			Color: schemes.Label(col.K, p.MetricMode),
		})
	}

	threshold := f.Diagram.Config.Significance
	significant := len(ds.SignificantFlows(threshold))
	f.Legend = legend(p.MetricMode, significant, threshold)

	if hover != nil {
		if tip, ok := selection.ForHover(hover, p.MetricMode, f.ChartWidth); ok {
			f.Tooltip = &tip
		}
	}

	f.Stats = Stats{
		Nodes:          len(ds.Nodes),
		Flows:          len(ds.Flows),
		Significant:    significant,
		Drawn:          len(f.Flows),
		Crossings:      layout.Crossings(ds, f.Columns),
		InputCrossings: layout.Crossings(ds, layout.InputOrder(ds, f.ChartHeight)),
	}
	if f.Trace != nil {
		f.Stats.TracedSamples = f.Trace.SampleCount
	}
	return f
}

// Legend text.
const (
	LegendFlowsFormat = "Flows: %d (≥%d samples)"
	LegendOptimized   = "Barycenter optimized"
	LegendClickHint   = "Click flows to trace samples"
)

func legend(metricMode bool, significant, threshold int) []LegendItem {
	var items []LegendItem
	base := 40.0
	if metricMode {
		items = append(items,
			LegendItem{Text: "Metric Mode Active", Y: 8, Color: "#333", FontSize: 10, Bold: true},
			LegendItem{Text: "Red: Low Perplexity", Y: 20, Color: "#d62728", FontSize: 9},
			LegendItem{Text: "Blue: High Coherence", Y: 32, Color: "#2ca02c", FontSize: 9},
			LegendItem{Text: "Purple: Optimal Topics", Y: 44, Color: "#7f4f7f", FontSize: 9},
			LegendItem{Text: "(Uniform colors - quality by hue)", Y: 56, Color: "#888", FontSize: 8},
		)
		base = 72
	} else {
		items = append(items,
			LegendItem{Text: selection.HighLabel, Y: 8, Color: "#333", Swatch: "#333", FontSize: 10},
			LegendItem{Text: selection.MediumLabel, Y: 23, Color: "#333", Swatch: "#666", FontSize: 10},
		)
	}
	return append(items,
		LegendItem{Text: fmt.Sprintf(LegendFlowsFormat, significant, threshold), Y: base, Color: "#666", FontSize: 9},
		LegendItem{Text: LegendOptimized, Y: base + 12, Color: "#888", FontSize: 9},
		LegendItem{Text: LegendClickHint, Y: base + 24, Color: trace.Color, FontSize: 9},
	)
}
