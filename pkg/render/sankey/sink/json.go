package sink

import (
	"encoding/json"

	"github.com/matzehuels/stripesankey/pkg/sankey"
	"github.com/matzehuels/stripesankey/pkg/sankey/selection"
	"github.com/matzehuels/stripesankey/pkg/widget"
)

// JSONOption configures JSON rendering via [RenderJSON].
type JSONOption func(*jsonRenderer)

type jsonRenderer struct {
	indent bool
	paths  bool
}

// WithJSONIndent pretty-prints the output.
func WithJSONIndent() JSONOption { return func(r *jsonRenderer) { r.indent = true } }

// WithJSONPaths includes the SVG path data of flows and trajectory lines.
func WithJSONPaths() JSONOption { return func(r *jsonRenderer) { r.paths = true } }

type jsonOutput struct {
	Width     float64            `json:"width"`
	Height    float64            `json:"height"`
	Margin    jsonMargin         `json:"margin"`
	Mode      string             `json:"mode"`
	Status    string             `json:"status"`
	Message   string             `json:"message,omitempty"`
	Columns   []jsonColumn       `json:"columns,omitempty"`
	Nodes     []jsonNode         `json:"nodes"`
	Flows     []jsonFlow         `json:"flows"`
	Selection selection.Snapshot `json:"selected_flow"`
	Trace     *jsonTrace         `json:"trace,omitempty"`
	Stats     widget.Stats       `json:"stats"`
}

type jsonMargin struct {
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
}

type jsonColumn struct {
	K           int                `json:"k"`
	X           float64            `json:"x"`
	Order       []string           `json:"order"`
	Barycenters map[string]float64 `json:"barycenters,omitempty"`
}

type jsonNode struct {
	ID           string   `json:"id"`
	K            int      `json:"k"`
	MC           int      `json:"mc"`
	X            float64  `json:"x"`
	Y            float64  `json:"y"`
	Height       float64  `json:"height"`
	HighHeight   float64  `json:"high_height"`
	MediumHeight float64  `json:"medium_height"`
	HighCount    int      `json:"high_count"`
	MediumCount  int      `json:"medium_count"`
	HighFill     string   `json:"high_fill"`
	MediumFill   string   `json:"medium_fill"`
	Perplexity   *float64 `json:"perplexity,omitempty"`
	Coherence    *float64 `json:"coherence,omitempty"`
	Traced       []string `json:"traced,omitempty"`
}

type jsonFlow struct {
	Source      string  `json:"source"`
	Target      string  `json:"target"`
	SourceK     int     `json:"source_k"`
	TargetK     int     `json:"target_k"`
	SampleCount int     `json:"sample_count"`
	Width       float64 `json:"width"`
	Selected    bool    `json:"selected,omitempty"`
	D           string  `json:"d,omitempty"`
}

type jsonTrace struct {
	Samples       []sankey.SampleID `json:"samples"`
	SegmentCounts map[string]int    `json:"segment_counts"`
	Lines         []jsonLine        `json:"lines"`
	Markers       []jsonMarker      `json:"markers"`
}

type jsonLine struct {
	Sample  sankey.SampleID `json:"sample"`
	From    string          `json:"from"`
	To      string          `json:"to"`
	Count   int             `json:"count"`
	Width   float64         `json:"width"`
	Opacity float64         `json:"opacity"`
	D       string          `json:"d,omitempty"`
}

type jsonMarker struct {
	Sample  sankey.SampleID `json:"sample"`
	Segment string          `json:"segment"`
	X       float64         `json:"x"`
	Y       float64         `json:"y"`
	Radius  float64         `json:"radius"`
}

// RenderJSON serialises a frame: node boxes with colours, drawn flows, the
// selection and its trace, and layout statistics.
func RenderJSON(f *widget.Frame, opts ...JSONOption) ([]byte, error) {
	r := jsonRenderer{}
	for _, opt := range opts {
		opt(&r)
	}

	out := jsonOutput{
		Width:     f.Width,
		Height:    f.Height,
		Margin:    jsonMargin{f.Margin.Top, f.Margin.Right, f.Margin.Bottom, f.Margin.Left},
		Mode:      widget.ModeDefault,
		Status:    f.Status.String(),
		Message:   f.Message,
		Nodes:     []jsonNode{},
		Flows:     []jsonFlow{},
		Selection: f.Selection,
		Stats:     f.Stats,
	}
	if f.MetricMode {
		out.Mode = widget.ModeMetric
	}

	if f.Diagram != nil {
		for i, col := range f.Columns {
			jc := jsonColumn{K: col.K, Order: col.Order, Barycenters: col.Barycenters}
			if i < len(f.Diagram.Columns) {
				jc.X = f.Diagram.Columns[i].X
			}
			out.Columns = append(out.Columns, jc)
		}
	}

	for _, nv := range f.Nodes {
		b := nv.Box
		jn := jsonNode{
			ID:           b.Node.ID,
			K:            b.Node.K,
			MC:           b.Node.MC,
			X:            b.X,
			Y:            b.Y,
			Height:       b.Height,
			HighHeight:   b.HighHeight,
			MediumHeight: b.MediumHeight,
			HighCount:    b.Node.HighCount,
			MediumCount:  b.Node.MediumCount,
			HighFill:     nv.Fill.High,
			MediumFill:   nv.Fill.Medium,
			Perplexity:   b.Node.Perplexity,
			Coherence:    b.Node.Coherence,
		}
		for _, level := range sankey.Levels {
			if nv.Traced(level) {
				jn.Traced = append(jn.Traced, string(level))
			}
		}
		out.Nodes = append(out.Nodes, jn)
	}

	for _, fv := range f.Flows {
		fl := fv.Path.Flow
		jf := jsonFlow{
			Source:      fl.Source,
			Target:      fl.Target,
			SourceK:     fl.SourceK,
			TargetK:     fl.TargetK,
			SampleCount: fl.SampleCount,
			Width:       fv.Path.Width,
			Selected:    fv.Selected,
		}
		if r.paths {
			jf.D = fv.Path.D
		}
		out.Flows = append(out.Flows, jf)
	}

	if t := f.Trace; t != nil {
		jt := &jsonTrace{
			Samples:       t.Samples,
			SegmentCounts: t.SegmentCounts,
			Lines:         make([]jsonLine, 0, len(t.Lines)),
			Markers:       make([]jsonMarker, 0, len(t.Markers)),
		}
		for _, l := range t.Lines {
			jl := jsonLine{Sample: l.Sample, From: l.From.Segment, To: l.To.Segment, Count: l.Count, Width: l.Width, Opacity: l.Opacity}
			if r.paths {
				jl.D = l.D
			}
			jt.Lines = append(jt.Lines, jl)
		}
		for _, m := range t.Markers {
			jt.Markers = append(jt.Markers, jsonMarker{Sample: m.Sample, Segment: m.Segment, X: m.X, Y: m.Y, Radius: m.Radius})
		}
		out.Trace = jt
	}

	if r.indent {
		return json.MarshalIndent(out, "", "  ")
	}
	return json.Marshal(out)
}
