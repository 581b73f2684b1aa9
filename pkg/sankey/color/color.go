package color

import (
	"fmt"
	"math"
	"strings"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/matzehuels/stripesankey/pkg/sankey"
)

const (
	// Fallback is used for a column without a scheme entry and for every
	// node when metric mode has no scales.
	Fallback = "#666"

	// MissingMetric marks a node lacking perplexity or coherence in metric
	// mode.
	MissingMetric = "#999"

	// LabelDefault colours column labels in metric mode.
	LabelDefault = "#333"

	// MinBrightness is the floor of each metric channel.
	MinBrightness = 0.2

	// HighDarken is the d3 darker() factor applied to high segments in
	// default mode.
	HighDarken = 0.8
)

// Schemes maps a K value to the base colour of its column.
type Schemes map[int]string

// DefaultSchemes returns the standard palette for K=2..10.
func DefaultSchemes() Schemes {
	return Schemes{
		2: "#1f77b4", 3: "#ff7f0e", 4: "#2ca02c", 5: "#d62728", 6: "#9467bd",
		7: "#8c564b", 8: "#e377c2", 9: "#7f7f7f", 10: "#bcbd22",
	}
}

// Base returns the colour of column k or [Fallback].
func (s Schemes) Base(k int) string {
	if c, ok := s[k]; ok && c != "" {
		return c
	}
	return Fallback
}

// Label returns the colour of the "K=k" header.
func (s Schemes) Label(k int, metricMode bool) string {
	if metricMode {
		return LabelDefault
	}
	if c, ok := s[k]; ok && c != "" {
		return c
	}
	return LabelDefault
}

// Fill is the fill colour of both segments of a node.
type Fill struct {
	High   string
	Medium string
}

// Painter decides node colours for one render pass.
type Painter struct {
	MetricMode bool
	Metric     MetricConfig
	Schemes    Schemes

	// Scales is nil when metric mode is off or metrics are insufficient.
	Scales *Scales
}

// NewPainter builds a painter and, in metric mode, its scales.
func NewPainter(nodes []sankey.Node, metricMode bool, cfg MetricConfig, schemes Schemes) *Painter {
	p := &Painter{MetricMode: metricMode, Metric: cfg, Schemes: schemes}
	if metricMode {
		p.Scales = NewScales(nodes)
	}
	return p
}

// NodeFill returns the segment colours of a node. Metric mode colours both
// segments alike; default mode darkens the high segment.
func (p *Painter) NodeFill(n *sankey.Node) Fill {
	if p.MetricMode {
		c := p.Scales.Color(n, p.Metric)
		return Fill{High: c, Medium: c}
	}
	base := p.Schemes.Base(n.K)
	return Fill{High: Darker(base, HighDarken), Medium: base}
}

// Darker mirrors d3's color.darker(k): every channel is multiplied by
// 0.7^k. Colours that cannot be parsed are returned unchanged.
func Darker(c string, k float64) string {
	col, ok := Parse(c)
	if !ok {
		return c
	}
	f := math.Pow(0.7, k)
	return RGB(col.R*f, col.G*f, col.B*f)
}

// Parse reads "#rgb", "#rrggbb" and "rgb(r, g, b)" colours.
func Parse(c string) (colorful.Color, bool) {
	c = strings.TrimSpace(c)
	if strings.HasPrefix(c, "#") {
		col, err := colorful.Hex(c)
		return col, err == nil
	}
	var r, g, b float64
	if _, err := fmt.Sscanf(strings.ReplaceAll(c, " ", ""), "rgb(%g,%g,%g)", &r, &g, &b); err == nil {
		return colorful.Color{R: r / 255, G: g / 255, B: b / 255}, true
	}
	return colorful.Color{}, false
}

// RGB formats unit channels as "rgb(r, g, b)" with each channel rounded
// half up and clamped to 0..255.
func RGB(r, g, b float64) string {
	return fmt.Sprintf("rgb(%d, %d, %d)", channel(r), channel(g), channel(b))
}

func channel(v float64) int {
	c := int(math.Floor(v*255 + 0.5))
	return min(255, max(0, c))
}
