package geometry

import (
	"math"
	"strconv"

	"github.com/matzehuels/stripesankey/pkg/sankey"
)

// Diagram is a fully positioned chart in chart coordinates: the origin is
// the top-left corner of the plotting area, margins excluded.
type Diagram struct {
	Width  float64
	Height float64
	Config Config

	Columns []Column
	Nodes   []NodeBox  // laid-out nodes, in dataset order
	Flows   []FlowPath // drawn flows, in dataset order

	MaxTotal       int // largest node total, at least 1
	MaxSignificant int // largest count of any flow reaching Config.Significance, at least 1

	index map[string]int
}

// Column is the horizontal slot of one K value.
type Column struct {
	K int
	X float64
}

// NodeBox is a positioned node. X and Y are the centre of the bar.
type NodeBox struct {
	Node   *sankey.Node
	Column int
	X      float64
	Y      float64
	Height float64

	HighHeight   float64
	MediumHeight float64
}

// Top returns the y of the upper edge of the bar.
func (b *NodeBox) Top() float64 { return b.Y - b.Height/2 }

// Bottom returns the y of the lower edge of the bar.
func (b *NodeBox) Bottom() float64 { return b.Y + b.Height/2 }

// SegmentHeight returns the drawn height of a segment.
func (b *NodeBox) SegmentHeight(level sankey.Level) float64 {
	if level == sankey.LevelHigh {
		return b.HighHeight
	}
	return b.MediumHeight
}

// SegmentTop returns the y of the upper edge of a segment. The high segment
// sits on top.
func (b *NodeBox) SegmentTop(level sankey.Level) float64 {
	if level == sankey.LevelHigh {
		return b.Top()
	}
	return b.Top() + b.HighHeight
}

// SegmentCenter returns the y where flows attach to a segment. Empty nodes
// return the node centre for both levels.
func (b *NodeBox) SegmentCenter(level sankey.Level) float64 {
	return SegmentCenterY(b.Y, b.Height, b.Node.HighCount, b.Node.MediumCount, level)
}

// FlowPath is a drawn flow.
type FlowPath struct {
	Flow  *sankey.Flow
	Index int // position in Dataset.Flows

	X1, Y1 float64
	X2, Y2 float64
	Width  float64
	D      string // SVG path data
}

// Build positions every node whose K is a column and every flow that is
// drawn: significant, between adjacent K values, with a positive count and
// both endpoint nodes laid out. Nodes missing from pos sit at y=0.
func Build(ds *sankey.Dataset, pos map[string]float64, width, height float64, cfg Config) *Diagram {
	cfg = cfg.WithDefaults()
	d := &Diagram{
		Width:    width,
		Height:   height,
		Config:   cfg,
		MaxTotal: ds.MaxTotalCount(),
		index:    make(map[string]int, len(ds.Nodes)),
	}

	spacing := width / float64(max(1, len(ds.KValues)-1))
	d.Columns = make([]Column, len(ds.KValues))
	for i, k := range ds.KValues {
		d.Columns[i] = Column{K: k, X: float64(i) * spacing}
	}

	for i := range ds.Nodes {
		n := &ds.Nodes[i]
		col, ok := ds.ColumnIndex(n.K)
		if !ok {
			continue
		}
		h := NodeHeight(n.Total(), d.MaxTotal, cfg)
		hh, mh := SegmentHeights(h, n.HighCount, n.MediumCount)
		d.index[n.ID] = len(d.Nodes)
		d.Nodes = append(d.Nodes, NodeBox{
			Node:         n,
			Column:       col,
			X:            d.Columns[col].X,
			Y:            pos[n.ID],
			Height:       h,
			HighHeight:   hh,
			MediumHeight: mh,
		})
	}

	d.MaxSignificant = ds.MaxSignificantCount(cfg.Significance)
	for i := range ds.Flows {
		f := &ds.Flows[i]
		if !f.IsSignificant(cfg.Significance) || f.SampleCount <= 0 || !f.IsDirect() {
			continue
		}
		src, ok := d.Node(f.SourceNode())
		if !ok {
			continue
		}
		tgt, ok := d.Node(f.TargetNode())
		if !ok {
			continue
		}
		x1, y1 := src.X+cfg.FlowInset, src.SegmentCenter(f.SourceLevel())
		x2, y2 := tgt.X-cfg.FlowInset, tgt.SegmentCenter(f.TargetLevel())
		d.Flows = append(d.Flows, FlowPath{
			Flow:  f,
			Index: i,
			X1:    x1,
			Y1:    y1,
			X2:    x2,
			Y2:    y2,
			Width: d.FlowWidth(f.SampleCount),
			D:     CurvePath(x1, y1, x2, y2),
		})
	}
	return d
}

// Node returns the box of a laid-out node.
func (d *Diagram) Node(id string) (*NodeBox, bool) {
	i, ok := d.index[id]
	if !ok {
		return nil, false
	}
	return &d.Nodes[i], true
}

// SegmentPoint returns the node centre x and the segment centre y of a
// segment key such as "K3_MC1_high".
func (d *Diagram) SegmentPoint(segment string) (x, y float64, ok bool) {
	id, level := sankey.ParseSegment(segment)
	b, ok := d.Node(id)
	if !ok {
		return 0, 0, false
	}
	return b.X, b.SegmentCenter(level), true
}

// FlowWidth scales a sample count against MaxSignificant.
func (d *Diagram) FlowWidth(count int) float64 {
	return FlowWidth(count, d.MaxSignificant, d.Config)
}

// NodeHeight scales a node total between the configured bounds.
func NodeHeight(total, maxTotal int, cfg Config) float64 {
	return cfg.MinNodeHeight + ratio(total, maxTotal)*(cfg.MaxNodeHeight-cfg.MinNodeHeight)
}

// FlowWidth scales a sample count between the configured bounds.
func FlowWidth(count, maxCount int, cfg Config) float64 {
	return cfg.MinFlowWidth + ratio(count, maxCount)*(cfg.MaxFlowWidth-cfg.MinFlowWidth)
}

func ratio(v, of int) float64 {
	return float64(v) / float64(max(1, of))
}

// SegmentHeights splits a node height between its two segments in
// proportion to their counts. Both are zero for an empty node.
func SegmentHeights(height float64, high, medium int) (highH, mediumH float64) {
	total := high + medium
	if total <= 0 {
		return 0, 0
	}
	return height * float64(high) / float64(total), height * float64(medium) / float64(total)
}

// SegmentCenterY returns the centre y of a segment of a node centred at y.
func SegmentCenterY(y, height float64, high, medium int, level sankey.Level) float64 {
	if high+medium <= 0 {
		return y
	}
	hh, _ := SegmentHeights(height, high, medium)
	top := y - height/2
	if level == sankey.LevelHigh {
		return top + hh/2
	}
	return top + hh + (height-hh)/2
}

// CurvePath returns SVG path data for a horizontal S-curve. Both control
// points sit at the horizontal midpoint, each at its endpoint's y.
func CurvePath(x1, y1, x2, y2 float64) string {
	mx := (x1 + x2) / 2
	b := make([]byte, 0, 64)
	b = append(b, "M "...)
	b = appendPoint(b, x1, y1)
	b = append(b, " C "...)
	b = appendPoint(b, mx, y1)
	b = append(b, ' ')
	b = appendPoint(b, mx, y2)
	b = append(b, ' ')
	b = appendPoint(b, x2, y2)
	return string(b)
}

func appendPoint(b []byte, x, y float64) []byte {
	b = strconv.AppendFloat(b, round2(x), 'f', -1, 64)
	b = append(b, ' ')
	return strconv.AppendFloat(b, round2(y), 'f', -1, 64)
}

func round2(v float64) float64 {
	r := math.Round(v*100) / 100
	if r == 0 {
		return 0 // drop negative zero
	}
	return r
}
