package trace

import (
	"slices"

	"github.com/matzehuels/stripesankey/pkg/sankey"
	"github.com/matzehuels/stripesankey/pkg/sankey/geometry"
	"github.com/matzehuels/stripesankey/pkg/sankey/selection"
)

// Drawing constants of the trajectory overlay.
const (
	Color = "#ff6b35"

	MinMarkerRadius = 3.0
	MaxMarkerRadius = 8.0
	BadgeRadius     = 10.0
	BadgeOffsetX    = 35.0
	BadgeInsetY     = 15.0

	SelectedWidthBoost = 2.0
	SelectedOpacity    = 0.9
	LineOpacity        = 0.7
)

// Assignment is the segment a sample occupies in one column.
type Assignment struct {
	NodeID      string
	Level       sankey.Level
	Probability float64
}

// Segment returns the segment key, e.g. "K3_MC1_high".
func (a Assignment) Segment() string { return sankey.SegmentName(a.NodeID, a.Level) }

// Assignments maps every traced sample to its segment per K.
type Assignments struct {
	Samples []sankey.SampleID
	ByK     map[sankey.SampleID]map[int]Assignment
}

// Assign scans flows for the given samples. Each occurrence records the
// source segment at SourceK and the target segment at TargetK; a later flow
// overwrites an earlier one at the same K.
func Assign(samples []sankey.SampleID, flows []sankey.Flow) Assignments {
	a := Assignments{ByK: make(map[sankey.SampleID]map[int]Assignment, len(samples))}
	for _, id := range samples {
		if _, ok := a.ByK[id]; ok {
			continue
		}
		a.Samples = append(a.Samples, id)
		a.ByK[id] = make(map[int]Assignment)
	}

	for i := range flows {
		f := &flows[i]
		if len(f.Samples) == 0 {
			continue
		}
		srcID, srcLevel := sankey.ParseSegment(f.Source)
		tgtID, tgtLevel := sankey.ParseSegment(f.Target)
		for _, sf := range f.Samples {
			byK, ok := a.ByK[sf.Sample]
			if !ok {
				continue
			}
			byK[f.SourceK] = Assignment{NodeID: srcID, Level: srcLevel, Probability: sf.SourceProb}
			byK[f.TargetK] = Assignment{NodeID: tgtID, Level: tgtLevel, Probability: sf.TargetProb}
		}
	}
	return a
}

// Ks returns the K values of a sample in ascending order.
func (a Assignments) Ks(id sankey.SampleID) []int {
	ks := make([]int, 0, len(a.ByK[id]))
	for k := range a.ByK[id] {
		ks = append(ks, k)
	}
	slices.Sort(ks)
	return ks
}

// SegmentCounts counts traced samples per segment. The key order is the
// order in which segments are first reached, sample by sample and K by K.
func (a Assignments) SegmentCounts() (order []string, counts map[string]int) {
	counts = make(map[string]int)
	for _, id := range a.Samples {
		for _, k := range a.Ks(id) {
			seg := a.ByK[id][k].Segment()
			if _, ok := counts[seg]; !ok {
				order = append(order, seg)
			}
			counts[seg]++
		}
	}
	return order, counts
}

// Point is a sample's position in one column.
type Point struct {
	K       int
	Segment string
	X, Y    float64
	Count   int // traced samples in this segment
	Prob    float64
}

// Line joins two points of one sample in adjacent columns.
type Line struct {
	Sample   sankey.SampleID
	From, To Point
	Count    int
	Width    float64
	Opacity  float64
	Selected bool // inside the selected flow's K span
	D        string
}

// Marker is a dot drawn at a point.
type Marker struct {
	Sample sankey.SampleID
	Point
	Radius float64
}

// Badge shows the traced-sample count of a segment.
type Badge struct {
	Segment string
	NodeID  string
	Level   sankey.Level
	Count   int
	X, Y    float64
}

// Result is the trajectory overlay of one selection.
type Result struct {
	SampleCount   int
	Samples       []sankey.SampleID
	Lines         []Line
	Markers       []Marker
	Badges        []Badge
	SegmentCounts map[string]int
}

// Highlighted reports whether a segment carries traced samples.
func (r *Result) Highlighted(segment string) bool {
	return r.SegmentCounts[segment] > 0
}

// Trace builds the overlay for a selection against a positioned diagram.
// Every flow in flows is scanned, drawn or not. Points on nodes that are
// not laid out are skipped, and consecutive points are only joined when
// their K values differ by exactly one.
func Trace(sel selection.Snapshot, flows []sankey.Flow, d *geometry.Diagram) Result {
	ids := sel.SampleIDs()
	if len(ids) == 0 {
		return Result{}
	}

	a := Assign(ids, flows)
	order, counts := a.SegmentCounts()
	res := Result{
		SampleCount:   len(ids),
		Samples:       a.Samples,
		SegmentCounts: counts,
	}

	maxCount := 0
	for _, c := range counts {
		maxCount = max(maxCount, c)
	}

	inset := d.Config.FlowInset
	for _, id := range a.Samples {
		points := make([]Point, 0, len(a.ByK[id]))
		for _, k := range a.Ks(id) {
			as := a.ByK[id][k]
			box, ok := d.Node(as.NodeID)
			if !ok {
				continue
			}
			points = append(points, Point{
				K:       k,
				Segment: as.Segment(),
				X:       box.X,
				Y:       box.SegmentCenter(as.Level),
				Count:   counts[as.Segment()],
				Prob:    as.Probability,
			})
		}
		if len(points) < 2 {
			continue
		}

		for i := 0; i+1 < len(points); i++ {
			from, to := points[i], points[i+1]
			if to.K-from.K != 1 {
				continue
			}
			count := min(from.Count, to.Count)
			l := Line{
				Sample:   id,
				From:     from,
				To:       to,
				Count:    count,
				Width:    d.FlowWidth(count),
				Opacity:  LineOpacity,
				Selected: from.K == sel.SourceK && to.K == sel.TargetK,
				D:        geometry.CurvePath(from.X+inset, from.Y, to.X-inset, to.Y),
			}
			if l.Selected {
				l.Width += SelectedWidthBoost
				l.Opacity = SelectedOpacity
			}
			res.Lines = append(res.Lines, l)
		}

		for _, p := range points {
			res.Markers = append(res.Markers, Marker{
				Sample: id,
				Point:  p,
				Radius: MarkerRadius(p.Count, maxCount),
			})
		}
	}

	for _, seg := range order {
		nodeID, level := sankey.ParseSegment(seg)
		box, ok := d.Node(nodeID)
		if !ok {
			continue
		}
		y := box.Bottom() - BadgeInsetY
		if level == sankey.LevelHigh {
			y = box.Top() + BadgeInsetY
		}
		res.Badges = append(res.Badges, Badge{
			Segment: seg,
			NodeID:  nodeID,
			Level:   level,
			Count:   counts[seg],
			X:       box.X + BadgeOffsetX,
			Y:       y,
		})
	}
	return res
}

// MarkerRadius scales a segment count between the marker radius bounds.
func MarkerRadius(count, maxCount int) float64 {
	if maxCount <= 0 {
		return MinMarkerRadius
	}
	return MinMarkerRadius + float64(count)/float64(maxCount)*(MaxMarkerRadius-MinMarkerRadius)
}
