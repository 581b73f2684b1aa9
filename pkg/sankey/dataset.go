package sankey

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// ErrUnknownNode is returned when a node ID matches no node.
var ErrUnknownNode = errors.New("unknown node")

// SignificanceThreshold is the minimum sample count for a flow to be drawn
// and to take part in flow-width normalisation.
const SignificanceThreshold = 10

// Level is one of the two confidence segments of a node.
type Level string

const (
	LevelHigh   Level = "high"
	LevelMedium Level = "medium"
)

// Levels lists the segments of a node from top to bottom.
var Levels = []Level{LevelHigh, LevelMedium}

// nodeIDPattern matches the composite node key. The match is not anchored:
// any key containing the pattern is accepted and keeps its full text as ID.
var nodeIDPattern = regexp.MustCompile(`K(\d+)_MC(\d+)`)

// Node is a topic of one model, i.e. one bar in column K.
type Node struct {
	ID               string
	K                int
	MC               int
	HighCount        int
	MediumCount      int
	TotalProbability float64
	HighSamples      []SampleID
	MediumSamples    []SampleID

	// Perplexity and Coherence are nil when the raw record has no value.
	Perplexity *float64
	Coherence  *float64
}

// Total returns the number of samples in both segments.
func (n *Node) Total() int { return n.HighCount + n.MediumCount }

// Count returns the number of samples in the given segment.
func (n *Node) Count(level Level) int {
	if level == LevelHigh {
		return n.HighCount
	}
	return n.MediumCount
}

// SegmentName returns the segment key used by flows, e.g. "K3_MC1_high".
func (n *Node) SegmentName(level Level) string {
	return SegmentName(n.ID, level)
}

// Flow moves samples from a segment in column SourceK to a segment in
// column TargetK.
type Flow struct {
	Source             string
	Target             string
	SourceK            int
	TargetK            int
	SampleCount        int
	AverageProbability float64
	Samples            []SampleFlow
}

// SourceNode returns the node ID of the source segment.
func (f *Flow) SourceNode() string {
	id, _ := ParseSegment(f.Source)
	return id
}

// TargetNode returns the node ID of the target segment.
func (f *Flow) TargetNode() string {
	id, _ := ParseSegment(f.Target)
	return id
}

// SourceLevel returns the level of the source segment.
func (f *Flow) SourceLevel() Level {
	_, l := ParseSegment(f.Source)
	return l
}

// TargetLevel returns the level of the target segment.
func (f *Flow) TargetLevel() Level {
	_, l := ParseSegment(f.Target)
	return l
}

// IsDirect reports whether the flow connects adjacent columns.
func (f *Flow) IsDirect() bool { return f.TargetK == f.SourceK+1 }

// IsSignificant reports whether the flow carries at least threshold samples.
// Renderers pass [SignificanceThreshold] unless configured otherwise.
func (f *Flow) IsSignificant(threshold int) bool { return f.SampleCount >= threshold }

// String returns "source → target".
func (f *Flow) String() string { return fmt.Sprintf("%s → %s", f.Source, f.Target) }

// SegmentName joins a node ID and a level into a segment key.
func SegmentName(nodeID string, level Level) string {
	return nodeID + "_" + string(level)
}

// ParseSegment splits a segment key into node ID and level. A trailing
// "_high" or "_medium" is stripped from the ID; the level is high whenever
// the key contains "_high" and medium otherwise.
func ParseSegment(name string) (string, Level) {
	id := name
	if s, ok := strings.CutSuffix(name, "_high"); ok {
		id = s
	} else if s, ok := strings.CutSuffix(name, "_medium"); ok {
		id = s
	}
	if strings.Contains(name, "_high") {
		return id, LevelHigh
	}
	return id, LevelMedium
}

// ParseNodeID extracts K and MC from a node key.
func ParseNodeID(id string) (k, mc int, ok bool) {
	m := nodeIDPattern.FindStringSubmatch(id)
	if m == nil {
		return 0, 0, false
	}
	k, errK := strconv.Atoi(m[1])
	mc, errMC := strconv.Atoi(m[2])
	if errK != nil || errMC != nil {
		return 0, 0, false
	}
	return k, mc, true
}

// Dataset is the normalised diagram input.
//
// The zero value is an empty dataset. A Dataset is never mutated after
// [Normalize] returns and is safe for concurrent reads.
type Dataset struct {
	Nodes   []Node
	Flows   []Flow
	KValues []int

	index map[string]int
}

// Normalize converts raw data into a [Dataset]. It never fails: malformed
// node keys are dropped and missing values default to zero or empty.
//
// K values come from the raw k_range, de-duplicated and sorted ascending.
// When k_range is absent they are derived from the parsed nodes.
func Normalize(raw *RawData) *Dataset {
	ds := &Dataset{index: make(map[string]int)}
	if raw == nil {
		return ds
	}

	for _, e := range raw.Nodes {
		k, mc, ok := ParseNodeID(e.ID)
		if !ok {
			continue
		}
		n := Node{
			ID:               e.ID,
			K:                k,
			MC:               mc,
			HighCount:        e.Record.HighCount,
			MediumCount:      e.Record.MediumCount,
			TotalProbability: e.Record.TotalProbability,
			HighSamples:      nonNil(e.Record.HighSamples),
			MediumSamples:    nonNil(e.Record.MediumSamples),
		}
		if m := e.Record.ModelMetrics; m != nil {
			n.Perplexity = m.Perplexity
		}
		if d := e.Record.MalletDiagnostics; d != nil {
			n.Coherence = d.Coherence
		}
		ds.index[n.ID] = len(ds.Nodes)
		ds.Nodes = append(ds.Nodes, n)
	}

	ds.Flows = make([]Flow, 0, len(raw.Flows))
	for _, f := range raw.Flows {
		ds.Flows = append(ds.Flows, Flow{
			Source:             f.SourceSegment,
			Target:             f.TargetSegment,
			SourceK:            f.SourceK,
			TargetK:            f.TargetK,
			SampleCount:        f.SampleCount,
			AverageProbability: f.AverageProbability,
			Samples:            nonNil(f.Samples),
		})
	}

	ks := slices.Clone(raw.KRange)
	if len(ks) == 0 {
		for _, n := range ds.Nodes {
			ks = append(ks, n.K)
		}
	}
	slices.Sort(ks)
	ds.KValues = slices.Compact(ks)

	return ds
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// Node returns the node with the given ID.
func (d *Dataset) Node(id string) (*Node, bool) {
	i, ok := d.index[id]
	if !ok {
		return nil, false
	}
	return &d.Nodes[i], true
}

// NodesByK groups nodes by column, keeping dataset order inside a column.
func (d *Dataset) NodesByK() map[int][]*Node {
	out := make(map[int][]*Node)
	for i := range d.Nodes {
		n := &d.Nodes[i]
		out[n.K] = append(out[n.K], n)
	}
	return out
}

// ColumnIndex returns the position of k among the K values.
func (d *Dataset) ColumnIndex(k int) (int, bool) {
	i, ok := slices.BinarySearch(d.KValues, k)
	return i, ok
}

// SignificantFlows returns the flows that reach threshold, in dataset order.
func (d *Dataset) SignificantFlows(threshold int) []*Flow {
	var out []*Flow
	for i := range d.Flows {
		if d.Flows[i].IsSignificant(threshold) {
			out = append(out, &d.Flows[i])
		}
	}
	return out
}

// MaxSignificantCount returns the largest sample count among flows that
// reach threshold, or 1 when there are none.
func (d *Dataset) MaxSignificantCount(threshold int) int {
	m := 0
	for i := range d.Flows {
		if f := &d.Flows[i]; f.IsSignificant(threshold) && f.SampleCount > m {
			m = f.SampleCount
		}
	}
	if m == 0 {
		return 1
	}
	return m
}

// MaxTotalCount returns the largest node total, or 1 when every node is
// empty.
func (d *Dataset) MaxTotalCount() int {
	m := 0
	for i := range d.Nodes {
		if t := d.Nodes[i].Total(); t > m {
			m = t
		}
	}
	if m == 0 {
		return 1
	}
	return m
}

// FindFlow returns the first flow from source to target segment.
func (d *Dataset) FindFlow(source, target string) (*Flow, bool) {
	for i := range d.Flows {
		if d.Flows[i].Source == source && d.Flows[i].Target == target {
			return &d.Flows[i], true
		}
	}
	return nil, false
}
