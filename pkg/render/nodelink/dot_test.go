package nodelink

import (
	"strings"
	"testing"

	"github.com/matzehuels/stripesankey/pkg/sankey"
	"github.com/matzehuels/stripesankey/pkg/sankey/layout"
)

func testDataset() *sankey.Dataset {
	perplexity := 12.5
	return sankey.Normalize(&sankey.RawData{
		Nodes: sankey.RawNodes{
			{ID: "K2_MC0", Record: sankey.RawNode{HighCount: 8, MediumCount: 4,
				ModelMetrics: &sankey.ModelMetrics{Perplexity: &perplexity}}},
			{ID: "K2_MC1", Record: sankey.RawNode{HighCount: 6}},
			{ID: "K3_MC0", Record: sankey.RawNode{HighCount: 10}},
			{ID: "K3_MC1"},
		},
		Flows: []sankey.RawFlow{
			{SourceSegment: "K2_MC0_high", TargetSegment: "K3_MC0_high", SourceK: 2, TargetK: 3, SampleCount: 6},
			{SourceSegment: "K2_MC0_medium", TargetSegment: "K3_MC0_high", SourceK: 2, TargetK: 3, SampleCount: 5},
			{SourceSegment: "K2_MC1_high", TargetSegment: "K3_MC0_high", SourceK: 2, TargetK: 3, SampleCount: 4},
		},
	})
}

func TestToDOT_Basic(t *testing.T) {
	dot := ToDOT(testDataset(), nil, Options{})

	for _, want := range []string{
		"digraph G",
		"rankdir=LR",
		`subgraph "cluster_K2"`,
		`label="K=3"`,
		`"K2_MC0" [label="MC0"`,
		`"K2_MC0" -> "K3_MC0" [penwidth=8.00]`,
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("ToDOT() output missing %q", want)
		}
	}
	if strings.Contains(dot, `"K2_MC1" -> "K3_MC0" [`) {
		t.Error("edge below the sample threshold was kept")
	}
}

func TestToDOT_Detailed(t *testing.T) {
	dot := ToDOT(testDataset(), nil, Options{Detailed: true, MinSamples: 1})

	if !strings.Contains(dot, `perplexity: 12.500`) {
		t.Error("detailed label missing perplexity")
	}
	if !strings.Contains(dot, `label="11"`) {
		t.Error("merged edge count missing")
	}
	if !strings.Contains(dot, `"K2_MC1" -> "K3_MC0" [`) {
		t.Error("edge above MinSamples missing")
	}
}

func TestToDOT_EmptyNode(t *testing.T) {
	dot := ToDOT(testDataset(), nil, Options{})
	if !strings.Contains(dot, "dashed") || !strings.Contains(dot, "lightgrey") {
		t.Error("empty topic should be drawn dashed and grey")
	}
}

func TestToDOT_FollowsColumnOrder(t *testing.T) {
	ds := testDataset()
	cols := []layout.Column{
		{K: 2, Order: []string{"K2_MC1", "K2_MC0"}},
		{K: 3, Order: []string{"K3_MC0", "K3_MC1"}},
	}
	dot := ToDOT(ds, cols, Options{})
	if !strings.Contains(dot, `"K2_MC1" -> "K2_MC0" [style=invis]`) {
		t.Error("rank order not kept")
	}
}

func TestEdges(t *testing.T) {
	edges := Edges(testDataset(), 1)
	if len(edges) != 2 {
		t.Fatalf("got %d edges, want 2", len(edges))
	}
	if e := edges[0]; e.From != "K2_MC0" || e.To != "K3_MC0" || e.Count != 11 {
		t.Errorf("edges[0] = %+v", e)
	}
}

func TestPenWidth(t *testing.T) {
	tests := []struct {
		count, max int
		want       float64
	}{
		{0, 0, minPenWidth},
		{10, 10, maxPenWidth},
		{5, 10, 4.5},
	}
	for _, tt := range tests {
		if got := penWidth(tt.count, tt.max); got != tt.want {
			t.Errorf("penWidth(%d, %d) = %v, want %v", tt.count, tt.max, got, tt.want)
		}
	}
}
