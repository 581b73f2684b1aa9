package selection

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/matzehuels/stripesankey/pkg/sankey"
)

var (
	flowA = &sankey.Flow{
		Source: "K2_MC0_high", Target: "K3_MC1_high", SourceK: 2, TargetK: 3, SampleCount: 12,
		Samples: []sankey.SampleFlow{{Sample: "s1"}, {Sample: "s2"}, {Sample: "s1"}},
	}
	flowB = &sankey.Flow{Source: "K2_MC1_medium", Target: "K3_MC0_high", SourceK: 2, TargetK: 3, SampleCount: 20}
)

func TestMachineTransitions(t *testing.T) {
	m := NewMachine(Snapshot{})

	tr := m.Apply(FlowClicked{Flow: flowA})
	if !tr.Changed || !tr.Commit || !tr.Redraw || !tr.State.Matches(flowA) {
		t.Fatalf("select A: %+v", tr)
	}

	tr = m.Apply(FlowClicked{Flow: flowB})
	if !tr.Changed || !tr.State.Matches(flowB) {
		t.Fatalf("switch to B: %+v", tr)
	}

	tr = m.Apply(FlowClicked{Flow: flowB})
	if !tr.Changed || !tr.Commit || !tr.State.IsEmpty() {
		t.Fatalf("toggle B off: %+v", tr)
	}

	tr = m.Apply(BackgroundClicked{})
	if tr.Changed || !tr.Commit || tr.Redraw {
		t.Errorf("background on empty selection: %+v", tr)
	}

	m.Apply(FlowClicked{Flow: flowA})
	tr = m.Apply(BackgroundClicked{})
	if !tr.Changed || !tr.Commit || !tr.Redraw || !tr.State.IsEmpty() {
		t.Errorf("background clears selection: %+v", tr)
	}
}

func TestClickTwiceClears(t *testing.T) {
	for _, initial := range []Snapshot{{}, FromFlow(flowB)} {
		m := NewMachine(initial)
		m.Apply(FlowClicked{Flow: flowA})
		m.Apply(FlowClicked{Flow: flowA})
		if !m.Selected().IsEmpty() {
			t.Errorf("from %v: selection = %v, want empty", initial, m.Selected())
		}
	}
}

func TestMatchesUsesKValues(t *testing.T) {
	s := FromFlow(flowA)
	other := *flowA
	other.SourceK, other.TargetK = 5, 6
	if s.Matches(&other) {
		t.Error("flows with different K values should not match")
	}
	if (Snapshot{}).Matches(&sankey.Flow{}) {
		t.Error("empty snapshot should match nothing")
	}
}

func TestHoverIsEphemeral(t *testing.T) {
	m := NewMachine(FromFlow(flowA))

	tr := m.Apply(FlowHovered{Flow: flowB, X: 10, Y: 10})
	if tr.Commit || tr.Changed || tr.Redraw {
		t.Errorf("hover produced a commit: %+v", tr)
	}
	m.Apply(SegmentHovered{Node: &sankey.Node{ID: "K2_MC0"}, Level: sankey.LevelHigh})
	ev, ok := m.Hover()
	if _, isSeg := ev.(SegmentHovered); !ok || !isSeg {
		t.Errorf("hover = %T, want SegmentHovered", ev)
	}
	if !m.Selected().Matches(flowA) {
		t.Error("hover changed the selection")
	}

	m.Apply(HoverEnded{})
	if _, ok := m.Hover(); ok {
		t.Error("hover should be cleared")
	}
}

func TestSnapshotJSON(t *testing.T) {
	data, err := json.Marshal(Snapshot{})
	if err != nil || string(data) != "{}" {
		t.Errorf("empty snapshot = %s, %v", data, err)
	}

	data, err = json.Marshal(FromFlow(flowB))
	if err != nil {
		t.Fatal(err)
	}
	want := `{"source":"K2_MC1_medium","target":"K3_MC0_high","sourceK":2,"targetK":3,"samples":[],"sampleCount":20}`
	if string(data) != want {
		t.Errorf("snapshot = %s, want %s", data, want)
	}

	for _, in := range []string{"{}", "null"} {
		var s Snapshot
		if err := json.Unmarshal([]byte(in), &s); err != nil || !s.IsEmpty() {
			t.Errorf("Unmarshal(%s) = %+v, %v", in, s, err)
		}
	}

	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil || !s.Matches(flowB) {
		t.Errorf("round trip = %+v, %v", s, err)
	}
}

func TestSampleIDs(t *testing.T) {
	ids := FromFlow(flowA).SampleIDs()
	if len(ids) != 2 || ids[0] != "s1" || ids[1] != "s2" {
		t.Errorf("SampleIDs() = %v", ids)
	}
}

func TestParseRef(t *testing.T) {
	tests := []struct {
		in       string
		src, tgt string
		wantErr  bool
	}{
		{"K2_MC0_high->K3_MC1_high", "K2_MC0_high", "K3_MC1_high", false},
		{"K2_MC0_high → K3_MC1_high", "K2_MC0_high", "K3_MC1_high", false},
		{"K2_MC0_high", "", "", true},
		{"->K3_MC1_high", "", "", true},
	}
	for _, tt := range tests {
		src, tgt, err := ParseRef(tt.in)
		if (err != nil) != tt.wantErr || src != tt.src || tgt != tt.tgt {
			t.Errorf("ParseRef(%q) = (%q, %q, %v)", tt.in, src, tgt, err)
		}
		if err != nil && !errors.Is(err, ErrInvalidRef) {
			t.Errorf("ParseRef(%q) error %v is not ErrInvalidRef", tt.in, err)
		}
	}
}

func TestResolve(t *testing.T) {
	ds := sankey.Normalize(&sankey.RawData{Flows: []sankey.RawFlow{
		{SourceSegment: "K2_MC0_high", TargetSegment: "K3_MC1_high", SourceK: 2, TargetK: 3, SampleCount: 11},
	}})
	s, err := Resolve(ds, "K2_MC0_high->K3_MC1_high")
	if err != nil || s.SampleCount != 11 {
		t.Errorf("Resolve() = %+v, %v", s, err)
	}
	if _, err := Resolve(ds, "K2_MC0_high->K3_MC0_high"); !errors.Is(err, ErrUnknownFlow) {
		t.Errorf("Resolve(unknown) error = %v, want ErrUnknownFlow", err)
	}
}
