package sink

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/matzehuels/stripesankey/pkg/sankey"
	"github.com/matzehuels/stripesankey/pkg/sankey/selection"
	"github.com/matzehuels/stripesankey/pkg/widget"
)

func testData() *sankey.RawData {
	return &sankey.RawData{
		Nodes: sankey.RawNodes{
			{ID: "K2_MC0", Record: sankey.RawNode{HighCount: 8, MediumCount: 4}},
			{ID: "K2_MC1", Record: sankey.RawNode{HighCount: 6}},
			{ID: "K3_MC0", Record: sankey.RawNode{HighCount: 10, MediumCount: 2}},
			{ID: "K3_MC1", Record: sankey.RawNode{HighCount: 5, MediumCount: 5}},
		},
		Flows: []sankey.RawFlow{
			{SourceSegment: "K2_MC0_high", TargetSegment: "K3_MC1_high", SourceK: 2, TargetK: 3, SampleCount: 12,
				Samples: []sankey.SampleFlow{{Sample: "s1"}, {Sample: "s2"}}},
			{SourceSegment: "K2_MC1_high", TargetSegment: "K3_MC0_high", SourceK: 2, TargetK: 3, SampleCount: 10,
				Samples: []sankey.SampleFlow{{Sample: "s3"}}},
		},
		KRange: []int{2, 3},
	}
}

func testFrame(t *testing.T, selected bool) *widget.Frame {
	t.Helper()
	p := widget.DefaultProps()
	p.Data = testData()
	if selected {
		ds := sankey.Normalize(p.Data)
		s, err := selection.Resolve(ds, "K2_MC0_high->K3_MC1_high")
		if err != nil {
			t.Fatal(err)
		}
		p.SelectedFlow = s
	}
	return widget.Build(p, nil)
}

func TestRenderSVG(t *testing.T) {
	svg := string(RenderSVG(testFrame(t, false)))

	for _, want := range []string{
		`viewBox="0 0 1200 800"`,
		`<g transform="translate(100, 60)">`,
		`class="background"`,
		`>K=2</text>`,
		`>K=3</text>`,
		`>MC0</text>`,
		`>Flows: 2 (≥10 samples)</text>`,
		`stroke="#888"`,
	} {
		if !strings.Contains(svg, want) {
			t.Errorf("SVG missing %q", want)
		}
	}
	if strings.Contains(svg, "<script") {
		t.Error("static SVG contains a script")
	}
	if strings.Contains(svg, "sample-info-panel") {
		t.Error("info panel without selection")
	}
	if got := strings.Count(svg, `class="segment `); got != 7 {
		t.Errorf("segments = %d, want 7 (empty medium segment skipped)", got)
	}
}

func TestRenderSVGSelection(t *testing.T) {
	svg := string(RenderSVG(testFrame(t, true)))

	for _, want := range []string{
		`class="flow selected"`,
		`stroke="#ff6b35"`,
		`>Selected: 2 Samples</text>`,
		`>K2_MC0_high → K3_MC1_high</text>`,
		`class="trajectory"`,
		`class="badge"`,
	} {
		if !strings.Contains(svg, want) {
			t.Errorf("SVG missing %q", want)
		}
	}
}

func TestRenderSVGPlaceholder(t *testing.T) {
	svg := string(RenderSVG(widget.Build(widget.DefaultProps(), nil)))
	if !strings.Contains(svg, widget.NoDataMessage) {
		t.Errorf("placeholder missing: %s", svg)
	}
	if strings.Contains(svg, "<path") {
		t.Error("placeholder draws flows")
	}
}

func TestRenderSVGOptions(t *testing.T) {
	svg := string(RenderSVG(testFrame(t, false), WithTitles(), WithInteraction("/sessions/abc/events")))
	if !strings.Contains(svg, `data-events="/sessions/abc/events"`) {
		t.Error("events endpoint missing")
	}
	if !strings.Contains(svg, "<script") || !strings.Contains(svg, "<style>") {
		t.Error("interaction script missing")
	}
	if !strings.Contains(svg, "<title>12 samples") {
		t.Error("flow title missing")
	}
}

func TestRenderSVGEscapesText(t *testing.T) {
	f := widget.Build(widget.DefaultProps(), nil)
	f.Message = `<b>&"`
	svg := string(RenderSVG(f))
	if strings.Contains(svg, "<b>") || !strings.Contains(svg, "&lt;b&gt;&amp;") {
		t.Errorf("message not escaped: %s", svg)
	}
}

func TestRenderSVGEscapesColors(t *testing.T) {
	p := widget.DefaultProps()
	p.Data = testData()
	p.ColorSchemes[2] = `#fff" onload="alert(1)`
	svg := string(RenderSVG(widget.Build(p, nil)))
	if strings.Contains(svg, `onload="alert`) {
		t.Errorf("colour injected an attribute: %s", svg)
	}
	if !strings.Contains(svg, `fill="#fff&#34; onload=&#34;alert(1)"`) {
		t.Error("escaped K=2 label colour missing")
	}
}

func TestRenderJSON(t *testing.T) {
	data, err := RenderJSON(testFrame(t, true), WithJSONPaths())
	if err != nil {
		t.Fatal(err)
	}

	var out struct {
		Mode    string `json:"mode"`
		Status  string `json:"status"`
		Columns []struct {
			K     int      `json:"k"`
			Order []string `json:"order"`
		} `json:"columns"`
		Nodes []struct {
			ID     string   `json:"id"`
			Traced []string `json:"traced"`
		} `json:"nodes"`
		Flows []struct {
			Selected bool   `json:"selected"`
			D        string `json:"d"`
		} `json:"flows"`
		Selected selection.Snapshot `json:"selected_flow"`
		Trace    *struct {
			Samples []string `json:"samples"`
		} `json:"trace"`
		Stats widget.Stats `json:"stats"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}

	if out.Mode != "default" || out.Status != "ready" {
		t.Errorf("mode/status = %s/%s", out.Mode, out.Status)
	}
	if len(out.Columns) != 2 || len(out.Nodes) != 4 || len(out.Flows) != 2 {
		t.Fatalf("columns/nodes/flows = %d/%d/%d", len(out.Columns), len(out.Nodes), len(out.Flows))
	}
	if out.Selected.Source != "K2_MC0_high" {
		t.Errorf("selection = %+v", out.Selected)
	}
	if out.Trace == nil || len(out.Trace.Samples) != 2 {
		t.Errorf("trace = %+v", out.Trace)
	}
	for _, f := range out.Flows {
		if !strings.HasPrefix(f.D, "M ") {
			t.Errorf("flow path = %q", f.D)
		}
	}
	if out.Stats.Drawn != 2 || out.Stats.TracedSamples != 2 {
		t.Errorf("stats = %+v", out.Stats)
	}
}

func TestRenderJSONPlaceholder(t *testing.T) {
	data, err := RenderJSON(widget.Build(widget.DefaultProps(), nil))
	if err != nil {
		t.Fatal(err)
	}
	s := string(data)
	if !strings.Contains(s, `"status":"no_data"`) || !strings.Contains(s, `"selected_flow":{}`) {
		t.Errorf("placeholder JSON = %s", s)
	}
}
