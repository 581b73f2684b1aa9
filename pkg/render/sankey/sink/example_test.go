package sink_test

import (
	"fmt"
	"strings"

	"github.com/matzehuels/stripesankey/pkg/render/sankey/sink"
	"github.com/matzehuels/stripesankey/pkg/sankey"
	"github.com/matzehuels/stripesankey/pkg/widget"
)

func ExampleRenderSVG() {
	p := widget.DefaultProps()
	p.Data = &sankey.RawData{
		Nodes: sankey.RawNodes{
			{ID: "K2_MC0", Record: sankey.RawNode{HighCount: 12}},
			{ID: "K3_MC0", Record: sankey.RawNode{HighCount: 12}},
		},
		Flows: []sankey.RawFlow{
			{SourceSegment: "K2_MC0_high", TargetSegment: "K3_MC0_high", SourceK: 2, TargetK: 3, SampleCount: 12},
		},
	}

	svg := string(sink.RenderSVG(widget.Build(p, nil)))
	fmt.Println(strings.HasPrefix(svg, "<svg"))
	fmt.Println(strings.Count(svg, `<path class="flow`))
	// Output:
	// true
	// 1
}
