package pipeline

import (
	"context"
	"fmt"

	"github.com/matzehuels/stripesankey/pkg/render/nodelink"
	"github.com/matzehuels/stripesankey/pkg/render/sankey/sink"
	"github.com/matzehuels/stripesankey/pkg/widget"
)

// RenderFrame encodes one frame in one format, without caching.
func RenderFrame(ctx context.Context, f *widget.Frame, format string, opts Options) ([]byte, error) {
	var svgOpts []sink.SVGOption
	if opts.Titles {
		svgOpts = append(svgOpts, sink.WithTitles())
	}
	scale := opts.Scale
	if scale <= 0 {
		scale = DefaultScale
	}

	switch format {
	case FormatSVG:
		return sink.RenderSVG(f, svgOpts...), nil
	case FormatJSON:
		return sink.RenderJSON(f, sink.WithJSONIndent(), sink.WithJSONPaths())
	case FormatPNG:
		return sink.RenderPNG(ctx, f, sink.WithPNGSVGOptions(svgOpts...), sink.WithScale(scale))
	case FormatPDF:
		return sink.RenderPDF(ctx, f, sink.WithPDFSVGOptions(svgOpts...))
	case FormatDOT:
		return []byte(toDOT(f, opts)), nil
	case FormatNodelink:
		return nodelink.RenderSVG(ctx, toDOT(f, opts))
	}
	return nil, fmt.Errorf("unsupported format: %s", format)
}

// toDOT converts the frame's dataset, keeping its column order. Frames
// without a dataset produce an empty graph.
func toDOT(f *widget.Frame, opts Options) string {
	if f.Dataset == nil {
		return "digraph G {\n}\n"
	}
	nl := nodelink.Options{Detailed: opts.Detailed, Schemes: opts.Props.ColorSchemes}
	if f.Diagram != nil {
		nl.MinSamples = f.Diagram.Config.Significance
	}
	return nodelink.ToDOT(f.Dataset, f.Columns, nl)
}
