// Package render turns StripeSankey frames into files.
//
// # Overview
//
// This package holds the format-independent part of rendering:
//
//   - Format conversion from SVG to PDF/PNG ([ToPDF], [ToPNG])
//   - Diagram sinks (in [sankey/sink]): SVG, JSON, PNG and PDF from a
//     [widget.Frame]
//   - A node-link view of the flow graph (in [nodelink]) drawn by Graphviz
//
// # Format Conversion
//
// [ToPDF] and [ToPNG] shell out to rsvg-convert (from librsvg). Both sinks
// and the node-link renderer use them:
//
//	svg := sink.RenderSVG(frame)
//	pdf, err := render.ToPDF(ctx, svg)
//	png, err := render.ToPNG(ctx, svg, 2.0)  // 2x scale
//
// [Available] reports whether the converter is installed, so callers can
// skip raster formats instead of failing a whole batch.
//
// [sankey/sink]: github.com/matzehuels/stripesankey/pkg/render/sankey/sink
// [nodelink]: github.com/matzehuels/stripesankey/pkg/render/nodelink
// [widget.Frame]: github.com/matzehuels/stripesankey/pkg/widget.Frame
package render
