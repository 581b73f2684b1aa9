// Package sink writes StripeSankey frames to output formats.
//
// # Formats
//
//   - [RenderSVG]: a standalone SVG document. Flows, node segments, column
//     labels, the legend, the selection info panel, the trajectory overlay
//     and the hover tooltip are drawn in that order.
//   - [RenderJSON]: the frame's geometry and styling as JSON, for clients
//     that draw the diagram themselves.
//   - [RenderPNG] and [RenderPDF]: raster and print output through
//     rsvg-convert.
//
// # Interaction
//
// [WithInteraction] embeds a small script that posts clicks on flows and
// on the background to an events endpoint and replaces the document with
// the SVG it returns. The HTTP host in internal/server serves such an
// endpoint per session:
//
//	svg := sink.RenderSVG(frame, sink.WithTitles(),
//	    sink.WithInteraction("/sessions/"+id+"/events"))
//
// [WithTitles] adds native <title> hover text, which also works in viewers
// that do not run scripts.
package sink
