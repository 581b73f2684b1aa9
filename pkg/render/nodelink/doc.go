// Package nodelink renders a topic-flow dataset as a node-link diagram.
//
// # Overview
//
// The StripeSankey view draws flows as ribbons between segments. This
// package offers the coarser view: one box per topic, one arrow per pair of
// topics in adjacent models, laid out by Graphviz. Segment flows between the
// same two topics are merged and arrow width follows the merged sample
// count.
//
// # Usage
//
// Convert a dataset to DOT, optionally passing the barycentric column
// orders so Graphviz keeps the same vertical order, then render to SVG:
//
//	cols := layout.Barycentric{}.OrderColumns(ds, 680)
//	dot := nodelink.ToDOT(ds, cols, nodelink.Options{Detailed: true})
//	svg, err := nodelink.RenderSVG(ctx, dot)
//
// For PDF or PNG output:
//
//	pdf, err := nodelink.RenderPDF(ctx, dot)
//	png, err := nodelink.RenderPNG(ctx, dot, 2.0)  // 2x scale
//
// # Dependencies
//
// This package uses [github.com/goccy/go-graphviz] for in-process SVG
// rendering. PDF and PNG conversion requires librsvg (rsvg-convert).
package nodelink
