package nodelink

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/stripesankey/pkg/render"
	"github.com/matzehuels/stripesankey/pkg/sankey"
	"github.com/matzehuels/stripesankey/pkg/sankey/color"
	"github.com/matzehuels/stripesankey/pkg/sankey/layout"
)

// Options configures node-link diagram rendering.
type Options struct {
	// Detailed adds segment counts and metrics to node labels and sample
	// counts to edges. When false, nodes show only "MC<n>".
	Detailed bool

	// MinSamples drops aggregated edges below this sample count.
	// Zero uses [sankey.SignificanceThreshold].
	MinSamples int

	// Schemes colours nodes by K. Nil uses [color.DefaultSchemes].
	Schemes color.Schemes
}

const (
	minPenWidth = 1.0
	maxPenWidth = 8.0
)

// ToDOT converts a dataset to Graphviz DOT. Each K becomes a rank of the
// left-to-right graph. Segment flows between the same two nodes are merged
// into one edge. When cols is non-nil, nodes within a rank follow its
// order; otherwise dataset order is used.
func ToDOT(ds *sankey.Dataset, cols []layout.Column, opts Options) string {
	if opts.MinSamples <= 0 {
		opts.MinSamples = sankey.SignificanceThreshold
	}
	if opts.Schemes == nil {
		opts.Schemes = color.DefaultSchemes()
	}

	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fontcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  edge [color=\"#888888\", arrowsize=0.6];\n")
	buf.WriteString("  ranksep=1.2;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	for _, rank := range ranks(ds, cols) {
		fmt.Fprintf(&buf, "  subgraph \"cluster_K%d\" {\n", rank.k)
		fmt.Fprintf(&buf, "    label=\"K=%d\"; color=transparent; fontcolor=%q;\n", rank.k, opts.Schemes.Base(rank.k))
		for _, n := range rank.nodes {
			fmt.Fprintf(&buf, "    %q [%s];\n", n.ID, strings.Join(fmtAttrs(n, opts), ", "))
		}
		for i := 1; i < len(rank.nodes); i++ {
			fmt.Fprintf(&buf, "    %q -> %q [style=invis];\n", rank.nodes[i-1].ID, rank.nodes[i].ID)
		}
		buf.WriteString("  }\n")
	}

	buf.WriteString("\n")
	edges := Edges(ds, opts.MinSamples)
	maxCount := 0
	for _, e := range edges {
		maxCount = max(maxCount, e.Count)
	}
	for _, e := range edges {
		attrs := []string{fmt.Sprintf("penwidth=%.2f", penWidth(e.Count, maxCount))}
		if opts.Detailed {
			attrs = append(attrs, fmt.Sprintf("label=\"%d\"", e.Count))
		}
		fmt.Fprintf(&buf, "  %q -> %q [%s];\n", e.From, e.To, strings.Join(attrs, ", "))
	}

	buf.WriteString("}\n")
	return buf.String()
}

// Edge is a node-to-node flow aggregate.
type Edge struct {
	From, To string
	Count    int
}

// Edges merges segment flows between adjacent columns into node pairs,
// keeping pairs with at least minSamples samples, in first-seen order.
func Edges(ds *sankey.Dataset, minSamples int) []Edge {
	index := make(map[[2]string]int)
	var edges []Edge
	for i := range ds.Flows {
		f := &ds.Flows[i]
		if !f.IsDirect() {
			continue
		}
		key := [2]string{f.SourceNode(), f.TargetNode()}
		j, ok := index[key]
		if !ok {
			j = len(edges)
			index[key] = j
			edges = append(edges, Edge{From: key[0], To: key[1]})
		}
		edges[j].Count += f.SampleCount
	}
	out := edges[:0]
	for _, e := range edges {
		if e.Count >= minSamples {
			out = append(out, e)
		}
	}
	return out
}

type rank struct {
	k     int
	nodes []*sankey.Node
}

func ranks(ds *sankey.Dataset, cols []layout.Column) []rank {
	var out []rank
	if cols != nil {
		for _, c := range cols {
			r := rank{k: c.K}
			for _, id := range c.Order {
				if n, ok := ds.Node(id); ok {
					r.nodes = append(r.nodes, n)
				}
			}
			out = append(out, r)
		}
		return out
	}
	byK := ds.NodesByK()
	for _, k := range ds.KValues {
		out = append(out, rank{k: k, nodes: byK[k]})
	}
	return out
}

func fmtLabel(n *sankey.Node, detailed bool) string {
	label := fmt.Sprintf("MC%d", n.MC)
	if !detailed {
		return label
	}
	parts := []string{
		label,
		fmt.Sprintf("high: %d", n.HighCount),
		fmt.Sprintf("medium: %d", n.MediumCount),
	}
	if n.Perplexity != nil {
		parts = append(parts, fmt.Sprintf("perplexity: %.3f", *n.Perplexity))
	}
	if n.Coherence != nil {
		parts = append(parts, fmt.Sprintf("coherence: %.3f", *n.Coherence))
	}
	return strings.Join(parts, "\n")
}

func fmtAttrs(n *sankey.Node, opts Options) []string {
	attrs := []string{
		fmt.Sprintf("label=%q", fmtLabel(n, opts.Detailed)),
		fmt.Sprintf("fillcolor=%q", opts.Schemes.Base(n.K)),
	}
	if n.Total() == 0 {
		attrs = append(attrs, "style=\"rounded,filled,dashed\"", "fillcolor=lightgrey", "fontcolor=black")
	}
	return attrs
}

func penWidth(count, maxCount int) float64 {
	if maxCount <= 0 {
		return minPenWidth
	}
	return minPenWidth + float64(count)/float64(maxCount)*(maxPenWidth-minPenWidth)
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
// Returns the SVG bytes ready for display or further conversion with [render.ToPDF] or [render.ToPNG].
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	newSvg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)

	return svgTagRe.ReplaceAll(svg, []byte(newSvg))
}

// RenderPDF renders a DOT graph as PDF via SVG conversion.
//
// Requires librsvg: brew install librsvg (macOS), apt install librsvg2-bin (Linux).
func RenderPDF(ctx context.Context, dot string) ([]byte, error) {
	svg, err := RenderSVG(ctx, dot)
	if err != nil {
		return nil, err
	}
	return render.ToPDF(ctx, svg)
}

// RenderPNG renders a DOT graph as PNG via SVG conversion.
// A scale of 2.0 produces a 2x resolution image suitable for high-DPI displays.
func RenderPNG(ctx context.Context, dot string, scale float64) ([]byte, error) {
	svg, err := RenderSVG(ctx, dot)
	if err != nil {
		return nil, err
	}
	return render.ToPNG(ctx, svg, scale)
}
