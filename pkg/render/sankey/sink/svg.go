package sink

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/matzehuels/stripesankey/pkg/sankey"
	"github.com/matzehuels/stripesankey/pkg/sankey/color"
	"github.com/matzehuels/stripesankey/pkg/sankey/selection"
	"github.com/matzehuels/stripesankey/pkg/sankey/trace"
	"github.com/matzehuels/stripesankey/pkg/widget"
)

const fontFamily = "-apple-system, BlinkMacSystemFont, 'Segoe UI', Helvetica, Arial, sans-serif"

const interactionCSS = `
    .flow { cursor: pointer; transition: opacity 0.15s ease; }
    .flow:not(.selected):hover { opacity: %s; }
    .segment { cursor: pointer; }
    .segment:hover { opacity: 0.8; }
    .node-label { cursor: pointer; }
    .trajectory, .marker, .badge { pointer-events: none; }`

// interactionJS posts user events to the host and swaps in the returned
// diagram. The endpoint answers with the new SVG.
const interactionJS = `
    (function() {
      const svg = document.currentScript ? document.currentScript.closest('svg') : document.querySelector('svg.stripesankey');
      const endpoint = svg.dataset.events;
      function send(ev) {
        fetch(endpoint, {method: 'POST', headers: {'Content-Type': 'application/json', 'Accept': 'image/svg+xml'}, body: JSON.stringify(ev)})
          .then(r => r.ok ? r.text() : Promise.reject(r.status))
          .then(text => { svg.outerHTML = text; })
          .catch(err => console.error('stripesankey event failed', err));
      }
      svg.querySelectorAll('.flow').forEach(el => el.addEventListener('click', e => {
        e.stopPropagation();
        send({type: 'flow_clicked', source: el.dataset.source, target: el.dataset.target});
      }));
      svg.querySelector('.background').addEventListener('click', () => send({type: 'background_clicked'}));
    })();`

// SVGOption configures [RenderSVG].
type SVGOption func(*svgRenderer)

type svgRenderer struct {
	titles   bool
	endpoint string
	tooltip  bool
	noScript bool
}

// WithTitles adds <title> children so viewers show native hover text for
// flows and segments.
func WithTitles() SVGOption { return func(r *svgRenderer) { r.titles = true } }

// WithInteraction embeds the click script. Events are posted as JSON to
// endpoint.
func WithInteraction(endpoint string) SVGOption {
	return func(r *svgRenderer) { r.endpoint = endpoint }
}

// WithoutScript keeps the data-events attribute and hover styles of
// [WithInteraction] but leaves out the script, for pages that attach their
// own handlers.
func WithoutScript() SVGOption { return func(r *svgRenderer) { r.noScript = true } }

// WithoutTooltip omits the frame's hover tooltip.
func WithoutTooltip() SVGOption { return func(r *svgRenderer) { r.tooltip = false } }

// RenderSVG draws a frame as a standalone SVG document. Placeholder frames
// render their message centred on the canvas.
func RenderSVG(f *widget.Frame, opts ...SVGOption) []byte {
	r := svgRenderer{tooltip: true}
	for _, opt := range opts {
		opt(&r)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<svg xmlns="http://www.w3.org/2000/svg" class="stripesankey" viewBox="0 0 %s %s" width="%s" height="%s" font-family="%s"`,
		num(f.Width), num(f.Height), num(f.Width), num(f.Height), fontFamily)
	if r.endpoint != "" {
		fmt.Fprintf(&buf, ` data-events="%s"`, escape(r.endpoint))
	}
	buf.WriteString(">\n")
	fmt.Fprintf(&buf, `  <rect width="%s" height="%s" fill="white"/>`+"\n", num(f.Width), num(f.Height))
	fmt.Fprintf(&buf, `  <g transform="translate(%s, %s)">`+"\n", num(f.Margin.Left), num(f.Margin.Top))

	if f.Status != widget.StatusReady {
		fmt.Fprintf(&buf, `    <text x="%s" y="%s" text-anchor="middle" font-size="16" fill="#666">%s</text>`+"\n",
			num(f.ChartWidth/2), num(f.ChartHeight/2), escape(f.Message))
		buf.WriteString("  </g>\n</svg>\n")
		return buf.Bytes()
	}

	fmt.Fprintf(&buf, `    <rect class="background" width="%s" height="%s" fill="white" fill-opacity="0"/>`+"\n",
		num(f.ChartWidth), num(f.ChartHeight))
	r.renderFlows(&buf, f)
	r.renderNodes(&buf, f)
	renderLabels(&buf, f)
	if f.Trace != nil {
		renderTrace(&buf, f.Trace)
	}
	renderLegend(&buf, f)
	if f.Info != nil {
		renderInfo(&buf, f.Info)
	}
	if r.tooltip && f.Tooltip != nil {
		renderTooltip(&buf, f.Tooltip)
	}
	buf.WriteString("  </g>\n")

	if r.endpoint != "" {
		fmt.Fprintf(&buf, "  <style>%s\n  </style>\n", fmt.Sprintf(interactionCSS, num(widget.FlowHoverOpacity)))
		if !r.noScript {
			fmt.Fprintf(&buf, "  <script type=\"text/javascript\"><![CDATA[%s\n  ]]></script>\n", interactionJS)
		}
	}
	buf.WriteString("</svg>\n")
	return buf.Bytes()
}

func (r *svgRenderer) renderFlows(buf *bytes.Buffer, f *widget.Frame) {
	buf.WriteString("    <g class=\"flows\">\n")
	for _, fv := range f.Flows {
		class := "flow"
		if fv.Selected {
			class += " selected"
		}
		fl := fv.Path.Flow
		fmt.Fprintf(buf, `      <path class="%s" id="flow-%d" d="%s" stroke="%s" stroke-width="%s" fill="none" opacity="%s" data-source="%s" data-target="%s"`,
			class, fv.Path.Index, fv.Path.D, escape(fv.Stroke), num(fv.Width), num(fv.Opacity), escape(fl.Source), escape(fl.Target))
		if r.titles {
			fmt.Fprintf(buf, "><title>%d samples\n%s</title></path>\n", fl.SampleCount, escape(fl.String()))
		} else {
			buf.WriteString("/>\n")
		}
	}
	buf.WriteString("    </g>\n")
}

func (r *svgRenderer) renderNodes(buf *bytes.Buffer, f *widget.Frame) {
	buf.WriteString("    <g class=\"nodes\">\n")
	half := f.Diagram.Config.NodeWidth / 2
	for _, nv := range f.Nodes {
		b := nv.Box
		fmt.Fprintf(buf, `      <g class="node" id="node-%s" transform="translate(%s, %s)">`+"\n",
			escape(b.Node.ID), num(b.X), num(b.Top()))
		for _, level := range sankey.Levels {
			h := b.SegmentHeight(level)
			if h <= 0 {
				continue
			}
			fill := nv.Fill.Medium
			if level == sankey.LevelHigh {
				fill = nv.Fill.High
			}
			stroke, width := widget.SegmentStroke, widget.SegmentStrokeWidth
			if nv.Traced(level) {
				stroke, width = trace.Color, widget.HighlightStrokeWidth
			}
			fmt.Fprintf(buf, `        <rect class="segment segment-%s" x="%s" y="%s" width="%s" height="%s" fill="%s" stroke="%s" stroke-width="%s" data-node="%s" data-level="%s"`,
				escape(b.Node.SegmentName(level)), num(-half), num(b.SegmentTop(level)-b.Top()), num(2*half), num(h), escape(fill), escape(stroke), num(width),
				escape(b.Node.ID), level)
			if r.titles {
				tip := selection.SegmentTooltip(b.Node, level, f.MetricMode, 0, 0, f.ChartWidth)
				fmt.Fprintf(buf, "><title>%s</title></rect>\n", escape(strings.Join(tip.Lines, "\n")))
			} else {
				buf.WriteString("/>\n")
			}
		}
		fmt.Fprintf(buf, `        <text class="node-label" x="25" y="%s" dy="0.35em" font-size="11" font-weight="bold" fill="%s">%s</text>`+"\n",
			num(b.Height/2), color.LabelDefault, escape(nv.Label))
		buf.WriteString("      </g>\n")
	}
	buf.WriteString("    </g>\n")
}

func renderLabels(buf *bytes.Buffer, f *widget.Frame) {
	for _, l := range f.Labels {
		fmt.Fprintf(buf, `    <text class="k-label" x="%s" y="-30" text-anchor="middle" font-size="16" font-weight="bold" fill="%s">%s</text>`+"\n",
			num(l.X), escape(l.Color), escape(l.Text))
	}
}

func renderTrace(buf *bytes.Buffer, t *trace.Result) {
	buf.WriteString("    <g class=\"trace\">\n")
	for _, l := range t.Lines {
		fmt.Fprintf(buf, `      <path class="trajectory" d="%s" stroke="%s" stroke-width="%s" fill="none" opacity="%s"/>`+"\n",
			l.D, trace.Color, num(l.Width), num(l.Opacity))
	}
	for _, m := range t.Markers {
		fmt.Fprintf(buf, `      <circle class="marker" cx="%s" cy="%s" r="%s" fill="%s" stroke="white" stroke-width="1.5" opacity="0.8"/>`+"\n",
			num(m.X), num(m.Y), num(m.Radius), trace.Color)
	}
	for _, b := range t.Badges {
		fmt.Fprintf(buf, `      <circle class="badge" cx="%s" cy="%s" r="%s" fill="%s" stroke="white" stroke-width="2"/>`+"\n",
			num(b.X), num(b.Y), num(trace.BadgeRadius), trace.Color)
		fmt.Fprintf(buf, `      <text class="badge" x="%s" y="%s" text-anchor="middle" dy="0.35em" font-size="9" font-weight="bold" fill="white">%d</text>`+"\n",
			num(b.X), num(b.Y), b.Count)
	}
	buf.WriteString("    </g>\n")
}

func renderLegend(buf *bytes.Buffer, f *widget.Frame) {
	x, y := f.LegendOrigin()
	fmt.Fprintf(buf, `    <g class="legend" transform="translate(%s, %s)">`+"\n", num(x), num(y))
	for _, it := range f.Legend {
		tx := 0.0
		if it.Swatch != "" {
			fmt.Fprintf(buf, `      <rect y="%s" width="15" height="10" fill="%s"/>`+"\n", num(it.Y-8), escape(it.Swatch))
			tx = 20
		}
		weight := ""
		if it.Bold {
			weight = ` font-weight="bold"`
		}
		fmt.Fprintf(buf, `      <text x="%s" y="%s" font-size="%s"%s fill="%s">%s</text>`+"\n",
			num(tx), num(it.Y), num(it.FontSize), weight, escape(it.Color), escape(it.Text))
	}
	buf.WriteString("    </g>\n")
}

func renderInfo(buf *bytes.Buffer, info *widget.InfoPanel) {
	buf.WriteString("    <g class=\"sample-info-panel\">\n")
	fmt.Fprintf(buf, `      <rect x="10" y="10" width="200" height="60" fill="white" stroke="%s" stroke-width="2" rx="5" opacity="0.95"/>`+"\n", trace.Color)
	fmt.Fprintf(buf, `      <text x="20" y="30" font-size="12" font-weight="bold" fill="%s">%s</text>`+"\n", trace.Color, escape(info.Title))
	fmt.Fprintf(buf, `      <text x="20" y="45" font-size="10" fill="#333">%s</text>`+"\n", escape(info.Flow))
	fmt.Fprintf(buf, `      <text x="20" y="58" font-size="9" fill="#666">%s</text>`+"\n", escape(info.Hint))
	buf.WriteString("    </g>\n")
}

func renderTooltip(buf *bytes.Buffer, t *selection.Tooltip) {
	buf.WriteString("    <g class=\"tooltip\">\n")
	fmt.Fprintf(buf, `      <rect x="%s" y="%s" width="%s" height="%s" fill="white" stroke="black" rx="3" opacity="0.9"/>`+"\n",
		num(t.X), num(t.Y), num(t.Width), num(t.Height))
	for i, line := range t.Lines {
		fmt.Fprintf(buf, `      <text x="%s" y="%s" font-size="10" fill="black">%s</text>`+"\n",
			num(t.X+5), num(t.Y+15+float64(i)*selection.TooltipLineHeight), escape(line))
	}
	buf.WriteString("    </g>\n")
}

func num(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}

func escape(s string) string {
	var buf bytes.Buffer
	xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
