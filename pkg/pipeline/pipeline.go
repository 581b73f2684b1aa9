// Package pipeline runs the load -> layout -> render pipeline for the CLI
// and the HTTP host.
//
// The pipeline has three stages:
//
//  1. Load: read a raw dataset (JSON or YAML) from disk
//  2. Layout: normalise it and order each K column by barycenter
//  3. Render: build a frame and encode it in the requested formats
//
// Rendering is the expensive stage (PNG and PDF shell out to rsvg-convert,
// node-link output runs Graphviz), so the [Runner] caches encoded artifacts
// keyed by a hash of the dataset and every option that affects the bytes.
// Concurrent requests for the same artifacts share one render.
//
// # Usage
//
//	runner := pipeline.NewRunner(c, nil, logger)
//	raw, err := runner.Load(ctx, "topics.json")
//	if err != nil {
//	    return err
//	}
//	result, err := runner.Execute(ctx, raw, pipeline.Options{
//	    Props:   cfg.Props(),
//	    Formats: []string{"svg", "png"},
//	    Select:  "K2_MC0_high->K3_MC1_high",
//	})
//	svg := result.Artifacts["svg"]
package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/stripesankey/pkg/cache"
	"github.com/matzehuels/stripesankey/pkg/sankey"
	"github.com/matzehuels/stripesankey/pkg/sankey/layout"
	"github.com/matzehuels/stripesankey/pkg/widget"
)

// =============================================================================
// Formats
// =============================================================================

// Output formats.
const (
	FormatSVG      = "svg"
	FormatJSON     = "json"
	FormatPNG      = "png"
	FormatPDF      = "pdf"
	FormatDOT      = "dot"
	FormatNodelink = "nodelink"
)

// ValidFormats is the set of supported output formats.
var ValidFormats = map[string]bool{
	FormatSVG:      true,
	FormatJSON:     true,
	FormatPNG:      true,
	FormatPDF:      true,
	FormatDOT:      true,
	FormatNodelink: true,
}

// Extension returns the file extension written for a format.
func Extension(format string) string {
	if format == FormatNodelink {
		return "nodelink.svg"
	}
	return format
}

// ContentType returns the MIME type of a format.
func ContentType(format string) string {
	switch format {
	case FormatSVG, FormatNodelink:
		return "image/svg+xml"
	case FormatJSON:
		return "application/json"
	case FormatPNG:
		return "image/png"
	case FormatPDF:
		return "application/pdf"
	case FormatDOT:
		return "text/vnd.graphviz"
	}
	return "application/octet-stream"
}

// DefaultScale is the PNG scale factor.
const DefaultScale = 2.0

// =============================================================================
// Options
// =============================================================================

// Options configures one pipeline run.
type Options struct {
	// Props are the diagram settings. Props.Data is ignored; the dataset is
	// passed to [Runner.Execute].
	Props widget.Props `json:"props"`

	// Formats lists the outputs to produce. Defaults to svg.
	Formats []string `json:"formats,omitempty"`

	// Select is a "SOURCE->TARGET" flow reference. When set it replaces
	// Props.SelectedFlow.
	Select string `json:"select,omitempty"`

	// Scale is the PNG scale factor.
	Scale float64 `json:"scale,omitempty"`

	// Detailed adds counts and metrics to node-link labels.
	Detailed bool `json:"detailed,omitempty"`

	// Titles adds hover titles to flows and segments in SVG output.
	Titles bool `json:"titles,omitempty"`

	// Refresh skips cache reads; results are still written.
	Refresh bool `json:"refresh,omitempty"`

	// Logger overrides the runner's logger for this run.
	Logger *log.Logger `json:"-"`
}

// Validate applies defaults and checks formats.
func (o *Options) Validate() error {
	if len(o.Formats) == 0 {
		o.Formats = []string{FormatSVG}
	}
	if err := ValidateFormats(o.Formats); err != nil {
		return err
	}
	if o.Scale <= 0 {
		o.Scale = DefaultScale
	}
	if o.Logger == nil {
		o.Logger = log.New(io.Discard)
	}
	return nil
}

// ValidateFormat checks that a format is valid.
func ValidateFormat(format string) error {
	if !ValidFormats[format] {
		return fmt.Errorf("invalid format: %q (must be one of: svg, json, png, pdf, dot, nodelink)", format)
	}
	return nil
}

// ValidateFormats checks that all formats are valid.
func ValidateFormats(formats []string) error {
	for _, f := range formats {
		if err := ValidateFormat(f); err != nil {
			return err
		}
	}
	return nil
}

// ParseFormats splits a comma-separated format list.
func ParseFormats(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.ToLower(strings.TrimSpace(f)); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// ArtifactKeyOpts returns the cache key inputs of one format.
func (o *Options) ArtifactKeyOpts(format string) cache.ArtifactKeyOpts {
	p := o.Props
	schemes, _ := json.Marshal(p.ColorSchemes)
	geom, _ := json.Marshal(p.Geometry)
	k := cache.ArtifactKeyOpts{
		Format:       format,
		Width:        p.Width,
		Height:       p.Height,
		MetricMode:   p.MetricMode,
		RedWeight:    p.MetricConfig.RedWeight,
		BlueWeight:   p.MetricConfig.BlueWeight,
		MinSat:       p.MetricConfig.MinSaturation,
		Schemes:      string(schemes),
		Geometry:     string(geom),
		SelectedFlow: p.SelectedFlow.String(),
	}
	switch format {
	case FormatSVG, FormatPDF:
		k.Titles = o.Titles
	case FormatPNG:
		k.Titles = o.Titles
		k.Scale = o.Scale
	case FormatDOT, FormatNodelink:
		k.Detailed = o.Detailed
	}
	return k
}

// =============================================================================
// Results
// =============================================================================

// Result contains the outputs of a pipeline run.
type Result struct {
	// Dataset is the normalised dataset.
	Dataset *sankey.Dataset

	// DatasetHash is the content hash of the raw dataset.
	DatasetHash string

	// Frame is the render pass the artifacts were encoded from.
	Frame *widget.Frame

	// Artifacts contains rendered outputs keyed by format.
	Artifacts map[string][]byte

	// Stats contains timing and size information.
	Stats Stats

	// CacheInfo tracks which stages hit the cache.
	CacheInfo CacheInfo
}

// Stats contains pipeline execution statistics.
type Stats struct {
	widget.Stats
	LayoutTime time.Duration
	RenderTime time.Duration
}

// CacheInfo tracks cache hits.
type CacheInfo struct {
	RenderHit bool // every artifact came from cache
}

// LayoutReport is the column ordering of a dataset, as printed by the
// layout command.
type LayoutReport struct {
	Columns        []layout.Column `json:"columns"`
	InputColumns   []layout.Column `json:"input_columns"`
	Crossings      int             `json:"crossings"`
	InputCrossings int             `json:"input_crossings"`
}
