package widget

import (
	"fmt"
	"strings"

	"github.com/matzehuels/stripesankey/pkg/sankey"
	"github.com/matzehuels/stripesankey/pkg/sankey/color"
	"github.com/matzehuels/stripesankey/pkg/sankey/geometry"
	"github.com/matzehuels/stripesankey/pkg/sankey/selection"
)

// Canvas defaults, in pixels.
const (
	DefaultWidth  = 1200
	DefaultHeight = 800
)

// Display modes accepted by [ParseMode].
const (
	ModeDefault = "default"
	ModeMetric  = "metric"
)

// Props is the host-owned state of one diagram. A render pass is a pure
// function of Props.
type Props struct {
	Data         *sankey.RawData    `json:"sankey_data"`
	Width        int                `json:"width" validate:"gte=0"`
	Height       int                `json:"height" validate:"gte=0"`
	MetricMode   bool               `json:"metric_mode"`
	MetricConfig color.MetricConfig `json:"metric_config"`
	ColorSchemes color.Schemes      `json:"color_schemes"`
	SelectedFlow selection.Snapshot `json:"selected_flow"`
	Geometry     geometry.Config    `json:"geometry"`
}

// DefaultProps returns an empty 1200x800 diagram in default mode.
func DefaultProps() Props {
	return Props{
		Width:        DefaultWidth,
		Height:       DefaultHeight,
		MetricConfig: color.DefaultMetricConfig(),
		ColorSchemes: color.DefaultSchemes(),
		Geometry:     geometry.DefaultConfig(),
	}
}

// Mode returns ModeMetric or ModeDefault.
func (p Props) Mode() string {
	if p.MetricMode {
		return ModeMetric
	}
	return ModeDefault
}

// ParseMode reports whether a mode name selects metric mode.
func ParseMode(mode string) (metric bool, err error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case ModeMetric:
		return true, nil
	case ModeDefault, "":
		return false, nil
	}
	return false, fmt.Errorf("unknown mode %q (want %s or %s)", mode, ModeDefault, ModeMetric)
}

// Margin is the space around the plotting area.
type Margin struct {
	Top, Right, Bottom, Left float64
}

// DefaultMargin leaves room for column labels on top and tooltips on the
// right.
var DefaultMargin = Margin{Top: 60, Right: 150, Bottom: 60, Left: 100}
