package geometry

import "github.com/matzehuels/stripesankey/pkg/sankey"

// Default sizing constants, in pixels.
const (
	DefaultMinNodeHeight = 20.0
	DefaultMaxNodeHeight = 120.0
	DefaultMinFlowWidth  = 2.0
	DefaultMaxFlowWidth  = 25.0
	DefaultNodeWidth     = 20.0
	DefaultFlowInset     = 15.0
)

// Config holds the sizing constants of the diagram. Zero fields fall back
// to the defaults, so the zero value is usable.
type Config struct {
	MinNodeHeight float64 `json:"min_node_height,omitempty" yaml:"min_node_height,omitempty" toml:"min_node_height" validate:"gte=0"`
	MaxNodeHeight float64 `json:"max_node_height,omitempty" yaml:"max_node_height,omitempty" toml:"max_node_height" validate:"gte=0"`
	MinFlowWidth  float64 `json:"min_flow_width,omitempty" yaml:"min_flow_width,omitempty" toml:"min_flow_width" validate:"gte=0"`
	MaxFlowWidth  float64 `json:"max_flow_width,omitempty" yaml:"max_flow_width,omitempty" toml:"max_flow_width" validate:"gte=0"`

	// Significance is the minimum sample count of a drawn flow.
	Significance int `json:"significance,omitempty" yaml:"significance,omitempty" toml:"significance" validate:"gte=0"`

	// NodeWidth is the width of a node bar, centred on its x.
	NodeWidth float64 `json:"node_width,omitempty" yaml:"node_width,omitempty" toml:"node_width" validate:"gte=0"`

	// FlowInset moves flow endpoints away from node centres so curves start
	// just outside the bars.
	FlowInset float64 `json:"flow_inset,omitempty" yaml:"flow_inset,omitempty" toml:"flow_inset" validate:"gte=0"`
}

// DefaultConfig returns the standard sizing.
func DefaultConfig() Config {
	return Config{
		MinNodeHeight: DefaultMinNodeHeight,
		MaxNodeHeight: DefaultMaxNodeHeight,
		MinFlowWidth:  DefaultMinFlowWidth,
		MaxFlowWidth:  DefaultMaxFlowWidth,
		Significance:  sankey.SignificanceThreshold,
		NodeWidth:     DefaultNodeWidth,
		FlowInset:     DefaultFlowInset,
	}
}

// WithDefaults returns c with every zero field replaced by its default.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.MinNodeHeight == 0 {
		c.MinNodeHeight = d.MinNodeHeight
	}
	if c.MaxNodeHeight == 0 {
		c.MaxNodeHeight = d.MaxNodeHeight
	}
	if c.MinFlowWidth == 0 {
		c.MinFlowWidth = d.MinFlowWidth
	}
	if c.MaxFlowWidth == 0 {
		c.MaxFlowWidth = d.MaxFlowWidth
	}
	if c.Significance == 0 {
		c.Significance = d.Significance
	}
	if c.NodeWidth == 0 {
		c.NodeWidth = d.NodeWidth
	}
	if c.FlowInset == 0 {
		c.FlowInset = d.FlowInset
	}
	return c
}
