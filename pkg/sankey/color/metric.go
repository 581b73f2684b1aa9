package color

import (
	"math"

	"github.com/matzehuels/stripesankey/pkg/sankey"
)

// MetricConfig weights the metric channels.
type MetricConfig struct {
	RedWeight  float64 `json:"red_weight" yaml:"red_weight" toml:"red_weight" validate:"gte=0,lte=10"`
	BlueWeight float64 `json:"blue_weight" yaml:"blue_weight" toml:"blue_weight" validate:"gte=0,lte=10"`

	// MinSaturation is carried for hosts that expose it. The mapper uses
	// the fixed [MinBrightness] floor instead.
	MinSaturation float64 `json:"min_saturation" yaml:"min_saturation" toml:"min_saturation" validate:"gte=0,lte=1"`
}

// DefaultMetricConfig returns weights 0.8/0.8 and saturation 0.3.
func DefaultMetricConfig() MetricConfig {
	return MetricConfig{RedWeight: 0.8, BlueWeight: 0.8, MinSaturation: 0.3}
}

// MetricConfigUpdate changes only the fields that are set.
type MetricConfigUpdate struct {
	RedWeight     *float64 `json:"red_weight,omitempty"`
	BlueWeight    *float64 `json:"blue_weight,omitempty"`
	MinSaturation *float64 `json:"min_saturation,omitempty"`
}

// Apply returns c with u's set fields applied.
func (c MetricConfig) Apply(u MetricConfigUpdate) MetricConfig {
	if u.RedWeight != nil {
		c.RedWeight = *u.RedWeight
	}
	if u.BlueWeight != nil {
		c.BlueWeight = *u.BlueWeight
	}
	if u.MinSaturation != nil {
		c.MinSaturation = *u.MinSaturation
	}
	return c
}

// Extent is the observed range of a metric.
type Extent struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

func (e *Extent) include(v float64) {
	e.Min = math.Min(e.Min, v)
	e.Max = math.Max(e.Max, v)
}

// normalize maps v linearly from the extent onto [0,1]. A degenerate
// extent maps everything to 0.5.
func (e Extent) normalize(v float64) float64 {
	span := e.Max - e.Min
	if span == 0 || math.IsNaN(span) {
		return 0.5
	}
	return (v - e.Min) / span
}

// Scales are the linear metric scales of one dataset.
type Scales struct {
	Perplexity Extent `json:"perplexity"`
	Coherence  Extent `json:"coherence"`
}

// NewScales computes the extents of both metrics across nodes. It returns
// nil unless at least one node carries each metric.
func NewScales(nodes []sankey.Node) *Scales {
	var s Scales
	var havePerp, haveCoh bool
	for i := range nodes {
		if p := nodes[i].Perplexity; p != nil {
			if !havePerp {
				s.Perplexity = Extent{Min: *p, Max: *p}
				havePerp = true
			}
			s.Perplexity.include(*p)
		}
		if c := nodes[i].Coherence; c != nil {
			if !haveCoh {
				s.Coherence = Extent{Min: *c, Max: *c}
				haveCoh = true
			}
			s.Coherence.include(*c)
		}
	}
	if !havePerp || !haveCoh {
		return nil
	}
	return &s
}

// PerplexityValue maps perplexity onto [1,0]: lower is better.
func (s *Scales) PerplexityValue(p float64) float64 {
	return 1 - s.Perplexity.normalize(p)
}

// CoherenceValue maps coherence onto [0,1]: higher is better.
func (s *Scales) CoherenceValue(c float64) float64 {
	return s.Coherence.normalize(c)
}

// Color returns the metric colour of a node as "rgb(r, 0, b)". A nil
// receiver yields [Fallback]; a node missing a metric yields
// [MissingMetric].
func (s *Scales) Color(n *sankey.Node, cfg MetricConfig) string {
	if s == nil {
		return Fallback
	}
	if n.Perplexity == nil || n.Coherence == nil {
		return MissingMetric
	}
	red := math.Max(MinBrightness, s.PerplexityValue(*n.Perplexity)*cfg.RedWeight)
	blue := math.Max(MinBrightness, s.CoherenceValue(*n.Coherence)*cfg.BlueWeight)
	return RGB(red, 0, blue)
}
