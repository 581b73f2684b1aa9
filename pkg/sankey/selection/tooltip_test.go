package selection

import (
	"slices"
	"testing"

	"github.com/matzehuels/stripesankey/pkg/sankey"
)

func TestFlowTooltipPlacement(t *testing.T) {
	tests := []struct {
		name       string
		x, y       float64
		wantX      float64
		wantY      float64
		chartWidth float64
	}{
		{"above cursor", 100, 200, 100, 160, 950},
		{"clamped right", 900, 200, 780, 160, 950},
		{"flipped below", 100, 30, 100, 50, 950},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tip := FlowTooltip(flowB, tt.x, tt.y, tt.chartWidth)
			if tip.X != tt.wantX || tip.Y != tt.wantY {
				t.Errorf("placed at (%v, %v), want (%v, %v)", tip.X, tip.Y, tt.wantX, tt.wantY)
			}
			if tip.Width != 160 || tip.Height != 35 {
				t.Errorf("size = %vx%v, want 160x35", tip.Width, tip.Height)
			}
		})
	}

	tip := FlowTooltip(flowB, 0, 100, 950)
	if want := []string{"20 samples", "K2_MC1_medium → K3_MC0_high"}; !slices.Equal(tip.Lines, want) {
		t.Errorf("lines = %q, want %q", tip.Lines, want)
	}
}

func TestSegmentTooltip(t *testing.T) {
	perp, coh := 1234.56789, -87.1
	n := &sankey.Node{ID: "K4_MC2", HighCount: 7, MediumCount: 3, Perplexity: &perp, Coherence: &coh}

	tip := SegmentTooltip(n, sankey.LevelMedium, false, 100, 300, 950)
	if want := []string{"K4_MC2", "Medium (0.33-0.66)", "3 samples"}; !slices.Equal(tip.Lines, want) {
		t.Errorf("lines = %q, want %q", tip.Lines, want)
	}
	if tip.Width != 140 || tip.Height != 46 {
		t.Errorf("size = %vx%v, want 140x46", tip.Width, tip.Height)
	}
	if tip.Y != 300-46-10 {
		t.Errorf("y = %v, want %v", tip.Y, 300-46-10)
	}

	tip = SegmentTooltip(n, sankey.LevelHigh, true, 100, 300, 950)
	if len(tip.Lines) != 5 || tip.Lines[3] != "Perplexity: 1234.568" || tip.Lines[4] != "Coherence: -87.100" {
		t.Errorf("metric lines = %q", tip.Lines)
	}
	if tip.Height != 70 {
		t.Errorf("height = %v, want 70", tip.Height)
	}
}

func TestForHover(t *testing.T) {
	if _, ok := ForHover(HoverEnded{}, false, 900); ok {
		t.Error("HoverEnded should not show a tooltip")
	}
	if tip, ok := ForHover(FlowHovered{Flow: flowA, X: 5, Y: 100}, false, 900); !ok || tip.Lines[0] != "12 samples" {
		t.Errorf("ForHover(flow) = %+v, %v", tip, ok)
	}
}
