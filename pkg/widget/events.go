package widget

import (
	"errors"
	"fmt"

	"github.com/matzehuels/stripesankey/pkg/sankey"
	"github.com/matzehuels/stripesankey/pkg/sankey/selection"
)

// Event type names accepted in an [EventSpec].
const (
	EventFlowClicked       = "flow_clicked"
	EventBackgroundClicked = "background_clicked"
	EventFlowHovered       = "flow_hovered"
	EventSegmentHovered    = "segment_hovered"
	EventHoverEnded        = "hover_ended"
)

// ErrUnknownEvent is returned for an unrecognised event type.
var ErrUnknownEvent = errors.New("unknown event type")

// EventSpec is the wire form of a user event. Flows are named by their
// source and target segments, segments by their node ID and level.
type EventSpec struct {
	Type   string  `json:"type" validate:"required,oneof=flow_clicked background_clicked flow_hovered segment_hovered hover_ended"`
	Source string  `json:"source,omitempty" validate:"required_if=Type flow_clicked,required_if=Type flow_hovered"`
	Target string  `json:"target,omitempty" validate:"required_if=Type flow_clicked,required_if=Type flow_hovered"`
	Node   string  `json:"node,omitempty" validate:"required_if=Type segment_hovered"`
	Level  string  `json:"level,omitempty" validate:"omitempty,oneof=high medium"`
	X      float64 `json:"x,omitempty"`
	Y      float64 `json:"y,omitempty"`
}

// Resolve converts e into a [selection.Event] against a rendered frame.
// Flow events only name drawn flows: a flow below the significance
// threshold or between non-adjacent columns is reported as unknown.
func (e EventSpec) Resolve(f *Frame) (selection.Event, error) {
	switch e.Type {
	case EventBackgroundClicked:
		return selection.BackgroundClicked{}, nil
	case EventHoverEnded:
		return selection.HoverEnded{}, nil
	case EventFlowClicked, EventFlowHovered:
		fl, err := e.flow(f)
		if err != nil {
			return nil, err
		}
		if e.Type == EventFlowClicked {
			return selection.FlowClicked{Flow: fl}, nil
		}
		return selection.FlowHovered{Flow: fl, X: e.X, Y: e.Y}, nil
	case EventSegmentHovered:
		if f == nil || f.Dataset == nil {
			return nil, fmt.Errorf("%w: %s", sankey.ErrUnknownNode, e.Node)
		}
		n, ok := f.Dataset.Node(e.Node)
		if !ok {
			return nil, fmt.Errorf("%w: %s", sankey.ErrUnknownNode, e.Node)
		}
		level := sankey.Level(e.Level)
		if level != sankey.LevelMedium {
			level = sankey.LevelHigh
		}
		return selection.SegmentHovered{Node: n, Level: level, X: e.X, Y: e.Y}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, e.Type)
}

func (e EventSpec) flow(f *Frame) (*sankey.Flow, error) {
	if f != nil && f.Diagram != nil {
		for _, p := range f.Diagram.Flows {
			if p.Flow.Source == e.Source && p.Flow.Target == e.Target {
				return p.Flow, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %s -> %s", selection.ErrUnknownFlow, e.Source, e.Target)
}

// DispatchSpec resolves spec against the widget's current frame and
// dispatches it.
func (w *Widget) DispatchSpec(spec EventSpec) (selection.Transition, *Frame, error) {
	ev, err := spec.Resolve(w.Frame())
	if err != nil {
		return selection.Transition{}, nil, err
	}
	tr, f := w.Dispatch(ev)
	return tr, f, nil
}
