package selection

import "github.com/matzehuels/stripesankey/pkg/sankey"

// Event is a user interaction delivered to a [Machine].
type Event interface {
	event()
}

// FlowClicked selects a flow, or clears the selection if the flow is
// already selected.
type FlowClicked struct {
	Flow *sankey.Flow
}

// BackgroundClicked clears the selection.
type BackgroundClicked struct{}

// FlowHovered shows the tooltip of a flow at the cursor.
type FlowHovered struct {
	Flow *sankey.Flow
	X, Y float64
}

// SegmentHovered shows the tooltip of a node segment at the cursor.
type SegmentHovered struct {
	Node  *sankey.Node
	Level sankey.Level
	X, Y  float64
}

// HoverEnded hides the tooltip.
type HoverEnded struct{}

func (FlowClicked) event()       {}
func (BackgroundClicked) event() {}
func (FlowHovered) event()       {}
func (SegmentHovered) event()    {}
func (HoverEnded) event()        {}

// Transition describes the effect of one event.
type Transition struct {
	// State is the selection after the event.
	State Snapshot

	// Changed is set when the selected flow differs from before.
	Changed bool

	// Commit is set when State must be written back to the host, even if
	// it did not change.
	Commit bool

	// Redraw is set when the diagram must be rebuilt.
	Redraw bool
}

// Machine holds the selection and the ephemeral hover. It is not safe for
// concurrent use; hosts serialise events.
type Machine struct {
	selected Snapshot
	hover    Event // FlowHovered, SegmentHovered or nil
}

// NewMachine returns a machine starting from the given selection.
func NewMachine(initial Snapshot) *Machine {
	return &Machine{selected: initial}
}

// Selected returns the current selection.
func (m *Machine) Selected() Snapshot { return m.selected }

// Hover returns the active hover event, if any.
func (m *Machine) Hover() (Event, bool) {
	return m.hover, m.hover != nil
}

// Reset replaces the selection without producing a transition. Hosts call
// it when shared state changes from outside.
func (m *Machine) Reset(s Snapshot) {
	m.selected = s
	m.hover = nil
}

// Apply feeds one event to the machine.
func (m *Machine) Apply(ev Event) Transition {
	switch e := ev.(type) {
	case FlowClicked:
		if e.Flow == nil {
			return Transition{State: m.selected}
		}
		if m.selected.Matches(e.Flow) {
			m.selected = Snapshot{}
		} else {
			m.selected = FromFlow(e.Flow)
		}
		return Transition{State: m.selected, Changed: true, Commit: true, Redraw: true}

	case BackgroundClicked:
		was := m.selected
		m.selected = Snapshot{}
		changed := !was.IsEmpty()
		return Transition{State: m.selected, Changed: changed, Commit: true, Redraw: changed}

	case FlowHovered, SegmentHovered:
		m.hover = e
		return Transition{State: m.selected}

	case HoverEnded:
		m.hover = nil
		return Transition{State: m.selected}
	}
	return Transition{State: m.selected}
}
