// Package selection implements the click and hover state of the diagram.
//
// A [Machine] is either unselected or holds one selected flow as a
// [Snapshot]. Clicking a flow selects it; clicking it again or clicking the
// background clears the selection; clicking another flow switches to it
// directly. Every click produces a [Transition] that the host commits back
// to its shared state.
//
// Hover events are local to the machine. They never touch the selection and
// at most one tooltip is active at a time.
package selection
