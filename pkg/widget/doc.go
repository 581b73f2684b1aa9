// Package widget hosts an interactive StripeSankey diagram.
//
// A [Widget] owns [Props], the host-visible state of one diagram: the raw
// dataset, canvas size, display mode, metric weights, colour schemes and
// the selected flow. Each change produces a new [Frame] by a full render
// pass through the sankey packages:
//
//	Props -> sankey.Normalize -> layout.Barycentric -> geometry.Build
//	      -> color.Painter -> trace.Trace -> Frame
//
// A Frame is renderer-neutral. The SVG, JSON, PNG and PDF sinks in
// pkg/render/sankey/sink turn it into an artifact.
//
// # Events
//
// User interactions reach the widget as [selection.Event] values through
// [Widget.Dispatch], or as JSON through [EventSpec] and
// [Widget.DispatchSpec]. Commits are written back into Props and delivered
// to observers registered with [Widget.Subscribe]:
//
//	w := widget.New(props)
//	stop := w.Subscribe(func(s selection.Snapshot) {
//	    store.SetSelection(ctx, id, s)
//	})
//	defer stop()
//	w.Dispatch(selection.FlowClicked{Flow: f})
//
// Hover events change only the tooltip of the next frame and are never
// committed.
package widget
