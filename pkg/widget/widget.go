package widget

import (
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/stripesankey/pkg/observability"
	"github.com/matzehuels/stripesankey/pkg/sankey"
	"github.com/matzehuels/stripesankey/pkg/sankey/color"
	"github.com/matzehuels/stripesankey/pkg/sankey/selection"
)

// Observer receives every committed selection, including commits that
// leave the selection unchanged.
type Observer func(selection.Snapshot)

// Widget hosts one diagram. It owns the props, serialises render passes
// and reports selection commits to its observers.
//
// All methods are safe for concurrent use. Observers run after the pass
// that produced the commit, outside the widget lock.
type Widget struct {
	mu        sync.Mutex
	props     Props
	dataset   *sankey.Dataset
	machine   *selection.Machine
	frame     *Frame
	observers map[int]Observer
	nextID    int
	logger    *log.Logger
}

// Option configures a [Widget].
type Option func(*Widget)

// WithLogger sets the logger used for render-pass diagnostics.
func WithLogger(l *log.Logger) Option {
	return func(w *Widget) {
		if l != nil {
			w.logger = l
		}
	}
}

// New creates a widget from initial props.
func New(p Props, opts ...Option) *Widget {
	w := &Widget{
		props:     p,
		machine:   selection.NewMachine(p.SelectedFlow),
		observers: make(map[int]Observer),
		logger:    log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.dataset = normalize(p.Data)
	return w
}

func normalize(raw *sankey.RawData) *sankey.Dataset {
	if raw.IsEmpty() {
		return nil
	}
	return sankey.Normalize(raw)
}

// Props returns a copy of the current props.
func (w *Widget) Props() Props {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.props
}

// Dataset returns the normalised dataset, or nil when there is no data.
func (w *Widget) Dataset() *sankey.Dataset {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dataset
}

// Frame returns the current frame, rendering it if props changed since the
// last pass.
func (w *Widget) Frame() *Frame {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.render()
}

// render runs a pass if needed. The caller holds w.mu.
func (w *Widget) render() *Frame {
	if w.frame != nil {
		return w.frame
	}
	start := time.Now()
	hover, _ := w.machine.Hover()
	w.frame = BuildDataset(w.props, w.dataset, hover)
	observability.Render().OnRender(w.frame.Stats.Nodes, w.frame.Stats.Drawn, time.Since(start))
	w.logger.Debug("render pass",
		"status", w.frame.Status,
		"nodes", w.frame.Stats.Nodes,
		"flows", w.frame.Stats.Drawn,
		"crossings", w.frame.Stats.Crossings,
		"duration", time.Since(start))
	return w.frame
}

func (w *Widget) invalidate() { w.frame = nil }

// SetData replaces the dataset. The selection is kept.
func (w *Widget) SetData(raw *sankey.RawData) *Frame {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.props.Data = raw
	w.dataset = normalize(raw)
	w.invalidate()
	return w.render()
}

// SetMetricMode switches between default and metric colouring.
func (w *Widget) SetMetricMode(on bool) *Frame {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.props.MetricMode != on {
		w.props.MetricMode = on
		w.invalidate()
	}
	return w.render()
}

// SetMetricConfig replaces the metric weights.
func (w *Widget) SetMetricConfig(cfg color.MetricConfig) *Frame {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.props.MetricConfig = cfg
	w.invalidate()
	return w.render()
}

// UpdateMetricConfig changes only the metric weights that are set.
func (w *Widget) UpdateMetricConfig(u color.MetricConfigUpdate) *Frame {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.props.MetricConfig = w.props.MetricConfig.Apply(u)
	w.invalidate()
	return w.render()
}

// SetSelection replaces the selection from outside, as when another
// observer of the shared state writes it. Observers are not notified.
func (w *Widget) SetSelection(s selection.Snapshot) *Frame {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.props.SelectedFlow = s
	w.machine.Reset(s)
	w.invalidate()
	return w.render()
}

// Dispatch applies a user event. Commits are delivered to observers after
// the new frame is built.
func (w *Widget) Dispatch(ev selection.Event) (selection.Transition, *Frame) {
	w.mu.Lock()
	tr := w.machine.Apply(ev)
	switch ev.(type) {
	case selection.FlowHovered, selection.SegmentHovered, selection.HoverEnded:
		w.invalidate()
	}
	if tr.Commit {
		w.props.SelectedFlow = tr.State
	}
	if tr.Redraw {
		w.invalidate()
	}
	frame := w.render()
	var observers []Observer
	if tr.Commit {
		observers = make([]Observer, 0, len(w.observers))
		for i := 0; i < w.nextID; i++ {
			if o, ok := w.observers[i]; ok {
				observers = append(observers, o)
			}
		}
	}
	w.mu.Unlock()

	if tr.Commit {
		observability.Render().OnSelection(tr.State.String(), tr.Changed)
		w.logger.Debug("selection committed", "flow", tr.State.String(), "changed", tr.Changed)
	}
	for _, o := range observers {
		o(tr.State)
	}
	return tr, frame
}

// Subscribe registers an observer of selection commits. The returned
// function removes it.
func (w *Widget) Subscribe(o Observer) (unsubscribe func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	id := w.nextID
	w.nextID++
	w.observers[id] = o
	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		delete(w.observers, id)
	}
}
