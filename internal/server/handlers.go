package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	sserrors "github.com/matzehuels/stripesankey/pkg/errors"
	"github.com/matzehuels/stripesankey/pkg/httputil"
	sankeyio "github.com/matzehuels/stripesankey/pkg/io"
	"github.com/matzehuels/stripesankey/pkg/pipeline"
	"github.com/matzehuels/stripesankey/pkg/render/sankey/sink"
	"github.com/matzehuels/stripesankey/pkg/sankey"
	"github.com/matzehuels/stripesankey/pkg/sankey/color"
	"github.com/matzehuels/stripesankey/pkg/sankey/selection"
	"github.com/matzehuels/stripesankey/pkg/session"
	"github.com/matzehuels/stripesankey/pkg/widget"
)

// sessionResponse describes a session after a change.
type sessionResponse struct {
	ID      string       `json:"id"`
	Status  string       `json:"status"`
	Message string       `json:"message,omitempty"`
	Stats   widget.Stats `json:"stats"`
}

func newSessionResponse(id string, f *widget.Frame) sessionResponse {
	return sessionResponse{ID: id, Status: f.Status.String(), Message: f.Message, Stats: f.Stats}
}

// readDataset decodes a JSON or YAML dataset body. An empty dataset is
// accepted; the session renders the placeholder.
func readDataset(r *http.Request) (*sankey.RawData, error) {
	format := sankeyio.FormatJSON
	switch httputil.ContentType(r) {
	case "application/yaml", "application/x-yaml", "text/yaml":
		format = sankeyio.FormatYAML
	}
	raw, err := sankeyio.Read(io.LimitReader(r.Body, httputil.MaxBodyBytes), format)
	if err != nil && !errors.Is(err, sankeyio.ErrEmptyDataset) {
		return nil, sserrors.Wrap(sserrors.ErrCodeInvalidFormat, err, "invalid dataset: %v", err)
	}
	return raw, nil
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	raw, err := readDataset(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	props := s.defaults
	props.Data = raw
	if err := applyQuery(r, &props); err != nil {
		httputil.WriteError(w, err)
		return
	}

	sess := session.New(props, s.ttl)
	if err := s.store.Set(r.Context(), sess); err != nil {
		httputil.WriteError(w, sserrors.Wrap(sserrors.ErrCodeStorage, err, "save session"))
		return
	}
	ls := s.attach(sess)
	f := ls.w.Frame()
	s.logger.Info("session created", "session", sess.ID, "nodes", f.Stats.Nodes, "flows", f.Stats.Flows)
	w.Header().Set("Location", "/sessions/"+sess.ID)
	httputil.WriteJSON(w, http.StatusCreated, newSessionResponse(sess.ID, f))
}

// applyQuery reads ?mode=, ?width= and ?height=.
func applyQuery(r *http.Request, p *widget.Props) error {
	q := r.URL.Query()
	if m := q.Get("mode"); m != "" {
		metric, err := widget.ParseMode(m)
		if err != nil {
			return sserrors.New(sserrors.ErrCodeInvalidInput, "%v", err)
		}
		p.MetricMode = metric
	}
	for name, dst := range map[string]*int{"width": &p.Width, "height": &p.Height} {
		if v := q.Get(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return sserrors.New(sserrors.ErrCodeInvalidInput, "%s must be a non-negative integer", name)
			}
			*dst = n
		}
	}
	return nil
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	ls, err := s.open(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ls.w.Props())
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := sserrors.ValidateSessionID(id); err != nil {
		httputil.WriteError(w, err)
		return
	}
	s.drop(id)
	if err := s.store.Delete(r.Context(), id); err != nil {
		httputil.WriteError(w, sserrors.Wrap(sserrors.ErrCodeStorage, err, "delete session"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetData(w http.ResponseWriter, r *http.Request) {
	ls, err := s.open(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	raw, err := readDataset(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	f := ls.w.SetData(raw)
	if err := s.persist(r.Context(), ls); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, newSessionResponse(ls.sess.ID, f))
}

// handleDiagram serves the current frame. SVG and JSON are encoded from
// the live frame, which includes hover state; the other formats go through
// the runner's artifact cache.
func (s *Server) handleDiagram(w http.ResponseWriter, r *http.Request) {
	ls, err := s.open(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	format := chi.URLParam(r, "format")
	if err := pipeline.ValidateFormat(format); err != nil {
		httputil.WriteError(w, sserrors.New(sserrors.ErrCodeInvalidFormat, "%v", err))
		return
	}

	f := ls.w.Frame()
	switch format {
	case pipeline.FormatSVG:
		var opts []sink.SVGOption
		if r.URL.Query().Get("interactive") != "" {
			opts = svgEventOptions(ls.sess.ID, r.URL.Query().Get("embed") != "")
		}
		httputil.WriteBytes(w, pipeline.ContentType(format), sink.RenderSVG(f, opts...))
		return
	case pipeline.FormatJSON:
		data, err := sink.RenderJSON(f, sink.WithJSONPaths())
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		httputil.WriteBytes(w, pipeline.ContentType(format), data)
		return
	}

	props := ls.w.Props()
	res, err := s.runner.Execute(r.Context(), props.Data, pipeline.Options{
		Props:    props,
		Formats:  []string{format},
		Detailed: r.URL.Query().Get("detailed") != "",
		Logger:   s.logger,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteBytes(w, pipeline.ContentType(format), res.Artifacts[format])
}

// svgEventOptions wires an SVG to the events endpoint. Embedded SVGs are
// swapped into a page that handles the events itself, so they carry no
// script.
func svgEventOptions(id string, embed bool) []sink.SVGOption {
	opts := []sink.SVGOption{sink.WithInteraction(eventsPath(id, embed))}
	if embed {
		opts = append(opts, sink.WithoutScript())
	}
	return opts
}

func eventsPath(id string, embed bool) string {
	p := "/sessions/" + id + "/events"
	if embed {
		p += "?embed=1"
	}
	return p
}

// eventResponse is the JSON reply to an event.
type eventResponse struct {
	Commit       bool               `json:"commit"`
	Changed      bool               `json:"changed"`
	Redraw       bool               `json:"redraw"`
	SelectedFlow selection.Snapshot `json:"selected_flow"`
	Stats        widget.Stats       `json:"stats"`
}

// handleEvent dispatches a user event. Browsers asking for image/svg+xml
// get the redrawn diagram; everyone else gets the transition.
func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	ls, err := s.open(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var spec widget.EventSpec
	if err := httputil.DecodeJSON(r, &spec); err != nil {
		httputil.WriteError(w, sserrors.Wrap(sserrors.ErrCodeInvalidEvent, err, "%s", sserrors.UserMessage(err)))
		return
	}
	tr, f, err := ls.w.DispatchSpec(spec)
	if err != nil {
		code := sserrors.ErrCodeInvalidEvent
		if errors.Is(err, selection.ErrUnknownFlow) || errors.Is(err, sankey.ErrUnknownNode) {
			code = sserrors.ErrCodeInvalidSelection
		}
		httputil.WriteError(w, sserrors.Wrap(code, err, "%v", err))
		return
	}
	if tr.Commit {
		if err := s.persist(r.Context(), ls); err != nil {
			httputil.WriteError(w, err)
			return
		}
	}

	if httputil.Accepts(r, "image/svg+xml") {
		opts := svgEventOptions(ls.sess.ID, r.URL.Query().Get("embed") != "")
		httputil.WriteBytes(w, pipeline.ContentType(pipeline.FormatSVG), sink.RenderSVG(f, opts...))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, eventResponse{
		Commit:       tr.Commit,
		Changed:      tr.Changed,
		Redraw:       tr.Redraw,
		SelectedFlow: tr.State,
		Stats:        f.Stats,
	})
}

type modeRequest struct {
	MetricMode *bool `json:"metric_mode" validate:"required"`
}

func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	ls, err := s.open(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req modeRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	f := ls.w.SetMetricMode(*req.MetricMode)
	if err := s.persist(r.Context(), ls); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, newSessionResponse(ls.sess.ID, f))
}

type metricConfigRequest struct {
	RedWeight     *float64 `json:"red_weight" validate:"omitempty,gte=0,lte=10"`
	BlueWeight    *float64 `json:"blue_weight" validate:"omitempty,gte=0,lte=10"`
	MinSaturation *float64 `json:"min_saturation" validate:"omitempty,gte=0,lte=1"`
}

func (s *Server) handleMetricConfig(w http.ResponseWriter, r *http.Request) {
	ls, err := s.open(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req metricConfigRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	ls.w.UpdateMetricConfig(color.MetricConfigUpdate{
		RedWeight:     req.RedWeight,
		BlueWeight:    req.BlueWeight,
		MinSaturation: req.MinSaturation,
	})
	if err := s.persist(r.Context(), ls); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ls.w.Props().MetricConfig)
}

func (s *Server) handleGetSelection(w http.ResponseWriter, r *http.Request) {
	ls, err := s.open(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ls.w.Props().SelectedFlow)
}

type selectionRequest struct {
	// Flow is a "SRC->TGT" reference; empty clears the selection.
	Flow string `json:"flow"`
}

// handleSetSelection replaces the selection from outside the diagram. Like
// an external write to the shared state, it does not notify observers, so
// it is broadcast explicitly.
func (s *Server) handleSetSelection(w http.ResponseWriter, r *http.Request) {
	ls, err := s.open(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req selectionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	var snap selection.Snapshot
	if req.Flow != "" {
		ds := ls.w.Dataset()
		if ds == nil {
			httputil.WriteError(w, sserrors.New(sserrors.ErrCodeInvalidSelection, "session has no data"))
			return
		}
		snap, err = selection.Resolve(ds, req.Flow)
		if err != nil {
			httputil.WriteError(w, sserrors.Wrap(sserrors.ErrCodeInvalidSelection, err, "%v", err))
			return
		}
	}
	ls.w.SetSelection(snap)
	if err := s.persist(r.Context(), ls); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if n, ok := s.store.(session.Notifier); ok {
		if err := n.Publish(r.Context(), ls.sess.ID, session.Update{Origin: s.origin, Selection: snap}); err != nil {
			s.logger.Warn("publish selection failed", "session", ls.sess.ID, "err", err)
		}
	}
	httputil.WriteJSON(w, http.StatusOK, snap)
}
