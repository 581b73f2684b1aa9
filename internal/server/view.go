package server

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/stripesankey/pkg/httputil"
	"github.com/matzehuels/stripesankey/pkg/render/sankey/sink"
)

// viewPage embeds the diagram and forwards clicks and hovers to the
// events endpoint. Handlers are delegated from the container because each
// reply replaces the SVG.
var viewPage = template.Must(template.New("view").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>StripeSankey {{.ID}}</title>
<style>
  body { margin: 0; font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Helvetica, Arial, sans-serif; background: #fafafa; }
  header { padding: 12px 20px; border-bottom: 1px solid #ddd; background: white; display: flex; gap: 16px; align-items: center; }
  header h1 { font-size: 16px; margin: 0; }
  #diagram { padding: 20px; }
</style>
</head>
<body>
<header>
  <h1>StripeSankey</h1>
  <label><input type="checkbox" id="metric"{{if .MetricMode}} checked{{end}}> Metric mode</label>
  <a href="/sessions/{{.ID}}/diagram.svg" download>SVG</a>
  <a href="/sessions/{{.ID}}/diagram.png" download>PNG</a>
  <a href="/sessions/{{.ID}}/diagram.json">JSON</a>
</header>
<div id="diagram">{{.SVG}}</div>
<script>
(function() {
  const root = document.getElementById('diagram');
  const events = {{.Events}};
  const base = {{.Base}};
  let busy = false;
  function swap(text) { root.innerHTML = text; }
  function send(ev) {
    if (busy && ev.type.endsWith('hovered')) return;
    busy = true;
    fetch(events, {method: 'POST', headers: {'Content-Type': 'application/json', 'Accept': 'image/svg+xml'}, body: JSON.stringify(ev)})
      .then(r => r.ok ? r.text() : Promise.reject(r.status))
      .then(swap)
      .catch(err => console.error('event failed', err))
      .finally(() => { busy = false; });
  }
  function point(e) {
    const svg = root.querySelector('svg');
    const g = svg && svg.querySelector('g');
    if (!g) return {x: 0, y: 0};
    const p = new DOMPoint(e.clientX, e.clientY).matrixTransform(g.getScreenCTM().inverse());
    return {x: p.x, y: p.y};
  }
  root.addEventListener('click', e => {
    const flow = e.target.closest('.flow');
    if (flow) {
      send({type: 'flow_clicked', source: flow.dataset.source, target: flow.dataset.target});
    } else if (e.target.closest('.background')) {
      send({type: 'background_clicked'});
    }
  });
  root.addEventListener('mouseover', e => {
    const flow = e.target.closest('.flow');
    const seg = e.target.closest('.segment');
    if (flow) {
      send(Object.assign({type: 'flow_hovered', source: flow.dataset.source, target: flow.dataset.target}, point(e)));
    } else if (seg) {
      send(Object.assign({type: 'segment_hovered', node: seg.dataset.node, level: seg.dataset.level}, point(e)));
    }
  });
  root.addEventListener('mouseout', e => {
    if (e.target.closest('.flow, .segment') && !(e.relatedTarget && e.relatedTarget.closest && e.relatedTarget.closest('.flow, .segment'))) {
      send({type: 'hover_ended'});
    }
  });
  document.getElementById('metric').addEventListener('change', e => {
    fetch(base + '/mode', {method: 'PUT', headers: {'Content-Type': 'application/json'}, body: JSON.stringify({metric_mode: e.target.checked})})
      .then(() => fetch(base + '/diagram.svg?interactive=1&embed=1'))
      .then(r => r.text())
      .then(swap)
      .catch(err => console.error('mode switch failed', err));
  });
})();
</script>
</body>
</html>
`))

type viewData struct {
	ID         string
	MetricMode bool
	SVG        template.HTML
	Events     string
	Base       string
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	ls, err := s.open(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	id := ls.sess.ID
	f := ls.w.Frame()
	svg := sink.RenderSVG(f, svgEventOptions(id, true)...)

	var buf bytes.Buffer
	err = viewPage.Execute(&buf, viewData{
		ID:         id,
		MetricMode: f.MetricMode,
		SVG:        template.HTML(svg), // rendered by sink; every text node is escaped there
		Events:     eventsPath(id, true),
		Base:       "/sessions/" + id,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteBytes(w, "text/html; charset=utf-8", buf.Bytes())
}
