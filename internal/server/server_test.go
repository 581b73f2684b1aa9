package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	sankeyio "github.com/matzehuels/stripesankey/pkg/io"
	"github.com/matzehuels/stripesankey/pkg/sankey/selection"
	"github.com/matzehuels/stripesankey/pkg/session"
	"github.com/matzehuels/stripesankey/pkg/widget"
)

func newTestServer(t *testing.T, store session.Store) (*Server, http.Handler) {
	t.Helper()
	s := New(Options{Store: store, Defaults: widget.DefaultProps()})
	t.Cleanup(func() { s.cancel() })
	return s, s.Routes()
}

func fixture(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile("testdata/topics.json")
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	return data
}

func do(t *testing.T, h http.Handler, method, path string, body []byte, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func create(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/sessions", fixture(t))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body)
	}
	return decode[sessionResponse](t, rec).ID
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error %q: %v", rec.Body.String(), err)
	}
	return body.Error.Code
}

func TestCreateAndGet(t *testing.T) {
	_, h := newTestServer(t, nil)

	rec := do(t, h, http.MethodPost, "/sessions?mode=metric&width=900", fixture(t))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	resp := decode[sessionResponse](t, rec)
	if resp.Status != "ready" {
		t.Errorf("status = %q, want ready", resp.Status)
	}
	if resp.Stats.Nodes != 4 || resp.Stats.Flows != 3 {
		t.Errorf("stats = %+v, want 4 nodes and 3 flows", resp.Stats)
	}
	if loc := rec.Header().Get("Location"); loc != "/sessions/"+resp.ID {
		t.Errorf("Location = %q", loc)
	}

	rec = do(t, h, http.MethodGet, "/sessions/"+resp.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	props := decode[widget.Props](t, rec)
	if !props.MetricMode || props.Width != 900 || props.Height != widget.DefaultHeight {
		t.Errorf("props = mode %v %dx%d", props.MetricMode, props.Width, props.Height)
	}
	if len(props.Data.Nodes) != 4 {
		t.Errorf("nodes = %d, want 4", len(props.Data.Nodes))
	}
}

func TestCreateYAML(t *testing.T) {
	_, h := newTestServer(t, nil)

	raw, err := sankeyio.Read(bytes.NewReader(fixture(t)), sankeyio.FormatJSON)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := sankeyio.Write(raw, &buf, sankeyio.FormatYAML); err != nil {
		t.Fatal(err)
	}
	rec := do(t, h, http.MethodPost, "/sessions", buf.Bytes(), "Content-Type", "application/yaml")
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if got := decode[sessionResponse](t, rec).Stats.Nodes; got != 4 {
		t.Errorf("nodes = %d, want 4", got)
	}
}

func TestCreateErrors(t *testing.T) {
	_, h := newTestServer(t, nil)

	tests := []struct {
		name   string
		path   string
		body   string
		status int
		code   string
	}{
		{"malformed", "/sessions", "{not json", http.StatusBadRequest, "INVALID_FORMAT"},
		{"bad mode", "/sessions?mode=sparkly", `{"nodes":{}}`, http.StatusBadRequest, "INVALID_INPUT"},
		{"bad width", "/sessions?width=-4", `{"nodes":{}}`, http.StatusBadRequest, "INVALID_INPUT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, tt.path, []byte(tt.body))
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.status, rec.Body)
			}
			if got := errorCode(t, rec); got != tt.code {
				t.Errorf("code = %q, want %q", got, tt.code)
			}
		})
	}
}

func TestCreateEmptyDatasetRendersPlaceholder(t *testing.T) {
	_, h := newTestServer(t, nil)

	rec := do(t, h, http.MethodPost, "/sessions", []byte(`{"nodes":{},"flows":[]}`))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	resp := decode[sessionResponse](t, rec)
	if resp.Status != "no_data" || resp.Message != widget.NoDataMessage {
		t.Errorf("response = %+v", resp)
	}

	rec = do(t, h, http.MethodGet, "/sessions/"+resp.ID+"/diagram.svg", nil)
	if !strings.Contains(rec.Body.String(), widget.NoDataMessage) {
		t.Errorf("placeholder SVG missing message:\n%s", rec.Body)
	}
}

func TestSessionNotFound(t *testing.T) {
	_, h := newTestServer(t, nil)

	rec := do(t, h, http.MethodGet, "/sessions/2f1b8a4e-5c1d-4c1e-9a7b-3d2f6e8c9b10", nil)
	if rec.Code != http.StatusNotFound || errorCode(t, rec) != "SESSION_NOT_FOUND" {
		t.Errorf("status = %d, body %s", rec.Code, rec.Body)
	}
	rec = do(t, h, http.MethodGet, "/sessions/not-a-uuid", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want 400", rec.Code)
	}
}

func TestFlowClickTogglesSelection(t *testing.T) {
	_, h := newTestServer(t, nil)
	id := create(t, h)
	click := []byte(`{"type":"flow_clicked","source":"K2_MC0_high","target":"K3_MC1_high"}`)

	rec := do(t, h, http.MethodPost, "/sessions/"+id+"/events", click)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	ev := decode[eventResponse](t, rec)
	if !ev.Commit || !ev.Changed || !ev.Redraw {
		t.Errorf("transition = %+v, want commit, changed and redraw", ev)
	}
	if ev.SelectedFlow.Source != "K2_MC0_high" || ev.SelectedFlow.SampleCount != 12 {
		t.Errorf("selected = %+v", ev.SelectedFlow)
	}
	if ev.Stats.TracedSamples != 2 {
		t.Errorf("traced samples = %d, want 2", ev.Stats.TracedSamples)
	}

	sel := decode[selection.Snapshot](t, do(t, h, http.MethodGet, "/sessions/"+id+"/selection", nil))
	if sel.Target != "K3_MC1_high" {
		t.Errorf("stored selection = %+v", sel)
	}

	ev = decode[eventResponse](t, do(t, h, http.MethodPost, "/sessions/"+id+"/events", click))
	if !ev.Commit || !ev.Changed || !ev.SelectedFlow.IsEmpty() {
		t.Errorf("second click = %+v, want cleared selection", ev)
	}
	rec = do(t, h, http.MethodGet, "/sessions/"+id+"/selection", nil)
	if got := strings.TrimSpace(rec.Body.String()); got != "{}" {
		t.Errorf("cleared selection = %s, want {}", got)
	}
}

func TestBackgroundClickCommitsUnchanged(t *testing.T) {
	_, h := newTestServer(t, nil)
	id := create(t, h)

	ev := decode[eventResponse](t, do(t, h, http.MethodPost, "/sessions/"+id+"/events", []byte(`{"type":"background_clicked"}`)))
	if !ev.Commit || ev.Changed {
		t.Errorf("transition = %+v, want commit without change", ev)
	}
}

func TestHoverEventReturnsTooltipSVG(t *testing.T) {
	_, h := newTestServer(t, nil)
	id := create(t, h)

	body := []byte(`{"type":"segment_hovered","node":"K2_MC0","level":"high","x":40,"y":50}`)
	rec := do(t, h, http.MethodPost, "/sessions/"+id+"/events?embed=1", body, "Accept", "image/svg+xml")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/svg+xml" {
		t.Errorf("Content-Type = %q", ct)
	}
	svg := rec.Body.String()
	if !strings.Contains(svg, `data-events="/sessions/`+id+`/events?embed=1"`) {
		t.Error("embedded SVG lost its events endpoint")
	}
	if strings.Contains(svg, "<script") {
		t.Error("embedded SVG carries a script")
	}
	if !strings.Contains(svg, `class="tooltip"`) || !strings.Contains(svg, ">8 samples<") {
		t.Error("tooltip missing hovered segment")
	}
}

func TestEventErrors(t *testing.T) {
	_, h := newTestServer(t, nil)
	id := create(t, h)

	tests := []struct {
		name string
		body string
		code string
	}{
		{"unknown type", `{"type":"double_clicked"}`, "INVALID_EVENT"},
		{"missing target", `{"type":"flow_clicked","source":"K2_MC0_high"}`, "INVALID_EVENT"},
		{"unknown flow", `{"type":"flow_clicked","source":"K2_MC0_high","target":"K3_MC0_high"}`, "INVALID_SELECTION"},
		{"unknown node", `{"type":"segment_hovered","node":"K9_MC9"}`, "INVALID_SELECTION"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/sessions/"+id+"/events", []byte(tt.body))
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
			}
			if got := errorCode(t, rec); got != tt.code {
				t.Errorf("code = %q, want %q", got, tt.code)
			}
		})
	}
}

func TestSetSelectionByReference(t *testing.T) {
	_, h := newTestServer(t, nil)
	id := create(t, h)

	rec := do(t, h, http.MethodPut, "/sessions/"+id+"/selection", []byte(`{"flow":"K2_MC1_high->K3_MC0_high"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if got := decode[selection.Snapshot](t, rec); got.SampleCount != 10 {
		t.Errorf("selection = %+v", got)
	}

	rec = do(t, h, http.MethodPut, "/sessions/"+id+"/selection", []byte(`{"flow":"K2_MC1_high->nowhere"}`))
	if rec.Code != http.StatusBadRequest || errorCode(t, rec) != "INVALID_SELECTION" {
		t.Errorf("unknown flow: status = %d, body %s", rec.Code, rec.Body)
	}

	rec = do(t, h, http.MethodPut, "/sessions/"+id+"/selection", []byte(`{}`))
	if got := strings.TrimSpace(rec.Body.String()); got != "{}" {
		t.Errorf("clear = %s, want {}", got)
	}
}

func TestModeAndMetricConfig(t *testing.T) {
	_, h := newTestServer(t, nil)
	id := create(t, h)

	rec := do(t, h, http.MethodPut, "/sessions/"+id+"/mode", []byte(`{}`))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing metric_mode: status = %d", rec.Code)
	}
	rec = do(t, h, http.MethodPut, "/sessions/"+id+"/mode", []byte(`{"metric_mode":true}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("mode status = %d, body %s", rec.Code, rec.Body)
	}

	rec = do(t, h, http.MethodPut, "/sessions/"+id+"/metric-config", []byte(`{"red_weight":0.2}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("metric-config status = %d, body %s", rec.Code, rec.Body)
	}
	rec = do(t, h, http.MethodPut, "/sessions/"+id+"/metric-config", []byte(`{"min_saturation":4}`))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("out of range saturation: status = %d", rec.Code)
	}

	props := decode[widget.Props](t, do(t, h, http.MethodGet, "/sessions/"+id, nil))
	if !props.MetricMode {
		t.Error("metric mode not persisted")
	}
	if props.MetricConfig.RedWeight != 0.2 {
		t.Errorf("red weight = %v, want 0.2", props.MetricConfig.RedWeight)
	}
	if props.MetricConfig.BlueWeight != widget.DefaultProps().MetricConfig.BlueWeight {
		t.Errorf("blue weight changed to %v", props.MetricConfig.BlueWeight)
	}
}

func TestSetDataKeepsSession(t *testing.T) {
	_, h := newTestServer(t, nil)
	id := create(t, h)

	rec := do(t, h, http.MethodPut, "/sessions/"+id+"/data", []byte(`{"nodes":{"K2_MC0":{"high_count":1}}}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if got := decode[sessionResponse](t, rec).Stats.Nodes; got != 1 {
		t.Errorf("nodes = %d, want 1", got)
	}
}

func TestDiagramFormats(t *testing.T) {
	_, h := newTestServer(t, nil)
	id := create(t, h)

	tests := []struct {
		format string
		ctype  string
		want   string
	}{
		{"svg", "image/svg+xml", "<svg"},
		{"json", "application/json", `"flows"`},
		{"dot", "text/vnd.graphviz", "digraph"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, "/sessions/"+id+"/diagram."+tt.format, nil)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
			}
			if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, tt.ctype) {
				t.Errorf("Content-Type = %q, want %q", ct, tt.ctype)
			}
			if !strings.Contains(rec.Body.String(), tt.want) {
				t.Errorf("body missing %q", tt.want)
			}
		})
	}

	rec := do(t, h, http.MethodGet, "/sessions/"+id+"/diagram.gif", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("gif status = %d, want 400", rec.Code)
	}

	rec = do(t, h, http.MethodGet, "/sessions/"+id+"/diagram.svg?interactive=1", nil)
	if !strings.Contains(rec.Body.String(), "<script") {
		t.Error("interactive SVG without script")
	}
}

func TestViewPage(t *testing.T) {
	_, h := newTestServer(t, nil)
	id := create(t, h)

	rec := do(t, h, http.MethodGet, "/sessions/"+id+"/view", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	page := rec.Body.String()
	for _, want := range []string{"<svg", `data-events="/sessions/` + id + `/events?embed=1"`, "flow_clicked"} {
		if !strings.Contains(page, want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestDelete(t *testing.T) {
	_, h := newTestServer(t, nil)
	id := create(t, h)

	if rec := do(t, h, http.MethodDelete, "/sessions/"+id, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/sessions/"+id, nil); rec.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	_, h := newTestServer(t, nil)
	rec := do(t, h, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("healthz = %d %s", rec.Code, rec.Body)
	}
}

// Two hosts sharing a store see each other's committed selections.
func TestSelectionFollowsAcrossHosts(t *testing.T) {
	store := session.NewMemoryStore()
	_, a := newTestServer(t, store)
	_, b := newTestServer(t, store)

	id := create(t, a)
	if rec := do(t, b, http.MethodGet, "/sessions/"+id, nil); rec.Code != http.StatusOK {
		t.Fatalf("host b get = %d", rec.Code)
	}

	click := []byte(`{"type":"flow_clicked","source":"K2_MC1_high","target":"K3_MC0_high"}`)
	if rec := do(t, a, http.MethodPost, "/sessions/"+id+"/events", click); rec.Code != http.StatusOK {
		t.Fatalf("click on a = %d", rec.Code)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		sel := decode[selection.Snapshot](t, do(t, b, http.MethodGet, "/sessions/"+id+"/selection", nil))
		if sel.Source == "K2_MC1_high" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("host b selection = %+v, want K2_MC1_high", sel)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
