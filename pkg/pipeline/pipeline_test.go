package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/matzehuels/stripesankey/pkg/cache"
	sserrors "github.com/matzehuels/stripesankey/pkg/errors"
	sankeyio "github.com/matzehuels/stripesankey/pkg/io"
	"github.com/matzehuels/stripesankey/pkg/observability"
	"github.com/matzehuels/stripesankey/pkg/sankey"
	"github.com/matzehuels/stripesankey/pkg/widget"
)

// memCache is a map-backed cache that counts lookups.
type memCache struct {
	mu         sync.Mutex
	data       map[string][]byte
	hits, sets int
}

func newMemCache() *memCache { return &memCache{data: make(map[string][]byte)} }

func (c *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.data[key]
	if ok {
		c.hits++
	}
	return d, ok, nil
}

func (c *memCache) Set(_ context.Context, key string, data []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = data
	c.sets++
	return nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *memCache) Close() error { return nil }

var _ cache.Cache = (*memCache)(nil)

func load(t *testing.T, r *Runner) *sankey.RawData {
	t.Helper()
	raw, err := r.Load(context.Background(), "testdata/topics.json")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	return raw
}

func TestValidateFormat(t *testing.T) {
	tests := []struct {
		format  string
		wantErr bool
	}{
		{"svg", false},
		{"json", false},
		{"png", false},
		{"pdf", false},
		{"dot", false},
		{"nodelink", false},
		{"invalid", true},
		{"SVG", true}, // case-sensitive
		{"", true},
	}

	for _, tt := range tests {
		err := ValidateFormat(tt.format)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateFormat(%q) error = %v, wantErr %v", tt.format, err, tt.wantErr)
		}
	}
}

func TestParseFormats(t *testing.T) {
	got := ParseFormats(" SVG, json,,dot ")
	want := []string{"svg", "json", "dot"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("ParseFormats() = %v, want %v", got, want)
	}
}

func TestOptionsValidateDefaults(t *testing.T) {
	var o Options
	if err := o.Validate(); err != nil {
		t.Fatal(err)
	}
	if len(o.Formats) != 1 || o.Formats[0] != FormatSVG || o.Scale != DefaultScale || o.Logger == nil {
		t.Errorf("defaults = %+v", o)
	}
	o = Options{Formats: []string{"svg", "gif"}}
	if err := o.Validate(); err == nil {
		t.Error("gif should be rejected")
	}
}

func TestArtifactKeyOptsSeparateSettings(t *testing.T) {
	base := Options{Props: widget.DefaultProps()}
	metric := base
	metric.Props.MetricMode = true

	k := cache.NewDefaultKeyer()
	if k.ArtifactKey("h", base.ArtifactKeyOpts("svg")) == k.ArtifactKey("h", metric.ArtifactKeyOpts("svg")) {
		t.Error("metric mode should change the key")
	}
	scaled := base
	scaled.Scale = 3
	if k.ArtifactKey("h", base.ArtifactKeyOpts("svg")) != k.ArtifactKey("h", scaled.ArtifactKeyOpts("svg")) {
		t.Error("PNG scale should not change the SVG key")
	}
}

func TestExecuteRendersAndCaches(t *testing.T) {
	ctx := context.Background()
	c := newMemCache()
	r := NewRunner(c, nil, nil)
	raw := load(t, r)

	opts := Options{Props: widget.DefaultProps(), Formats: []string{"svg", "json", "dot"}}
	res, err := r.Execute(ctx, raw, opts)
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if res.CacheInfo.RenderHit {
		t.Error("first run should miss")
	}
	if res.Stats.Nodes != 4 || res.Stats.Drawn != 2 {
		t.Errorf("stats = %+v", res.Stats)
	}
	if !strings.Contains(string(res.Artifacts["svg"]), `<path class="flow`) {
		t.Error("svg has no flows")
	}
	if !strings.Contains(string(res.Artifacts["json"]), `"status": "ready"`) {
		t.Errorf("json = %s", res.Artifacts["json"])
	}
	if !strings.HasPrefix(string(res.Artifacts["dot"]), "digraph G {") {
		t.Errorf("dot = %s", res.Artifacts["dot"])
	}
	if c.sets != 3 {
		t.Errorf("cache sets = %d, want 3", c.sets)
	}

	res2, err := r.Execute(ctx, raw, opts)
	if err != nil {
		t.Fatal(err)
	}
	if !res2.CacheInfo.RenderHit {
		t.Error("second run should hit")
	}
	if string(res2.Artifacts["svg"]) != string(res.Artifacts["svg"]) {
		t.Error("cached svg differs")
	}

	opts.Refresh = true
	res3, _ := r.Execute(ctx, raw, opts)
	if res3.CacheInfo.RenderHit {
		t.Error("refresh should bypass cache reads")
	}
}

func TestExecuteSelect(t *testing.T) {
	ctx := context.Background()
	r := NewRunner(nil, nil, nil)
	raw := load(t, r)

	res, err := r.Execute(ctx, raw, Options{Props: widget.DefaultProps(), Select: "K2_MC0_high->K3_MC1_high"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Frame.Trace == nil || res.Frame.Trace.SampleCount != 2 {
		t.Errorf("trace = %+v", res.Frame.Trace)
	}
	if !strings.Contains(string(res.Artifacts["svg"]), `class="flow selected"`) {
		t.Error("selected flow not marked")
	}

	tests := []string{"K2_MC0_high->K9_MC0_high", "garbage"}
	for _, ref := range tests {
		_, err := r.Execute(ctx, raw, Options{Select: ref})
		if !sserrors.Is(err, sserrors.ErrCodeInvalidSelection) {
			t.Errorf("Execute(select %q) = %v, want INVALID_SELECTION", ref, err)
		}
	}
}

func TestExecuteEmptyDataset(t *testing.T) {
	ctx := context.Background()
	r := NewRunner(nil, nil, nil)

	raw, err := r.Load(ctx, "testdata/empty.json")
	if !errors.Is(err, sankeyio.ErrEmptyDataset) {
		t.Fatalf("Load() error = %v, want ErrEmptyDataset", err)
	}
	res, err := r.Execute(ctx, raw, Options{Formats: []string{"svg", "dot"}})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(res.Artifacts["svg"]), widget.NoDataMessage) {
		t.Error("placeholder message missing")
	}
	if string(res.Artifacts["dot"]) != "digraph G {\n}\n" {
		t.Errorf("dot = %q", res.Artifacts["dot"])
	}
	if _, err := r.Execute(ctx, raw, Options{Select: "a->b"}); !sserrors.Is(err, sserrors.ErrCodeInvalidSelection) {
		t.Errorf("select on empty dataset = %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	r := NewRunner(nil, nil, nil)
	_, err := r.Load(context.Background(), "testdata/nope.json")
	if !sserrors.Is(err, sserrors.ErrCodeFileNotFound) {
		t.Errorf("Load() = %v, want FILE_NOT_FOUND", err)
	}
}

func TestLayoutReport(t *testing.T) {
	ctx := context.Background()
	c := newMemCache()
	r := NewRunner(c, nil, nil)
	raw := load(t, r)

	rep, hit, err := r.Layout(ctx, raw, 680)
	if err != nil {
		t.Fatal(err)
	}
	if hit {
		t.Error("first layout should miss")
	}
	if len(rep.Columns) != 2 || rep.Crossings > rep.InputCrossings {
		t.Errorf("report = %+v", rep)
	}

	rep2, hit, _ := r.Layout(ctx, raw, 680)
	if !hit || rep2.Crossings != rep.Crossings || rep2.Columns[1].Order[0] != rep.Columns[1].Order[0] {
		t.Errorf("cached report = %+v (hit %v)", rep2, hit)
	}

	if _, _, err := r.Layout(ctx, &sankey.RawData{}, 680); err == nil {
		t.Error("Layout() of empty dataset should fail")
	}
}

type recordingPipelineHooks struct {
	observability.NoopPipelineHooks
	mu      sync.Mutex
	events  []string
	lastErr error
}

func (h *recordingPipelineHooks) record(ev string) {
	h.mu.Lock()
	h.events = append(h.events, ev)
	h.mu.Unlock()
}

func (h *recordingPipelineHooks) OnLoadStart(context.Context, string) { h.record("load") }
func (h *recordingPipelineHooks) OnLayoutComplete(context.Context, int, int, time.Duration) {
	h.record("layout")
}
func (h *recordingPipelineHooks) OnRenderStart(context.Context, []string) { h.record("render") }
func (h *recordingPipelineHooks) OnRenderComplete(_ context.Context, _ []string, _ time.Duration, err error) {
	h.record("rendered")
	h.lastErr = err
}

func TestExecuteEmitsHooks(t *testing.T) {
	observability.Reset()
	defer observability.Reset()
	hooks := &recordingPipelineHooks{}
	observability.SetPipelineHooks(hooks)

	r := NewRunner(nil, nil, nil)
	raw := load(t, r)
	if _, err := r.Execute(context.Background(), raw, Options{}); err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(hooks.events, ","); got != "load,layout,render,rendered" {
		t.Errorf("events = %s", got)
	}
	if hooks.lastErr != nil {
		t.Errorf("render error = %v", hooks.lastErr)
	}
}

func TestConcurrentExecute(t *testing.T) {
	ctx := context.Background()
	r := NewRunner(newMemCache(), nil, nil)
	raw := load(t, r)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := r.Execute(ctx, raw, Options{Formats: []string{"svg", "json"}})
			if err == nil && len(res.Artifacts) != 2 {
				err = errors.New("missing artifacts")
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Error(err)
		}
	}
}
