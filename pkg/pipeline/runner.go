package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/matzehuels/stripesankey/pkg/cache"
	sserrors "github.com/matzehuels/stripesankey/pkg/errors"
	sankeyio "github.com/matzehuels/stripesankey/pkg/io"
	"github.com/matzehuels/stripesankey/pkg/observability"
	"github.com/matzehuels/stripesankey/pkg/render"
	"github.com/matzehuels/stripesankey/pkg/sankey"
	"github.com/matzehuels/stripesankey/pkg/sankey/layout"
	"github.com/matzehuels/stripesankey/pkg/sankey/selection"
	"github.com/matzehuels/stripesankey/pkg/widget"
)

// Runner encapsulates pipeline execution with caching.
// Both CLI and HTTP host use it so caching behaves the same everywhere.
//
// The Runner holds no results between runs. Multiple goroutines can use
// the same Runner; identical concurrent renders are collapsed into one.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger

	// TTL overrides the lifetime of cached artifacts and layout reports
	// when positive.
	TTL time.Duration

	group singleflight.Group
}

func (r *Runner) ttl(def time.Duration) time.Duration {
	if r.TTL > 0 {
		return r.TTL
	}
	return def
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
// If logger is nil, output is discarded.
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// Load reads a dataset file. An empty dataset is returned together with
// [sankeyio.ErrEmptyDataset] so callers can still render the placeholder.
func (r *Runner) Load(ctx context.Context, path string) (*sankey.RawData, error) {
	observability.Pipeline().OnLoadStart(ctx, path)
	start := time.Now()

	raw, err := sankeyio.Import(path)

	nodes, flows := 0, 0
	if raw != nil {
		nodes, flows = len(raw.Nodes), len(raw.Flows)
	}
	observability.Pipeline().OnLoadComplete(ctx, path, nodes, flows, time.Since(start), err)

	switch {
	case err == nil:
		r.Logger.Info("loaded dataset", "path", path, "nodes", nodes, "flows", flows, "duration", time.Since(start))
		return raw, nil
	case errors.Is(err, sankeyio.ErrEmptyDataset):
		r.Logger.Warn("dataset has no nodes", "path", path)
		return raw, err
	case errors.Is(err, os.ErrNotExist):
		return nil, sserrors.Wrap(sserrors.ErrCodeFileNotFound, err, "dataset %s", path)
	}
	return nil, sserrors.Wrap(sserrors.ErrCodeInvalidFormat, err, "load dataset")
}

// Hash returns the content hash of a raw dataset.
func Hash(raw *sankey.RawData) string {
	data, _ := json.Marshal(raw)
	return cache.Hash(data)
}

// Execute normalises raw, builds a frame and renders every requested
// format, using cached artifacts where possible.
func (r *Runner) Execute(ctx context.Context, raw *sankey.RawData, opts Options) (*Result, error) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
	if err := opts.Validate(); err != nil {
		return nil, sserrors.Wrap(sserrors.ErrCodeInvalidInput, err, "invalid options")
	}
	logger := opts.Logger

	result := &Result{DatasetHash: Hash(raw)}

	layoutStart := time.Now()
	if !raw.IsEmpty() {
		result.Dataset = sankey.Normalize(raw)
	}
	if opts.Select != "" {
		if result.Dataset == nil {
			return nil, sserrors.New(sserrors.ErrCodeInvalidSelection, "cannot select %q: dataset is empty", opts.Select)
		}
		snap, err := selection.Resolve(result.Dataset, opts.Select)
		if err != nil {
			return nil, sserrors.Wrap(sserrors.ErrCodeInvalidSelection, err, "select")
		}
		opts.Props.SelectedFlow = snap
	}
	opts.Props.Data = raw
	result.Frame = widget.BuildDataset(opts.Props, result.Dataset, nil)
	result.Stats.Stats = result.Frame.Stats
	result.Stats.LayoutTime = time.Since(layoutStart)
	observability.Pipeline().OnLayoutComplete(ctx, result.Stats.Nodes, result.Stats.Crossings, result.Stats.LayoutTime)

	logger.Info("computed layout",
		"nodes", result.Stats.Nodes,
		"flows", result.Stats.Flows,
		"significant", result.Stats.Significant,
		"crossings", result.Stats.Crossings,
		"duration", result.Stats.LayoutTime)
	if result.Frame.Status != widget.StatusReady {
		logger.Warn(result.Frame.Message)
	}

	renderStart := time.Now()
	observability.Pipeline().OnRenderStart(ctx, opts.Formats)
	artifacts, hit, err := r.render(ctx, result.DatasetHash, result.Frame, opts)
	result.Stats.RenderTime = time.Since(renderStart)
	observability.Pipeline().OnRenderComplete(ctx, opts.Formats, result.Stats.RenderTime, err)
	if err != nil {
		return nil, err
	}
	result.Artifacts = artifacts
	result.CacheInfo.RenderHit = hit

	logger.Info("rendered outputs",
		"formats", opts.Formats,
		"cached", hit,
		"duration", result.Stats.RenderTime)
	return result, nil
}

// render returns the artifacts of frame, from cache when every format is
// cached. Concurrent calls with the same keys share one render.
func (r *Runner) render(ctx context.Context, hash string, f *widget.Frame, opts Options) (map[string][]byte, bool, error) {
	keys := make(map[string]string, len(opts.Formats))
	for _, format := range opts.Formats {
		keys[format] = r.Keyer.ArtifactKey(hash, opts.ArtifactKeyOpts(format))
	}

	if !opts.Refresh {
		if artifacts, ok := r.cached(ctx, keys); ok {
			return artifacts, true, nil
		}
	}

	v, err, _ := r.group.Do(flightKey(keys), func() (any, error) {
		artifacts := make(map[string][]byte, len(keys))
		for _, format := range opts.Formats {
			data, err := RenderFrame(ctx, f, format, opts)
			if err != nil {
				return nil, sserrors.Wrap(renderErrorCode(err), err, "render %s", format)
			}
			artifacts[format] = data
			if err := r.Cache.Set(ctx, keys[format], data, r.ttl(cache.TTLArtifact)); err != nil {
				opts.Logger.Warn("cache write failed", "format", format, "err", err)
			}
		}
		return artifacts, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.(map[string][]byte), false, nil
}

func (r *Runner) cached(ctx context.Context, keys map[string]string) (map[string][]byte, bool) {
	artifacts := make(map[string][]byte, len(keys))
	for format, key := range keys {
		data, hit, err := r.Cache.Get(ctx, key)
		if err != nil || !hit {
			return nil, false
		}
		artifacts[format] = data
	}
	return artifacts, true
}

func flightKey(keys map[string]string) string {
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k)
	}
	sort.Strings(parts)
	return strings.Join(parts, "|")
}

// Layout orders the columns of raw for a chart of the given height and
// counts crossings before and after ordering. Reports are cached.
func (r *Runner) Layout(ctx context.Context, raw *sankey.RawData, height float64) (*LayoutReport, bool, error) {
	if raw.IsEmpty() {
		return nil, false, sserrors.New(sserrors.ErrCodeInvalidInput, "dataset has no nodes")
	}
	key := r.Keyer.LayoutKey(Hash(raw), cache.LayoutKeyOpts{Height: height})

	var rep LayoutReport
	if err := cache.GetJSON(ctx, r.Cache, key, &rep); err == nil {
		return &rep, true, nil
	}

	start := time.Now()
	ds := sankey.Normalize(raw)
	rep.Columns = layout.Barycentric{}.OrderColumns(ds, height)
	rep.InputColumns = layout.InputOrder(ds, height)
	rep.Crossings = layout.Crossings(ds, rep.Columns)
	rep.InputCrossings = layout.Crossings(ds, rep.InputColumns)
	observability.Pipeline().OnLayoutComplete(ctx, len(ds.Nodes), rep.Crossings, time.Since(start))

	if err := cache.SetJSON(ctx, r.Cache, key, rep, r.ttl(cache.TTLLayout)); err != nil {
		r.Logger.Warn("cache write failed", "key", key, "err", err)
	}
	return &rep, false, nil
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

func renderErrorCode(err error) sserrors.Code {
	if errors.Is(err, context.DeadlineExceeded) {
		return sserrors.ErrCodeTimeout
	}
	if errors.Is(err, render.ErrConverterMissing) {
		return sserrors.ErrCodeUnsupported
	}
	return sserrors.ErrCodeInternal
}
