package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	sankeyio "github.com/matzehuels/stripesankey/pkg/io"
	"github.com/matzehuels/stripesankey/pkg/pipeline"
	"github.com/matzehuels/stripesankey/pkg/widget"
)

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	output   string // output file (single format) or base path
	formats  string // comma-separated output formats
	selected string // "SRC->TGT" flow to select
	mode     string // "default" or "metric"
	width    int
	height   int
	scale    float64
	detailed bool // counts and metrics on node-link labels
	titles   bool // hover titles in SVG output
	noCache  bool
	refresh  bool
}

// renderCommand creates the render command.
func (c *CLI) renderCommand() *cobra.Command {
	var opts renderOpts

	cmd := &cobra.Command{
		Use:   "render [data.json]",
		Short: "Render a dataset to SVG, JSON, PNG, PDF, DOT or node-link SVG",
		Long: `Render a processed topic-model dataset.

The dataset is a JSON or YAML file with "nodes", "flows" and "k_range". With
--select the flow is highlighted and its samples are traced across every K.

Rendered artifacts are cached by dataset content and options.`,
		Example: `  stripesankey render topics.json
  stripesankey render topics.json -f svg,png --select "K2_MC0_high->K3_MC1_high"
  stripesankey render topics.json --mode metric -o out/topics.svg`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			props, err := c.props(cmd, opts.mode, opts.width, opts.height)
			if err != nil {
				return err
			}
			return c.runRender(cmd.Context(), args[0], props, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (single format) or base path (multiple)")
	cmd.Flags().StringVarP(&opts.formats, "format", "f", pipeline.FormatSVG, "output format(s): svg, json, png, pdf, dot, nodelink (comma-separated)")
	cmd.Flags().StringVarP(&opts.selected, "select", "s", "", `flow to select, as "SOURCE->TARGET"`)
	cmd.Flags().StringVar(&opts.mode, "mode", "", "colour mode: default, metric")
	cmd.Flags().IntVar(&opts.width, "width", 0, "canvas width (default from config)")
	cmd.Flags().IntVar(&opts.height, "height", 0, "canvas height (default from config)")
	cmd.Flags().Float64Var(&opts.scale, "scale", pipeline.DefaultScale, "PNG scale factor")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "show counts and metrics in node-link output")
	cmd.Flags().BoolVar(&opts.titles, "titles", false, "add hover titles to SVG flows and segments")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "re-render even when cached")

	return cmd
}

// props returns the configured props with the canvas flags applied.
func (c *CLI) props(cmd *cobra.Command, mode string, width, height int) (widget.Props, error) {
	p := c.config.Props()
	if cmd.Flags().Changed("mode") {
		metric, err := widget.ParseMode(mode)
		if err != nil {
			return p, err
		}
		p.MetricMode = metric
	}
	if width > 0 {
		p.Width = width
	}
	if height > 0 {
		p.Height = height
	}
	return p, nil
}

func (c *CLI) runRender(ctx context.Context, input string, props widget.Props, opts renderOpts) error {
	logger := loggerFromContext(ctx)
	formats := pipeline.ParseFormats(opts.formats)
	if err := pipeline.ValidateFormats(formats); err != nil {
		return err
	}

	runner, err := c.newRunner(opts.noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	raw, err := runner.Load(ctx, input)
	if err != nil && !errors.Is(err, sankeyio.ErrEmptyDataset) {
		return err
	}

	prog := newProgress(logger)
	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Rendering %s...", strings.Join(formats, ", ")))
	spinner.Start()
	res, err := runner.Execute(ctx, raw, pipeline.Options{
		Props:    props,
		Formats:  formats,
		Select:   opts.selected,
		Scale:    opts.scale,
		Detailed: opts.detailed,
		Titles:   opts.titles,
		Refresh:  opts.refresh,
	})
	if err != nil {
		spinner.StopWithError("Render failed")
		return err
	}
	spinner.Stop()
	if ctx.Err() != nil {
		return ctx.Err()
	}

	paths := outputPaths(opts.output, input, formats)
	for _, format := range formats {
		path := paths[format]
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create output dir: %w", err)
			}
		}
		if err := os.WriteFile(path, res.Artifacts[format], 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	prog.done(fmt.Sprintf("Rendered %d outputs", len(formats)))

	if res.Frame.Status != widget.StatusReady {
		printWarning("%s", res.Frame.Message)
	} else {
		printSuccess("Render complete")
	}
	for _, format := range formats {
		printFile(paths[format])
	}
	printStats(res.Stats.Nodes, res.Stats.Drawn, res.CacheInfo.RenderHit)
	if info := res.Frame.Info; info != nil {
		printKeyValue("Selected", info.Flow)
		printKeyValue("Samples", StyleNumber.Render(fmt.Sprint(res.Stats.TracedSamples)))
	}
	printNewline()
	printNextStep("Explore", appName+" explore "+input)
	return nil
}

// outputPaths derives one file path per format. A single format with an
// explicit output uses it verbatim; otherwise output (or the input path)
// is a base to which each format's extension is added.
func outputPaths(output, input string, formats []string) map[string]string {
	paths := make(map[string]string, len(formats))
	if output != "" && len(formats) == 1 {
		paths[formats[0]] = output
		return paths
	}
	base := basePath(output, input)
	for _, f := range formats {
		paths[f] = base + "." + pipeline.Extension(f)
	}
	return paths
}

// basePath strips a known format extension from output, or the extension
// of input when output is empty.
func basePath(output, input string) string {
	if output == "" {
		return strings.TrimSuffix(input, filepath.Ext(input))
	}
	ext := filepath.Ext(output)
	if pipeline.ValidFormats[strings.TrimPrefix(ext, ".")] {
		return strings.TrimSuffix(output, ext)
	}
	return output
}
