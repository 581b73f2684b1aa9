package cli

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/stripesankey/pkg/buildinfo"
	"github.com/matzehuels/stripesankey/pkg/cache"
	"github.com/matzehuels/stripesankey/pkg/config"
	"github.com/matzehuels/stripesankey/pkg/pipeline"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = "stripesankey"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
	config     config.Config
	verbose    bool
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		config: config.Default(),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "StripeSankey draws topic-model flows as striped Sankey diagrams",
		Long: `StripeSankey lays out topic-model runs across K values as a Sankey diagram.

Every node is a topic (mallet component) at one K, drawn as a stacked bar of
high- and medium-probability samples. Flows join segments of adjacent K
columns, and selecting a flow traces its samples across every K.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if c.verbose {
				c.SetLogLevel(LogDebug)
			}
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return c.loadConfig()
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (.toml, .yaml)")

	root.AddCommand(c.renderCommand())
	root.AddCommand(c.layoutCommand())
	root.AddCommand(c.traceCommand())
	root.AddCommand(c.exploreCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// loadConfig reads --config, or $STRIPESANKEY_CONFIG when the flag is unset.
func (c *CLI) loadConfig() error {
	path := c.configPath
	if path == "" {
		path = os.Getenv("STRIPESANKEY_CONFIG")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if path != "" {
		c.Logger.Debug("loaded config", "path", path)
	}
	c.config = cfg
	return nil
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates a pipeline runner for CLI use.
func (c *CLI) newRunner(noCache bool) (*pipeline.Runner, error) {
	cc, err := c.newCache(noCache)
	if err != nil {
		return nil, err
	}
	runner := pipeline.NewRunner(cc, nil, c.Logger)
	runner.TTL = c.config.Cache.TTL
	return runner, nil
}

func (c *CLI) newCache(noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	cfg := c.config.Cache
	cc, err := cache.Open(cfg.Backend, c.cacheDir(), cfg.RedisAddr)
	if err != nil && cfg.Backend == cache.BackendFile {
		c.Logger.Warn("cache disabled", "err", err)
		return cache.NewNullCache(), nil
	}
	return cc, err
}

// cacheDir returns the configured cache directory, defaulting to the
// user cache directory.
func (c *CLI) cacheDir() string {
	if c.config.Cache.Dir != "" {
		return c.config.Cache.Dir
	}
	return cache.DefaultDir()
}
