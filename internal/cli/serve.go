package cli

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/matzehuels/stripesankey/internal/server"
	"github.com/matzehuels/stripesankey/pkg/cache"
	"github.com/matzehuels/stripesankey/pkg/config"
	"github.com/matzehuels/stripesankey/pkg/errors"
	"github.com/matzehuels/stripesankey/pkg/observability"
	"github.com/matzehuels/stripesankey/pkg/observability/prom"
	"github.com/matzehuels/stripesankey/pkg/session"
)

// serveCommand creates the serve command, which hosts diagram sessions
// over HTTP.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		flags     config.Server
		noMetrics bool
		noCache   bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Host interactive diagram sessions over HTTP",
		Long: `Host diagram sessions over HTTP.

POST a dataset to /sessions to create a session, then open
/sessions/{id}/view in a browser or drive it through the JSON API. Sessions
live in memory by default; a file, Redis or MongoDB store keeps them across
restarts, and Redis also shares selections between hosts.

Prometheus metrics are served on /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := c.config.Server
			fs := cmd.Flags()
			if fs.Changed("addr") {
				cfg.Addr = flags.Addr
			}
			if fs.Changed("store") {
				cfg.Store = flags.Store
			}
			if fs.Changed("store-dir") {
				cfg.Dir = flags.Dir
			}
			if fs.Changed("redis") {
				cfg.RedisAddr = flags.RedisAddr
			}
			if fs.Changed("mongo-uri") {
				cfg.MongoURI = flags.MongoURI
			}
			if fs.Changed("mongo-db") {
				cfg.MongoDatabase = flags.MongoDatabase
			}
			if fs.Changed("session-ttl") {
				cfg.SessionTTL = flags.SessionTTL
			}
			if err := errors.ValidateStruct(errors.ErrCodeInvalidConfig, cfg); err != nil {
				return err
			}
			return c.runServe(cmd.Context(), cfg, !noMetrics, noCache)
		},
	}

	def := config.Default().Server
	cmd.Flags().StringVar(&flags.Addr, "addr", def.Addr, "listen address")
	cmd.Flags().StringVar(&flags.Store, "store", def.Store, "session store: memory, file, redis, mongo")
	cmd.Flags().StringVar(&flags.Dir, "store-dir", "", "directory of the file store")
	cmd.Flags().StringVar(&flags.RedisAddr, "redis", "", "Redis address of the redis store")
	cmd.Flags().StringVar(&flags.MongoURI, "mongo-uri", "", "connection URI of the mongo store")
	cmd.Flags().StringVar(&flags.MongoDatabase, "mongo-db", def.MongoDatabase, "database of the mongo store")
	cmd.Flags().DurationVar(&flags.SessionTTL, "session-ttl", def.SessionTTL, "idle lifetime of a session")
	cmd.Flags().BoolVar(&noMetrics, "no-metrics", false, "do not serve /metrics")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the artifact cache")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, cfg config.Server, metrics, noCache bool) error {
	var handler http.Handler
	if metrics {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m := prom.New(reg)
		observability.SetPipelineHooks(m)
		observability.SetRenderHooks(m)
		observability.SetCacheHooks(m)
		observability.SetServerHooks(m)
		handler = m.Handler()
	}

	store, err := session.Open(ctx, session.Options{
		Backend:       cfg.Store,
		Dir:           cfg.Dir,
		RedisAddr:     cfg.RedisAddr,
		MongoURI:      cfg.MongoURI,
		MongoDatabase: cfg.MongoDatabase,
	})
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}

	runner, err := c.newRunner(noCache)
	if err != nil {
		store.Close()
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()
	// Served artifacts share the cache with CLI renders; keep them apart.
	runner.Keyer = cache.NewScopedKeyer(runner.Keyer, "serve:")

	srv := server.New(server.Options{
		Store:      store,
		Runner:     runner,
		Defaults:   c.config.Props(),
		SessionTTL: cfg.SessionTTL,
		Metrics:    handler,
		Logger:     c.Logger,
	})
	defer srv.Close()

	printSuccess("Serving diagrams")
	printKeyValue("Address", StyleLink.Render("http://"+displayAddr(cfg.Addr)))
	printKeyValue("Store", cfg.Store)
	printKeyValue("Cache", c.cacheBackend(noCache))
	printNewline()
	printNextStep("Create a session", "curl -X POST --data-binary @topics.json http://"+displayAddr(cfg.Addr)+"/sessions")

	return srv.Run(ctx, cfg.Addr)
}

func (c *CLI) cacheBackend(noCache bool) string {
	if noCache {
		return "none"
	}
	return c.config.Cache.Backend
}

// displayAddr turns ":8080" into "localhost:8080".
func displayAddr(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "localhost" + addr
	}
	return addr
}
