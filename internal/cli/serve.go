package cli

import (
	"context"
	stderrors "errors"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/depscout/internal/server"
	"github.com/matzehuels/depscout/pkg/observability"
	"github.com/matzehuels/depscout/pkg/store"
)

const shutdownTimeout = 10 * time.Second

func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr    string
		dsn     string
		noCache bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scan API server",
		Long: `Run the scan API server.

  POST   /scans        {"root": "/src/app"} runs a scan and returns its manifest
  GET    /scans        lists stored scans
  GET    /scans/{id}   returns a stored manifest (?format=dot for Graphviz)
  DELETE /scans/{id}   deletes a stored scan
  GET    /detectors    lists detectors
  GET    /healthz      liveness
  GET    /metrics      Prometheus metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := c.config()
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("store") {
				cfg.Store.DSN = dsn
			}
			return c.runServe(cmd.Context(), noCache)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config: 127.0.0.1:8080)")
	cmd.Flags().StringVar(&dsn, "store", "", "scan history store (sqlite path or mongodb:// URI)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the detector cache")
	return cmd
}

func (c *CLI) runServe(ctx context.Context, noCache bool) error {
	cfg := c.config()
	logger := loggerFromContext(ctx)

	opts, err := cfg.Scan.Options()
	if err != nil {
		return err
	}
	prom := observability.NewPrometheusHooks(nil)
	opts.Logger = logger
	opts.Hooks = prom.Hooks()
	opts.Cache = c.newCache(ctx, noCache)
	opts.CacheTTL = cfg.Cache.TTL
	defer opts.Cache.Close()

	var st store.Store
	if cfg.Store.DSN != "" {
		st, err = store.Open(ctx, cfg.Store.DSN)
		if err != nil {
			return err
		}
		defer st.Close()
	}

	handler := server.New(server.Config{
		Registry:     c.Registry,
		Options:      opts,
		Store:        st,
		Metrics:      prom.Handler(),
		AllowedRoots: cfg.Server.AllowedRoots,
		ScanTimeout:  cfg.Scan.Timeout,
		Logger:       logger,
		Hooks:        prom.Hooks(),
	})
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return err
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	printSuccess("Listening on http://%s", ln.Addr())
	if st == nil {
		printDetail("Scan history disabled (set --store or store.dsn)")
	}

	select {
	case err := <-errCh:
		if !stderrors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
