package cmd

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"github.com/awnumar/memguard"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/jmcleod/eventgate/config"
	"github.com/jmcleod/eventgate/gate"
	"github.com/jmcleod/eventgate/internal/logging"
	"github.com/jmcleod/eventgate/site"
)

const shutdownTimeout = 10 * time.Second

var serveFlagKeys = map[string]string{
	"addr":         "server.addr",
	"upstream":     "server.upstream",
	"metrics-addr": "metrics.addr",
	"tls-cert":     "server.tls_cert",
	"tls-key":      "server.tls_key",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gate in front of the site",
	Long: `Serves the embedded site, or reverse-proxies --upstream, behind the gate.

Outside production (env other than "production") the gate lets everything
through unless force_auth is set.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Address to listen on (default :8080)")
	serveCmd.Flags().String("upstream", "", "Origin URL to proxy admitted requests to")
	serveCmd.Flags().String("metrics-addr", "", "Address of the metrics listener; empty disables it")
	serveCmd.Flags().String("tls-cert", "", "Path to TLS certificate file")
	serveCmd.Flags().String("tls-key", "", "Path to TLS key file")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, serveFlagKeys)
	if err != nil {
		return err
	}

	logger := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	slog.SetDefault(logger)

	key, err := cfg.LoadSecret()
	if err != nil {
		return err
	}
	wipeKey := true
	defer func() {
		if wipeKey {
			key.Destroy()
			memguard.Purge()
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := gate.NewMetrics(reg, Version)
	if err != nil {
		return err
	}

	gateCfg, err := cfg.EngineConfig(key.Bytes())
	if err != nil {
		return err
	}
	engine, err := gate.New(gateCfg, gate.WithLogger(logger), gate.WithMetrics(metrics))
	if err != nil {
		return err
	}

	switch {
	case !gateCfg.Enforce:
		logger.Warn("gate enforcement disabled; every request is allowed", "env", cfg.Env)
	case !engine.SecretConfigured():
		logger.Error("gate secret not configured; every token will be rejected")
	}

	handler, err := newRouter(cfg, engine, logger)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
	if cfg.TLS() {
		cert, err := tls.LoadX509KeyPair(cfg.Server.TLSCert, cfg.Server.TLSKey)
		if err != nil {
			return fmt.Errorf("failed to load TLS key pair: %w", err)
		}
		server.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}
	}

	servers := []*http.Server{server}
	if cfg.Metrics.Addr != "" {
		servers = append(servers, &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           newMetricsRouter(reg),
			ReadHeaderTimeout: 10 * time.Second,
		})
	}

	done := make(chan error, len(servers))
	for _, srv := range servers {
		go func() {
			var err error
			if srv.TLSConfig != nil {
				err = srv.ListenAndServeTLS("", "")
			} else {
				err = srv.ListenAndServe()
			}
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				done <- fmt.Errorf("server on %s failed: %w", srv.Addr, err)
				return
			}
			done <- nil
		}()
	}

	printBanner(cmd.ErrOrStderr())
	logger.Info("eventgate started",
		"addr", cfg.Server.Addr,
		"metrics_addr", cfg.Metrics.Addr,
		"upstream", cfg.Server.Upstream,
		"tls", cfg.TLS(),
		"enforce", gateCfg.Enforce,
		"version", Version,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case runErr = <-done:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	drained, err := shutdownServers(shutdownCtx, servers)
	if !drained {
		// Handlers still running read the key; it goes away with the process.
		wipeKey = false
		logger.Warn("shutdown deadline exceeded, in-flight requests abandoned")
	}
	return errors.Join(runErr, err)
}

// shutdownServers stops every server and reports whether all of them
// finished their in-flight requests before ctx expired.
func shutdownServers(ctx context.Context, servers []*http.Server) (bool, error) {
	drained := true
	var errs error
	for _, srv := range servers {
		if err := srv.Shutdown(ctx); err != nil {
			drained = false
			errs = errors.Join(errs, fmt.Errorf("server shutdown failed: %w", err))
		}
	}
	return drained, errs
}

// newRouter assembles the public handler: request plumbing, then the gate,
// then the embedded site or the upstream proxy. The denial page is always
// served locally.
func newRouter(cfg *config.Config, engine *gate.Engine, logger *slog.Logger) (http.Handler, error) {
	denialPath := engine.Config().DenialPath
	pages, err := site.Handler(denialPath)
	if err != nil {
		return nil, err
	}

	backend := pages
	if cfg.Server.Upstream != "" {
		u, err := url.Parse(cfg.Server.Upstream)
		if err != nil {
			return nil, fmt.Errorf("parsing upstream: %w", err)
		}
		backend = site.NewProxy(u, engine.Config().CookieName, logger)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(site.SecurityHeaders)

	r.Get("/healthz", healthz)

	r.Group(func(r chi.Router) {
		r.Use(engine.Middleware)
		r.Handle(denialPath, pages)
		r.Handle("/*", backend)
	})
	return r, nil
}

func newMetricsRouter(reg *prometheus.Registry) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", healthz)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return r
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("OK"))
}
