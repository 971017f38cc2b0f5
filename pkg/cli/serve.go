package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/capload/pkg/api"
	"github.com/platinummonkey/capload/pkg/observability"
	"github.com/platinummonkey/capload/pkg/plugins"
)

func newServeCommand(g *globalOptions) *cobra.Command {
	pf := &pluginFlags{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Load plugins and serve the registry over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return g.serve(ctx, cmd, pf)
		},
	}

	pf.register(cmd)
	return cmd
}

func (g *globalOptions) serve(ctx context.Context, cmd *cobra.Command, pf *pluginFlags) error {
	var (
		metrics      *observability.Metrics
		promRegistry *prometheus.Registry
	)

	s, err := g.newSession(cmd, pf)
	if err != nil {
		return err
	}
	log := s.log

	otelCfg := s.cfg.Observability.OTel
	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        otelCfg.Enabled,
		Endpoint:       otelCfg.Endpoint,
		ServiceName:    otelCfg.ServiceName,
		ServiceVersion: serviceVersion(otelCfg.ServiceVersion),
		Insecure:       otelCfg.Insecure,
	}, log)
	if err != nil {
		return err
	}

	if s.cfg.Observability.MetricsEnabled {
		promRegistry = prometheus.NewRegistry()
		promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics = observability.NewMetrics(promRegistry)
	}

	registry := s.newRegistry(plugins.WithMetrics(metrics))
	if err := registry.LoadPlugins(ctx, s.filter, s.cfg.Plugins.Paths...); err != nil {
		_ = providers.Shutdown(context.Background())
		return err
	}

	handler := api.NewServer(registry, s.filter, s.cfg.Plugins.Paths,
		api.WithLogger(log),
		api.WithMetrics(metrics, promRegistry),
		api.WithHealthChecker(observability.NewHealthChecker(Version)),
	)

	server := &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      otelhttp.NewHandler(handler, "capload"),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	shutdown := observability.NewShutdownManager(log, server, s.cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(providers.Shutdown)
	shutdown.RegisterShutdownFunc(func(context.Context) error {
		return registry.Close()
	})

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", server.Addr).Info("Starting capload server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		_ = shutdown.Shutdown()
		return err
	case <-ctx.Done():
		return shutdown.WaitForShutdown(ctx)
	}
}

func serviceVersion(configured string) string {
	if configured != "" {
		return configured
	}
	return Version
}
