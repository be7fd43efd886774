package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/efebarandurmaz/codechart/internal/dashboard"
	"github.com/efebarandurmaz/codechart/internal/observability"
	"github.com/efebarandurmaz/codechart/internal/pipeline"
	"github.com/efebarandurmaz/codechart/internal/server"
)

func newServeCmd(configPath *string) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the analysis API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *configPath, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default serve.addr)")
	return cmd
}

func runServe(ctx context.Context, configPath, addr string) error {
	cfg := loadConfig(configPath)
	if addr == "" {
		addr = cfg.Serve.Addr
	}
	logger := observability.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)
	shutdown := server.NewShutdownHandler(0, logger)

	tracingCfg := observability.DefaultTracingConfig()
	tracingCfg.ServiceName = "codechart-api"
	tracingCfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	tracingCfg.SampleRate = cfg.Telemetry.SampleRate
	tp, err := observability.InitTracing(ctx, tracingCfg)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	shutdown.RegisterHook("tracing", server.PriorityTracing, tp.Shutdown)

	assembly, err := pipeline.FromConfig(ctx, cfg, logger)
	if err != nil {
		return err
	}
	shutdown.RegisterHook("stores", server.PriorityDatabase, func(context.Context) error {
		return assembly.Close()
	})

	p := assembly.Pipeline
	var hist dashboard.HistoryStore
	if p.History != nil {
		hist = p.History
	}
	api := dashboard.NewServer(dashboard.Config{
		MaxConcurrent: cfg.Serve.MaxConcurrent,
		RunTimeout:    cfg.Serve.RunTimeout,
	}, p, hist, logger)

	health := server.NewHealthServer(version, observability.Metrics().Handler())
	providerName := ""
	if assembly.Provider != nil {
		providerName = assembly.Provider.Name()
	}
	health.RegisterCheck("llm", server.ProviderCheck(providerName))
	if p.History != nil {
		health.RegisterCheck("history", server.OptionalCheck(p.History.Ping))
	}

	mux := http.NewServeMux()
	mux.Handle("/api/", api.Handler())
	mux.Handle("/", health.Handler())

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		shutdown.Shutdown()
		return err
	}
	// No write timeout: event streams stay open for the whole run.
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second, IdleTimeout: 60 * time.Second}
	// Draining first ends the event streams, which Shutdown would wait on.
	shutdown.RegisterHook("http server", server.PriorityHTTP, func(ctx context.Context) error {
		return errors.Join(api.Drain(ctx), srv.Shutdown(ctx))
	})
	if path := cfg.Telemetry.MetricsFile; path != "" {
		shutdown.RegisterHook("metrics textfile", server.PriorityMetrics, func(context.Context) error {
			return observability.Metrics().WriteTextfile(path)
		})
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()
	health.SetReady(true)
	logger.Info("serving analysis API", "addr", ln.Addr().String())

	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := <-serveErr; err != nil {
			logger.Error("http server failed", "error", err)
			cancel()
		}
	}()
	return shutdown.WaitForSignal(waitCtx)
}
