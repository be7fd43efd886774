package main

import (
	"context"
	"log"
	"os"

	temporalclient "go.temporal.io/sdk/client"

	"github.com/efebarandurmaz/codechart/internal/agents"
	"github.com/efebarandurmaz/codechart/internal/config"
	"github.com/efebarandurmaz/codechart/internal/observability"
	"github.com/efebarandurmaz/codechart/internal/pipeline"
	"github.com/efebarandurmaz/codechart/internal/server"
	temporalmod "github.com/efebarandurmaz/codechart/internal/temporal"
)

var version = "dev"

type pinger interface {
	Ping(ctx context.Context) error
}

func main() {
	configPath := "configs/codechart.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := observability.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	for _, w := range cfg.Validate() {
		logger.Warn("config", "warning", w)
	}

	ctx := context.Background()
	shutdown := server.NewShutdownHandler(0, logger)

	tracingCfg := observability.DefaultTracingConfig()
	tracingCfg.ServiceName = "codechart-worker"
	tracingCfg.ServiceVersion = version
	tracingCfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	tracingCfg.SampleRate = cfg.Telemetry.SampleRate
	tp, err := observability.InitTracing(ctx, tracingCfg)
	if err != nil {
		log.Fatalf("tracing: %v", err)
	}
	shutdown.RegisterHook("tracing", server.PriorityTracing, tp.Shutdown)

	assembly, err := pipeline.FromConfig(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("pipeline: %v", err)
	}
	for _, w := range assembly.Warnings {
		logger.Warn("pipeline", "warning", w)
	}
	shutdown.RegisterHook("stores", server.PriorityDatabase, func(context.Context) error {
		assembly.Close()
		return nil
	})

	p := assembly.Pipeline
	temporalmod.SetDependencies(&temporalmod.Dependencies{
		Agent: agents.AgentContext{
			Classifier: p.Classifier,
			Narrator:   p.Narrator,
			GraphDB:    p.GraphDB,
			VectorDB:   p.VectorDB,
			Discovery:  p.Discovery,
			Workers:    p.Workers,
			Logger:     logger,
		},
		Registry:         p.Registry,
		History:          p.History,
		ClassifyTimeout:  p.ClassifyTimeout,
		NarrativeTimeout: p.NarrativeTimeout,
		SummarySample:    p.SummarySample,
		CloneDepth:       p.CloneDepth,
	})

	c, err := temporalclient.Dial(temporalclient.Options{
		HostPort:  cfg.Temporal.Host,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	shutdown.RegisterHook("temporal client", server.PriorityDatabase, func(context.Context) error {
		c.Close()
		return nil
	})

	health := server.NewHealthServer(version, observability.Metrics().Handler())
	health.RegisterCheck("temporal", server.RequiredCheck(func(ctx context.Context) error {
		_, err := c.CheckHealth(ctx, &temporalclient.CheckHealthRequest{})
		return err
	}))
	providerName := ""
	if assembly.Provider != nil {
		providerName = assembly.Provider.Name()
	}
	health.RegisterCheck("llm", server.ProviderCheck(providerName))
	if g, ok := p.GraphDB.(pinger); ok {
		health.RegisterCheck("neo4j", server.OptionalCheck(g.Ping))
	}
	if p.History != nil {
		health.RegisterCheck("history", server.OptionalCheck(p.History.Ping))
	}

	if addr := cfg.Telemetry.HealthAddr; addr != "" {
		bound, err := health.Start(addr)
		if err != nil {
			log.Fatalf("health server: %v", err)
		}
		logger.Info("health server listening", "addr", bound.String())
		shutdown.RegisterHook("health server", server.PriorityHTTP, health.Shutdown)
	}

	w, err := temporalmod.StartWorker(c, cfg.Temporal.TaskQueue)
	if err != nil {
		log.Fatalf("worker: %v", err)
	}
	health.SetReady(true)
	logger.Info("worker started", "task_queue", cfg.Temporal.TaskQueue, "version", version)

	shutdown.RegisterHook("worker", server.PriorityWorker, func(context.Context) error {
		w.Stop()
		return nil
	})
	if path := cfg.Telemetry.MetricsFile; path != "" {
		shutdown.RegisterHook("metrics textfile", server.PriorityMetrics, func(context.Context) error {
			return observability.Metrics().WriteTextfile(path)
		})
	}

	if err := shutdown.WaitForSignal(ctx); err != nil {
		logger.Error("shutdown incomplete", "error", err)
		os.Exit(1)
	}
	logger.Info("worker stopped")
}
