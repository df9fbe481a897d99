// Package main implements the entry point for the vector-api server.
// vector-api exposes a running data pipeline through a schema-typed query
// and streaming API: topology, health, and flow metrics as queries, live
// change feeds as subscriptions.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"golang.org/x/sync/errgroup"

	"github.com/songlinshu/vector/config"
	"github.com/songlinshu/vector/engine"
	"github.com/songlinshu/vector/gateway/graphql"
	"github.com/songlinshu/vector/introspection"
	"github.com/songlinshu/vector/metric"
	"github.com/songlinshu/vector/natsclient"
	"github.com/songlinshu/vector/pipeline"
	"github.com/songlinshu/vector/schema"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "vector-api"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg, shouldExit, err := initializeCLI()
	if shouldExit || err != nil {
		return err
	}

	cfg, err := loadConfiguration(cliCfg)
	if err != nil {
		return err
	}

	if cliCfg.Validate {
		slog.Info("Configuration is valid")
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsRegistry := metric.NewMetricsRegistry()

	bus, busConn, err := connectBus(ctx, cfg)
	if err != nil {
		return err
	}
	if bus != nil {
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = bus.Close(closeCtx)
		}()
	}

	p := buildPipeline(cfg)

	exec, err := buildExecutor(p, busConn)
	if err != nil {
		return err
	}

	server, err := graphql.NewServer(cfg.Gateway, exec, metricsRegistry, slog.Default())
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}
	if err := server.Setup(); err != nil {
		return fmt.Errorf("setup server: %w", err)
	}

	return serve(ctx, server, p, cliCfg)
}

// connectBus establishes the optional NATS connection for the busMessages
// subscription.
func connectBus(ctx context.Context, cfg *config.Config) (*natsclient.Client, *nats.Conn, error) {
	if !cfg.NATS.Enabled {
		return nil, nil, nil
	}

	slog.Info("Connecting to message bus", "url", cfg.NATS.Client.URL)
	client, err := natsclient.NewClient(cfg.NATS.Client, slog.Default())
	if err != nil {
		return nil, nil, fmt.Errorf("create bus client: %w", err)
	}
	if err := client.Connect(ctx); err != nil {
		return nil, nil, fmt.Errorf("connect to bus: %w", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.WaitForConnection(waitCtx); err != nil {
		return nil, nil, fmt.Errorf("bus connection timeout: %w", err)
	}

	return client, client.Conn(), nil
}

// buildPipeline assembles the demo topology the API exposes: a UDP listener
// feeding an enrichment stage feeding a WebSocket fanout.
func buildPipeline(cfg *config.Config) *pipeline.Pipeline {
	version := cfg.Pipeline.Version
	if version == "" {
		version = Version
	}
	p := pipeline.New(cfg.Pipeline.Name, version, slog.Default())

	stages := []struct {
		name string
		kind pipeline.Kind
	}{
		{"udp-listener", pipeline.KindInput},
		{"json-parser", pipeline.KindProcessor},
		{"enricher", pipeline.KindProcessor},
		{"ws-fanout", pipeline.KindOutput},
	}
	for _, st := range stages {
		if _, err := p.AddComponent(st.name, st.kind); err != nil {
			slog.Warn("component registration failed", "name", st.name, "error", err)
		}
	}

	edges := [][2]string{
		{"udp-listener", "json-parser"},
		{"json-parser", "enricher"},
		{"enricher", "ws-fanout"},
	}
	for _, e := range edges {
		if err := p.Connect(e[0], e[1]); err != nil {
			slog.Warn("edge registration failed", "from", e[0], "to", e[1], "error", err)
		}
	}

	return p
}

// buildExecutor assembles the typed schema over the pipeline, grafts
// introspection onto it, and builds the executor.
func buildExecutor(p *pipeline.Pipeline, busConn *nats.Conn) (*engine.Executor, error) {
	schemaCfg := pipeline.APISchema(p, busConn)

	schemaCfg, introSvc, err := introspection.Extend(schemaCfg)
	if err != nil {
		return nil, fmt.Errorf("extend schema: %w", err)
	}

	reg, err := schema.New(schemaCfg)
	if err != nil {
		return nil, fmt.Errorf("build schema: %w", err)
	}
	introSvc.Bind(reg)

	return engine.NewExecutor(reg, slog.Default()), nil
}

// serve runs the gateway and the traffic simulator until a signal arrives.
func serve(ctx context.Context, server *graphql.Server, p *pipeline.Pipeline, cliCfg *CLIConfig) error {
	g, gctx := errgroup.WithContext(ctx)

	ready := make(chan struct{})
	g.Go(func() error {
		return server.Start(gctx, ready)
	})

	if cliCfg.Simulate {
		g.Go(func() error {
			simulateTraffic(gctx, p)
			return nil
		})
	}

	select {
	case <-ready:
		slog.Info("vector-api ready",
			"version", Version,
			"simulate", cliCfg.Simulate)
	case <-gctx.Done():
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server exited: %w", err)
	}
	return nil
}

// simulateTraffic drives synthetic flow through the demo pipeline so
// queries and flow subscriptions have live numbers to report.
func simulateTraffic(ctx context.Context, p *pipeline.Pipeline) {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	var pulses uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		pulses++

		for _, c := range p.Components("", 0) {
			if c.Paused() {
				continue
			}
			c.RecordIn()
			c.RecordOut()
			// A trickle of errors keeps health transitions observable.
			if pulses%40 == 0 && c.Kind() == pipeline.KindProcessor {
				c.RecordError()
				_ = p.SetHealth(c.Name(), pipeline.StateDegraded, "transient parse errors")
			} else if pulses%40 == 20 {
				_ = p.SetHealth(c.Name(), pipeline.StateHealthy, "")
			}
		}
	}
}
