// Command a2akernel runs a standalone agent-to-agent protocol node: it
// loads a JSON config, starts the manager with its configured transports,
// and serves dispatch metrics for Prometheus scrapers.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clduab11/gemini-flow-sub001/a2a"
	"github.com/clduab11/gemini-flow-sub001/observability"
)

func main() {
	var (
		configFile    = flag.String("config", "", "Path to agent config JSON file (required)")
		agentID       = flag.String("agent-id", "", "Agent identity (overrides config)")
		listen        = flag.String("listen", "", "WebSocket listen address (overrides config)")
		metricsListen = flag.String("metrics-listen", "", "Prometheus metrics listen address; empty disables the endpoint")
		verbose       = flag.Bool("verbose", false, "Enable verbose logging to stderr")
	)
	flag.Parse()

	if *configFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: a2akernel -config <file>")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := a2a.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *agentID != "" {
		cfg.AgentID = *agentID
	}
	if *listen != "" {
		overrideListen(cfg, *listen)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))

	manager := a2a.New(*cfg, a2a.WithObserver(observability.NewSlogObserver(logger)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := manager.Initialize(ctx); err != nil {
		log.Fatalf("Failed to initialize agent: %v", err)
	}
	logger.Info("agent ready", "agent_id", manager.AgentID())

	var metricsServer *http.Server
	if *metricsListen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", manager.MetricsHandler())
		metricsServer = &http.Server{Addr: *metricsListen, Handler: mux}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		logger.Info("metrics endpoint ready", "listen", *metricsListen)
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if metricsServer != nil {
		_ = metricsServer.Shutdown(shutdownCtx)
	}
	if err := manager.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown finished with errors", "error", err)
	}
}

// overrideListen points the first websocket transport at addr, adding one
// when the config declares none.
func overrideListen(cfg *a2a.Config, addr string) {
	for i := range cfg.Transports {
		if cfg.Transports[i].Type == "websocket" {
			cfg.Transports[i].Listen = addr
			return
		}
	}
	cfg.Transports = append(cfg.Transports, a2a.TransportConfig{Type: "websocket", Listen: addr})
}
