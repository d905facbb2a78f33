// Package main implements the nats-dashboard daemon: a subscription
// multiplexer letting many dashboard widgets observe live NATS traffic
// through shared subscriptions, with a diagnostics API for operators.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/skeeeon/nats-dashboard-sub001/config"
	"github.com/skeeeon/nats-dashboard-sub001/conn"
	"github.com/skeeeon/nats-dashboard-sub001/diag"
	"github.com/skeeeon/nats-dashboard-sub001/extract"
	"github.com/skeeeon/nats-dashboard-sub001/health"
	"github.com/skeeeon/nats-dashboard-sub001/metric"
	"github.com/skeeeon/nats-dashboard-sub001/mux"
	"github.com/skeeeon/nats-dashboard-sub001/pkg/retry"
)

const (
	Version = "0.1.0"
	appName = "nats-dashboard"

	shutdownTimeout = 10 * time.Second
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
		slog.Error("application failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config file (JSON or YAML); defaults apply when omitted")
	logFormat := flag.String("log-format", "text", "log output format: text or json")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := setupLogger(cfg.LogLevel, *logFormat)
	slog.SetDefault(logger)

	slog.Info("starting nats-dashboard",
		"version", Version,
		"nats_url", cfg.NATS.URL,
		"http_addr", cfg.HTTP.Addr)

	metricsRegistry := metric.NewMetricsRegistry()
	monitor := health.NewMonitor()

	signalCtx, signalCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	client, err := setupNATSClient(signalCtx, cfg, logger, metricsRegistry, monitor)
	if err != nil {
		return err
	}
	defer client.Close(context.Background())

	multiplexer, err := setupMultiplexer(cfg, client, logger, metricsRegistry)
	if err != nil {
		return err
	}

	server, err := diag.NewServer(cfg.HTTP.Addr, multiplexer,
		diag.WithLogger(logger),
		diag.WithMetrics(metricsRegistry),
		diag.WithHealthMonitor(monitor),
	)
	if err != nil {
		return fmt.Errorf("create diagnostics server: %w", err)
	}

	return runGroup(signalCtx, multiplexer, server)
}

// setupNATSClient builds the transport client and connects with startup
// retries; a NATS server briefly unavailable at boot is routine.
func setupNATSClient(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	metricsRegistry *metric.MetricsRegistry,
	monitor *health.Monitor,
) (*conn.Client, error) {
	opts := []conn.ClientOption{
		conn.WithName(cfg.NATS.Name),
		conn.WithMaxReconnects(cfg.NATS.MaxReconnects),
		conn.WithReconnectWait(cfg.NATS.ReconnectWait),
		conn.WithConnectTimeout(cfg.NATS.ConnectTimeout),
		conn.WithLogger(logger.With("component", "conn")),
		conn.WithMetrics(metricsRegistry),
		conn.WithHealthChangeCallback(func(healthy bool) {
			if healthy {
				monitor.Update("nats", health.NewHealthy("nats", "connected"))
			} else {
				monitor.Update("nats", health.NewUnhealthy("nats", "connection lost"))
			}
		}),
	}
	if cfg.NATS.Username != "" {
		opts = append(opts, conn.WithCredentials(cfg.NATS.Username, cfg.NATS.Password))
	}
	if cfg.NATS.Token != "" {
		opts = append(opts, conn.WithToken(cfg.NATS.Token))
	}

	client, err := conn.NewClient(cfg.NATS.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("create NATS client: %w", err)
	}

	slog.Info("connecting to NATS", "url", cfg.NATS.URL)
	err = retry.Do(ctx, retry.Quick(), func() error {
		return client.Connect(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	monitor.Update("nats", health.NewHealthy("nats", "connected"))
	return client, nil
}

func setupMultiplexer(
	cfg *config.Config,
	client *conn.Client,
	logger *slog.Logger,
	metricsRegistry *metric.MetricsRegistry,
) (*mux.Multiplexer, error) {
	policy := mux.DropOldest
	if cfg.Mux.OverflowPolicy == "drop_newest" {
		policy = mux.DropNewest
	}

	multiplexer, err := mux.New(client, extract.NewJSONExtractor(),
		mux.WithLogger(logger),
		mux.WithMetrics(metricsRegistry),
		mux.WithQueueCapacity(cfg.Mux.MaxQueueSize),
		mux.WithDrainBudget(cfg.Mux.DrainBudget),
		mux.WithOverflowPolicy(policy),
		mux.WithMemoryBudget(cfg.Mux.MemoryBudget),
		mux.WithMemoryThresholds(cfg.Mux.MemoryWarn, cfg.Mux.MemoryCritical),
	)
	if err != nil {
		return nil, fmt.Errorf("create multiplexer: %w", err)
	}
	return multiplexer, nil
}

// runGroup runs the multiplexer and diagnostics server until a shutdown
// signal arrives, then stops them with a bounded grace period.
func runGroup(ctx context.Context, multiplexer *mux.Multiplexer, server *diag.Server) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := multiplexer.Start(gctx); err != nil {
			return fmt.Errorf("start multiplexer: %w", err)
		}
		<-gctx.Done()
		return multiplexer.Stop(shutdownTimeout)
	})

	g.Go(func() error {
		if err := server.Start(gctx); err != nil {
			return fmt.Errorf("start diagnostics server: %w", err)
		}
		<-gctx.Done()
		return server.Stop(shutdownTimeout)
	})

	slog.Info("nats-dashboard started")
	err := g.Wait()
	slog.Info("nats-dashboard shutdown complete")
	return err
}
