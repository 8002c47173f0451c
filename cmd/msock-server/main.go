package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/jceel/msock/internal/config"
	"github.com/jceel/msock/internal/logging"
	"github.com/jceel/msock/internal/maintenance"
	"github.com/jceel/msock/internal/monitor"
	"github.com/jceel/msock/msock"
)

func main() {
	configPath := flag.String("config", "/etc/msock/server.yaml", "path to server config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	logger, closer := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File, "msock-server")
	defer closer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	sysMonitor := monitor.NewSystemMonitor(logger, cfg.Monitor.Interval)
	sysMonitor.Start()
	defer sysMonitor.Stop()

	activeConns := newConnectionRegistry()

	if cfg.Maintenance.Schedule != "" {
		job := &maintenance.Job{
			Name:     "connection-report",
			Schedule: cfg.Maintenance.Schedule,
			RunFunc: func(ctx context.Context) error {
				stats := sysMonitor.Stats()
				logger.Info("maintenance tick",
					"active_connections", activeConns.count(),
					"cpu_percent", stats.CPUPercent,
					"memory_percent", stats.MemoryPercent,
				)
				return nil
			},
		}
		sched, err := maintenance.NewScheduler(logger, []*maintenance.Job{job})
		if err != nil {
			return fmt.Errorf("building maintenance scheduler: %w", err)
		}
		sched.Start()
		defer sched.Stop(ctx)
	}

	ln, err := msock.Listen(cfg.Listen.Address, connConfig(cfg, logger))
	if err != nil {
		return fmt.Errorf("listening on %q: %w", cfg.Listen.Address, err)
	}
	defer ln.Close()

	logger.Info("msock server listening", "address", ln.Addr().String())

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept(msock.Callbacks{
			OnChannelCreated: func(ch *msock.Channel) {
				logger.Debug("channel created", "channel", ch.ID(), "type", ch.Type())
			},
			OnClosed: func() {
				logger.Debug("connection closed")
			},
		})
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				logger.Warn("accept failed", "error", err)
				continue
			}
		}

		activeConns.add(conn)
		logger.Info("accepted connection")
	}
}

func connConfig(cfg *config.Config, logger *slog.Logger) msock.Config {
	return msock.Config{
		ChannelBufferSize: int(cfg.Channels.BufferSizeRaw),
		MaxFrameLength:    uint32(cfg.Channels.MaxFrameRaw),
		Logger:            logger,
	}
}

// connectionRegistry is a minimal thread-safe set of live connections,
// just enough for the maintenance job to report a count against.
type connectionRegistry struct {
	mu    sync.Mutex
	conns map[*msock.Connection]struct{}
}

func newConnectionRegistry() *connectionRegistry {
	return &connectionRegistry{conns: make(map[*msock.Connection]struct{})}
}

func (r *connectionRegistry) add(c *msock.Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[c] = struct{}{}
}

func (r *connectionRegistry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}
