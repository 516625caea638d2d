package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"siaguard/internal/account"
	"siaguard/internal/api"
	"siaguard/internal/audit"
	"siaguard/internal/config"
	"siaguard/internal/counter"
	"siaguard/internal/events"
	"siaguard/internal/forward"
	"siaguard/internal/logging"
	"siaguard/internal/model"
	"siaguard/internal/protocol"
	"siaguard/internal/server"
	"siaguard/internal/storage"
)

const version = "0.1.0"

func main() {
	configPath := flag.String("config", "siaguard.yaml", "path to config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("siaguard %s\n", version)
		return
	}
	if err := run(config.ResolvePath(*configPath)); err != nil {
		fmt.Fprintf(os.Stderr, "siaguard: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	mgr, err := config.NewManager(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg := mgr.Get()
	logger := logging.NewLogger(cfg.LogLevel)
	logger.Info("starting siaguard", "version", version, "config_path", configPath)

	registry, err := account.BuildRegistry(cfg.Accounts)
	if err != nil {
		return fmt.Errorf("build accounts: %w", err)
	}
	logger.Info("accounts loaded", "count", registry.Len())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	counts := counter.NewSet()
	eventStore := events.NewStore(cfg.Events.StoreLimit)

	store, err := storage.NewStore(cfg.Storage)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	if store != nil {
		if err := store.Init(ctx); err != nil {
			return fmt.Errorf("init storage: %w", err)
		}
		defer store.Close()
		logger.Info("storage enabled", "driver", cfg.Storage.Driver)
	}

	forwarder := forward.New(cfg.Forward, logging.ForComponent(logger, "forward"))
	if forwarder != nil {
		defer forwarder.Close()
		logger.Info("kafka forwarding enabled", "brokers", cfg.Forward.Brokers, "topic", cfg.Forward.Topic)
	}

	dispatch := func(ev *model.Event) error {
		eventStore.Add(*ev)
		var errs []error
		if store != nil {
			if err := store.SaveEvent(ctx, ev); err != nil {
				errs = append(errs, fmt.Errorf("save event: %w", err))
			}
		}
		if forwarder != nil {
			if err := forwarder.Publish(ctx, ev); err != nil {
				errs = append(errs, fmt.Errorf("publish event: %w", err))
			}
		}
		return errors.Join(errs...)
	}

	engine := protocol.NewEngine(registry, counts, dispatch, logging.ForComponent(logger, "protocol"))
	if cfg.Audit.Enabled {
		auditLog := audit.New(cfg.Audit.Path, cfg.Audit.MaxSizeMB, cfg.Audit.MaxBackups)
		defer auditLog.Close()
		engine.SetAuditSink(auditLog.Sink())
		logger.Info("audit log enabled", "path", cfg.Audit.Path)
	}

	srvLogger := logging.ForComponent(logger, "server")
	if cfg.Server.TCP.Enabled {
		if _, err := server.StartTCP(ctx, cfg.Server.TCP.Addr, engine, srvLogger); err != nil {
			return fmt.Errorf("start tcp: %w", err)
		}
	}
	if cfg.Server.UDP.Enabled {
		if _, err := server.StartUDP(ctx, cfg.Server.UDP.Addr, engine, srvLogger); err != nil {
			return fmt.Errorf("start udp: %w", err)
		}
	}
	if cfg.Server.EventLoop.Enabled {
		if _, err := server.StartEventLoop(ctx, cfg.Server.EventLoop.Addr, engine, srvLogger); err != nil {
			return fmt.Errorf("start eventloop: %w", err)
		}
	}

	api.Start(ctx, mgr, registry, counts, eventStore, logging.ForComponent(logger, "api"), version)

	go mgr.Watch(0, func(next *config.Config) {
		// Accounts and transports are fixed for the process lifetime.
		logger.Info("config file changed, restart to apply", "accounts", len(next.Accounts))
	}, func(err error) {
		logger.Warn("config watch error", "err", err)
	}, ctx.Done())

	if store != nil {
		go saveCountsLoop(ctx, store, counts, logger)
	}

	<-ctx.Done()
	logger.Info("shutting down", "counters", counts.Snapshot())
	if store != nil {
		ctxSave, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.SaveCounts(ctxSave, counts.Snapshot()); err != nil {
			logger.Warn("final counter save failed", "err", err)
		}
	}
	return nil
}

func saveCountsLoop(ctx context.Context, store storage.Store, counts *counter.Set, logger *slog.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := store.SaveCounts(ctx, counts.Snapshot()); err != nil {
				logger.Warn("periodic counter save failed", "err", err)
			}
		}
	}
}
