package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hupe1980/docmesh"
	"github.com/hupe1980/docmesh/config"
	"github.com/hupe1980/docmesh/core"
	"github.com/hupe1980/docmesh/ingest"
	"github.com/hupe1980/docmesh/logging"
	"github.com/hupe1980/docmesh/natsbus"
	"github.com/hupe1980/docmesh/scheduler"
	"github.com/hupe1980/docmesh/server"
)

var version = "dev"

// notificationTimeout bounds the handling of one bucket notification.
const notificationTimeout = 5 * time.Minute

func main() {
	cmd := "serve"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	var err error
	switch cmd {
	case "serve":
		err = runServe()
	case "run":
		err = runTask(strings.Join(os.Args[2:], " "))
	case "ingest":
		err = runIngest()
	case "version":
		fmt.Printf("docmesh %s\n", version)
	default:
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		slog.Error(cmd+" failed", "error", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: docmesh <command>

Commands:
  serve         Start the HTTP service (default)
  run <task>    Execute one dispatch run and print its result
  ingest        Index the configured bucket once
  version       Print version

The configuration file is read from $DOCMESH_CONFIG or config/docmesh.yaml.
`)
}

func load() (*config.Config, logging.Logger, error) {
	cfg, err := config.Load("")
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := docmesh.NewLogger(cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logger, nil
}

func runServe() error {
	cfg, logger, err := load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("docmesh.starting", "version", version)

	hub := server.NewHub(logger)
	sinks := []core.EventSink{hub}

	// NATS is optional: embedded for local setups or an external server.
	var bus *natsbus.Client
	switch {
	case cfg.NATS.Embedded:
		ns, err := natsbus.New()
		if err != nil {
			return fmt.Errorf("init nats: %w", err)
		}
		defer ns.Close()
		if bus, err = natsbus.NewClient(ns); err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		logger.Info("nats.started", "url", ns.ClientURL())
	case cfg.NATS.URL != "":
		if bus, err = natsbus.NewClientFromURL(cfg.NATS.URL); err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		logger.Info("nats.connected", "url", cfg.NATS.URL)
	}
	if bus != nil {
		defer bus.Close()
		sinks = append(sinks, natsbus.NewPublisher(bus, logger))
	}

	mesh, l, err := docmesh.NewFromConfig(ctx, cfg, func(o *docmesh.Options) {
		o.Sinks = sinks
		o.Logger = logger
	})
	if err != nil {
		return err
	}
	defer mesh.Close()

	if err := mesh.Prepare(ctx); err != nil {
		// The stores may become reachable after startup.
		logger.Warn("docmesh.prepare.error", "error", err.Error())
	}

	if bus != nil {
		sub, err := ingest.Subscribe(bus, cfg.NATS.BucketSubject, mesh.Pipeline(), notificationTimeout, logger)
		if err != nil {
			return fmt.Errorf("subscribe bucket events: %w", err)
		}
		defer func() { _ = sub.Unsubscribe() }()
		logger.Info("ingest.subscribed", "subject", cfg.NATS.BucketSubject)
	}

	if cfg.Ingest.Schedule != "" {
		sched, err := scheduler.New(cfg.Ingest.Schedule, func(ctx context.Context) error {
			_, err := mesh.IndexBucket(ctx)
			return err
		}, func(o *scheduler.Options) { o.Logger = logger })
		if err != nil {
			return fmt.Errorf("init scheduler: %w", err)
		}
		go func() { _ = sched.Start(ctx) }()
	}

	srv := server.New(mesh.Runner(), mesh.Invoker(), func(o *server.Options) {
		o.Addr = cfg.Server.Addr
		o.Pipeline = mesh.Pipeline()
		o.Hub = hub
		o.Class = cfg.Weaviate.Class
		o.Logger = logger
		if l != nil {
			o.Runs = l
		}
	})

	err = srv.Start(ctx)
	logger.Info("docmesh.stopped")
	return err
}

func runTask(task string) error {
	if strings.TrimSpace(task) == "" {
		printUsage()
		return errors.New("a task is required")
	}

	cfg, logger, err := load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mesh, _, err := docmesh.NewFromConfig(ctx, cfg, func(o *docmesh.Options) { o.Logger = logger })
	if err != nil {
		return err
	}
	defer mesh.Close()

	res, err := mesh.Run(ctx, task)
	if err != nil {
		return err
	}

	out := map[string]any{
		"run_id":   res.RunID,
		"status":   res.Outcome,
		"turns":    res.Turns,
		"messages": res.Messages,
	}
	if res.Err != nil {
		out["error"] = res.Err.Error()
	}
	if err := printJSON(out); err != nil {
		return err
	}

	if res.Outcome == core.OutcomeFailure {
		return res.Err
	}
	return nil
}

func runIngest() error {
	cfg, logger, err := load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mesh, _, err := docmesh.NewFromConfig(ctx, cfg, func(o *docmesh.Options) { o.Logger = logger })
	if err != nil {
		return err
	}
	defer mesh.Close()

	if err := mesh.Prepare(ctx); err != nil {
		return err
	}

	report, err := mesh.IndexBucket(ctx)
	if err != nil {
		return err
	}
	return printJSON(report)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
