package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/opencdms-dev/opencdms-api/internal/api"
	"github.com/opencdms-dev/opencdms-api/internal/config"
	"github.com/opencdms-dev/opencdms-api/internal/events"
	"github.com/opencdms-dev/opencdms-api/internal/health"
	"github.com/opencdms-dev/opencdms-api/internal/logger"
	"github.com/opencdms-dev/opencdms-api/internal/observability"
	"github.com/opencdms-dev/opencdms-api/internal/registry"
	"github.com/opencdms-dev/opencdms-api/internal/render"
	"github.com/opencdms-dev/opencdms-api/internal/server"

	_ "github.com/opencdms-dev/opencdms-api/internal/provider/memory"
	_ "github.com/opencdms-dev/opencdms-api/internal/provider/postgres"
	_ "github.com/opencdms-dev/opencdms-api/internal/provider/redisprov"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	resourceFlag := flag.String("resources", "", "path to the resource file")
	flag.Parse()

	cfg := config.FromEnv()
	if *resourceFlag != "" {
		cfg.ResourceFile = strings.TrimSpace(*resourceFlag)
	}

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		Component: "api",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	observability.ExposeBuildInfo(Version)
	appLog.Info("starting api",
		"addr", cfg.Addr,
		"version", Version,
		"resources", cfg.ResourceFile)

	meta, collections, err := config.LoadResources(cfg.ResourceFile)
	if err != nil {
		appLog.Error("load resources", "err", err)
		return 1
	}

	reg, err := registry.New(collections)
	if err != nil {
		appLog.Error("build registry", "err", err)
		return 1
	}

	renderer, err := render.NewHTMLRenderer()
	if err != nil {
		appLog.Error("load templates", "err", err)
		return 1
	}

	var publisher *events.Publisher
	if cfg.Events.Enabled {
		publisher, err = events.NewPublisher(
			strings.Split(cfg.Events.Brokers, ","),
			cfg.Events.Topic,
			cfg.Events.QueueSize,
			appLog,
		)
		if err != nil {
			appLog.Error("events producer", "err", err)
			return 1
		}
		defer func() {
			if err := publisher.Close(); err != nil {
				appLog.Error("events close", "err", err)
			}
		}()
	}

	engine, err := api.NewEngine(api.Options{
		Registry:        reg,
		Renderer:        renderer,
		Logger:          appLog,
		BaseURL:         cfg.BaseURL,
		DefaultLimit:    cfg.DefaultLimit,
		MaxLimit:        cfg.MaxLimit,
		DefaultLanguage: cfg.DefaultLanguage,
		CQLCacheSize:    cfg.CQLCacheSize,
		Publisher:       publisher,
	})
	if err != nil {
		appLog.Error("build engine", "err", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	handler := server.NewRouter(cfg, server.Options{
		Engine: engine,
		Meta:   meta,
		Logger: &zl,
		Checks: map[string]health.Check{
			"providers": reg.Ping,
		},
	})

	if err := server.Run(ctx, cfg, &zl, handler); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}
