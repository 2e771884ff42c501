package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jaki95/yt-media-server/config"
	"github.com/jaki95/yt-media-server/internal/server"
	"github.com/jaki95/yt-media-server/internal/service"
)

func main() {
	configPath := flag.String("config", "./config/config.yaml", "Path to the configuration file")
	port := flag.String("port", "", "Server port (overrides config)")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		os.Exit(1)
	}
	cfg.SetPort(*port)

	// Setup logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.Level(cfg.LogLevel)}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := service.New(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialise services", "error", err)
		os.Exit(1)
	}
	defer svc.Close()

	srv := server.New(cfg, server.Deps{
		Catalog:  svc.Catalog,
		Chapters: svc.Chapters,
		Acquirer: svc.Pipeline,
	})

	slog.Info("Starting media server", "host", cfg.Server.Host, "port", cfg.Server.Port, "baseURL", cfg.BaseURL)
	if err := srv.Start(ctx); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}
