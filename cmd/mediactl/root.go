package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jaki95/yt-media-server/config"
	"github.com/jaki95/yt-media-server/internal/service"
	"github.com/spf13/cobra"
)

const defaultConfigPath = "./config/config.yaml"

// commandContext lazily loads configuration and services for subcommands.
type commandContext struct {
	configPath *string
	cfg        *config.Config
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	cfg, err := config.Load(*c.configPath)
	if err != nil {
		return nil, err
	}

	// the CLI talks on stdout, so logs go to stderr and stay quiet by default
	level := slog.Level(cfg.LogLevel)
	if level < slog.LevelWarn {
		level = slog.LevelWarn
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	c.cfg = cfg
	return cfg, nil
}

func (c *commandContext) service(ctx context.Context) (*service.Service, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return service.New(ctx, cfg)
}

func newRootCommand() *cobra.Command {
	configFlag := defaultConfigPath
	ctx := &commandContext{configPath: &configFlag}

	rootCmd := &cobra.Command{
		Use:           "mediactl",
		Short:         "Manage the media server library",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", defaultConfigPath, "Configuration file path")

	rootCmd.AddCommand(newFetchCommand(ctx))
	rootCmd.AddCommand(newListCommand(ctx))
	rootCmd.AddCommand(newChaptersCommand(ctx))
	rootCmd.AddCommand(newHashPasswordCommand())

	return rootCmd
}
