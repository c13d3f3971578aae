package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/pthm/hxnav/lib/config"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	baseURL    string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "hxnav",
		Short: "Headless navigation shell for server-rendered CMMS pages",
		Long: `hxnav mounts a CMMS layout page and navigates its content slot the
way the browser shell does: content pages are fetched, injected into the
layout and initialized, and links, row links, actions and SPA forms are
handled by the navigation engine.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "hxnav.yaml", "config file path")
	root.PersistentFlags().StringVar(&opts.baseURL, "base-url", "", "server origin, overrides the config file")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")

	root.AddCommand(
		newBrowseCmd(opts),
		newResolveCmd(),
		newDemoCmd(opts),
		newVersionCmd(),
	)
	return root
}

func (o *rootOptions) logger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func (o *rootOptions) config() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.baseURL != "" {
		cfg.BaseURL = o.baseURL
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
