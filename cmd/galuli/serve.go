package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/galuli/snippet/proxy"
)

var flagConfig string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the instrumenting reverse proxy in front of an origin site",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&flagConfig, "config", env("GALULI_CONFIG", "galuli.yaml"), "YAML configuration file")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := proxy.LoadFile(flagConfig)
	if err != nil {
		return err
	}
	if flagKey != "" {
		cfg.Snippet.Key = flagKey
	}
	if flagAPI != "" {
		cfg.Snippet.API = flagAPI
	}
	if flagDebug {
		cfg.Snippet.Debug = true
	}

	p, err := proxy.New(cfg, slog.Default())
	if err != nil {
		return err
	}
	defer p.Close()

	return p.ListenAndServe(ctx)
}
