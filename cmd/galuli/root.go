package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagKey   string
	flagAPI   string
	flagDebug bool
)

var rootCmd = &cobra.Command{
	Use:           "galuli",
	Short:         "Make websites readable and actionable for AI agents",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		slog.SetDefault(newLogger())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagKey, "key", env("GALULI_KEY", ""), "tenant key")
	rootCmd.PersistentFlags().StringVar(&flagAPI, "api", env("GALULI_API", ""), "backend API base URL")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
}

func newLogger() *slog.Logger {
	lvl := slog.LevelInfo
	if flagDebug || env("LOG_LEVEL", "") == "debug" {
		lvl = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
