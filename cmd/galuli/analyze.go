package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/PuerkitoBio/goquery"
	"github.com/spf13/cobra"

	"github.com/galuli/snippet/analyze"
	"github.com/galuli/snippet/engine"
	"github.com/galuli/snippet/fetch"
	"github.com/galuli/snippet/history"
)

var (
	flagRender   bool
	flagBrowser  string
	flagPush     bool
	flagNoSchema bool
	flagMarkdown bool
	flagHistory  string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <url>",
	Short: "Fetch a page, run a full instrumentation pass, and print the result",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().BoolVar(&flagRender, "render", false, "escalate to a headless browser for client-rendered pages")
	analyzeCmd.Flags().StringVar(&flagBrowser, "browser", "", "WebSocket URL of an external Chrome (implies --render)")
	analyzeCmd.Flags().BoolVar(&flagPush, "push", false, "push the analysis to the backend")
	analyzeCmd.Flags().BoolVar(&flagNoSchema, "no-schema", false, "skip JSON-LD schema injection")
	analyzeCmd.Flags().BoolVar(&flagMarkdown, "markdown", false, "print the page content as markdown instead of JSON")
	analyzeCmd.Flags().StringVar(&flagHistory, "history", "", "SQLite fingerprint store for change detection")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pageURL, err := url.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	fopts := []fetch.Option{fetch.WithLogger(slog.Default())}
	if flagRender || flagBrowser != "" {
		r := fetch.NewRenderer()
		r.RemoteURL = flagBrowser
		r.Logger = slog.Default()
		defer r.Close()
		fopts = append(fopts, fetch.WithRenderer(r))
	}
	res, err := fetch.New(fopts...).Fetch(ctx, pageURL.String())
	if err != nil {
		return err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.HTML))
	if err != nil {
		return fmt.Errorf("parse HTML: %w", err)
	}

	if flagMarkdown {
		fmt.Println(analyze.ContentMarkdown(doc, pageURL.String()))
		return nil
	}

	cfg := engine.Config{
		Key:        flagKey,
		APIBase:    flagAPI,
		Debug:      flagDebug,
		AutoSchema: !flagNoSchema,
		AutoPush:   flagPush,
	}
	eopts := []engine.Option{engine.WithLogger(slog.Default())}
	if flagHistory != "" {
		store, err := history.Open(flagHistory)
		if err != nil {
			return err
		}
		defer store.Close()
		eopts = append(eopts, engine.WithHistory(store))
	}
	eng, err := engine.New(cfg, pageURL, "", eopts...)
	if err != nil {
		return err
	}

	out := eng.Run(ctx, doc)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Page        *analyze.Page `json:"page"`
		Fingerprint string        `json:"fingerprint"`
		Rendered    bool          `json:"rendered"`
		Skipped     bool          `json:"skipped,omitempty"`
	}{out.Page, out.Fingerprint, res.Rendered, out.Skipped})
}
