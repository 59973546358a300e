package main

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/PuerkitoBio/goquery"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/galuli/snippet/analyze"
	"github.com/galuli/snippet/engine"
	"github.com/galuli/snippet/fetch"
	"github.com/galuli/snippet/webmcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp <url>",
	Short: "Expose a page's tools over MCP on stdio",
	Long: `Fetches the page, derives its tools (page info, content, and one tool
per discovered form), and serves them to an MCP client over stdio.`,
	Args: cobra.ExactArgs(1),
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().BoolVar(&flagRender, "render", false, "escalate to a headless browser for client-rendered pages")
	mcpCmd.Flags().StringVar(&flagBrowser, "browser", "", "WebSocket URL of an external Chrome (implies --render)")
}

func runMCP(cmd *cobra.Command, args []string) error {
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

	page := analyze.Extract(doc, pageURL)
	tools := webmcp.BuildTools(page)

	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "galuli",
		Version: engine.Version,
	}, nil)
	webmcp.AddToServer(srv, tools)

	slog.Info("mcp: serving page tools on stdio",
		"url", pageURL.String(), "tools", len(tools))
	return srv.Run(ctx, &mcp.StdioTransport{})
}
