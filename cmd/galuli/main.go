// Command galuli analyzes and instruments web pages for AI agent
// consumption: one-shot analysis, an instrumenting reverse proxy, and an
// MCP stdio server exposing page tools.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
