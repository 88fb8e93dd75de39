/*
Package main is the entry point for the search-tracker CLI.

search-tracker records user interactions with search results (clicks,
add-to-cart, purchases, redirects, promotion clicks), keeps them in a durable
local backlog and delivers them to the search collector with at-least-once
semantics.

Usage:
  search-tracker [command]

Available Commands:
  init        Create or update the configuration file
  track       Record an event attributed to the current query
  add         Record an event for an explicit query id
  flush       Deliver all pending events now
  purge       Remove submitted events older than the retention window
  list        List tracked events in the backlog
  serve       Run as a sidecar reading JSON lines on stdin
  version     Show version information

Examples:
  # Configure the collector
  search-tracker init --endpoint https://search.example.com --collection products --account-id acme

  # Record a click for query 8f2c
  search-tracker add 8f2c click sku-123

  # Run as a sidecar with metrics
  search-tracker serve --metrics-addr :9464

Build version information is injected with
  -ldflags "-X github.com/khanglvm/search-tracker/internal/version.Version=v1.0.0"
*/
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/khanglvm/search-tracker/internal/cli"
	"github.com/khanglvm/search-tracker/internal/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "search-tracker",
		Short: "Durable search event tracking with at-least-once delivery",
		Long: `search-tracker records interactions with search results against the
query that produced them, persists them across restarts and delivers them to
the search collector.

Undelivered events are retried on every flush; delivered events are purged
once they are older than the retention window (30 days by default).`,
		Version:       version.GetVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cli.AddConfigFlag(rootCmd)

	rootCmd.AddCommand(cli.NewInitCmd())
	rootCmd.AddCommand(cli.NewTrackCmd())
	rootCmd.AddCommand(cli.NewAddCmd())
	rootCmd.AddCommand(cli.NewFlushCmd())
	rootCmd.AddCommand(cli.NewPurgeCmd())
	rootCmd.AddCommand(cli.NewListCmd())
	rootCmd.AddCommand(cli.NewServeCmd())
	rootCmd.AddCommand(cli.NewVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
