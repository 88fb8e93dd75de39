package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/khanglvm/search-tracker/internal/logger"
	"github.com/khanglvm/search-tracker/internal/tracking"
)

// NewListCmd creates the 'list' command for inspecting the event backlog.
func NewListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list [value]",
		Aliases: []string{"ls"},
		Short:   "List tracked events in the backlog",
		Long:    `Display the stored event backlog, optionally for a single tracked value.`,
		Example: `  search-tracker list
  search-tracker ls sku-123
  search-tracker list --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var value string
			if len(args) == 1 {
				value = args[0]
			}
			return runList(cmd, value, jsonOutput)
		},
	}

	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")

	return cmd
}

// runList reads the backlog straight from the store; nothing is delivered.
func runList(cmd *cobra.Command, value string, jsonOutput bool) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	store, closeStore, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	ledger := tracking.NewLedger(store, cfg.Storage.Key)
	if err := ledger.Load(cmd.Context()); err != nil {
		return fmt.Errorf("failed to read event backlog: %w", err)
	}

	values := ledger.Values()
	if value != "" {
		values = []string{value}
	}

	entries := make(map[string][]tracking.Event, len(values))
	for _, v := range values {
		if events := ledger.Events(v); len(events) > 0 {
			entries[v] = events
		}
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		s, err := formatJSON(entries)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, s)
		return nil
	}

	if len(entries) == 0 {
		fmt.Fprintln(out, "No events tracked.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VALUE\tTYPE\tQUERY\tTIME\tSTATUS")
	for _, v := range values {
		for _, e := range entries[v] {
			status := "pending"
			if e.Submitted {
				status = "submitted"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", v, e.Type, e.QueryID, e.Time().UTC().Format(time.RFC3339), status)
		}
	}
	return w.Flush()
}
