package cli

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/khanglvm/search-tracker/internal/tracking"
)

// NewTrackCmd creates the 'track' command, which records an event and
// attributes it to a query automatically.
func NewTrackCmd() *cobra.Command {
	var (
		queryID string
		meta    []string
	)

	cmd := &cobra.Command{
		Use:   "track <type> <value>",
		Short: "Record an event attributed to the current query",
		Long: `Record an interaction with a result and deliver it to the collector.

Funnel entry events (click, redirect, promotion_click) belong to the query
given with --query-id. Other events (add_to_cart, purchase, ...) belong to the
query of the most recent event recorded for the same value, falling back to
--query-id. When no query can be found the event is skipped.`,
		Example: `  search-tracker track click sku-123 --query-id 8f2c
  search-tracker track add_to_cart sku-123 --meta quantity=2
  search-tracker track purchase sku-123 --meta price=19.99 --meta currency=EUR`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			metadata, err := parseMetadata(meta)
			if err != nil {
				return err
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			if queryID != "" {
				a.tracker.UpdateQueryID(queryID)
			}
			outcome := a.tracker.Track(cmd.Context(), args[0], args[1], metadata)
			return reportOutcome(cmd, outcome, args[0], args[1])
		},
	}

	cmd.Flags().StringVarP(&queryID, "query-id", "q", "", "Current search query id")
	cmd.Flags().StringArrayVarP(&meta, "meta", "m", nil, "Metadata as key=value (repeatable)")

	return cmd
}

// NewAddCmd creates the 'add' command, which records an event for an
// explicit query id.
func NewAddCmd() *cobra.Command {
	var meta []string

	cmd := &cobra.Command{
		Use:   "add <query-id> <type> <value>",
		Short: "Record an event for an explicit query id",
		Long: `Append an event to the backlog for the given query id and deliver it.
Undelivered events are retried on the next flush.`,
		Example: `  search-tracker add 8f2c click sku-123
  search-tracker add 8f2c purchase sku-123 --meta price=19.99`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			metadata, err := parseMetadata(meta)
			if err != nil {
				return err
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			outcome := a.tracker.Add(cmd.Context(), args[0], args[1], args[2], metadata)
			return reportOutcome(cmd, outcome, args[1], args[2])
		},
	}

	cmd.Flags().StringArrayVarP(&meta, "meta", "m", nil, "Metadata as key=value (repeatable)")

	return cmd
}

func reportOutcome(cmd *cobra.Command, outcome tracking.Outcome, eventType, value string) error {
	switch outcome {
	case tracking.OutcomeRecorded:
		fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s for %s\n", eventType, value)
		return nil
	case tracking.OutcomeSkipped:
		fmt.Fprintf(cmd.ErrOrStderr(), "Skipped %s for %s: no query id to attribute it to\n", eventType, value)
		return nil
	default:
		return fmt.Errorf("event %s for %s was rejected", eventType, value)
	}
}

// parseMetadata turns key=value pairs into event metadata. true and false
// become booleans, finite numbers become float64, anything else a string.
func parseMetadata(pairs []string) (tracking.Metadata, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	meta := make(tracking.Metadata, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid metadata %q: expected key=value", pair)
		}
		meta[key] = parseMetaValue(raw)
	}
	return meta, nil
}

func parseMetaValue(raw string) any {
	switch raw {
	case "true":
		return true
	case "false":
		return false
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return f
	}
	return raw
}
