package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewFlushCmd creates the 'flush' command.
func NewFlushCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flush",
		Short: "Deliver all pending events now",
		Long: `Retry delivery of every event that has not been submitted yet.
Events that still fail stay in the backlog for the next flush.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, appOptions{ManualStartup: true})
			if err != nil {
				return err
			}
			defer a.Close()

			res := a.tracker.Flush(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "Delivered %d of %d pending events (%d failed, %d still pending)\n",
				res.Delivered, res.Attempted, res.Failed, a.tracker.Pending())
			return nil
		},
	}

	return cmd
}

// NewPurgeCmd creates the 'purge' command.
func NewPurgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Remove submitted events older than the retention window",
		Long: `Drop submitted events whose timestamp is older than
tracking.retentionDays (default 30). Pending events are never removed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, appOptions{ManualStartup: true})
			if err != nil {
				return err
			}
			defer a.Close()

			removed := a.tracker.Purge(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "Purged %d expired events\n", removed)
			return nil
		},
	}

	return cmd
}
