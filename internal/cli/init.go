package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/khanglvm/search-tracker/internal/config"
)

// NewInitCmd creates the 'init' command, which writes or updates the
// configuration file.
func NewInitCmd() *cobra.Command {
	var (
		endpoint   string
		collection string
		accountID  string
		backend    string
		dbPath     string
		redisAddr  string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create or update the search-tracker configuration",
		Long: `Write ~/.search-tracker.json (or the --config path), creating it with
defaults if it does not exist. Flags that are set overwrite the stored values;
everything else is kept.`,
		Example: `  search-tracker init --endpoint https://search.example.com --collection products --account-id acme
  search-tracker init --backend redis --redis-address localhost:6379
  search-tracker --config ./tracker.yaml init --backend memory`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath(cmd)
			if err != nil {
				return err
			}

			cfg, created, err := config.LoadOrCreate(path)
			if err != nil {
				return err
			}

			set := func(dst *string, v string) {
				if v != "" {
					*dst = v
				}
			}
			set(&cfg.Collector.Endpoint, endpoint)
			set(&cfg.Collector.Collection, collection)
			set(&cfg.Collector.AccountID, accountID)
			set(&cfg.Storage.Backend, backend)
			set(&cfg.Storage.Path, dbPath)
			set(&cfg.Storage.Redis.Address, redisAddr)

			if err := config.Save(cfg, path); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if created {
				fmt.Fprintf(out, "Created %s\n", path)
			} else {
				fmt.Fprintf(out, "Updated %s\n", path)
			}
			if err := cfg.Validate(); err != nil {
				fmt.Fprintf(out, "\nConfiguration is incomplete:\n%v\n", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&endpoint, "endpoint", "", "Collector base URL")
	cmd.Flags().StringVar(&collection, "collection", "", "Collection events are recorded against")
	cmd.Flags().StringVar(&accountID, "account-id", "", "Account id sent with every event")
	cmd.Flags().StringVar(&backend, "backend", "", "Storage backend: sqlite, redis or memory")
	cmd.Flags().StringVar(&dbPath, "db-path", "", "SQLite database file")
	cmd.Flags().StringVar(&redisAddr, "redis-address", "", "Redis address (host:port)")

	return cmd
}
