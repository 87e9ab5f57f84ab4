package cli

import (
	"fmt"

	"github.com/safar/resale-market/internal/config"
	"github.com/safar/resale-market/internal/database"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down]",
	Short:     "Apply or roll back the schema migrations",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{string(database.Up), string(database.Down)},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		return database.Migrate(cfg.Database.URL, database.Direction(args[0]))
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
