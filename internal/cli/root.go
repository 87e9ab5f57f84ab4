// Package cli holds the market command tree: the HTTP server, schema
// migrations and the operator commands that stand in for an admin UI.
package cli

import (
	"database/sql"
	"fmt"
	"os"
	"strconv"

	"github.com/safar/resale-market/internal/config"
	"github.com/safar/resale-market/internal/database"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "market",
	Short: "Resale marketplace API and operator tools",
	Long: `market runs the resale marketplace HTTP API.

Besides "serve" it applies schema migrations and exposes the operator
actions: approving reviews, verifying or blocking sellers and moving
orders through their statuses.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func openDB() (*config.Config, *sql.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	return cfg, db, nil
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid id %q", arg)
	}
	return id, nil
}
