package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/safar/resale-market/internal/analytics"
	"github.com/safar/resale-market/internal/database"
	"github.com/safar/resale-market/internal/media"
	"github.com/safar/resale-market/internal/notify"
	"github.com/safar/resale-market/internal/server"
	"github.com/spf13/cobra"
)

var migrateOnStart bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&migrateOnStart, "migrate", false, "Apply pending migrations before serving")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	log.Printf("Connected to database successfully")

	if migrateOnStart {
		if err := database.Migrate(cfg.Database.URL, database.Up); err != nil {
			return err
		}
	}

	rdb := analytics.Connect(ctx, cfg.Redis)
	if rdb != nil {
		defer rdb.Close()
	}

	storage, err := media.New(cfg.Media)
	if err != nil {
		return fmt.Errorf("init media storage: %w", err)
	}

	srv := server.New(cfg, db,
		analytics.NewTracker(db, rdb, cfg.Redis.ViewWindow),
		storage,
		notify.New(db, cfg.Mail),
	)
	return srv.Run(ctx)
}
