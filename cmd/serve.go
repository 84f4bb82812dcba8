package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/photo-tagger/internal/config"
	"github.com/kozaktomas/photo-tagger/internal/constants"
	"github.com/kozaktomas/photo-tagger/internal/database"
	"github.com/kozaktomas/photo-tagger/internal/database/mysql"
	"github.com/kozaktomas/photo-tagger/internal/database/postgres"
	"github.com/kozaktomas/photo-tagger/internal/embedder"
	"github.com/kozaktomas/photo-tagger/internal/exif"
	"github.com/kozaktomas/photo-tagger/internal/library"
	"github.com/kozaktomas/photo-tagger/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Photo Tagger web server.
The server accepts photo uploads, runs AI analysis jobs, lets clients
edit the generated metadata and exports tagged photos as downloads,
archives or CSV manifests.

Photos live in memory for the session. When DATABASE_URL is set, their
metadata and fingerprints are also persisted to PostgreSQL or MySQL.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
}

// initDatabase connects the configured storage backend. An unset URL is
// not an error, the server then runs memory-only.
func initDatabase(cfg *config.Config) error {
	if cfg.Database.URL == "" {
		fmt.Println("No DATABASE_URL set, photos are kept in memory only")
		return nil
	}

	switch cfg.Database.Driver {
	case "postgres":
		fmt.Println("Connecting to PostgreSQL database...")
		if err := postgres.Initialize(&cfg.Database); err != nil {
			return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
	case "mysql":
		fmt.Println("Connecting to MySQL database...")
		if err := mysql.Initialize(&cfg.Database); err != nil {
			return fmt.Errorf("failed to initialize MySQL: %w", err)
		}
	default:
		return fmt.Errorf("unknown database driver: %s (supported: postgres, mysql)", cfg.Database.Driver)
	}

	fmt.Printf("Using %s backend\n", database.Driver())
	return nil
}

// initDuplicateIndex prepares the HNSW index consulted on upload for
// near-duplicate detection. A previously saved index is loaded from disk
// when a path is configured; failing that, persisted fingerprints rebuild
// the index when a database is active.
func initDuplicateIndex(cfg *config.Config) *database.DuplicateIndex {
	index := database.NewDuplicateIndex(constants.DefaultDuplicateThreshold)
	index.SetPath(cfg.Database.DuplicateIndexPath)

	if path := cfg.Database.DuplicateIndexPath; path != "" {
		if err := index.Load(path); err != nil {
			fmt.Printf("Warning: failed to load duplicate index from %s: %v\n", path, err)
		} else if index.Count() > 0 {
			fmt.Printf("Duplicate index loaded with %d fingerprints\n", index.Count())
		}
	}

	if index.Count() == 0 {
		if db := database.Active(); db != nil {
			if err := index.RebuildFromStore(context.Background(), db); err != nil {
				fmt.Printf("Warning: failed to rebuild duplicate index: %v\n", err)
			} else if index.Count() > 0 {
				fmt.Printf("Duplicate index rebuilt with %d fingerprints\n", index.Count())
			}
		}
	}
	return index
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	port := cfg.Web.Port
	if cmd.Flags().Changed("port") {
		port = mustGetInt(cmd, "port")
	}
	host := cfg.Web.Host
	if cmd.Flags().Changed("host") {
		host = mustGetString(cmd, "host")
	}

	if err := initDatabase(cfg); err != nil {
		return err
	}

	store := library.NewStore()
	index := initDuplicateIndex(cfg)
	store.SetDuplicateIndex(index)

	server := web.NewServer(cfg, port, host, store, embedder.New(exif.Codec{}))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		if cfg.Database.DuplicateIndexPath != "" {
			if err := index.Save(); err != nil {
				fmt.Printf("Warning: failed to save duplicate index: %v\n", err)
			} else {
				fmt.Println("Duplicate index saved to disk")
			}
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Photo Tagger API on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
