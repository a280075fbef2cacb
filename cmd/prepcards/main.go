// Package main provides the CLI entrypoint for prepcards.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/conorfennell/prepcards/internal/cardstore"
	"github.com/conorfennell/prepcards/internal/config"
	"github.com/conorfennell/prepcards/internal/logger"
	"github.com/conorfennell/prepcards/internal/storage"
	"github.com/conorfennell/prepcards/internal/study"
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "prepcards",
		Short:         "Spaced-repetition flashcards for interview preparation",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	config.RegisterFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(newStudyCmd())
	rootCmd.AddCommand(newDueCmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newRateCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newCategoriesCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newImportCmd())
	rootCmd.AddCommand(newSourceCmd())
	rootCmd.AddCommand(newSyncCmd())

	return rootCmd
}

// app holds the dependencies shared by the subcommands.
type app struct {
	cfg   *config.Config
	log   *logger.Logger
	store *cardstore.Store
	db    *storage.DB
	svc   *study.Service
}

// openApp resolves configuration from cmd's flags and opens the card store.
// withDB also opens the progress database.
func openApp(cmd *cobra.Command, withDB bool) (*app, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	store, err := cardstore.Open(cfg.Cards, log)
	if err != nil {
		log.Sync()
		return nil, err
	}

	a := &app{cfg: cfg, log: log, store: store}
	if withDB {
		db, err := storage.Open(cfg.Progress.DBPath)
		if err != nil {
			log.Sync()
			return nil, err
		}
		a.db = db
	}
	a.svc = study.NewService(store, a.db, log)
	return a, nil
}

func (a *app) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn("failed to close db", "error", err)
		}
	}
	a.log.Sync()
}
