package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/conorfennell/prepcards/internal/gitsource"
	"github.com/conorfennell/prepcards/internal/reminder"
	"github.com/conorfennell/prepcards/internal/sync"
	"github.com/conorfennell/prepcards/internal/web"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the flashcard API and deck page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd, true)
			if err != nil {
				return err
			}
			defer a.Close()

			syncer := sync.New(a.db, a.store, gitsource.New(a.log), a.cfg.Sources.ReposDir, a.log)
			srv, err := web.NewServer(a.svc, syncer, a.log)
			if err != nil {
				return err
			}

			if a.cfg.Reminder.Enabled {
				r := reminder.New(a.store, reminder.LogNotifier{Log: a.log}, a.store.Location(), a.log)
				if err := r.Start(a.cfg.Reminder.Cron); err != nil {
					return err
				}
				defer r.Stop()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			httpServer := &http.Server{
				Addr:              a.cfg.Server.Addr,
				Handler:           srv,
				ReadHeaderTimeout: 10 * time.Second,
			}
			errCh := make(chan error, 1)
			go func() {
				a.log.Info("http server listening", "addr", a.cfg.Server.Addr, "cards", a.store.Path())
				errCh <- httpServer.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("http server: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			a.log.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().String("addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().Bool("remind", false, "log due-card reminders on the configured schedule")
	return cmd
}
