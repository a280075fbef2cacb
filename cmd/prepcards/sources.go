package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/conorfennell/prepcards/internal/gitsource"
	"github.com/conorfennell/prepcards/internal/sync"
)

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file-or-dir>...",
		Short: "Import cards from markdown or .xlsx decks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, false)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			for _, path := range args {
				cards, files, parseErr := sync.CollectCards(path)
				for _, e := range multierr.Errors(parseErr) {
					fmt.Fprintf(cmd.ErrOrStderr(), "- %s\n", e)
				}
				res, err := a.store.Import(cards)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s: %d files, %d cards added, %d skipped\n", path, files, res.Added, res.Skipped)
			}
			return nil
		},
	}
}

func newSourceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "source",
		Short: "Manage deck sources (local directories or git URLs)",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "add <path-or-url>",
		Short: "Register a deck source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, closeFn, err := openSyncer(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			src, err := s.AddSource(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s source %d: %s\n", src.Type, src.ID, src.Path)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List deck sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, closeFn, err := openSyncer(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			sources, err := s.Sources(cmd.Context())
			if err != nil {
				return err
			}
			t := newTable("ID", "Type", "Path", "Last scanned")
			for _, src := range sources {
				scanned := "never"
				if src.LastScanned != nil {
					scanned = src.LastScanned.Local().Format("2006-01-02 15:04")
				}
				t.Row(strconv.FormatInt(src.ID, 10), src.Type, src.Path, scanned)
			}
			fmt.Fprintln(cmd.OutOrStdout(), t)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "remove <id>",
		Short: "Unregister a deck source; imported cards are kept",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid source id %q", args[0])
			}
			s, closeFn, err := openSyncer(cmd)
			if err != nil {
				return err
			}
			defer closeFn()
			return s.RemoveSource(cmd.Context(), id)
		},
	})
	return cmd
}

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Fetch every deck source and import new cards",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, closeFn, err := openSyncer(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			reports, err := s.RunAll(cmd.Context())
			if err != nil {
				return err
			}
			if len(reports) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No sources configured. Add one with: prepcards source add <path-or-url>")
				return nil
			}
			for _, r := range reports {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d files, %d added, %d skipped\n", r.Source.Path, r.Files, r.Added, r.Skipped)
				for _, e := range multierr.Errors(r.Err) {
					fmt.Fprintf(cmd.ErrOrStderr(), "- %s\n", e)
				}
			}
			return nil
		},
	}
	cmd.Flags().String("repos", "repos", "directory for cloned git sources")
	return cmd
}

func openSyncer(cmd *cobra.Command) (*sync.Syncer, func(), error) {
	a, err := openApp(cmd, true)
	if err != nil {
		return nil, nil, err
	}
	g := gitsource.New(a.log)
	g.Progress = cmd.ErrOrStderr()
	return sync.New(a.db, a.store, g, a.cfg.Sources.ReposDir, a.log), a.Close, nil
}
