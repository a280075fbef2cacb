package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/conorfennell/prepcards/internal/domain"
	"github.com/conorfennell/prepcards/internal/sm2"
	"github.com/conorfennell/prepcards/internal/study"
	"github.com/conorfennell/prepcards/internal/tui"
)

func newStudyCmd() *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "study",
		Short: "Review due cards interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd, true)
			if err != nil {
				return err
			}
			defer a.Close()

			cards := a.svc.Queue(study.QueueOptions{
				Category: category,
				Shuffle:  a.cfg.Study.Shuffle,
				Limit:    a.cfg.Study.Limit,
			}, a.svc.Now())
			if len(cards) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No cards due. Come back later.")
				return nil
			}

			model := tui.NewModel(cmd.Context(), a.svc, cards, a.svc.Now)
			program := tea.NewProgram(model, tea.WithAltScreen())
			if _, err := program.Run(); err != nil {
				return fmt.Errorf("study session failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), model.Session())
			return model.Err()
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "only study this category")
	cmd.Flags().Int("limit", 0, "maximum cards per session (0 = all)")
	cmd.Flags().Bool("shuffle", true, "shuffle the due cards")
	return cmd
}

func newDueCmd() *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "due",
		Short: "List cards due today",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd, false)
			if err != nil {
				return err
			}
			defer a.Close()

			cards := a.store.Due(category, a.svc.Now())
			fmt.Fprintln(cmd.OutOrStdout(), cardTable(cards))
			fmt.Fprintf(cmd.OutOrStdout(), "%d cards due\n", len(cards))
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "only list this category")
	return cmd
}

func newListCmd() *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cards with their schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd, false)
			if err != nil {
				return err
			}
			defer a.Close()

			cards := a.store.List(category)
			fmt.Fprintln(cmd.OutOrStdout(), cardTable(cards))
			fmt.Fprintf(cmd.OutOrStdout(), "%d cards\n", len(cards))
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "only list this category")
	return cmd
}

func newRateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rate <card-id> <quality>",
		Short: "Record a review without the interactive session",
		Long:  "Record a review. Quality is 0-5: 0-2 forgotten, 3 hard, 4 good, 5 perfect.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid card id %q", args[0])
			}
			q, err := parseQuality(args[1])
			if err != nil {
				return err
			}

			a, err := openApp(cmd, true)
			if err != nil {
				return err
			}
			defer a.Close()

			card, err := a.svc.Review(cmd.Context(), id, q, a.svc.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Card %d rated %d (%s). Next review in %d days on %s.\n",
				card.ID, int(q), q, card.Interval, card.NextReview.Format("2006-01-02"))
			return nil
		},
	}
}

func parseQuality(s string) (sm2.Quality, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	q := sm2.Quality(n)
	if err != nil || !q.IsValid() {
		return 0, errors.New("invalid rating: quality must be 0-5")
	}
	return q, nil
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show collection and review statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd, true)
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := a.svc.Progress(cmd.Context(), a.svc.Now())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Total cards:     %d\n", p.Cards.Total)
			fmt.Fprintf(out, "Reviewed:        %d\n", p.Cards.Reviewed)
			fmt.Fprintf(out, "Mastered (>=4):  %d\n", p.Cards.Mastered)
			fmt.Fprintf(out, "Due today:       %d\n", p.Cards.Due)
			fmt.Fprintf(out, "Avg confidence:  %.2f\n", p.Cards.AvgConfidence)
			fmt.Fprintf(out, "Total reviews:   %d\n", p.Reviews.TotalReviews)
			if p.Reviews.TotalReviews > 0 {
				pct := float64(p.Reviews.GoodRecalls) / float64(p.Reviews.TotalReviews) * 100
				fmt.Fprintf(out, "Good recalls:    %d (%.0f%%)\n", p.Reviews.GoodRecalls, pct)
			}
			if p.Reviews.LastReviewAt != nil {
				fmt.Fprintf(out, "Last review:     %s\n", p.Reviews.LastReviewAt.In(a.store.Location()).Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
}

func newCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "Show card and due counts per category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd, false)
			if err != nil {
				return err
			}
			defer a.Close()

			t := newTable("Category", "Cards", "Due")
			for _, c := range a.store.CategoryStats(a.svc.Now()) {
				t.Row(c.Category, strconv.Itoa(c.Total), strconv.Itoa(c.Due))
			}
			fmt.Fprintln(cmd.OutOrStdout(), t)
			return nil
		},
	}
}

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...)
}

func cardTable(cards []domain.Card) *table.Table {
	t := newTable("ID", "Category", "Question", "Interval", "EF", "Next review")
	for _, c := range cards {
		next := "now"
		if !c.IsNew() {
			next = c.NextReview.Format("2006-01-02")
		}
		t.Row(
			strconv.Itoa(c.ID),
			c.Category,
			truncate(c.Question, 60),
			strconv.Itoa(c.Interval),
			strconv.FormatFloat(c.EaseFactor, 'f', 2, 64),
			next,
		)
	}
	return t
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
