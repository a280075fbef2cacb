// Package study drives review sessions: it builds the queue of due cards,
// applies ratings through the card store and appends them to the progress
// log.
package study

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/conorfennell/prepcards/internal/cardstore"
	"github.com/conorfennell/prepcards/internal/domain"
	"github.com/conorfennell/prepcards/internal/logger"
	"github.com/conorfennell/prepcards/internal/sm2"
	"github.com/conorfennell/prepcards/internal/storage"
)

// QueueOptions narrows and orders the due cards of a session.
type QueueOptions struct {
	Category string
	Shuffle  bool
	Limit    int // 0 means no limit
}

// Service is shared by the terminal and HTTP front ends.
type Service struct {
	store *cardstore.Store
	db    *storage.DB // nil disables the progress log
	log   *logger.Logger

	shuffle func([]domain.Card)
}

func NewService(store *cardstore.Store, db *storage.DB, log *logger.Logger) *Service {
	return &Service{
		store: store,
		db:    db,
		log:   log.With("component", "study"),
		shuffle: func(cards []domain.Card) {
			rand.Shuffle(len(cards), func(i, j int) { cards[i], cards[j] = cards[j], cards[i] })
		},
	}
}

// Now returns the current time in the card store's time zone, the zone due
// dates are compared in.
func (s *Service) Now() time.Time {
	return time.Now().In(s.store.Location())
}

// Store exposes the underlying card store for read-only queries.
func (s *Service) Store() *cardstore.Store {
	return s.store
}

// Queue returns the cards due on asOf's date.
func (s *Service) Queue(opts QueueOptions, asOf time.Time) []domain.Card {
	cards := s.store.Due(opts.Category, asOf)
	if opts.Shuffle {
		s.shuffle(cards)
	}
	if opts.Limit > 0 && len(cards) > opts.Limit {
		cards = cards[:opts.Limit]
	}
	return cards
}

// Review rates a card. The card store is the source of truth: a failure to
// append to the progress log is logged and does not fail the review.
func (s *Service) Review(ctx context.Context, id int, quality sm2.Quality, now time.Time) (domain.Card, error) {
	card, err := s.store.Update(id, quality, now)
	if err != nil {
		return domain.Card{}, err
	}
	s.log.Debug("card reviewed", "id", id, "quality", int(quality), "interval", card.Interval, "ease_factor", card.EaseFactor)

	if s.db != nil {
		_, err := s.db.InsertReview(ctx, domain.ReviewLog{
			CardID:     card.ID,
			Category:   card.Category,
			Quality:    int(quality),
			Interval:   card.Interval,
			EaseFactor: card.EaseFactor,
			ReviewedAt: now,
		})
		if err != nil {
			s.log.Warn("failed to record review", "id", id, "error", err)
		}
	}
	return card, nil
}

// Progress is the combined view of the collection and the review log.
type Progress struct {
	Cards      domain.Stats           `json:"cards"`
	Categories []domain.CategoryStats `json:"categories"`
	Reviews    storage.ReviewSummary  `json:"reviews"`
}

func (s *Service) Progress(ctx context.Context, asOf time.Time) (Progress, error) {
	p := Progress{
		Cards:      s.store.Stats(asOf),
		Categories: s.store.CategoryStats(asOf),
		Reviews:    storage.ReviewSummary{ByCategory: map[string]int{}},
	}
	if s.db == nil {
		return p, nil
	}
	sum, err := s.db.SummarizeReviews(ctx)
	if err != nil {
		return Progress{}, fmt.Errorf("progress: %w", err)
	}
	p.Reviews = sum
	return p, nil
}

// Session tallies the ratings given during one sitting.
type Session struct {
	Reviewed    int
	GoodRecalls int
}

func (s *Session) Record(q sm2.Quality) {
	s.Reviewed++
	if !q.IsLapse() {
		s.GoodRecalls++
	}
}

// Percent is the share of good recalls, 0 for an empty session.
func (s Session) Percent() float64 {
	if s.Reviewed == 0 {
		return 0
	}
	return float64(s.GoodRecalls) / float64(s.Reviewed) * 100
}

func (s Session) String() string {
	return fmt.Sprintf("Reviewed %d cards, %d good recalls (%.0f%%)", s.Reviewed, s.GoodRecalls, s.Percent())
}
