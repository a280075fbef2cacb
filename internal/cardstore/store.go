// Package cardstore owns the flashcard collection persisted as a single JSON
// document. The whole collection is loaded at Open and rewritten on every
// mutation; one write is in flight at a time.
package cardstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/conorfennell/prepcards/internal/config"
	"github.com/conorfennell/prepcards/internal/domain"
	"github.com/conorfennell/prepcards/internal/knol"
	"github.com/conorfennell/prepcards/internal/logger"
	"github.com/conorfennell/prepcards/internal/sm2"
)

// Store holds the card collection in memory and mirrors it to disk.
type Store struct {
	mu sync.RWMutex

	path  string
	mode  os.FileMode
	loc   *time.Location
	codec *codec
	log   *logger.Logger

	cards []domain.Card
	index map[int]int // card id -> position in cards
	extra map[string]json.RawMessage
}

// Open reads and validates the document at cfg.Path. Any failure wraps
// ErrPersistence; a missing file is not created.
func Open(cfg config.CardsConfig, log *logger.Logger) (*Store, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	defaultEase := cfg.DefaultEase
	if defaultEase == 0 {
		defaultEase = sm2.DefaultEaseFactor
	}

	info, err := os.Stat(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %w", ErrPersistence, cfg.Path, err)
	}
	data, err := os.ReadFile(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrPersistence, cfg.Path, err)
	}

	c := newCodec(loc, defaultEase)
	cards, extra, err := c.decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrPersistence, cfg.Path, err)
	}

	s := &Store{
		path:  cfg.Path,
		mode:  info.Mode().Perm(),
		loc:   loc,
		codec: c,
		log:   log.With("component", "cardstore"),
		cards: cards,
		extra: extra,
	}
	s.reindex()
	s.log.Debug("card document loaded", "path", cfg.Path, "cards", len(cards))
	return s, nil
}

// Path returns the location of the backing document.
func (s *Store) Path() string {
	return s.path
}

// Location returns the time zone used for due-date comparisons.
func (s *Store) Location() *time.Location {
	return s.loc
}

// List returns all cards, or only those in category when it is non-empty,
// in document order.
func (s *Store) List(category string) []domain.Card {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listLocked(category)
}

func (s *Store) listLocked(category string) []domain.Card {
	out := make([]domain.Card, 0, len(s.cards))
	for _, c := range s.cards {
		if category != "" && c.Category != category {
			continue
		}
		out = append(out, c.Clone())
	}
	return out
}

// Due returns the cards of List(category) that are due on asOf's calendar
// date: never scheduled, or scheduled for that day or earlier.
func (s *Store) Due(category string, asOf time.Time) []domain.Card {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dueLocked(category, asOf)
}

func (s *Store) dueLocked(category string, asOf time.Time) []domain.Card {
	var out []domain.Card
	for _, c := range s.cards {
		if category != "" && c.Category != category {
			continue
		}
		if IsDue(c, asOf) {
			out = append(out, c.Clone())
		}
	}
	return out
}

// IsDue compares by calendar date in asOf's location; the time of day of
// either timestamp does not matter.
func IsDue(c domain.Card, asOf time.Time) bool {
	if c.IsNew() {
		return true
	}
	return !civilDate(c.NextReview.In(asOf.Location())).After(civilDate(asOf))
}

func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Get returns a copy of the card with the given id.
func (s *Store) Get(id int) (domain.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return domain.Card{}, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return s.cards[i].Clone(), nil
}

// Update records a review of card id with the given quality at now and
// persists the collection before returning the new card state. On any error
// neither memory nor disk is changed.
func (s *Store) Update(id int, quality sm2.Quality, now time.Time) (domain.Card, error) {
	if !quality.IsValid() {
		return domain.Card{}, fmt.Errorf("%w: %d (want 0-5)", ErrInvalidQuality, int(quality))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return domain.Card{}, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}

	prev := s.cards[i].Clone()
	card := &s.cards[i]

	res := sm2.ComputeNext(quality, card.Repetitions, card.EaseFactor, card.Interval)
	reviewedAt := now
	nextReview := sm2.NextReview(now, res.Interval)

	card.Interval = res.Interval
	card.EaseFactor = res.EaseFactor
	card.Repetitions = res.Repetitions
	card.LastReviewed = &reviewedAt
	card.NextReview = &nextReview
	card.Confidence = min(5, int(quality))

	if err := s.persistLocked(); err != nil {
		s.cards[i] = prev
		return domain.Card{}, err
	}

	s.log.Debug("card reviewed",
		"card_id", id,
		"quality", int(quality),
		"interval", res.Interval,
		"ease_factor", res.EaseFactor,
		"next_review", nextReview.Format(time.DateOnly),
	)
	return card.Clone(), nil
}

// Categories returns the distinct categories, sorted.
func (s *Store) Categories() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, c := range s.cards {
		seen[c.Category] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for cat := range seen {
		out = append(out, cat)
	}
	sort.Strings(out)
	return out
}

// Stats summarizes the whole collection as of asOf.
func (s *Store) Stats(asOf time.Time) domain.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := domain.Stats{Total: len(s.cards)}
	sum := 0
	for _, c := range s.cards {
		if c.LastReviewed != nil {
			st.Reviewed++
		}
		if c.Confidence >= 4 {
			st.Mastered++
		}
		if IsDue(c, asOf) {
			st.Due++
		}
		sum += c.Confidence
	}
	if st.Total > 0 {
		st.AvgConfidence = float64(sum) / float64(st.Total)
	}
	return st
}

// CategoryStats returns per-category card and due counts, sorted by category.
func (s *Store) CategoryStats(asOf time.Time) []domain.CategoryStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byCat := make(map[string]*domain.CategoryStats)
	for _, c := range s.cards {
		cs, ok := byCat[c.Category]
		if !ok {
			cs = &domain.CategoryStats{Category: c.Category}
			byCat[c.Category] = cs
		}
		cs.Total++
		if IsDue(c, asOf) {
			cs.Due++
		}
	}
	out := make([]domain.CategoryStats, 0, len(byCat))
	for _, cs := range byCat {
		out = append(out, *cs)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}

// ImportResult reports what Import did with a batch of authored cards.
type ImportResult struct {
	Added   int
	Skipped int
}

// Import appends newly authored cards. Ids are assigned after the current
// maximum and never reused; cards whose content already exists are skipped.
// Incoming scheduling state is discarded. The collection is persisted once.
func (s *Store) Import(cards []domain.Card) (ImportResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	known := knol.NewSet(s.cards)
	nextID := 0
	for _, c := range s.cards {
		if c.ID >= nextID {
			nextID = c.ID + 1
		}
	}
	if nextID == 0 {
		nextID = 1
	}

	var res ImportResult
	before := len(s.cards)
	for _, in := range cards {
		if in.Category == "" || in.Question == "" {
			res.Skipped++
			continue
		}
		if !known.Add(in) {
			res.Skipped++
			continue
		}
		s.cards = append(s.cards, domain.Card{
			ID:         nextID,
			Category:   in.Category,
			Question:   in.Question,
			Answer:     in.Answer,
			Interval:   1,
			EaseFactor: s.codec.defaultEase,
		})
		nextID++
		res.Added++
	}

	if res.Added == 0 {
		return res, nil
	}
	if err := s.persistLocked(); err != nil {
		s.cards = s.cards[:before]
		return ImportResult{}, err
	}
	s.reindex()
	s.log.Info("cards imported", "added", res.Added, "skipped", res.Skipped)
	return res, nil
}

func (s *Store) reindex() {
	s.index = make(map[int]int, len(s.cards))
	for i, c := range s.cards {
		s.index[c.ID] = i
	}
}

// persistLocked rewrites the whole document via a temp file and rename so a
// failed write never truncates the previous version.
func (s *Store) persistLocked() error {
	data, err := s.codec.encode(s.cards, s.extra)
	if err != nil {
		return fmt.Errorf("%w: encode: %w", ErrPersistence, err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp file in %s: %w", ErrPersistence, dir, err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("%w: write %s: %w", ErrPersistence, tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("%w: sync %s: %w", ErrPersistence, tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("%w: close %s: %w", ErrPersistence, tmpName, err)
	}
	if err := os.Chmod(tmpName, s.mode); err != nil {
		cleanup()
		return fmt.Errorf("%w: chmod %s: %w", ErrPersistence, tmpName, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return fmt.Errorf("%w: replace %s: %w", ErrPersistence, s.path, err)
	}
	return nil
}
