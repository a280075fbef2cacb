package cardstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/conorfennell/prepcards/internal/domain"
)

// cardsKey is the top-level key holding the card list. Other top-level keys
// are carried through a rewrite untouched.
const cardsKey = "cards"

// record is the on-disk shape of a card. Optional scheduling fields are
// pointers so a missing field can be told apart from a zero value.
type record struct {
	ID           *int     `json:"id" validate:"required"`
	Category     string   `json:"category" validate:"required"`
	Question     string   `json:"question" validate:"required"`
	Answer       string   `json:"answer"`
	Repetitions  *int     `json:"repetitions" validate:"omitempty,gte=0"`
	Interval     *int     `json:"interval" validate:"omitempty,gte=0"`
	EaseFactor   *float64 `json:"ease_factor" validate:"omitempty,gte=1.3"`
	LastReviewed *string  `json:"last_reviewed"`
	NextReview   *string  `json:"next_review"`
	Confidence   *int     `json:"confidence" validate:"omitempty,gte=0,lte=5"`
}

// naiveLayouts are accepted for timestamps written without a zone offset,
// which is how Python's datetime.isoformat() stores local times.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

type codec struct {
	validate    *validator.Validate
	loc         *time.Location
	defaultEase float64
}

func newCodec(loc *time.Location, defaultEase float64) *codec {
	return &codec{
		validate:    validator.New(),
		loc:         loc,
		defaultEase: defaultEase,
	}
}

// decode parses a whole document. It returns the cards in document order and
// the remaining top-level keys.
func (c *codec) decode(data []byte) ([]domain.Card, map[string]json.RawMessage, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, nil, fmt.Errorf("malformed document: %w", err)
	}
	raw, ok := top[cardsKey]
	if !ok {
		return nil, nil, fmt.Errorf("document has no %q list", cardsKey)
	}
	delete(top, cardsKey)

	var records []record
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, nil, fmt.Errorf("malformed %q list: %w", cardsKey, err)
	}

	cards := make([]domain.Card, 0, len(records))
	seen := make(map[int]int, len(records))
	for i, rec := range records {
		card, err := c.toCard(rec)
		if err != nil {
			return nil, nil, fmt.Errorf("card #%d: %w", i, err)
		}
		if prev, dup := seen[card.ID]; dup {
			return nil, nil, fmt.Errorf("card #%d: id %d already used by card #%d", i, card.ID, prev)
		}
		seen[card.ID] = i
		cards = append(cards, card)
	}
	return cards, top, nil
}

func (c *codec) toCard(rec record) (domain.Card, error) {
	if err := c.validate.Struct(rec); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("field %s failed %q", fe.Field(), fe.Tag()))
			}
			return domain.Card{}, errors.New(strings.Join(msgs, "; "))
		}
		return domain.Card{}, err
	}

	card := domain.Card{
		ID:         *rec.ID,
		Category:   rec.Category,
		Question:   rec.Question,
		Answer:     rec.Answer,
		Interval:   1,
		EaseFactor: c.defaultEase,
	}
	if rec.Repetitions != nil {
		card.Repetitions = *rec.Repetitions
	}
	// An unset or zero interval means "never scheduled" and behaves as 1.
	if rec.Interval != nil && *rec.Interval > 0 {
		card.Interval = *rec.Interval
	}
	if rec.EaseFactor != nil {
		card.EaseFactor = *rec.EaseFactor
	}
	if rec.Confidence != nil {
		card.Confidence = *rec.Confidence
	}

	var err error
	if card.LastReviewed, err = c.parseTime(rec.LastReviewed); err != nil {
		return domain.Card{}, fmt.Errorf("field last_reviewed: %w", err)
	}
	if card.NextReview, err = c.parseTime(rec.NextReview); err != nil {
		return domain.Card{}, fmt.Errorf("field next_review: %w", err)
	}
	return card, nil
}

func (c *codec) parseTime(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, *s); err == nil {
		return &t, nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, *s, c.loc); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unrecognized timestamp %q", *s)
}

// encode renders the cards and extra keys as an indented document.
func (c *codec) encode(cards []domain.Card, extra map[string]json.RawMessage) ([]byte, error) {
	records := make([]record, 0, len(cards))
	for _, card := range cards {
		records = append(records, fromCard(card))
	}
	list, err := json.Marshal(records)
	if err != nil {
		return nil, err
	}

	top := make(map[string]json.RawMessage, len(extra)+1)
	for k, v := range extra {
		top[k] = v
	}
	top[cardsKey] = list

	data, err := json.MarshalIndent(top, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func fromCard(card domain.Card) record {
	id := card.ID
	reps := card.Repetitions
	interval := card.Interval
	ease := card.EaseFactor
	confidence := card.Confidence
	return record{
		ID:           &id,
		Category:     card.Category,
		Question:     card.Question,
		Answer:       card.Answer,
		Repetitions:  &reps,
		Interval:     &interval,
		EaseFactor:   &ease,
		LastReviewed: formatTime(card.LastReviewed),
		NextReview:   formatTime(card.NextReview),
		Confidence:   &confidence,
	}
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339Nano)
	return &s
}
