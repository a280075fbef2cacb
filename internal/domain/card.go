package domain

import "time"

// Card is a single flashcard together with its SM-2 scheduling state.
type Card struct {
	ID       int    `json:"id"`
	Category string `json:"category"`
	Question string `json:"question"`
	Answer   string `json:"answer"`

	Repetitions  int        `json:"repetitions"`
	Interval     int        `json:"interval"`
	EaseFactor   float64    `json:"ease_factor"`
	LastReviewed *time.Time `json:"last_reviewed"`
	NextReview   *time.Time `json:"next_review"`
	Confidence   int        `json:"confidence"`
}

// IsNew reports whether the card has never been scheduled.
func (c Card) IsNew() bool {
	return c.NextReview == nil
}

// Clone returns a copy of the card that shares no timestamp pointers with c.
func (c Card) Clone() Card {
	out := c
	if c.LastReviewed != nil {
		v := *c.LastReviewed
		out.LastReviewed = &v
	}
	if c.NextReview != nil {
		v := *c.NextReview
		out.NextReview = &v
	}
	return out
}

// ReviewLog records a single review event for a card.
// Quality is the SM-2 self-assessment:
// 0-2: lapse (forgotten or wrong)
// 3: correct, difficult
// 4: correct after hesitation
// 5: perfect recall
type ReviewLog struct {
	ID         int64
	CardID     int
	Category   string
	Quality    int
	Interval   int
	EaseFactor float64
	ReviewedAt time.Time
}

// Stats summarizes the whole collection.
type Stats struct {
	Total         int     `json:"total"`
	Reviewed      int     `json:"reviewed"`
	Mastered      int     `json:"mastered"`
	Due           int     `json:"due"`
	AvgConfidence float64 `json:"avg_confidence"`
}

// CategoryStats holds card counts for one category.
type CategoryStats struct {
	Category string `json:"category"`
	Total    int    `json:"total"`
	Due      int    `json:"due"`
}
