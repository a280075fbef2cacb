package knol

import (
	"testing"
	"time"

	"github.com/conorfennell/prepcards/internal/domain"
)

func TestNormalize(t *testing.T) {
	testCases := []struct {
		name     string
		card     domain.Card
		expected string
	}{
		{
			name: "trims and lowercases",
			card: domain.Card{
				Question: "  What is a LEFT JOIN? \r\n",
				Answer:   "All rows from the left table.",
				Category: "SQL",
			},
			expected: "sql\nwhat is a left join?\nall rows from the left table.",
		},
		{
			name: "collapses blanks inside lines",
			card: domain.Card{
				Question: "What   does\tmelt do?",
				Answer:   "Wide  to long",
				Category: "pandas",
			},
			expected: "pandas\nwhat does melt do?\nwide to long",
		},
		{
			name: "keeps multi-line answers on one line",
			card: domain.Card{
				Question: "Join types?",
				Answer:   "INNER\r\n\r\nLEFT\nRIGHT",
				Category: "sql",
			},
			expected: "sql\njoin types?\ninner left right",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Normalize(tc.card); got != tc.expected {
				t.Errorf("Expected normalized string to be '%q', but got '%q'", tc.expected, got)
			}
		})
	}
}

func TestHash(t *testing.T) {
	t.Run("generates correct hash", func(t *testing.T) {
		card := domain.Card{
			Question: "Q",
			Answer:   "A",
			Category: "C",
		}
		// Hash for "c\nq\na"
		expectedHash := "72078e2eb46bdc187077ee291ff5653b4e5fc07357ad2e6af6516dd9eb050045"
		hash := Hash(card)

		if hash != expectedHash {
			t.Errorf("Expected hash '%s', but got '%s'", expectedHash, hash)
		}
	})

	t.Run("scheduling state does not change the hash", func(t *testing.T) {
		now := time.Now()
		card1 := domain.Card{Question: "Test", Category: "python"}
		card2 := domain.Card{ID: 9, Question: "Test", Category: "python", Repetitions: 4, Interval: 30, NextReview: &now}
		if Hash(card1) != Hash(card2) {
			t.Error("Expected hashes to ignore scheduling state")
		}
	})

	t.Run("normalization produces same hash", func(t *testing.T) {
		card1 := domain.Card{
			Question: "  what is a  GIL? ",
			Answer:   "Global interpreter lock.",
		}
		card2 := domain.Card{
			Question: "What Is A GIL?",
			Answer:   "Global interpreter lock.",
		}
		if Hash(card1) != Hash(card2) {
			t.Error("Expected hashes to be the same after normalization, but they were different.")
		}
	})

	t.Run("different categories have different hashes", func(t *testing.T) {
		card1 := domain.Card{Question: "Indexes?", Category: "sql"}
		card2 := domain.Card{Question: "Indexes?", Category: "pandas"}
		if Hash(card1) == Hash(card2) {
			t.Error("Expected hashes for different categories to be different")
		}
	})
}

func TestSet(t *testing.T) {
	s := NewSet([]domain.Card{{Category: "sql", Question: "CTE?", Answer: "Named subquery"}})

	if s.Add(domain.Card{Category: "SQL", Question: "cte?", Answer: "named  subquery"}) {
		t.Error("Expected a normalized duplicate to be rejected")
	}
	if !s.Add(domain.Card{Category: "sql", Question: "View?", Answer: "Stored query"}) {
		t.Error("Expected new content to be accepted")
	}
	if s.Add(domain.Card{Category: "sql", Question: "View?", Answer: "Stored query"}) {
		t.Error("Expected the second add of the same content to be rejected")
	}
	if len(s) != 2 {
		t.Errorf("Expected 2 entries, but got %d", len(s))
	}
}
