package parser

import (
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	testCases := []struct {
		name          string
		input         string
		expectedCards int
		expectedQ     string
		expectedA     string
		expectedC     string
	}{
		{
			name:          "Simple Q&A takes the default category",
			input:         "Q: What does GROUP BY do?\nA: Collapses rows per key",
			expectedCards: 1,
			expectedQ:     "What does GROUP BY do?",
			expectedA:     "Collapses rows per key",
			expectedC:     "sql",
		},
		{
			name:          "Simple Q, A, and C",
			input:         "Q: What is a generator?\nA: A lazy iterator\nC: python",
			expectedCards: 1,
			expectedQ:     "What is a generator?",
			expectedA:     "A lazy iterator",
			expectedC:     "python",
		},
		{
			name: "Multiline Answer",
			input: `
Q: Which joins keep unmatched rows?
A: LEFT
RIGHT
FULL OUTER
`,
			expectedCards: 1,
			expectedQ:     "Which joins keep unmatched rows?",
			expectedA:     "LEFT\nRIGHT\nFULL OUTER",
			expectedC:     "sql",
		},
		{
			name: "Two Cards",
			input: `
Q: First question
A: First answer

Q: Second question
A: Second answer
`,
			expectedCards: 2,
		},
		{
			name: "Separator ends a card",
			input: `
Q: Card one
A: One
---
Q: Card two
A: Two
`,
			expectedCards: 2,
		},
		{
			name: "Category before answer",
			input: `
Q: What is idempotency?
C: data engineering
A: Running twice has the same effect as once.
`,
			expectedCards: 1,
			expectedQ:     "What is idempotency?",
			expectedA:     "Running twice has the same effect as once.",
			expectedC:     "data engineering",
		},
		{
			name: "Answer line starting with C: is not a category",
			input: `
Q: Where does Windows keep system binaries?
A: Under
C:\Windows\System32
`,
			expectedCards: 1,
			expectedQ:     "Where does Windows keep system binaries?",
			expectedA:     "Under\nC:\\Windows\\System32",
			expectedC:     "sql",
		},
		{
			name:          "Category after a multiline answer",
			input:         "Q: Name two joins\nA: INNER\nLEFT\nC: joins",
			expectedCards: 1,
			expectedQ:     "Name two joins",
			expectedA:     "INNER\nLEFT",
			expectedC:     "joins",
		},
		{
			name:          "No cards, just text",
			input:         "This is a file with no questions.",
			expectedCards: 0,
		},
		{
			name:          "Prefixes with no space",
			input:         "Q:Question\nA:Answer",
			expectedCards: 1,
			expectedQ:     "Question",
			expectedA:     "Answer",
			expectedC:     "sql",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := strings.NewReader(tc.input)
			cards, err := Parse(r, "sql")
			if err != nil {
				t.Fatalf("Parse() returned an unexpected error: %v", err)
			}

			if len(cards) != tc.expectedCards {
				t.Fatalf("Expected %d cards, but got %d", tc.expectedCards, len(cards))
			}

			if tc.expectedCards == 1 {
				card := cards[0]
				if card.Question != tc.expectedQ {
					t.Errorf("Expected Question to be '%s', but got '%s'", tc.expectedQ, card.Question)
				}
				if card.Answer != tc.expectedA {
					t.Errorf("Expected Answer to be '%s', but got '%s'", tc.expectedA, card.Answer)
				}
				if card.Category != tc.expectedC {
					t.Errorf("Expected Category to be '%s', but got '%s'", tc.expectedC, card.Category)
				}
			}
		})
	}
}

func TestCategoryFromPath(t *testing.T) {
	if got := CategoryFromPath("decks/window_functions.md"); got != "window functions" {
		t.Errorf("Expected 'window functions', but got '%s'", got)
	}
}
