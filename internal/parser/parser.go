package parser

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/conorfennell/prepcards/internal/domain"
)

const (
	questionPrefix = "Q:"
	answerPrefix   = "A:"
	categoryPrefix = "C:"
)

type state int

const (
	seeking state = iota
	readingQuestion
	readingAnswer
	readingCategory
)

// CategoryFromPath derives a deck's default category from its file name,
// e.g. "decks/sql_joins.md" -> "sql joins".
func CategoryFromPath(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return strings.ReplaceAll(base, "_", " ")
}

// ParseFile reads a markdown deck and extracts all cards. Cards without a C:
// line get the category derived from the file name.
//
// Inside an answer, a line beginning with "C:" only sets the category when
// "C:" is followed by a space or ends the line and the card has no category
// yet; otherwise it is answer text, e.g. a Windows path like C:\Windows.
func ParseFile(path string) ([]domain.Card, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file, CategoryFromPath(path))
}

// startsCategory reports whether a line with the C: prefix is a category line
// rather than a continuation of the answer.
func startsCategory(line string, st state, card domain.Card) bool {
	if st != readingAnswer {
		return true
	}
	if card.Category != "" {
		return false
	}
	rest := line[len(categoryPrefix):]
	return rest == "" || rest[0] == ' ' || rest[0] == '\t'
}

// Parse reads from an io.Reader and extracts all cards.
func Parse(r io.Reader, defaultCategory string) ([]domain.Card, error) {
	scanner := bufio.NewScanner(r)
	var cards []domain.Card
	var currentCard domain.Card
	var currentBlock []string
	currentState := seeking

	flushBlock := func() {
		if len(currentBlock) == 0 {
			return
		}
		content := strings.TrimSpace(strings.Join(currentBlock, "\n"))
		switch currentState {
		case readingQuestion:
			currentCard.Question = content
		case readingAnswer:
			currentCard.Answer = content
		case readingCategory:
			currentCard.Category = content
		}
		currentBlock = nil
	}

	finishCard := func() {
		flushBlock()
		if currentCard.Question != "" {
			if currentCard.Category == "" {
				currentCard.Category = defaultCategory
			}
			cards = append(cards, currentCard)
		}
		currentCard = domain.Card{}
		currentState = seeking
	}

	trimPrefix := func(line, prefix string) string {
		return strings.TrimPrefix(line[len(prefix):], " ")
	}

	for scanner.Scan() {
		line := scanner.Text()

		isQ := strings.HasPrefix(line, questionPrefix)
		isA := strings.HasPrefix(line, answerPrefix)
		isC := strings.HasPrefix(line, categoryPrefix) && startsCategory(line, currentState, currentCard)
		isSeparator := line == "---"

		if isSeparator {
			finishCard()
			continue
		}

		switch {
		case isQ:
			if currentState != seeking { // A new question always starts a new card
				finishCard()
			}
			currentState = readingQuestion
			currentBlock = append(currentBlock, trimPrefix(line, questionPrefix))
		case isA:
			flushBlock()
			currentState = readingAnswer
			currentBlock = append(currentBlock, trimPrefix(line, answerPrefix))
		case isC:
			flushBlock()
			currentState = readingCategory
			currentBlock = append(currentBlock, trimPrefix(line, categoryPrefix))
		case currentState != seeking:
			currentBlock = append(currentBlock, line)
		}
	}

	finishCard() // Finish the very last card in the file

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return cards, nil
}
