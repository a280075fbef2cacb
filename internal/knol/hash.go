// Package knol identifies cards by their authored content so the same card
// imported twice, or from two decks, is recognized as one.
package knol

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/conorfennell/prepcards/internal/domain"
)

// Normalize returns the content key of a card: category, question and answer,
// each lowercased with whitespace collapsed, one per line. Scheduling
// state and the id are ignored.
func Normalize(card domain.Card) string {
	return strings.Join([]string{
		normalizePart(card.Category),
		normalizePart(card.Question),
		normalizePart(card.Answer),
	}, "\n")
}

// normalizePart lowercases part and collapses every run of whitespace,
// line breaks included, to a single space.
func normalizePart(part string) string {
	return strings.Join(strings.Fields(strings.ToLower(part)), " ")
}

// Hash returns the hex SHA-256 of Normalize(card).
func Hash(card domain.Card) string {
	sum := sha256.Sum256([]byte(Normalize(card)))
	return hex.EncodeToString(sum[:])
}

// Set tracks the content hashes already present in a collection.
type Set map[string]struct{}

// NewSet indexes cards.
func NewSet(cards []domain.Card) Set {
	s := make(Set, len(cards))
	for _, c := range cards {
		s[Hash(c)] = struct{}{}
	}
	return s
}

// Add records card and reports whether its content was new.
func (s Set) Add(card domain.Card) bool {
	h := Hash(card)
	if _, ok := s[h]; ok {
		return false
	}
	s[h] = struct{}{}
	return true
}
