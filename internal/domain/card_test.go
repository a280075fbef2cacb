package domain

import (
	"testing"
	"time"
)

func TestIsNew(t *testing.T) {
	next := time.Date(2026, 3, 11, 8, 0, 0, 0, time.UTC)
	if !(Card{}).IsNew() {
		t.Error("Expected a card without next_review to be new")
	}
	if (Card{NextReview: &next}).IsNew() {
		t.Error("Expected a scheduled card not to be new")
	}
}

func TestClone(t *testing.T) {
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	orig := Card{ID: 1, LastReviewed: &at, NextReview: &at}
	c := orig.Clone()
	*c.NextReview = at.AddDate(0, 0, 6)
	if !orig.NextReview.Equal(at) {
		t.Errorf("Clone shares next_review with the original: %v", *orig.NextReview)
	}
	if c.LastReviewed == orig.LastReviewed {
		t.Error("Clone shares last_reviewed with the original")
	}
}
