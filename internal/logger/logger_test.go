package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	for _, mode := range []string{"development", "production", "PROD", ""} {
		l, err := New(mode)
		if err != nil {
			t.Fatalf("New(%q) returned an unexpected error: %v", mode, err)
		}
		if l.SugaredLogger == nil {
			t.Fatalf("New(%q) returned a logger without a sugared core", mode)
		}
	}
}

func TestWithCarriesFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := &Logger{SugaredLogger: zap.New(core).Sugar()}

	l.With("component", "cardstore").Info("card reviewed", "card_id", 7)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("Expected 1 log entry, but got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["component"] != "cardstore" {
		t.Errorf("Expected component field 'cardstore', but got %v", fields["component"])
	}
	if fields["card_id"] != int64(7) {
		t.Errorf("Expected card_id field 7, but got %v (%T)", fields["card_id"], fields["card_id"])
	}
}
