package parser

import (
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestParseWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pandas_basics.xlsx")

	f := excelize.NewFile()
	rows := [][]interface{}{
		{"Question", "Answer", "Category"},
		{"What does melt do?", "Reshapes wide to long", "pandas"},
		{"What does pivot do?", "Reshapes long to wide", ""},
		{"", "orphan answer", "pandas"},
	}
	for i, row := range rows {
		cellName, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := f.SetSheetRow("Sheet1", cellName, &row); err != nil {
			t.Fatalf("set row %d: %v", i+1, err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save workbook: %v", err)
	}
	f.Close()

	cards, err := ParseWorkbook(path, DefaultWorkbookConfig())
	if err != nil {
		t.Fatalf("ParseWorkbook() returned an unexpected error: %v", err)
	}
	if len(cards) != 2 {
		t.Fatalf("Expected 2 cards, but got %d", len(cards))
	}
	if cards[0].Category != "pandas" || cards[0].Answer != "Reshapes wide to long" {
		t.Errorf("Unexpected first card: %+v", cards[0])
	}
	if cards[1].Category != "pandas basics" {
		t.Errorf("Expected blank category to fall back to 'pandas basics', but got '%s'", cards[1].Category)
	}
}

func TestParseWorkbookBadColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deck.xlsx")
	f := excelize.NewFile()
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save workbook: %v", err)
	}
	f.Close()

	cfg := DefaultWorkbookConfig()
	cfg.QuestionColumn = "1A"
	if _, err := ParseWorkbook(path, cfg); err == nil {
		t.Error("Expected an error for an invalid column name")
	}
}
