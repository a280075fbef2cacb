package parser

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/conorfennell/prepcards/internal/domain"
)

// WorkbookConfig describes where card fields live in a spreadsheet deck.
type WorkbookConfig struct {
	SheetName      string // empty means the first sheet
	QuestionColumn string
	AnswerColumn   string
	CategoryColumn string // optional; empty means every row uses the default category
	StartRow       int    // 1-based index of the first data row
}

// DefaultWorkbookConfig reads question, answer and category from columns A-C
// below a header row.
func DefaultWorkbookConfig() WorkbookConfig {
	return WorkbookConfig{
		QuestionColumn: "A",
		AnswerColumn:   "B",
		CategoryColumn: "C",
		StartRow:       2,
	}
}

// ParseWorkbook extracts cards from an .xlsx deck. Rows without a question
// are skipped.
func ParseWorkbook(path string, cfg WorkbookConfig) ([]domain.Card, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheet := cfg.SheetName
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook %s has no sheets", path)
		}
		sheet = sheets[0]
	}

	qIdx, err := columnIndex(cfg.QuestionColumn)
	if err != nil {
		return nil, err
	}
	aIdx, err := columnIndex(cfg.AnswerColumn)
	if err != nil {
		return nil, err
	}
	cIdx := -1
	if cfg.CategoryColumn != "" {
		if cIdx, err = columnIndex(cfg.CategoryColumn); err != nil {
			return nil, err
		}
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows from sheet %q: %w", sheet, err)
	}

	defaultCategory := CategoryFromPath(path)
	var cards []domain.Card
	for i, row := range rows {
		if i < cfg.StartRow-1 {
			continue
		}
		card := domain.Card{
			Question: cell(row, qIdx),
			Answer:   cell(row, aIdx),
			Category: cell(row, cIdx),
		}
		if card.Question == "" {
			continue
		}
		if card.Category == "" {
			card.Category = defaultCategory
		}
		cards = append(cards, card)
	}
	return cards, nil
}

// columnIndex converts a column letter such as "C" to a 0-based index.
func columnIndex(col string) (int, error) {
	n, err := excelize.ColumnNameToNumber(col)
	if err != nil {
		return 0, fmt.Errorf("invalid column %q: %w", col, err)
	}
	return n - 1, nil
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
