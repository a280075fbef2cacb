// Package tui provides the Bubble Tea study session.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/conorfennell/prepcards/internal/cardstore"
	"github.com/conorfennell/prepcards/internal/domain"
	"github.com/conorfennell/prepcards/internal/sm2"
	"github.com/conorfennell/prepcards/internal/study"
)

// Reviewer applies a rating to a card.
type Reviewer interface {
	Review(ctx context.Context, id int, quality sm2.Quality, now time.Time) (domain.Card, error)
}

// Model implements the Bubble Tea review UI. The user reveals each answer
// with space or enter, then rates recall 0-5.
type Model struct {
	ctx      context.Context
	reviewer Reviewer
	now      func() time.Time

	cards    []domain.Card
	pos      int
	revealed bool
	notice   string
	done     bool
	fatal    error

	session study.Session

	width  int
	height int
}

var (
	headerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
	questionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	answerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#7FB77E"))
	hintStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	noticeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	boxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(1, 2)
)

const ratingHelp = "0 blackout · 1 wrong · 2 almost · 3 hard · 4 good · 5 perfect"

// NewModel constructs a study session over cards, in the given order. now
// stamps each review and should return times in the card store's zone.
func NewModel(ctx context.Context, reviewer Reviewer, cards []domain.Card, now func() time.Time) *Model {
	return &Model{
		ctx:      ctx,
		reviewer: reviewer,
		now:      now,
		cards:    cards,
		done:     len(cards) == 0,
	}
}

// Session returns the tally of ratings given so far.
func (m *Model) Session() study.Session {
	return m.session
}

// Err returns the error that ended the session early, if any.
func (m *Model) Err() error {
	return m.fatal
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	if m.done {
		return tea.Quit
	}
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.done = true
			return m, tea.Quit
		case tea.KeySpace, tea.KeyEnter:
			if !m.done {
				m.revealed = true
				m.notice = ""
			}
			return m, nil
		case tea.KeyRunes:
			return m.handleRunes(msg.Runes)
		default:
			return m, nil
		}
	default:
		return m, nil
	}
}

func (m *Model) handleRunes(runes []rune) (tea.Model, tea.Cmd) {
	if m.done {
		return m, tea.Quit
	}
	input := string(runes)
	if input == "q" {
		m.done = true
		return m, tea.Quit
	}
	if !m.revealed {
		m.notice = "press space to reveal the answer"
		return m, nil
	}

	q, ok := parseRating(input)
	if !ok {
		m.notice = fmt.Sprintf("invalid rating %q: enter 0-5", input)
		return m, nil
	}
	return m.rate(q)
}

func (m *Model) rate(q sm2.Quality) (tea.Model, tea.Cmd) {
	card := m.cards[m.pos]
	if _, err := m.reviewer.Review(m.ctx, card.ID, q, m.now()); err != nil {
		if errors.Is(err, cardstore.ErrPersistence) {
			m.fatal = err
			m.done = true
			return m, tea.Quit
		}
		m.notice = fmt.Sprintf("review failed: %v", err)
		return m, nil
	}

	m.session.Record(q)
	m.notice = ""
	m.revealed = false
	m.pos++
	if m.pos >= len(m.cards) {
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

// parseRating accepts a single digit 0-5.
func parseRating(s string) (sm2.Quality, bool) {
	if len(s) != 1 || s[0] < '0' || s[0] > '9' {
		return 0, false
	}
	q := sm2.Quality(s[0] - '0')
	return q, q.IsValid()
}

// View implements tea.Model.
func (m *Model) View() string {
	var b strings.Builder
	if m.done {
		b.WriteString(headerStyle.Render("Session complete"))
		b.WriteString("\n\n")
		b.WriteString(m.session.String())
		if m.fatal != nil {
			b.WriteString("\n")
			b.WriteString(noticeStyle.Render(m.fatal.Error()))
		}
		b.WriteString("\n")
		return b.String()
	}

	card := m.cards[m.pos]
	b.WriteString(headerStyle.Render(fmt.Sprintf("Card %d/%d · %s", m.pos+1, len(m.cards), card.Category)))
	b.WriteString("\n\n")
	b.WriteString(questionStyle.Render(card.Question))
	b.WriteString("\n\n")
	if m.revealed {
		b.WriteString(answerStyle.Render(card.Answer))
		b.WriteString("\n\n")
		b.WriteString(hintStyle.Render(ratingHelp))
	} else {
		b.WriteString(hintStyle.Render("space: show answer · q: quit"))
	}
	if m.notice != "" {
		b.WriteString("\n")
		b.WriteString(noticeStyle.Render(m.notice))
	}

	content := boxStyle.Render(b.String())
	if m.width == 0 || m.height == 0 {
		return content
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}
