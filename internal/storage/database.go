package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/conorfennell/prepcards/internal/domain"
	_ "modernc.org/sqlite" // Registers the sqlite driver
)

// Source types.
const (
	SourceLocal = "local"
	SourceGit   = "git"
)

// DB represents a wrapper around the SQL database connection.
type DB struct {
	conn *sql.DB
}

// Open creates a new database connection and ensures the schema is up to date.
func Open(dsn string) (*DB, error) {
	if dir := filepath.Dir(dsn); dir != "." && dsn != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Execute the schema to create tables if they don't exist.
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &DB{conn: db}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// InsertReview appends a review to the log and returns its ID.
func (db *DB) InsertReview(ctx context.Context, r domain.ReviewLog) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO reviews (card_id, category, quality, interval, ease_factor, reviewed_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		r.CardID,
		r.Category,
		r.Quality,
		r.Interval,
		r.EaseFactor,
		r.ReviewedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert review for card %d: %w", r.CardID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for review of card %d: %w", r.CardID, err)
	}
	return id, nil
}

// RecentReviews returns up to limit reviews, newest first.
func (db *DB) RecentReviews(ctx context.Context, limit int) ([]domain.ReviewLog, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, card_id, category, quality, interval, ease_factor, reviewed_at
		FROM reviews
		ORDER BY reviewed_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent reviews: %w", err)
	}
	defer rows.Close()

	var logs []domain.ReviewLog
	for rows.Next() {
		var (
			r          domain.ReviewLog
			reviewedAt string
		)
		if err := rows.Scan(&r.ID, &r.CardID, &r.Category, &r.Quality, &r.Interval, &r.EaseFactor, &reviewedAt); err != nil {
			return nil, fmt.Errorf("failed to scan review row: %w", err)
		}
		r.ReviewedAt, err = time.Parse(time.RFC3339Nano, reviewedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse reviewed_at for review %d: %w", r.ID, err)
		}
		logs = append(logs, r)
	}
	return logs, rows.Err()
}

// ReviewSummary aggregates the review log.
type ReviewSummary struct {
	TotalReviews int            `json:"total_reviews"`
	GoodRecalls  int            `json:"good_recalls"`
	ByCategory   map[string]int `json:"by_category"`
	LastReviewAt *time.Time     `json:"last_review_at"`
}

// SummarizeReviews counts reviews overall, per category, and those rated 3 or better.
func (db *DB) SummarizeReviews(ctx context.Context) (ReviewSummary, error) {
	sum := ReviewSummary{ByCategory: make(map[string]int)}

	var last sql.NullString
	err := db.conn.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN quality >= 3 THEN 1 ELSE 0 END), 0), MAX(reviewed_at)
		FROM reviews
	`).Scan(&sum.TotalReviews, &sum.GoodRecalls, &last)
	if err != nil {
		return ReviewSummary{}, fmt.Errorf("failed to summarize reviews: %w", err)
	}
	if last.Valid {
		t, err := time.Parse(time.RFC3339Nano, last.String)
		if err != nil {
			return ReviewSummary{}, fmt.Errorf("failed to parse last review time: %w", err)
		}
		sum.LastReviewAt = &t
	}

	rows, err := db.conn.QueryContext(ctx, `
		SELECT category, COUNT(*) FROM reviews GROUP BY category
	`)
	if err != nil {
		return ReviewSummary{}, fmt.Errorf("failed to count reviews by category: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			cat string
			n   int
		)
		if err := rows.Scan(&cat, &n); err != nil {
			return ReviewSummary{}, fmt.Errorf("failed to scan category count: %w", err)
		}
		sum.ByCategory[cat] = n
	}
	return sum, rows.Err()
}

// Source represents a deck source, either a local path or a Git URL.
type Source struct {
	ID          int64      `json:"id"`
	Path        string     `json:"path"`
	Type        string     `json:"type"`
	LastScanned *time.Time `json:"last_scanned"`
}

// InsertSource inserts a new source path into the database and returns its ID.
func (db *DB) InsertSource(ctx context.Context, path, sourceType string) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO sources (path, type)
		VALUES (?, ?)
	`, path, sourceType)
	if err != nil {
		return 0, fmt.Errorf("failed to insert source %s: %w", path, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for source %s: %w", path, err)
	}
	return id, nil
}

// FindSourceByPath retrieves a source from the database by its path.
// It returns nil, nil when no source matches.
func (db *DB) FindSourceByPath(ctx context.Context, path string) (*Source, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, path, type, last_scanned
		FROM sources WHERE path = ?
	`, path)

	s, err := scanSource(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Source not found
		}
		return nil, fmt.Errorf("failed to find source by path %s: %w", path, err)
	}
	return s, nil
}

// GetAllSources retrieves all stored sources from the database.
func (db *DB) GetAllSources(ctx context.Context) ([]Source, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, path, type, last_scanned
		FROM sources
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get all sources: %w", err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		s, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source row: %w", err)
		}
		sources = append(sources, *s)
	}
	return sources, rows.Err()
}

// UpdateSourceLastScanned updates the last_scanned timestamp for a source.
func (db *DB) UpdateSourceLastScanned(ctx context.Context, sourceID int64, at time.Time) error {
	_, err := db.conn.ExecContext(ctx, `
		UPDATE sources
		SET last_scanned = ?
		WHERE id = ?
	`, at.UTC().Format(time.RFC3339Nano), sourceID)
	if err != nil {
		return fmt.Errorf("failed to update last scanned for source ID %d: %w", sourceID, err)
	}
	return nil
}

// DeleteSource removes a source. Cards already imported from it stay.
func (db *DB) DeleteSource(ctx context.Context, sourceID int64) error {
	res, err := db.conn.ExecContext(ctx, `
		DELETE FROM sources
		WHERE id = ?
	`, sourceID)
	if err != nil {
		return fmt.Errorf("failed to delete source ID %d: %w", sourceID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("source ID %d: %w", sourceID, sql.ErrNoRows)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSource(row rowScanner) (*Source, error) {
	var (
		s           Source
		lastScanned sql.NullString
	)
	if err := row.Scan(&s.ID, &s.Path, &s.Type, &lastScanned); err != nil {
		return nil, err
	}
	if lastScanned.Valid {
		t, err := time.Parse(time.RFC3339Nano, lastScanned.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse last_scanned for source %d: %w", s.ID, err)
		}
		s.LastScanned = &t
	}
	return &s, nil
}
