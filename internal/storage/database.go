package storage

import (
	"database/sql"
	"fmt"

	"github.com/conorfennell/flashdeck/internal/domain"
	_ "modernc.org/sqlite" // Registers the sqlite driver
)

// DB is the review journal, a SQLite database of answered cards.
type DB struct {
	conn *sql.DB
}

// Open creates a new database connection and ensures the schema is up to date.
func Open(dsn string) (*DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

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

// InsertReview journals one answered card and returns the entry's ID.
func (db *DB) InsertReview(r domain.ReviewLog) (int64, error) {
	res, err := db.conn.Exec(`
		INSERT INTO reviews (card_hash, set_name, question, correct, easiness, interval_hours, repetitions, next_review_at, reviewed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.CardHash,
		r.Set,
		r.Question,
		r.Correct,
		r.Schedule.Easiness,
		r.Schedule.IntervalHours,
		r.Schedule.Repetitions,
		r.Schedule.NextReviewAt,
		r.ReviewedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert review for card %s: %w", r.CardHash, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for card %s: %w", r.CardHash, err)
	}
	return id, nil
}

// ReviewsBySet returns the most recent reviews of a set, newest first.
// A limit of zero or less returns all of them.
func (db *DB) ReviewsBySet(set string, limit int) ([]domain.ReviewLog, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.conn.Query(`
		SELECT id, card_hash, set_name, question, correct, easiness, interval_hours, repetitions, next_review_at, reviewed_at
		FROM reviews WHERE set_name = ?
		ORDER BY reviewed_at DESC, id DESC
		LIMIT ?
	`, set, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get reviews for set %s: %w", set, err)
	}
	defer rows.Close()

	var reviews []domain.ReviewLog
	for rows.Next() {
		var r domain.ReviewLog
		if err := rows.Scan(
			&r.ID,
			&r.CardHash,
			&r.Set,
			&r.Question,
			&r.Correct,
			&r.Schedule.Easiness,
			&r.Schedule.IntervalHours,
			&r.Schedule.Repetitions,
			&r.Schedule.NextReviewAt,
			&r.ReviewedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan review row for set %s: %w", set, err)
		}
		reviews = append(reviews, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read reviews for set %s: %w", set, err)
	}
	return reviews, nil
}

// Summary counts the journaled reviews of a set.
type Summary struct {
	Total   int
	Correct int
}

// SummaryBySet returns the review totals of a set.
func (db *DB) SummaryBySet(set string) (Summary, error) {
	var s Summary
	err := db.conn.QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(correct), 0)
		FROM reviews WHERE set_name = ?
	`, set).Scan(&s.Total, &s.Correct)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to summarize reviews for set %s: %w", set, err)
	}
	return s, nil
}
