package storage

const schema = `
-- The 'reviews' table journals every answered card together with the schedule it produced.
CREATE TABLE IF NOT EXISTS reviews (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    card_hash TEXT NOT NULL,
    set_name TEXT NOT NULL,
    question TEXT NOT NULL,
    correct INTEGER NOT NULL,
    easiness REAL NOT NULL,
    interval_hours INTEGER NOT NULL,
    repetitions INTEGER NOT NULL,
    next_review_at DATETIME NOT NULL,
    reviewed_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_reviews_set ON reviews(set_name, reviewed_at);
CREATE INDEX IF NOT EXISTS idx_reviews_card ON reviews(card_hash);
`
