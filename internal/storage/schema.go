package storage

const schema = `
-- 'sources' tracks where imported decks come from: a local directory or a git repository.
CREATE TABLE IF NOT EXISTS sources (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    owner TEXT NOT NULL,
    path TEXT NOT NULL,
    type TEXT NOT NULL DEFAULT 'local',
    last_scanned DATETIME,

    UNIQUE(owner, path)
);

-- 'cards' holds each flashcard and its scheduling state.
-- version is bumped on every write and guards concurrent reviews.
CREATE TABLE IF NOT EXISTS cards (
    id TEXT PRIMARY KEY,
    owner TEXT NOT NULL,
    deck TEXT NOT NULL,
    front TEXT NOT NULL,
    back TEXT NOT NULL,
    ease_factor REAL NOT NULL DEFAULT 2.5,
    interval_days INTEGER NOT NULL DEFAULT 1,
    repetitions INTEGER NOT NULL DEFAULT 0,
    last_review DATETIME,
    next_review DATETIME,
    version INTEGER NOT NULL DEFAULT 1,
    source_id INTEGER,

    FOREIGN KEY(source_id) REFERENCES sources(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_cards_owner_deck ON cards(owner, deck);
CREATE INDEX IF NOT EXISTS idx_cards_source ON cards(source_id);

-- 'review_log' keeps one row per grading.
CREATE TABLE IF NOT EXISTS review_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    card_id TEXT NOT NULL,
    owner TEXT NOT NULL,
    quality INTEGER NOT NULL,
    reviewed_at DATETIME NOT NULL,
    interval_days INTEGER NOT NULL,
    ease_factor REAL NOT NULL,

    FOREIGN KEY(card_id) REFERENCES cards(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_review_log_card ON review_log(card_id, reviewed_at);
`
