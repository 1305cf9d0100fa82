package pgstore

const schema = `
CREATE TABLE IF NOT EXISTS sources (
    id BIGSERIAL PRIMARY KEY,
    owner TEXT NOT NULL,
    path TEXT NOT NULL,
    type TEXT NOT NULL DEFAULT 'local',
    last_scanned TIMESTAMPTZ,

    UNIQUE(owner, path)
);

CREATE TABLE IF NOT EXISTS cards (
    id TEXT PRIMARY KEY,
    owner TEXT NOT NULL,
    deck TEXT NOT NULL,
    front TEXT NOT NULL,
    back TEXT NOT NULL,
    ease_factor DOUBLE PRECISION NOT NULL DEFAULT 2.5,
    interval_days INTEGER NOT NULL DEFAULT 1,
    repetitions INTEGER NOT NULL DEFAULT 0,
    last_review TIMESTAMPTZ,
    next_review TIMESTAMPTZ,
    version BIGINT NOT NULL DEFAULT 1,
    source_id BIGINT REFERENCES sources(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_cards_owner_deck ON cards(owner, deck);
CREATE INDEX IF NOT EXISTS idx_cards_source ON cards(source_id);

CREATE TABLE IF NOT EXISTS review_log (
    id BIGSERIAL PRIMARY KEY,
    card_id TEXT NOT NULL REFERENCES cards(id) ON DELETE CASCADE,
    owner TEXT NOT NULL,
    quality INTEGER NOT NULL,
    reviewed_at TIMESTAMPTZ NOT NULL,
    interval_days INTEGER NOT NULL,
    ease_factor DOUBLE PRECISION NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_review_log_card ON review_log(card_id, reviewed_at);
`
