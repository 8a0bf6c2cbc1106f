package store

import "fmt"

// schemaSQL returns the DDL for all tables. vectorDim controls the vec0
// virtual table dimension.
func schemaSQL(vectorDim int) string {
	return fmt.Sprintf(`
-- Source papers with hash-based change detection
CREATE TABLE IF NOT EXISTS documents (
    id INTEGER PRIMARY KEY,
    path TEXT NOT NULL UNIQUE,
    filename TEXT NOT NULL,
    format TEXT NOT NULL,
    subject TEXT NOT NULL DEFAULT '',
    content_hash TEXT NOT NULL,
    parse_method TEXT NOT NULL,
    status TEXT DEFAULT 'pending',
    metadata JSON,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Accepted questions; correct_index is NULL when the answer is unknown
CREATE TABLE IF NOT EXISTS questions (
    id INTEGER PRIMARY KEY,
    document_id INTEGER REFERENCES documents(id) ON DELETE CASCADE,
    question_number INTEGER NOT NULL,
    subject TEXT NOT NULL,
    chapter TEXT NOT NULL,
    topic TEXT NOT NULL,
    stem TEXT NOT NULL,
    options JSON NOT NULL,
    correct_index INTEGER CHECK (correct_index BETWEEN 0 AND 3),
    explanation TEXT,
    difficulty INTEGER DEFAULT 3,
    language TEXT,
    source TEXT,
    status TEXT DEFAULT 'active',
    bloom_level TEXT,
    tags JSON,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_questions_document ON questions(document_id);
CREATE INDEX IF NOT EXISTS idx_questions_subject ON questions(subject, question_number);

-- Rejected blocks with their reason codes and raw text
CREATE TABLE IF NOT EXISTS rejects (
    id INTEGER PRIMARY KEY,
    document_id INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    question_number INTEGER NOT NULL,
    reasons TEXT NOT NULL,
    raw TEXT NOT NULL
);

-- Stem vectors via sqlite-vec
CREATE VIRTUAL TABLE IF NOT EXISTS vec_questions USING vec0(
    question_id INTEGER PRIMARY KEY,
    embedding float[%d] distance_metric=cosine
);

-- Full-text search over stems and options via FTS5
CREATE VIRTUAL TABLE IF NOT EXISTS questions_fts USING fts5(
    stem,
    options,
    content='questions',
    content_rowid='id',
    tokenize='porter unicode61'
);

-- FTS triggers to keep index in sync
CREATE TRIGGER IF NOT EXISTS questions_ai AFTER INSERT ON questions BEGIN
    INSERT INTO questions_fts(rowid, stem, options) VALUES (new.id, new.stem, new.options);
END;
CREATE TRIGGER IF NOT EXISTS questions_ad AFTER DELETE ON questions BEGIN
    INSERT INTO questions_fts(questions_fts, rowid, stem, options) VALUES ('delete', old.id, old.stem, old.options);
END;
CREATE TRIGGER IF NOT EXISTS questions_au AFTER UPDATE ON questions BEGIN
    INSERT INTO questions_fts(questions_fts, rowid, stem, options) VALUES ('delete', old.id, old.stem, old.options);
    INSERT INTO questions_fts(rowid, stem, options) VALUES (new.id, new.stem, new.options);
END;
`, vectorDim)
}
