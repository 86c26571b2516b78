// Package sqlite persists tickets, projects and their derived results in a
// single SQLite file.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"builddesk/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS tickets (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	subject        TEXT NOT NULL DEFAULT '',
	body           TEXT NOT NULL DEFAULT '',
	reporter_email TEXT NOT NULL DEFAULT '',
	priority       TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL DEFAULT 'open',
	created_at     DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tickets_reporter ON tickets(reporter_email, created_at);

CREATE TABLE IF NOT EXISTS contacts (
	email        TEXT PRIMARY KEY,
	full_name    TEXT NOT NULL DEFAULT '',
	company_name TEXT NOT NULL DEFAULT '',
	plan         TEXT NOT NULL DEFAULT '',
	created_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS ticket_classifications (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	ticket_id     INTEGER NOT NULL,
	category      TEXT NOT NULL,
	priority      TEXT NOT NULL,
	sentiment     TEXT NOT NULL,
	complexity    TEXT NOT NULL,
	confidence    REAL NOT NULL,
	source        TEXT NOT NULL DEFAULT 'heuristic',
	llm_provider  TEXT DEFAULT '',
	llm_model     TEXT DEFAULT '',
	classified_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tc_ticket ON ticket_classifications(ticket_id);
CREATE INDEX IF NOT EXISTS idx_tc_date ON ticket_classifications(classified_at);

CREATE TABLE IF NOT EXISTS ticket_suggestions (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	classification_id INTEGER NOT NULL,
	ticket_id         INTEGER NOT NULL,
	type              TEXT NOT NULL,
	confidence        REAL NOT NULL,
	route_category    TEXT DEFAULT '',
	route_priority    TEXT DEFAULT '',
	response_text     TEXT DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_ts_classification ON ticket_suggestions(classification_id);

CREATE TABLE IF NOT EXISTS projects (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	name               TEXT NOT NULL,
	status             TEXT NOT NULL DEFAULT 'active',
	start_date         DATETIME NOT NULL,
	end_date           DATETIME NOT NULL,
	budget             REAL NOT NULL DEFAULT 0,
	actual_cost        REAL NOT NULL DEFAULT 0,
	completion_pct     REAL NOT NULL DEFAULT 0,
	assigned_team_size INTEGER NOT NULL DEFAULT 0,
	created_at         DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS project_incidents (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id  INTEGER NOT NULL,
	severity    TEXT NOT NULL,
	summary     TEXT DEFAULT '',
	occurred_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_incidents_project ON project_incidents(project_id, occurred_at);

CREATE TABLE IF NOT EXISTS worker_activity (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id INTEGER NOT NULL,
	worker_id  TEXT NOT NULL,
	active_at  DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_activity_project ON worker_activity(project_id, active_at);

CREATE TABLE IF NOT EXISTS health_snapshots (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id    INTEGER NOT NULL,
	overall_score REAL NOT NULL,
	status        TEXT NOT NULL,
	dimensions    TEXT NOT NULL,
	scored_at     DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_project ON health_snapshots(project_id, scored_at);

CREATE TABLE IF NOT EXISTS kb_articles (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	title    TEXT NOT NULL,
	body     TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT '',
	url      TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS content_drafts (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	topic           TEXT NOT NULL,
	title           TEXT NOT NULL,
	body            TEXT NOT NULL,
	excerpt         TEXT DEFAULT '',
	seo_title       TEXT DEFAULT '',
	seo_description TEXT DEFAULT '',
	keywords        TEXT DEFAULT '[]',
	read_time       INTEGER NOT NULL DEFAULT 0,
	fallback        INTEGER NOT NULL DEFAULT 0,
	model           TEXT DEFAULT '',
	created_at      DATETIME NOT NULL
);
`

func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return db, nil
}

// Store wraps the database handle. Methods are safe for concurrent use.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func Open(path string) (*Store, error) {
	db, err := InitDB(path)
	if err != nil {
		return nil, err
	}
	return New(db), nil
}

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

func notFound(err error, what string, id any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %v: %w", what, id, domain.ErrRecordNotFound)
	}
	return fmt.Errorf("%s %v: %w", what, id, err)
}
