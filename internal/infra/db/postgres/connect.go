package postgres

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"
)

func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	// test ping
	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx2); err != nil {
		return nil, err
	}
	if err := migrate(ctx, db); err != nil {
		return nil, err
	}
	return db, nil
}

// migrate creates the two tables on first boot. Keywords persist as a
// JSON-encoded text column so both SQL backends stay aligned.
func migrate(ctx context.Context, db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS recordings (
    id                TEXT PRIMARY KEY,
    filename          VARCHAR(255) NOT NULL,
    audio             BYTEA,
    processed         BOOLEAN NOT NULL DEFAULT FALSE,
    created_at        TIMESTAMPTZ NOT NULL,
    last_attempted_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS analysis_results (
    id                  TEXT PRIMARY KEY,
    recording_id        TEXT NOT NULL REFERENCES recordings(id),
    transcript          TEXT,
    threat_type         VARCHAR(50) NOT NULL,
    confidence          NUMERIC(3,2) NOT NULL DEFAULT 0,
    severity            VARCHAR(20),
    analysis            TEXT,
    keywords            TEXT,
    urgent              BOOLEAN NOT NULL DEFAULT FALSE,
    recommended_action  TEXT,
    audio               BYTEA,
    artifact_url        TEXT,
    error_message       TEXT,
    created_at          TIMESTAMPTZ NOT NULL,
    location_mentioned  TEXT,
    location_type       VARCHAR(50),
    location_confidence NUMERIC(3,2) NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_recordings_eligible ON recordings (processed, last_attempted_at);
CREATE INDEX IF NOT EXISTS idx_results_recording ON analysis_results (recording_id);
CREATE INDEX IF NOT EXISTS idx_results_created ON analysis_results (created_at);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}
