package mysql

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
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

// migrate creates the two tables on first boot. MySQL cannot run multiple
// statements in one Exec by default, so each runs separately.
func migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{`
CREATE TABLE IF NOT EXISTS recordings (
    id                VARCHAR(36) PRIMARY KEY,
    filename          VARCHAR(255) NOT NULL,
    audio             LONGBLOB,
    processed         BOOLEAN NOT NULL DEFAULT FALSE,
    created_at        DATETIME NOT NULL,
    last_attempted_at DATETIME NULL,
    INDEX idx_recordings_eligible (processed, last_attempted_at)
);`, `
CREATE TABLE IF NOT EXISTS analysis_results (
    id                  VARCHAR(36) PRIMARY KEY,
    recording_id        VARCHAR(36) NOT NULL,
    transcript          TEXT,
    threat_type         VARCHAR(50) NOT NULL,
    confidence          DECIMAL(3,2) NOT NULL DEFAULT 0,
    severity            VARCHAR(20),
    analysis            TEXT,
    keywords            TEXT,
    urgent              BOOLEAN NOT NULL DEFAULT FALSE,
    recommended_action  TEXT,
    audio               LONGBLOB,
    artifact_url        TEXT,
    error_message       TEXT,
    created_at          DATETIME NOT NULL,
    location_mentioned  TEXT,
    location_type       VARCHAR(50),
    location_confidence DECIMAL(3,2) NOT NULL DEFAULT 0,
    INDEX idx_results_recording (recording_id),
    INDEX idx_results_created (created_at),
    CONSTRAINT fk_results_recording FOREIGN KEY (recording_id) REFERENCES recordings(id)
);`}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}
