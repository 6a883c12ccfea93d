package mysql

import (
	"context"
	"database/sql"
	"time"

	domain "github.com/JPKrishna28/audio-sentinel/internal/domain/recordings"
)

type RecordingRepository struct {
	db *sql.DB
}

func NewRecordingRepository(db *sql.DB) *RecordingRepository {
	return &RecordingRepository{db: db}
}

// Save insert/update Recording record
func (r *RecordingRepository) Save(ctx context.Context, rec *domain.Recording) error {
	const q = `
INSERT INTO recordings (id, filename, audio, processed, created_at, last_attempted_at)
VALUES (?,?,?,?,?,?)
ON DUPLICATE KEY UPDATE
 filename=VALUES(filename),
 processed=VALUES(processed),
 last_attempted_at=VALUES(last_attempted_at);
`
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, q,
		rec.ID, rec.Filename, rec.Audio, rec.Processed, created, rec.LastAttemptedAt,
	)
	return err
}

// Get by ID, including audio bytes
func (r *RecordingRepository) Get(ctx context.Context, id domain.RecordingID) (*domain.Recording, error) {
	const q = `
SELECT id, filename, audio, processed, created_at, last_attempted_at
FROM recordings WHERE id=? LIMIT 1;
`
	var rec domain.Recording
	var attempted sql.NullTime
	if err := r.db.QueryRowContext(ctx, q, id).Scan(
		&rec.ID, &rec.Filename, &rec.Audio, &rec.Processed, &rec.CreatedAt, &attempted,
	); err != nil {
		return nil, err
	}
	if attempted.Valid {
		t := attempted.Time
		rec.LastAttemptedAt = &t
	}
	return &rec, nil
}

// Latest recordings, newest first, audio omitted
func (r *RecordingRepository) Latest(ctx context.Context, limit int) ([]*domain.Recording, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, filename, processed, created_at, last_attempted_at
FROM recordings ORDER BY created_at DESC LIMIT ?;
`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Recording
	for rows.Next() {
		var rec domain.Recording
		var attempted sql.NullTime
		if err := rows.Scan(&rec.ID, &rec.Filename, &rec.Processed, &rec.CreatedAt, &attempted); err != nil {
			return nil, err
		}
		if attempted.Valid {
			t := attempted.Time
			rec.LastAttemptedAt = &t
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// Counts total dan processed
func (r *RecordingRepository) Counts(ctx context.Context) (int, int, error) {
	const q = `
SELECT COUNT(*),
       COALESCE(SUM(CASE WHEN processed THEN 1 ELSE 0 END), 0)
FROM recordings;
`
	var total, processed int
	if err := r.db.QueryRowContext(ctx, q).Scan(&total, &processed); err != nil {
		return 0, 0, err
	}
	return total, processed, nil
}

// FindEligible returns unprocessed recordings never attempted or last
// attempted before staleBefore, in upload order, with audio bytes attached.
func (r *RecordingRepository) FindEligible(ctx context.Context, staleBefore time.Time) ([]*domain.Recording, error) {
	const q = `
SELECT id, filename, audio, processed, created_at, last_attempted_at
FROM recordings
WHERE processed = FALSE
  AND (last_attempted_at IS NULL OR last_attempted_at < ?)
ORDER BY created_at;
`
	rows, err := r.db.QueryContext(ctx, q, staleBefore)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Recording
	for rows.Next() {
		var rec domain.Recording
		var attempted sql.NullTime
		if err := rows.Scan(&rec.ID, &rec.Filename, &rec.Audio, &rec.Processed, &rec.CreatedAt, &attempted); err != nil {
			return nil, err
		}
		if attempted.Valid {
			t := attempted.Time
			rec.LastAttemptedAt = &t
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// Reserve stamps last_attempted_at before any expensive work starts
func (r *RecordingRepository) Reserve(ctx context.Context, id domain.RecordingID, at time.Time) error {
	const q = `UPDATE recordings SET last_attempted_at = ? WHERE id = ?;`
	_, err := r.db.ExecContext(ctx, q, at, id)
	return err
}
