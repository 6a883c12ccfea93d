package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/JPKrishna28/audio-sentinel/internal/domain/analysis"
	"github.com/JPKrishna28/audio-sentinel/internal/domain/recordings"
)

type ResultRepository struct {
	db *sql.DB
}

func NewResultRepository(db *sql.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

const resultColumns = `
id, recording_id, transcript, threat_type, confidence, severity, analysis,
keywords, urgent, recommended_action, artifact_url, error_message, created_at,
location_mentioned, location_type, location_confidence`

// Exists reports whether the recording already has a result (idempotence
// guard for the coordinator).
func (r *ResultRepository) Exists(ctx context.Context, id recordings.RecordingID) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM analysis_results WHERE recording_id = $1);`
	var exists bool
	err := r.db.QueryRowContext(ctx, q, id).Scan(&exists)
	return exists, err
}

// CommitSuccess writes the result row and flips the recording's processed
// flag in one transaction.
func (r *ResultRepository) CommitSuccess(ctx context.Context, res *analysis.Result) error {
	return r.commit(ctx, res)
}

// CommitError writes the error-variant result the same way; the recording is
// still marked processed so it is never retried.
func (r *ResultRepository) CommitError(ctx context.Context, res *analysis.Result) error {
	return r.commit(ctx, res)
}

func (r *ResultRepository) commit(ctx context.Context, res *analysis.Result) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	keywords, err := json.Marshal(res.Keywords)
	if err != nil {
		return err
	}
	created := res.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	const insert = `
INSERT INTO analysis_results
(id, recording_id, transcript, threat_type, confidence, severity, analysis,
 keywords, urgent, recommended_action, audio, artifact_url, error_message,
 created_at, location_mentioned, location_type, location_confidence)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17);
`
	if _, err := tx.ExecContext(ctx, insert,
		res.ID, res.RecordingID, res.Transcript, res.ThreatType, res.Confidence,
		res.Severity, res.Analysis, string(keywords), res.Urgent,
		res.RecommendedAction, res.Audio, res.ArtifactURL, res.ErrorMessage,
		created, res.LocationMentioned, res.LocationType, res.LocationConfidence,
	); err != nil {
		return err
	}

	const mark = `UPDATE recordings SET processed = TRUE WHERE id = $1;`
	if _, err := tx.ExecContext(ctx, mark, res.RecordingID); err != nil {
		return err
	}
	return tx.Commit()
}

// Get by ID, including processed audio bytes for download
func (r *ResultRepository) Get(ctx context.Context, id analysis.ResultID) (*analysis.Result, error) {
	const q = `
SELECT ` + resultColumns + `, audio
FROM analysis_results WHERE id = $1 LIMIT 1;
`
	row := r.db.QueryRowContext(ctx, q, id)
	res, err := scanResult(row.Scan, true)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Latest results, newest first
func (r *ResultRepository) Latest(ctx context.Context, limit int) ([]*analysis.Result, error) {
	const q = `
SELECT ` + resultColumns + `
FROM analysis_results ORDER BY created_at DESC LIMIT $1;
`
	return r.list(ctx, q, normalizeLimit(limit))
}

// ByThreatType filters results by category
func (r *ResultRepository) ByThreatType(ctx context.Context, t analysis.ThreatType, limit int) ([]*analysis.Result, error) {
	const q = `
SELECT ` + resultColumns + `
FROM analysis_results WHERE threat_type = $1
ORDER BY created_at DESC LIMIT $2;
`
	return r.list(ctx, q, t, normalizeLimit(limit))
}

// Urgent results, newest first
func (r *ResultRepository) Urgent(ctx context.Context, limit int) ([]*analysis.Result, error) {
	const q = `
SELECT ` + resultColumns + `
FROM analysis_results WHERE urgent = TRUE
ORDER BY created_at DESC LIMIT $1;
`
	return r.list(ctx, q, normalizeLimit(limit))
}

// Summary rekap distribusi threat/severity + urgent count
func (r *ResultRepository) Summary(ctx context.Context) (*analysis.Summary, error) {
	sum := &analysis.Summary{
		ThreatDistribution:   map[string]int{},
		SeverityDistribution: map[string]int{},
	}

	rows, err := r.db.QueryContext(ctx, `SELECT threat_type, COUNT(*) FROM analysis_results GROUP BY threat_type;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var k string
		var n int
		if err := rows.Scan(&k, &n); err != nil {
			return nil, err
		}
		sum.ThreatDistribution[k] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sevRows, err := r.db.QueryContext(ctx, `SELECT COALESCE(severity, ''), COUNT(*) FROM analysis_results GROUP BY severity;`)
	if err != nil {
		return nil, err
	}
	defer sevRows.Close()
	for sevRows.Next() {
		var k string
		var n int
		if err := sevRows.Scan(&k, &n); err != nil {
			return nil, err
		}
		sum.SeverityDistribution[k] = n
	}
	if err := sevRows.Err(); err != nil {
		return nil, err
	}

	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM analysis_results WHERE urgent = TRUE;`).Scan(&sum.UrgentThreats); err != nil {
		return nil, err
	}
	return sum, nil
}

func (r *ResultRepository) list(ctx context.Context, q string, args ...any) ([]*analysis.Result, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*analysis.Result
	for rows.Next() {
		res, err := scanResult(rows.Scan, false)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 10
	}
	return limit
}

type scanFunc func(dest ...any) error

func scanResult(scan scanFunc, withAudio bool) (*analysis.Result, error) {
	var res analysis.Result
	var transcript, severity, analysisText, keywords, action, artifactURL, errMsg, locMentioned, locType sql.NullString
	var locConfidence sql.NullFloat64

	dest := []any{
		&res.ID, &res.RecordingID, &transcript, &res.ThreatType, &res.Confidence,
		&severity, &analysisText, &keywords, &res.Urgent, &action, &artifactURL,
		&errMsg, &res.CreatedAt, &locMentioned, &locType, &locConfidence,
	}
	if withAudio {
		dest = append(dest, &res.Audio)
	}
	if err := scan(dest...); err != nil {
		return nil, err
	}

	res.Transcript = transcript.String
	res.Severity = analysis.Severity(severity.String)
	res.Analysis = analysisText.String
	res.RecommendedAction = action.String
	res.ArtifactURL = artifactURL.String
	res.ErrorMessage = errMsg.String
	res.LocationMentioned = locMentioned.String
	res.LocationType = locType.String
	res.LocationConfidence = locConfidence.Float64
	res.Keywords = []string{}
	if keywords.Valid && keywords.String != "" {
		if err := json.Unmarshal([]byte(keywords.String), &res.Keywords); err != nil {
			res.Keywords = []string{}
		}
	}
	return &res, nil
}
