package analysis

import (
	"context"

	"github.com/JPKrishna28/audio-sentinel/internal/domain/recordings"
)

// ResultRepository port. The two Commit methods write the result row and flip
// the owning recording's processed flag in one transaction; a failed commit
// leaves both untouched so the record self-heals after the staleness window.
type ResultRepository interface {
	Exists(ctx context.Context, id recordings.RecordingID) (bool, error)
	CommitSuccess(ctx context.Context, res *Result) error
	CommitError(ctx context.Context, res *Result) error

	Get(ctx context.Context, id ResultID) (*Result, error)
	Latest(ctx context.Context, limit int) ([]*Result, error)
	ByThreatType(ctx context.Context, t ThreatType, limit int) ([]*Result, error)
	Urgent(ctx context.Context, limit int) ([]*Result, error)
	Summary(ctx context.Context) (*Summary, error)
}

// Summary rekap untuk dashboard endpoints
type Summary struct {
	ThreatDistribution   map[string]int `json:"threat_distribution"`
	SeverityDistribution map[string]int `json:"severity_distribution"`
	UrgentThreats        int            `json:"urgent_threats"`
}

// Normalizer port: validate + convert one audio blob to canonical WAV inside
// scratchDir. Any failure collapses to a single error the caller records.
type Normalizer interface {
	Normalize(ctx context.Context, path, scratchDir string) (string, error)
}

// Transcriber port: never returns an error, any failure degrades to "".
type Transcriber interface {
	Transcribe(ctx context.Context, wavPath string) string
}

// Classifier port: never returns an error, exhausted retries degrade to a
// fixed unknown result.
type Classifier interface {
	Classify(ctx context.Context, transcript string) Classification
}

// ArtifactStore port (interface untuk penyimpanan artefak)
type ArtifactStore interface {
	UploadBytes(ctx context.Context, key string, data []byte, contentType string) (string, error)
}
