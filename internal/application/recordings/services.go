package recordings

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/JPKrishna28/audio-sentinel/internal/application"
	"github.com/JPKrishna28/audio-sentinel/internal/domain/analysis"
	domain "github.com/JPKrishna28/audio-sentinel/internal/domain/recordings"
)

// Service implements use-cases untuk Recording uploads and dashboard reads.
// Safe for concurrent use; all state lives behind the repository ports.
type Service struct {
	Repo     domain.Repository
	Results  analysis.ResultRepository
	Clock    application.Clock
	MaxBytes int64
}

// ErrInvalidUpload marks rejections the HTTP layer maps to 400.
var ErrInvalidUpload = errors.New("invalid upload")

// Command untuk upload
type UploadCommand struct {
	Filename string
	Data     []byte
}

type UploadResult struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Status   string `json:"status"`
}

// Upload validates and stores one audio blob. Processing happens later, on
// the coordinator's schedule, so this returns as soon as the row is saved.
func (s *Service) Upload(ctx context.Context, cmd UploadCommand) (UploadResult, error) {
	if cmd.Filename == "" {
		return UploadResult{}, fmt.Errorf("%w: filename is required", ErrInvalidUpload)
	}
	if !domain.AllowedFilename(cmd.Filename) {
		return UploadResult{}, fmt.Errorf("%w: unsupported audio extension: %s", ErrInvalidUpload, cmd.Filename)
	}
	if len(cmd.Data) == 0 {
		return UploadResult{}, fmt.Errorf("%w: empty file: %s", ErrInvalidUpload, cmd.Filename)
	}
	if s.MaxBytes > 0 && int64(len(cmd.Data)) > s.MaxBytes {
		return UploadResult{}, fmt.Errorf("%w: file too large: %d bytes (max %d)", ErrInvalidUpload, len(cmd.Data), s.MaxBytes)
	}

	rec := &domain.Recording{
		ID:        domain.RecordingID(uuid.New().String()),
		Filename:  cmd.Filename,
		Audio:     cmd.Data,
		Processed: false,
		CreatedAt: s.Clock.Now(),
	}
	if err := s.Repo.Save(ctx, rec); err != nil {
		return UploadResult{}, err
	}
	return UploadResult{ID: string(rec.ID), Filename: rec.Filename, Status: "queued"}, nil
}

// Latest ambil N recording terakhir (without audio payloads)
func (s *Service) Latest(ctx context.Context, limit int) ([]*domain.Recording, error) {
	return s.Repo.Latest(ctx, limit)
}

// Get ambil 1 recording by id
func (s *Service) Get(ctx context.Context, id domain.RecordingID) (*domain.Recording, error) {
	return s.Repo.Get(ctx, id)
}

// Status rekap antrian + hasil terakhir
func (s *Service) Status(ctx context.Context) (map[string]any, error) {
	total, processed, err := s.Repo.Counts(ctx)
	if err != nil {
		return nil, err
	}
	latest, err := s.Results.Latest(ctx, 5)
	if err != nil {
		return nil, err
	}
	type resultLine struct {
		ID         string  `json:"id"`
		ThreatType string  `json:"threat_type"`
		Confidence float64 `json:"confidence"`
		Severity   string  `json:"severity"`
		CreatedAt  string  `json:"created_at"`
	}
	lines := make([]resultLine, 0, len(latest))
	for _, r := range latest {
		lines = append(lines, resultLine{
			ID:         string(r.ID),
			ThreatType: string(r.ThreatType),
			Confidence: r.Confidence,
			Severity:   string(r.Severity),
			CreatedAt:  r.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}
	return map[string]any{
		"total_files":     total,
		"processed_files": processed,
		"pending_files":   total - processed,
		"latest_results":  lines,
	}, nil
}
