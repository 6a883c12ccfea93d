package recordings

import (
	"context"
	"time"
)

// Repository port (interface untuk persistence)
type Repository interface {
	Save(ctx context.Context, rec *Recording) error
	Get(ctx context.Context, id RecordingID) (*Recording, error)
	Latest(ctx context.Context, limit int) ([]*Recording, error)
	Counts(ctx context.Context) (total int, processed int, err error)

	// worker-side surface: eligible records are unprocessed and either never
	// attempted or last attempted before staleBefore
	FindEligible(ctx context.Context, staleBefore time.Time) ([]*Recording, error)
	Reserve(ctx context.Context, id RecordingID, at time.Time) error
}
