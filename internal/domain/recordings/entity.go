package recordings

import (
	"path/filepath"
	"strings"
	"time"
)

// ID tipe untuk Recording
type RecordingID string

// Aggregate Root: Recording is one uploaded audio file awaiting or having
// completed processing. Audio bytes live on the row; the coordinator is the
// only writer of Processed and LastAttemptedAt.
type Recording struct {
	ID              RecordingID `json:"id"`
	Filename        string      `json:"filename"`
	Audio           []byte      `json:"-"`
	Processed       bool        `json:"processed"`
	CreatedAt       time.Time   `json:"created_at"`
	LastAttemptedAt *time.Time  `json:"last_attempted_at,omitempty"`
}

// allowed upload extensions, matched case-insensitively
var allowedExtensions = map[string]bool{
	".wav":  true,
	".mp3":  true,
	".m4a":  true,
	".aac":  true,
	".ogg":  true,
	".flac": true,
}

// AllowedFilename reports whether the filename carries a supported audio
// extension. Decodability is probed later, at processing time.
func AllowedFilename(name string) bool {
	return allowedExtensions[strings.ToLower(filepath.Ext(name))]
}
