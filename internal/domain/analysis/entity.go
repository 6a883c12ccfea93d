package analysis

import (
	"time"

	"github.com/JPKrishna28/audio-sentinel/internal/domain/recordings"
)

// ID tipe untuk AnalysisResult
type ResultID string

// ThreatType enum, closed set. ThreatError is coordinator-internal and is
// never produced by the model.
type ThreatType string

const (
	ThreatTheft            ThreatType = "theft"
	ThreatLandDispute      ThreatType = "land_dispute"
	ThreatDomesticViolence ThreatType = "domestic_violence"
	ThreatHarassment       ThreatType = "harassment"
	ThreatAssault          ThreatType = "assault"
	ThreatFraud            ThreatType = "fraud"
	ThreatVandalism        ThreatType = "vandalism"
	ThreatDrugRelated      ThreatType = "drug_related"
	ThreatNoiseComplaint   ThreatType = "noise_complaint"
	ThreatMedicalEmergency ThreatType = "medical_emergency"
	ThreatFireEmergency    ThreatType = "fire_emergency"
	ThreatUnknown          ThreatType = "unknown"
	ThreatError            ThreatType = "error"
)

// Severity enum
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Classification is the normalized classifier output for one transcript.
// Confidence fields are always inside [0,1] by the time this exists.
type Classification struct {
	ThreatType         ThreatType `json:"threat_type"`
	Confidence         float64    `json:"confidence"`
	Severity           Severity   `json:"severity"`
	Analysis           string     `json:"analysis"`
	Keywords           []string   `json:"keywords"`
	Urgent             bool       `json:"urgent"`
	RecommendedAction  string     `json:"recommended_action"`
	LocationMentioned  string     `json:"location_mentioned,omitempty"`
	LocationType       string     `json:"location_type,omitempty"`
	LocationConfidence float64    `json:"location_confidence"`
}

// Aggregate Root: AnalysisResult is the persisted outcome (success or error
// variant) of processing one Recording. Immutable once committed.
type Result struct {
	ID          ResultID               `json:"id"`
	RecordingID recordings.RecordingID `json:"recording_id"`
	Transcript  string                 `json:"transcript,omitempty"`
	Classification
	Audio        []byte    `json:"-"`
	ArtifactURL  string    `json:"artifact_url,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
