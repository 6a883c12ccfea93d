package processing

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/JPKrishna28/audio-sentinel/internal/application"
	"github.com/JPKrishna28/audio-sentinel/internal/domain/analysis"
	"github.com/JPKrishna28/audio-sentinel/internal/domain/recordings"
)

// Coordinator owns the background processing loop: it discovers unprocessed
// recordings, runs each through normalize → transcribe → classify, and commits
// exactly one AnalysisResult (success or error variant) per recording. One
// cycle runs at a time, guarded by the cross-cycle lock; a failed record never
// aborts the batch.
type Coordinator struct {
	Recordings  recordings.Repository
	Results     analysis.ResultRepository
	Normalizer  analysis.Normalizer
	Transcriber analysis.Transcriber
	Classifier  analysis.Classifier
	Artifacts   analysis.ArtifactStore // optional; nil disables artifact upload
	Clock       application.Clock
	Log         *logrus.Entry

	PollInterval time.Duration // sleep between cycles (and after a busy lock)
	StaleAfter   time.Duration // reservation age before a record is re-eligible

	// cross-cycle lock; guards against overlap from slow cycles
	mu sync.Mutex
}

const (
	DefaultPollInterval = 600 * time.Second
	DefaultStaleAfter   = 60 * time.Second
)

// Run executes the poll loop until ctx is cancelled. It is meant to be started
// once, in its own goroutine, at process boot.
func (c *Coordinator) Run(ctx context.Context) {
	if c.PollInterval == 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.StaleAfter == 0 {
		c.StaleAfter = DefaultStaleAfter
	}
	log := c.log()
	log.WithFields(logrus.Fields{
		"poll_interval": c.PollInterval,
		"stale_after":   c.StaleAfter,
	}).Info("processing worker started")

	for {
		if ctx.Err() != nil {
			log.Info("processing worker stopped")
			return
		}
		if !c.mu.TryLock() {
			log.Info("another processing cycle is still running")
			if !c.sleep(ctx) {
				return
			}
			continue
		}
		c.RunCycle(ctx)
		c.mu.Unlock()
		if !c.sleep(ctx) {
			log.Info("processing worker stopped")
			return
		}
	}
}

// RunCycle performs one discovery pass. Exposed so operators (and tests) can
// force a pass without waiting out the poll interval.
func (c *Coordinator) RunCycle(ctx context.Context) {
	log := c.log()
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", fmt.Sprint(r)).Error("processing cycle panicked")
		}
	}()

	staleBefore := c.Clock.Now().Add(-c.StaleAfter)
	eligible, err := c.Recordings.FindEligible(ctx, staleBefore)
	if err != nil {
		log.WithError(err).Error("querying unprocessed recordings failed")
		return
	}
	if len(eligible) == 0 {
		log.Debug("no unprocessed recordings found")
		return
	}
	log.WithField("count", len(eligible)).Info("found unprocessed recordings")

	for _, rec := range eligible {
		c.processOne(ctx, rec)
	}
}

func (c *Coordinator) processOne(ctx context.Context, rec *recordings.Recording) {
	log := c.log().WithFields(logrus.Fields{
		"recording_id": rec.ID,
		"filename":     rec.Filename,
	})

	// Reserve before any expensive work. A crash mid-processing leaves the
	// record skippable until the staleness window lapses instead of being
	// retried in a tight loop.
	if err := c.Recordings.Reserve(ctx, rec.ID, c.Clock.Now()); err != nil {
		log.WithError(err).Error("reserving recording failed")
		return
	}

	exists, err := c.Results.Exists(ctx, rec.ID)
	if err != nil {
		log.WithError(err).Error("checking for existing result failed")
		return
	}
	if exists {
		log.Info("recording already analyzed, skipping")
		return
	}

	log.Info("processing recording")
	res, err := c.attempt(ctx, rec)
	if err != nil {
		log.WithError(err).Error("processing recording failed")
		c.recordError(ctx, rec, err, log)
		return
	}

	if err := c.Results.CommitSuccess(ctx, res); err != nil {
		// rolled back; eligible again once the staleness window expires
		log.WithError(err).Error("committing result failed")
		return
	}
	log.WithField("threat_type", res.ThreatType).Info("recording processed")
}

// attempt runs the staged pipeline inside a per-record scratch directory that
// is removed on every exit path. A panic in any stage becomes an ordinary
// error so the caller can record it.
func (c *Coordinator) attempt(ctx context.Context, rec *recordings.Recording) (res *analysis.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("panic while processing: %v", r)
		}
	}()

	scratch, err := os.MkdirTemp("", "audio-sentinel-*")
	if err != nil {
		return nil, fmt.Errorf("creating scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	src := filepath.Join(scratch, filepath.Base(rec.Filename))
	if err := os.WriteFile(src, rec.Audio, 0o600); err != nil {
		return nil, fmt.Errorf("writing scratch file: %w", err)
	}

	wavPath, err := c.Normalizer.Normalize(ctx, src, scratch)
	if err != nil {
		return nil, fmt.Errorf("normalizing audio: %w", err)
	}

	transcript := c.Transcriber.Transcribe(ctx, wavPath)
	cls := c.Classifier.Classify(ctx, transcript)

	processed, err := os.ReadFile(wavPath)
	if err != nil {
		return nil, fmt.Errorf("reading processed audio: %w", err)
	}

	result := &analysis.Result{
		ID:             analysis.ResultID(uuid.New().String()),
		RecordingID:    rec.ID,
		Transcript:     transcript,
		Classification: cls,
		Audio:          processed,
		CreatedAt:      c.Clock.Now(),
	}

	if c.Artifacts != nil {
		key := fmt.Sprintf("results/%s.wav", rec.ID)
		url, uerr := c.Artifacts.UploadBytes(ctx, key, processed, "audio/wav")
		if uerr != nil {
			// artifact upload is best-effort; the bytes are on the row
			c.log().WithError(uerr).WithField("recording_id", rec.ID).Warn("artifact upload failed")
		} else {
			result.ArtifactURL = url
		}
	}

	return result, nil
}

// recordError writes the error-variant result and marks the recording
// processed, unless a result appeared in the meantime. If this write also
// fails the record is left for the next cycle.
func (c *Coordinator) recordError(ctx context.Context, rec *recordings.Recording, cause error, log *logrus.Entry) {
	exists, err := c.Results.Exists(ctx, rec.ID)
	if err != nil {
		log.WithError(err).Error("checking for existing result failed")
		return
	}
	if exists {
		return
	}

	res := &analysis.Result{
		ID:          analysis.ResultID(uuid.New().String()),
		RecordingID: rec.ID,
		Classification: analysis.Classification{
			ThreatType: analysis.ThreatError,
			Confidence: 0.0,
			Severity:   analysis.SeverityLow,
			Analysis:   fmt.Sprintf("Error processing file: %v", cause),
			Keywords:   []string{},
		},
		ErrorMessage: cause.Error(),
		CreatedAt:    c.Clock.Now(),
	}
	if err := c.Results.CommitError(ctx, res); err != nil {
		log.WithError(err).Error("committing error result failed, leaving record for next cycle")
	}
}

// sleep waits one poll interval; false means ctx was cancelled.
func (c *Coordinator) sleep(ctx context.Context) bool {
	t := time.NewTimer(c.PollInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Coordinator) log() *logrus.Entry {
	if c.Log != nil {
		return c.Log
	}
	return logrus.NewEntry(logrus.StandardLogger())
}
