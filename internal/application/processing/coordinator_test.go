package processing

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/JPKrishna28/audio-sentinel/internal/domain/analysis"
	"github.com/JPKrishna28/audio-sentinel/internal/domain/recordings"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type fakeRecordings struct {
	mu        sync.Mutex
	eligible  []*recordings.Recording
	reserved  []recordings.RecordingID
	findCalls int

	findErr    error
	reserveErr error
}

func (f *fakeRecordings) Save(context.Context, *recordings.Recording) error { return nil }
func (f *fakeRecordings) Get(context.Context, recordings.RecordingID) (*recordings.Recording, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeRecordings) Latest(context.Context, int) ([]*recordings.Recording, error) {
	return nil, nil
}
func (f *fakeRecordings) Counts(context.Context) (int, int, error) { return 0, 0, nil }

func (f *fakeRecordings) FindEligible(_ context.Context, staleBefore time.Time) ([]*recordings.Recording, error) {
	f.mu.Lock()
	f.findCalls++
	f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	var out []*recordings.Recording
	for _, rec := range f.eligible {
		if rec.LastAttemptedAt == nil || rec.LastAttemptedAt.Before(staleBefore) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeRecordings) Reserve(_ context.Context, id recordings.RecordingID, at time.Time) error {
	if f.reserveErr != nil {
		return f.reserveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reserved = append(f.reserved, id)
	for _, rec := range f.eligible {
		if rec.ID == id {
			t := at
			rec.LastAttemptedAt = &t
		}
	}
	return nil
}

type fakeResults struct {
	existing  map[recordings.RecordingID]bool
	successes []*analysis.Result
	failures  []*analysis.Result

	existsErr  error
	commitErr  error
	successErr error
}

func (f *fakeResults) Exists(_ context.Context, id recordings.RecordingID) (bool, error) {
	if f.existsErr != nil {
		return false, f.existsErr
	}
	return f.existing[id], nil
}

func (f *fakeResults) CommitSuccess(_ context.Context, res *analysis.Result) error {
	if f.successErr != nil {
		return f.successErr
	}
	if f.commitErr != nil {
		return f.commitErr
	}
	f.successes = append(f.successes, res)
	return nil
}

func (f *fakeResults) CommitError(_ context.Context, res *analysis.Result) error {
	if f.commitErr != nil {
		return f.commitErr
	}
	f.failures = append(f.failures, res)
	return nil
}

func (f *fakeResults) Get(context.Context, analysis.ResultID) (*analysis.Result, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeResults) Latest(context.Context, int) ([]*analysis.Result, error) { return nil, nil }
func (f *fakeResults) ByThreatType(context.Context, analysis.ThreatType, int) ([]*analysis.Result, error) {
	return nil, nil
}
func (f *fakeResults) Urgent(context.Context, int) ([]*analysis.Result, error) { return nil, nil }
func (f *fakeResults) Summary(context.Context) (*analysis.Summary, error)      { return nil, nil }

// fakeNormalizer writes a tiny wav into scratchDir so later stages can read it
type fakeNormalizer struct {
	calls int
	err   error
}

func (f *fakeNormalizer) Normalize(_ context.Context, path, scratchDir string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	out := filepath.Join(scratchDir, "normalized.wav")
	if err := os.WriteFile(out, []byte("RIFFwav"), 0o600); err != nil {
		return "", err
	}
	return out, nil
}

type fakeTranscriber struct {
	calls      int
	transcript string
}

func (f *fakeTranscriber) Transcribe(context.Context, string) string {
	f.calls++
	return f.transcript
}

type fakeClassifier struct {
	calls int
	out   analysis.Classification
}

func (f *fakeClassifier) Classify(context.Context, string) analysis.Classification {
	f.calls++
	return f.out
}

type fakeArtifacts struct {
	keys []string
	err  error
}

func (f *fakeArtifacts) UploadBytes(_ context.Context, key string, _ []byte, _ string) (string, error) {
	f.keys = append(f.keys, key)
	if f.err != nil {
		return "", f.err
	}
	return "https://artifacts.local/" + key, nil
}

func testRecording(id string) *recordings.Recording {
	return &recordings.Recording{
		ID:        recordings.RecordingID(id),
		Filename:  id + ".wav",
		Audio:     []byte("RIFForiginal"),
		CreatedAt: time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC),
	}
}

func newTestCoordinator(recs *fakeRecordings, results *fakeResults) (*Coordinator, *fakeNormalizer, *fakeTranscriber, *fakeClassifier) {
	norm := &fakeNormalizer{}
	stt := &fakeTranscriber{transcript: "there is a fire in the building"}
	cls := &fakeClassifier{out: analysis.Classification{
		ThreatType: analysis.ThreatFireEmergency,
		Confidence: 0.95,
		Severity:   analysis.SeverityCritical,
		Urgent:     true,
		Keywords:   []string{"fire"},
	}}
	c := &Coordinator{
		Recordings:  recs,
		Results:     results,
		Normalizer:  norm,
		Transcriber: stt,
		Classifier:  cls,
		Clock:       fixedClock{now: time.Date(2026, 1, 10, 10, 0, 0, 0, time.UTC)},
		StaleAfter:  60 * time.Second,
	}
	return c, norm, stt, cls
}

func TestRunCycleProcessesEligibleRecording(t *testing.T) {
	recs := &fakeRecordings{eligible: []*recordings.Recording{testRecording("rec-1")}}
	results := &fakeResults{existing: map[recordings.RecordingID]bool{}}
	c, _, stt, cls := newTestCoordinator(recs, results)

	c.RunCycle(context.Background())

	if len(recs.reserved) != 1 || recs.reserved[0] != "rec-1" {
		t.Fatalf("reserved = %v, want [rec-1]", recs.reserved)
	}
	if stt.calls != 1 || cls.calls != 1 {
		t.Errorf("transcriber calls = %d, classifier calls = %d, want 1 each", stt.calls, cls.calls)
	}
	if len(results.successes) != 1 {
		t.Fatalf("committed successes = %d, want 1", len(results.successes))
	}
	res := results.successes[0]
	if res.RecordingID != "rec-1" {
		t.Errorf("recording id = %q, want rec-1", res.RecordingID)
	}
	if res.ThreatType != analysis.ThreatFireEmergency {
		t.Errorf("threat type = %q, want fire_emergency", res.ThreatType)
	}
	if res.Transcript != "there is a fire in the building" {
		t.Errorf("transcript = %q", res.Transcript)
	}
	if len(res.Audio) == 0 {
		t.Error("result audio is empty, want normalized wav bytes")
	}
	if len(results.failures) != 0 {
		t.Errorf("committed failures = %d, want 0", len(results.failures))
	}
}

func TestRunCycleReservesBeforeAnyPipelineStage(t *testing.T) {
	recs := &fakeRecordings{
		eligible:   []*recordings.Recording{testRecording("rec-1")},
		reserveErr: errors.New("row locked"),
	}
	results := &fakeResults{existing: map[recordings.RecordingID]bool{}}
	c, norm, stt, cls := newTestCoordinator(recs, results)

	c.RunCycle(context.Background())

	if norm.calls != 0 || stt.calls != 0 || cls.calls != 0 {
		t.Errorf("pipeline ran despite failed reservation: norm=%d stt=%d cls=%d",
			norm.calls, stt.calls, cls.calls)
	}
	if len(results.successes)+len(results.failures) != 0 {
		t.Error("a result was committed despite failed reservation")
	}
}

func TestRunCycleSkipsAlreadyAnalyzedRecording(t *testing.T) {
	recs := &fakeRecordings{eligible: []*recordings.Recording{testRecording("rec-1")}}
	results := &fakeResults{existing: map[recordings.RecordingID]bool{"rec-1": true}}
	c, norm, _, _ := newTestCoordinator(recs, results)

	c.RunCycle(context.Background())

	if norm.calls != 0 {
		t.Errorf("normalizer calls = %d, want 0 for already analyzed recording", norm.calls)
	}
	if len(results.successes)+len(results.failures) != 0 {
		t.Error("a duplicate result was committed")
	}
	if len(recs.reserved) != 1 {
		t.Errorf("reserved = %v, want the skip to still consume the reservation", recs.reserved)
	}
}

func TestRunCycleCommitsErrorVariantOnNormalizeFailure(t *testing.T) {
	recs := &fakeRecordings{eligible: []*recordings.Recording{testRecording("rec-1")}}
	results := &fakeResults{existing: map[recordings.RecordingID]bool{}}
	c, norm, stt, cls := newTestCoordinator(recs, results)
	norm.err = errors.New("no audio stream")

	c.RunCycle(context.Background())

	if stt.calls != 0 || cls.calls != 0 {
		t.Errorf("later stages ran after normalize failed: stt=%d cls=%d", stt.calls, cls.calls)
	}
	if len(results.failures) != 1 {
		t.Fatalf("committed failures = %d, want 1", len(results.failures))
	}
	res := results.failures[0]
	if res.ThreatType != analysis.ThreatError {
		t.Errorf("threat type = %q, want error", res.ThreatType)
	}
	if res.Confidence != 0.0 || res.Severity != analysis.SeverityLow {
		t.Errorf("confidence/severity = %v/%q, want 0.0/low", res.Confidence, res.Severity)
	}
	if !strings.HasPrefix(res.Analysis, "Error processing file: ") {
		t.Errorf("analysis = %q, want error prefix", res.Analysis)
	}
	if !strings.Contains(res.ErrorMessage, "no audio stream") {
		t.Errorf("error message = %q, want cause included", res.ErrorMessage)
	}
}

func TestRunCycleIsolatesFailuresPerRecording(t *testing.T) {
	bad := testRecording("rec-bad")
	bad.Audio = nil
	recs := &fakeRecordings{eligible: []*recordings.Recording{bad, testRecording("rec-good")}}
	results := &fakeResults{existing: map[recordings.RecordingID]bool{}}
	c, norm, _, _ := newTestCoordinator(recs, results)

	failFor := map[string]error{"rec-bad": errors.New("corrupt header")}
	c.Normalizer = normalizeFunc(func(ctx context.Context, path, scratchDir string) (string, error) {
		for id, err := range failFor {
			if strings.Contains(path, id) {
				return "", err
			}
		}
		return norm.Normalize(ctx, path, scratchDir)
	})

	c.RunCycle(context.Background())

	if len(results.failures) != 1 {
		t.Errorf("committed failures = %d, want 1", len(results.failures))
	}
	if len(results.successes) != 1 {
		t.Errorf("committed successes = %d, want 1", len(results.successes))
	}
}

type normalizeFunc func(ctx context.Context, path, scratchDir string) (string, error)

func (f normalizeFunc) Normalize(ctx context.Context, path, scratchDir string) (string, error) {
	return f(ctx, path, scratchDir)
}

func TestRunCycleUploadsArtifactWhenStoreConfigured(t *testing.T) {
	recs := &fakeRecordings{eligible: []*recordings.Recording{testRecording("rec-1")}}
	results := &fakeResults{existing: map[recordings.RecordingID]bool{}}
	c, _, _, _ := newTestCoordinator(recs, results)
	store := &fakeArtifacts{}
	c.Artifacts = store

	c.RunCycle(context.Background())

	if len(store.keys) != 1 || store.keys[0] != "results/rec-1.wav" {
		t.Errorf("artifact keys = %v, want [results/rec-1.wav]", store.keys)
	}
	if len(results.successes) != 1 || results.successes[0].ArtifactURL == "" {
		t.Error("result missing artifact url")
	}
}

func TestRunCycleArtifactFailureDoesNotFailRecord(t *testing.T) {
	recs := &fakeRecordings{eligible: []*recordings.Recording{testRecording("rec-1")}}
	results := &fakeResults{existing: map[recordings.RecordingID]bool{}}
	c, _, _, _ := newTestCoordinator(recs, results)
	c.Artifacts = &fakeArtifacts{err: errors.New("bucket gone")}

	c.RunCycle(context.Background())

	if len(results.successes) != 1 {
		t.Fatalf("committed successes = %d, want 1", len(results.successes))
	}
	if results.successes[0].ArtifactURL != "" {
		t.Errorf("artifact url = %q, want empty after upload failure", results.successes[0].ArtifactURL)
	}
	if len(results.failures) != 0 {
		t.Error("artifact failure produced an error result")
	}
}

func TestRunCycleHonorsStalenessWindow(t *testing.T) {
	now := time.Date(2026, 1, 10, 10, 0, 0, 0, time.UTC)

	fresh := testRecording("rec-fresh")
	at := now.Add(-10 * time.Second)
	fresh.LastAttemptedAt = &at

	stale := testRecording("rec-stale")
	staleAt := now.Add(-5 * time.Minute)
	stale.LastAttemptedAt = &staleAt

	recs := &fakeRecordings{eligible: []*recordings.Recording{fresh, stale}}
	results := &fakeResults{existing: map[recordings.RecordingID]bool{}}
	c, _, _, _ := newTestCoordinator(recs, results)

	c.RunCycle(context.Background())

	if len(recs.reserved) != 1 || recs.reserved[0] != "rec-stale" {
		t.Errorf("reserved = %v, want only the stale recording", recs.reserved)
	}
}

func TestRunCycleRecoversFromClassifierPanic(t *testing.T) {
	recs := &fakeRecordings{eligible: []*recordings.Recording{testRecording("rec-1")}}
	results := &fakeResults{existing: map[recordings.RecordingID]bool{}}
	c, _, _, _ := newTestCoordinator(recs, results)
	c.Classifier = classifyFunc(func(context.Context, string) analysis.Classification {
		panic("nil pointer in model client")
	})

	c.RunCycle(context.Background())

	if len(results.failures) != 1 {
		t.Fatalf("committed failures = %d, want 1", len(results.failures))
	}
	if !strings.Contains(results.failures[0].ErrorMessage, "panic while processing") {
		t.Errorf("error message = %q, want panic recorded", results.failures[0].ErrorMessage)
	}
}

type classifyFunc func(ctx context.Context, transcript string) analysis.Classification

func (f classifyFunc) Classify(ctx context.Context, transcript string) analysis.Classification {
	return f(ctx, transcript)
}

func TestRunSkipsCycleWhileLockHeld(t *testing.T) {
	recs := &fakeRecordings{eligible: []*recordings.Recording{testRecording("rec-1")}}
	results := &fakeResults{existing: map[recordings.RecordingID]bool{}}
	c, _, _, _ := newTestCoordinator(recs, results)
	c.PollInterval = 5 * time.Millisecond

	// simulate a still-running cycle
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	time.Sleep(60 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}

	recs.mu.Lock()
	calls := recs.findCalls
	recs.mu.Unlock()
	if calls != 0 {
		t.Errorf("FindEligible calls = %d, want 0 while the lock is held", calls)
	}
	if len(recs.reserved) != 0 {
		t.Errorf("reserved = %v, want none while the lock is held", recs.reserved)
	}
}

func TestRunCycleLeavesRecordWhenCommitFails(t *testing.T) {
	recs := &fakeRecordings{eligible: []*recordings.Recording{testRecording("rec-1")}}
	results := &fakeResults{
		existing:   map[recordings.RecordingID]bool{},
		successErr: errors.New("tx deadlock"),
	}
	c, _, _, _ := newTestCoordinator(recs, results)

	c.RunCycle(context.Background())

	if len(results.successes) != 0 {
		t.Errorf("committed successes = %d, want 0 after commit failure", len(results.successes))
	}
	if len(results.failures) != 0 {
		t.Errorf("committed failures = %d, want no error-variant after commit failure", len(results.failures))
	}

	// next cycle after the staleness window picks the record back up
	results.successErr = nil
	c.Clock = fixedClock{now: time.Date(2026, 1, 10, 10, 2, 0, 0, time.UTC)}
	c.RunCycle(context.Background())

	if len(results.successes) != 1 {
		t.Errorf("committed successes = %d, want 1 on retry", len(results.successes))
	}
	if len(recs.reserved) != 2 {
		t.Errorf("reservations = %d, want 2 across both cycles", len(recs.reserved))
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	recs := &fakeRecordings{}
	results := &fakeResults{existing: map[recordings.RecordingID]bool{}}
	c, _, _, _ := newTestCoordinator(recs, results)
	c.PollInterval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
