package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/JPKrishna28/audio-sentinel/internal/domain/analysis"
)

// maxAttempts bounds model calls per transcript: one try plus two retries.
const maxAttempts = 3

// ChatModel is the raw model call; the openai infra client implements it.
type ChatModel interface {
	Complete(ctx context.Context, transcript string) (string, error)
}

// Classifier turns a transcript into a normalized analysis.Classification.
// Classify never returns an error: transient model failures are retried with
// exponential backoff and exhausted retries degrade to a fixed unknown result.
type Classifier struct {
	Model ChatModel
	Log   *logrus.Entry

	// NewBackOff is overridable so tests run without real waits.
	NewBackOff func() backoff.BackOff
}

func New(model ChatModel, log *logrus.Entry) *Classifier {
	return &Classifier{Model: model, Log: log}
}

func (c *Classifier) Classify(ctx context.Context, transcript string) analysis.Classification {
	if strings.TrimSpace(transcript) == "" {
		return analysis.Classification{
			ThreatType: analysis.ThreatUnknown,
			Confidence: 0.0,
			Severity:   analysis.SeverityLow,
			Analysis:   "No transcript available for analysis",
			Keywords:   []string{},
		}
	}

	var out analysis.Classification
	attempt := 0
	op := func() error {
		attempt++
		raw, err := c.Model.Complete(ctx, transcript)
		if err != nil {
			c.log().WithError(err).WithField("attempt", attempt).Warn("classification attempt failed")
			return err
		}
		parsed, err := parse(raw)
		if err != nil {
			c.log().WithError(err).WithField("attempt", attempt).Warn("classification attempt failed")
			return err
		}
		out = parsed
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(c.backOff(), ctx)); err != nil {
		return analysis.Classification{
			ThreatType: analysis.ThreatUnknown,
			Confidence: 0.0,
			Severity:   analysis.SeverityLow,
			Analysis:   fmt.Sprintf("Analysis failed: %v", err),
			Keywords:   []string{},
		}
	}
	return out
}

// backOff yields waits of 1s then 2s between the three attempts.
func (c *Classifier) backOff() backoff.BackOff {
	if c.NewBackOff != nil {
		return c.NewBackOff()
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 1 * time.Second
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	return backoff.WithMaxRetries(bo, maxAttempts-1)
}

// parse decodes the model output (optionally fenced) and normalizes it:
// required fields are backfilled, confidences clamped into [0,1], and the
// nested location object flattened onto the classification.
func parse(raw string) (analysis.Classification, error) {
	var doc map[string]any
	if err := json.Unmarshal([]byte(stripFences(raw)), &doc); err != nil {
		return analysis.Classification{}, fmt.Errorf("parsing model output: %w", err)
	}

	out := analysis.Classification{
		ThreatType:        analysis.ThreatUnknown,
		Keywords:          []string{},
		LocationType:      "unknown",
		RecommendedAction: "",
	}

	if s := asString(doc["threat_type"]); s != "" {
		out.ThreatType = analysis.ThreatType(s)
	}
	out.Confidence = clamp01(asFloat(doc["confidence"]))
	out.Severity = analysis.Severity(asString(doc["severity"]))
	out.Analysis = asString(doc["analysis"])
	out.Keywords = asStrings(doc["keywords"])
	out.Urgent = asBool(doc["urgent"])
	out.RecommendedAction = asString(doc["recommended_action"])

	if loc, ok := doc["location"].(map[string]any); ok {
		out.LocationMentioned = asString(loc["mentioned"])
		if t := asString(loc["type"]); t != "" {
			out.LocationType = t
		}
		out.LocationConfidence = clamp01(asFloat(loc["confidence"]))
	}
	return out, nil
}

// stripFences removes a markdown code-fence wrapper if present.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	if i := strings.Index(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

func clamp01(f float64) float64 {
	if f < 0.0 {
		return 0.0
	}
	if f > 1.0 {
		return 1.0
	}
	return f
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

// asFloat coerces numbers and numeric strings; anything else is 0.0.
func asFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case json.Number:
		f, _ := t.Float64()
		return f
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0.0
		}
		return f
	default:
		return 0.0
	}
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func asStrings(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func (c *Classifier) log() *logrus.Entry {
	if c.Log != nil {
		return c.Log
	}
	return logrus.NewEntry(logrus.StandardLogger())
}
