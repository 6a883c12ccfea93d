package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/JPKrishna28/audio-sentinel/internal/domain/analysis"
)

func TestResultsWorkbook(t *testing.T) {
	results := []*analysis.Result{
		{
			ID:          "res-1",
			RecordingID: "rec-1",
			Transcript:  "they stole my bike",
			Classification: analysis.Classification{
				ThreatType:         analysis.ThreatTheft,
				Confidence:         0.85,
				Severity:           analysis.SeverityMedium,
				Keywords:           []string{"stole", "bike"},
				Urgent:             false,
				LocationMentioned:  "park entrance",
				LocationType:       "public",
				LocationConfidence: 0.6,
			},
			CreatedAt: time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC),
		},
		{
			ID:          "res-2",
			RecordingID: "rec-2",
			Classification: analysis.Classification{
				ThreatType: analysis.ThreatError,
				Severity:   analysis.SeverityLow,
				Analysis:   "Error processing file: no audio stream",
			},
			ErrorMessage: "no audio stream",
			CreatedAt:    time.Date(2026, 2, 1, 11, 0, 0, 0, time.UTC),
		},
	}

	book, err := ResultsWorkbook(results)
	if err != nil {
		t.Fatalf("ResultsWorkbook() error = %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(book))
	if err != nil {
		t.Fatalf("opening workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	if err != nil {
		t.Fatalf("reading sheet: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header plus 2 results", len(rows))
	}
	if rows[0][0] != "ID" || rows[0][2] != "Threat Type" {
		t.Errorf("header row = %v", rows[0])
	}
	if rows[1][0] != "res-1" || rows[1][2] != "theft" {
		t.Errorf("first data row = %v", rows[1])
	}
	if rows[1][6] != "stole, bike" {
		t.Errorf("keywords cell = %q, want joined list", rows[1][6])
	}
	if rows[2][2] != "error" {
		t.Errorf("second data row threat type = %q, want error", rows[2][2])
	}
}

func TestResultsWorkbookEmpty(t *testing.T) {
	book, err := ResultsWorkbook(nil)
	if err != nil {
		t.Fatalf("ResultsWorkbook() error = %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(book))
	if err != nil {
		t.Fatalf("opening workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Errorf("rows = %d, want header only", len(rows))
	}
}
