package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/JPKrishna28/audio-sentinel/internal/domain/analysis"
)

const sheetName = "Analysis Results"

var headers = []string{
	"ID", "Recording ID", "Threat Type", "Confidence", "Severity", "Urgent",
	"Keywords", "Location", "Location Type", "Location Confidence",
	"Recommended Action", "Transcript", "Error", "Created At",
}

// ResultsWorkbook renders analysis results as an xlsx workbook for download.
func ResultsWorkbook(results []*analysis.Result) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("creating sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("dropping default sheet: %w", err)
	}

	for col, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return nil, fmt.Errorf("writing header: %w", err)
		}
	}

	for i, res := range results {
		values := []any{
			string(res.ID),
			string(res.RecordingID),
			string(res.ThreatType),
			res.Confidence,
			string(res.Severity),
			res.Urgent,
			strings.Join(res.Keywords, ", "),
			res.LocationMentioned,
			res.LocationType,
			res.LocationConfidence,
			res.RecommendedAction,
			res.Transcript,
			res.ErrorMessage,
			res.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return nil, fmt.Errorf("writing row %d: %w", i+1, err)
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("serializing workbook: %w", err)
	}
	return buf.Bytes(), nil
}
