package api

import (
	"strings"
	"time"

	"food-safety-eval/backend/internal/store"
)

// RejectionResponse is returned for uploads that never reach the analyzer.
type RejectionResponse struct {
	Error          string  `json:"error"`
	Classification string  `json:"classification"`
	Confidence     float64 `json:"confidence"`
	Reasoning      string  `json:"reasoning"`
}

// AnalysisDTO is the API representation of an audit record.
type AnalysisDTO struct {
	ID               uint      `json:"id"`
	RequestID        string    `json:"request_id"`
	Timestamp        time.Time `json:"timestamp"`
	ImageFilename    string    `json:"image_filename"`
	PreparationTime  string    `json:"preparation_time"`
	PackageTime      string    `json:"package_time"`
	Classification   string    `json:"classification"`
	Decision         string    `json:"decision"`
	RiskLevel        string    `json:"risk_level"`
	Confidence       float64   `json:"confidence"`
	ReasoningSummary string    `json:"reasoning_summary"`
	Advisory         string    `json:"advisory"`
	Error            bool      `json:"error"`
	Stage            string    `json:"stage"`
	ProcessingTimeMs int64     `json:"processing_time_ms"`
}

// HistoryResponse lists recent analyses, oldest first.
type HistoryResponse struct {
	Items []AnalysisDTO `json:"items"`
	Count int           `json:"count"`
}

// FromRecord converts a store.AnalysisRecord into the DTO representation.
func FromRecord(r store.AnalysisRecord) AnalysisDTO {
	return AnalysisDTO{
		ID:               r.ID,
		RequestID:        r.RequestID,
		Timestamp:        r.Timestamp,
		ImageFilename:    r.ImageFilename,
		PreparationTime:  r.PreparationTime,
		PackageTime:      r.PackageTime,
		Classification:   r.Classification,
		Decision:         r.Decision,
		RiskLevel:        r.RiskLevel,
		Confidence:       round2(r.Confidence),
		ReasoningSummary: strings.TrimSpace(r.ReasoningSummary),
		Advisory:         r.Advisory,
		Error:            r.Error,
		Stage:            r.Stage,
		ProcessingTimeMs: r.ProcessingTimeMs,
	}
}

// FromRecords converts a slice of records, never returning nil.
func FromRecords(rows []store.AnalysisRecord) []AnalysisDTO {
	out := make([]AnalysisDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromRecord(row))
	}
	return out
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
