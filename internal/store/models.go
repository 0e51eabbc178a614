package store

import (
	"time"
)

// AnalysisRecord is one append-only audit row per analysed image.
type AnalysisRecord struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	RequestID        string    `gorm:"size:64;index" json:"request_id"`
	Timestamp        time.Time `gorm:"index" json:"timestamp"`
	ImageFilename    string    `gorm:"size:255" json:"image_filename"`
	PreparationTime  string    `gorm:"size:64" json:"preparation_time"`
	PackageTime      string    `gorm:"size:64" json:"package_time"`
	Classification   string    `gorm:"size:16;index" json:"classification"`
	Decision         string    `gorm:"size:32;index" json:"decision"`
	RiskLevel        string    `gorm:"size:16" json:"risk_level"`
	Confidence       float64   `json:"confidence"`
	ReasoningSummary string    `gorm:"type:text" json:"reasoning_summary"`
	Advisory         string    `gorm:"type:text" json:"advisory"`
	Error            bool      `gorm:"index" json:"error"`
	Stage            string    `gorm:"size:16" json:"stage"`
	ProcessingTimeMs int64     `json:"processing_time_ms"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// Stats summarises the audit log.
type Stats struct {
	TotalAnalyses  int64   `json:"total_analyses"`
	EdibleCount    int64   `json:"edible_count"`
	NotEdibleCount int64   `json:"not_edible_count"`
	ErrorCount     int64   `json:"error_count"`
	EdibleRate     float64 `json:"edible_rate"`
}
