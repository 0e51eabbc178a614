package store

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"food-safety-eval/backend/internal/verdict"
)

const (
	// DefaultHistoryLimit is the number of records returned when no limit is given.
	DefaultHistoryLimit = 100

	maxSummaryLength = 500
)

// Database wraps the GORM DB handle and exposes repository helpers.
type Database struct {
	gorm *gorm.DB
	mu   sync.Mutex
}

// Open initializes the SQLite-backed audit log at the provided path.
func Open(path string, silent bool) (*Database, error) {
	cfg := &gorm.Config{}
	if silent {
		cfg.Logger = logger.Default.LogMode(logger.Silent)
	}
	db, err := gorm.Open(sqlite.Open(path), cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&AnalysisRecord{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	if err := db.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
		logrus.WithError(err).Warn("enable WAL mode")
	}
	if err := db.Exec("PRAGMA synchronous=NORMAL").Error; err != nil {
		logrus.WithError(err).Warn("set synchronous pragma")
	}
	return &Database{gorm: db}, nil
}

// GORM exposes the raw gorm.DB handle.
func (d *Database) GORM() *gorm.DB {
	return d.gorm
}

// Close closes the underlying database connection.
func (d *Database) Close() error {
	if d == nil {
		return nil
	}
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// RecordInput carries request metadata that is not part of the verdict.
type RecordInput struct {
	RequestID        string
	ImageFilename    string
	PreparationTime  string
	PackageTime      string
	Stage            verdict.Stage
	ProcessingTimeMs int64
}

// RecordFromVerdict flattens a verdict into an audit row.
func RecordFromVerdict(in RecordInput, v verdict.Verdict) *AnalysisRecord {
	requestID := strings.TrimSpace(in.RequestID)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	return &AnalysisRecord{
		RequestID:        requestID,
		Timestamp:        v.AnalyzedAt,
		ImageFilename:    in.ImageFilename,
		PreparationTime:  in.PreparationTime,
		PackageTime:      in.PackageTime,
		Classification:   v.Classification,
		Decision:         v.Decision,
		RiskLevel:        v.RiskLevel,
		Confidence:       v.Confidence,
		ReasoningSummary: Summarize(v.Reasoning.FinalAssessment),
		Advisory:         v.AdvisoryText(),
		Error:            v.Error,
		Stage:            string(in.Stage),
		ProcessingTimeMs: in.ProcessingTimeMs,
	}
}

// Summarize bounds reasoning text stored in the audit log to 500 characters.
func Summarize(text string) string {
	if len([]rune(text)) <= maxSummaryLength {
		return text
	}
	return verdict.Truncate(text, maxSummaryLength-3) + "..."
}

// AppendAnalysis inserts an audit row. Rows are never updated.
func (d *Database) AppendAnalysis(record *AnalysisRecord) error {
	if d == nil {
		return errors.New("database is nil")
	}
	if record == nil {
		return errors.New("record is nil")
	}
	if record.RequestID == "" {
		record.RequestID = uuid.NewString()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.gorm.Create(record).Error; err != nil {
		return fmt.Errorf("append analysis: %w", err)
	}
	return nil
}

// RecentAnalyses returns up to limit of the newest rows in insertion order,
// oldest first. A non-positive limit selects DefaultHistoryLimit.
func (d *Database) RecentAnalyses(limit int) ([]AnalysisRecord, error) {
	if d == nil {
		return nil, errors.New("database is nil")
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	var rows []AnalysisRecord
	if err := d.gorm.Model(&AnalysisRecord{}).Order("id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}

// AllAnalyses returns every row ordered by ID, used by exports.
func (d *Database) AllAnalyses() ([]AnalysisRecord, error) {
	if d == nil {
		return nil, errors.New("database is nil")
	}
	var rows []AnalysisRecord
	if err := d.gorm.Model(&AnalysisRecord{}).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Statistics aggregates classification and error counts over the whole log.
func (d *Database) Statistics() (Stats, error) {
	if d == nil {
		return Stats{}, errors.New("database is nil")
	}
	var row struct {
		Total     int64
		Edible    int64
		NotEdible int64
		Errors    int64
	}
	err := d.gorm.Model(&AnalysisRecord{}).
		Select(
			"COUNT(*) AS total, "+
				"COALESCE(SUM(CASE WHEN classification = ? THEN 1 ELSE 0 END), 0) AS edible, "+
				"COALESCE(SUM(CASE WHEN classification = ? THEN 1 ELSE 0 END), 0) AS not_edible, "+
				"COALESCE(SUM(CASE WHEN error THEN 1 ELSE 0 END), 0) AS errors",
			verdict.Edible, verdict.NotEdible,
		).
		Scan(&row).Error
	if err != nil {
		return Stats{}, fmt.Errorf("statistics: %w", err)
	}
	stats := Stats{
		TotalAnalyses:  row.Total,
		EdibleCount:    row.Edible,
		NotEdibleCount: row.NotEdible,
		ErrorCount:     row.Errors,
	}
	if row.Total > 0 {
		stats.EdibleRate = math.Round(float64(row.Edible)/float64(row.Total)*100*100) / 100
	}
	return stats, nil
}
