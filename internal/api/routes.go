package api

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"food-safety-eval/backend/internal/analyzer"
	"food-safety-eval/backend/internal/store"
	"food-safety-eval/backend/internal/verdict"
)

const (
	requestIDHeader     = "X-Request-ID"
	defaultMaxUpload    = 10 << 20
	maxHistoryLimit     = 1000
	serviceName         = "food-safety-analyzer"
	requestIDContextKey = "request_id"
)

// Analyzer produces a verdict for one upload. *analyzer.Analyzer satisfies it.
type Analyzer interface {
	AnalyzeWithReport(ctx context.Context, in analyzer.Input) (verdict.Verdict, analyzer.Report)
}

// Config defines server dependencies.
type Config struct {
	Analyzer       Analyzer
	DBPath         string
	SilentDB       bool
	DisableAudit   bool
	AllowedOrigins []string
	MaxUploadBytes int64
}

// Server wires HTTP handlers with the analyzer and the audit log.
type Server struct {
	analyzer       Analyzer
	db             *store.Database
	allowedOrigins []string
	maxUpload      int64
	notifier       *AnalysisNotifier
}

var errAuditDisabled = errors.New("audit log disabled")

// NewServer constructs the API server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Analyzer == nil {
		return nil, errors.New("analyzer required")
	}

	var db *store.Database
	if cfg.DisableAudit {
		logrus.Info("audit log disabled via configuration")
	} else {
		if strings.TrimSpace(cfg.DBPath) == "" {
			return nil, errors.New("db path required")
		}
		opened, err := store.Open(cfg.DBPath, cfg.SilentDB)
		if err != nil {
			return nil, err
		}
		db = opened
	}

	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUpload
	}

	return &Server{
		analyzer:       cfg.Analyzer,
		db:             db,
		allowedOrigins: cfg.AllowedOrigins,
		maxUpload:      maxUpload,
		notifier:       NewAnalysisNotifier(),
	}, nil
}

// Close releases the audit database.
func (s *Server) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Router configures gin routes.
func (s *Server) Router() (*gin.Engine, error) {
	r := gin.New()
	r.Use(gin.Logger(), gin.CustomRecovery(s.handlePanic), requestID())

	corsCfg := cors.DefaultConfig()
	if len(s.allowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = s.allowedOrigins
		corsCfg.AllowCredentials = true
	}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept", requestIDHeader}
	corsCfg.ExposeHeaders = []string{requestIDHeader}
	corsCfg.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	r.Use(cors.New(corsCfg))

	api := r.Group("/api")
	{
		api.GET("/health", s.handleHealth)
		api.POST("/analyze-food", s.handleAnalyzeFood)
		api.GET("/history", s.handleHistory)
		api.GET("/statistics", s.handleStatistics)
		api.GET("/analyses/stream", s.handleAnalysisStream)
		api.GET("/export.csv", s.handleExportCSV)
		api.GET("/export.json", s.handleExportJSON)
	}

	return r, nil
}

// requestID propagates the caller's X-Request-ID or assigns a fresh one.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Set(requestIDContextKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func currentRequestID(c *gin.Context) string {
	return c.GetString(requestIDContextKey)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": serviceName})
}

func (s *Server) handleHistory(c *gin.Context) {
	if s.db == nil {
		s.renderError(c, http.StatusServiceUnavailable, errAuditDisabled)
		return
	}
	limit := store.DefaultHistoryLimit
	if value := strings.TrimSpace(c.Query("limit")); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed <= 0 {
			s.renderError(c, http.StatusBadRequest, fmt.Errorf("invalid limit: %s", value))
			return
		}
		if parsed > maxHistoryLimit {
			parsed = maxHistoryLimit
		}
		limit = parsed
	}

	rows, err := s.db.RecentAnalyses(limit)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, HistoryResponse{Items: FromRecords(rows), Count: len(rows)})
}

func (s *Server) handleStatistics(c *gin.Context) {
	if s.db == nil {
		s.renderError(c, http.StatusServiceUnavailable, errAuditDisabled)
		return
	}
	stats, err := s.db.Statistics()
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

var exportHeaders = []string{
	"request_id",
	"timestamp",
	"image_filename",
	"preparation_time",
	"package_time",
	"classification",
	"decision",
	"risk_level",
	"confidence",
	"reasoning_summary",
	"advisory",
	"error",
	"stage",
	"processing_time_ms",
}

func (s *Server) handleExportCSV(c *gin.Context) {
	if s.db == nil {
		s.renderError(c, http.StatusServiceUnavailable, errAuditDisabled)
		return
	}
	rows, err := s.db.AllAnalyses()
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename=food-analysis-export.csv")
	c.Header("Content-Type", "text/csv")

	writer := csv.NewWriter(c.Writer)
	if err := writer.Write(exportHeaders); err != nil {
		return
	}
	for _, row := range rows {
		dto := FromRecord(row)
		line := []string{
			dto.RequestID,
			dto.Timestamp.Format("2006-01-02T15:04:05.000000Z07:00"),
			dto.ImageFilename,
			dto.PreparationTime,
			dto.PackageTime,
			dto.Classification,
			dto.Decision,
			dto.RiskLevel,
			fmt.Sprintf("%.2f", dto.Confidence),
			dto.ReasoningSummary,
			dto.Advisory,
			strconv.FormatBool(dto.Error),
			dto.Stage,
			strconv.FormatInt(dto.ProcessingTimeMs, 10),
		}
		if err := writer.Write(line); err != nil {
			return
		}
	}
	writer.Flush()
}

func (s *Server) handleExportJSON(c *gin.Context) {
	if s.db == nil {
		s.renderError(c, http.StatusServiceUnavailable, errAuditDisabled)
		return
	}
	rows, err := s.db.AllAnalyses()
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename=food-analysis-export.json")
	c.JSON(http.StatusOK, FromRecords(rows))
}

func (s *Server) renderError(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"error": err.Error()})
}

// renderRejection answers upload validation failures with a fail-safe
// NOT-EDIBLE body so clients never read a rejection as approval.
func (s *Server) renderRejection(c *gin.Context, status int, message, reasoning string) {
	c.JSON(status, RejectionResponse{
		Error:          message,
		Classification: verdict.NotEdible,
		Confidence:     0,
		Reasoning:      reasoning,
	})
}

func (s *Server) handlePanic(c *gin.Context, recovered any) {
	logrus.WithFields(logrus.Fields{
		"path":       c.Request.URL.Path,
		"request_id": currentRequestID(c),
	}).Errorf("handler panic: %v", recovered)
	message := fmt.Sprint(recovered)
	c.AbortWithStatusJSON(http.StatusInternalServerError, RejectionResponse{
		Error:          message,
		Classification: verdict.NotEdible,
		Confidence:     0,
		Reasoning:      "Analysis failed due to server error: " + message,
	})
}
