package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"food-safety-eval/backend/internal/analyzer"
	"food-safety-eval/backend/internal/store"
)

// multipart framing and the two timestamp fields ride on top of the image.
const formOverhead = 64 << 10

func (s *Server) handleAnalyzeFood(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUpload+formOverhead)

	fileHeader, err := c.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.renderTooLarge(c)
			return
		}
		if !errors.Is(err, http.ErrMissingFile) {
			logrus.WithError(err).Warn("read multipart form")
		}
		s.renderRejection(c, http.StatusBadRequest, "No image file provided", "Image is required for food safety analysis")
		return
	}
	if strings.TrimSpace(fileHeader.Filename) == "" {
		s.renderRejection(c, http.StatusBadRequest, "No image file selected", "A valid image file is required")
		return
	}
	mimeType, ok := analyzer.MIMETypeFor(fileHeader.Filename)
	if !ok {
		s.renderRejection(c, http.StatusBadRequest, "Invalid file type. Allowed: PNG, JPG, JPEG, GIF, WEBP", "Only image files are accepted for analysis")
		return
	}
	if fileHeader.Size > s.maxUpload {
		s.renderTooLarge(c)
		return
	}

	preparation := strings.TrimSpace(c.PostForm("preparationTime"))
	if preparation == "" {
		s.renderRejection(c, http.StatusBadRequest, "Preparation time is required", "Preparation time is needed for time-temperature analysis")
		return
	}
	packaging := strings.TrimSpace(c.PostForm("packageTime"))
	if packaging == "" {
		s.renderRejection(c, http.StatusBadRequest, "Package time is required", "Package time is needed for time-temperature analysis")
		return
	}

	image, err := readFormFile(fileHeader)
	if err != nil {
		s.renderRejection(c, http.StatusBadRequest, "Unable to read image file", "A valid image file is required")
		logrus.WithError(err).Warn("read uploaded image")
		return
	}

	v, report := s.analyzer.AnalyzeWithReport(c.Request.Context(), analyzer.Input{
		Image:           image,
		PreparationTime: preparation,
		PackageTime:     packaging,
		MIMEType:        mimeType,
	})

	record := store.RecordFromVerdict(store.RecordInput{
		RequestID:        currentRequestID(c),
		ImageFilename:    fileHeader.Filename,
		PreparationTime:  preparation,
		PackageTime:      packaging,
		Stage:            report.Stage,
		ProcessingTimeMs: report.LatencyMs,
	}, v)
	s.audit(record)

	c.JSON(http.StatusOK, v)
}

// audit persists and broadcasts the record. Failures are logged only.
func (s *Server) audit(record *store.AnalysisRecord) {
	if s.db != nil {
		if err := s.db.AppendAnalysis(record); err != nil {
			logrus.WithError(err).WithField("request_id", record.RequestID).Warn("append audit record")
		}
	}
	s.notifier.Broadcast(AnalysisEvent{Type: "analysis", Analysis: ptrTo(FromRecord(*record))})
}

func (s *Server) renderTooLarge(c *gin.Context) {
	s.renderRejection(c, http.StatusRequestEntityTooLarge,
		"File too large. Maximum size is "+formatSize(s.maxUpload),
		"Image is too large for analysis")
}

func formatSize(n int64) string {
	if n >= 1<<20 {
		return fmt.Sprintf("%gMB", float64(n)/(1<<20))
	}
	return fmt.Sprintf("%gKB", float64(n)/(1<<10))
}

func readFormFile(header *multipart.FileHeader) ([]byte, error) {
	if header == nil {
		return nil, errors.New("file header is nil")
	}
	src, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return io.ReadAll(src)
}

func ptrTo[T any](v T) *T { return &v }
