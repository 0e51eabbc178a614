package store

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"food-safety-eval/backend/internal/verdict"
)

func openTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "audit.db"), true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func sampleVerdict(classification, decision string, failed bool) verdict.Verdict {
	if failed {
		return verdict.SafeDefault("Analysis failed due to error: upstream", "", time.Date(2024, 1, 1, 14, 30, 0, 0, time.UTC))
	}
	return verdict.Verdict{
		Classification: classification,
		Decision:       decision,
		RiskLevel:      verdict.RiskLow,
		Confidence:     0.8,
		Reasoning:      verdict.Reasoning{FinalAssessment: "looks fine"},
		AnalyzedAt:     time.Date(2024, 1, 1, 14, 30, 0, 0, time.UTC),
	}
}

func TestRecordFromVerdict(t *testing.T) {
	v := sampleVerdict(verdict.Edible, verdict.SafeForDonation, false)
	advisory := "Consume within 2 hours"
	v.Advisory = &advisory

	rec := RecordFromVerdict(RecordInput{
		RequestID:        "req-1",
		ImageFilename:    "rice.jpg",
		PreparationTime:  "2024-01-01T10:00",
		PackageTime:      "2024-01-01T10:30",
		Stage:            verdict.StageDirect,
		ProcessingTimeMs: 1200,
	}, v)

	assert.Equal(t, "req-1", rec.RequestID)
	assert.Equal(t, "rice.jpg", rec.ImageFilename)
	assert.Equal(t, verdict.Edible, rec.Classification)
	assert.Equal(t, verdict.SafeForDonation, rec.Decision)
	assert.Equal(t, "looks fine", rec.ReasoningSummary)
	assert.Equal(t, advisory, rec.Advisory)
	assert.Equal(t, "direct", rec.Stage)
	assert.False(t, rec.Error)
	assert.True(t, rec.Timestamp.Equal(v.AnalyzedAt))
}

func TestRecordFromVerdictGeneratesRequestID(t *testing.T) {
	rec := RecordFromVerdict(RecordInput{}, sampleVerdict(verdict.Edible, verdict.SafeForDonation, false))
	assert.Len(t, rec.RequestID, 36)
}

func TestAppendAnalysisAllowsRepeatedRequestID(t *testing.T) {
	db := openTestDB(t)
	for i := 0; i < 2; i++ {
		rec := RecordFromVerdict(RecordInput{RequestID: "client-retry-1", ImageFilename: "rice.jpg"},
			sampleVerdict(verdict.Edible, verdict.SafeForDonation, false))
		require.NoError(t, db.AppendAnalysis(rec))
	}
	rows, err := db.AllAnalyses()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, rows[0].RequestID, rows[1].RequestID)
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, "short", Summarize("short"))
	exact := strings.Repeat("a", 500)
	assert.Equal(t, exact, Summarize(exact))

	long := Summarize(strings.Repeat("b", 800))
	assert.Len(t, long, 500)
	assert.True(t, strings.HasSuffix(long, "..."))
}

func TestAppendAndRecentAnalyses(t *testing.T) {
	db := openTestDB(t)
	for i := 0; i < 5; i++ {
		rec := RecordFromVerdict(RecordInput{ImageFilename: fmt.Sprintf("img-%d.png", i)}, sampleVerdict(verdict.Edible, verdict.SafeForDonation, false))
		require.NoError(t, db.AppendAnalysis(rec))
		assert.NotZero(t, rec.ID)
	}

	rows, err := db.RecentAnalyses(3)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "img-2.png", rows[0].ImageFilename)
	assert.Equal(t, "img-4.png", rows[2].ImageFilename)

	all, err := db.RecentAnalyses(0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestAppendAnalysisRejectsNil(t *testing.T) {
	db := openTestDB(t)
	assert.Error(t, db.AppendAnalysis(nil))

	var nilDB *Database
	assert.Error(t, nilDB.AppendAnalysis(&AnalysisRecord{}))
}

func TestStatisticsEmpty(t *testing.T) {
	db := openTestDB(t)
	stats, err := db.Statistics()
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)
}

func TestStatisticsCountsErrorsAsBoolean(t *testing.T) {
	db := openTestDB(t)
	verdicts := []verdict.Verdict{
		sampleVerdict(verdict.Edible, verdict.SafeForDonation, false),
		sampleVerdict(verdict.Edible, verdict.SafeWithAdvisory, false),
		sampleVerdict(verdict.NotEdible, verdict.Discard, false),
		sampleVerdict("", "", true),
	}
	for _, v := range verdicts {
		require.NoError(t, db.AppendAnalysis(RecordFromVerdict(RecordInput{}, v)))
	}

	stats, err := db.Statistics()
	require.NoError(t, err)
	assert.EqualValues(t, 4, stats.TotalAnalyses)
	assert.EqualValues(t, 2, stats.EdibleCount)
	assert.EqualValues(t, 2, stats.NotEdibleCount)
	assert.EqualValues(t, 1, stats.ErrorCount)
	assert.InDelta(t, 50.0, stats.EdibleRate, 1e-9)
}

func TestStatisticsRoundsRate(t *testing.T) {
	db := openTestDB(t)
	for _, v := range []verdict.Verdict{
		sampleVerdict(verdict.Edible, verdict.SafeForDonation, false),
		sampleVerdict(verdict.NotEdible, verdict.Discard, false),
		sampleVerdict(verdict.NotEdible, verdict.Discard, false),
	} {
		require.NoError(t, db.AppendAnalysis(RecordFromVerdict(RecordInput{}, v)))
	}
	stats, err := db.Statistics()
	require.NoError(t, err)
	assert.InDelta(t, 33.33, stats.EdibleRate, 1e-9)
}

func TestAppendAnalysisConcurrent(t *testing.T) {
	db := openTestDB(t)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, db.AppendAnalysis(RecordFromVerdict(RecordInput{}, sampleVerdict(verdict.Edible, verdict.SafeForDonation, false))))
		}()
	}
	wg.Wait()

	all, err := db.AllAnalyses()
	require.NoError(t, err)
	assert.Len(t, all, 10)
}
