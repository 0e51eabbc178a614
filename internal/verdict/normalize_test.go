package verdict

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var completedAt = time.Date(2024, 1, 1, 14, 30, 0, 0, time.UTC)

func TestNormalizeKeepsCompleteVerdict(t *testing.T) {
	fields, _, err := Extract(fullReply)
	require.NoError(t, err)

	v := Normalize(fields, completedAt)
	assert.Equal(t, Edible, v.Classification)
	assert.Equal(t, SafeForDonation, v.Decision)
	assert.Equal(t, RiskLow, v.RiskLevel)
	assert.InDelta(t, 0.92, v.Confidence, 1e-9)
	assert.Equal(t, *fields.Reasoning, v.Reasoning)
	assert.Nil(t, v.Advisory)
	assert.False(t, v.Error)
	assert.True(t, v.AnalyzedAt.Equal(completedAt))
}

func TestNormalizeDefaults(t *testing.T) {
	tests := []struct {
		name           string
		fields         Fields
		classification string
		decision       string
		risk           string
		confidence     float64
	}{
		{"empty", Fields{}, NotEdible, Discard, RiskModerate, 0.5},
		{"discard only", Fields{Decision: ptr(Discard)}, NotEdible, Discard, RiskModerate, 0.5},
		{"safe for donation only", Fields{Decision: ptr(SafeForDonation)}, Edible, SafeForDonation, RiskModerate, 0.5},
		{"advisory decision only", Fields{Decision: ptr(SafeWithAdvisory)}, NotEdible, SafeWithAdvisory, RiskModerate, 0.5},
		{"edible only", Fields{Classification: ptr(Edible)}, Edible, SafeForDonation, RiskModerate, 0.5},
		{"not edible only", Fields{Classification: ptr(NotEdible)}, NotEdible, Discard, RiskModerate, 0.5},
		{"risk and confidence", Fields{RiskLevel: ptr(RiskVeryHigh), Confidence: ptr(0.3)}, NotEdible, Discard, RiskVeryHigh, 0.3},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := Normalize(tc.fields, completedAt)
			assert.Equal(t, tc.classification, v.Classification)
			assert.Equal(t, tc.decision, v.Decision)
			assert.Equal(t, tc.risk, v.RiskLevel)
			assert.InDelta(t, tc.confidence, v.Confidence, 1e-9)
			assert.False(t, v.Error)
		})
	}
}

func TestNormalizeDefaultReasoning(t *testing.T) {
	v := Normalize(Fields{Decision: ptr(Discard)}, completedAt)
	assert.Equal(t, Reasoning{FinalAssessment: "Analysis completed"}, v.Reasoning)
}

func TestNormalizeTrustsDecisionOverClassification(t *testing.T) {
	tests := []struct {
		name           string
		classification string
		decision       string
		want           string
	}{
		{"edible with discard", Edible, Discard, NotEdible},
		{"not edible with safe", NotEdible, SafeForDonation, Edible},
		{"edible with advisory", Edible, SafeWithAdvisory, Edible},
		{"not edible with advisory", NotEdible, SafeWithAdvisory, NotEdible},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := Normalize(Fields{Classification: ptr(tc.classification), Decision: ptr(tc.decision)}, completedAt)
			assert.Equal(t, tc.want, v.Classification)
			assert.Equal(t, tc.decision, v.Decision)
		})
	}
}

func TestNormalizeNeverPairsEdibleWithDiscard(t *testing.T) {
	classifications := []*string{nil, ptr(Edible), ptr(NotEdible)}
	decisions := []*string{nil, ptr(SafeForDonation), ptr(SafeWithAdvisory), ptr(Discard)}
	confidences := []*float64{nil, ptr(-1.0), ptr(0.0), ptr(0.42), ptr(3.0)}
	for _, c := range classifications {
		for _, d := range decisions {
			for _, conf := range confidences {
				v := Normalize(Fields{Classification: c, Decision: d, Confidence: conf}, completedAt)
				require.NotEmpty(t, v.Classification)
				require.NotEmpty(t, v.Decision)
				require.NotEmpty(t, v.RiskLevel)
				require.False(t, v.Reasoning.Empty())
				require.GreaterOrEqual(t, v.Confidence, 0.0)
				require.LessOrEqual(t, v.Confidence, 1.0)
				require.False(t, v.Classification == Edible && v.Decision == Discard)
			}
		}
	}
}

func TestNormalizeOverwritesAnalyzedAt(t *testing.T) {
	fields, _, err := Extract(`{"decision": "DISCARD", "analyzedAt": "1999-01-01T00:00:00Z"}`)
	require.NoError(t, err)
	v := Normalize(fields, completedAt)
	assert.True(t, v.AnalyzedAt.Equal(completedAt))
}

func TestSafeDefault(t *testing.T) {
	raw := strings.Repeat("x", 900)
	v := SafeDefault("Analysis failed due to error: "+strings.Repeat("e", 900), raw, completedAt)

	assert.True(t, v.Error)
	assert.Equal(t, NotEdible, v.Classification)
	assert.Equal(t, Discard, v.Decision)
	assert.Equal(t, RiskHigh, v.RiskLevel)
	assert.Equal(t, 0.0, v.Confidence)
	assert.Len(t, v.Reasoning.FinalAssessment, MaxDiagnosticLength)
	assert.True(t, strings.HasPrefix(v.Reasoning.FinalAssessment, "Analysis failed due to error: "))
	assert.Len(t, v.Reasoning.RawResponse, MaxDiagnosticLength)
	require.NotNil(t, v.Advisory)
	assert.Contains(t, *v.Advisory, "Manual review required")
}

func TestSafeDefaultWithoutDiagnostic(t *testing.T) {
	v := SafeDefault("", "", completedAt)
	assert.Equal(t, "Analysis failed", v.Reasoning.FinalAssessment)
	assert.Empty(t, v.Reasoning.RawResponse)
}

func TestVerdictJSONShape(t *testing.T) {
	v := Normalize(Fields{Classification: ptr(Edible)}, completedAt)
	payload, err := json.Marshal(v)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(payload, &decoded))
	for _, key := range []string{"classification", "decision", "risk_level", "confidence", "reasoning", "advisory", "analyzedAt", "error"} {
		assert.Contains(t, decoded, key)
	}
	assert.Nil(t, decoded["advisory"])
	assert.Equal(t, false, decoded["error"])
	assert.Equal(t, "2024-01-01T14:30:00Z", decoded["analyzedAt"])
}

func TestTruncateIsRuneSafe(t *testing.T) {
	assert.Equal(t, "ab", Truncate("abc", 2))
	assert.Equal(t, "héé", Truncate("hééé", 3))
	assert.Equal(t, "", Truncate("abc", 0))
	assert.Equal(t, "abc", Truncate("abc", 10))
}
