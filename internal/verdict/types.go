package verdict

import (
	"strings"
	"time"
)

// Classification values.
const (
	Edible    = "EDIBLE"
	NotEdible = "NOT-EDIBLE"
)

// Decision values.
const (
	SafeForDonation  = "SAFE_FOR_DONATION"
	SafeWithAdvisory = "SAFE_WITH_ADVISORY"
	Discard          = "DISCARD"
)

// Risk levels.
const (
	RiskVeryLow  = "VERY_LOW"
	RiskLow      = "LOW"
	RiskModerate = "MODERATE"
	RiskHigh     = "HIGH"
	RiskVeryHigh = "VERY_HIGH"
)

var (
	classifications = []string{Edible, NotEdible}
	decisions       = []string{SafeForDonation, SafeWithAdvisory, Discard}
	riskLevels      = []string{RiskVeryLow, RiskLow, RiskModerate, RiskHigh, RiskVeryHigh}
)

// Reasoning holds the per-step findings of the six-step evaluation.
// RawResponse is only populated on safe-default verdicts.
type Reasoning struct {
	VisualInspection   string `json:"visual_inspection,omitempty"`
	FoodIdentification string `json:"food_identification,omitempty"`
	TimeTemperature    string `json:"time_temperature,omitempty"`
	ProtectiveFactors  string `json:"protective_factors,omitempty"`
	DonationContext    string `json:"donation_context,omitempty"`
	FinalAssessment    string `json:"final_assessment,omitempty"`
	RawResponse        string `json:"raw_response,omitempty"`
}

// Empty reports whether none of the six evaluation keys carries text.
func (r Reasoning) Empty() bool {
	return strings.TrimSpace(r.VisualInspection) == "" &&
		strings.TrimSpace(r.FoodIdentification) == "" &&
		strings.TrimSpace(r.TimeTemperature) == "" &&
		strings.TrimSpace(r.ProtectiveFactors) == "" &&
		strings.TrimSpace(r.DonationContext) == "" &&
		strings.TrimSpace(r.FinalAssessment) == ""
}

// Verdict is the complete safety assessment returned for one analyzed image.
//
// A verdict with Error set is the safe default: NOT-EDIBLE, DISCARD, HIGH,
// confidence 0. Apart from the Error flag it cannot be told apart from a
// genuine high-risk discard, so callers must treat it as a forced discard
// that needs manual review.
type Verdict struct {
	Classification string    `json:"classification"`
	Decision       string    `json:"decision"`
	RiskLevel      string    `json:"risk_level"`
	Confidence     float64   `json:"confidence"`
	Reasoning      Reasoning `json:"reasoning"`
	Advisory       *string   `json:"advisory"`
	AnalyzedAt     time.Time `json:"analyzedAt"`
	Error          bool      `json:"error"`
}

// AdvisoryText returns the advisory or an empty string.
func (v Verdict) AdvisoryText() string {
	if v.Advisory == nil {
		return ""
	}
	return *v.Advisory
}

// Fields is the partial verdict recovered from a model reply. Nil means the
// field could not be recovered.
type Fields struct {
	Classification *string
	Decision       *string
	RiskLevel      *string
	Confidence     *float64
	Reasoning      *Reasoning
	Advisory       *string
}

// Count returns how many verdict keys were recovered. Advisory is
// optional and does not count.
func (f Fields) Count() int {
	n := 0
	for _, present := range []bool{
		f.Classification != nil,
		f.Decision != nil,
		f.RiskLevel != nil,
		f.Confidence != nil,
		f.Reasoning != nil,
	} {
		if present {
			n++
		}
	}
	return n
}

func normalizeEnum(value string, allowed []string) (string, bool) {
	upper := strings.ToUpper(strings.TrimSpace(value))
	for _, candidate := range allowed {
		if upper == candidate {
			return candidate, true
		}
	}
	return "", false
}

// NormalizeClassification upper-cases and validates a classification value.
func NormalizeClassification(value string) (string, bool) {
	return normalizeEnum(value, classifications)
}

// NormalizeDecision upper-cases and validates a decision value.
func NormalizeDecision(value string) (string, bool) {
	return normalizeEnum(value, decisions)
}

// NormalizeRiskLevel upper-cases and validates a risk level value.
func NormalizeRiskLevel(value string) (string, bool) {
	return normalizeEnum(value, riskLevels)
}

func ptr[T any](v T) *T { return &v }
