package verdict

import (
	"time"
	"unicode/utf8"
)

const (
	defaultConfidence      = 0.5
	defaultFinalAssessment = "Analysis completed"

	// MaxDiagnosticLength bounds diagnostic text embedded in safe-default verdicts.
	MaxDiagnosticLength = 500

	safeDefaultAdvisory = "Manual review required - automated analysis failed"
)

// Normalize fills missing fields with policy defaults and reconciles
// classification against decision. Defaults are applied in order because
// the decision default depends on the resolved classification.
func Normalize(f Fields, completedAt time.Time) Verdict {
	v := Verdict{AnalyzedAt: completedAt}

	v.Classification = resolveClassification(f.Classification, f.Decision)

	if f.Confidence != nil {
		v.Confidence = clampFloat(*f.Confidence, 0, 1)
	} else {
		v.Confidence = defaultConfidence
	}

	if f.Reasoning != nil && !f.Reasoning.Empty() {
		v.Reasoning = *f.Reasoning
	} else {
		v.Reasoning = Reasoning{FinalAssessment: defaultFinalAssessment}
	}

	if f.RiskLevel != nil {
		v.RiskLevel = *f.RiskLevel
	} else {
		v.RiskLevel = RiskModerate
	}

	if f.Decision != nil {
		v.Decision = *f.Decision
	} else if v.Classification == Edible {
		v.Decision = SafeForDonation
	} else {
		v.Decision = Discard
	}

	if f.Advisory != nil {
		advisory := *f.Advisory
		v.Advisory = &advisory
	}
	return v
}

// resolveClassification trusts the decision whenever it implies a
// classification. SAFE_WITH_ADVISORY implies neither, so an explicit
// classification stands and a missing one defaults to NOT-EDIBLE.
func resolveClassification(classification, decision *string) string {
	if decision != nil {
		switch *decision {
		case Discard:
			return NotEdible
		case SafeForDonation:
			return Edible
		}
	}
	if classification != nil {
		return *classification
	}
	return NotEdible
}

// SafeDefault builds the forced-discard verdict emitted whenever analysis
// cannot complete. diagnostic and raw are truncated to MaxDiagnosticLength.
func SafeDefault(diagnostic, raw string, at time.Time) Verdict {
	advisory := safeDefaultAdvisory
	if diagnostic == "" {
		diagnostic = "Analysis failed"
	}
	return Verdict{
		Classification: NotEdible,
		Decision:       Discard,
		RiskLevel:      RiskHigh,
		Confidence:     0,
		Reasoning: Reasoning{
			FinalAssessment: Truncate(diagnostic, MaxDiagnosticLength),
			RawResponse:     Truncate(raw, MaxDiagnosticLength),
		},
		Advisory:   &advisory,
		AnalyzedAt: at,
		Error:      true,
	}
}

// Truncate shortens s to at most limit runes.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
