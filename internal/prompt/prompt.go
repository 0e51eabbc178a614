package prompt

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"food-safety-eval/backend/internal/timectx"
)

//go:embed system.md
var systemPolicy string

// ErrInvalidPolicy is returned when the evaluation policy misses a required marker.
var ErrInvalidPolicy = errors.New("system prompt validation failed")

var (
	requiredSections = []string{
		"EVALUATION PIPELINE",
		"Step 1: Visual Inspection",
		"Step 2: Food Identification",
		"Step 3: Time-Temperature Analysis",
		"Step 4: Protective Factors Assessment",
		"Step 5: Donation Context Evaluation",
		"Step 6: Final Decision",
		"RISK CATEGORIES",
		"RESPONSE FORMAT",
		"CRITICAL RULES",
	}
	requiredDecisions  = []string{"SAFE_FOR_DONATION", "SAFE_WITH_ADVISORY", "DISCARD"}
	requiredRiskLevels = []string{"VERY_HIGH", "HIGH", "MODERATE", "LOW", "VERY_LOW"}
)

// System returns the fixed evaluation policy forwarded verbatim as the
// model's system instruction.
func System() string {
	return systemPolicy
}

// Validate checks a policy text against the checklist of sections,
// decision types and risk levels the verdict schema depends on.
func Validate(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: empty policy", ErrInvalidPolicy)
	}
	checks := []struct {
		kind   string
		values []string
	}{
		{"section", requiredSections},
		{"decision type", requiredDecisions},
		{"risk level", requiredRiskLevels},
	}
	for _, check := range checks {
		for _, value := range check.values {
			if !strings.Contains(text, value) {
				return fmt.Errorf("%w: missing %s %q", ErrInvalidPolicy, check.kind, value)
			}
		}
	}
	return nil
}

// ValidateSystem validates the embedded policy. Callers run it once at startup.
func ValidateSystem() error {
	return Validate(systemPolicy)
}

const outputDirective = `CRITICAL: Respond with ONLY a valid JSON object. No markdown, no code blocks, no explanation text.
Use this exact structure:
{"classification": "EDIBLE" or "NOT-EDIBLE", "decision": "SAFE_FOR_DONATION" or "SAFE_WITH_ADVISORY" or "DISCARD", "risk_level": "VERY_LOW" or "LOW" or "MODERATE" or "HIGH" or "VERY_HIGH", "confidence": 0.0 to 1.0, "reasoning": {"visual_inspection": "...", "food_identification": "...", "time_temperature": "...", "protective_factors": "...", "donation_context": "...", "final_assessment": "..."}, "advisory": null or "..."}`

// BuildUser renders the per-request instruction: the time context followed
// by the strict output-format directive. preparation and packaging are the
// caller's original strings.
func BuildUser(tc timectx.Context, preparation, packaging string) string {
	builder := &strings.Builder{}
	builder.WriteString("Analyze this food image for donation safety.\n\n")
	builder.WriteString("**Time Context:**\n")
	fmt.Fprintf(builder, "- Preparation Time: %s\n", strings.TrimSpace(preparation))
	fmt.Fprintf(builder, "- Packaging Time: %s\n", strings.TrimSpace(packaging))
	fmt.Fprintf(builder, "- Current Time: %s\n", tc.Now.Format(time.RFC3339))
	fmt.Fprintf(builder, "- Hours since preparation: %s hours\n", timectx.FormatHours(tc.HoursSincePreparation))
	fmt.Fprintf(builder, "- Hours since packaging: %s hours\n", timectx.FormatHours(tc.HoursSincePackaging))
	builder.WriteString("\nEvaluate this food item following the 6-step FSSAI evaluation pipeline.\n\n")
	builder.WriteString(outputDirective)
	return builder.String()
}
