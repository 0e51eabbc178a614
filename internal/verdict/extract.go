package verdict

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// maxBraceCandidates bounds the brace-scan on pathological replies.
const maxBraceCandidates = 32

var (
	errEmpty         = errors.New("empty response")
	errNotObject     = errors.New("not a JSON object")
	errNoFields      = errors.New("object carries no verdict fields")
	errNoFence       = errors.New("no fenced code block")
	errNoBraces      = errors.New("no brace-delimited candidate")
	errNoScrapeMatch = errors.New("no field matched")
)

var fencePattern = regexp.MustCompile("```[A-Za-z0-9_+-]*[ \t]*\r?\n?([\\s\\S]*?)```")

var (
	classificationPattern = regexp.MustCompile(`(?i)"?classification"?\s*[:=]\s*"?(NOT[-_ ]EDIBLE|EDIBLE)\b`)
	decisionPattern       = regexp.MustCompile(`(?i)"?decision"?\s*[:=]\s*"?(SAFE_FOR_DONATION|SAFE_WITH_ADVISORY|DISCARD)\b`)
	riskLevelPattern      = regexp.MustCompile(`(?i)"?risk_level"?\s*[:=]\s*"?(VERY_LOW|VERY_HIGH|LOW|MODERATE|HIGH)\b`)
	confidencePattern     = regexp.MustCompile(`(?i)"?confidence"?\s*[:=]\s*"?(\d+(?:\.\d+)?|\.\d+)`)
)

func parseDirect(text string) Result {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return failure(errEmpty)
	}
	return decodeObject(trimmed)
}

func parseFenced(text string) Result {
	if !strings.Contains(text, "```") {
		return failure(errNoFence)
	}
	match := fencePattern.FindStringSubmatch(text)
	if match == nil {
		return failure(errNoFence)
	}
	return parseDirect(match[1])
}

func parseBraceScan(text string) Result {
	candidates := braceCandidates(text)
	if len(candidates) == 0 {
		return failure(errNoBraces)
	}
	lastErr := errNoBraces
	for _, candidate := range candidates {
		result := decodeObject(candidate)
		if result.OK() {
			return result
		}
		lastErr = result.Err
		repaired := repairJSON(candidate)
		if repaired == candidate {
			continue
		}
		result = decodeObject(repaired)
		if result.OK() {
			return result
		}
		lastErr = result.Err
	}
	return failure(lastErr)
}

func scrapeFields(text string) Result {
	var fields Fields
	if m := classificationPattern.FindStringSubmatch(text); m != nil {
		value := strings.ToUpper(m[1])
		if strings.HasPrefix(value, "NOT") {
			value = NotEdible
		}
		fields.Classification = ptr(value)
	}
	if m := decisionPattern.FindStringSubmatch(text); m != nil {
		fields.Decision = ptr(strings.ToUpper(m[1]))
	}
	if m := riskLevelPattern.FindStringSubmatch(text); m != nil {
		fields.RiskLevel = ptr(strings.ToUpper(m[1]))
	}
	if m := confidencePattern.FindStringSubmatch(text); m != nil {
		if value, err := strconv.ParseFloat(m[1], 64); err == nil {
			fields.Confidence = ptr(clampFloat(value, 0, 1))
		}
	}
	if fields.Count() == 0 {
		return failure(errNoScrapeMatch)
	}
	return success(fields)
}

// braceCandidates returns the greedy first-to-last brace span plus every
// balanced top-level object, longest first.
func braceCandidates(text string) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(candidate string) {
		if _, ok := seen[candidate]; ok {
			return
		}
		seen[candidate] = struct{}{}
		out = append(out, candidate)
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil
	}
	add(text[start : end+1])
	for _, object := range balancedObjects(text[start : end+1]) {
		if len(out) >= maxBraceCandidates {
			break
		}
		add(object)
	}
	sort.SliceStable(out, func(i, j int) bool { return len(out[i]) > len(out[j]) })
	return out
}

// balancedObjects scans for top-level {...} spans, ignoring braces inside
// string literals.
func balancedObjects(text string) []string {
	var objects []string
	start := -1
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(text); i++ {
		ch := text[i]
		if escaped {
			escaped = false
			continue
		}
		if inString {
			switch ch {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 && start >= 0 {
				objects = append(objects, text[start:i+1])
				if len(objects) >= maxBraceCandidates {
					return objects
				}
				start = -1
			}
		}
	}
	return objects
}

// repairJSON escapes raw control characters inside string literals and
// drops trailing commas before a closing brace or bracket.
func repairJSON(text string) string {
	var b strings.Builder
	b.Grow(len(text) + 16)
	inString := false
	escaped := false
	for i := 0; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
				b.WriteByte(ch)
			case ch == '\\':
				escaped = true
				b.WriteByte(ch)
			case ch == '"':
				inString = false
				b.WriteByte(ch)
			case ch == '\n':
				b.WriteString(`\n`)
			case ch == '\r':
				b.WriteString(`\r`)
			case ch == '\t':
				b.WriteString(`\t`)
			default:
				b.WriteByte(ch)
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
			b.WriteByte(ch)
		case ',':
			j := i + 1
			for j < len(text) && isJSONSpace(text[j]) {
				j++
			}
			if j < len(text) && (text[j] == '}' || text[j] == ']') {
				continue
			}
			b.WriteByte(ch)
		default:
			b.WriteByte(ch)
		}
	}
	return b.String()
}

func isJSONSpace(ch byte) bool {
	return ch == ' ' || ch == '\n' || ch == '\r' || ch == '\t'
}

func decodeObject(text string) Result {
	var raw map[string]any
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return failure(errNotObject)
		}
		return failure(fmt.Errorf("decode: %w", err))
	}
	if raw == nil {
		return failure(errNotObject)
	}
	fields := fieldsFromMap(raw)
	if fields.Count() == 0 {
		return failure(errNoFields)
	}
	return success(fields)
}

func fieldsFromMap(raw map[string]any) Fields {
	var fields Fields
	if value, ok := raw["classification"].(string); ok {
		if normalized, ok := NormalizeClassification(value); ok {
			fields.Classification = ptr(normalized)
		}
	}
	if value, ok := raw["decision"].(string); ok {
		if normalized, ok := NormalizeDecision(value); ok {
			fields.Decision = ptr(normalized)
		}
	}
	if value, ok := raw["risk_level"].(string); ok {
		if normalized, ok := NormalizeRiskLevel(value); ok {
			fields.RiskLevel = ptr(normalized)
		}
	}
	if confidence, ok := toFloat(raw["confidence"]); ok {
		fields.Confidence = ptr(clampFloat(confidence, 0, 1))
	}
	if reasoning, ok := toReasoning(raw["reasoning"]); ok {
		fields.Reasoning = &reasoning
	}
	if value, ok := raw["advisory"].(string); ok && strings.TrimSpace(value) != "" {
		fields.Advisory = ptr(strings.TrimSpace(value))
	}
	return fields
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

func toReasoning(value any) (Reasoning, bool) {
	switch v := value.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return Reasoning{}, false
		}
		return Reasoning{FinalAssessment: strings.TrimSpace(v)}, true
	case map[string]any:
		reasoning := Reasoning{
			VisualInspection:   stringify(v["visual_inspection"]),
			FoodIdentification: stringify(v["food_identification"]),
			TimeTemperature:    stringify(v["time_temperature"]),
			ProtectiveFactors:  stringify(v["protective_factors"]),
			DonationContext:    stringify(v["donation_context"]),
			FinalAssessment:    stringify(v["final_assessment"]),
		}
		if reasoning.Empty() {
			return Reasoning{}, false
		}
		return reasoning, true
	default:
		return Reasoning{}, false
	}
}

func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(encoded)
	}
}

func clampFloat(value, min, max float64) float64 {
	if math.IsNaN(value) {
		return min
	}
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
