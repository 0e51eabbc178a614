package verdict

import (
	"errors"
	"fmt"
	"strings"
)

// Stage names the extraction strategy that produced a result.
type Stage string

const (
	StageNone        Stage = ""
	StageDirect      Stage = "direct"
	StageFenced      Stage = "fenced"
	StageBraceScan   Stage = "brace_scan"
	StageFieldScrape Stage = "field_scrape"
)

// ErrExtraction is matched by every ExtractionError.
var ErrExtraction = errors.New("no verdict fields recoverable from response")

// ExtractionError reports that no stage of the chain recovered a field.
type ExtractionError struct {
	Length   int
	Failures []StageFailure
}

// StageFailure records why a single stage gave up.
type StageFailure struct {
	Stage  Stage
	Reason error
}

func (e *ExtractionError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, failure := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", failure.Stage, failure.Reason))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%v (%d bytes)", ErrExtraction, e.Length)
	}
	return fmt.Sprintf("%v (%d bytes; %s)", ErrExtraction, e.Length, strings.Join(parts, "; "))
}

// Is lets errors.Is(err, ErrExtraction) match.
func (e *ExtractionError) Is(target error) bool { return target == ErrExtraction }

// Result is the outcome of one parser attempt: either recovered fields or
// the reason the attempt failed.
type Result struct {
	Fields Fields
	Err    error
}

// OK reports whether the attempt recovered fields.
func (r Result) OK() bool { return r.Err == nil }

func success(fields Fields) Result { return Result{Fields: fields} }

func failure(err error) Result { return Result{Err: err} }

// Step is one named parser attempt in a Chain.
type Step struct {
	Stage Stage
	Parse func(text string) Result
}

// Chain runs parser steps left to right and stops at the first success.
type Chain struct {
	steps []Step
}

// NewChain builds a chain from the supplied steps, skipping nil parsers.
func NewChain(steps ...Step) *Chain {
	kept := make([]Step, 0, len(steps))
	for _, step := range steps {
		if step.Parse != nil {
			kept = append(kept, step)
		}
	}
	return &Chain{steps: kept}
}

// Run returns the fields from the first successful step together with its
// stage, or an *ExtractionError listing every failure.
func (c *Chain) Run(text string) (Fields, Stage, error) {
	failures := make([]StageFailure, 0, len(c.steps))
	for _, step := range c.steps {
		result := step.Parse(text)
		if result.OK() {
			return result.Fields, step.Stage, nil
		}
		failures = append(failures, StageFailure{Stage: step.Stage, Reason: result.Err})
	}
	return Fields{}, StageNone, &ExtractionError{Length: len(text), Failures: failures}
}

// DefaultChain is strictest first: direct, fenced, brace-scan, field-scrape.
func DefaultChain() *Chain {
	return NewChain(
		Step{Stage: StageDirect, Parse: parseDirect},
		Step{Stage: StageFenced, Parse: parseFenced},
		Step{Stage: StageBraceScan, Parse: parseBraceScan},
		Step{Stage: StageFieldScrape, Parse: scrapeFields},
	)
}

var defaultChain = DefaultChain()

// Extract recovers as many verdict fields as possible from a raw model reply.
func Extract(raw string) (Fields, Stage, error) {
	return defaultChain.Run(raw)
}
