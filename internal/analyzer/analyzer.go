package analyzer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"food-safety-eval/backend/internal/ai"
	"food-safety-eval/backend/internal/prompt"
	"food-safety-eval/backend/internal/timectx"
	"food-safety-eval/backend/internal/util"
	"food-safety-eval/backend/internal/verdict"
)

const (
	defaultCallTimeout    = 60 * time.Second
	defaultMaxAttempts    = 2
	defaultInitialBackoff = 500 * time.Millisecond
	defaultMaxBackoff     = 4 * time.Second
)

// Input is one analysis request.
type Input struct {
	Image           []byte
	PreparationTime string
	PackageTime     string
	MIMEType        string
}

// FailureKind classifies why a safe-default verdict was produced.
type FailureKind string

const (
	FailureNone       FailureKind = ""
	FailureTimestamp  FailureKind = "timestamp"
	FailureUpstream   FailureKind = "upstream"
	FailureExtraction FailureKind = "extraction"
	FailureInternal   FailureKind = "internal"
)

// Report describes how a verdict was reached.
type Report struct {
	Stage     verdict.Stage
	Attempts  int
	LatencyMs int64
	Failure   FailureKind
	Err       error
}

// Analyzer composes time context, prompt and image into one upstream call
// and turns the reply into a verdict. It holds no mutable state and is safe
// for concurrent use.
type Analyzer struct {
	model          ai.Model
	clock          util.Clock
	location       *time.Location
	system         string
	sampling       ai.Sampling
	callTimeout    time.Duration
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// Option customises an Analyzer.
type Option func(*Analyzer)

// WithClock overrides the source of the current instant.
func WithClock(clock util.Clock) Option {
	return func(a *Analyzer) {
		if clock != nil {
			a.clock = clock
		}
	}
}

// WithLocation sets the zone used for timestamps that carry no offset.
func WithLocation(loc *time.Location) Option {
	return func(a *Analyzer) {
		if loc != nil {
			a.location = loc
		}
	}
}

// WithSystemInstruction replaces the evaluation policy text.
func WithSystemInstruction(text string) Option {
	return func(a *Analyzer) { a.system = text }
}

// WithSampling overrides generation parameters.
func WithSampling(s ai.Sampling) Option {
	return func(a *Analyzer) { a.sampling = s }
}

// WithCallTimeout bounds each upstream attempt.
func WithCallTimeout(d time.Duration) Option {
	return func(a *Analyzer) {
		if d > 0 {
			a.callTimeout = d
		}
	}
}

// WithRetry configures attempts and backoff for transient upstream failures.
func WithRetry(maxAttempts int, initial, max time.Duration) Option {
	return func(a *Analyzer) {
		if maxAttempts > 0 {
			a.maxAttempts = maxAttempts
		}
		if initial > 0 {
			a.initialBackoff = initial
		}
		if max > 0 {
			a.maxBackoff = max
		}
	}
}

// New constructs an Analyzer around the upstream model.
func New(model ai.Model, opts ...Option) *Analyzer {
	a := &Analyzer{
		model:          model,
		clock:          util.SystemClock(),
		location:       time.Local,
		system:         prompt.System(),
		sampling:       ai.DefaultSampling(),
		callTimeout:    defaultCallTimeout,
		maxAttempts:    defaultMaxAttempts,
		initialBackoff: defaultInitialBackoff,
		maxBackoff:     defaultMaxBackoff,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze always returns a complete verdict; failures become the safe default.
func (a *Analyzer) Analyze(ctx context.Context, in Input) verdict.Verdict {
	v, _ := a.AnalyzeWithReport(ctx, in)
	return v
}

// AnalyzeWithReport is Analyze plus a description of the path taken.
func (a *Analyzer) AnalyzeWithReport(ctx context.Context, in Input) (v verdict.Verdict, report Report) {
	timer := util.StartTimer(a.clock)
	raw := ""
	defer func() {
		if r := recover(); r != nil {
			v = a.fail(FailureInternal, fmt.Errorf("panic: %v", r), raw, &report)
		}
		report.LatencyMs = timer.ElapsedMs()
		logReport(v, report)
	}()

	now := a.clock.Now()
	tc, err := timectx.Build(in.PreparationTime, in.PackageTime, now, a.location)
	if err != nil {
		return a.fail(FailureTimestamp, err, "", &report), report
	}

	req := ai.Request{
		SystemInstruction: a.system,
		Prompt:            prompt.BuildUser(tc, in.PreparationTime, in.PackageTime),
		Image:             in.Image,
		MIMEType:          in.MIMEType,
		Sampling:          a.sampling,
	}
	raw, report.Attempts, err = a.generateWithRetry(ctx, req)
	if err != nil {
		return a.fail(FailureUpstream, err, raw, &report), report
	}

	fields, stage, err := verdict.Extract(raw)
	if err != nil {
		return a.fail(FailureExtraction, err, raw, &report), report
	}
	report.Stage = stage
	return verdict.Normalize(fields, a.clock.Now()), report
}

func (a *Analyzer) fail(kind FailureKind, err error, raw string, report *Report) verdict.Verdict {
	report.Failure = kind
	report.Err = err
	if raw == "" {
		raw = "No response"
	}
	return verdict.SafeDefault(diagnostic(kind, err), raw, a.clock.Now())
}

func diagnostic(kind FailureKind, err error) string {
	switch kind {
	case FailureExtraction:
		return fmt.Sprintf("Analysis failed due to response parsing error: %v", err)
	case FailureTimestamp:
		return fmt.Sprintf("Analysis failed due to invalid timestamp: %v", err)
	default:
		return fmt.Sprintf("Analysis failed due to error: %v", err)
	}
}

// generateWithRetry calls the model with a per-attempt deadline and retries
// transient upstream failures with exponential backoff.
func (a *Analyzer) generateWithRetry(ctx context.Context, req ai.Request) (string, int, error) {
	if a.model == nil || !a.model.Enabled() {
		return "", 0, &ai.UpstreamError{Err: ai.ErrDisabled}
	}

	delay := a.initialBackoff
	var lastErr error
	attempts := 0
	for attempts < a.maxAttempts {
		attempts++
		text, err := a.generateOnce(ctx, req)
		if err == nil {
			return text, attempts, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", attempts, ctx.Err()
		}
		if !ai.IsTransient(err) || attempts >= a.maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return "", attempts, ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > a.maxBackoff {
			delay = a.maxBackoff
		}
	}
	return "", attempts, lastErr
}

func (a *Analyzer) generateOnce(ctx context.Context, req ai.Request) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.callTimeout)
	defer cancel()
	text, err := a.model.Generate(callCtx, req)
	if err != nil {
		var upstream *ai.UpstreamError
		if errors.As(err, &upstream) {
			return "", err
		}
		return "", &ai.UpstreamError{Err: err}
	}
	return text, nil
}

func logReport(v verdict.Verdict, report Report) {
	entry := logrus.WithFields(logrus.Fields{
		"classification": v.Classification,
		"decision":       v.Decision,
		"risk_level":     v.RiskLevel,
		"stage":          string(report.Stage),
		"attempts":       report.Attempts,
		"latency_ms":     report.LatencyMs,
	})
	if report.Failure != FailureNone {
		entry.WithError(report.Err).WithField("failure", string(report.Failure)).Warn("food analysis fell back to safe default")
		return
	}
	entry.Info("food analysis completed")
}
