package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"vigil/internal/shared/observability"
)

// Detector is one rule family. Implementations must be pure: no state
// survives between Detect calls and concurrent calls are safe.
type Detector interface {
	Family() string
	Detect(text, language string) []Issue
}

// Summarizer produces the optional natural-language enrichment. It is an
// external collaborator; the engine never depends on it for correctness.
type Summarizer interface {
	Summarize(ctx context.Context, code, language string, issues []Issue) (string, error)
}

type Engine struct {
	detectors     []Detector
	weights       Weights
	summarizer    Summarizer
	enrichTimeout time.Duration
}

// NewEngine builds an engine over an ordered detector list. The list
// order is the report concatenation order and is part of the contract.
func NewEngine(detectors []Detector, weights Weights) *Engine {
	return &Engine{detectors: detectors, weights: weights}
}

// WithSummarizer enables best-effort report enrichment with a bounded
// per-call timeout.
func (e *Engine) WithSummarizer(s Summarizer, timeout time.Duration) *Engine {
	e.summarizer = s
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	e.enrichTimeout = timeout
	return e
}

// Analyze runs every detector family concurrently, joins all results in
// family order and scores the union. A panicking family is isolated:
// the other families' findings survive and the family is recorded in
// Report.Degraded instead of failing the call.
func (e *Engine) Analyze(ctx context.Context, text, language string) *Report {
	perFamily := make([][]Issue, len(e.detectors))
	failed := make([]string, len(e.detectors))

	var wg sync.WaitGroup
	for i, det := range e.detectors {
		wg.Add(1)
		go func(slot int, det Detector) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					slog.Error("detector family failed", "family", det.Family(), "panic", r)
					observability.DetectorFailuresTotal.WithLabelValues(det.Family()).Inc()
					failed[slot] = det.Family()
				}
			}()
			start := time.Now()
			perFamily[slot] = det.Detect(text, language)
			observability.DetectorDuration.WithLabelValues(det.Family()).Observe(time.Since(start).Seconds())
		}(i, det)
	}
	wg.Wait()

	report := &Report{Issues: make([]Issue, 0, 16)}
	for i := range e.detectors {
		report.Issues = append(report.Issues, perFamily[i]...)
		if failed[i] != "" {
			report.Degraded = append(report.Degraded, failed[i])
		}
	}
	for _, issue := range report.Issues {
		observability.IssuesTotal.WithLabelValues(string(issue.Category), string(issue.Severity)).Inc()
	}
	report.Score = Score(report.Issues, e.weights)

	e.enrich(ctx, report, text, language)
	return report
}

func (e *Engine) enrich(ctx context.Context, report *Report, text, language string) {
	if e.summarizer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, e.enrichTimeout)
	defer cancel()

	summary, err := e.summarizer.Summarize(ctx, text, language, report.Issues)
	if err != nil {
		observability.EnrichmentFailuresTotal.Inc()
		slog.Warn("report enrichment degraded", "error", err)
		report.EnrichmentError = fmt.Sprintf("enrichment unavailable: %v", err)
		return
	}
	report.Summary = summary
}
