package rules

import (
	"strings"

	"vigil/internal/engine/analysis"
)

// Performance flags algorithmic-complexity risks with keyword
// co-occurrence inside a bounded line window instead of real data-flow
// analysis. The approximation is intentional.
type Performance struct {
	// loopWindow is how many preceding lines count as "inside a loop
	// header" for co-occurrence checks when brace tracking has not yet
	// caught up (loop body on the following lines).
	loopWindow int
}

func NewPerformance() *Performance {
	return &Performance{loopWindow: 3}
}

func (d *Performance) Family() string { return "performance" }

var domCallMarkers = []string{
	"document.queryselector", "document.getelementbyid", "document.getelementsby",
	"document.createelement", "jquery(", "$(",
}

var syncIOMarkers = []struct {
	marker     string
	message    string
	suggestion string
}{
	{"readfilesync", "Synchronous file read blocks the event loop", "Use the async fs API or fs/promises."},
	{"writefilesync", "Synchronous file write blocks the event loop", "Use the async fs API or fs/promises."},
	{"execsync", "Synchronous process execution blocks the event loop", "Use the async exec/spawn variants."},
	{"time.sleep(", "Blocking sleep call", "Use scheduling or async waits instead of sleeping."},
}

var lookupMarkers = []string{".indexof(", ".includes(", ".find(", ".filter("}

func (d *Performance) Detect(text, language string) []analysis.Issue {
	src := newSource(text, language)
	var issues []analysis.Issue

	var tracker loopTracker
	lastLoopLine := -1

	for _, ln := range src.lines {
		opensLoop := tracker.step(ln, src.language)
		if opensLoop {
			lastLoopLine = ln.num
			if tracker.depth() >= 2 {
				issues = append(issues, analysis.Issue{
					Category:   analysis.CategoryPerformance,
					Severity:   analysis.SeverityMedium,
					Line:       ln.num,
					Message:    "Nested loops, potential O(n^2) complexity",
					Suggestion: "Consider a map/set lookup or restructuring the inner loop.",
				})
			}
			if strings.Contains(ln.lower, ".length") && strings.Contains(ln.lower, "for") {
				issues = append(issues, analysis.Issue{
					Category:   analysis.CategoryPerformance,
					Severity:   analysis.SeverityLow,
					Line:       ln.num,
					Message:    "Length re-evaluated in loop condition",
					Suggestion: "Cache the length in a local before the loop.",
				})
			}
		}
		if ln.trimmed == "" || ln.isComment(src.language) {
			continue
		}

		inLoop := tracker.depth() > 0 || (lastLoopLine > 0 && ln.num-lastLoopLine <= d.loopWindow)

		if inLoop && !opensLoop {
			if strings.Contains(ln.text, "+=") && hasStringOperand(ln.text) {
				issues = append(issues, analysis.Issue{
					Category:   analysis.CategoryPerformance,
					Severity:   analysis.SeverityMedium,
					Line:       ln.num,
					Message:    "String concatenation inside a loop",
					Suggestion: "Collect parts in a slice/array and join once after the loop.",
				})
			}
			for _, marker := range domCallMarkers {
				if strings.Contains(ln.lower, marker) {
					issues = append(issues, analysis.Issue{
						Category:   analysis.CategoryPerformance,
						Severity:   analysis.SeverityMedium,
						Line:       ln.num,
						Message:    "DOM query inside a loop",
						Suggestion: "Query once before the loop and reuse the reference.",
					})
					break
				}
			}
		}

		if tracker.depth() >= 2 {
			for _, marker := range lookupMarkers {
				if strings.Contains(ln.lower, marker) {
					issues = append(issues, analysis.Issue{
						Category:   analysis.CategoryPerformance,
						Severity:   analysis.SeverityMedium,
						Line:       ln.num,
						Message:    "Linear lookup inside nested loops",
						Suggestion: "Build a map/set outside the loops for constant-time lookups.",
					})
					break
				}
			}
		}

		for _, sync := range syncIOMarkers {
			if strings.Contains(ln.lower, sync.marker) {
				severity := analysis.SeverityMedium
				if tracker.depth() > 0 {
					severity = analysis.SeverityHigh
				}
				issues = append(issues, analysis.Issue{
					Category:   analysis.CategoryPerformance,
					Severity:   severity,
					Line:       ln.num,
					Message:    sync.message,
					Suggestion: sync.suggestion,
				})
			}
		}

		if strings.Contains(ln.lower, "json.parse(json.stringify(") {
			issues = append(issues, analysis.Issue{
				Category:   analysis.CategoryPerformance,
				Severity:   analysis.SeverityLow,
				Line:       ln.num,
				Message:    "Deep clone via JSON round-trip",
				Suggestion: "Use structuredClone or a targeted copy.",
			})
		}
	}

	return sortByLine(issues)
}

func hasStringOperand(text string) bool {
	return strings.Contains(text, "\"") || strings.Contains(text, "'") || strings.Contains(text, "`")
}
